// Package engine turns a groove snapshot into precisely timed trigger calls
// against a Sounder. The transport runs on a single goroutine per engine;
// live parameter changes work by swapping the immutable groove snapshot that
// the tick loop re-reads on every tick.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/groovekit/groovekit/pkg/groove"
	"github.com/groovekit/groovekit/pkg/logger"
	"github.com/groovekit/groovekit/pkg/theory"
)

// Sounder is the sound-layer contract. Trigger schedules a voice for a
// future instant; the implementation owns its own look-ahead against its
// clock. Trigger failures are recovered per voice and never halt playback.
type Sounder interface {
	Trigger(v groove.Voice, at time.Time, velocity uint8) error
}

// SyncMode controls when the first tick of a run is emitted relative to the
// engine's epoch pulse.
type SyncMode string

const (
	SyncStart   SyncMode = "start"   // first tick immediately
	SyncBeat    SyncMode = "beat"    // first tick on the next beat boundary
	SyncMeasure SyncMode = "measure" // first tick on the next measure boundary
)

// EventKind identifies transport lifecycle events.
type EventKind int

const (
	EventStarted EventKind = iota
	EventTick
	EventLoop // position wrapped back to zero
	EventStopped
)

// Event is delivered to subscribers on transport changes and position ticks.
type Event struct {
	Kind     EventKind
	Position int
	At       time.Time
}

// TimingError reports tempo or division values outside supported ranges at
// Play or UpdateGroove. The engine stays in its prior state.
type TimingError struct {
	Field  string
	Reason string
}

func (e *TimingError) Error() string {
	return fmt.Sprintf("timing config: %s: %s", e.Field, e.Reason)
}

// ErrLayoutChanged is returned by UpdateGroove when the new groove's position
// layout differs from the running one. The transport has stopped; the caller
// decides whether to restart from position zero.
var ErrLayoutChanged = errors.New("groove layout changed, transport stopped")

// StoppedPosition is the position reported while the transport is stopped.
const StoppedPosition = -1

// State is a point-in-time snapshot of the transport.
type State struct {
	Playing  bool
	Position int
	Sync     SyncMode
	Groove   *groove.Groove
}

// Engine owns one transport. Engines are independent; tests run several side
// by side.
type Engine struct {
	mu       sync.RWMutex
	sounder  Sounder
	snapshot *groove.Groove
	playing  bool
	position int
	syncMode SyncMode
	epoch    time.Time
	stopChan chan struct{}
	subs     map[chan Event]struct{}
	now      func() time.Time
}

// New creates a stopped engine bound to a sounder. The engine's epoch (the
// reference pulse for beat/measure sync) is its creation time.
func New(s Sounder) *Engine {
	return &Engine{
		sounder:  s,
		position: StoppedPosition,
		syncMode: SyncStart,
		epoch:    time.Now(),
		subs:     make(map[chan Event]struct{}),
		now:      time.Now,
	}
}

// TickInterval returns the wall-clock duration of one subdivision:
// (60 / tempo) / (division / 4) seconds.
func TickInterval(tempo int, d theory.Division) time.Duration {
	return time.Duration(float64(time.Minute) / float64(tempo) / (float64(d) / 4.0))
}

// SwingDelay maps swing (0-100) to the delay applied to off subdivisions.
// The mapping is linear up to a third of the tick interval, which keeps the
// delayed hit comfortably ahead of the next tick at full swing.
func SwingDelay(swing int, interval time.Duration) time.Duration {
	if swing <= 0 {
		return 0
	}
	if swing > 100 {
		swing = 100
	}
	return time.Duration(float64(interval) / 3.0 * float64(swing) / 100.0)
}

func validateTiming(g *groove.Groove) error {
	if g == nil {
		return &TimingError{Field: "groove", Reason: "nil groove"}
	}
	if g.Tempo < groove.MinTempo || g.Tempo > groove.MaxTempo {
		return &TimingError{Field: "tempo", Reason: fmt.Sprintf("%d outside %d-%d", g.Tempo, groove.MinTempo, groove.MaxTempo)}
	}
	if !g.Division.Known() {
		return &TimingError{Field: "division", Reason: fmt.Sprintf("%d not a known division", int(g.Division))}
	}
	return nil
}

// Play starts the transport on the given groove. Calling Play while already
// playing is a no-op with a warning; call Stop first to restart.
func (e *Engine) Play(g *groove.Groove) error {
	if err := validateTiming(g); err != nil {
		return err
	}

	e.mu.Lock()
	if e.playing {
		e.mu.Unlock()
		logger.Warn("engine: play ignored, transport already running")
		return nil
	}
	e.snapshot = g
	e.playing = true
	e.position = StoppedPosition
	e.stopChan = make(chan struct{})
	stop := e.stopChan
	startAt := e.startTime(g)
	e.mu.Unlock()

	e.emit(Event{Kind: EventStarted, Position: 0, At: startAt})
	go e.run(stop, startAt)
	return nil
}

// startTime resolves the first tick instant for the active sync mode. Must
// be called with e.mu held.
func (e *Engine) startTime(g *groove.Groove) time.Time {
	now := e.now()
	beat := time.Duration(float64(time.Minute) / float64(g.Tempo))
	var period time.Duration
	switch e.syncMode {
	case SyncBeat:
		period = beat
	case SyncMeasure:
		period = beat * time.Duration(g.TimeSig.Beats)
	default:
		return now
	}
	elapsed := now.Sub(e.epoch)
	n := elapsed/period + 1
	return e.epoch.Add(n * period)
}

// run is the tick loop. It reads a fresh snapshot every tick so tempo, swing
// and division changes are audible on the next subdivision without a restart.
func (e *Engine) run(stop chan struct{}, startAt time.Time) {
	pos := 0
	next := startAt

	for {
		if wait := next.Sub(e.now()); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-stop:
				timer.Stop()
				return
			case <-timer.C:
			}
		} else {
			select {
			case <-stop:
				return
			default:
			}
		}

		e.mu.Lock()
		// A restart allocates a fresh stop channel, so comparing channels
		// also catches the stop-then-play window where playing is already
		// true again but this goroutine belongs to the previous run.
		if !e.playing || e.stopChan != stop {
			e.mu.Unlock()
			return
		}
		g := e.snapshot
		e.position = pos
		e.mu.Unlock()

		interval := TickInterval(g.Tempo, g.Division)
		at := next
		if g.Swing > 0 && theory.SupportsSwing(g.Division) && pos%2 == 1 {
			at = at.Add(SwingDelay(g.Swing, interval))
		}
		for _, v := range g.ActiveVoices(pos) {
			if err := e.sounder.Trigger(v, at, v.Velocity()); err != nil {
				logger.Error("engine: trigger failed", "voice", v.String(), "err", err)
			}
		}
		e.emit(Event{Kind: EventTick, Position: pos, At: at})

		pos++
		if pos >= g.TotalPositions() {
			pos = 0
			e.emit(Event{Kind: EventLoop, Position: 0, At: at})
		}
		next = next.Add(interval)
	}
}

// Stop halts the transport. Ticks that were already scheduled are cancelled
// via the stop channel; a trigger that slipped past the boundary is harmless.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.playing {
		e.mu.Unlock()
		return
	}
	e.playing = false
	e.position = StoppedPosition
	close(e.stopChan)
	e.mu.Unlock()

	e.emit(Event{Kind: EventStopped, Position: StoppedPosition, At: e.now()})
}

// UpdateGroove swaps the active snapshot. While playing, timing parameters
// are re-derived on the next tick without resetting position. If the new
// groove's position layout differs the transport stops and ErrLayoutChanged
// is returned, because old position indices are meaningless in the new
// layout.
func (e *Engine) UpdateGroove(g *groove.Groove) error {
	if err := validateTiming(g); err != nil {
		return err
	}

	e.mu.Lock()
	if !e.playing {
		e.snapshot = g
		e.mu.Unlock()
		return nil
	}
	if g.TotalPositions() != e.snapshot.TotalPositions() {
		e.playing = false
		e.position = StoppedPosition
		close(e.stopChan)
		e.snapshot = g
		e.mu.Unlock()
		e.emit(Event{Kind: EventStopped, Position: StoppedPosition, At: e.now()})
		return ErrLayoutChanged
	}
	e.snapshot = g
	e.mu.Unlock()
	return nil
}

// PlayPreview auditions a single voice immediately. Transport state and
// position are untouched.
func (e *Engine) PlayPreview(v groove.Voice) {
	if !v.Valid() {
		logger.Warn("engine: preview of unknown voice ignored", "voice", int(v))
		return
	}
	if err := e.sounder.Trigger(v, e.now(), v.Velocity()); err != nil {
		logger.Error("engine: preview trigger failed", "voice", v.String(), "err", err)
	}
}

// SetSyncMode changes how the next run aligns its first tick. An in-flight
// run keeps its already-computed schedule.
func (e *Engine) SetSyncMode(m SyncMode) {
	e.mu.Lock()
	e.syncMode = m
	e.mu.Unlock()
}

// State returns a snapshot of the transport.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return State{
		Playing:  e.playing,
		Position: e.position,
		Sync:     e.syncMode,
		Groove:   e.snapshot,
	}
}

// Playing reports whether the transport is running.
func (e *Engine) Playing() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.playing
}

// Position returns the current absolute position, or StoppedPosition.
func (e *Engine) Position() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.position
}

// Subscribe registers a listener channel for transport events. The channel
// is buffered; events to a full channel are dropped rather than blocking the
// tick loop.
func (e *Engine) Subscribe() chan Event {
	ch := make(chan Event, 16)
	e.mu.Lock()
	e.subs[ch] = struct{}{}
	e.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a listener channel.
func (e *Engine) Unsubscribe(ch chan Event) {
	e.mu.Lock()
	if _, ok := e.subs[ch]; ok {
		delete(e.subs, ch)
		close(ch)
	}
	e.mu.Unlock()
}

func (e *Engine) emit(ev Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for ch := range e.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
