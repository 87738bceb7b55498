package engine

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/groovekit/groovekit/pkg/groove"
	"github.com/groovekit/groovekit/pkg/theory"
)

// mockSounder records trigger calls for inspection.
type mockSounder struct {
	mu       sync.Mutex
	triggers []mockTrigger
	fail     bool
}

type mockTrigger struct {
	voice    groove.Voice
	at       time.Time
	velocity uint8
}

func (m *mockSounder) Trigger(v groove.Voice, at time.Time, velocity uint8) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggers = append(m.triggers, mockTrigger{voice: v, at: at, velocity: velocity})
	if m.fail {
		return fmt.Errorf("device gone")
	}
	return nil
}

func (m *mockSounder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.triggers)
}

func (m *mockSounder) last() (mockTrigger, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.triggers) == 0 {
		return mockTrigger{}, false
	}
	return m.triggers[len(m.triggers)-1], true
}

// fastGroove returns a short, fast pattern with a kick on every position so
// timing tests see triggers quickly.
func fastGroove(t *testing.T) *groove.Groove {
	t.Helper()
	g, err := groove.New(400, 0, theory.TimeSignature{Beats: 2, NoteValue: 4}, theory.Div8, 1)
	if err != nil {
		t.Fatalf("groove.New: %v", err)
	}
	for pos := range g.Notes[groove.Kick] {
		g.Notes[groove.Kick][pos] = true
	}
	return g
}

func TestTickInterval(t *testing.T) {
	tests := []struct {
		name  string
		tempo int
		d     theory.Division
		want  time.Duration
	}{
		{"120bpm 16ths", 120, theory.Div16, 125 * time.Millisecond},
		{"60bpm 16ths", 60, theory.Div16, 250 * time.Millisecond},
		{"120bpm quarters", 120, theory.Div4, 500 * time.Millisecond},
		{"120bpm triplet 8ths", 120, theory.Div12, time.Second / 6},
		{"80bpm 8ths", 80, theory.Div8, 375 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TickInterval(tt.tempo, tt.d)
			if diff := got - tt.want; diff < -time.Microsecond || diff > time.Microsecond {
				t.Errorf("TickInterval(%d, %d) = %v, want %v", tt.tempo, int(tt.d), got, tt.want)
			}
		})
	}
}

func TestSwingDelay(t *testing.T) {
	interval := 120 * time.Millisecond

	if got := SwingDelay(0, interval); got != 0 {
		t.Errorf("SwingDelay(0) = %v, want 0", got)
	}
	if got := SwingDelay(100, interval); got != 40*time.Millisecond {
		t.Errorf("SwingDelay(100) = %v, want 40ms", got)
	}
	if got := SwingDelay(150, interval); got != 40*time.Millisecond {
		t.Errorf("SwingDelay(150) should clamp to full swing, got %v", got)
	}

	// Monotonic in the swing amount.
	prev := time.Duration(-1)
	for swing := 0; swing <= 100; swing += 10 {
		d := SwingDelay(swing, interval)
		if d <= prev && swing > 0 {
			t.Errorf("SwingDelay not increasing at %d: %v <= %v", swing, d, prev)
		}
		prev = d
	}
}

func TestPlayAndStop(t *testing.T) {
	sounder := &mockSounder{}
	eng := New(sounder)
	g := fastGroove(t)

	if eng.Playing() {
		t.Fatal("new engine should be stopped")
	}
	if got := eng.Position(); got != StoppedPosition {
		t.Fatalf("stopped position = %d, want %d", got, StoppedPosition)
	}

	if err := eng.Play(g); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if !eng.Playing() {
		t.Fatal("engine should report playing")
	}

	// 2/4 eighths at 400 BPM ticks every 75ms.
	time.Sleep(400 * time.Millisecond)
	eng.Stop()

	if eng.Playing() {
		t.Error("engine should be stopped after Stop")
	}
	if got := eng.Position(); got != StoppedPosition {
		t.Errorf("position after stop = %d, want %d", got, StoppedPosition)
	}
	if sounder.count() < 2 {
		t.Errorf("expected at least 2 triggers, got %d", sounder.count())
	}
	if trig, ok := sounder.last(); ok && trig.voice != groove.Kick {
		t.Errorf("triggered voice = %s, want %s", trig.voice, groove.Kick)
	}

	// Let any tick that was already in flight at Stop land before sampling.
	time.Sleep(150 * time.Millisecond)
	count := sounder.count()
	time.Sleep(200 * time.Millisecond)
	if sounder.count() != count {
		t.Error("triggers kept arriving after Stop")
	}
}

func TestPlayWhilePlayingIsNoOp(t *testing.T) {
	sounder := &mockSounder{}
	eng := New(sounder)
	g := fastGroove(t)

	if err := eng.Play(g); err != nil {
		t.Fatalf("Play: %v", err)
	}
	defer eng.Stop()

	other := fastGroove(t)
	other.Tempo = 200
	if err := eng.Play(other); err != nil {
		t.Fatalf("second Play: %v", err)
	}
	if got := eng.State().Groove.Tempo; got != 400 {
		t.Errorf("second Play replaced the snapshot: tempo %d, want 400", got)
	}
}

func TestPlayValidation(t *testing.T) {
	eng := New(&mockSounder{})

	var terr *TimingError
	if err := eng.Play(nil); !errors.As(err, &terr) {
		t.Errorf("Play(nil) error = %v, want *TimingError", err)
	}

	g := fastGroove(t)
	g.Tempo = 1000
	if err := eng.Play(g); !errors.As(err, &terr) {
		t.Errorf("Play with wild tempo error = %v, want *TimingError", err)
	}
	if eng.Playing() {
		t.Error("failed Play should leave the engine stopped")
	}
}

func TestUpdateGrooveWhileStopped(t *testing.T) {
	eng := New(&mockSounder{})
	g := fastGroove(t)

	if err := eng.UpdateGroove(g); err != nil {
		t.Fatalf("UpdateGroove: %v", err)
	}
	if eng.Playing() {
		t.Error("UpdateGroove on a stopped engine must not start playback")
	}
	if eng.State().Groove != g {
		t.Error("snapshot was not installed")
	}
}

func TestUpdateGrooveLiveKeepsPlaying(t *testing.T) {
	sounder := &mockSounder{}
	eng := New(sounder)
	g := fastGroove(t)

	if err := eng.Play(g); err != nil {
		t.Fatalf("Play: %v", err)
	}
	defer eng.Stop()

	time.Sleep(100 * time.Millisecond)

	slower, err := g.SetTempo(300)
	if err != nil {
		t.Fatalf("SetTempo: %v", err)
	}
	if err := eng.UpdateGroove(slower); err != nil {
		t.Fatalf("UpdateGroove: %v", err)
	}
	if !eng.Playing() {
		t.Error("same-layout update must not stop the transport")
	}
	if got := eng.State().Groove.Tempo; got != 300 {
		t.Errorf("snapshot tempo = %d, want 300", got)
	}
}

func TestUpdateGrooveLayoutChangeStops(t *testing.T) {
	sounder := &mockSounder{}
	eng := New(sounder)
	g := fastGroove(t)

	if err := eng.Play(g); err != nil {
		t.Fatalf("Play: %v", err)
	}

	longer, err := g.SetMeasures(2)
	if err != nil {
		t.Fatalf("SetMeasures: %v", err)
	}
	if err := eng.UpdateGroove(longer); err != ErrLayoutChanged {
		t.Fatalf("UpdateGroove error = %v, want ErrLayoutChanged", err)
	}
	if eng.Playing() {
		t.Error("layout change must stop the transport")
	}
	if eng.State().Groove != longer {
		t.Error("new groove should still be installed for the next run")
	}
}

func TestStaleRunExitsAfterRestart(t *testing.T) {
	sounder := &mockSounder{}
	eng := New(sounder)
	g := fastGroove(t)

	if err := eng.Play(g); err != nil {
		t.Fatalf("Play: %v", err)
	}
	defer eng.Stop()

	// A tick goroutine whose stop channel has been superseded by a restart
	// must exit without touching position, even though playing is true.
	stale := make(chan struct{})
	done := make(chan struct{})
	go func() {
		eng.run(stale, time.Now())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("superseded run goroutine kept ticking")
	}
	if !eng.Playing() {
		t.Error("current run should still be playing")
	}
}

func TestSubscribeReceivesLifecycle(t *testing.T) {
	sounder := &mockSounder{}
	eng := New(sounder)
	events := eng.Subscribe()
	defer eng.Unsubscribe(events)

	g := fastGroove(t)
	if err := eng.Play(g); err != nil {
		t.Fatalf("Play: %v", err)
	}

	seen := map[EventKind]bool{}
	deadline := time.After(2 * time.Second)
	for !(seen[EventStarted] && seen[EventTick] && seen[EventLoop]) {
		select {
		case ev := <-events:
			seen[ev.Kind] = true
			if ev.Kind == EventTick && (ev.Position < 0 || ev.Position >= g.TotalPositions()) {
				t.Errorf("tick position %d out of range", ev.Position)
			}
		case <-deadline:
			t.Fatalf("timed out waiting for lifecycle events, saw %v", seen)
		}
	}

	eng.Stop()
	deadline = time.After(time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Kind == EventStopped {
				return
			}
		case <-deadline:
			t.Fatal("no stopped event after Stop")
		}
	}
}

func TestFailingSounderDoesNotHaltPlayback(t *testing.T) {
	sounder := &mockSounder{fail: true}
	eng := New(sounder)
	g := fastGroove(t)

	if err := eng.Play(g); err != nil {
		t.Fatalf("Play: %v", err)
	}
	time.Sleep(300 * time.Millisecond)

	if !eng.Playing() {
		t.Error("trigger failures must not stop the transport")
	}
	if sounder.count() < 2 {
		t.Errorf("expected repeated trigger attempts, got %d", sounder.count())
	}
	eng.Stop()
}

func TestPlayPreview(t *testing.T) {
	sounder := &mockSounder{}
	eng := New(sounder)

	eng.PlayPreview(groove.SnareGhost)
	if sounder.count() != 1 {
		t.Fatalf("preview triggers = %d, want 1", sounder.count())
	}
	trig, _ := sounder.last()
	if trig.voice != groove.SnareGhost {
		t.Errorf("preview voice = %s, want %s", trig.voice, groove.SnareGhost)
	}
	if trig.velocity != groove.SnareGhost.Velocity() {
		t.Errorf("preview velocity = %d, want %d", trig.velocity, groove.SnareGhost.Velocity())
	}
	if eng.Playing() {
		t.Error("preview must not start the transport")
	}

	eng.PlayPreview(groove.Voice(99))
	if sounder.count() != 1 {
		t.Error("unknown voice preview should be ignored")
	}
}

func TestStartTimeSync(t *testing.T) {
	g, err := groove.New(120, 0, theory.TimeSignature{Beats: 4, NoteValue: 4}, theory.Div16, 1)
	if err != nil {
		t.Fatalf("groove.New: %v", err)
	}

	epoch := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	beat := 500 * time.Millisecond // one beat at 120 BPM

	tests := []struct {
		name string
		mode SyncMode
		now  time.Time
		want time.Time
	}{
		{"start mode is immediate", SyncStart, epoch.Add(123 * time.Millisecond), epoch.Add(123 * time.Millisecond)},
		{"beat mode waits for next beat", SyncBeat, epoch.Add(200 * time.Millisecond), epoch.Add(beat)},
		{"beat mode mid-run", SyncBeat, epoch.Add(1700 * time.Millisecond), epoch.Add(4 * beat)},
		{"measure mode waits for next measure", SyncMeasure, epoch.Add(700 * time.Millisecond), epoch.Add(4 * beat)},
		{"measure mode later", SyncMeasure, epoch.Add(2500 * time.Millisecond), epoch.Add(8 * beat)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := New(&mockSounder{})
			eng.epoch = epoch
			eng.now = func() time.Time { return tt.now }
			eng.SetSyncMode(tt.mode)

			if got := eng.startTime(g); !got.Equal(tt.want) {
				t.Errorf("startTime = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSwingDelaysOffbeatTriggers(t *testing.T) {
	sounder := &mockSounder{}
	eng := New(sounder)

	g, err := groove.New(400, 100, theory.TimeSignature{Beats: 2, NoteValue: 4}, theory.Div8, 1)
	if err != nil {
		t.Fatalf("groove.New: %v", err)
	}
	for pos := range g.Notes[groove.Kick] {
		g.Notes[groove.Kick][pos] = true
	}

	if err := eng.Play(g); err != nil {
		t.Fatalf("Play: %v", err)
	}
	time.Sleep(400 * time.Millisecond)
	eng.Stop()

	sounder.mu.Lock()
	triggers := append([]mockTrigger(nil), sounder.triggers...)
	sounder.mu.Unlock()
	if len(triggers) < 3 {
		t.Fatalf("expected at least 3 triggers, got %d", len(triggers))
	}

	interval := TickInterval(g.Tempo, g.Division)
	delay := SwingDelay(g.Swing, interval)
	// Gaps alternate: straight->swung is interval+delay, swung->straight is
	// interval-delay. Scheduled times are exact, so no tolerance is needed
	// beyond distinguishing the two cases.
	for i := 1; i < len(triggers); i++ {
		gap := triggers[i].at.Sub(triggers[i-1].at)
		if gap != interval+delay && gap != interval-delay {
			t.Errorf("gap %d = %v, want %v or %v", i, gap, interval+delay, interval-delay)
		}
	}
}
