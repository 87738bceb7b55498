// Package export renders grooves as Standard MIDI Files for use in DAWs.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/groovekit/groovekit/pkg/groove"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// ticksPerQuarter is the SMF resolution. 1920 ticks per whole note divides
// evenly by every supported division, triplets included.
const ticksPerQuarter = 480

// percussionChannel is GM channel 10 (0-indexed).
const percussionChannel = 9

// GrooveToSMF renders the groove as a single-track type-0 MIDI file: tempo
// and time-signature meta events, then one note per active voice position on
// the percussion channel, with swing offsets applied to off subdivisions.
func GrooveToSMF(g *groove.Groove) ([]byte, error) {
	if g == nil {
		return nil, errors.New("nil groove")
	}

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(ticksPerQuarter)

	var track smf.Track
	if g.Title != "" {
		track.Add(0, smf.MetaTrackSequenceName(g.Title))
	}
	track.Add(0, smf.MetaTempo(float64(g.Tempo)))

	// MIDI stores the denominator as a power of two.
	denomPower := uint8(0)
	for d := g.TimeSig.NoteValue; d > 1; d /= 2 {
		denomPower++
	}
	track.Add(0, smf.MetaTimeSig(uint8(g.TimeSig.Beats), denomPower, 24, 8))

	ticksPerSub := uint32(ticksPerQuarter * 4 / int(g.Division))
	swingOffset := uint32(0)
	if g.Swing > 0 {
		swingOffset = ticksPerSub / 3 * uint32(g.Swing) / 100
	}
	// Drum hits are one-shots; hold each note for three quarters of a
	// subdivision so adjacent hits on the same note never overlap.
	gate := ticksPerSub * 3 / 4

	type event struct {
		tick uint32
		on   bool
		note uint8
		vel  uint8
	}
	var events []event

	total := g.TotalPositions()
	for pos := 0; pos < total; pos++ {
		tick := uint32(pos) * ticksPerSub
		if swingOffset > 0 && pos%2 == 1 {
			tick += swingOffset
		}
		for _, v := range g.ActiveVoices(pos) {
			events = append(events, event{tick: tick, on: true, note: v.GMNote(), vel: v.Velocity()})
			events = append(events, event{tick: tick + gate, on: false, note: v.GMNote()})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		// note-offs before note-ons at the same tick
		return !events[i].on && events[j].on
	})

	var lastTick uint32
	for _, ev := range events {
		delta := ev.tick - lastTick
		lastTick = ev.tick
		if ev.on {
			track.Add(delta, midi.NoteOn(percussionChannel, ev.note, ev.vel))
		} else {
			track.Add(delta, midi.NoteOff(percussionChannel, ev.note))
		}
	}

	// Pad to the full pattern length so the file loops cleanly.
	endTick := uint32(total) * ticksPerSub
	var endDelta uint32
	if endTick > lastTick {
		endDelta = endTick - lastTick
	}
	track.Close(endDelta)

	if err := s.Add(track); err != nil {
		return nil, fmt.Errorf("failed to add track: %w", err)
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write MIDI: %w", err)
	}
	return buf.Bytes(), nil
}
