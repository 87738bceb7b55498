// Package midiout is a Sounder that triggers drum voices as General MIDI
// percussion notes on a hardware or virtual MIDI output port.
package midiout

import (
	"fmt"
	"time"

	"github.com/groovekit/groovekit/pkg/groove"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // register MIDI driver
)

// GM percussion lives on MIDI channel 10 (0-indexed 9).
const percussionChannel = 9

// gateTime is how long a percussion note is held before note-off. Drum
// samples are one-shots, so the exact value only matters for synths that
// honor note length.
const gateTime = 50 * time.Millisecond

// Out sends voice triggers to one MIDI output port.
type Out struct {
	port drivers.Out
	send func(gomidi.Message) error
}

// Ports lists the names of the available MIDI output ports.
func Ports() []string {
	var names []string
	for _, p := range gomidi.GetOutPorts() {
		names = append(names, p.String())
	}
	return names
}

// Open connects to the named output port. An empty name picks the first
// available port.
func Open(portName string) (*Out, error) {
	ports := gomidi.GetOutPorts()
	if len(ports) == 0 {
		return nil, fmt.Errorf("no MIDI output ports available")
	}
	for _, p := range ports {
		if portName == "" || p.String() == portName {
			send, err := gomidi.SendTo(p)
			if err != nil {
				return nil, fmt.Errorf("failed to open MIDI port %q: %w", p.String(), err)
			}
			return &Out{port: p, send: send}, nil
		}
	}
	return nil, fmt.Errorf("MIDI output port %q not found", portName)
}

// Trigger schedules a note-on/note-off pair for the voice at the given
// instant. The wait happens off the caller's goroutine so the engine's tick
// loop is never delayed.
func (o *Out) Trigger(v groove.Voice, at time.Time, velocity uint8) error {
	if o.send == nil {
		return fmt.Errorf("MIDI port not open")
	}
	note := v.GMNote()
	go func() {
		if wait := time.Until(at); wait > 0 {
			time.Sleep(wait)
		}
		// Send errors here are fire-and-forget: a failed note must not
		// surface after the tick that scheduled it already completed.
		_ = o.send(gomidi.NoteOn(percussionChannel, note, velocity))
		time.Sleep(gateTime)
		_ = o.send(gomidi.NoteOff(percussionChannel, note))
	}()
	return nil
}

// Close releases the port.
func (o *Out) Close() error {
	o.send = nil
	if o.port != nil {
		return o.port.Close()
	}
	return nil
}
