// Package synth is a Sounder that synthesizes short percussive hits through
// the system audio device, so playback is audible with no MIDI hardware and
// no sample files.
package synth

import (
	"math"
	"math/rand"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/groovekit/groovekit/pkg/groove"
)

const sampleRate = beep.SampleRate(44100)

// Synth renders each voice from a pre-computed mono buffer.
type Synth struct {
	voices map[groove.Voice][]float64
}

// New initializes the speaker and synthesizes all voice buffers.
func New() (*Synth, error) {
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/20)); err != nil {
		return nil, err
	}
	s := &Synth{voices: make(map[groove.Voice][]float64, groove.NumVoices)}
	for _, v := range groove.Voices() {
		s.voices[v] = renderVoice(v)
	}
	return s, nil
}

// Trigger plays the voice buffer at the scheduled instant. The wait runs off
// the caller's goroutine.
func (s *Synth) Trigger(v groove.Voice, at time.Time, velocity uint8) error {
	buf := s.voices[v]
	gain := float64(velocity) / 127.0
	go func() {
		if wait := time.Until(at); wait > 0 {
			time.Sleep(wait)
		}
		speaker.Play(&bufferStreamer{data: buf, gain: gain})
	}()
	return nil
}

// bufferStreamer streams a mono buffer to both channels once.
type bufferStreamer struct {
	data []float64
	gain float64
	pos  int
}

func (b *bufferStreamer) Stream(samples [][2]float64) (int, bool) {
	if b.pos >= len(b.data) {
		return 0, false
	}
	n := 0
	for i := range samples {
		if b.pos >= len(b.data) {
			break
		}
		s := b.data[b.pos] * b.gain
		samples[i][0] = s
		samples[i][1] = s
		b.pos++
		n++
	}
	return n, true
}

func (b *bufferStreamer) Err() error { return nil }

// renderVoice synthesizes the characteristic hit for a voice: tuned decaying
// sines for kick and toms, noise bursts for snare and cymbals, a clangy
// two-partial tone for bells.
func renderVoice(v groove.Voice) []float64 {
	switch v {
	case groove.Kick:
		return sineHit(55, 0.25, 1.0)
	case groove.Tom1:
		return sineHit(220, 0.20, 0.8)
	case groove.Tom2:
		return sineHit(165, 0.22, 0.8)
	case groove.FloorTom:
		return sineHit(110, 0.25, 0.85)
	case groove.Snare:
		return mix(noiseHit(0.18, 0.7), sineHit(185, 0.12, 0.4))
	case groove.SnareGhost:
		return mix(noiseHit(0.10, 0.25), sineHit(185, 0.08, 0.15))
	case groove.CrossStick:
		return sineHit(820, 0.05, 0.5)
	case groove.HiHatClosed:
		return brightNoiseHit(0.06, 0.5)
	case groove.HiHatAccent:
		return brightNoiseHit(0.08, 0.75)
	case groove.HiHatFoot:
		return brightNoiseHit(0.05, 0.35)
	case groove.HiHatOpen:
		return brightNoiseHit(0.45, 0.5)
	case groove.Crash:
		return brightNoiseHit(0.9, 0.8)
	case groove.Stacker:
		return brightNoiseHit(0.15, 0.6)
	case groove.Ride:
		return mix(brightNoiseHit(0.7, 0.25), sineHit(330, 0.5, 0.2))
	case groove.RideBell:
		return mix(sineHit(620, 0.3, 0.5), sineHit(930, 0.25, 0.3))
	case groove.Cowbell:
		return mix(sineHit(540, 0.18, 0.5), sineHit(810, 0.15, 0.4))
	}
	return sineHit(440, 0.1, 0.5)
}

// sineHit renders a sine at freq with an exponential decay over dur seconds.
func sineHit(freq float64, dur float64, amp float64) []float64 {
	n := int(float64(sampleRate) * dur)
	out := make([]float64, n)
	for i := range out {
		t := float64(i) / float64(sampleRate)
		env := math.Exp(-6 * t / dur)
		out[i] = amp * env * math.Sin(2*math.Pi*freq*t)
	}
	return out
}

// noiseHit renders decaying white noise.
func noiseHit(dur float64, amp float64) []float64 {
	n := int(float64(sampleRate) * dur)
	out := make([]float64, n)
	for i := range out {
		t := float64(i) / float64(sampleRate)
		env := math.Exp(-7 * t / dur)
		out[i] = amp * env * (rand.Float64()*2 - 1)
	}
	return out
}

// brightNoiseHit is noiseHit passed through a one-sample differencer, which
// tilts the spectrum up for hats and cymbals.
func brightNoiseHit(dur float64, amp float64) []float64 {
	raw := noiseHit(dur, amp)
	out := make([]float64, len(raw))
	for i := 1; i < len(raw); i++ {
		out[i] = (raw[i] - raw[i-1]) * 0.9
	}
	return out
}

// mix sums two buffers into the longer one's length.
func mix(a, b []float64) []float64 {
	if len(b) > len(a) {
		a, b = b, a
	}
	out := make([]float64, len(a))
	copy(out, a)
	for i := range b {
		out[i] += b[i]
	}
	return out
}
