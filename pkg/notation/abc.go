// Package notation transcodes grooves into ABC notation for external
// renderers. Layout (line breaking, spacing) is the renderer's job; this
// package only guarantees that every measure consumes the correct musical
// time and that staves split hands from feet.
package notation

import (
	"fmt"
	"strings"

	"github.com/groovekit/groovekit/pkg/groove"
	"github.com/groovekit/groovekit/pkg/theory"
)

// DefaultMeasuresPerLine is the measure count per printed line. Cursor
// overlays map render coordinates back to positions with this constant, so
// renderers and transcoder must agree on it.
const DefaultMeasuresPerLine = 2

// Options controls transcoding.
type Options struct {
	// MeasuresPerLine overrides DefaultMeasuresPerLine when positive.
	MeasuresPerLine int
}

// RenderOptions is passed through to the external notation renderer. The
// transcoder itself ignores these; they ride along so API callers can hand
// one payload to both sides.
type RenderOptions struct {
	StaffWidth int     `json:"staffWidth"`
	Scale      float64 `json:"scale"`
	Responsive bool    `json:"responsive"`
	Padding    int     `json:"padding"`
}

// abcPitch maps each voice to its percussion-staff pitch. Hands sit on the
// upper stave, feet on the lower.
var abcPitch = map[groove.Voice]string{
	groove.HiHatClosed: "g",
	groove.HiHatOpen:   "^g",
	groove.HiHatAccent: "=g",
	groove.Crash:       "a",
	groove.Stacker:     "^a",
	groove.Ride:        "f",
	groove.RideBell:    "^f",
	groove.Cowbell:     "^e",
	groove.Snare:       "c",
	groove.SnareGhost:  "_c",
	groove.CrossStick:  "^c",
	groove.Tom1:        "e",
	groove.Tom2:        "d",
	groove.FloorTom:    "B",
	groove.Kick:        "F",
	groove.HiHatFoot:   "D",
}

// ToABC renders the groove as a two-voice percussion score. Rests are
// explicit: a position with no active voice still consumes its subdivision.
func ToABC(g *groove.Groove, opts Options) string {
	perLine := opts.MeasuresPerLine
	if perLine <= 0 {
		perLine = DefaultMeasuresPerLine
	}

	var b strings.Builder
	b.WriteString("X:1\n")
	if g.Title != "" {
		fmt.Fprintf(&b, "T:%s\n", g.Title)
	}
	if g.Author != "" {
		fmt.Fprintf(&b, "C:%s\n", g.Author)
	}
	if g.Comments != "" {
		fmt.Fprintf(&b, "N:%s\n", g.Comments)
	}
	b.WriteString("%%flatbeams 1\n")
	fmt.Fprintf(&b, "M:%s\n", g.TimeSig)
	fmt.Fprintf(&b, "L:1/%d\n", unitLength(g.Division))
	b.WriteString("K:C clef=perc\n")
	b.WriteString("V:1 name=\"Hands\" stem=up\n")
	b.WriteString("V:2 name=\"Feet\" stem=down\n")

	for first := 0; first < g.Measures; first += perLine {
		last := first + perLine
		if last > g.Measures {
			last = g.Measures
		}
		writeStaveLine(&b, g, "V:1", false, first, last, last == g.Measures)
		writeStaveLine(&b, g, "V:2", true, first, last, last == g.Measures)
	}
	return b.String()
}

// unitLength picks the ABC unit note so one subdivision is one unit. Triplet
// divisions notate as tuplet groups of the next coarser straight value.
func unitLength(d theory.Division) int {
	if d.Triplet() {
		return int(d) * 2 / 3
	}
	return int(d)
}

// writeStaveLine emits one printed line of one stave: "[V:1] ... | ... |".
func writeStaveLine(b *strings.Builder, g *groove.Groove, voice string, feet bool, first, last int, final bool) {
	fmt.Fprintf(b, "[%s]", voice)
	for m := first; m < last; m++ {
		b.WriteByte(' ')
		writeMeasure(b, g, feet, m)
		if final && m == last-1 {
			b.WriteString(" |]")
		} else {
			b.WriteString(" |")
		}
	}
	b.WriteByte('\n')
}

// writeMeasure emits one measure of one stave, beat by beat.
func writeMeasure(b *strings.Builder, g *groove.Groove, feet bool, measure int) {
	perMeasure := g.NotesPerMeasure()
	perBeat := theory.NotesPerBeat(g.Division, g.TimeSig)
	base := measure * perMeasure

	group := perBeat
	if g.Division.Triplet() {
		group = tupletSize(perBeat)
	}

	for beat := 0; beat < g.TimeSig.Beats; beat++ {
		if beat > 0 {
			b.WriteByte(' ')
		}
		for off := 0; off < perBeat; off++ {
			if g.Division.Triplet() && off%group == 0 {
				b.WriteString(tupletPrefix(group))
			}
			writePosition(b, g, feet, base+beat*perBeat+off)
		}
	}
}

// tupletSize returns the ABC tuplet group size for a triplet beat.
func tupletSize(perBeat int) int {
	if perBeat <= 3 {
		return 3
	}
	return 6
}

// tupletPrefix returns the tuplet marker for a group. "(3" is shorthand for
// 3 notes in the time of 2. Six-note groups need the explicit
// 6-in-the-time-of-4 form: bare "(6" means 6 in the time of 2 and would
// underfill the beat.
func tupletPrefix(group int) string {
	if group == 3 {
		return "(3"
	}
	return "(6:4:6"
}

// writePosition emits the chord, single note or rest at one position.
func writePosition(b *strings.Builder, g *groove.Groove, feet bool, pos int) {
	var pitches []string
	for _, v := range g.ActiveVoices(pos) {
		if v.Foot() != feet {
			continue
		}
		pitches = append(pitches, abcPitch[v])
	}
	switch len(pitches) {
	case 0:
		b.WriteByte('z')
	case 1:
		b.WriteString(pitches[0])
	default:
		b.WriteByte('[')
		for _, p := range pitches {
			b.WriteString(p)
		}
		b.WriteByte(']')
	}
}
