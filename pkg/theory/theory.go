// Package theory provides pure rhythmic math over divisions and time signatures
package theory

import "fmt"

// Division is the number of subdivisions per whole note. Straight divisions
// subdivide each quarter note into powers of two; triplet divisions (12, 24,
// 48) subdivide each quarter note into three, six or twelve.
type Division int

const (
	Div4  Division = 4
	Div8  Division = 8
	Div12 Division = 12 // eighth-note triplets
	Div16 Division = 16
	Div24 Division = 24 // sixteenth-note triplets
	Div32 Division = 32
	Div48 Division = 48 // thirty-second-note triplets
)

// AllDivisions lists every division the system understands, in ascending
// order. Callers that present a subset (e.g. a UI dropdown) still validate
// against the full set.
var AllDivisions = []Division{Div4, Div8, Div12, Div16, Div24, Div32, Div48}

// TimeSignature is a musical meter: Beats per measure over a NoteValue
// (4, 8 or 16).
type TimeSignature struct {
	Beats     int `json:"beats"`
	NoteValue int `json:"noteValue"`
}

const (
	MinBeats = 2
	MaxBeats = 15
)

// String renders the signature as "beats/noteValue".
func (ts TimeSignature) String() string {
	return fmt.Sprintf("%d/%d", ts.Beats, ts.NoteValue)
}

// Valid reports whether the signature is inside the supported ranges.
func (ts TimeSignature) Valid() bool {
	if ts.Beats < MinBeats || ts.Beats > MaxBeats {
		return false
	}
	switch ts.NoteValue {
	case 4, 8, 16:
		return true
	}
	return false
}

// Known reports whether d is one of the enumerated divisions.
func (d Division) Known() bool {
	switch d {
	case Div4, Div8, Div12, Div16, Div24, Div32, Div48:
		return true
	}
	return false
}

// Triplet reports whether d is a triplet-feel division.
func (d Division) Triplet() bool {
	return d == Div12 || d == Div24 || d == Div48
}

// mustKnow panics on out-of-enumeration divisions. Compatibility math on an
// unknown division is a programming error, not a recoverable condition;
// construction paths validate before ever reaching here.
func mustKnow(d Division) {
	if !d.Known() {
		panic(fmt.Sprintf("theory: unknown division %d", int(d)))
	}
}

// NotesPerMeasure returns the total number of subdivisions in one measure of
// ts at division d: (d / noteValue) * beats. The pairing must be compatible;
// use IsDivisionCompatible first when the inputs are not already validated.
func NotesPerMeasure(d Division, ts TimeSignature) int {
	mustKnow(d)
	return int(d) / ts.NoteValue * ts.Beats
}

// NotesPerBeat returns the number of subdivisions in one beat of ts.
func NotesPerBeat(d Division, ts TimeSignature) int {
	mustKnow(d)
	return int(d) / ts.NoteValue
}

// IsDivisionCompatible reports whether d produces a whole number of
// subdivisions per beat of the given signature. Triplet divisions are defined
// only against quarter-note signatures.
func IsDivisionCompatible(d Division, beats, noteValue int) bool {
	mustKnow(d)
	ts := TimeSignature{Beats: beats, NoteValue: noteValue}
	if !ts.Valid() {
		return false
	}
	if int(d)%noteValue != 0 {
		return false
	}
	if d.Triplet() && noteValue != 4 {
		return false
	}
	return true
}

// divisionPreference orders fallback candidates for DefaultDivision. Sixteenth
// notes are the editor's home division, then coarser and finer straight
// divisions, then triplets.
var divisionPreference = []Division{Div16, Div8, Div32, Div4, Div12, Div24, Div48}

// DefaultDivision returns the division to switch to when the current one
// becomes incompatible after a time-signature change. The result is always
// compatible with the new signature.
func DefaultDivision(beats, noteValue int) Division {
	for _, d := range divisionPreference {
		if IsDivisionCompatible(d, beats, noteValue) {
			return d
		}
	}
	// Every valid signature admits at least its own note value as a division,
	// so this is unreachable for validated signatures.
	panic(fmt.Sprintf("theory: no compatible division for %d/%d", beats, noteValue))
}

// CompatibleDivisions returns every enumerated division compatible with the
// signature, in ascending order.
func CompatibleDivisions(beats, noteValue int) []Division {
	var out []Division
	for _, d := range AllDivisions {
		if IsDivisionCompatible(d, beats, noteValue) {
			out = append(out, d)
		}
	}
	return out
}

// SupportsSwing reports whether d can be swung. Swing delays the second
// subdivision of each beat pair, so it needs an even, non-triplet division
// with at least two subdivisions per quarter note.
func SupportsSwing(d Division) bool {
	mustKnow(d)
	if d.Triplet() {
		return false
	}
	return d >= Div8
}

// ResizeNotes maps a per-measure-repeating note sequence onto a new
// notes-per-measure count, one measure at a time. Extra positions are
// truncated; missing positions are padded with false. Measure boundaries are
// preserved: a two-measure pattern stays exactly two measures long.
func ResizeNotes(old []bool, oldPerMeasure, newPerMeasure int) []bool {
	if oldPerMeasure <= 0 || newPerMeasure <= 0 {
		return nil
	}
	measures := len(old) / oldPerMeasure
	out := make([]bool, measures*newPerMeasure)
	for m := 0; m < measures; m++ {
		n := oldPerMeasure
		if newPerMeasure < n {
			n = newPerMeasure
		}
		copy(out[m*newPerMeasure:m*newPerMeasure+n], old[m*oldPerMeasure:m*oldPerMeasure+n])
	}
	return out
}

// CountLabel returns the spoken count syllable for a position within a
// measure: beat numbers on the beat, "e", "+", "a" on straight offbeats,
// "+" and "a" on triplet offbeats, "-" for positions between syllables.
// The label is derived from where the position falls inside its beat, never
// from a table keyed by absolute index.
func CountLabel(posInMeasure int, d Division, ts TimeSignature) string {
	perBeat := NotesPerBeat(d, ts)
	beat := posInMeasure/perBeat + 1
	inBeat := posInMeasure % perBeat

	if inBeat == 0 {
		return fmt.Sprintf("%d", beat)
	}

	if d.Triplet() {
		// Three syllable slots per beat.
		if inBeat*3%perBeat != 0 {
			return "-"
		}
		switch inBeat * 3 / perBeat {
		case 1:
			return "+"
		default:
			return "a"
		}
	}

	// Four syllable slots per beat for straight feels.
	if perBeat < 4 {
		// Only the halfway point exists below sixteenth resolution.
		if inBeat*2 == perBeat {
			return "+"
		}
		return "-"
	}
	if inBeat*4%perBeat != 0 {
		return "-"
	}
	switch inBeat * 4 / perBeat {
	case 1:
		return "e"
	case 2:
		return "+"
	default:
		return "a"
	}
}
