// Package groove defines the immutable drum-pattern value type and its
// compatibility-checked mutation helpers.
package groove

import (
	"fmt"

	"github.com/groovekit/groovekit/pkg/theory"
)

// Tempo bounds in beats per minute.
const (
	MinTempo = 20
	MaxTempo = 400
)

// ConstructionError reports an invalid or incompatible field combination
// passed directly to New rather than through a mutation helper.
type ConstructionError struct {
	Field  string
	Reason string
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("invalid groove: %s: %s", e.Field, e.Reason)
}

// Groove is the full serializable description of a drum pattern. Values are
// immutable once constructed: every mutation helper returns a fresh snapshot
// and never touches the receiver, which is what lets the engine swap
// snapshots mid-playback without locking note arrays.
type Groove struct {
	Title    string
	Author   string
	Comments string

	Tempo    int
	Swing    int
	TimeSig  theory.TimeSignature
	Division theory.Division
	Measures int

	// Notes maps each voice to its hit pattern. Every array has length
	// NotesPerMeasure(Division, TimeSig) * Measures.
	Notes map[Voice][]bool
}

// New validates the fields and builds a groove with empty note arrays.
func New(tempo, swing int, ts theory.TimeSignature, d theory.Division, measures int) (*Groove, error) {
	if tempo < MinTempo || tempo > MaxTempo {
		return nil, &ConstructionError{Field: "tempo", Reason: fmt.Sprintf("%d outside %d-%d", tempo, MinTempo, MaxTempo)}
	}
	if !ts.Valid() {
		return nil, &ConstructionError{Field: "timeSignature", Reason: fmt.Sprintf("%s unsupported", ts)}
	}
	if !d.Known() {
		return nil, &ConstructionError{Field: "division", Reason: fmt.Sprintf("%d not a known division", int(d))}
	}
	if !theory.IsDivisionCompatible(d, ts.Beats, ts.NoteValue) {
		return nil, &ConstructionError{Field: "division", Reason: fmt.Sprintf("%d incompatible with %s", int(d), ts)}
	}
	if measures < 1 {
		return nil, &ConstructionError{Field: "measures", Reason: "at least one measure required"}
	}
	if swing < 0 || swing > 100 {
		return nil, &ConstructionError{Field: "swing", Reason: fmt.Sprintf("%d outside 0-100", swing)}
	}
	if swing != 0 && !theory.SupportsSwing(d) {
		return nil, &ConstructionError{Field: "swing", Reason: fmt.Sprintf("division %d does not support swing", int(d))}
	}

	g := &Groove{
		Tempo:    tempo,
		Swing:    swing,
		TimeSig:  ts,
		Division: d,
		Measures: measures,
		Notes:    make(map[Voice][]bool, NumVoices),
	}
	total := g.TotalPositions()
	for _, v := range Voices() {
		g.Notes[v] = make([]bool, total)
	}
	return g, nil
}

// Default returns the editor's starting groove: one empty measure of
// sixteenth notes in 4/4 at 80 BPM.
func Default() *Groove {
	g, err := New(80, 0, theory.TimeSignature{Beats: 4, NoteValue: 4}, theory.Div16, 1)
	if err != nil {
		panic(err) // the default template is always constructible
	}
	return g
}

// NotesPerMeasure returns the subdivision count of one measure.
func (g *Groove) NotesPerMeasure() int {
	return theory.NotesPerMeasure(g.Division, g.TimeSig)
}

// TotalPositions returns the length of every voice array.
func (g *Groove) TotalPositions() int {
	return g.NotesPerMeasure() * g.Measures
}

// ActiveVoices returns the voices at position pos with a hit, in canonical
// order.
func (g *Groove) ActiveVoices(pos int) []Voice {
	var out []Voice
	for _, v := range Voices() {
		if notes := g.Notes[v]; pos >= 0 && pos < len(notes) && notes[pos] {
			out = append(out, v)
		}
	}
	return out
}

// clone copies the groove including note arrays.
func (g *Groove) clone() *Groove {
	out := *g
	out.Notes = make(map[Voice][]bool, len(g.Notes))
	for v, notes := range g.Notes {
		cp := make([]bool, len(notes))
		copy(cp, notes)
		out.Notes[v] = cp
	}
	return &out
}

// SetTitle returns a copy with the title replaced.
func (g *Groove) SetTitle(title string) *Groove {
	out := g.clone()
	out.Title = title
	return out
}

// SetAuthor returns a copy with the author replaced.
func (g *Groove) SetAuthor(author string) *Groove {
	out := g.clone()
	out.Author = author
	return out
}

// SetComments returns a copy with the comments replaced.
func (g *Groove) SetComments(comments string) *Groove {
	out := g.clone()
	out.Comments = comments
	return out
}

// SetTempo returns a copy at the new tempo.
func (g *Groove) SetTempo(tempo int) (*Groove, error) {
	if tempo < MinTempo || tempo > MaxTempo {
		return nil, &ConstructionError{Field: "tempo", Reason: fmt.Sprintf("%d outside %d-%d", tempo, MinTempo, MaxTempo)}
	}
	out := g.clone()
	out.Tempo = tempo
	return out, nil
}

// SetSwing returns a copy with the new swing amount. Swing on a division
// that cannot be swung is forced to zero rather than rejected, matching the
// editor behavior of graying the control out.
func (g *Groove) SetSwing(swing int) (*Groove, error) {
	if swing < 0 || swing > 100 {
		return nil, &ConstructionError{Field: "swing", Reason: fmt.Sprintf("%d outside 0-100", swing)}
	}
	out := g.clone()
	if theory.SupportsSwing(out.Division) {
		out.Swing = swing
	} else {
		out.Swing = 0
	}
	return out, nil
}

// SetDivision returns a copy at the new division, resizing every voice array
// measure by measure and zeroing swing when the new division cannot swing.
func (g *Groove) SetDivision(d theory.Division) (*Groove, error) {
	if !d.Known() {
		return nil, &ConstructionError{Field: "division", Reason: fmt.Sprintf("%d not a known division", int(d))}
	}
	if !theory.IsDivisionCompatible(d, g.TimeSig.Beats, g.TimeSig.NoteValue) {
		return nil, &ConstructionError{Field: "division", Reason: fmt.Sprintf("%d incompatible with %s", int(d), g.TimeSig)}
	}
	out := g.clone()
	oldPer := out.NotesPerMeasure()
	out.Division = d
	newPer := out.NotesPerMeasure()
	for v, notes := range out.Notes {
		out.Notes[v] = theory.ResizeNotes(notes, oldPer, newPer)
	}
	if !theory.SupportsSwing(d) {
		out.Swing = 0
	}
	return out, nil
}

// SetTimeSignature returns a copy in the new meter. If the current division
// is incompatible with the new signature the groove falls back to
// theory.DefaultDivision; all voice arrays are resized together so they can
// never end up with mismatched lengths.
func (g *Groove) SetTimeSignature(ts theory.TimeSignature) (*Groove, error) {
	if !ts.Valid() {
		return nil, &ConstructionError{Field: "timeSignature", Reason: fmt.Sprintf("%s unsupported", ts)}
	}
	out := g.clone()
	oldPer := out.NotesPerMeasure()
	out.TimeSig = ts
	if !theory.IsDivisionCompatible(out.Division, ts.Beats, ts.NoteValue) {
		out.Division = theory.DefaultDivision(ts.Beats, ts.NoteValue)
	}
	newPer := out.NotesPerMeasure()
	for v, notes := range out.Notes {
		out.Notes[v] = theory.ResizeNotes(notes, oldPer, newPer)
	}
	if !theory.SupportsSwing(out.Division) {
		out.Swing = 0
	}
	return out, nil
}

// SetMeasures returns a copy with the measure count changed. Added measures
// start empty; removed measures drop their content.
func (g *Groove) SetMeasures(measures int) (*Groove, error) {
	if measures < 1 {
		return nil, &ConstructionError{Field: "measures", Reason: "at least one measure required"}
	}
	out := g.clone()
	per := out.NotesPerMeasure()
	total := per * measures
	for v, notes := range out.Notes {
		next := make([]bool, total)
		copy(next, notes)
		out.Notes[v] = next
	}
	out.Measures = measures
	return out, nil
}

// ToggleNote returns a copy with one position of one voice flipped.
func (g *Groove) ToggleNote(v Voice, pos int) (*Groove, error) {
	if !v.Valid() {
		return nil, &ConstructionError{Field: "voice", Reason: fmt.Sprintf("%d not a known voice", int(v))}
	}
	if pos < 0 || pos >= g.TotalPositions() {
		return nil, &ConstructionError{Field: "position", Reason: fmt.Sprintf("%d outside 0-%d", pos, g.TotalPositions()-1)}
	}
	out := g.clone()
	out.Notes[v][pos] = !out.Notes[v][pos]
	return out, nil
}

// Equal reports observable equality of two grooves, including note arrays.
func (g *Groove) Equal(other *Groove) bool {
	if g == nil || other == nil {
		return g == other
	}
	if g.Title != other.Title || g.Author != other.Author || g.Comments != other.Comments {
		return false
	}
	if g.Tempo != other.Tempo || g.Swing != other.Swing || g.TimeSig != other.TimeSig ||
		g.Division != other.Division || g.Measures != other.Measures {
		return false
	}
	for _, v := range Voices() {
		a, b := g.Notes[v], other.Notes[v]
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
	}
	return true
}
