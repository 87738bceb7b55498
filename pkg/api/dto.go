package api

import (
	"fmt"

	"github.com/groovekit/groovekit/pkg/groove"
	"github.com/groovekit/groovekit/pkg/theory"
)

// GrooveJSON is the wire representation of a groove. Note arrays are keyed
// by voice short code; voices with no hits may be omitted.
type GrooveJSON struct {
	Title         string               `json:"title,omitempty"`
	Author        string               `json:"author,omitempty"`
	Comments      string               `json:"comments,omitempty"`
	Tempo         int                  `json:"tempo"`
	Swing         int                  `json:"swing"`
	TimeSignature theory.TimeSignature `json:"timeSignature"`
	Division      int                  `json:"division"`
	Measures      int                  `json:"measures"`
	Notes         map[string][]bool    `json:"notes,omitempty"`
}

// ToGroove validates the payload and builds a groove value.
func (j *GrooveJSON) ToGroove() (*groove.Groove, error) {
	g, err := groove.New(j.Tempo, j.Swing, j.TimeSignature, theory.Division(j.Division), j.Measures)
	if err != nil {
		return nil, err
	}
	g.Title = j.Title
	g.Author = j.Author
	g.Comments = j.Comments

	total := g.TotalPositions()
	for code, notes := range j.Notes {
		v, ok := groove.VoiceByCode(code)
		if !ok {
			return nil, fmt.Errorf("unknown voice code %q", code)
		}
		if len(notes) != total {
			return nil, fmt.Errorf("voice %s: pattern length %d, want %d", code, len(notes), total)
		}
		cp := make([]bool, total)
		copy(cp, notes)
		g.Notes[v] = cp
	}
	return g, nil
}

// FromGroove converts a groove into its wire representation. All voices are
// included, silent ones too, so clients never need to special-case absence.
func FromGroove(g *groove.Groove) GrooveJSON {
	notes := make(map[string][]bool, groove.NumVoices)
	for _, v := range groove.Voices() {
		cp := make([]bool, len(g.Notes[v]))
		copy(cp, g.Notes[v])
		notes[v.Code()] = cp
	}
	return GrooveJSON{
		Title:         g.Title,
		Author:        g.Author,
		Comments:      g.Comments,
		Tempo:         g.Tempo,
		Swing:         g.Swing,
		TimeSignature: g.TimeSig,
		Division:      int(g.Division),
		Measures:      g.Measures,
		Notes:         notes,
	}
}
