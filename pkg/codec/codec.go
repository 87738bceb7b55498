// Package codec serializes grooves to and from shareable URL query strings.
package codec

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/groovekit/groovekit/pkg/groove"
	"github.com/groovekit/groovekit/pkg/theory"
)

// Query parameter keys. Voice patterns use the voice short codes ("CH",
// "SN", ...) as keys.
const (
	keyTitle    = "Title"
	keyAuthor   = "Author"
	keyComments = "Comments"
	keyTempo    = "Tempo"
	keySwing    = "Swing"
	keyTimeSig  = "TimeSig"
	keyDivision = "Div"
	keyMeasures = "Measures"
)

// DecodeError reports a malformed or incomplete URL-encoded groove. Required
// fields are never silently defaulted; only Title, Author and Comments may be
// absent.
type DecodeError struct {
	Param  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode groove: %s: %s", e.Param, e.Reason)
}

// Encode serializes every groove field into a compact query string (without
// the leading "?"). The output is deterministic: fixed key order, then voice
// patterns in canonical voice order. Voices with no hits are omitted and
// decode back to empty arrays, so the round trip is still lossless.
func Encode(g *groove.Groove) string {
	var b strings.Builder

	add := func(key, value string) {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(value))
	}

	if g.Title != "" {
		add(keyTitle, g.Title)
	}
	if g.Author != "" {
		add(keyAuthor, g.Author)
	}
	if g.Comments != "" {
		add(keyComments, g.Comments)
	}
	add(keyTempo, strconv.Itoa(g.Tempo))
	add(keySwing, strconv.Itoa(g.Swing))
	add(keyTimeSig, g.TimeSig.String())
	add(keyDivision, strconv.Itoa(int(g.Division)))
	add(keyMeasures, strconv.Itoa(g.Measures))

	for _, v := range groove.Voices() {
		if pattern, any := encodeNotes(g.Notes[v], g.NotesPerMeasure()); any {
			add(v.Code(), pattern)
		}
	}
	return b.String()
}

// encodeNotes renders a voice array as x/- characters with a "|" separator
// between measures, e.g. "x---x---|x-x-x-x-".
func encodeNotes(notes []bool, perMeasure int) (string, bool) {
	var b strings.Builder
	any := false
	for i, hit := range notes {
		if i > 0 && i%perMeasure == 0 {
			b.WriteByte('|')
		}
		if hit {
			b.WriteByte('x')
			any = true
		} else {
			b.WriteByte('-')
		}
	}
	return b.String(), any
}

// HasGrooveParams cheaply reports whether the query string appears to encode
// a groove at all, without attempting a full decode.
func HasGrooveParams(query string) bool {
	values, err := url.ParseQuery(strings.TrimPrefix(query, "?"))
	if err != nil {
		return false
	}
	return values.Has(keyTimeSig) && values.Has(keyDivision)
}

// Decode parses a query string (with or without a leading "?") back into a
// groove. Missing or malformed required fields yield a *DecodeError.
func Decode(query string) (*groove.Groove, error) {
	values, err := url.ParseQuery(strings.TrimPrefix(query, "?"))
	if err != nil {
		return nil, &DecodeError{Param: "query", Reason: err.Error()}
	}

	tempo, err := requiredInt(values, keyTempo)
	if err != nil {
		return nil, err
	}
	swing, err := requiredInt(values, keySwing)
	if err != nil {
		return nil, err
	}
	divRaw, err := requiredInt(values, keyDivision)
	if err != nil {
		return nil, err
	}
	measures, err := requiredInt(values, keyMeasures)
	if err != nil {
		return nil, err
	}
	ts, err := parseTimeSig(values.Get(keyTimeSig))
	if err != nil {
		return nil, err
	}

	g, cerr := groove.New(tempo, swing, ts, theory.Division(divRaw), measures)
	if cerr != nil {
		return nil, &DecodeError{Param: "groove", Reason: cerr.Error()}
	}
	g.Title = values.Get(keyTitle)
	g.Author = values.Get(keyAuthor)
	g.Comments = values.Get(keyComments)

	total := g.TotalPositions()
	for _, v := range groove.Voices() {
		raw := values.Get(v.Code())
		if raw == "" {
			continue
		}
		notes, derr := decodeNotes(v.Code(), raw, total)
		if derr != nil {
			return nil, derr
		}
		g.Notes[v] = notes
	}
	return g, nil
}

func requiredInt(values url.Values, key string) (int, error) {
	raw := values.Get(key)
	if raw == "" {
		return 0, &DecodeError{Param: key, Reason: "missing required parameter"}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &DecodeError{Param: key, Reason: fmt.Sprintf("not an integer: %q", raw)}
	}
	return n, nil
}

func parseTimeSig(raw string) (theory.TimeSignature, error) {
	var ts theory.TimeSignature
	if raw == "" {
		return ts, &DecodeError{Param: keyTimeSig, Reason: "missing required parameter"}
	}
	parts := strings.SplitN(raw, "/", 2)
	if len(parts) != 2 {
		return ts, &DecodeError{Param: keyTimeSig, Reason: fmt.Sprintf("want beats/noteValue, got %q", raw)}
	}
	beats, err := strconv.Atoi(parts[0])
	if err != nil {
		return ts, &DecodeError{Param: keyTimeSig, Reason: fmt.Sprintf("bad beats %q", parts[0])}
	}
	noteValue, err := strconv.Atoi(parts[1])
	if err != nil {
		return ts, &DecodeError{Param: keyTimeSig, Reason: fmt.Sprintf("bad note value %q", parts[1])}
	}
	return theory.TimeSignature{Beats: beats, NoteValue: noteValue}, nil
}

// decodeNotes parses an x/- pattern, ignoring measure separators. The pattern
// must match the groove's total position count exactly.
func decodeNotes(param, raw string, total int) ([]bool, *DecodeError) {
	notes := make([]bool, 0, total)
	for _, r := range raw {
		switch r {
		case 'x', 'X':
			notes = append(notes, true)
		case '-':
			notes = append(notes, false)
		case '|':
			// measure separator, cosmetic only
		default:
			return nil, &DecodeError{Param: param, Reason: fmt.Sprintf("unexpected character %q", r)}
		}
	}
	if len(notes) != total {
		return nil, &DecodeError{Param: param, Reason: fmt.Sprintf("pattern length %d, want %d", len(notes), total)}
	}
	return notes, nil
}
