package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/groovekit/groovekit/pkg/codec"
	"github.com/groovekit/groovekit/pkg/config"
	"github.com/groovekit/groovekit/pkg/groove"
	"github.com/groovekit/groovekit/pkg/theory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("unmarshal response %q: %v", w.Body.String(), err)
	}
}

func sampleGroove(t *testing.T) *groove.Groove {
	t.Helper()
	g, err := groove.New(80, 0, theory.TimeSignature{Beats: 4, NoteValue: 4}, theory.Div16, 1)
	if err != nil {
		t.Fatalf("groove.New: %v", err)
	}
	for _, pos := range []int{0, 8} {
		if g, err = g.ToggleNote(groove.Kick, pos); err != nil {
			t.Fatalf("ToggleNote: %v", err)
		}
	}
	return g
}

func TestHealthCheck(t *testing.T) {
	r := NewRouter()
	for _, path := range []string{"/health", "/api/v1/health"} {
		w := doJSON(t, r, http.MethodGet, path, nil)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, w.Code)
		}
		var body map[string]string
		decodeBody(t, w, &body)
		if body["status"] != "healthy" {
			t.Errorf("GET %s status = %q", path, body["status"])
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	r := NewRouter()
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/voices", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("OPTIONS = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow origin = %q, want *", got)
	}
}

func TestListVoices(t *testing.T) {
	w := doJSON(t, NewRouter(), http.MethodGet, "/api/v1/voices", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Voices []struct {
			Code     string `json:"code"`
			Name     string `json:"name"`
			MIDINote uint8  `json:"midiNote"`
			Foot     bool   `json:"foot"`
		} `json:"voices"`
	}
	decodeBody(t, w, &body)
	if len(body.Voices) != groove.NumVoices {
		t.Fatalf("voices = %d, want %d", len(body.Voices), groove.NumVoices)
	}
	if body.Voices[0].Code != groove.HiHatClosed.Code() {
		t.Errorf("first voice = %s, want %s", body.Voices[0].Code, groove.HiHatClosed.Code())
	}
}

func TestListDivisions(t *testing.T) {
	r := NewRouter()

	w := doJSON(t, r, http.MethodGet, "/api/v1/divisions?beats=7&noteValue=8", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var body struct {
		Divisions []int `json:"divisions"`
		Default   int   `json:"default"`
	}
	decodeBody(t, w, &body)
	want := []int{8, 16, 32}
	if len(body.Divisions) != len(want) {
		t.Fatalf("divisions = %v, want %v", body.Divisions, want)
	}
	for i := range want {
		if body.Divisions[i] != want[i] {
			t.Errorf("divisions = %v, want %v", body.Divisions, want)
			break
		}
	}
	if body.Default != 16 {
		t.Errorf("default = %d, want 16", body.Default)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/divisions?beats=1&noteValue=4", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid signature status = %d, want 400", w.Code)
	}
}

func TestEncodeEndpoint(t *testing.T) {
	config.SetString("share.base_url", "https://groovekit.test/groove")
	g := sampleGroove(t)

	w := doJSON(t, NewRouter(), http.MethodPost, "/api/v1/groove/encode", FromGroove(g))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var body struct {
		Query  string             `json:"query"`
		URL    string             `json:"url"`
		Length codec.LengthReport `json:"length"`
	}
	decodeBody(t, w, &body)
	if !strings.HasPrefix(body.URL, "https://groovekit.test/groove?") {
		t.Errorf("url = %q", body.URL)
	}
	if body.Length.Status != codec.LengthOK {
		t.Errorf("length status = %v, want ok", body.Length.Status)
	}

	back, err := codec.Decode(body.Query)
	if err != nil {
		t.Fatalf("decode returned query: %v", err)
	}
	if !g.Equal(back) {
		t.Error("encoded query does not round-trip")
	}
}

func TestEncodeEndpointRejectsBadGroove(t *testing.T) {
	payload := FromGroove(sampleGroove(t))
	payload.Tempo = 1000
	w := doJSON(t, NewRouter(), http.MethodPost, "/api/v1/groove/encode", payload)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestDecodeEndpoint(t *testing.T) {
	r := NewRouter()
	g := sampleGroove(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/groove/decode", gin.H{"query": codec.Encode(g)})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var body GrooveJSON
	decodeBody(t, w, &body)
	back, err := body.ToGroove()
	if err != nil {
		t.Fatalf("ToGroove: %v", err)
	}
	if !g.Equal(back) {
		t.Error("decode endpoint changed the groove")
	}

	w = doJSON(t, r, http.MethodPost, "/api/v1/groove/decode", gin.H{"query": "utm_source=x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-groove query status = %d, want 400", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/v1/groove/decode", gin.H{"query": "TimeSig=4/4&Div=16"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("incomplete query status = %d, want 400", w.Code)
	}
}

func TestABCEndpoint(t *testing.T) {
	g := sampleGroove(t)
	w := doJSON(t, NewRouter(), http.MethodPost, "/api/v1/groove/abc", gin.H{
		"groove":          FromGroove(g),
		"measuresPerLine": 1,
		"render":          gin.H{"staffWidth": 600, "scale": 1.2, "responsive": true, "padding": 8},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var body struct {
		ABC             string          `json:"abc"`
		MeasuresPerLine int             `json:"measuresPerLine"`
		Render          json.RawMessage `json:"render"`
	}
	decodeBody(t, w, &body)
	if !strings.Contains(body.ABC, "K:C clef=perc") {
		t.Errorf("abc output missing percussion clef:\n%s", body.ABC)
	}
	if body.MeasuresPerLine != 1 {
		t.Errorf("measuresPerLine = %d, want 1", body.MeasuresPerLine)
	}
	if len(body.Render) == 0 {
		t.Error("render options were not echoed")
	}
}

func TestMIDIEndpoint(t *testing.T) {
	g := sampleGroove(t).SetTitle("Kick Check")
	w := doJSON(t, NewRouter(), http.MethodPost, "/api/v1/groove/midi", FromGroove(g))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "audio/midi" {
		t.Errorf("content type = %q, want audio/midi", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "Kick Check.mid") {
		t.Errorf("content disposition = %q", cd)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("MThd")) {
		t.Error("response is not a MIDI file")
	}
}

func TestValidateURLEndpoint(t *testing.T) {
	long := "https://groovekit.test/groove?" + strings.Repeat("x", codec.SoftURLLimit)
	w := doJSON(t, NewRouter(), http.MethodPost, "/api/v1/url/validate", gin.H{"url": long})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var report codec.LengthReport
	decodeBody(t, w, &report)
	if report.Status != codec.LengthWarning {
		t.Errorf("status = %v, want warning", report.Status)
	}
	if report.Length != len(long) {
		t.Errorf("length = %d, want %d", report.Length, len(long))
	}
}

func TestShortenEndpoint(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"short_url": "https://gk.fm/xyz"})
	}))
	defer backend.Close()
	config.SetString("shortener.base_url", backend.URL)

	w := doJSON(t, NewRouter(), http.MethodPost, "/api/v1/url/shorten", gin.H{"url": "https://groovekit.test/groove?Tempo=80"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var body map[string]string
	decodeBody(t, w, &body)
	if body["short_url"] != "https://gk.fm/xyz" {
		t.Errorf("short_url = %q", body["short_url"])
	}
}

func TestShortenEndpointMapsFailures(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer backend.Close()
	config.SetString("shortener.base_url", backend.URL)

	w := doJSON(t, NewRouter(), http.MethodPost, "/api/v1/url/shorten", gin.H{"url": "https://example.com"})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429: %s", w.Code, w.Body.String())
	}
	var body map[string]string
	decodeBody(t, w, &body)
	if body["kind"] != "rate_limited" {
		t.Errorf("kind = %q, want rate_limited", body["kind"])
	}

	config.SetString("shortener.base_url", "")
	w = doJSON(t, NewRouter(), http.MethodPost, "/api/v1/url/shorten", gin.H{"url": "https://example.com"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unconfigured shortener status = %d, want 400", w.Code)
	}
}
