package groove

// Voice is a distinct drum or cymbal articulation. The enumeration order is
// the canonical ordering used by the codec and the notation transcoder, so it
// must stay stable.
type Voice int

const (
	HiHatClosed Voice = iota
	HiHatOpen
	HiHatAccent
	HiHatFoot
	Crash
	Stacker
	Ride
	RideBell
	Cowbell
	Snare
	SnareGhost
	CrossStick
	Tom1
	Tom2
	FloorTom
	Kick
	numVoices
)

// NumVoices is the size of the voice enumeration.
const NumVoices = int(numVoices)

// voiceInfo carries the static attributes of a voice: its short code (used as
// a URL parameter key), display name, General MIDI percussion note, and which
// stave it belongs to in notation.
type voiceInfo struct {
	code string
	name string
	gm   uint8
	foot bool
}

var voiceTable = [NumVoices]voiceInfo{
	HiHatClosed: {"CH", "Hi-Hat Closed", 42, false},
	HiHatOpen:   {"OH", "Hi-Hat Open", 46, false},
	HiHatAccent: {"AH", "Hi-Hat Accent", 42, false},
	HiHatFoot:   {"FH", "Hi-Hat Foot", 44, true},
	Crash:       {"CR", "Crash", 49, false},
	Stacker:     {"ST", "Stacker", 52, false},
	Ride:        {"RD", "Ride", 51, false},
	RideBell:    {"RB", "Ride Bell", 53, false},
	Cowbell:     {"CB", "Cowbell", 56, false},
	Snare:       {"SN", "Snare", 38, false},
	SnareGhost:  {"GS", "Snare Ghost", 38, false},
	CrossStick:  {"XS", "Cross Stick", 37, false},
	Tom1:        {"T1", "High Tom", 48, false},
	Tom2:        {"T2", "Mid Tom", 45, false},
	FloorTom:    {"T3", "Floor Tom", 43, false},
	Kick:        {"KK", "Kick", 36, true},
}

// Voices returns all voices in canonical order.
func Voices() []Voice {
	out := make([]Voice, NumVoices)
	for i := range out {
		out[i] = Voice(i)
	}
	return out
}

// Valid reports whether v is inside the enumeration.
func (v Voice) Valid() bool {
	return v >= 0 && v < numVoices
}

// Code returns the short stable identifier for the voice ("CH", "SN", ...).
func (v Voice) Code() string {
	return voiceTable[v].code
}

// String returns the human-readable name of the voice.
func (v Voice) String() string {
	return voiceTable[v].name
}

// GMNote returns the General MIDI percussion note for the voice.
func (v Voice) GMNote() uint8 {
	return voiceTable[v].gm
}

// Foot reports whether the voice is played with the feet. Notation places
// foot voices on their own stave.
func (v Voice) Foot() bool {
	return voiceTable[v].foot
}

// Velocity returns the default trigger strength for the voice's
// articulation: ghost notes soft, accents and crashes hard.
func (v Voice) Velocity() uint8 {
	switch v {
	case SnareGhost:
		return 40
	case HiHatAccent, Crash:
		return 120
	default:
		return 100
	}
}

// VoiceByCode resolves a short code back to a voice.
func VoiceByCode(code string) (Voice, bool) {
	for i := 0; i < NumVoices; i++ {
		if voiceTable[i].code == code {
			return Voice(i), true
		}
	}
	return 0, false
}
