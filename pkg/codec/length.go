package codec

import "fmt"

// URL length thresholds. Some messaging platforms and older browsers start
// truncating shared links past the soft limit; past the hard limit failure
// is near-certain.
const (
	SoftURLLimit = 2048
	HardURLLimit = 8192
)

// LengthStatus classifies an encoded URL against the share-safety thresholds.
type LengthStatus int

const (
	LengthOK LengthStatus = iota
	LengthWarning
	LengthError
)

// String returns the status as a lowercase word for logs and API responses.
func (s LengthStatus) String() string {
	switch s {
	case LengthOK:
		return "ok"
	case LengthWarning:
		return "warning"
	default:
		return "error"
	}
}

// LengthReport is the result of ValidateURLLength.
type LengthReport struct {
	Status  LengthStatus `json:"status"`
	Length  int          `json:"length"`
	Message string       `json:"message"`
}

// ValidateURLLength classifies a fully encoded URL. URLs under the soft
// limit are fine to share anywhere; between soft and hard some platforms may
// truncate; beyond hard the link will almost certainly break.
func ValidateURLLength(fullURL string) LengthReport {
	n := len(fullURL)
	switch {
	case n <= SoftURLLimit:
		return LengthReport{
			Status:  LengthOK,
			Length:  n,
			Message: "URL is safe to share",
		}
	case n <= HardURLLimit:
		return LengthReport{
			Status:  LengthWarning,
			Length:  n,
			Message: fmt.Sprintf("URL exceeds %d characters; some platforms may truncate it", SoftURLLimit),
		}
	default:
		return LengthReport{
			Status:  LengthError,
			Length:  n,
			Message: fmt.Sprintf("URL exceeds %d characters and will likely break when shared", HardURLLimit),
		}
	}
}
