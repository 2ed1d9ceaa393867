package flights

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"flight-scraper/models"
)

var (
	// ErrCaptureTimeout means the capture window elapsed without a usable JSON payload.
	// The convergence loop recovers from it by falling back to the DOM.
	ErrCaptureTimeout = errors.New("capture: no usable network payload within window")

	// ErrSession marks failures of the browser session itself (navigation error,
	// closed window). They trigger a session recreation and one retry.
	ErrSession = errors.New("browser session failure")
)

// SessionError wraps a failed Session call. errors.Is(err, ErrSession) holds for it.
type SessionError struct {
	Op  string
	URL string
	Err error
}

func (e *SessionError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("session %s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("session %s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

func (e *SessionError) Is(target error) bool { return target == ErrSession }

// ExtractionInsufficient is returned when a QueryKey did not reach its quota
// after every retry. It carries what is needed to diagnose a markup or
// response-shape change.
type ExtractionInsufficient struct {
	Key          models.QueryKey
	URL          string
	Got          int
	Want         int
	Attempts     int
	PayloadCount int
	PayloadURLs  []string
	SkipReasons  map[string]int
	Cause        error
}

func (e *ExtractionInsufficient) Error() string {
	msg := fmt.Sprintf("only got %d/%d flights for %s after %d attempts (URL: %s, %d payloads captured)",
		e.Got, e.Want, e.Key, e.Attempts, e.URL, e.PayloadCount)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ExtractionInsufficient) Unwrap() error { return e.Cause }

// Diagnostics counts why candidates were skipped during one extraction.
type Diagnostics struct {
	SkipReasons map[string]int
}

func newDiagnostics() Diagnostics {
	return Diagnostics{SkipReasons: make(map[string]int)}
}

// Note records one occurrence of reason.
func (d *Diagnostics) Note(reason string) {
	if d.SkipReasons == nil {
		d.SkipReasons = make(map[string]int)
	}
	d.SkipReasons[reason]++
}

// Merge adds the counts of other into d.
func (d *Diagnostics) Merge(other Diagnostics) {
	for reason, n := range other.SkipReasons {
		if d.SkipReasons == nil {
			d.SkipReasons = make(map[string]int)
		}
		d.SkipReasons[reason] += n
	}
}

func (d Diagnostics) String() string {
	if len(d.SkipReasons) == 0 {
		return "none"
	}
	reasons := make([]string, 0, len(d.SkipReasons))
	for r := range d.SkipReasons {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	parts := make([]string, len(reasons))
	for i, r := range reasons {
		parts[i] = fmt.Sprintf("%s=%d", r, d.SkipReasons[r])
	}
	return strings.Join(parts, ", ")
}
