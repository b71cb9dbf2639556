package fetch

import "fmt"

// Kind classifies a single failed fetch attempt. All kinds consume retry
// budget identically; the terminal error reports the last kind seen so the
// operator can tell a flaky network from a broken endpoint.
type Kind string

const (
	KindNetwork    Kind = "network"
	KindHTTPStatus Kind = "status"
	KindParse      Kind = "parse"
)

// AttemptError is one failed attempt inside the retry loop.
type AttemptError struct {
	Kind   Kind
	URL    string
	Status int // non-zero only for KindHTTPStatus
	Err    error
}

func (e *AttemptError) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("fetch %s: http %d", e.URL, e.Status)
	case KindParse:
		return fmt.Sprintf("fetch %s: response is not valid JSON", e.URL)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

func (e *AttemptError) Unwrap() error { return e.Err }

// FetchExhaustedError reports that every retry attempt for one endpoint
// call failed. Callers must treat it as fatal for the run.
type FetchExhaustedError struct {
	URL      string
	Attempts int
	Last     error
}

func (e *FetchExhaustedError) Error() string {
	return fmt.Sprintf("fetch exhausted after %d attempts for %s: %v", e.Attempts, e.URL, e.Last)
}

func (e *FetchExhaustedError) Unwrap() error { return e.Last }
