package fetcher

import (
	"errors"
	"fmt"
)

// ErrNetwork matches every transport-level failure returned by a fetcher.
var ErrNetwork = errors.New("network error")

// NetworkError reports a failed page retrieval. The crawl core never
// retries it; the caller decides whether the branch or traversal fails.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrNetwork) match any NetworkError.
func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }
