package download

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidSpec = errors.New("invalid wait spec")
	ErrTimeout     = errors.New("timed out waiting for download")
	// ErrNotRegular is reported when the target path names something other
	// than a regular file, e.g. a directory.
	ErrNotRegular = errors.New("not a regular file")
)

// TimeoutError is returned when the file did not stabilize within the
// spec's timeout. Last is nil if the file never appeared.
type TimeoutError struct {
	Path    string
	Timeout time.Duration
	Elapsed time.Duration
	Last    *Observation
}

func (e *TimeoutError) Error() string {
	last := "never appeared"
	if e.Last != nil {
		last = "last seen " + e.Last.String()
	}
	return fmt.Sprintf("download %s not stable after %v (elapsed %v): %s",
		e.Path, e.Timeout, e.Elapsed.Round(time.Millisecond), last)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// IOError wraps a filesystem failure other than "not found".
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
