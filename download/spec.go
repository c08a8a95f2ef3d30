// Package download waits for browser downloads to materialize on disk.
//
// A browser reports a click as done long before the file it triggered is
// complete, so the waiter polls the target path until the file exists, is
// non-empty and keeps the same size over a number of consecutive polls.
package download

import (
	"fmt"
	"time"
)

const (
	DefaultTimeout         = 10 * time.Second
	DefaultPollInterval    = 100 * time.Millisecond
	DefaultStabilityChecks = 2
)

// Marker suffixes browsers use for files that are still being written.
const (
	ChromeInProgressSuffix  = ".crdownload"
	FirefoxInProgressSuffix = ".part"
)

// WaitSpec describes a single wait for a downloaded file.
type WaitSpec struct {
	TargetPath      string        `json:"targetPath" yaml:"targetPath"`
	Timeout         time.Duration `json:"timeout" yaml:"timeout"`
	PollInterval    time.Duration `json:"pollInterval" yaml:"pollInterval"`
	StabilityChecks int           `json:"stabilityChecks" yaml:"stabilityChecks"`

	// InProgressSuffixes lists sibling marker files (TargetPath+suffix). While
	// any of them exists the download is not considered stable.
	InProgressSuffixes []string `json:"inProgressSuffixes,omitempty" yaml:"inProgressSuffixes,omitempty"`
}

func NewWaitSpec(targetPath string) WaitSpec {
	return WaitSpec{
		TargetPath:      targetPath,
		Timeout:         DefaultTimeout,
		PollInterval:    DefaultPollInterval,
		StabilityChecks: DefaultStabilityChecks,
	}
}

// WithBrowserMarkers returns a copy of the spec that also watches the Chrome
// and Firefox in-progress markers.
func (s WaitSpec) WithBrowserMarkers() WaitSpec {
	s.InProgressSuffixes = append(append([]string(nil), s.InProgressSuffixes...),
		ChromeInProgressSuffix, FirefoxInProgressSuffix)
	return s
}

func (s WaitSpec) Validate() error {
	switch {
	case s.TargetPath == "":
		return fmt.Errorf("%w: target path is empty", ErrInvalidSpec)
	case s.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive, got %v", ErrInvalidSpec, s.Timeout)
	case s.PollInterval <= 0:
		return fmt.Errorf("%w: poll interval must be positive, got %v", ErrInvalidSpec, s.PollInterval)
	case s.PollInterval >= s.Timeout:
		return fmt.Errorf("%w: poll interval (%v) must be shorter than the timeout (%v)", ErrInvalidSpec, s.PollInterval, s.Timeout)
	case s.StabilityChecks < 1:
		return fmt.Errorf("%w: stability checks must be at least 1, got %d", ErrInvalidSpec, s.StabilityChecks)
	}
	for _, suffix := range s.InProgressSuffixes {
		if suffix == "" {
			return fmt.Errorf("%w: empty in-progress suffix", ErrInvalidSpec)
		}
	}
	return nil
}
