package download

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// Observation is what a single poll saw at the target path.
type Observation struct {
	Exists     bool      `json:"exists"`
	Size       int64     `json:"size"`
	InProgress bool      `json:"inProgress,omitempty"`
	ObservedAt time.Time `json:"observedAt"`
}

func (o Observation) String() string {
	if !o.Exists {
		return fmt.Sprintf("missing at %s", o.ObservedAt.Format(time.RFC3339Nano))
	}
	state := "present"
	if o.InProgress {
		state = "in progress"
	}
	return fmt.Sprintf("%s, %s (%d bytes) at %s", state, humanize.Bytes(uint64(o.Size)), o.Size,
		o.ObservedAt.Format(time.RFC3339Nano))
}

func (o Observation) fields() logrus.Fields {
	return logrus.Fields{
		"exists":      o.Exists,
		"size":        o.Size,
		"in_progress": o.InProgress,
	}
}

// settled reports whether the observation can count towards stability.
func (o Observation) settled() bool {
	return o.Exists && o.Size > 0 && !o.InProgress
}
