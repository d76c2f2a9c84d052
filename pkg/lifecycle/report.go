package lifecycle

import (
	"github.com/google/uuid"

	"github.com/snapshotalyzer/shotty/pkg/fleet"
)

// Operation names used in reports, logs and metrics.
const (
	OpSnapshot = "snapshot"
	OpStart    = "start"
	OpStop     = "stop"
	OpReboot   = "reboot"
)

// Report summarizes one sweep over an instance set. Per-instance failures
// live in the outcomes; a Report is never turned into an aggregate error.
type Report struct {
	RunID     string           `json:"runId" yaml:"runId"`
	Operation string           `json:"operation" yaml:"operation"`
	Outcomes  []*fleet.Outcome `json:"outcomes" yaml:"outcomes"`

	// ListErr is set when the instance set could not be listed.
	ListErr error `json:"-" yaml:"-"`
}

func newReport(operation string) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		Operation: operation,
	}
}

// Outcome returns the outcome for the instance id, or nil.
func (r *Report) Outcome(instanceID string) *fleet.Outcome {
	for _, o := range r.Outcomes {
		if o.InstanceID == instanceID {
			return o
		}
	}
	return nil
}

// Failed returns the number of instances with a failure.
func (r *Report) Failed() int {
	var n int
	for _, o := range r.Outcomes {
		if o.Failed() {
			n++
		}
	}
	return n
}
