package fleet

// Outcome records what one snapshot pass did to one instance.
type Outcome struct {
	InstanceID string `json:"instanceId" yaml:"instanceId"`

	// StoppedByRun is true when this run issued the stop.
	StoppedByRun bool `json:"stoppedByRun" yaml:"stoppedByRun"`

	// Snapshots maps volume id to the id of the snapshot created for it.
	Snapshots map[string]string `json:"snapshots,omitempty" yaml:"snapshots,omitempty"`

	// FailedVolumes lists volumes whose snapshot request was rejected.
	FailedVolumes []string `json:"failedVolumes,omitempty" yaml:"failedVolumes,omitempty"`

	Restarted bool `json:"restarted" yaml:"restarted"`

	// Err is set when the instance could not be processed at all,
	// e.g. the stop was rejected or the volume listing failed.
	Err error `json:"-" yaml:"-"`
}

// NewOutcome returns an empty outcome for the instance.
func NewOutcome(instanceID string) *Outcome {
	return &Outcome{
		InstanceID: instanceID,
		Snapshots:  make(map[string]string),
	}
}

// RecordSnapshot notes a successfully requested snapshot.
func (o *Outcome) RecordSnapshot(volumeID, snapshotID string) {
	o.Snapshots[volumeID] = snapshotID
}

// RecordFailure notes a volume whose snapshot could not be created.
func (o *Outcome) RecordFailure(volumeID string) {
	o.FailedVolumes = append(o.FailedVolumes, volumeID)
}

// RestartOwed reports whether the instance must be started again: it was
// stopped by this run and every volume snapshot was accepted.
func (o *Outcome) RestartOwed() bool {
	return o.StoppedByRun && len(o.FailedVolumes) == 0 && o.Err == nil
}

// Failed reports whether anything went wrong for this instance.
func (o *Outcome) Failed() bool {
	return o.Err != nil || len(o.FailedVolumes) > 0
}
