package fleet

import (
	"time"
)

// ProjectTagKey is the tag key used to group instances into projects.
const ProjectTagKey = "Project"

// NoProject is reported for instances without a Project tag.
const NoProject = "<no project>"

// PowerState is the EC2 instance state name.
type PowerState string

const (
	StatePending      PowerState = "pending"
	StateRunning      PowerState = "running"
	StateStopping     PowerState = "stopping"
	StateStopped      PowerState = "stopped"
	StateShuttingDown PowerState = "shutting-down"
	StateTerminated   PowerState = "terminated"
)

// String returns the string representation of the power state.
func (s PowerState) String() string {
	return string(s)
}

// RequiresStop reports whether an instance in this state has to be stopped
// before its volumes can be snapshotted.
func (s PowerState) RequiresStop() bool {
	return s == StateRunning || s == StatePending
}

// AwaitsStop reports whether the instance is already on its way down and
// only needs to be waited on.
func (s PowerState) AwaitsStop() bool {
	return s == StateStopping
}

// IsValid returns true if the state is one of the known power states.
func (s PowerState) IsValid() bool {
	switch s {
	case StatePending, StateRunning, StateStopping, StateStopped, StateShuttingDown, StateTerminated:
		return true
	default:
		return false
	}
}

// SnapshotState is the EBS snapshot state.
type SnapshotState string

const (
	SnapshotPending   SnapshotState = "pending"
	SnapshotCompleted SnapshotState = "completed"
	SnapshotError     SnapshotState = "error"
)

// String returns the string representation of the snapshot state.
func (s SnapshotState) String() string {
	return string(s)
}

// Instance is a compute instance as observed through the provider.
type Instance struct {
	ID               string            `json:"id" yaml:"id"`
	State            PowerState        `json:"state" yaml:"state"`
	InstanceType     string            `json:"instanceType,omitempty" yaml:"instanceType,omitempty"`
	AvailabilityZone string            `json:"availabilityZone,omitempty" yaml:"availabilityZone,omitempty"`
	PublicDNSName    string            `json:"publicDnsName,omitempty" yaml:"publicDnsName,omitempty"`
	Tags             map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Project returns the value of the Project tag, or NoProject.
func (i Instance) Project() string {
	if v, ok := i.Tags[ProjectTagKey]; ok {
		return v
	}
	return NoProject
}

// Volume is a block storage volume attached to an instance.
type Volume struct {
	ID         string `json:"id" yaml:"id"`
	InstanceID string `json:"instanceId" yaml:"instanceId"`
	State      string `json:"state" yaml:"state"`
	// Size in GiB.
	Size      int32 `json:"size" yaml:"size"`
	Encrypted bool  `json:"encrypted" yaml:"encrypted"`
}

// Snapshot is a point-in-time copy of a volume.
type Snapshot struct {
	ID        string        `json:"id" yaml:"id"`
	VolumeID  string        `json:"volumeId" yaml:"volumeId"`
	State     SnapshotState `json:"state" yaml:"state"`
	Progress  string        `json:"progress" yaml:"progress"`
	StartTime time.Time     `json:"startTime" yaml:"startTime"`
}
