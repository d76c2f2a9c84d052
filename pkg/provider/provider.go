// Package provider defines the boundary between shotty and the cloud API.
//
// The selector and the lifecycle orchestrator only talk to a Provider; the
// EC2 implementation lives in the ec2 subpackage and a deterministic
// in-memory implementation for tests lives in fake.
package provider

import (
	"context"
	"strings"

	"github.com/snapshotalyzer/shotty/pkg/fleet"
)

const (
	// FilterInstanceID is the filter name matching instance ids.
	FilterInstanceID = "instance-id"
	// tagFilterPrefix prefixes tag filter names, e.g. "tag:Project".
	tagFilterPrefix = "tag:"
)

// Filter is a provider-side match predicate. Values under one name are
// alternatives; separate filters must all match.
type Filter struct {
	Name   string
	Values []string
}

// InstanceIDFilter matches the instance with the given id.
func InstanceIDFilter(id string) Filter {
	return Filter{Name: FilterInstanceID, Values: []string{id}}
}

// TagFilter matches instances whose tag key has the given value.
func TagFilter(key, value string) Filter {
	return Filter{Name: tagFilterPrefix + key, Values: []string{value}}
}

// TagKey returns the tag key of a tag filter and true, or false if f is not
// a tag filter.
func (f Filter) TagKey() (string, bool) {
	key, ok := strings.CutPrefix(f.Name, tagFilterPrefix)
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

// Provider exposes the operations shotty needs from the cloud.
type Provider interface {
	// ListInstances returns the instances matching all filters.
	// No filters returns every instance.
	ListInstances(ctx context.Context, filters []Filter) ([]fleet.Instance, error)

	StopInstance(ctx context.Context, id string) error
	StartInstance(ctx context.Context, id string) error
	RebootInstance(ctx context.Context, id string) error

	// WaitUntilStopped blocks until the instance reports stopped.
	WaitUntilStopped(ctx context.Context, id string) error
	// WaitUntilRunning blocks until the instance reports running.
	WaitUntilRunning(ctx context.Context, id string) error

	// ListVolumes returns the volumes attached to the instance.
	ListVolumes(ctx context.Context, instanceID string) ([]fleet.Volume, error)
	// ListSnapshots returns the volume's snapshots, newest first.
	ListSnapshots(ctx context.Context, volumeID string) ([]fleet.Snapshot, error)
	// CreateSnapshot requests a new snapshot of the volume.
	CreateSnapshot(ctx context.Context, volumeID, description string) (fleet.Snapshot, error)
}
