package lifecycle

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/snapshotalyzer/shotty/pkg/fleet"
	"github.com/snapshotalyzer/shotty/pkg/provider"
	"github.com/snapshotalyzer/shotty/pkg/selector"
)

// InstanceRow is one line of instance listing output.
type InstanceRow struct {
	ID               string `json:"id" yaml:"id"`
	Type             string `json:"type" yaml:"type"`
	AvailabilityZone string `json:"availabilityZone" yaml:"availabilityZone"`
	State            string `json:"state" yaml:"state"`
	PublicDNSName    string `json:"publicDnsName" yaml:"publicDnsName"`
	Project          string `json:"project" yaml:"project"`
}

// Fields returns the row in column order.
func (r InstanceRow) Fields() []string {
	return []string{r.ID, r.Type, r.AvailabilityZone, r.State, r.PublicDNSName, r.Project}
}

// VolumeRow is one line of volume listing output.
type VolumeRow struct {
	ID         string `json:"id" yaml:"id"`
	InstanceID string `json:"instanceId" yaml:"instanceId"`
	State      string `json:"state" yaml:"state"`
	SizeGiB    int32  `json:"sizeGiB" yaml:"sizeGiB"`
	Encrypted  bool   `json:"encrypted" yaml:"encrypted"`
}

// Fields returns the row in column order.
func (r VolumeRow) Fields() []string {
	encrypted := "Not Encrypted"
	if r.Encrypted {
		encrypted = "Encrypted"
	}
	return []string{r.ID, r.InstanceID, r.State, strconv.Itoa(int(r.SizeGiB)) + "GiB", encrypted}
}

// SnapshotRow is one line of snapshot listing output.
type SnapshotRow struct {
	ID         string    `json:"id" yaml:"id"`
	VolumeID   string    `json:"volumeId" yaml:"volumeId"`
	InstanceID string    `json:"instanceId" yaml:"instanceId"`
	State      string    `json:"state" yaml:"state"`
	Progress   string    `json:"progress" yaml:"progress"`
	StartTime  time.Time `json:"startTime" yaml:"startTime"`
}

// Fields returns the row in column order.
func (r SnapshotRow) Fields() []string {
	return []string{r.ID, r.VolumeID, r.InstanceID, r.State, r.Progress, r.StartTime.Format(time.ANSIC)}
}

// Lister reads instances, volumes and snapshots for the list commands.
// Provider errors end the listing and are returned.
type Lister struct {
	provider provider.Provider
}

// NewLister returns a Lister using p.
func NewLister(p provider.Provider) *Lister {
	return &Lister{provider: p}
}

// Instances emits one row per instance in set.
func (l *Lister) Instances(ctx context.Context, set *selector.Set, emit func(InstanceRow) error) error {
	for inst, err := range set.All(ctx) {
		if err != nil {
			return fmt.Errorf("failed to list instances: %w", err)
		}
		row := InstanceRow{
			ID:               inst.ID,
			Type:             inst.InstanceType,
			AvailabilityZone: inst.AvailabilityZone,
			State:            inst.State.String(),
			PublicDNSName:    inst.PublicDNSName,
			Project:          inst.Project(),
		}
		if err := emit(row); err != nil {
			return err
		}
	}
	return nil
}

// Volumes emits one row per volume of every instance in set.
func (l *Lister) Volumes(ctx context.Context, set *selector.Set, emit func(VolumeRow) error) error {
	return l.eachVolume(ctx, set, func(inst fleet.Instance, v fleet.Volume) error {
		return emit(VolumeRow{
			ID:         v.ID,
			InstanceID: inst.ID,
			State:      v.State,
			SizeGiB:    v.Size,
			Encrypted:  v.Encrypted,
		})
	})
}

// Snapshots emits the snapshots of every volume in set, newest first. Unless
// listAll is set, a volume's listing stops after its first completed snapshot.
func (l *Lister) Snapshots(ctx context.Context, set *selector.Set, listAll bool, emit func(SnapshotRow) error) error {
	return l.eachVolume(ctx, set, func(inst fleet.Instance, v fleet.Volume) error {
		snaps, err := l.provider.ListSnapshots(ctx, v.ID)
		if err != nil {
			return fmt.Errorf("failed to list snapshots of %s: %w", v.ID, err)
		}
		for _, s := range snaps {
			row := SnapshotRow{
				ID:         s.ID,
				VolumeID:   v.ID,
				InstanceID: inst.ID,
				State:      s.State.String(),
				Progress:   s.Progress,
				StartTime:  s.StartTime,
			}
			if err := emit(row); err != nil {
				return err
			}
			if s.State == fleet.SnapshotCompleted && !listAll {
				break
			}
		}
		return nil
	})
}

func (l *Lister) eachVolume(ctx context.Context, set *selector.Set, fn func(fleet.Instance, fleet.Volume) error) error {
	for inst, err := range set.All(ctx) {
		if err != nil {
			return fmt.Errorf("failed to list instances: %w", err)
		}
		volumes, err := l.provider.ListVolumes(ctx, inst.ID)
		if err != nil {
			return fmt.Errorf("failed to list volumes of %s: %w", inst.ID, err)
		}
		for _, v := range volumes {
			if err := fn(inst, v); err != nil {
				return err
			}
		}
	}
	return nil
}
