package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapshotalyzer/shotty/pkg/fleet"
	"github.com/snapshotalyzer/shotty/pkg/provider/fake"
	"github.com/snapshotalyzer/shotty/pkg/selector"
)

func snapshotFleet() *fake.Provider {
	p := fake.New()
	p.AddInstance(fleet.Instance{ID: "i-1", State: fleet.StateRunning, Tags: demoTags()}, fleet.Volume{ID: "vol-1"})
	return p
}

func addSnapshots(p *fake.Provider, volumeID string, states ...fleet.SnapshotState) {
	// states are given newest first
	for i, s := range states {
		p.AddSnapshot(fleet.Snapshot{
			ID:        "snap-" + string(rune('a'+i)),
			VolumeID:  volumeID,
			State:     s,
			Progress:  "100%",
			StartTime: fake.Epoch.Add(-time.Duration(i) * time.Hour),
		})
	}
}

func listSnapshotIDs(t *testing.T, p *fake.Provider, listAll bool) []string {
	t.Helper()
	var ids []string
	err := NewLister(p).Snapshots(context.Background(), resolve(t, p, "demo"), listAll, func(r SnapshotRow) error {
		ids = append(ids, r.ID)
		return nil
	})
	require.NoError(t, err)
	return ids
}

func TestLister_SnapshotsPolicy(t *testing.T) {
	tests := []struct {
		name    string
		states  []fleet.SnapshotState
		listAll bool
		want    []string
	}{
		{
			name:   "stops after first completed",
			states: []fleet.SnapshotState{fleet.SnapshotCompleted, fleet.SnapshotCompleted, fleet.SnapshotError},
			want:   []string{"snap-a"},
		},
		{
			name:    "all lists everything",
			states:  []fleet.SnapshotState{fleet.SnapshotCompleted, fleet.SnapshotCompleted, fleet.SnapshotError},
			listAll: true,
			want:    []string{"snap-a", "snap-b", "snap-c"},
		},
		{
			name:   "pending before completed",
			states: []fleet.SnapshotState{fleet.SnapshotPending, fleet.SnapshotCompleted, fleet.SnapshotCompleted},
			want:   []string{"snap-a", "snap-b"},
		},
		{
			name:   "no completed snapshot",
			states: []fleet.SnapshotState{fleet.SnapshotError, fleet.SnapshotPending},
			want:   []string{"snap-a", "snap-b"},
		},
		{
			name: "no snapshots",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := snapshotFleet()
			addSnapshots(p, "vol-1", tt.states...)
			assert.Equal(t, tt.want, listSnapshotIDs(t, p, tt.listAll))
		})
	}
}

func TestLister_SnapshotRow(t *testing.T) {
	p := snapshotFleet()
	addSnapshots(p, "vol-1", fleet.SnapshotCompleted)

	var rows []SnapshotRow
	err := NewLister(p).Snapshots(context.Background(), resolve(t, p, "demo"), false, func(r SnapshotRow) error {
		rows = append(rows, r)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"snap-a", "vol-1", "i-1", "completed", "100%", "Mon Jan  1 00:00:00 2024"}, rows[0].Fields())
}

func TestLister_Instances(t *testing.T) {
	p := fake.New()
	p.AddInstance(fleet.Instance{
		ID:               "i-1",
		State:            fleet.StateRunning,
		InstanceType:     "t3.micro",
		AvailabilityZone: "us-east-1a",
		PublicDNSName:    "ec2-1-2-3-4.compute-1.amazonaws.com",
		Tags:             demoTags(),
	})
	p.AddInstance(fleet.Instance{ID: "i-2", State: fleet.StateStopped, InstanceType: "t3.small", AvailabilityZone: "us-east-1b"})

	set, err := selector.New(p).Resolve(fleet.NewCriteria("", "", false), false)
	require.NoError(t, err)

	var rows [][]string
	err = NewLister(p).Instances(context.Background(), set, func(r InstanceRow) error {
		rows = append(rows, r.Fields())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"i-1", "t3.micro", "us-east-1a", "running", "ec2-1-2-3-4.compute-1.amazonaws.com", "demo"},
		{"i-2", "t3.small", "us-east-1b", "stopped", "", "<no project>"},
	}, rows)
}

func TestLister_Volumes(t *testing.T) {
	p := fake.New()
	p.AddInstance(fleet.Instance{ID: "i-1", State: fleet.StateRunning, Tags: demoTags()},
		fleet.Volume{ID: "vol-1", State: "in-use", Size: 8, Encrypted: true},
		fleet.Volume{ID: "vol-2", State: "in-use", Size: 100})

	var rows [][]string
	err := NewLister(p).Volumes(context.Background(), resolve(t, p, "demo"), func(r VolumeRow) error {
		rows = append(rows, r.Fields())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"vol-1", "i-1", "in-use", "8GiB", "Encrypted"},
		{"vol-2", "i-1", "in-use", "100GiB", "Not Encrypted"},
	}, rows)
}

func TestLister_Errors(t *testing.T) {
	boom := errors.New("RequestLimitExceeded")

	t.Run("volume listing", func(t *testing.T) {
		p := snapshotFleet()
		p.FailOn(fake.OpListVolumes, "i-1", boom)
		err := NewLister(p).Volumes(context.Background(), resolve(t, p, "demo"), func(VolumeRow) error { return nil })
		assert.ErrorIs(t, err, boom)
	})

	t.Run("snapshot listing", func(t *testing.T) {
		p := snapshotFleet()
		p.FailOn(fake.OpListSnapshots, "vol-1", boom)
		err := NewLister(p).Snapshots(context.Background(), resolve(t, p, "demo"), false, func(SnapshotRow) error { return nil })
		assert.ErrorIs(t, err, boom)
	})

	t.Run("instance listing", func(t *testing.T) {
		p := snapshotFleet()
		p.FailOn(fake.OpListInstances, "", boom)
		err := NewLister(p).Instances(context.Background(), resolve(t, p, "demo"), func(InstanceRow) error { return nil })
		assert.ErrorIs(t, err, boom)
	})

	t.Run("emit error", func(t *testing.T) {
		p := snapshotFleet()
		err := NewLister(p).Instances(context.Background(), resolve(t, p, "demo"), func(InstanceRow) error { return boom })
		assert.ErrorIs(t, err, boom)
	})
}
