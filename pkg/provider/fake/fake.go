// Package fake provides a deterministic in-memory provider.Provider.
//
// State transitions are driven by the calls themselves: StopInstance moves a
// running instance to stopping and WaitUntilStopped completes the transition,
// mirroring the two-step behavior of the real API. Failures can be injected
// per operation and resource id with FailOn.
package fake

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/snapshotalyzer/shotty/pkg/fleet"
	"github.com/snapshotalyzer/shotty/pkg/provider"
)

// Op names a provider operation.
type Op string

const (
	OpListInstances  Op = "ListInstances"
	OpStop           Op = "StopInstance"
	OpStart          Op = "StartInstance"
	OpReboot         Op = "RebootInstance"
	OpWaitStopped    Op = "WaitUntilStopped"
	OpWaitRunning    Op = "WaitUntilRunning"
	OpListVolumes    Op = "ListVolumes"
	OpListSnapshots  Op = "ListSnapshots"
	OpCreateSnapshot Op = "CreateSnapshot"
)

// Call is one recorded provider call. ID is the instance or volume id,
// empty for ListInstances.
type Call struct {
	Op Op
	ID string
}

type failKey struct {
	op Op
	id string
}

// Epoch is the start time of the first snapshot created by a new Provider.
var Epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Provider is an in-memory provider.Provider.
type Provider struct {
	mu        sync.Mutex
	instances map[string]*fleet.Instance
	volumes   map[string][]fleet.Volume
	snapshots map[string][]fleet.Snapshot
	failures  map[failKey]error
	calls     []Call
	seq       int
	clock     time.Time

	// NewSnapshotState is the state given to created snapshots.
	NewSnapshotState fleet.SnapshotState
}

var _ provider.Provider = (*Provider)(nil)

// New returns an empty Provider whose created snapshots are completed.
func New() *Provider {
	return &Provider{
		instances:        make(map[string]*fleet.Instance),
		volumes:          make(map[string][]fleet.Volume),
		snapshots:        make(map[string][]fleet.Snapshot),
		failures:         make(map[failKey]error),
		clock:            Epoch,
		NewSnapshotState: fleet.SnapshotCompleted,
	}
}

// AddInstance registers an instance and its volumes. Volume InstanceID
// fields are set to the instance id.
func (p *Provider) AddInstance(inst fleet.Instance, volumes ...fleet.Volume) {
	p.mu.Lock()
	defer p.mu.Unlock()

	inst.Tags = maps.Clone(inst.Tags)
	p.instances[inst.ID] = &inst
	for _, v := range volumes {
		v.InstanceID = inst.ID
		p.volumes[inst.ID] = append(p.volumes[inst.ID], v)
	}
}

// AddSnapshot registers an existing snapshot.
func (p *Provider) AddSnapshot(s fleet.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots[s.VolumeID] = append(p.snapshots[s.VolumeID], s)
}

// FailOn makes op fail with err for the given instance or volume id.
// For OpListInstances the id is ignored.
func (p *Provider) FailOn(op Op, id string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if op == OpListInstances {
		id = ""
	}
	p.failures[failKey{op: op, id: id}] = err
}

// Instance returns a copy of the instance with id.
func (p *Provider) Instance(id string) (fleet.Instance, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	inst, ok := p.instances[id]
	if !ok {
		return fleet.Instance{}, false
	}
	return copyInstance(inst), true
}

// Snapshots returns the volume's snapshots, newest first.
func (p *Provider) Snapshots(volumeID string) []fleet.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sortedSnapshots(volumeID)
}

// Calls returns every recorded call in order.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.calls)
}

// CallsFor returns the ids passed to op, in call order.
func (p *Provider) CallsFor(op Op) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var ids []string
	for _, c := range p.calls {
		if c.Op == op {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// record logs the call and returns the injected failure, if any.
// Callers must hold p.mu.
func (p *Provider) record(op Op, id string) error {
	p.calls = append(p.calls, Call{Op: op, ID: id})
	return p.failures[failKey{op: op, id: id}]
}

func (p *Provider) ListInstances(ctx context.Context, filters []provider.Filter) ([]fleet.Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.record(OpListInstances, ""); err != nil {
		return nil, err
	}

	ids := slices.Sorted(maps.Keys(p.instances))
	var out []fleet.Instance
	for _, id := range ids {
		inst := p.instances[id]
		if matchesAll(inst, filters) {
			out = append(out, copyInstance(inst))
		}
	}
	return out, nil
}

func (p *Provider) StopInstance(ctx context.Context, id string) error {
	return p.transition(ctx, OpStop, id, func(inst *fleet.Instance) error {
		switch inst.State {
		case fleet.StateRunning, fleet.StatePending:
			inst.State = fleet.StateStopping
		case fleet.StateStopping, fleet.StateStopped:
		default:
			return fmt.Errorf("IncorrectInstanceState: instance %s is %s", inst.ID, inst.State)
		}
		return nil
	})
}

func (p *Provider) StartInstance(ctx context.Context, id string) error {
	return p.transition(ctx, OpStart, id, func(inst *fleet.Instance) error {
		switch inst.State {
		case fleet.StateStopped:
			inst.State = fleet.StatePending
		case fleet.StatePending, fleet.StateRunning:
		default:
			return fmt.Errorf("IncorrectInstanceState: instance %s is %s", inst.ID, inst.State)
		}
		return nil
	})
}

func (p *Provider) RebootInstance(ctx context.Context, id string) error {
	return p.transition(ctx, OpReboot, id, func(inst *fleet.Instance) error {
		if inst.State != fleet.StateRunning {
			return fmt.Errorf("IncorrectInstanceState: instance %s is %s", inst.ID, inst.State)
		}
		return nil
	})
}

func (p *Provider) WaitUntilStopped(ctx context.Context, id string) error {
	return p.transition(ctx, OpWaitStopped, id, func(inst *fleet.Instance) error {
		switch inst.State {
		case fleet.StateStopping, fleet.StateStopped:
			inst.State = fleet.StateStopped
			return nil
		default:
			return fmt.Errorf("waiter: instance %s will not reach stopped from %s", inst.ID, inst.State)
		}
	})
}

func (p *Provider) WaitUntilRunning(ctx context.Context, id string) error {
	return p.transition(ctx, OpWaitRunning, id, func(inst *fleet.Instance) error {
		switch inst.State {
		case fleet.StatePending, fleet.StateRunning:
			inst.State = fleet.StateRunning
			return nil
		default:
			return fmt.Errorf("waiter: instance %s will not reach running from %s", inst.ID, inst.State)
		}
	})
}

func (p *Provider) transition(ctx context.Context, op Op, id string, fn func(*fleet.Instance) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.record(op, id); err != nil {
		return err
	}
	inst, ok := p.instances[id]
	if !ok {
		return fmt.Errorf("InvalidInstanceID.NotFound: %s", id)
	}
	return fn(inst)
}

func (p *Provider) ListVolumes(ctx context.Context, instanceID string) ([]fleet.Volume, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.record(OpListVolumes, instanceID); err != nil {
		return nil, err
	}
	return slices.Clone(p.volumes[instanceID]), nil
}

func (p *Provider) ListSnapshots(ctx context.Context, volumeID string) ([]fleet.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.record(OpListSnapshots, volumeID); err != nil {
		return nil, err
	}
	return p.sortedSnapshots(volumeID), nil
}

func (p *Provider) CreateSnapshot(ctx context.Context, volumeID, description string) (fleet.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return fleet.Snapshot{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.record(OpCreateSnapshot, volumeID); err != nil {
		return fleet.Snapshot{}, err
	}

	p.seq++
	p.clock = p.clock.Add(time.Minute)
	progress := "0%"
	if p.NewSnapshotState == fleet.SnapshotCompleted {
		progress = "100%"
	}
	s := fleet.Snapshot{
		ID:        fmt.Sprintf("snap-%04d", p.seq),
		VolumeID:  volumeID,
		State:     p.NewSnapshotState,
		Progress:  progress,
		StartTime: p.clock,
	}
	p.snapshots[volumeID] = append(p.snapshots[volumeID], s)
	return s, nil
}

// sortedSnapshots returns a copy ordered newest first. Callers must hold p.mu.
func (p *Provider) sortedSnapshots(volumeID string) []fleet.Snapshot {
	out := slices.Clone(p.snapshots[volumeID])
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out
}

func matchesAll(inst *fleet.Instance, filters []provider.Filter) bool {
	for _, f := range filters {
		if !matches(inst, f) {
			return false
		}
	}
	return true
}

func matches(inst *fleet.Instance, f provider.Filter) bool {
	var actual string
	var present bool
	if f.Name == provider.FilterInstanceID {
		actual, present = inst.ID, true
	} else if key, ok := f.TagKey(); ok {
		actual, present = inst.Tags[key]
	}
	return present && slices.Contains(f.Values, actual)
}

func copyInstance(inst *fleet.Instance) fleet.Instance {
	out := *inst
	out.Tags = maps.Clone(inst.Tags)
	return out
}
