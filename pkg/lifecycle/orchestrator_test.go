package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapshotalyzer/shotty/pkg/config"
	"github.com/snapshotalyzer/shotty/pkg/fleet"
	"github.com/snapshotalyzer/shotty/pkg/provider/fake"
	"github.com/snapshotalyzer/shotty/pkg/selector"
)

func demoTags() map[string]string {
	return map[string]string{"Project": "demo"}
}

func resolve(t *testing.T, p *fake.Provider, project string) *selector.Set {
	t.Helper()
	set, err := selector.New(p).Resolve(fleet.NewCriteria(project, "", false), true)
	require.NoError(t, err)
	return set
}

func TestSnapshot_DemoScenario(t *testing.T) {
	p := fake.New()
	p.AddInstance(fleet.Instance{ID: "i-run", State: fleet.StateRunning, Tags: demoTags()}, fleet.Volume{ID: "vol-run"})
	p.AddInstance(fleet.Instance{ID: "i-stop", State: fleet.StateStopped, Tags: demoTags()}, fleet.Volume{ID: "vol-stop"})
	p.AddInstance(fleet.Instance{ID: "i-other", State: fleet.StateRunning}, fleet.Volume{ID: "vol-other"})

	report, err := NewOrchestrator(p, nil).Snapshot(context.Background(), resolve(t, p, "demo"))
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, OpSnapshot, report.Operation)
	require.Len(t, report.Outcomes, 2)
	assert.Zero(t, report.Failed())

	assert.Len(t, p.Snapshots("vol-run"), 1)
	assert.Len(t, p.Snapshots("vol-stop"), 1)
	assert.Empty(t, p.Snapshots("vol-other"))

	assert.Equal(t, []string{"i-run"}, p.CallsFor(fake.OpStop))
	assert.Equal(t, []string{"i-run"}, p.CallsFor(fake.OpStart))

	run := report.Outcome("i-run")
	require.NotNil(t, run)
	assert.True(t, run.StoppedByRun)
	assert.True(t, run.Restarted)

	stopped := report.Outcome("i-stop")
	require.NotNil(t, stopped)
	assert.False(t, stopped.StoppedByRun)
	assert.False(t, stopped.Restarted)

	inst, _ := p.Instance("i-run")
	assert.Equal(t, fleet.StateRunning, inst.State)
	inst, _ = p.Instance("i-stop")
	assert.Equal(t, fleet.StateStopped, inst.State)
}

func TestSnapshot_Description(t *testing.T) {
	p := fake.New()
	p.AddInstance(fleet.Instance{ID: "i-1", State: fleet.StateStopped, Tags: demoTags()}, fleet.Volume{ID: "vol-1"})

	cfg := config.NewConfig(config.WithSnapshotDescription("nightly"))
	report, err := NewOrchestrator(p, cfg).Snapshot(context.Background(), resolve(t, p, "demo"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"vol-1": "snap-0001"}, report.Outcome("i-1").Snapshots)
}

func TestSnapshot_RestartVetoedByFailedVolume(t *testing.T) {
	p := fake.New()
	p.AddInstance(fleet.Instance{ID: "i-1", State: fleet.StateRunning, Tags: demoTags()},
		fleet.Volume{ID: "vol-a"}, fleet.Volume{ID: "vol-b"})
	p.FailOn(fake.OpCreateSnapshot, "vol-b", errors.New("SnapshotLimitExceeded"))

	before := testutil.ToFloat64(instanceRestarts.WithLabelValues(resultSkipped))

	report, err := NewOrchestrator(p, nil).Snapshot(context.Background(), resolve(t, p, "demo"))
	require.NoError(t, err)

	o := report.Outcome("i-1")
	require.NotNil(t, o)
	assert.True(t, o.StoppedByRun)
	assert.Equal(t, []string{"vol-b"}, o.FailedVolumes)
	assert.Contains(t, o.Snapshots, "vol-a")
	assert.False(t, o.Restarted)
	assert.Equal(t, 1, report.Failed())

	assert.Empty(t, p.CallsFor(fake.OpStart))
	inst, _ := p.Instance("i-1")
	assert.Equal(t, fleet.StateStopped, inst.State)

	assert.Equal(t, before+1, testutil.ToFloat64(instanceRestarts.WithLabelValues(resultSkipped)))
}

func TestSnapshot_AlreadyStoppedStaysStopped(t *testing.T) {
	p := fake.New()
	p.AddInstance(fleet.Instance{ID: "i-1", State: fleet.StateStopped, Tags: demoTags()}, fleet.Volume{ID: "vol-1"})

	report, err := NewOrchestrator(p, nil).Snapshot(context.Background(), resolve(t, p, "demo"))
	require.NoError(t, err)

	assert.Empty(t, p.CallsFor(fake.OpStop))
	assert.Empty(t, p.CallsFor(fake.OpStart))
	assert.Len(t, p.Snapshots("vol-1"), 1)
	assert.False(t, report.Outcome("i-1").Restarted)
}

func TestSnapshot_RunTwiceCreatesTwoSnapshotsPerVolume(t *testing.T) {
	p := fake.New()
	p.AddInstance(fleet.Instance{ID: "i-1", State: fleet.StateRunning, Tags: demoTags()},
		fleet.Volume{ID: "vol-a"}, fleet.Volume{ID: "vol-b"})
	o := NewOrchestrator(p, nil)
	set := resolve(t, p, "demo")

	for range 2 {
		_, err := o.Snapshot(context.Background(), set)
		require.NoError(t, err)
	}

	assert.Len(t, p.Snapshots("vol-a"), 2)
	assert.Len(t, p.Snapshots("vol-b"), 2)
	assert.Equal(t, []string{"i-1", "i-1"}, p.CallsFor(fake.OpStart))
}

func TestSnapshot_PendingSnapshotStillCreates(t *testing.T) {
	p := fake.New()
	p.AddInstance(fleet.Instance{ID: "i-1", State: fleet.StateStopped, Tags: demoTags()}, fleet.Volume{ID: "vol-1"})
	p.AddSnapshot(fleet.Snapshot{ID: "snap-old", VolumeID: "vol-1", State: fleet.SnapshotPending, StartTime: fake.Epoch})

	before := testutil.ToFloat64(volumeSnapshots.WithLabelValues(resultSkipped))

	_, err := NewOrchestrator(p, nil).Snapshot(context.Background(), resolve(t, p, "demo"))
	require.NoError(t, err)

	snaps := p.Snapshots("vol-1")
	require.Len(t, snaps, 2)
	assert.Equal(t, "snap-0001", snaps[0].ID)
	assert.Equal(t, before+1, testutil.ToFloat64(volumeSnapshots.WithLabelValues(resultSkipped)))
}

func TestSnapshot_StopFailureSkipsInstance(t *testing.T) {
	p := fake.New()
	p.AddInstance(fleet.Instance{ID: "i-1", State: fleet.StateRunning, Tags: demoTags()}, fleet.Volume{ID: "vol-1"})
	p.AddInstance(fleet.Instance{ID: "i-2", State: fleet.StateRunning, Tags: demoTags()}, fleet.Volume{ID: "vol-2"})
	boom := errors.New("UnauthorizedOperation")
	p.FailOn(fake.OpStop, "i-1", boom)

	before := testutil.ToFloat64(instanceOutcomes.WithLabelValues(OpSnapshot, resultError))

	report, err := NewOrchestrator(p, nil).Snapshot(context.Background(), resolve(t, p, "demo"))
	require.NoError(t, err)

	first := report.Outcome("i-1")
	require.NotNil(t, first)
	assert.ErrorIs(t, first.Err, boom)
	assert.False(t, first.StoppedByRun)
	assert.Empty(t, p.Snapshots("vol-1"))

	second := report.Outcome("i-2")
	require.NotNil(t, second)
	assert.NoError(t, second.Err)
	assert.True(t, second.Restarted)
	assert.Len(t, p.Snapshots("vol-2"), 1)

	assert.Equal(t, before+1, testutil.ToFloat64(instanceOutcomes.WithLabelValues(OpSnapshot, resultError)))
}

func TestSnapshot_WaitFailureLeavesInstanceStopped(t *testing.T) {
	p := fake.New()
	p.AddInstance(fleet.Instance{ID: "i-1", State: fleet.StateRunning, Tags: demoTags()}, fleet.Volume{ID: "vol-1"})
	p.FailOn(fake.OpWaitStopped, "i-1", errors.New("exceeded max wait time"))

	report, err := NewOrchestrator(p, nil).Snapshot(context.Background(), resolve(t, p, "demo"))
	require.NoError(t, err)

	o := report.Outcome("i-1")
	assert.True(t, o.StoppedByRun)
	assert.Error(t, o.Err)
	assert.False(t, o.Restarted)
	assert.Empty(t, p.CallsFor(fake.OpListVolumes))
	assert.Empty(t, p.CallsFor(fake.OpStart))
}

func TestSnapshot_StoppingInstanceIsAwaited(t *testing.T) {
	p := fake.New()
	p.AddInstance(fleet.Instance{ID: "i-1", State: fleet.StateStopping, Tags: demoTags()}, fleet.Volume{ID: "vol-1"})

	report, err := NewOrchestrator(p, nil).Snapshot(context.Background(), resolve(t, p, "demo"))
	require.NoError(t, err)

	o := report.Outcome("i-1")
	require.NoError(t, o.Err)
	assert.False(t, o.StoppedByRun)
	assert.False(t, o.Restarted)
	assert.Len(t, p.Snapshots("vol-1"), 1)
	assert.Empty(t, p.CallsFor(fake.OpStop))
	assert.Empty(t, p.CallsFor(fake.OpStart))
	inst, ok := p.Instance("i-1")
	require.True(t, ok)
	assert.Equal(t, fleet.StateStopped, inst.State)

	// the wait has to happen before any volume is touched
	calls := p.Calls()
	require.GreaterOrEqual(t, len(calls), 3)
	assert.Equal(t, fake.Call{Op: fake.OpWaitStopped, ID: "i-1"}, calls[1])
	assert.Equal(t, fake.OpListVolumes, calls[2].Op)
}

func TestSnapshot_StoppingInstanceWaitFailure(t *testing.T) {
	p := fake.New()
	p.AddInstance(fleet.Instance{ID: "i-1", State: fleet.StateStopping, Tags: demoTags()}, fleet.Volume{ID: "vol-1"})
	p.FailOn(fake.OpWaitStopped, "i-1", errors.New("exceeded max wait time"))

	report, err := NewOrchestrator(p, nil).Snapshot(context.Background(), resolve(t, p, "demo"))
	require.NoError(t, err)

	o := report.Outcome("i-1")
	assert.Error(t, o.Err)
	assert.False(t, o.StoppedByRun)
	assert.Empty(t, p.CallsFor(fake.OpListVolumes))
	assert.Empty(t, p.Snapshots("vol-1"))
	assert.Empty(t, p.CallsFor(fake.OpStart))
}

func TestSnapshot_StartFailureIsRecorded(t *testing.T) {
	p := fake.New()
	p.AddInstance(fleet.Instance{ID: "i-1", State: fleet.StateRunning, Tags: demoTags()}, fleet.Volume{ID: "vol-1"})
	p.FailOn(fake.OpStart, "i-1", errors.New("InsufficientInstanceCapacity"))

	report, err := NewOrchestrator(p, nil).Snapshot(context.Background(), resolve(t, p, "demo"))
	require.NoError(t, err)

	o := report.Outcome("i-1")
	assert.Error(t, o.Err)
	assert.False(t, o.Restarted)
	assert.Len(t, p.Snapshots("vol-1"), 1)
}

func TestSnapshot_NoTargetDoesNothing(t *testing.T) {
	p := fake.New()
	p.AddInstance(fleet.Instance{ID: "i-1", State: fleet.StateRunning}, fleet.Volume{ID: "vol-1"})

	set, err := selector.New(p).Resolve(fleet.NewCriteria("", "", false), true)
	require.Error(t, err)

	report, err := NewOrchestrator(p, nil).Snapshot(context.Background(), set)
	require.NoError(t, err)
	assert.Empty(t, report.Outcomes)
	assert.Empty(t, p.Calls())
}

func TestSnapshot_ListFailure(t *testing.T) {
	p := fake.New()
	boom := errors.New("RequestLimitExceeded")
	p.FailOn(fake.OpListInstances, "", boom)

	report, err := NewOrchestrator(p, nil).Snapshot(context.Background(), resolve(t, p, "demo"))
	require.NoError(t, err)
	assert.ErrorIs(t, report.ListErr, boom)
	assert.Empty(t, report.Outcomes)
}

func TestSnapshot_CanceledContext(t *testing.T) {
	p := fake.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewOrchestrator(p, nil).Snapshot(ctx, resolve(t, p, "demo"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, report)
}
