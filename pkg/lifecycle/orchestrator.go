package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/snapshotalyzer/shotty/pkg/config"
	"github.com/snapshotalyzer/shotty/pkg/fleet"
	"github.com/snapshotalyzer/shotty/pkg/provider"
	"github.com/snapshotalyzer/shotty/pkg/selector"
)

// Orchestrator runs the stop, snapshot, restart workflow.
type Orchestrator struct {
	provider    provider.Provider
	description string
}

// NewOrchestrator returns an Orchestrator using p. A nil cfg uses defaults.
func NewOrchestrator(p provider.Provider, cfg *config.Config) *Orchestrator {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &Orchestrator{
		provider:    p,
		description: cfg.SnapshotDescription(),
	}
}

// Snapshot snapshots every volume of every instance in set. Per-instance
// failures are recorded in the Report. The returned error is only set when
// ctx is already done before the sweep starts.
func (o *Orchestrator) Snapshot(ctx context.Context, set *selector.Set) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := newReport(OpSnapshot)
	log := slog.With(slog.String("run_id", report.RunID), slog.String("operation", OpSnapshot))
	start := time.Now()
	defer observeSweep(OpSnapshot, start)

	for inst, err := range set.All(ctx) {
		if err != nil {
			log.Error("could not list instances", slog.String("error", err.Error()))
			report.ListErr = err
			break
		}
		outcome := o.snapshotInstance(ctx, log.With(slog.String("instance", inst.ID)), inst)
		recordInstance(OpSnapshot, outcome.Failed())
		report.Outcomes = append(report.Outcomes, outcome)
	}

	log.Info("job is done",
		slog.Int("instances", len(report.Outcomes)),
		slog.Int("failed", report.Failed()),
		slog.Duration("duration", time.Since(start)),
	)
	return report, nil
}

func (o *Orchestrator) snapshotInstance(ctx context.Context, log *slog.Logger, inst fleet.Instance) *fleet.Outcome {
	outcome := fleet.NewOutcome(inst.ID)

	switch {
	case inst.State.RequiresStop():
		log.Info("stopping instance", slog.String("state", inst.State.String()))
		if err := o.provider.StopInstance(ctx, inst.ID); err != nil {
			outcome.Err = err
			log.Error("could not stop instance", slog.String("error", err.Error()))
			return outcome
		}
		outcome.StoppedByRun = true
		if err := o.provider.WaitUntilStopped(ctx, inst.ID); err != nil {
			outcome.Err = err
			log.Error("instance did not stop", slog.String("error", err.Error()))
			o.finish(ctx, log, outcome)
			return outcome
		}
	case inst.State.AwaitsStop():
		log.Info("waiting for instance to finish stopping")
		if err := o.provider.WaitUntilStopped(ctx, inst.ID); err != nil {
			outcome.Err = err
			log.Error("instance did not stop", slog.String("error", err.Error()))
			o.finish(ctx, log, outcome)
			return outcome
		}
	default:
		log.Debug("instance not running, snapshotting in place", slog.String("state", inst.State.String()))
	}

	volumes, err := o.provider.ListVolumes(ctx, inst.ID)
	if err != nil {
		outcome.Err = err
		log.Error("could not list volumes", slog.String("error", err.Error()))
		o.finish(ctx, log, outcome)
		return outcome
	}

	for _, v := range volumes {
		o.snapshotVolume(ctx, log.With(slog.String("volume", v.ID)), outcome, v)
	}

	o.finish(ctx, log, outcome)
	return outcome
}

func (o *Orchestrator) snapshotVolume(ctx context.Context, log *slog.Logger, outcome *fleet.Outcome, v fleet.Volume) {
	pending, err := o.hasPendingSnapshot(ctx, v.ID)
	if err != nil {
		log.Warn("could not check for pending snapshot", slog.String("error", err.Error()))
	}
	if pending {
		// the notice is informational, a new snapshot is still requested
		volumeSnapshots.WithLabelValues(resultSkipped).Inc()
		log.Info("skipping, snapshot already in progress")
	}

	log.Info("creating a snapshot")
	snap, err := o.provider.CreateSnapshot(ctx, v.ID, o.description)
	if err != nil {
		volumeSnapshots.WithLabelValues(resultError).Inc()
		outcome.RecordFailure(v.ID)
		log.Error("could not create snapshot", slog.String("error", err.Error()))
		return
	}
	volumeSnapshots.WithLabelValues(resultSuccess).Inc()
	outcome.RecordSnapshot(v.ID, snap.ID)
	log.Debug("snapshot requested", slog.String("snapshot", snap.ID), slog.String("state", snap.State.String()))
}

// hasPendingSnapshot reports whether the newest snapshot of the volume is pending.
func (o *Orchestrator) hasPendingSnapshot(ctx context.Context, volumeID string) (bool, error) {
	snaps, err := o.provider.ListSnapshots(ctx, volumeID)
	if err != nil {
		return false, err
	}
	return len(snaps) > 0 && snaps[0].State == fleet.SnapshotPending, nil
}

// finish restarts the instance when a restart is owed and logs why not otherwise.
func (o *Orchestrator) finish(ctx context.Context, log *slog.Logger, outcome *fleet.Outcome) {
	if !outcome.StoppedByRun {
		log.Info("leaving instance in its original state")
		return
	}
	if !outcome.RestartOwed() {
		instanceRestarts.WithLabelValues(resultSkipped).Inc()
		log.Warn("leaving instance stopped after failures",
			slog.Any("failed_volumes", outcome.FailedVolumes),
			slog.Bool("instance_error", outcome.Err != nil),
		)
		return
	}

	log.Info("starting instance")
	if err := o.provider.StartInstance(ctx, outcome.InstanceID); err != nil {
		instanceRestarts.WithLabelValues(resultError).Inc()
		outcome.Err = err
		log.Error("could not start instance", slog.String("error", err.Error()))
		return
	}
	if err := o.provider.WaitUntilRunning(ctx, outcome.InstanceID); err != nil {
		instanceRestarts.WithLabelValues(resultError).Inc()
		outcome.Err = err
		log.Error("instance did not start", slog.String("error", err.Error()))
		return
	}
	instanceRestarts.WithLabelValues(resultSuccess).Inc()
	outcome.Restarted = true
}
