package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/snapshotalyzer/shotty/pkg/fleet"
	"github.com/snapshotalyzer/shotty/pkg/provider"
	"github.com/snapshotalyzer/shotty/pkg/selector"
)

// Dispatcher issues a single power action per instance without waiting for
// the resulting state.
type Dispatcher struct {
	provider provider.Provider
}

// NewDispatcher returns a Dispatcher using p.
func NewDispatcher(p provider.Provider) *Dispatcher {
	return &Dispatcher{provider: p}
}

// Start starts every instance in set.
func (d *Dispatcher) Start(ctx context.Context, set *selector.Set) *Report {
	return d.dispatch(ctx, set, OpStart, "starting instance", "could not start instance", d.provider.StartInstance)
}

// Stop stops every instance in set.
func (d *Dispatcher) Stop(ctx context.Context, set *selector.Set) *Report {
	return d.dispatch(ctx, set, OpStop, "stopping instance", "could not stop instance", d.provider.StopInstance)
}

// Reboot reboots every instance in set.
func (d *Dispatcher) Reboot(ctx context.Context, set *selector.Set) *Report {
	return d.dispatch(ctx, set, OpReboot, "rebooting instance", "could not reboot instance", d.provider.RebootInstance)
}

func (d *Dispatcher) dispatch(ctx context.Context, set *selector.Set, op, doing, failed string,
	action func(context.Context, string) error) *Report {
	report := newReport(op)
	log := slog.With(slog.String("run_id", report.RunID), slog.String("operation", op))
	start := time.Now()
	defer observeSweep(op, start)

	for inst, err := range set.All(ctx) {
		if err != nil {
			log.Error("could not list instances", slog.String("error", err.Error()))
			report.ListErr = err
			break
		}

		outcome := fleet.NewOutcome(inst.ID)
		log.Info(doing, slog.String("instance", inst.ID))
		if err := action(ctx, inst.ID); err != nil {
			outcome.Err = err
			log.Error(failed, slog.String("instance", inst.ID), slog.String("error", err.Error()))
		}
		recordInstance(op, outcome.Failed())
		report.Outcomes = append(report.Outcomes, outcome)
	}

	log.Debug("dispatch complete",
		slog.Int("instances", len(report.Outcomes)),
		slog.Int("failed", report.Failed()),
	)
	return report
}
