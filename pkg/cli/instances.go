/*
Copyright © 2025 The shotty Authors
SPDX-License-Identifier: Apache-2.0
*/
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/urfave/cli/v3"

	cnserrors "github.com/snapshotalyzer/shotty/pkg/errors"
	"github.com/snapshotalyzer/shotty/pkg/lifecycle"
	"github.com/snapshotalyzer/shotty/pkg/provider"
	"github.com/snapshotalyzer/shotty/pkg/selector"
	"github.com/snapshotalyzer/shotty/pkg/serializer"
)

func instancesCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "instances",
		Usage: "Commands for instances",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List EC2 instances",
				Flags:  selectionFlags(),
				Action: a.listInstances,
			},
			{
				Name:   "start",
				Usage:  "Start EC2 instances",
				Flags:  append(selectionFlags(), forceFlag()),
				Action: a.dispatch((*lifecycle.Dispatcher).Start),
			},
			{
				Name:   "stop",
				Usage:  "Stop EC2 instances",
				Flags:  append(selectionFlags(), forceFlag()),
				Action: a.dispatch((*lifecycle.Dispatcher).Stop),
			},
			{
				Name:   "reboot",
				Usage:  "Reboot EC2 instances",
				Flags:  append(selectionFlags(), forceFlag()),
				Action: a.dispatch((*lifecycle.Dispatcher).Reboot),
			},
			{
				Name:  "snapshot",
				Usage: "Create snapshots of all volumes",
				Description: `Stops each selected running instance, requests a snapshot of every
attached volume and starts the instance again. An instance is left stopped
when any of its snapshots could not be requested. Instances already stopping
are waited for, and instances that were not running are snapshotted in place
and left as they were.`,
				Flags:  append(selectionFlags(), forceFlag()),
				Action: a.snapshotInstances,
			},
		},
	}
}

// resolveMutating resolves the selection for a command that changes
// instances. It returns false when there is no target, after logging why.
func resolveMutating(p provider.Provider, cmd *cli.Command) (*selector.Set, bool) {
	set, err := selector.New(p).Resolve(criteriaFromCmd(cmd, true), true)
	if err != nil {
		if cnserrors.HasCode(err, cnserrors.ErrCodeNoTarget) {
			slog.Error("you must set --project, --instance or --force", "command", cmd.Name)
			return nil, false
		}
		slog.Error("could not resolve instances", "error", err)
		return nil, false
	}
	return set, true
}

func (a *app) listInstances(ctx context.Context, cmd *cli.Command) error {
	p, err := a.provider(ctx)
	if err != nil {
		return err
	}
	set, err := selector.New(p).Resolve(criteriaFromCmd(cmd, false), false)
	if err != nil {
		return err
	}

	return withOutput(cmd, func(w *serializer.Writer) error {
		return writeRows(ctx, w, func(emit func(lifecycle.InstanceRow) error) error {
			return lifecycle.NewLister(p).Instances(ctx, set, emit)
		})
	})
}

func (a *app) dispatch(action func(*lifecycle.Dispatcher, context.Context, *selector.Set) *lifecycle.Report) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		p, err := a.provider(ctx)
		if err != nil {
			return err
		}
		set, ok := resolveMutating(p, cmd)
		if !ok {
			return nil
		}
		report := action(lifecycle.NewDispatcher(p), ctx, set)
		return a.finishSweep(report)
	}
}

func (a *app) snapshotInstances(ctx context.Context, cmd *cli.Command) error {
	p, err := a.provider(ctx)
	if err != nil {
		return err
	}
	set, ok := resolveMutating(p, cmd)
	if !ok {
		return nil
	}

	report, err := lifecycle.NewOrchestrator(p, a.cfg).Snapshot(ctx, set)
	if err != nil {
		return err
	}
	if failed := failedInstances(report); len(failed) > 0 {
		slog.Warn("some instances had failures", "run_id", report.RunID, "instances", failed)
	}
	return a.finishSweep(report)
}

// finishSweep writes the metrics file, if configured, and returns the
// sweep's listing failure joined with any write failure.
func (a *app) finishSweep(r *lifecycle.Report) error {
	err := lifecycle.WriteMetrics(a.cfg.MetricsFile())
	if err != nil {
		slog.Error("could not write metrics", "run_id", r.RunID, "error", err)
	}
	return errors.Join(reportError(r), err)
}

// reportError returns the listing failure of a sweep. Per-instance failures
// are already logged and do not fail the command.
func reportError(r *lifecycle.Report) error {
	if r.ListErr != nil {
		return fmt.Errorf("%s: %w", r.Operation, r.ListErr)
	}
	return nil
}

func failedInstances(r *lifecycle.Report) []string {
	var ids []string
	for _, o := range r.Outcomes {
		if o.Failed() {
			ids = append(ids, o.InstanceID)
		}
	}
	slices.Sort(ids)
	return ids
}
