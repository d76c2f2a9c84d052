// Package lifecycle runs operations over a selected set of instances.
//
// The Orchestrator implements the snapshot workflow: stop each running
// instance, snapshot every attached volume, and start the instance again
// only when it was stopped by this run and every snapshot was accepted.
// The Dispatcher issues single start, stop or reboot actions, and the Lister
// produces the rows shown by the list commands.
//
// Instances are processed one at a time. A failure on one instance or volume
// is logged with its id, recorded in the Report and never stops the sweep.
//
// Usage:
//
//	set, err := selector.New(p).Resolve(criteria, true)
//	if err != nil {
//	    slog.Error("nothing to do", "error", err)
//	    return nil
//	}
//	report, err := lifecycle.NewOrchestrator(p, cfg).Snapshot(ctx, set)
package lifecycle
