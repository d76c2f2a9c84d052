/*
Copyright © 2025 The shotty Authors
SPDX-License-Identifier: Apache-2.0
*/
package cli

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/snapshotalyzer/shotty/pkg/lifecycle"
	"github.com/snapshotalyzer/shotty/pkg/selector"
	"github.com/snapshotalyzer/shotty/pkg/serializer"
)

func snapshotsCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "snapshots",
		Usage: "Commands for snapshots",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List snapshots",
				Flags: append(selectionFlags(), &cli.BoolFlag{
					Name:  flagAll,
					Usage: "List all snapshots for each volume, not just the most recent",
				}),
				Action: a.listSnapshots,
			},
		},
	}
}

func (a *app) listSnapshots(ctx context.Context, cmd *cli.Command) error {
	p, err := a.provider(ctx)
	if err != nil {
		return err
	}
	set, err := selector.New(p).Resolve(criteriaFromCmd(cmd, false), false)
	if err != nil {
		return err
	}
	listAll := cmd.Bool(flagAll)

	return withOutput(cmd, func(w *serializer.Writer) error {
		return writeRows(ctx, w, func(emit func(lifecycle.SnapshotRow) error) error {
			return lifecycle.NewLister(p).Snapshots(ctx, set, listAll, emit)
		})
	})
}
