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

func volumesCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "volumes",
		Usage: "Commands for volumes",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List EC2 volumes",
				Flags:  selectionFlags(),
				Action: a.listVolumes,
			},
		},
	}
}

func (a *app) listVolumes(ctx context.Context, cmd *cli.Command) error {
	p, err := a.provider(ctx)
	if err != nil {
		return err
	}
	set, err := selector.New(p).Resolve(criteriaFromCmd(cmd, false), false)
	if err != nil {
		return err
	}

	return withOutput(cmd, func(w *serializer.Writer) error {
		return writeRows(ctx, w, func(emit func(lifecycle.VolumeRow) error) error {
			return lifecycle.NewLister(p).Volumes(ctx, set, emit)
		})
	})
}
