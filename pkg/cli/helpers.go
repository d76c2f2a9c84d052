/*
Copyright © 2025 The shotty Authors
SPDX-License-Identifier: Apache-2.0
*/
package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/snapshotalyzer/shotty/pkg/fleet"
	"github.com/snapshotalyzer/shotty/pkg/serializer"
)

// parseOutputFormat extracts and validates the output format from CLI flags.
func parseOutputFormat(cmd *cli.Command) (serializer.Format, error) {
	return serializer.ParseFormat(cmd.String(flagFormat))
}

// newOutputWriter returns the writer for list output selected by the
// --format and --output flags.
func newOutputWriter(cmd *cli.Command) (*serializer.Writer, error) {
	format, err := parseOutputFormat(cmd)
	if err != nil {
		return nil, err
	}
	return serializer.NewFileWriterOrStdout(format, cmd.String(flagOutput))
}

// withOutput opens the output writer, runs fn and closes the writer,
// returning the first error.
func withOutput(cmd *cli.Command, fn func(*serializer.Writer) error) (err error) {
	w, err := newOutputWriter(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output: %w", cerr)
		}
	}()
	return fn(w)
}

// criteriaFromCmd builds selection criteria from the --project, --instance
// and, when withForce is set, --force flags.
func criteriaFromCmd(cmd *cli.Command, withForce bool) fleet.Criteria {
	force := false
	if withForce {
		force = cmd.Bool(flagForce)
	}
	return fleet.NewCriteria(cmd.String(flagProject), cmd.String(flagInstance), force)
}

// writeRows runs list and writes the rows it emits. Text output streams
// one line per row; structured formats write a single document.
func writeRows[R serializer.Row](ctx context.Context, w serializer.Serializer, list func(emit func(R) error) error) error {
	if w.Format() == serializer.FormatText {
		return list(func(r R) error {
			return w.Serialize(ctx, r)
		})
	}

	rows := make([]R, 0)
	if err := list(func(r R) error {
		rows = append(rows, r)
		return nil
	}); err != nil {
		return err
	}
	if err := w.Serialize(ctx, rows); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
