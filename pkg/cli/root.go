/*
Copyright © 2025 The shotty Authors
SPDX-License-Identifier: Apache-2.0
*/
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/snapshotalyzer/shotty/pkg/config"
	cnserrors "github.com/snapshotalyzer/shotty/pkg/errors"
	"github.com/snapshotalyzer/shotty/pkg/logging"
	"github.com/snapshotalyzer/shotty/pkg/provider"
	"github.com/snapshotalyzer/shotty/pkg/provider/ec2"
	"github.com/snapshotalyzer/shotty/pkg/serializer"
)

const name = "shotty"

// Set at build time via -ldflags "-X".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	flagProfile  = "profile"
	flagRegion   = "region"
	flagConfig   = "config"
	flagDebug    = "debug"
	flagLogJSON  = "log-json"
	flagFormat   = "format"
	flagOutput   = "output"
	flagProject  = "project"
	flagInstance = "instance"
	flagForce    = "force"
	flagAll      = "all"

	flagMetricsFile = "metrics-file"
)

// ProviderFactory builds the cloud provider from the loaded configuration.
type ProviderFactory func(ctx context.Context, cfg *config.Config) (provider.Provider, error)

func ec2Provider(ctx context.Context, cfg *config.Config) (provider.Provider, error) {
	p, err := ec2.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// app carries state shared by all commands. cfg is set by the root Before hook.
type app struct {
	newProvider ProviderFactory
	cfg         *config.Config
}

// provider builds the provider for one command, throttled by the configured
// rate limit.
func (a *app) provider(ctx context.Context) (provider.Provider, error) {
	p, err := a.newProvider(ctx, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}
	return provider.NewRateLimited(p, a.cfg.RateLimit(), a.cfg.RateLimitBurst()), nil
}

// Execute runs the shotty command with the process arguments and exits
// non-zero on setup failures.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(ec2Provider).Run(ctx, os.Args); err != nil {
		slog.Error("command failed", "code", cnserrors.CodeOf(err), "error", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(newProvider ProviderFactory) *cli.Command {
	a := &app{newProvider: newProvider}

	return &cli.Command{
		Name:                  name,
		Usage:                 "Manage EC2 instances, volumes and snapshots",
		Version:               fmt.Sprintf("%s (commit: %s, date: %s)", version, commit, date),
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagProfile,
				Usage: fmt.Sprintf("AWS shared config profile (default %q)", config.DefaultProfile),
			},
			&cli.StringFlag{
				Name:  flagRegion,
				Usage: "AWS region (default from the profile or AWS_REGION)",
			},
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:  flagLogJSON,
				Usage: "Write logs as JSON",
			},
			&cli.StringFlag{
				Name:    flagFormat,
				Aliases: []string{"f"},
				Value:   string(serializer.FormatText),
				Usage:   "Output format for list commands (text, json, yaml)",
			},
			&cli.StringFlag{
				Name:    flagOutput,
				Aliases: []string{"o"},
				Usage:   "Output file for list commands (default: stdout)",
			},
			&cli.StringFlag{
				Name:  flagMetricsFile,
				Usage: "Write sweep metrics in the Prometheus text format to this file",
			},
		},
		Before: a.before,
		Commands: []*cli.Command{
			instancesCmd(a),
			volumesCmd(a),
			snapshotsCmd(a),
		},
	}
}

// before loads the configuration and installs the default logger. Flags
// override the config file and the environment, and --debug overrides the
// configured log level.
func (a *app) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	var opts []config.Option
	if v := cmd.String(flagProfile); v != "" {
		opts = append(opts, config.WithProfile(v))
	}
	if v := cmd.String(flagRegion); v != "" {
		opts = append(opts, config.WithRegion(v))
	}
	if v := cmd.String(flagMetricsFile); v != "" {
		opts = append(opts, config.WithMetricsFile(v))
	}

	cfg, err := config.Load(cmd.String(flagConfig), opts...)
	if err != nil {
		return ctx, err
	}
	a.cfg = cfg

	level := logging.ResolveLevel(cmd.Bool(flagDebug), cfg.LogLevel())
	if cmd.Bool(flagLogJSON) {
		logging.SetDefaultStructuredLogger(name, version, level)
	} else {
		logging.SetDefaultCLILogger(level)
	}

	slog.Debug("configuration loaded",
		slog.String("profile", cfg.Profile()),
		slog.String("region", cfg.Region()),
		slog.Duration("wait_timeout", cfg.WaitTimeout()),
		slog.Float64("rate_limit", float64(cfg.RateLimit())),
		slog.String("metrics_file", cfg.MetricsFile()),
	)
	return ctx, nil
}

// selectionFlags returns fresh --project and --instance flags.
func selectionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    flagProject,
			Aliases: []string{"p"},
			Usage:   "Only instances for project (tag Project:<name>)",
		},
		&cli.StringFlag{
			Name:    flagInstance,
			Aliases: []string{"i"},
			Usage:   "Only the instance with this id",
		},
	}
}

// forceFlag returns a fresh --force flag.
func forceFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  flagForce,
		Usage: "Act on all instances when neither --project nor --instance is set",
	}
}
