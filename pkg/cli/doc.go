/*
Copyright © 2025 The shotty Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package cli implements the command-line interface for shotty.
//
// # Overview
//
// shotty manages EC2 instances and their EBS volumes selected by the
// Project tag or by instance id. It lists instances, volumes and snapshots,
// issues start, stop and reboot actions, and snapshots every volume of the
// selected instances, stopping and restarting them around the snapshot.
//
// # Commands
//
//	shotty instances list     [--project P] [--instance I]
//	shotty instances start    [--project P] [--instance I] [--force]
//	shotty instances stop     [--project P] [--instance I] [--force]
//	shotty instances reboot   [--project P] [--instance I] [--force]
//	shotty instances snapshot [--project P] [--instance I] [--force]
//	shotty volumes list       [--project P] [--instance I]
//	shotty snapshots list     [--project P] [--instance I] [--all]
//
// Mutating commands refuse to act on every instance unless --force is given
// when neither --project nor --instance narrows the selection. List commands
// never require --force.
//
// # Global Flags
//
//	--profile   AWS shared config profile (default "shotty", env SHOTTY_PROFILE)
//	--region    AWS region (env AWS_REGION)
//	--config    YAML configuration file
//	--format    output format for list commands: text, json, yaml
//	--output    output file for list commands (default stdout)
//	--debug     enable debug logging
//	--log-json  write logs as JSON
//	--metrics-file  Prometheus text file written after each mutating
//	            command (env SHOTTY_METRICS_FILE)
//
// Logs go to stderr, listing rows to stdout or --output. Per-instance
// failures are logged and do not change the exit status.
package cli
