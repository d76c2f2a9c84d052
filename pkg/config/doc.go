// Package config holds the settings shared by every shotty command.
//
// Config is immutable after creation and built with functional options:
//
//	cfg := config.NewConfig(
//	    config.WithProfile("prod"),
//	    config.WithRegion("eu-west-1"),
//	)
//
// Load layers the sources in increasing precedence: built-in defaults, an
// optional YAML file, environment variables, then explicit options (flags):
//
//	cfg, err := config.Load("shotty.yaml", config.WithRegion(region))
//
// # Defaults
//
//   - Profile: "shotty"
//   - SnapshotDescription: "Created by SnapshotAlyzer 3000"
//   - WaitTimeout: 0 (wait until the provider reports the target state)
//   - RateLimit: 0 (no client-side throttling)
//
// # Environment Variables
//
//	SHOTTY_PROFILE       AWS shared config profile
//	AWS_REGION           AWS region
//	SHOTTY_WAIT_TIMEOUT  Max wait for stop/start transitions (Go duration)
//	LOG_LEVEL            Log level (debug, info, warn, error)
//	SHOTTY_METRICS_FILE  Prometheus text file written after each sweep
package config
