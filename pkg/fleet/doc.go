// Package fleet defines the data model shared by the selector, the lifecycle
// orchestrator and the provider implementations.
//
// Instances, volumes and snapshots are owned by the cloud provider. The types
// here are read-only views of provider state at the time of a call; nothing in
// this package is persisted.
package fleet
