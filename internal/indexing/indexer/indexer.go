// Package indexer defines the contract shared by the two indexing modes.
// The historical and realtime variants are independent types with no
// shared mutable state beyond their own program value and stop signal.
package indexer

import "context"

// Mode distinguishes the two indexing variants.
type Mode string

const (
	ModeHistorical Mode = "historical"
	ModeRealtime   Mode = "realtime"
)

// Loop states reported through Status. Historical moves
// idle → resuming → paging ↔ draining; realtime moves
// idle → subscribed and may end in disabled.
const (
	StateIdle       = "idle"
	StateResuming   = "resuming"
	StatePaging     = "paging"
	StateDraining   = "draining"
	StateSubscribed = "subscribed"
	StateDisabled   = "disabled"
	StateStopped    = "stopped"
)

// Indexer is one long-lived ingestion loop for a single (program, mode)
// pair.
type Indexer interface {
	// Start runs the loop until the context is done or Stop is called.
	// It blocks; callers run it in its own goroutine.
	Start(ctx context.Context) error

	// Stop signals the loop to terminate at its next checkpoint. In-flight
	// RPC and store calls are allowed to complete.
	Stop() error

	// Status reports the loop's current position in its state machine.
	Status() Status
}

// Status is a point-in-time view of one indexer instance.
type Status struct {
	Program string `json:"program"`
	Name    string `json:"name"`
	Mode    Mode   `json:"mode"`
	State   string `json:"state"`
}
