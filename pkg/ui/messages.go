// Package ui provides the Bubble Tea TUI for the coordinator.
package ui

import (
	arbitrageDomain "github.com/fd1az/flasharb/business/arbitrage/domain"
	autotradeDomain "github.com/fd1az/flasharb/business/autotrade/domain"
)

// Message types for TUI updates

// ScanMsg is sent after every scan cycle with the full report.
type ScanMsg struct {
	Report arbitrageDomain.ScanReport
}

// ActorsMsg carries the latest auto-trader snapshots.
type ActorsMsg struct {
	Actors []autotradeDomain.Snapshot
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// LogMsg is sent to display a log message in the UI.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}
