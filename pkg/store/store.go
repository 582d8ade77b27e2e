// Package store persists run reports so past propagation runs can be
// inspected after the fact.
package store

import (
	"errors"

	"github.com/rzbill/stencil/pkg/types"
)

// ErrNotFound is returned when no report exists for a run ID.
var ErrNotFound = errors.New("report not found")

// Store is the run journal.
type Store interface {
	// SaveReport persists one finished run report.
	SaveReport(report *types.Report) error

	// GetReport returns the report for a run ID, or ErrNotFound.
	GetReport(runID string) (*types.Report, error)

	// ListReports returns up to limit reports, newest first.
	ListReports(limit int) ([]*types.Report, error)

	// Close releases the underlying storage.
	Close() error
}
