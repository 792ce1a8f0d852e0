package state

import (
	"context"
	"io"

	"github.com/ShayCichocki/intentflow/internal/decompose"
	"github.com/ShayCichocki/intentflow/internal/slots"
)

// RunStore persists execution run summaries.
type RunStore interface {
	CreateRun(ctx context.Context, r *Run) error
	FinishRun(ctx context.Context, r *Run) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	Migrate() error
}

// Store is everything the host persists.
type Store interface {
	slots.HistoryStore
	decompose.PatternStore
	RunStore
	Migrator
	io.Closer
}

var _ Store = (*DB)(nil)
