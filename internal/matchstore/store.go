package matchstore

import (
	"context"
	"errors"

	"github.com/park285/padel-scoreboard/internal/scoring"
)

var (
	ErrNotFound = errors.New("match not found")
	ErrConflict = errors.New("match already exists")
	// ErrStale means the record changed since it was loaded; reload and retry.
	ErrStale = errors.New("match was modified concurrently")
)

// Store persists match records keyed by identifier.
//
// Save is a compare-and-swap on Match.Version: it fails with ErrStale when the
// stored version differs and bumps m.Version on success.
type Store interface {
	Create(ctx context.Context, m *scoring.Match) error
	Get(ctx context.Context, id string) (*scoring.Match, error)
	Save(ctx context.Context, m *scoring.Match) error
}
