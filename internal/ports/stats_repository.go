package ports

import (
	"context"

	"github.com/bft-labs/ledship/internal/domain"
)

// StatsRepository persists the status snapshot read by `ledship status`.
type StatsRepository interface {
	// Load returns the last saved snapshot.
	// Returns a zero Stats and nil error if none was saved yet.
	Load(ctx context.Context) (domain.Stats, error)

	// Save persists the snapshot atomically.
	Save(ctx context.Context, stats domain.Stats) error
}
