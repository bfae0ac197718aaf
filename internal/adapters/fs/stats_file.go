package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bft-labs/ledship/internal/domain"
)

// DefaultStatsFile is the status file name used when none is configured.
const DefaultStatsFile = "ledship-status.json"

// StatsFileRepository implements ports.StatsRepository using a JSON file.
type StatsFileRepository struct {
	path string
}

// NewStatsFileRepository creates a repository writing to path.
func NewStatsFileRepository(path string) *StatsFileRepository {
	if path == "" {
		path = filepath.Join(os.TempDir(), DefaultStatsFile)
	}
	return &StatsFileRepository{path: path}
}

// Load reads the last saved snapshot.
// Returns a zero Stats and nil error if the file does not exist.
func (r *StatsFileRepository) Load(ctx context.Context) (domain.Stats, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Stats{}, nil
		}
		return domain.Stats{}, err
	}

	var stats domain.Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		return domain.Stats{}, fmt.Errorf("parse %s: %w", r.path, err)
	}
	return stats, nil
}

// Save writes the snapshot to a temp file and renames it into place, so
// readers never see a partial file. SavedAt is set to the current time.
func (r *StatsFileRepository) Save(ctx context.Context, stats domain.Stats) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return err
	}

	stats.SavedAt = time.Now().UTC()
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, r.path)
}

// Path returns the full path to the status file.
func (r *StatsFileRepository) Path() string {
	return r.path
}
