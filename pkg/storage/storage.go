package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ogulcanaydogan/powermon/pkg/model"
)

// ErrNotFound is returned when a lookup matches no rows.
var ErrNotFound = errors.New("not found")

// Storage defines the persistence layer for balance readings.
type Storage interface {
	// SaveReading persists a reading. Missing IDs and timestamps are filled in.
	SaveReading(ctx context.Context, r *model.Reading) error

	// LatestReading returns the most recent reading, or ErrNotFound.
	LatestReading(ctx context.Context) (*model.Reading, error)

	// ListReadings returns readings matching the filter, newest first.
	ListReadings(ctx context.Context, filter model.ReadingFilter) ([]model.Reading, error)

	// Close releases resources.
	Close() error
}

// Open selects a backend from the URL. postgres:// and postgresql:// URLs use
// Postgres; sqlite: URLs and bare paths use SQLite.
func Open(ctx context.Context, url string) (Storage, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return NewPostgres(ctx, url)
	case url == "":
		return nil, errors.New("storage url is empty")
	}

	path, err := expandHome(strings.TrimPrefix(url, "sqlite:"))
	if err != nil {
		return nil, err
	}
	return NewSQLite(path)
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
