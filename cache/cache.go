// Package cache holds the local durable copy of a board. A store reads it once
// on load and rewrites it after every change it makes.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"kanban-sync/domain"
)

// Cache is a byte store keyed by board.
type Cache interface {
	// Get returns the stored value. The bool is false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Key returns the cache key of a board.
func Key(boardID string) string {
	return "board:" + boardID
}

// SnapshotVersion is bumped whenever the snapshot layout changes. Snapshots of
// another version are treated as a miss.
const SnapshotVersion = 1

// ErrSnapshotVersion is returned by DecodeSnapshot for a foreign version.
var ErrSnapshotVersion = errors.New("cache: unsupported snapshot version")

// Snapshot is the cached copy of a board in board order.
type Snapshot struct {
	Version  int           `json:"version"`
	CachedAt time.Time     `json:"cachedAt"`
	Tasks    []domain.Task `json:"tasks"`
}

// EncodeSnapshot serializes tasks stamped with at.
func EncodeSnapshot(tasks []domain.Task, at time.Time) ([]byte, error) {
	if tasks == nil {
		tasks = []domain.Task{}
	}
	data, err := sonic.Marshal(Snapshot{Version: SnapshotVersion, CachedAt: at.UTC(), Tasks: tasks})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a snapshot written by EncodeSnapshot.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := sonic.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Version != SnapshotVersion {
		return Snapshot{}, fmt.Errorf("%w: %d", ErrSnapshotVersion, s.Version)
	}
	if s.Tasks == nil {
		s.Tasks = []domain.Task{}
	}
	return s, nil
}
