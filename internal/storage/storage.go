// Package storage defines the snapshot store that entity saves are written
// to. Backends live under modules/storage and register themselves as the
// "storage.snapshots" service.
package storage

import (
	"context"
	"errors"
	"time"
)

// ServiceName is the AppContext service key backends register under.
const ServiceName = "storage.snapshots"

// ErrNotFound indicates that no snapshot exists for an entity.
var ErrNotFound = errors.New("storage: snapshot not found")

// Snapshot is one persisted copy of an entity's state.
type Snapshot struct {
	Entity     string    `json:"entity"`
	Seq        uint64    `json:"seq"` // assigned by the store, increasing per entity
	Generation uint64    `json:"generation"`
	Payload    []byte    `json:"payload"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store persists snapshots. Implementations must be safe for concurrent use.
type Store interface {
	// Save appends a snapshot. Seq is assigned by the store and CreatedAt
	// defaults to now.
	Save(ctx context.Context, snap Snapshot) error

	// Latest returns the newest snapshot of entity, or ErrNotFound.
	Latest(ctx context.Context, entity string) (Snapshot, error)

	// Compact deletes up to limit superseded snapshots, keeping the newest
	// per entity, and returns how many were removed.
	Compact(ctx context.Context, limit int) (int, error)

	// Close releases the backend.
	Close() error
}

// Discard is a Store that drops every snapshot.
var Discard Store = discard{}

type discard struct{}

func (discard) Save(context.Context, Snapshot) error { return nil }

func (discard) Latest(context.Context, string) (Snapshot, error) {
	return Snapshot{}, ErrNotFound
}

func (discard) Compact(context.Context, int) (int, error) { return 0, nil }

func (discard) Close() error { return nil }
