package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/tickwork/internal/storage"
)

// Store implements storage.Store on a SQLite database.
type Store struct {
	db *sql.DB
}

// Compile-time interface check.
var _ storage.Store = (*Store)(nil)

// Save implements storage.Store. The sequence number is computed inside the
// INSERT so concurrent saves of one entity never collide.
func (s *Store) Save(ctx context.Context, snap storage.Snapshot) error {
	createdAt := snap.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	payload := snap.Payload
	if payload == nil {
		payload = []byte{}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (entity, seq, generation, payload, created_at)
		SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?
		FROM snapshots WHERE entity = ?`,
		snap.Entity, int64(snap.Generation), payload,
		createdAt.Format(time.RFC3339Nano), snap.Entity,
	)
	if err != nil {
		return fmt.Errorf("sqlite: save snapshot of %s: %w", snap.Entity, err)
	}
	return nil
}

// Latest implements storage.Store.
func (s *Store) Latest(ctx context.Context, entity string) (storage.Snapshot, error) {
	var (
		snap         storage.Snapshot
		seq, gen     int64
		createdAtStr string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT entity, seq, generation, payload, created_at
		FROM snapshots
		WHERE entity = ?
		ORDER BY seq DESC
		LIMIT 1`,
		entity,
	).Scan(&snap.Entity, &seq, &gen, &snap.Payload, &createdAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Snapshot{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("sqlite: latest snapshot of %s: %w", entity, err)
	}

	snap.Seq = uint64(seq)
	snap.Generation = uint64(gen)
	t, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("sqlite: parse created_at %q: %w", createdAtStr, err)
	}
	snap.CreatedAt = t
	return snap, nil
}

// Compact implements storage.Store.
func (s *Store) Compact(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		return 0, nil
	}
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM snapshots WHERE rowid IN (
			SELECT s.rowid FROM snapshots s
			WHERE s.seq < (SELECT MAX(m.seq) FROM snapshots m WHERE m.entity = s.entity)
			ORDER BY s.entity, s.seq
			LIMIT ?
		)`,
		limit,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: compact snapshots: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: rows affected: %w", err)
	}
	return int(n), nil
}

// Count returns the total number of stored snapshots.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM snapshots").Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count snapshots: %w", err)
	}
	return n, nil
}

// Close implements storage.Store.
func (s *Store) Close() error {
	return s.db.Close()
}
