package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/flemzord/tickwork/internal/storage"
	"github.com/spf13/afero"
)

const snapshotExt = ".json"

// Store implements storage.Store as one JSON file per snapshot, laid out as
// <entity>/<seq>.json under the filesystem root.
type Store struct {
	fs afero.Fs

	mu  sync.Mutex
	seq map[string]uint64 // last assigned seq, loaded lazily per entity
}

// Compile-time interface check.
var _ storage.Store = (*Store)(nil)

// NewStore returns a store writing to fsys. Callers usually pass an
// afero.BasePathFs rooted at the data directory.
func NewStore(fsys afero.Fs) *Store {
	return &Store{fs: fsys, seq: make(map[string]uint64)}
}

// entityDir escapes entity so that any name maps to a single path element.
func entityDir(entity string) string {
	return "/" + url.PathEscape(entity)
}

func snapshotPath(entity string, seq uint64) string {
	return path.Join(entityDir(entity), fmt.Sprintf("%020d%s", seq, snapshotExt))
}

// Save implements storage.Store.
func (s *Store) Save(ctx context.Context, snap storage.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if snap.Entity == "" || snap.Entity == "." || snap.Entity == ".." {
		return fmt.Errorf("file: invalid entity name %q", snap.Entity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	last, err := s.lastSeq(snap.Entity)
	if err != nil {
		return err
	}
	snap.Seq = last + 1
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("file: marshal snapshot: %w", err)
	}
	if err := s.fs.MkdirAll(entityDir(snap.Entity), 0o700); err != nil {
		return fmt.Errorf("file: create entity directory: %w", err)
	}
	if err := afero.WriteFile(s.fs, snapshotPath(snap.Entity, snap.Seq), data, 0o600); err != nil {
		return fmt.Errorf("file: write snapshot: %w", err)
	}
	s.seq[snap.Entity] = snap.Seq
	return nil
}

// Latest implements storage.Store.
func (s *Store) Latest(ctx context.Context, entity string) (storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return storage.Snapshot{}, err
	}

	s.mu.Lock()
	seqs, err := s.listSeqs(entityDir(entity))
	s.mu.Unlock()
	if err != nil {
		return storage.Snapshot{}, err
	}
	if len(seqs) == 0 {
		return storage.Snapshot{}, storage.ErrNotFound
	}

	data, err := afero.ReadFile(s.fs, snapshotPath(entity, seqs[len(seqs)-1]))
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("file: read snapshot: %w", err)
	}
	var snap storage.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return storage.Snapshot{}, fmt.Errorf("file: decode snapshot: %w", err)
	}
	return snap, nil
}

// Compact implements storage.Store.
func (s *Store) Compact(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dirs, err := afero.ReadDir(s.fs, "/")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("file: list entities: %w", err)
	}

	removed := 0
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		dir := "/" + d.Name()
		seqs, err := s.listSeqs(dir)
		if err != nil {
			return removed, err
		}
		for _, seq := range seqs[:max(len(seqs)-1, 0)] {
			if removed >= limit {
				return removed, nil
			}
			if err := ctx.Err(); err != nil {
				return removed, err
			}
			name := path.Join(dir, fmt.Sprintf("%020d%s", seq, snapshotExt))
			if err := s.fs.Remove(name); err != nil {
				return removed, fmt.Errorf("file: remove %s: %w", name, err)
			}
			removed++
		}
	}
	return removed, nil
}

// Close implements storage.Store.
func (s *Store) Close() error { return nil }

// lastSeq returns the highest seq stored for entity. Caller holds s.mu.
func (s *Store) lastSeq(entity string) (uint64, error) {
	if seq, ok := s.seq[entity]; ok {
		return seq, nil
	}
	seqs, err := s.listSeqs(entityDir(entity))
	if err != nil {
		return 0, err
	}
	var last uint64
	if len(seqs) > 0 {
		last = seqs[len(seqs)-1]
	}
	s.seq[entity] = last
	return last, nil
}

// listSeqs returns the sorted sequence numbers found in dir.
func (s *Store) listSeqs(dir string) ([]uint64, error) {
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("file: list %s: %w", dir, err)
	}
	seqs := make([]uint64, 0, len(entries))
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), snapshotExt)
		if !ok || e.IsDir() {
			continue
		}
		seq, err := strconv.ParseUint(name, 10, 64)
		if err != nil {
			continue
		}
		seqs = append(seqs, seq)
	}
	slices.Sort(seqs)
	return seqs, nil
}
