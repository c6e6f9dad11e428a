package file

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/flemzord/tickwork/internal/core"
	"github.com/flemzord/tickwork/internal/storage"
	"github.com/spf13/afero"
)

func TestStore_SaveAndLatest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fsys := afero.NewMemMapFs()
	s := NewStore(fsys)

	for i := range 3 {
		payload := []byte(fmt.Sprintf(`{"counter":%d}`, i))
		if err := s.Save(ctx, storage.Snapshot{Entity: "crate", Generation: 7, Payload: payload}); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	got, err := s.Latest(ctx, "crate")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got.Seq != 3 || got.Generation != 7 || string(got.Payload) != `{"counter":2}` {
		t.Errorf("Latest = %+v", got)
	}

	ok, err := afero.Exists(fsys, snapshotPath("crate", 3))
	if err != nil || !ok {
		t.Errorf("expected snapshot file at %s", snapshotPath("crate", 3))
	}
}

func TestStore_SeqSurvivesRestart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fsys := afero.NewMemMapFs()
	_ = NewStore(fsys).Save(ctx, storage.Snapshot{Entity: "a"})
	_ = NewStore(fsys).Save(ctx, storage.Snapshot{Entity: "a"})

	got, err := NewStore(fsys).Latest(ctx, "a")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got.Seq != 2 {
		t.Errorf("seq = %d, want 2", got.Seq)
	}
}

func TestStore_EscapesEntityNames(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore(afero.NewMemMapFs())

	if err := s.Save(ctx, storage.Snapshot{Entity: "a/b", Payload: []byte("x")}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := s.Latest(ctx, "a"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("entity %q leaked into %q: %v", "a/b", "a", err)
	}
	if _, err := s.Latest(ctx, "a/b"); err != nil {
		t.Errorf("Latest(a/b): %v", err)
	}
	if err := s.Save(ctx, storage.Snapshot{Entity: ".."}); err == nil {
		t.Error("expected error for entity \"..\"")
	}
}

func TestStore_LatestNotFound(t *testing.T) {
	t.Parallel()

	_, err := NewStore(afero.NewMemMapFs()).Latest(context.Background(), "ghost")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStore_Compact(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore(afero.NewMemMapFs())
	for _, e := range []string{"a", "a", "a", "b", "b", "c"} {
		if err := s.Save(ctx, storage.Snapshot{Entity: e}); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	var batches []int
	for {
		n, err := s.Compact(ctx, 2)
		if err != nil {
			t.Fatalf("Compact: %v", err)
		}
		batches = append(batches, n)
		if n == 0 {
			break
		}
	}
	if fmt.Sprint(batches) != "[2 1 0]" {
		t.Errorf("batches = %v, want [2 1 0]", batches)
	}

	for entity, seq := range map[string]uint64{"a": 3, "b": 2, "c": 1} {
		got, err := s.Latest(ctx, entity)
		if err != nil {
			t.Fatalf("Latest(%s): %v", entity, err)
		}
		if got.Seq != seq {
			t.Errorf("%s seq = %d, want %d", entity, got.Seq, seq)
		}
	}

	// Compaction must not reset numbering.
	_ = s.Save(ctx, storage.Snapshot{Entity: "a"})
	if got, _ := s.Latest(ctx, "a"); got.Seq != 4 {
		t.Errorf("seq after compaction = %d, want 4", got.Seq)
	}
}

func TestStore_CompactEmpty(t *testing.T) {
	t.Parallel()

	n, err := NewStore(afero.NewMemMapFs()).Compact(context.Background(), 5)
	if err != nil || n != 0 {
		t.Errorf("Compact = %d, %v; want 0, nil", n, err)
	}
}

func TestModule_Provision(t *testing.T) {
	t.Parallel()

	ctx := core.NewAppContext(slog.Default(), "/data")
	m := &Module{fs: afero.NewMemMapFs(), config: Config{Dir: "snaps"}}
	if err := m.Provision(ctx); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if want := filepath.Join("/data", "snaps"); m.config.Dir != want {
		t.Errorf("dir = %q, want %q", m.config.Dir, want)
	}

	svc, ok := ctx.Service(storage.ServiceName)
	if !ok || svc != storage.Store(m.Store()) {
		t.Fatalf("storage.snapshots service = %v, %v", svc, ok)
	}
	if err := m.Store().Save(context.Background(), storage.Snapshot{Entity: "x"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if ok, _ := afero.Exists(m.fs, "/data/snaps/x/00000000000000000001.json"); !ok {
		t.Error("snapshot not written under the configured directory")
	}
}
