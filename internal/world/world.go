// Package world is the entity registry driven by the scheduler. Entities
// live in a generation pool; saving one queues a throttled disk request on
// its slot, so despawning an entity before its turn drops the save.
package world

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/tickwork/internal/generation"
	"github.com/flemzord/tickwork/internal/scheduler"
	"github.com/flemzord/tickwork/internal/storage"
)

// ErrUnknownEntity indicates that no live entity occupies an index.
var ErrUnknownEntity = errors.New("world: unknown entity")

const defaultSaveTimeout = 5 * time.Second

// Entity is the state kept per slot.
type Entity struct {
	Name    string `json:"name"`
	Counter int    `json:"counter"`
	Version uint64 `json:"version"`
}

// EntityInfo describes a live entity together with its slot address.
type EntityInfo struct {
	Index      int    `json:"index"`
	Generation uint64 `json:"generation"`
	Entity
}

// Stats counts persistence outcomes since the world was created.
type Stats struct {
	Entities   int `json:"entities"`
	Saved      int `json:"saved"`
	SaveErrors int `json:"save_errors"`
}

// Config holds the world collaborators.
type Config struct {
	Scheduler   *scheduler.Scheduler
	Store       storage.Store // nil means storage.Discard
	Logger      *slog.Logger
	SaveTimeout time.Duration // bound on one store write, default 5s
}

// World owns the entity pool. Like the scheduler it must only be used from
// the host loop goroutine.
type World struct {
	sched  *scheduler.Scheduler
	store  storage.Store
	logger *slog.Logger

	saveTimeout time.Duration
	pool        *generation.Pool[Entity]
	stats       Stats
}

// New creates an empty world.
func New(cfg Config) *World {
	if cfg.Store == nil {
		cfg.Store = storage.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = defaultSaveTimeout
	}
	return &World{
		sched:       cfg.Scheduler,
		store:       cfg.Store,
		logger:      cfg.Logger.With("component", "world"),
		saveTimeout: cfg.SaveTimeout,
		pool:        generation.NewPool[Entity](),
	}
}

// Spawn creates an entity and returns its address.
func (w *World) Spawn(name string) EntityInfo {
	slot := w.pool.Acquire(Entity{Name: name})
	w.logger.Debug("entity spawned", "name", name, "index", slot.Index(), "generation", slot.Generation())
	return info(slot)
}

// Despawn releases the entity at index. Saves still queued for it are
// dropped when the scheduler reaches them.
func (w *World) Despawn(index int) error {
	slot, ok := w.pool.Get(index)
	if !ok {
		return fmt.Errorf("%w: index %d", ErrUnknownEntity, index)
	}
	name := slot.Value().Name
	w.pool.Release(slot)
	w.logger.Debug("entity despawned", "name", name, "index", index)
	return nil
}

// Get returns the entity at index.
func (w *World) Get(index int) (EntityInfo, error) {
	slot, ok := w.pool.Get(index)
	if !ok {
		return EntityInfo{}, fmt.Errorf("%w: index %d", ErrUnknownEntity, index)
	}
	return info(slot), nil
}

// List returns every live entity in index order.
func (w *World) List() []EntityInfo {
	out := make([]EntityInfo, 0, w.pool.Len())
	w.pool.Range(func(s *generation.Slot[Entity]) bool {
		out = append(out, info(s))
		return true
	})
	return out
}

// Touch adds n to the entity counter and bumps its version.
func (w *World) Touch(index, n int) (EntityInfo, error) {
	slot, ok := w.pool.Get(index)
	if !ok {
		return EntityInfo{}, fmt.Errorf("%w: index %d", ErrUnknownEntity, index)
	}
	e := slot.Value()
	e.Counter += n
	e.Version++
	return info(slot), nil
}

// Save queues a disk request that writes the entity's state when the
// scheduler grants it. The state written is the one current at that time.
func (w *World) Save(index int) (*scheduler.DiskRequest, error) {
	slot, ok := w.pool.Get(index)
	if !ok {
		return nil, fmt.Errorf("%w: index %d", ErrUnknownEntity, index)
	}
	req := w.sched.RequestDiskAccess(slot)
	req.Callback = func() { w.persist(slot) }
	return req, nil
}

// SaveAll queues one save per live entity and returns how many were queued.
func (w *World) SaveAll() int {
	n := 0
	w.pool.Range(func(s *generation.Slot[Entity]) bool {
		req := w.sched.RequestDiskAccess(s)
		req.Callback = func() { w.persist(s) }
		n++
		return true
	})
	return n
}

// Store returns the snapshot store saves are written to.
func (w *World) Store() storage.Store { return w.store }

// Stats returns the persistence counters.
func (w *World) Stats() Stats {
	s := w.stats
	s.Entities = w.pool.Len()
	return s
}

// persist runs inside a disk callback, so the slot is known to be live.
func (w *World) persist(slot *generation.Slot[Entity]) {
	e := *slot.Value()
	payload, err := json.Marshal(e)
	if err != nil {
		w.stats.SaveErrors++
		w.logger.Error("encode entity failed", "name", e.Name, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.saveTimeout)
	defer cancel()

	err = w.store.Save(ctx, storage.Snapshot{
		Entity:     e.Name,
		Generation: slot.Generation(),
		Payload:    payload,
	})
	if err != nil {
		w.stats.SaveErrors++
		w.logger.Error("save entity failed", "name", e.Name, "error", err)
		return
	}
	w.stats.Saved++
	w.logger.Debug("entity saved", "name", e.Name, "version", e.Version)
}

func info(s *generation.Slot[Entity]) EntityInfo {
	return EntityInfo{
		Index:      s.Index(),
		Generation: s.Generation(),
		Entity:     *s.Value(),
	}
}
