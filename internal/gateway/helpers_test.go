package gateway

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/tickwork/internal/runtime"
	"github.com/flemzord/tickwork/internal/world"
	"github.com/google/uuid"
)

// fakeBackend is an in-memory Backend. err, when set, is returned by
// every call.
type fakeBackend struct {
	mu         sync.Mutex
	err        error
	entities   map[int]world.EntityInfo
	next       int
	jobs       []string
	compaction int
	saved      []int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{entities: make(map[int]world.EntityInfo)}
}

func (f *fakeBackend) Status(context.Context) (runtime.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return runtime.Status{}, f.err
	}
	return runtime.Status{
		RunID: "run-1",
		Jobs:  len(f.jobs),
		World: world.Stats{Entities: len(f.entities)},
	}, nil
}

func (f *fakeBackend) SubmitJob(_ context.Context, name string, units int) (runtime.JobTicket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return runtime.JobTicket{}, f.err
	}
	if name == "" || units <= 0 {
		return runtime.JobTicket{}, runtime.ErrInvalidJob
	}
	f.jobs = append(f.jobs, name)
	return runtime.JobTicket{ID: uuid.New(), Name: name, Units: units}, nil
}

func (f *fakeBackend) Spawn(_ context.Context, name string) (world.EntityInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return world.EntityInfo{}, f.err
	}
	info := world.EntityInfo{Index: f.next, Entity: world.Entity{Name: name}}
	f.entities[f.next] = info
	f.next++
	return info, nil
}

func (f *fakeBackend) Despawn(_ context.Context, index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.entities[index]; !ok {
		return world.ErrUnknownEntity
	}
	delete(f.entities, index)
	return nil
}

func (f *fakeBackend) Touch(_ context.Context, index, n int) (world.EntityInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return world.EntityInfo{}, f.err
	}
	info, ok := f.entities[index]
	if !ok {
		return world.EntityInfo{}, world.ErrUnknownEntity
	}
	info.Counter += n
	info.Version++
	f.entities[index] = info
	return info, nil
}

func (f *fakeBackend) Save(_ context.Context, index int) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return uuid.Nil, f.err
	}
	if _, ok := f.entities[index]; !ok {
		return uuid.Nil, world.ErrUnknownEntity
	}
	f.saved = append(f.saved, index)
	return uuid.New(), nil
}

func (f *fakeBackend) SaveAll(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	for i := range f.entities {
		f.saved = append(f.saved, i)
	}
	return len(f.entities), nil
}

func (f *fakeBackend) Entities(context.Context) ([]world.EntityInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []world.EntityInfo
	for i := range f.next {
		if e, ok := f.entities[i]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeBackend) EnqueueCompaction(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.compaction++
	return nil
}

// newHandlerGateway returns a gateway wired to backend without a listener.
func newHandlerGateway(backend Backend, auth AuthConfig) *Gateway {
	g := &Gateway{
		logger:    slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		metrics:   &Metrics{},
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}
	g.config.Auth = auth
	g.config.defaults()
	if backend != nil {
		g.backend = backend
	}
	return g
}

// serve runs one request through the full router.
func serve(t *testing.T, g *Gateway, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rr := httptest.NewRecorder()
	g.buildRouter().ServeHTTP(rr, req)
	return rr
}
