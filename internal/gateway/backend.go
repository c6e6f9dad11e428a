package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/flemzord/tickwork/internal/hostloop"
	"github.com/flemzord/tickwork/internal/runtime"
	"github.com/flemzord/tickwork/internal/world"
	"github.com/google/uuid"
)

// Backend is the slice of *runtime.Runtime the gateway drives.
type Backend interface {
	Status(ctx context.Context) (runtime.Status, error)
	SubmitJob(ctx context.Context, name string, units int) (runtime.JobTicket, error)
	Spawn(ctx context.Context, name string) (world.EntityInfo, error)
	Despawn(ctx context.Context, index int) error
	Touch(ctx context.Context, index, n int) (world.EntityInfo, error)
	Save(ctx context.Context, index int) (uuid.UUID, error)
	SaveAll(ctx context.Context) (int, error)
	Entities(ctx context.Context) ([]world.EntityInfo, error)
	EnqueueCompaction(ctx context.Context) error
}

var _ Backend = (*runtime.Runtime)(nil)

var errNoBackend = errors.New("runtime unavailable")

// statusFor maps backend errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, runtime.ErrInvalidJob):
		return http.StatusBadRequest
	case errors.Is(err, world.ErrUnknownEntity):
		return http.StatusNotFound
	case errors.Is(err, errNoBackend),
		errors.Is(err, hostloop.ErrNotRunning),
		errors.Is(err, hostloop.ErrStopped),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
