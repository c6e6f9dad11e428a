package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kardianos/service"
)

// ServiceName is the system service name used by `tickwork service`.
const ServiceName = "tickwork"

// serviceStopTimeout bounds how long Stop waits for Run to return.
const serviceStopTimeout = 45 * time.Second

// Program adapts Run to the kardianos/service lifecycle.
type Program struct {
	params RunParams
	run    func(context.Context, RunParams) error

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan error
}

var _ service.Interface = (*Program)(nil)

// NewProgram returns a service program running Run with params.
func NewProgram(params RunParams) *Program {
	return &Program{params: params, run: Run}
}

// Start implements service.Interface. It must not block.
func (p *Program) Start(service.Service) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return errors.New("service already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	p.cancel, p.done = cancel, done

	go func() {
		err := p.run(ctx, p.params)
		if err != nil {
			slog.Error("tickwork exited", "error", err)
		}
		done <- err
	}()
	return nil
}

// Stop implements service.Interface.
func (p *Program) Stop(service.Service) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case err := <-done:
		return err
	case <-time.After(serviceStopTimeout):
		return fmt.Errorf("tickwork did not stop within %s", serviceStopTimeout)
	}
}

// ServiceConfig describes the system service. The service runs
// `tickwork service run` with an absolute config path.
func ServiceConfig(cfgPath string) *service.Config {
	args := []string{"service", "run"}
	if cfgPath != "" {
		args = append(args, "--config", cfgPath)
	}
	return &service.Config{
		Name:        ServiceName,
		DisplayName: "tickwork",
		Description: "Cooperative tick scheduler with budgeted jobs and throttled disk writes.",
		Arguments:   args,
	}
}

// NewService binds a Program to the platform service manager.
func NewService(params RunParams) (service.Service, *Program, error) {
	prg := NewProgram(params)
	svc, err := service.New(prg, ServiceConfig(params.ConfigPath))
	if err != nil {
		return nil, nil, fmt.Errorf("creating service: %w", err)
	}
	return svc, prg, nil
}
