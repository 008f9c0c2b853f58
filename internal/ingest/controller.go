package ingest

import (
	"context"
	"errors"
	"sort"
	"sync"

	"tickd/pkg/feed"
)

// Control errors are reported to the caller as rejected no-ops, never raised.
var (
	ErrAlreadyRunning = errors.New("ingest: already running")
	ErrAlreadyIdle    = errors.New("ingest: already idle")
)

// ControllerState is the externally visible processing state.
type ControllerState int

const (
	StateIdle ControllerState = iota
	StateRunning
)

func (s ControllerState) String() string {
	if s == StateRunning {
		return "running"
	}
	return "idle"
}

// Status is the combined view served to the UI collaborator.
type Status struct {
	State      string          `json:"state"`
	Connection string          `json:"connection"`
	Symbols    []string        `json:"symbols"`
	Backlog    int             `json:"backlog"`
	Counters   CounterSnapshot `json:"counters"`
}

// Controller gates the pipeline behind an explicit Idle ↔ Running state
// machine. Start and stop transitions are the only externally triggered
// events; invalid transitions are rejected, not ignored silently.
type Controller struct {
	pipeline *Pipeline

	mu    sync.Mutex
	state ControllerState
}

// NewController wraps a pipeline. The controller starts Idle.
func NewController(pipeline *Pipeline) *Controller {
	return &Controller{pipeline: pipeline}
}

// Start transitions Idle → Running and launches the pipeline. Returns
// ErrAlreadyRunning without side effects when already Running.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateRunning {
		return ErrAlreadyRunning
	}
	c.pipeline.Start(context.Background())
	c.state = StateRunning
	return nil
}

// Stop transitions Running → Idle, tearing the pipeline down gracefully.
// Returns ErrAlreadyIdle without side effects when already Idle.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateIdle {
		return ErrAlreadyIdle
	}
	c.pipeline.Stop()
	c.state = StateIdle
	return nil
}

// State returns the controller state.
func (c *Controller) State() ControllerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status assembles the full status view. While Idle the connection always
// reads as disconnected regardless of the last session's state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	connection := feed.StateDisconnected
	if state == StateRunning {
		connection = c.pipeline.Status()
	}
	symbols := c.pipeline.TrackedSymbols()
	sort.Strings(symbols)
	return Status{
		State:      state.String(),
		Connection: connection.String(),
		Symbols:    symbols,
		Backlog:    c.pipeline.Backlog(),
		Counters:   c.pipeline.Counters(),
	}
}
