package headless

import (
	"fmt"
	"log/slog"

	"github.com/valerio/go-lr35902/lr35902"
	"github.com/valerio/go-lr35902/lr35902/backend"
	"github.com/valerio/go-lr35902/lr35902/debug"
)

const defaultProgressInterval = 100000

// Config holds the stopping conditions of a headless run.
type Config struct {
	// MaxSteps is the instruction budget of the run.
	MaxSteps int
	// UntilPC, when Target is set, ends the run as soon as PC reaches it.
	UntilPC uint16
	Target  bool
	// ProgressInterval logs progress every this many steps.
	ProgressInterval int
}

// Backend implements the Backend interface for batch runs without a screen.
type Backend struct {
	config Config
	steps  int
	last   *debug.Data
}

func New(config Config) *Backend {
	if config.ProgressInterval <= 0 {
		config.ProgressInterval = defaultProgressInterval
	}
	return &Backend{config: config}
}

func (h *Backend) Init(config backend.Config) error {
	args := []any{"title", config.Title, "steps", h.config.MaxSteps}
	if h.config.Target {
		args = append(args, "until_pc", fmt.Sprintf("0x%04X", h.config.UntilPC))
	}
	slog.Info("Running headless mode", args...)
	return nil
}

// Update requests one more step until a stopping condition is met.
func (h *Backend) Update(data *debug.Data) ([]backend.Command, error) {
	h.last = data

	if h.config.Target && data.CPU != nil && data.CPU.PC == h.config.UntilPC {
		slog.Info("Target reached", "pc", fmt.Sprintf("0x%04X", data.CPU.PC), "steps", h.steps)
		return []backend.Command{backend.CommandQuit}, nil
	}

	if data.CPU != nil && !data.CPU.Running {
		slog.Info("CPU stopped, ending headless run", "steps", h.steps)
		return []backend.Command{backend.CommandQuit}, nil
	}

	if h.steps >= h.config.MaxSteps {
		if h.config.Target {
			return nil, fmt.Errorf("%w: PC 0x%04X not reached after %d steps", lr35902.ErrStepLimit, h.config.UntilPC, h.steps)
		}
		slog.Info("Headless execution completed", "steps", h.steps)
		return []backend.Command{backend.CommandQuit}, nil
	}

	if h.steps > 0 && h.steps%h.config.ProgressInterval == 0 {
		slog.Info("Step progress", "completed", h.steps, "total", h.config.MaxSteps)
	}

	h.steps++
	return []backend.Command{backend.CommandStep}, nil
}

func (h *Backend) Cleanup() error {
	return nil
}

// Steps returns how many steps the backend requested.
func (h *Backend) Steps() int {
	return h.steps
}

// Last returns the most recent state the backend was shown.
func (h *Backend) Last() *debug.Data {
	return h.last
}
