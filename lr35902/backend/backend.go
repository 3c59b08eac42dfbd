package backend

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/valerio/go-lr35902/lr35902/cpu"
	"github.com/valerio/go-lr35902/lr35902/debug"
)

// Command is a request a backend hands back to the driver loop.
type Command int

const (
	// CommandStep executes a single instruction.
	CommandStep Command = iota
	// CommandRunToggle starts or pauses continuous execution.
	CommandRunToggle
	// CommandCPUToggle stops a running CPU or starts a stopped one.
	CommandCPUToggle
	// CommandQuit ends the session.
	CommandQuit
)

var commandNames = [...]string{"step", "run-toggle", "cpu-toggle", "quit"}

func (c Command) String() string {
	if int(c) < len(commandNames) {
		return commandNames[c]
	}
	return "unknown"
}

// Backend represents a front-end driving an emulation session.
// Backends are responsible for:
// - Presenting the debug data of the current step
// - Translating their own events (keys, step budgets) into Commands
type Backend interface {
	// Init configures the backend. It must be called before Update.
	Init(config Config) error

	// Update shows the latest state and returns the commands collected since
	// the previous call.
	Update(data *debug.Data) ([]Command, error)

	// Cleanup releases the backend resources.
	Cleanup() error
}

// Config holds configuration for backends and the driver loop.
type Config struct {
	Title string
	// AutoRun starts the session executing continuously.
	AutoRun bool
	// StepsPerUpdate is how many instructions run between two updates while
	// executing continuously.
	StepsPerUpdate int
	// Interval paces updates. Zero runs as fast as possible.
	Interval time.Duration
	// StopOnError ends the session on the first failed step.
	StopOnError bool
}

// Emulator is the part of the emulator the driver loop needs.
type Emulator interface {
	Step() error
	Stop()
	Start()
	ExtractDebugData() *debug.Data
}

// Run drives emu with b until b asks to quit or ctx is cancelled.
func Run(ctx context.Context, emu Emulator, b Backend, config Config) error {
	if err := b.Init(config); err != nil {
		return err
	}
	defer func() {
		if err := b.Cleanup(); err != nil {
			slog.Error("Backend cleanup failed", "error", err)
		}
	}()

	if config.StepsPerUpdate <= 0 {
		config.StepsPerUpdate = 1
	}

	var tick <-chan time.Time
	if config.Interval > 0 {
		ticker := time.NewTicker(config.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	d := driver{emu: emu, config: config, running: config.AutoRun}
	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		if d.running {
			if err := d.run(); err != nil {
				return err
			}
		}

		data := emu.ExtractDebugData()
		data.Executing = d.running
		commands, err := b.Update(data)
		if err != nil {
			return err
		}
		for _, cmd := range commands {
			quit, err := d.handle(cmd)
			if err != nil || quit {
				return err
			}
		}
	}
}

type driver struct {
	emu     Emulator
	config  Config
	running bool
}

func (d *driver) run() error {
	for i := 0; i < d.config.StepsPerUpdate; i++ {
		if err := d.step(); err != nil {
			return err
		}
		if !d.running {
			return nil
		}
	}
	return nil
}

// step executes one instruction. Failures pause continuous execution and are
// only returned when the session should end on them.
func (d *driver) step() error {
	err := d.emu.Step()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, cpu.ErrStopped):
		slog.Info("CPU is stopped, start it to keep stepping")
		d.running = false
		return nil
	}

	d.running = false
	slog.Error("Step failed", "error", err)
	if d.config.StopOnError {
		return err
	}
	return nil
}

func (d *driver) handle(cmd Command) (quit bool, err error) {
	switch cmd {
	case CommandStep:
		return false, d.step()
	case CommandRunToggle:
		d.running = !d.running
		slog.Debug("Continuous execution toggled", "running", d.running)
	case CommandCPUToggle:
		data := d.emu.ExtractDebugData()
		if data.CPU != nil && data.CPU.Running {
			d.emu.Stop()
			slog.Info("CPU stopped")
		} else {
			d.emu.Start()
			slog.Info("CPU started")
		}
	case CommandQuit:
		return true, nil
	}
	return false, nil
}
