// Package lr35902 wires a cartridge, the memory bus and the CPU into a
// session a host can step.
package lr35902

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/valerio/go-lr35902/lr35902/cartridge"
	"github.com/valerio/go-lr35902/lr35902/cpu"
	"github.com/valerio/go-lr35902/lr35902/debug"
	"github.com/valerio/go-lr35902/lr35902/disasm"
	"github.com/valerio/go-lr35902/lr35902/memory"
)

// ErrStepLimit is returned by RunUntil when the target is not reached in time.
var ErrStepLimit = errors.New("step limit reached")

const (
	snapshotBefore   = 0x10
	snapshotAfter    = 0x30
	disassemblyLines = 16
)

// Emulator represents the root struct and entry point for running the emulation
type Emulator struct {
	cpu  *cpu.CPU
	mem  *memory.MMU
	cart *cartridge.Cartridge

	lastErr error
	logger  *slog.Logger
}

type settings struct {
	logger   *slog.Logger
	trace    bool
	strictIO bool
}

// Option configures an Emulator.
type Option func(*settings)

// WithLogger sets the logger shared by the CPU and the memory bus.
func WithLogger(l *slog.Logger) Option { return func(s *settings) { s.logger = l } }

// WithTrace logs every executed instruction at debug level.
func WithTrace(enabled bool) Option { return func(s *settings) { s.trace = enabled } }

// WithStrictIO makes I/O registers without a device fault when accessed. It
// defaults to memory.DefaultStrictIO.
func WithStrictIO(enabled bool) Option { return func(s *settings) { s.strictIO = enabled } }

// New creates an emulator running the cartridge.
func New(cart *cartridge.Cartridge, opts ...Option) *Emulator {
	s := settings{logger: slog.Default(), strictIO: memory.DefaultStrictIO}
	for _, opt := range opts {
		opt(&s)
	}

	mem := memory.NewWithCartridge(cart, memory.WithLogger(s.logger), memory.WithStrictIO(s.strictIO))

	return &Emulator{
		cpu:    cpu.New(cart, cpu.WithBus(mem), cpu.WithLogger(s.logger), cpu.WithTrace(s.trace)),
		mem:    mem,
		cart:   cart,
		logger: s.logger,
	}
}

// NewWithFile creates a new emulator instance and loads the file specified into it.
func NewWithFile(path string, opts ...Option) (*Emulator, error) {
	cart, err := cartridge.Load(path)
	if err != nil {
		return nil, err
	}
	return New(cart, opts...), nil
}

// Step executes one instruction.
func (e *Emulator) Step() error {
	err := e.cpu.Step()
	if err != nil && !errors.Is(err, cpu.ErrStopped) {
		e.lastErr = err
	}
	return err
}

// RunSteps executes up to n instructions, stopping at the first error. It
// returns how many instructions completed.
func (e *Emulator) RunSteps(n int) (int, error) {
	for i := 0; i < n; i++ {
		if err := e.Step(); err != nil {
			return i, err
		}
	}
	return n, nil
}

// RunUntil steps until PC equals pc, executing at most limit instructions.
func (e *Emulator) RunUntil(pc uint16, limit int) (int, error) {
	for i := 0; i < limit; i++ {
		if e.cpu.Registers().PC == pc {
			return i, nil
		}
		if err := e.Step(); err != nil {
			return i, err
		}
	}
	if e.cpu.Registers().PC == pc {
		return limit, nil
	}
	return limit, fmt.Errorf("%w: PC 0x%04X not reached after %d steps", ErrStepLimit, pc, limit)
}

// Stop pauses the CPU, Start resumes it.
func (e *Emulator) Stop()  { e.cpu.Stop() }
func (e *Emulator) Start() { e.cpu.Start() }

func (e *Emulator) CPU() *cpu.CPU                    { return e.cpu }
func (e *Emulator) MMU() *memory.MMU                 { return e.mem }
func (e *Emulator) Cartridge() *cartridge.Cartridge { return e.cart }

// LastError returns the last error returned by Step, nil if none.
func (e *Emulator) LastError() error { return e.lastErr }

// ExtractDebugData collects everything a debugger front-end displays.
func (e *Emulator) ExtractDebugData() *debug.Data {
	pc := e.cpu.Registers().PC
	reader := disasm.ReaderFunc(e.mem.Peek)

	snapshot := debug.SnapshotAround(reader, pc, snapshotBefore, snapshotAfter)

	data := &debug.Data{
		CPU:         debug.ExtractCPUState(e.cpu),
		Memory:      snapshot,
		Disassembly: debug.CreateDisassembly(snapshot, pc, disassemblyLines),
		Cartridge:   debug.ExtractCartridgeInfo(e.cart),
	}
	if e.lastErr != nil {
		data.LastError = e.lastErr.Error()
	}
	return data
}
