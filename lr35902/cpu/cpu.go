// Package cpu implements the Sharp LR35902: a register file, an opcode
// decoder and an interpreter stepping one instruction at a time.
package cpu

import (
	"fmt"
	"log/slog"

	"github.com/valerio/go-lr35902/lr35902/bit"
	"github.com/valerio/go-lr35902/lr35902/cartridge"
	"github.com/valerio/go-lr35902/lr35902/memory"
)

// Bus is the memory interface the CPU fetches from and executes against.
type Bus interface {
	Read(address uint16) byte
	Write(address uint16, value byte)
}

// FaultReporter is implemented by buses that record accesses they could not
// serve. The CPU collects the fault after every instruction.
type FaultReporter interface {
	TakeFault() error
}

// Journal is implemented by buses that can hold back writes. Step opens a
// journal around every instruction and commits it only when the instruction
// completed without a fault.
type Journal interface {
	Begin()
	Commit()
	Discard()
}

// Cycles counts elapsed time. A machine cycle is four clock cycles.
type Cycles struct {
	Machine uint64
	Clock   uint64
}

// CPU is the main struct holding LR35902 state
type CPU struct {
	regs   Registers
	cycles Cycles

	// metadata
	ime       bool
	eiPending bool // EI delay: interrupts enable after the next instruction
	halted    bool
	running   bool
	opcodePC  uint16

	cart   *cartridge.Cartridge
	bus    Bus
	logger *slog.Logger
	trace  bool
}

// Option configures a CPU.
type Option func(*CPU)

// WithLogger sets the logger, slog.Default() otherwise.
func WithLogger(l *slog.Logger) Option { return func(c *CPU) { c.logger = l } }

// WithTrace logs every executed instruction at debug level.
func WithTrace(enabled bool) Option { return func(c *CPU) { c.trace = enabled } }

// WithBus replaces the memory unit built around the cartridge.
func WithBus(b Bus) Option { return func(c *CPU) { c.bus = b } }

// New returns a CPU ready to execute the cartridge from its entry point.
func New(cart *cartridge.Cartridge, opts ...Option) *CPU {
	c := &CPU{
		regs:    NewRegisters(),
		running: true,
		cart:    cart,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.bus == nil {
		c.bus = memory.NewWithCartridge(cart, memory.WithLogger(c.logger))
	}
	return c
}

type snapshot struct {
	regs      Registers
	ime       bool
	eiPending bool
	halted    bool
	running   bool
}

func (c *CPU) snapshot() snapshot {
	return snapshot{regs: c.regs, ime: c.ime, eiPending: c.eiPending, halted: c.halted, running: c.running}
}

func (c *CPU) restore(s snapshot) {
	c.regs = s.regs
	c.ime = s.ime
	c.eiPending = s.eiPending
	c.halted = s.halted
	c.running = s.running
}

// Step executes exactly one instruction. When it fails, an *ExecError is
// returned and registers and cycles are restored to their value before the
// step, so the host can keep driving the CPU. On a bus implementing Journal
// the instruction's writes are dropped as well.
func (c *CPU) Step() error {
	if !c.running {
		return ErrStopped
	}
	if c.halted {
		c.addCycles(4)
		return nil
	}

	before := c.snapshot()
	enableInterrupts := c.eiPending

	journal, _ := c.bus.(Journal)
	if journal != nil {
		journal.Begin()
	}

	instruction := c.fetch()
	cycles, err := c.Execute(instruction)
	if err == nil {
		err = c.takeFault()
	}
	if err != nil {
		if journal != nil {
			journal.Discard()
		}
		c.restore(before)
		return &ExecError{PC: before.regs.PC, Instruction: instruction, Err: err}
	}
	if journal != nil {
		journal.Commit()
	}

	if enableInterrupts && c.eiPending {
		c.eiPending = false
		c.ime = true
	}
	c.addCycles(cycles)

	if c.trace {
		c.logger.Debug("exec",
			"pc", fmt.Sprintf("0x%04X", before.regs.PC),
			"instr", instruction.String(),
			"cycles", cycles,
			"regs", c.regs.String())
	}

	return nil
}

// fetch reads the opcode at PC, and the second byte of extended opcodes,
// advancing PC past them.
func (c *CPU) fetch() Instruction {
	c.opcodePC = c.regs.PC
	instruction := Decode(c.readImmediate())
	if instruction.Op == PREFIX {
		instruction = DecodeCB(c.readImmediate())
	}
	return instruction
}

func (c *CPU) takeFault() error {
	if fr, ok := c.bus.(FaultReporter); ok {
		return fr.TakeFault()
	}
	return nil
}

func (c *CPU) addCycles(clock int) {
	c.cycles.Clock += uint64(clock)
	c.cycles.Machine += uint64(clock / 4)
}

// Stop pauses execution: Step returns ErrStopped until Start is called.
func (c *CPU) Stop() { c.running = false }

// Start resumes execution after Stop or a STOP instruction.
func (c *CPU) Start() { c.running = true }

// Running reports whether Step executes instructions.
func (c *CPU) Running() bool { return c.running }

// Halted reports whether a HALT instruction is waiting to be resumed.
func (c *CPU) Halted() bool { return c.halted }

// Resume leaves the halted state. Interrupt sources call it when they fire.
func (c *CPU) Resume() { c.halted = false }

// InterruptsEnabled reports the interrupt master enable flag.
func (c *CPU) InterruptsEnabled() bool { return c.ime }

// Registers returns a copy of the register file.
func (c *CPU) Registers() Registers { return c.regs }

// Cycles returns the elapsed cycles since construction.
func (c *CPU) Cycles() Cycles { return c.cycles }

func (c *CPU) Bus() Bus { return c.bus }

func (c *CPU) Cartridge() *cartridge.Cartridge { return c.cart }

// readImmediate returns the byte at PC and advances PC past it.
func (c *CPU) readImmediate() uint8 {
	n := c.bus.Read(c.regs.PC)
	c.regs.PC++
	return n
}

// readImmediateWord reads a little-endian word at PC and advances PC past it.
func (c *CPU) readImmediateWord() uint16 {
	low := c.readImmediate()
	high := c.readImmediate()
	return bit.Combine(high, low)
}

func (c *CPU) pushStack(value uint16) {
	c.regs.SP--
	c.bus.Write(c.regs.SP, bit.High(value))
	c.regs.SP--
	c.bus.Write(c.regs.SP, bit.Low(value))
}

func (c *CPU) popStack() uint16 {
	low := c.bus.Read(c.regs.SP)
	c.regs.SP++
	high := c.bus.Read(c.regs.SP)
	c.regs.SP++
	return bit.Combine(high, low)
}
