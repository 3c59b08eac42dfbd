package cpu

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-lr35902/lr35902/cartridge/cartridgetest"
	"github.com/valerio/go-lr35902/lr35902/memory"
)

// newTestCPU returns a CPU running a 32KiB ROM with code at the entry point.
func newTestCPU(t *testing.T, code ...byte) *CPU {
	t.Helper()
	return New(cartridgetest.Cartridge(t, cartridgetest.Program(0x8000, 0x0100, code...)))
}

func TestCPU_JumpScenario(t *testing.T) {
	cart := cartridgetest.Cartridge(t, cartridgetest.Program(0x10000, 0x0100, 0xC3, 0x00, 0x02))
	c := New(cart)

	require.NoError(t, c.Step())

	assert.Equal(t, uint16(0x0200), c.Registers().PC)
	assert.Equal(t, Cycles{Machine: 4, Clock: 16}, c.Cycles())
}

func TestCPU_DecrementScenario(t *testing.T) {
	c := newTestCPU(t, 0x05, 0x05, 0x05, 0x05, 0x05, 0x05)
	c.regs.B = 0x05

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Step())
	}
	assert.Equal(t, uint8(0x00), c.Registers().B)
	assert.True(t, c.Registers().IsSet(ZeroFlag))

	require.NoError(t, c.Step())
	assert.Equal(t, uint8(0xFF), c.Registers().B)
	assert.False(t, c.Registers().IsSet(ZeroFlag))
	assert.Equal(t, uint64(6*4), c.Cycles().Clock)
}

func TestCPU_Execute(t *testing.T) {
	testCases := []struct {
		desc   string
		code   []byte
		setup  func(c *CPU)
		check  func(t *testing.T, c *CPU)
		cycles int
	}{
		{
			desc:   "LD BC, u16 is little-endian",
			code:   []byte{0x01, 0x34, 0x12},
			check:  func(t *testing.T, c *CPU) { assert.Equal(t, uint16(0x1234), c.regs.BC()) },
			cycles: 12,
		},
		{
			desc: "LD (HL-), A writes before decrementing",
			code: []byte{0x32},
			setup: func(c *CPU) {
				c.regs.A = 0x42
				c.regs.SetHL(0xC010)
			},
			check: func(t *testing.T, c *CPU) {
				assert.Equal(t, uint8(0x42), c.bus.Read(0xC010))
				assert.Equal(t, uint8(0x00), c.bus.Read(0xC00F))
				assert.Equal(t, uint16(0xC00F), c.regs.HL())
			},
			cycles: 8,
		},
		{
			desc: "LD A, (HL+) reads before incrementing",
			code: []byte{0x2A},
			setup: func(c *CPU) {
				c.bus.Write(0xC000, 0x77)
				c.bus.Write(0xC001, 0x88)
				c.regs.SetHL(0xC000)
			},
			check: func(t *testing.T, c *CPU) {
				assert.Equal(t, uint8(0x77), c.regs.A)
				assert.Equal(t, uint16(0xC001), c.regs.HL())
			},
			cycles: 8,
		},
		{
			desc: "LD (BC), A",
			code: []byte{0x02},
			setup: func(c *CPU) {
				c.regs.A = 0x99
				c.regs.SetBC(0xD000)
			},
			check:  func(t *testing.T, c *CPU) { assert.Equal(t, uint8(0x99), c.bus.Read(0xD000)) },
			cycles: 8,
		},
		{
			desc:  "LD (u16), SP",
			code:  []byte{0x08, 0x00, 0xC0},
			setup: func(c *CPU) { c.regs.SP = 0xBEEF },
			check: func(t *testing.T, c *CPU) {
				assert.Equal(t, uint8(0xEF), c.bus.Read(0xC000))
				assert.Equal(t, uint8(0xBE), c.bus.Read(0xC001))
			},
			cycles: 20,
		},
		{
			desc:  "LDH (u8), A",
			code:  []byte{0xE0, 0x80},
			setup: func(c *CPU) { c.regs.A = 0x12 },
			check: func(t *testing.T, c *CPU) {
				assert.Equal(t, uint8(0x12), c.bus.Read(0xFF80))
				assert.Equal(t, uint16(0x0102), c.regs.PC)
			},
			cycles: 12,
		},
		{
			desc: "LD A, (FF00+C)",
			code: []byte{0xF2},
			setup: func(c *CPU) {
				c.regs.C = 0x85
				c.bus.Write(0xFF85, 0x3C)
			},
			check:  func(t *testing.T, c *CPU) { assert.Equal(t, uint8(0x3C), c.regs.A) },
			cycles: 8,
		},
		{
			desc:  "LD (HL), u8",
			code:  []byte{0x36, 0x5A},
			setup: func(c *CPU) { c.regs.SetHL(0xC100) },
			check: func(t *testing.T, c *CPU) {
				assert.Equal(t, uint8(0x5A), c.bus.Read(0xC100))
			},
			cycles: 12,
		},
		{
			desc: "XOR A clears A and sets only Zero",
			code: []byte{0xAF},
			setup: func(c *CPU) {
				c.regs.A = 0x5A
				c.regs.F = 0x70
			},
			check: func(t *testing.T, c *CPU) {
				assert.Equal(t, uint8(0), c.regs.A)
				assert.Equal(t, uint8(ZeroFlag), c.regs.F)
			},
			cycles: 4,
		},
		{
			desc:  "CP u8 leaves A untouched",
			code:  []byte{0xFE, 0x05},
			setup: func(c *CPU) { c.regs.A = 0x05 },
			check: func(t *testing.T, c *CPU) {
				assert.Equal(t, uint8(0x05), c.regs.A)
				assert.True(t, c.regs.IsSet(ZeroFlag))
				assert.True(t, c.regs.IsSet(SubFlag))
				assert.False(t, c.regs.IsSet(CarryFlag))
			},
			cycles: 8,
		},
		{
			desc: "SUB B borrows",
			code: []byte{0x90},
			setup: func(c *CPU) {
				c.regs.A = 0x10
				c.regs.B = 0x20
			},
			check: func(t *testing.T, c *CPU) {
				assert.Equal(t, uint8(0xF0), c.regs.A)
				assert.True(t, c.regs.IsSet(CarryFlag))
			},
			cycles: 4,
		},
		{
			desc: "ADD A, (HL)",
			code: []byte{0x86},
			setup: func(c *CPU) {
				c.regs.A = 0x0F
				c.regs.SetHL(0xC000)
				c.bus.Write(0xC000, 0x01)
			},
			check: func(t *testing.T, c *CPU) {
				assert.Equal(t, uint8(0x10), c.regs.A)
				assert.Equal(t, uint8(HalfCarryFlag), c.regs.F)
			},
			cycles: 8,
		},
		{
			desc: "DEC B keeps carry",
			code: []byte{0x05},
			setup: func(c *CPU) {
				c.regs.B = 0x01
				c.regs.F = uint8(CarryFlag)
			},
			check: func(t *testing.T, c *CPU) {
				assert.True(t, c.regs.IsSet(CarryFlag))
				assert.True(t, c.regs.IsSet(ZeroFlag))
			},
			cycles: 4,
		},
		{
			desc: "INC (HL)",
			code: []byte{0x34},
			setup: func(c *CPU) {
				c.regs.SetHL(0xC000)
				c.bus.Write(0xC000, 0xFF)
			},
			check: func(t *testing.T, c *CPU) {
				assert.Equal(t, uint8(0x00), c.bus.Read(0xC000))
				assert.True(t, c.regs.IsSet(ZeroFlag))
			},
			cycles: 12,
		},
		{
			desc:  "INC DE leaves flags alone",
			code:  []byte{0x13},
			setup: func(c *CPU) { c.regs.SetDE(0xFFFF); c.regs.F = 0 },
			check: func(t *testing.T, c *CPU) {
				assert.Equal(t, uint16(0x0000), c.regs.DE())
				assert.Equal(t, uint8(0), c.regs.F)
			},
			cycles: 8,
		},
		{
			desc: "ADD HL, BC",
			code: []byte{0x09},
			setup: func(c *CPU) {
				c.regs.SetHL(0x0FFF)
				c.regs.SetBC(0x0001)
				c.regs.F = uint8(ZeroFlag)
			},
			check: func(t *testing.T, c *CPU) {
				assert.Equal(t, uint16(0x1000), c.regs.HL())
				assert.Equal(t, uint8(ZeroFlag|HalfCarryFlag), c.regs.F)
			},
			cycles: 8,
		},
		{
			desc: "PUSH BC, POP AF masks F",
			code: []byte{0xC5, 0xF1},
			setup: func(c *CPU) {
				c.regs.SetBC(0x12FF)
				require.NoError(t, c.Step())
			},
			check: func(t *testing.T, c *CPU) {
				assert.Equal(t, uint16(0x12F0), c.regs.AF())
				assert.Equal(t, uint16(0xFFFE), c.regs.SP)
			},
			cycles: 12,
		},
		{
			desc: "JR NZ taken",
			code: []byte{0x20, 0x05},
			setup: func(c *CPU) {
				c.regs.SetFlag(ZeroFlag, false)
			},
			check:  func(t *testing.T, c *CPU) { assert.Equal(t, uint16(0x0107), c.regs.PC) },
			cycles: 12,
		},
		{
			desc:   "JR Z not taken falls through",
			code:   []byte{0x28, 0x05},
			setup:  func(c *CPU) { c.regs.SetFlag(ZeroFlag, false) },
			check:  func(t *testing.T, c *CPU) { assert.Equal(t, uint16(0x0102), c.regs.PC) },
			cycles: 8,
		},
		{
			desc:   "JR C backwards",
			code:   []byte{0x38, 0xFE},
			setup:  func(c *CPU) { c.regs.SetFlag(CarryFlag, true) },
			check:  func(t *testing.T, c *CPU) { assert.Equal(t, uint16(0x0100), c.regs.PC) },
			cycles: 12,
		},
		{
			desc:   "JP NC not taken still consumes the address",
			code:   []byte{0xD2, 0x00, 0x02},
			setup:  func(c *CPU) { c.regs.SetFlag(CarryFlag, true) },
			check:  func(t *testing.T, c *CPU) { assert.Equal(t, uint16(0x0103), c.regs.PC) },
			cycles: 12,
		},
		{
			desc:   "JP HL",
			code:   []byte{0xE9},
			setup:  func(c *CPU) { c.regs.SetHL(0x4321) },
			check:  func(t *testing.T, c *CPU) { assert.Equal(t, uint16(0x4321), c.regs.PC) },
			cycles: 4,
		},
		{
			desc: "CALL pushes the return address",
			code: []byte{0xCD, 0x00, 0x02},
			check: func(t *testing.T, c *CPU) {
				assert.Equal(t, uint16(0x0200), c.regs.PC)
				assert.Equal(t, uint16(0xFFFC), c.regs.SP)
				assert.Equal(t, uint8(0x03), c.bus.Read(0xFFFC))
				assert.Equal(t, uint8(0x01), c.bus.Read(0xFFFD))
			},
			cycles: 24,
		},
		{
			desc: "RST 08",
			code: []byte{0xCF},
			check: func(t *testing.T, c *CPU) {
				assert.Equal(t, uint16(0x0008), c.regs.PC)
				assert.Equal(t, uint16(0xFFFC), c.regs.SP)
			},
			cycles: 16,
		},
		{
			desc:  "RLCA clears Zero",
			code:  []byte{0x07},
			setup: func(c *CPU) { c.regs.A = 0x80; c.regs.F = 0 },
			check: func(t *testing.T, c *CPU) {
				assert.Equal(t, uint8(0x01), c.regs.A)
				assert.Equal(t, uint8(CarryFlag), c.regs.F)
			},
			cycles: 4,
		},
		{
			desc:  "CPL",
			code:  []byte{0x2F},
			setup: func(c *CPU) { c.regs.A = 0x0F; c.regs.F = 0 },
			check: func(t *testing.T, c *CPU) {
				assert.Equal(t, uint8(0xF0), c.regs.A)
				assert.Equal(t, uint8(SubFlag|HalfCarryFlag), c.regs.F)
			},
			cycles: 4,
		},
		{
			desc:  "SCF then CCF",
			code:  []byte{0x37, 0x3F},
			setup: func(c *CPU) { require.NoError(t, c.Step()) },
			check: func(t *testing.T, c *CPU) {
				assert.False(t, c.regs.IsSet(CarryFlag))
			},
			cycles: 4,
		},
		{
			desc:  "BIT 7, H",
			code:  []byte{0xCB, 0x7C},
			setup: func(c *CPU) { c.regs.H = 0x7F; c.regs.F = uint8(CarryFlag) },
			check: func(t *testing.T, c *CPU) {
				assert.Equal(t, uint8(ZeroFlag|HalfCarryFlag|CarryFlag), c.regs.F)
				assert.Equal(t, uint16(0x0102), c.regs.PC)
			},
			cycles: 8,
		},
		{
			desc: "SET 0, (HL)",
			code: []byte{0xCB, 0xC6},
			setup: func(c *CPU) {
				c.regs.SetHL(0xC000)
				c.bus.Write(0xC000, 0x10)
			},
			check:  func(t *testing.T, c *CPU) { assert.Equal(t, uint8(0x11), c.bus.Read(0xC000)) },
			cycles: 16,
		},
		{
			desc:  "SWAP A",
			code:  []byte{0xCB, 0x37},
			setup: func(c *CPU) { c.regs.A = 0xAB },
			check: func(t *testing.T, c *CPU) {
				assert.Equal(t, uint8(0xBA), c.regs.A)
				assert.Equal(t, uint8(0), c.regs.F)
			},
			cycles: 8,
		},
		{
			desc:  "LD HL, SP+i8",
			code:  []byte{0xF8, 0x02},
			setup: func(c *CPU) { c.regs.SP = 0xFFF8 },
			check: func(t *testing.T, c *CPU) {
				assert.Equal(t, uint16(0xFFFA), c.regs.HL())
				assert.Equal(t, uint16(0xFFF8), c.regs.SP)
			},
			cycles: 12,
		},
	}

	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			c := newTestCPU(t, tC.code...)
			if tC.setup != nil {
				tC.setup(c)
			}
			before := c.Cycles().Clock

			require.NoError(t, c.Step())

			tC.check(t, c)
			assert.Equal(t, uint64(tC.cycles), c.Cycles().Clock-before)
		})
	}
}

func TestCPU_CallReturn(t *testing.T) {
	data := cartridgetest.Program(0x8000, 0x0100, 0xCD, 0x00, 0x02)
	data[0x0200] = 0xC9
	cartridgetest.Fix(data)
	c := New(cartridgetest.Cartridge(t, data))

	require.NoError(t, c.Step())
	require.NoError(t, c.Step())

	assert.Equal(t, uint16(0x0103), c.Registers().PC)
	assert.Equal(t, uint16(0xFFFE), c.Registers().SP)
	assert.Equal(t, uint64(24+16), c.Cycles().Clock)
	assert.Equal(t, uint64(10), c.Cycles().Machine)
}

func TestCPU_UnknownOpcode(t *testing.T) {
	var logs bytes.Buffer
	cart := cartridgetest.Cartridge(t, cartridgetest.Program(0x8000, 0x0100, 0xD3, 0x00))
	c := New(cart, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	before := c.Registers()

	require.NoError(t, c.Step())

	after := c.Registers()
	assert.Equal(t, uint16(0x0101), after.PC)
	before.PC = after.PC
	assert.Equal(t, before, after, "unknown opcode is a no-op")
	assert.Equal(t, uint64(4), c.Cycles().Clock)
	assert.True(t, c.Running())
	assert.Contains(t, logs.String(), "Unknown opcode")
	assert.Contains(t, logs.String(), "opcode=0xD3")
	assert.Contains(t, logs.String(), "pc=0x0100")

	require.NoError(t, c.Step(), "execution continues after an unknown opcode")
}

func TestCPU_FaultRollsBack(t *testing.T) {
	testCases := []struct {
		desc string
		cpu  func(t *testing.T) *CPU
	}{
		{
			desc: "external RAM write",
			cpu: func(t *testing.T) *CPU {
				data := cartridgetest.Program(0x8000, 0x0100, 0x3E, 0x42, 0xEA, 0x00, 0xA0)
				data[0x149] = 0x02
				cartridgetest.Fix(data)
				return New(cartridgetest.Cartridge(t, data))
			},
		},
		{
			desc: "strict I/O read",
			cpu: func(t *testing.T) *CPU {
				cart := cartridgetest.Cartridge(t, cartridgetest.Program(0x8000, 0x0100, 0x3E, 0x42, 0xF0, 0x44))
				return New(cart, WithBus(memory.NewWithCartridge(cart, memory.WithStrictIO(true))))
			},
		},
	}

	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			c := tC.cpu(t)
			require.NoError(t, c.Step())
			before := c.Registers()
			cycles := c.Cycles()

			err := c.Step()

			var execErr *ExecError
			require.True(t, errors.As(err, &execErr))
			assert.Equal(t, uint16(0x0102), execErr.PC)
			assert.ErrorIs(t, err, memory.ErrRegionNotImplemented)
			assert.Equal(t, before, c.Registers())
			assert.Equal(t, cycles, c.Cycles())

			// the same instruction fails again, nothing was committed
			assert.Error(t, c.Step())
			assert.Equal(t, before, c.Registers())
		})
	}
}

func TestCPU_FaultDropsWrites(t *testing.T) {
	testCases := []struct {
		desc    string
		cpu     func(t *testing.T) *CPU
		setup   int
		address uint16
	}{
		{
			desc: "word store crossing into external RAM",
			cpu: func(t *testing.T) *CPU {
				data := cartridgetest.Program(0x8000, 0x0100, 0x08, 0xFF, 0x9F)
				data[0x149] = 0x02
				cartridgetest.Fix(data)
				return New(cartridgetest.Cartridge(t, data))
			},
			address: 0x9FFF,
		},
		{
			desc: "push crossing into strict I/O",
			cpu: func(t *testing.T) *CPU {
				cart := cartridgetest.Cartridge(t, cartridgetest.Program(0x8000, 0x0100,
					0x31, 0x81, 0xFF, // LD SP, $FF81
					0x01, 0x34, 0x12, // LD BC, $1234
					0xC5, // PUSH BC
				))
				return New(cart, WithBus(memory.NewWithCartridge(cart, memory.WithStrictIO(true))))
			},
			setup:   2,
			address: 0xFF80,
		},
	}

	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			c := tC.cpu(t)
			for i := 0; i < tC.setup; i++ {
				require.NoError(t, c.Step())
			}
			before := c.Registers()

			err := c.Step()

			assert.ErrorIs(t, err, memory.ErrRegionNotImplemented)
			assert.Equal(t, before, c.Registers())
			assert.Equal(t, byte(0x00), c.Bus().Read(tC.address))
		})
	}
}

func TestCPU_StepCommitsWrites(t *testing.T) {
	c := newTestCPU(t,
		0x21, 0x00, 0xC0, // LD HL, $C000
		0x36, 0x5A, // LD (HL), $5A
		0x7E, // LD A, (HL)
	)

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Step())
	}

	assert.Equal(t, byte(0x5A), c.Bus().Read(0xC000))
	assert.Equal(t, byte(0x5A), c.Bus().Read(0xE000))
	assert.Equal(t, byte(0x5A), c.Registers().A)
}

func TestCPU_ExecuteNotImplemented(t *testing.T) {
	c := newTestCPU(t)
	before := c.Registers()

	testCases := []struct {
		desc string
		inst Instruction
	}{
		{desc: "bare prefix", inst: Decode(0xCB)},
		{desc: "unresolvable operand", inst: Instruction{Op: LD, Dst: Target{Operand: A, Mode: HighPage}, Src: Target{Operand: B}}},
		{desc: "word into byte", inst: Instruction{Op: LD, Dst: Target{Operand: A}, Src: Target{Operand: BC}}},
	}

	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			cycles, err := c.Execute(tC.inst)

			assert.Zero(t, cycles)
			assert.ErrorIs(t, err, ErrNotImplemented)
			var notImpl *NotImplementedError
			require.True(t, errors.As(err, &notImpl))
			assert.Equal(t, tC.inst, notImpl.Instruction)
			assert.Equal(t, before, c.Registers())
		})
	}
}

func TestCPU_StopStart(t *testing.T) {
	c := newTestCPU(t, 0x00, 0x00)

	c.Stop()
	assert.False(t, c.Running())
	assert.ErrorIs(t, c.Step(), ErrStopped)
	assert.Equal(t, uint16(0x0100), c.Registers().PC)

	c.Start()
	assert.True(t, c.Running())
	require.NoError(t, c.Step())
	assert.Equal(t, uint16(0x0101), c.Registers().PC)
}

func TestCPU_StopInstruction(t *testing.T) {
	c := newTestCPU(t, 0x10, 0x00, 0x00)

	require.NoError(t, c.Step())
	assert.False(t, c.Running())
	assert.Equal(t, uint16(0x0102), c.Registers().PC)
	assert.ErrorIs(t, c.Step(), ErrStopped)

	c.Start()
	require.NoError(t, c.Step())
	assert.Equal(t, uint16(0x0103), c.Registers().PC)
}

func TestCPU_Halt(t *testing.T) {
	c := newTestCPU(t, 0x76, 0x00)

	require.NoError(t, c.Step())
	assert.True(t, c.Halted())

	require.NoError(t, c.Step())
	assert.Equal(t, uint16(0x0101), c.Registers().PC)
	assert.Equal(t, uint64(8), c.Cycles().Clock)

	c.Resume()
	require.NoError(t, c.Step())
	assert.Equal(t, uint16(0x0102), c.Registers().PC)
}

func TestCPU_InterruptEnableDelay(t *testing.T) {
	c := newTestCPU(t, 0xFB, 0x00, 0xF3)

	require.NoError(t, c.Step())
	assert.False(t, c.InterruptsEnabled(), "EI takes effect after the next instruction")

	require.NoError(t, c.Step())
	assert.True(t, c.InterruptsEnabled())

	require.NoError(t, c.Step())
	assert.False(t, c.InterruptsEnabled())
}

func TestCPU_Trace(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cart := cartridgetest.Cartridge(t, cartridgetest.Program(0x8000, 0x0100, 0x06, 0x12))
	c := New(cart, WithLogger(logger), WithTrace(true))

	require.NoError(t, c.Step())

	assert.Contains(t, logs.String(), `instr="LD B, u8"`)
	assert.Contains(t, logs.String(), "pc=0x0100")
}
