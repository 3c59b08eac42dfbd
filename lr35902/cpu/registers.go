package cpu

import (
	"fmt"

	"github.com/valerio/go-lr35902/lr35902/bit"
)

// Flag is one of the 4 possible flags used in the flag register (high part of AF)
type Flag uint8

const (
	ZeroFlag      Flag = 0x80
	SubFlag       Flag = 0x40
	HalfCarryFlag Flag = 0x20
	CarryFlag     Flag = 0x10

	allFlags = ZeroFlag | SubFlag | HalfCarryFlag | CarryFlag

	carryBit = 4
)

func (f Flag) String() string {
	s := []byte("----")
	for i, flag := range [...]Flag{ZeroFlag, SubFlag, HalfCarryFlag, CarryFlag} {
		if f&flag != 0 {
			s[i] = "ZNHC"[i]
		}
	}
	return string(s)
}

// flagIf returns f when cond holds, no flags otherwise.
func flagIf(f Flag, cond bool) Flag {
	if cond {
		return f
	}
	return 0
}

// Registers holds the CPU-visible state. The 16 bit pairs are views over the
// 8 bit registers, there is no separate storage for them.
type Registers struct {
	A, F uint8
	B, C uint8
	D, E uint8
	H, L uint8
	SP   uint16
	PC   uint16
}

// NewRegisters returns the register state left by the DMG boot ROM.
func NewRegisters() Registers {
	var r Registers
	r.SetAF(0x01B0)
	r.SetBC(0x0013)
	r.SetDE(0x00D8)
	r.SetHL(0x014D)
	r.SP = 0xFFFE
	r.PC = 0x0100
	return r
}

// SetFlag sets or clears exactly the bits of flag.
func (r *Registers) SetFlag(flag Flag, set bool) {
	if set {
		r.F |= uint8(flag)
	} else {
		r.F &^= uint8(flag)
	}
}

// IsSet reports whether all bits of flag are set.
func (r Registers) IsSet(flag Flag) bool {
	return r.F&uint8(flag) == uint8(flag)
}

// Flags returns the current flags.
func (r Registers) Flags() Flag {
	return Flag(r.F) & allFlags
}

// setFlags replaces the flags selected by mask with the ones in f.
func (r *Registers) setFlags(f Flag, mask Flag) {
	r.F = (r.F &^ uint8(mask)) | uint8(f&mask)
}

func (r Registers) carry() uint8 {
	return bit.Value(carryBit, r.F)
}

func (r Registers) AF() uint16 { return bit.Combine(r.A, r.F) }
func (r Registers) BC() uint16 { return bit.Combine(r.B, r.C) }
func (r Registers) DE() uint16 { return bit.Combine(r.D, r.E) }
func (r Registers) HL() uint16 { return bit.Combine(r.H, r.L) }

// SetAF sets A and F. The low nibble of F does not exist and always reads 0.
func (r *Registers) SetAF(value uint16) {
	r.A = bit.High(value)
	r.F = bit.Low(value) & 0xF0
}

func (r *Registers) SetBC(value uint16) {
	r.B = bit.High(value)
	r.C = bit.Low(value)
}

func (r *Registers) SetDE(value uint16) {
	r.D = bit.High(value)
	r.E = bit.Low(value)
}

func (r *Registers) SetHL(value uint16) {
	r.H = bit.High(value)
	r.L = bit.Low(value)
}

func (r Registers) String() string {
	return fmt.Sprintf("A:%02X F:%02X B:%02X C:%02X D:%02X E:%02X H:%02X L:%02X SP:%04X PC:%04X [%s]",
		r.A, r.F, r.B, r.C, r.D, r.E, r.H, r.L, r.SP, r.PC, r.Flags())
}

func (r *Registers) reg8(op Operand) *uint8 {
	switch op {
	case A:
		return &r.A
	case B:
		return &r.B
	case C:
		return &r.C
	case D:
		return &r.D
	case E:
		return &r.E
	case H:
		return &r.H
	case L:
		return &r.L
	}
	return nil
}

func (r Registers) get16(op Operand) uint16 {
	switch op {
	case AF:
		return r.AF()
	case BC:
		return r.BC()
	case DE:
		return r.DE()
	case HL:
		return r.HL()
	case SP:
		return r.SP
	}
	return 0
}

func (r *Registers) set16(op Operand, value uint16) {
	switch op {
	case AF:
		r.SetAF(value)
	case BC:
		r.SetBC(value)
	case DE:
		r.SetDE(value)
	case HL:
		r.SetHL(value)
	case SP:
		r.SP = value
	}
}
