package cpu

import (
	"fmt"
	"strings"
)

// Op is the operation of a decoded instruction.
type Op uint8

const (
	UNKNOWN Op = iota
	NOP
	STOP
	HALT
	LD
	LDI // LD through (HL), then increment HL
	LDD // LD through (HL), then decrement HL
	LDH
	LDHL // LD HL, SP+i8
	PUSH
	POP
	ADD
	ADC
	SUB
	SBC
	AND
	XOR
	OR
	CP
	INC
	DEC
	DAA
	CPL
	SCF
	CCF
	RLCA
	RLA
	RRCA
	RRA
	JP
	JR
	CALL
	RET
	RETI
	RST
	DI
	EI
	PREFIX
	RLC
	RRC
	RL
	RR
	SLA
	SRA
	SWAP
	SRL
	BIT
	RES
	SET
)

var opNames = [...]string{
	"UNKNOWN", "NOP", "STOP", "HALT", "LD", "LD", "LD", "LDH", "LD", "PUSH", "POP",
	"ADD", "ADC", "SUB", "SBC", "AND", "XOR", "OR", "CP", "INC", "DEC",
	"DAA", "CPL", "SCF", "CCF", "RLCA", "RLA", "RRCA", "RRA",
	"JP", "JR", "CALL", "RET", "RETI", "RST", "DI", "EI", "PREFIX",
	"RLC", "RRC", "RL", "RR", "SLA", "SRA", "SWAP", "SRL", "BIT", "RES", "SET",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// Operand names what an instruction operates on: a register, a register pair
// or a value fetched from the instruction stream.
type Operand uint8

const (
	OperandNone Operand = iota
	A
	B
	C
	D
	E
	H
	L
	AF
	BC
	DE
	HL
	SP
	U8  // unsigned byte following the opcode
	U16 // little-endian word following the opcode
	I8  // signed displacement following the opcode
)

var operandNames = [...]string{"", "A", "B", "C", "D", "E", "H", "L", "AF", "BC", "DE", "HL", "SP", "u8", "u16", "i8"}

func (o Operand) String() string {
	if int(o) < len(operandNames) {
		return operandNames[o]
	}
	return fmt.Sprintf("Operand(%d)", uint8(o))
}

func (o Operand) is8() bool  { return o >= A && o <= L }
func (o Operand) is16() bool { return o >= AF && o <= SP }

// Immediate reports whether the operand is fetched from the instruction stream.
func (o Operand) Immediate() bool { return o >= U8 }

// Size returns how many bytes the operand takes in the instruction stream.
func (o Operand) Size() int {
	switch o {
	case U8, I8:
		return 1
	case U16:
		return 2
	}
	return 0
}

// Mode tells how a Target is accessed.
type Mode uint8

const (
	// Direct uses the operand itself.
	Direct Mode = iota
	// Indirect uses the memory byte addressed by the operand.
	Indirect
	// HighPage uses the memory byte at 0xFF00 plus the operand.
	HighPage
)

// Target is an operand role attached to an instruction.
type Target struct {
	Operand Operand
	Mode    Mode
}

func (t Target) String() string {
	switch t.Mode {
	case Indirect:
		return "(" + t.Operand.String() + ")"
	case HighPage:
		return "(FF00+" + t.Operand.String() + ")"
	}
	return t.Operand.String()
}

// Condition is the predicate of a conditional branch.
type Condition uint8

const (
	CondAlways Condition = iota
	CondNZ
	CondZ
	CondNC
	CondC
)

func (c Condition) String() string {
	return [...]string{"", "NZ", "Z", "NC", "C"}[c]
}

// Instruction is a decoded opcode. It carries no operand values: immediates
// are read from the instruction stream when the instruction executes.
type Instruction struct {
	Op   Op
	Dst  Target
	Src  Target
	Cond Condition
	// N is the bit index of BIT/RES/SET or the vector of RST.
	N uint8
	// Opcode is the raw opcode, 0xCBxx for extended ones.
	Opcode uint16
	// Cycles is the cost in clock cycles. Taken is the cost of a conditional
	// branch when the condition holds.
	Cycles int
	Taken  int
}

// Extended reports whether the instruction uses the 0xCB prefix.
func (i Instruction) Extended() bool {
	return i.Opcode > 0xFF
}

// Length returns the size in bytes of the instruction, opcode included.
func (i Instruction) Length() int {
	n := 1
	if i.Extended() || i.Op == STOP {
		n = 2
	}
	return n + i.Dst.Operand.Size() + i.Src.Operand.Size()
}

func (i Instruction) String() string {
	return i.format(func(t Target) string { return t.String() })
}

// Format renders the instruction with its immediate operand replaced by value.
func (i Instruction) Format(value uint16) string {
	return i.format(func(t Target) string {
		var s string
		switch t.Operand {
		case U8:
			s = fmt.Sprintf("$%02X", uint8(value))
		case U16:
			s = fmt.Sprintf("$%04X", value)
		case I8:
			s = fmt.Sprintf("%+d", int8(value))
		default:
			return t.String()
		}
		switch t.Mode {
		case Indirect:
			return "(" + s + ")"
		case HighPage:
			return "(FF00+" + s + ")"
		}
		return s
	})
}

func (i Instruction) format(target func(Target) string) string {
	switch i.Op {
	case UNKNOWN:
		return fmt.Sprintf("UNKNOWN(0x%02X)", i.Opcode)
	case RST:
		return fmt.Sprintf("RST $%02X", i.N)
	case LDHL:
		s := target(i.Src)
		if s[0] != '+' && s[0] != '-' {
			s = "+" + s
		}
		return "LD HL, SP" + s
	}

	var args []string
	if i.Op == BIT || i.Op == RES || i.Op == SET {
		args = append(args, fmt.Sprint(i.N))
	}
	if i.Cond != CondAlways {
		args = append(args, i.Cond.String())
	}
	for _, t := range [...]Target{i.Dst, i.Src} {
		if t.Operand == OperandNone {
			continue
		}
		s := target(t)
		if t.Operand == HL && t.Mode == Indirect {
			switch i.Op {
			case LDI:
				s = "(HL+)"
			case LDD:
				s = "(HL-)"
			}
		}
		args = append(args, s)
	}

	if len(args) == 0 {
		return i.Op.String()
	}
	return i.Op.String() + " " + strings.Join(args, ", ")
}
