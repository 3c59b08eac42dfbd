package cpu

import (
	"fmt"

	"github.com/valerio/go-lr35902/lr35902/bit"
)

type locKind uint8

const (
	locNone locKind = iota
	locReg8
	locReg16
	locMem
	locImm
)

// loc is a resolved operand: immediates have been read from the instruction
// stream and indirect targets turned into an address.
type loc struct {
	kind    locKind
	operand Operand
	address uint16
	value   uint16
}

// Execute runs a decoded instruction against the current state. Immediate
// operands are read from PC, which is expected to point right after the
// opcode. It returns the cost of the instruction in clock cycles.
func (c *CPU) Execute(inst Instruction) (int, error) {
	dst, err := c.resolve(inst, inst.Dst)
	if err != nil {
		return 0, err
	}
	src, err := c.resolve(inst, inst.Src)
	if err != nil {
		return 0, err
	}

	switch inst.Op {
	case NOP:
	case UNKNOWN:
		c.logger.Warn("Unknown opcode",
			"pc", fmt.Sprintf("0x%04X", c.opcodePC),
			"opcode", fmt.Sprintf("0x%02X", inst.Opcode))
	case STOP:
		// STOP is followed by a padding byte
		c.readImmediate()
		c.running = false
	case HALT:
		c.halted = true
	case DI:
		c.ime = false
		c.eiPending = false
	case EI:
		c.eiPending = true

	case LD, LDH:
		err = c.load(inst, dst, src)
	case LDI, LDD:
		err = c.load(inst, dst, src)
		if err == nil {
			delta := uint16(1)
			if inst.Op == LDD {
				delta = 0xFFFF
			}
			c.regs.SetHL(c.regs.HL() + delta)
		}
	case LDHL:
		result, flags := aluAddSigned(c.regs.SP, int8(src.value))
		c.regs.SetHL(result)
		c.regs.setFlags(flags, allFlags)
	case PUSH:
		c.pushStack(c.regs.get16(dst.operand))
	case POP:
		c.regs.set16(dst.operand, c.popStack())

	case ADD:
		err = c.add(inst, dst, src)
	case ADC, SUB, SBC, AND, XOR, OR, CP:
		err = c.alu8(inst, src)
	case INC, DEC:
		err = c.incDec(inst, dst)

	case DAA:
		result, flags := aluDaa(c.regs.A, c.regs.Flags())
		c.regs.A = result
		c.regs.setFlags(flags, ZeroFlag|HalfCarryFlag|CarryFlag)
	case CPL:
		c.regs.A = ^c.regs.A
		c.regs.setFlags(SubFlag|HalfCarryFlag, SubFlag|HalfCarryFlag)
	case SCF:
		c.regs.setFlags(CarryFlag, SubFlag|HalfCarryFlag|CarryFlag)
	case CCF:
		c.regs.setFlags(flagIf(CarryFlag, !c.regs.IsSet(CarryFlag)), SubFlag|HalfCarryFlag|CarryFlag)
	case RLCA, RLA, RRCA, RRA:
		c.rotateA(inst.Op)

	case JP:
		if c.condition(inst.Cond) {
			c.regs.PC = c.value16(dst)
			return c.taken(inst), nil
		}
	case JR:
		// the displacement is relative to the address after the JR instruction
		target := c.regs.PC + uint16(int8(dst.value))
		if c.condition(inst.Cond) {
			c.regs.PC = target
			return c.taken(inst), nil
		}
	case CALL:
		if c.condition(inst.Cond) {
			c.pushStack(c.regs.PC)
			c.regs.PC = dst.value
			return c.taken(inst), nil
		}
	case RET:
		if c.condition(inst.Cond) {
			c.regs.PC = c.popStack()
			return c.taken(inst), nil
		}
	case RETI:
		c.regs.PC = c.popStack()
		c.ime = true
	case RST:
		c.pushStack(c.regs.PC)
		c.regs.PC = uint16(inst.N)

	case RLC, RRC, RL, RR, SLA, SRA, SWAP, SRL:
		err = c.shift(inst, dst)
	case BIT:
		var v uint8
		if v, err = c.read8(inst, dst); err == nil {
			c.regs.setFlags(flagIf(ZeroFlag, !bit.IsSet(inst.N, v))|HalfCarryFlag, ZeroFlag|SubFlag|HalfCarryFlag)
		}
	case RES, SET:
		var v uint8
		if v, err = c.read8(inst, dst); err == nil {
			if inst.Op == SET {
				v = bit.Set(inst.N, v)
			} else {
				v = bit.Reset(inst.N, v)
			}
			err = c.write8(inst, dst, v)
		}

	default:
		err = c.notImplemented(inst, "no execution rule")
	}

	if err != nil {
		return 0, err
	}
	return inst.Cycles, nil
}

func (c *CPU) notImplemented(inst Instruction, format string, args ...any) error {
	return &NotImplementedError{Instruction: inst, Detail: fmt.Sprintf(format, args...)}
}

// resolve turns a target into a location, consuming immediates from PC.
func (c *CPU) resolve(inst Instruction, t Target) (loc, error) {
	switch t.Mode {
	case Direct:
		switch {
		case t.Operand == OperandNone:
			return loc{}, nil
		case t.Operand.is8():
			return loc{kind: locReg8, operand: t.Operand}, nil
		case t.Operand.is16():
			return loc{kind: locReg16, operand: t.Operand}, nil
		case t.Operand == U16:
			return loc{kind: locImm, operand: t.Operand, value: c.readImmediateWord()}, nil
		case t.Operand == U8, t.Operand == I8:
			return loc{kind: locImm, operand: t.Operand, value: uint16(c.readImmediate())}, nil
		}
	case Indirect:
		switch t.Operand {
		case BC, DE, HL:
			return loc{kind: locMem, address: c.regs.get16(t.Operand)}, nil
		case U16:
			return loc{kind: locMem, address: c.readImmediateWord()}, nil
		}
	case HighPage:
		switch t.Operand {
		case C:
			return loc{kind: locMem, address: 0xFF00 | uint16(c.regs.C)}, nil
		case U8:
			return loc{kind: locMem, address: 0xFF00 | uint16(c.readImmediate())}, nil
		}
	}
	return loc{}, c.notImplemented(inst, "cannot resolve operand %s", t)
}

func (c *CPU) read8(inst Instruction, l loc) (uint8, error) {
	switch l.kind {
	case locReg8:
		return *c.regs.reg8(l.operand), nil
	case locMem:
		return c.bus.Read(l.address), nil
	case locImm:
		if l.operand == U8 {
			return uint8(l.value), nil
		}
	}
	return 0, c.notImplemented(inst, "operand is not a byte")
}

func (c *CPU) write8(inst Instruction, l loc, value uint8) error {
	switch l.kind {
	case locReg8:
		*c.regs.reg8(l.operand) = value
		return nil
	case locMem:
		c.bus.Write(l.address, value)
		return nil
	}
	return c.notImplemented(inst, "byte destination is not writable")
}

// value16 returns the word held by a register pair or an immediate.
func (c *CPU) value16(l loc) uint16 {
	if l.kind == locReg16 {
		return c.regs.get16(l.operand)
	}
	return l.value
}

func (c *CPU) load(inst Instruction, dst, src loc) error {
	switch {
	case dst.kind == locReg16 && (src.kind == locReg16 || src.operand == U16):
		c.regs.set16(dst.operand, c.value16(src))
		return nil
	case dst.kind == locMem && src.kind == locReg16:
		// LD (u16), SP stores the word little-endian
		value := c.regs.get16(src.operand)
		c.bus.Write(dst.address, bit.Low(value))
		c.bus.Write(dst.address+1, bit.High(value))
		return nil
	}

	v, err := c.read8(inst, src)
	if err != nil {
		return err
	}
	return c.write8(inst, dst, v)
}

func (c *CPU) add(inst Instruction, dst, src loc) error {
	switch {
	case dst.kind == locReg16 && dst.operand == HL && src.kind == locReg16:
		result, flags := aluAdd16(c.regs.HL(), c.regs.get16(src.operand))
		c.regs.SetHL(result)
		c.regs.setFlags(flags, SubFlag|HalfCarryFlag|CarryFlag)
		return nil
	case dst.kind == locReg16 && dst.operand == SP && src.operand == I8:
		result, flags := aluAddSigned(c.regs.SP, int8(src.value))
		c.regs.SP = result
		c.regs.setFlags(flags, allFlags)
		return nil
	}
	return c.alu8(inst, src)
}

// alu8 runs the 8 bit arithmetic and logic operations on A.
func (c *CPU) alu8(inst Instruction, src loc) error {
	b, err := c.read8(inst, src)
	if err != nil {
		return err
	}

	a := c.regs.A
	var result uint8
	var flags Flag

	switch inst.Op {
	case ADD:
		result, flags = aluAdd(a, b, 0)
	case ADC:
		result, flags = aluAdd(a, b, c.regs.carry())
	case SUB, CP:
		result, flags = aluSub(a, b, 0)
	case SBC:
		result, flags = aluSub(a, b, c.regs.carry())
	case AND:
		result, flags = aluAnd(a, b)
	case XOR:
		result, flags = aluXor(a, b)
	case OR:
		result, flags = aluOr(a, b)
	default:
		return c.notImplemented(inst, "not an ALU operation")
	}

	// CP only compares
	if inst.Op != CP {
		c.regs.A = result
	}
	c.regs.setFlags(flags, allFlags)
	return nil
}

func (c *CPU) incDec(inst Instruction, dst loc) error {
	if dst.kind == locReg16 {
		value := c.regs.get16(dst.operand)
		if inst.Op == INC {
			value++
		} else {
			value--
		}
		c.regs.set16(dst.operand, value)
		return nil
	}

	v, err := c.read8(inst, dst)
	if err != nil {
		return err
	}

	var flags Flag
	if inst.Op == INC {
		v, flags = aluInc(v)
	} else {
		v, flags = aluDec(v)
	}
	if err := c.write8(inst, dst, v); err != nil {
		return err
	}
	c.regs.setFlags(flags, ZeroFlag|SubFlag|HalfCarryFlag)
	return nil
}

// rotateA runs the accumulator rotations, which always clear Zero.
func (c *CPU) rotateA(o Op) {
	var flags Flag
	switch o {
	case RLCA:
		c.regs.A, flags = aluRlc(c.regs.A)
	case RLA:
		c.regs.A, flags = aluRl(c.regs.A, c.regs.carry())
	case RRCA:
		c.regs.A, flags = aluRrc(c.regs.A)
	case RRA:
		c.regs.A, flags = aluRr(c.regs.A, c.regs.carry())
	}
	c.regs.setFlags(flags&CarryFlag, allFlags)
}

func (c *CPU) shift(inst Instruction, dst loc) error {
	v, err := c.read8(inst, dst)
	if err != nil {
		return err
	}

	var flags Flag
	switch inst.Op {
	case RLC:
		v, flags = aluRlc(v)
	case RRC:
		v, flags = aluRrc(v)
	case RL:
		v, flags = aluRl(v, c.regs.carry())
	case RR:
		v, flags = aluRr(v, c.regs.carry())
	case SLA:
		v, flags = aluSla(v)
	case SRA:
		v, flags = aluSra(v)
	case SWAP:
		v, flags = aluSwap(v)
	case SRL:
		v, flags = aluSrl(v)
	}

	if err := c.write8(inst, dst, v); err != nil {
		return err
	}
	c.regs.setFlags(flags, allFlags)
	return nil
}

func (c *CPU) condition(cond Condition) bool {
	switch cond {
	case CondNZ:
		return !c.regs.IsSet(ZeroFlag)
	case CondZ:
		return c.regs.IsSet(ZeroFlag)
	case CondNC:
		return !c.regs.IsSet(CarryFlag)
	case CondC:
		return c.regs.IsSet(CarryFlag)
	}
	return true
}

// taken returns the cost of a branch that was followed.
func (c *CPU) taken(inst Instruction) int {
	if inst.Cond == CondAlways {
		return inst.Cycles
	}
	return inst.Taken
}
