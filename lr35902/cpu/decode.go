package cpu

// Operand tables indexed by the bit fields of an opcode.
// Reference: https://gbdev.io/gb-opcodes/optables/
var (
	r8 = [8]Target{
		{Operand: B}, {Operand: C}, {Operand: D}, {Operand: E},
		{Operand: H}, {Operand: L}, {Operand: HL, Mode: Indirect}, {Operand: A},
	}
	r16      = [4]Operand{BC, DE, HL, SP}
	r16Stack = [4]Operand{BC, DE, HL, AF}
	conds    = [4]Condition{CondNZ, CondZ, CondNC, CondC}
	aluOps   = [8]Op{ADD, ADC, SUB, SBC, AND, XOR, OR, CP}
	rotOps   = [8]Op{RLC, RRC, RL, RR, SLA, SRA, SWAP, SRL}
	bitOps   = [4]Op{0, BIT, RES, SET}
)

var (
	regA    = Target{Operand: A}
	regHL   = Target{Operand: HL}
	regSP   = Target{Operand: SP}
	atHL    = Target{Operand: HL, Mode: Indirect}
	imm8    = Target{Operand: U8}
	imm16   = Target{Operand: U16}
	disp8   = Target{Operand: I8}
	atImm16 = Target{Operand: U16, Mode: Indirect}
)

// opcodes and cbOpcodes are the decode tables, built once.
var (
	opcodes   = buildTable()
	cbOpcodes = buildCBTable()
)

// Decode maps an opcode to its instruction. Every byte decodes to something:
// the illegal opcodes decode to UNKNOWN, and 0xCB to PREFIX, whose meaning is
// given by DecodeCB on the following byte.
func Decode(opcode uint8) Instruction {
	return opcodes[opcode]
}

// DecodeCB maps the byte following a 0xCB prefix to its instruction.
func DecodeCB(opcode uint8) Instruction {
	return cbOpcodes[opcode]
}

func op(o Op, cycles int) Instruction {
	return Instruction{Op: o, Cycles: cycles}
}

func ld(dst, src Target, cycles int) Instruction {
	return Instruction{Op: LD, Dst: dst, Src: src, Cycles: cycles}
}

func unary(o Op, dst Target, cycles int) Instruction {
	return Instruction{Op: o, Dst: dst, Cycles: cycles}
}

func branch(o Op, cond Condition, dst Target, cycles, taken int) Instruction {
	return Instruction{Op: o, Cond: cond, Dst: dst, Cycles: cycles, Taken: taken}
}

// memCost is the extra cost of an (HL) operand in place of a register.
func memCost(t Target, extra int) int {
	if t.Mode == Indirect {
		return extra
	}
	return 0
}

func buildTable() [256]Instruction {
	var t [256]Instruction

	t[0x00] = op(NOP, 4)
	t[0x08] = ld(atImm16, regSP, 20)
	t[0x10] = op(STOP, 4)
	t[0x18] = branch(JR, CondAlways, disp8, 12, 0)
	for i, cond := range conds {
		t[0x20+i*8] = branch(JR, cond, disp8, 8, 12)
	}

	for p, rp := range r16 {
		base := p << 4
		reg := Target{Operand: rp}
		t[base+0x01] = ld(reg, imm16, 12)
		t[base+0x03] = unary(INC, reg, 8)
		t[base+0x09] = Instruction{Op: ADD, Dst: regHL, Src: reg, Cycles: 8}
		t[base+0x0B] = unary(DEC, reg, 8)
	}

	t[0x02] = ld(Target{Operand: BC, Mode: Indirect}, regA, 8)
	t[0x12] = ld(Target{Operand: DE, Mode: Indirect}, regA, 8)
	t[0x22] = Instruction{Op: LDI, Dst: atHL, Src: regA, Cycles: 8}
	t[0x32] = Instruction{Op: LDD, Dst: atHL, Src: regA, Cycles: 8}
	t[0x0A] = ld(regA, Target{Operand: BC, Mode: Indirect}, 8)
	t[0x1A] = ld(regA, Target{Operand: DE, Mode: Indirect}, 8)
	t[0x2A] = Instruction{Op: LDI, Dst: regA, Src: atHL, Cycles: 8}
	t[0x3A] = Instruction{Op: LDD, Dst: regA, Src: atHL, Cycles: 8}

	for y, reg := range r8 {
		base := y << 3
		t[base+0x04] = unary(INC, reg, 4+memCost(reg, 8))
		t[base+0x05] = unary(DEC, reg, 4+memCost(reg, 8))
		t[base+0x06] = ld(reg, imm8, 8+memCost(reg, 4))
	}

	for i, o := range [8]Op{RLCA, RRCA, RLA, RRA, DAA, CPL, SCF, CCF} {
		t[0x07+i*8] = op(o, 4)
	}

	// 0x40-0x7F: LD r, r'
	for y, dst := range r8 {
		for z, src := range r8 {
			t[0x40+y*8+z] = ld(dst, src, 4+memCost(dst, 4)+memCost(src, 4))
		}
	}
	t[0x76] = op(HALT, 4)

	// 0x80-0xBF: ALU A, r
	for y, o := range aluOps {
		for z, src := range r8 {
			t[0x80+y*8+z] = Instruction{Op: o, Dst: regA, Src: src, Cycles: 4 + memCost(src, 4)}
		}
		t[0xC6+y*8] = Instruction{Op: o, Dst: regA, Src: imm8, Cycles: 8}
	}

	for i, cond := range conds {
		t[0xC0+i*8] = branch(RET, cond, Target{}, 8, 20)
		t[0xC2+i*8] = branch(JP, cond, imm16, 12, 16)
		t[0xC4+i*8] = branch(CALL, cond, imm16, 12, 24)
	}

	for p, rp := range r16Stack {
		base := 0xC0 + p<<4
		t[base+0x01] = unary(POP, Target{Operand: rp}, 12)
		t[base+0x05] = unary(PUSH, Target{Operand: rp}, 16)
	}

	t[0xC3] = branch(JP, CondAlways, imm16, 16, 0)
	t[0xC9] = op(RET, 16)
	t[0xCB] = op(PREFIX, 4)
	t[0xCD] = branch(CALL, CondAlways, imm16, 24, 0)
	t[0xD9] = op(RETI, 16)
	t[0xE9] = branch(JP, CondAlways, regHL, 4, 0)

	t[0xE0] = Instruction{Op: LDH, Dst: Target{Operand: U8, Mode: HighPage}, Src: regA, Cycles: 12}
	t[0xF0] = Instruction{Op: LDH, Dst: regA, Src: Target{Operand: U8, Mode: HighPage}, Cycles: 12}
	t[0xE2] = ld(Target{Operand: C, Mode: HighPage}, regA, 8)
	t[0xF2] = ld(regA, Target{Operand: C, Mode: HighPage}, 8)
	t[0xEA] = ld(atImm16, regA, 16)
	t[0xFA] = ld(regA, atImm16, 16)

	t[0xE8] = Instruction{Op: ADD, Dst: regSP, Src: disp8, Cycles: 16}
	t[0xF8] = Instruction{Op: LDHL, Dst: regHL, Src: disp8, Cycles: 12}
	t[0xF9] = ld(regSP, regHL, 8)

	t[0xF3] = op(DI, 4)
	t[0xFB] = op(EI, 4)

	for y := 0; y < 8; y++ {
		t[0xC7+y*8] = Instruction{Op: RST, N: uint8(y * 8), Cycles: 16}
	}

	// whatever is left is one of the 11 illegal opcodes and stays UNKNOWN
	for i := range t {
		t[i].Opcode = uint16(i)
		if t[i].Op == UNKNOWN {
			t[i].Cycles = 4
		}
	}

	return t
}

func buildCBTable() [256]Instruction {
	var t [256]Instruction

	for i := range t {
		x, y, z := i>>6, uint8(i>>3)&7, i&7
		reg := r8[z]

		inst := Instruction{Dst: reg, Opcode: 0xCB00 | uint16(i)}
		switch x {
		case 0:
			inst.Op = rotOps[y]
			inst.Cycles = 8 + memCost(reg, 8)
		case 1:
			inst.Op = BIT
			inst.N = y
			inst.Cycles = 8 + memCost(reg, 4)
		default:
			inst.Op = bitOps[x]
			inst.N = y
			inst.Cycles = 8 + memCost(reg, 8)
		}
		t[i] = inst
	}

	return t
}
