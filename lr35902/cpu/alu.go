package cpu

import "github.com/valerio/go-lr35902/lr35902/bit"

// The ALU helpers are pure: they return the result and the flags it produces.
// Callers decide which of those flags to commit.

func aluAdd(a, b uint8, carryIn uint8) (uint8, Flag) {
	partial, carry := bit.CheckedAdd(a, b)
	result, carryOut := bit.CheckedAdd(partial, carryIn)

	return result, flagIf(ZeroFlag, result == 0) |
		flagIf(HalfCarryFlag, bit.LowNibble(a)+bit.LowNibble(b)+carryIn > 0x0F) |
		flagIf(CarryFlag, carry || carryOut)
}

// aluSub computes a - b - carryIn with 8 bit wraparound. Carry signals a
// borrow out of bit 7.
func aluSub(a, b uint8, carryIn uint8) (uint8, Flag) {
	partial, borrow := bit.CheckedSub(a, b)
	result, borrowOut := bit.CheckedSub(partial, carryIn)

	return result, flagIf(ZeroFlag, result == 0) |
		SubFlag |
		flagIf(HalfCarryFlag, bit.LowNibble(a) > bit.LowNibble(b)+carryIn) |
		flagIf(CarryFlag, borrow || borrowOut)
}

func aluAnd(a, b uint8) (uint8, Flag) {
	result := a & b
	return result, flagIf(ZeroFlag, result == 0) | HalfCarryFlag
}

func aluOr(a, b uint8) (uint8, Flag) {
	result := a | b
	return result, flagIf(ZeroFlag, result == 0)
}

func aluXor(a, b uint8) (uint8, Flag) {
	result := a ^ b
	return result, flagIf(ZeroFlag, result == 0)
}

// aluInc leaves Carry to the caller: INC never touches it.
func aluInc(v uint8) (uint8, Flag) {
	result := v + 1
	return result, flagIf(ZeroFlag, result == 0) | flagIf(HalfCarryFlag, v&0x0F == 0x0F)
}

// aluDec is a subtraction of one. Carry is not affected by DEC, the caller
// must mask it out.
func aluDec(v uint8) (uint8, Flag) {
	return aluSub(v, 1, 0)
}

// aluAdd16 adds two words as ADD HL, rr does. Zero is not affected.
func aluAdd16(a, b uint16) (uint16, Flag) {
	sum := uint32(a) + uint32(b)
	return uint16(sum), flagIf(HalfCarryFlag, (a&0x0FFF)+(b&0x0FFF) > 0x0FFF) |
		flagIf(CarryFlag, sum > 0xFFFF)
}

// aluAddSigned adds a displacement to SP. Carries are computed on the low
// byte as an unsigned addition, Zero and Sub are always cleared.
func aluAddSigned(sp uint16, e int8) (uint16, Flag) {
	value := int32(sp)
	n := int32(e)
	result := value + n
	carries := value ^ n ^ (result & 0xFFFF)

	return uint16(result), flagIf(HalfCarryFlag, carries&0x10 != 0) |
		flagIf(CarryFlag, carries&0x100 != 0)
}

// aluDaa adjusts A to packed BCD after an addition or subtraction.
func aluDaa(a uint8, flags Flag) (uint8, Flag) {
	var adjust uint8
	carry := false

	if flags&SubFlag == 0 {
		if flags&CarryFlag != 0 || a > 0x99 {
			adjust |= 0x60
			carry = true
		}
		if flags&HalfCarryFlag != 0 || a&0x0F > 0x09 {
			adjust |= 0x06
		}
		a += adjust
	} else {
		if flags&CarryFlag != 0 {
			adjust |= 0x60
			carry = true
		}
		if flags&HalfCarryFlag != 0 {
			adjust |= 0x06
		}
		a -= adjust
	}

	return a, flagIf(ZeroFlag, a == 0) | flags&SubFlag | flagIf(CarryFlag, carry)
}

func shiftFlags(result uint8, carry bool) Flag {
	return flagIf(ZeroFlag, result == 0) | flagIf(CarryFlag, carry)
}

func aluRlc(v uint8) (uint8, Flag) {
	result := v<<1 | v>>7
	return result, shiftFlags(result, v&0x80 != 0)
}

func aluRrc(v uint8) (uint8, Flag) {
	result := v>>1 | v<<7
	return result, shiftFlags(result, v&0x01 != 0)
}

func aluRl(v uint8, carryIn uint8) (uint8, Flag) {
	result := v<<1 | carryIn
	return result, shiftFlags(result, v&0x80 != 0)
}

func aluRr(v uint8, carryIn uint8) (uint8, Flag) {
	result := v>>1 | carryIn<<7
	return result, shiftFlags(result, v&0x01 != 0)
}

func aluSla(v uint8) (uint8, Flag) {
	result := v << 1
	return result, shiftFlags(result, v&0x80 != 0)
}

func aluSra(v uint8) (uint8, Flag) {
	result := v>>1 | v&0x80
	return result, shiftFlags(result, v&0x01 != 0)
}

func aluSrl(v uint8) (uint8, Flag) {
	result := v >> 1
	return result, shiftFlags(result, v&0x01 != 0)
}

func aluSwap(v uint8) (uint8, Flag) {
	result := v<<4 | v>>4
	return result, flagIf(ZeroFlag, result == 0)
}
