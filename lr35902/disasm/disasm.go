// Package disasm renders machine code as assembly, using the same decode
// tables the CPU executes from.
package disasm

import (
	"fmt"

	"github.com/valerio/go-lr35902/lr35902/bit"
	"github.com/valerio/go-lr35902/lr35902/cpu"
)

// Reader is the read side of the bus.
type Reader interface {
	Read(address uint16) uint8
}

// ReaderFunc adapts a plain read function to a Reader.
type ReaderFunc func(address uint16) uint8

func (f ReaderFunc) Read(address uint16) uint8 { return f(address) }

// DisassemblyLine represents a single disassembled instruction
type DisassemblyLine struct {
	Address     uint16 `json:"address"`
	Instruction string `json:"instruction"`
	Length      int    `json:"length"`
	Bytes       []byte `json:"bytes"`
}

func (l DisassemblyLine) String() string {
	return fmt.Sprintf("%04X  % -9X  %s", l.Address, l.Bytes, l.Instruction)
}

// Decode returns the instruction at pc, looking through the 0xCB prefix.
func Decode(pc uint16, r Reader) cpu.Instruction {
	inst := cpu.Decode(r.Read(pc))
	if inst.Op == cpu.PREFIX {
		inst = cpu.DecodeCB(r.Read(pc + 1))
	}
	return inst
}

// DisassembleAt disassembles the instruction at the given program counter
func DisassembleAt(pc uint16, r Reader) DisassemblyLine {
	inst := Decode(pc, r)
	length := inst.Length()

	raw := make([]byte, length)
	for i := range raw {
		raw[i] = r.Read(pc + uint16(i))
	}

	// immediates always sit at the end of the instruction
	var value uint16
	switch size := inst.Dst.Operand.Size() + inst.Src.Operand.Size(); size {
	case 1:
		value = uint16(raw[length-1])
	case 2:
		value = bit.Combine(raw[length-1], raw[length-2])
	}

	text := inst.Format(value)
	if inst.Op == cpu.JR {
		target := pc + uint16(length) + uint16(int8(value))
		text = fmt.Sprintf("%s ; $%04X", text, target)
	}

	return DisassemblyLine{
		Address:     pc,
		Instruction: text,
		Length:      length,
		Bytes:       raw,
	}
}

// DisassembleRange disassembles count instructions starting from the given PC
func DisassembleRange(startPC uint16, count int, r Reader) []DisassemblyLine {
	lines := make([]DisassemblyLine, 0, count)
	pc := startPC

	for i := 0; i < count; i++ {
		line := DisassembleAt(pc, r)
		lines = append(lines, line)
		pc += uint16(line.Length)
	}

	return lines
}

// sliceReader serves data as if it were mapped at base.
type sliceReader struct {
	data []byte
	base int
}

func (s sliceReader) Read(address uint16) uint8 {
	i := int(address) - s.base
	if i < 0 || i >= len(s.data) {
		return 0x00
	}
	return s.data[i]
}

// DisassembleBytes disassembles the instruction at offset in data, where
// data[0] lives at base. Bytes past the end of data read as zero.
func DisassembleBytes(data []byte, base uint16, offset int) DisassemblyLine {
	return DisassembleAt(base+uint16(offset), sliceReader{data: data, base: int(base)})
}
