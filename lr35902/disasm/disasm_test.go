package disasm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type ram map[uint16]uint8

func (m ram) Read(address uint16) uint8 { return m[address] }

func load(origin uint16, code ...byte) ram {
	m := ram{}
	for i, b := range code {
		m[origin+uint16(i)] = b
	}
	return m
}

func TestDisassembleAt(t *testing.T) {
	testCases := []struct {
		desc   string
		code   []byte
		want   string
		length int
	}{
		{desc: "NOP", code: []byte{0x00}, want: "NOP", length: 1},
		{desc: "JP u16", code: []byte{0xC3, 0x50, 0x01}, want: "JP $0150", length: 3},
		{desc: "LD B, u8", code: []byte{0x06, 0xCB}, want: "LD B, $CB", length: 2},
		{desc: "JR backwards", code: []byte{0x18, 0xFE}, want: "JR -2 ; $0100", length: 2},
		{desc: "JR NZ forwards", code: []byte{0x20, 0x05}, want: "JR NZ, +5 ; $0107", length: 2},
		{desc: "CB prefixed", code: []byte{0xCB, 0x7C}, want: "BIT 7, H", length: 2},
		{desc: "LD (u16), A", code: []byte{0xEA, 0x00, 0xC0}, want: "LD ($C000), A", length: 3},
		{desc: "STOP", code: []byte{0x10, 0x00}, want: "STOP", length: 2},
		{desc: "illegal", code: []byte{0xDD}, want: "UNKNOWN(0xDD)", length: 1},
	}

	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			line := DisassembleAt(0x0100, load(0x0100, tC.code...))

			assert.Equal(t, uint16(0x0100), line.Address)
			assert.Equal(t, tC.want, line.Instruction)
			assert.Equal(t, tC.length, line.Length)
			assert.Equal(t, tC.code, line.Bytes)
		})
	}
}

func TestDisassembleRange(t *testing.T) {
	mem := load(0x0100, 0x00, 0xC3, 0x50, 0x01, 0x3E, 0x01, 0xAF)

	lines := DisassembleRange(0x0100, 4, mem)

	assert.Len(t, lines, 4)
	assert.Equal(t, []uint16{0x0100, 0x0101, 0x0104, 0x0106},
		[]uint16{lines[0].Address, lines[1].Address, lines[2].Address, lines[3].Address})
	assert.Equal(t, "LD A, $01", lines[2].Instruction)
	assert.Equal(t, "XOR A, A", lines[3].Instruction)
}

func TestDisassembleRange_Wraps(t *testing.T) {
	mem := load(0xFFFF, 0x00)
	mem[0x0000] = 0x00

	lines := DisassembleRange(0xFFFF, 2, mem)
	assert.Equal(t, uint16(0x0000), lines[1].Address)
}

func TestDisassembleBytes(t *testing.T) {
	data := []byte{0x00, 0x01, 0x34, 0x12, 0x20, 0xFB}

	testCases := []struct {
		desc    string
		data    []byte
		base    uint16
		offset  int
		want    string
		address uint16
		length  int
	}{
		{desc: "word operand", data: data, base: 0x0000, offset: 1, want: "LD BC, $1234", address: 0x0001, length: 3},
		{desc: "truncated operand reads as zero", data: data[:2], base: 0x0000, offset: 1, want: "LD BC, $0000", address: 0x0001, length: 3},
		{desc: "jump target uses the base", data: data, base: 0x0200, offset: 4, want: "JR NZ, -5 ; $0201", address: 0x0204, length: 2},
	}

	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			line := DisassembleBytes(tC.data, tC.base, tC.offset)
			assert.Equal(t, tC.want, line.Instruction)
			assert.Equal(t, tC.address, line.Address)
			assert.Equal(t, tC.length, line.Length)
		})
	}
}
