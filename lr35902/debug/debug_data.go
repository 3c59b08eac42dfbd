// Package debug exposes read-only views of the emulator for front-ends.
package debug

import (
	"github.com/valerio/go-lr35902/lr35902/cartridge"
	"github.com/valerio/go-lr35902/lr35902/cpu"
	"github.com/valerio/go-lr35902/lr35902/disasm"
)

// CPUState contains all CPU register information for debugging
type CPUState struct {
	A uint8 `json:"a"`
	F uint8 `json:"f"`
	B uint8 `json:"b"`
	C uint8 `json:"c"`
	D uint8 `json:"d"`
	E uint8 `json:"e"`
	H uint8 `json:"h"`
	L uint8 `json:"l"`

	SP uint16 `json:"sp"`
	PC uint16 `json:"pc"`

	Flags   string `json:"flags"`
	IME     bool   `json:"ime"`
	Halted  bool   `json:"halted"`
	Running bool   `json:"running"`

	MachineCycles uint64 `json:"machineCycles"`
	ClockCycles   uint64 `json:"clockCycles"`
}

// MemorySnapshot contains a snapshot of memory for disassembly
type MemorySnapshot struct {
	StartAddr uint16  `json:"start"`
	Bytes     []uint8 `json:"bytes"`
}

// CartridgeInfo summarizes the loaded cartridge.
type CartridgeInfo struct {
	Title       string `json:"title"`
	Type        string `json:"type"`
	ROMSize     int    `json:"romSize"`
	RAMSize     int    `json:"ramSize"`
	Fingerprint string `json:"fingerprint"`
	Summary     string `json:"summary"`
}

// Data contains all debug information needed by debug displays
type Data struct {
	CPU         *CPUState                `json:"cpu"`
	Memory      *MemorySnapshot          `json:"memory,omitempty"`
	Disassembly []disasm.DisassemblyLine `json:"disassembly,omitempty"`
	Cartridge   *CartridgeInfo           `json:"cartridge,omitempty"`
	LastError   string                   `json:"lastError,omitempty"`

	// Executing is set by the session driver while instructions run on
	// their own, and cleared when it pauses.
	Executing bool `json:"executing"`
}

// ExtractCPUState copies the visible CPU state.
func ExtractCPUState(c *cpu.CPU) *CPUState {
	r := c.Registers()
	cycles := c.Cycles()

	return &CPUState{
		A: r.A, F: r.F, B: r.B, C: r.C, D: r.D, E: r.E, H: r.H, L: r.L,
		SP:            r.SP,
		PC:            r.PC,
		Flags:         r.Flags().String(),
		IME:           c.InterruptsEnabled(),
		Halted:        c.Halted(),
		Running:       c.Running(),
		MachineCycles: cycles.Machine,
		ClockCycles:   cycles.Clock,
	}
}

// ExtractCartridgeInfo summarizes a cartridge, nil if there is none.
func ExtractCartridgeInfo(cart *cartridge.Cartridge) *CartridgeInfo {
	if cart == nil {
		return nil
	}
	h := cart.Header()

	return &CartridgeInfo{
		Title:       cart.Title(),
		Type:        h.Type.String(),
		ROMSize:     h.ROMSize(),
		RAMSize:     h.RAMSize(),
		Fingerprint: formatFingerprint(cart.Fingerprint()),
		Summary:     h.String(),
	}
}
