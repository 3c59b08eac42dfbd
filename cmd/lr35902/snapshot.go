package main

import (
	"fmt"
	"io"
	"os"

	"github.com/valerio/go-lr35902/lr35902/debug"
)

// saveSnapshot writes a text dump of the emulator state to path.
func saveSnapshot(path string, data *debug.Data) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return writeSnapshot(file, data)
}

func writeSnapshot(w io.Writer, data *debug.Data) error {
	fmt.Fprintf(w, "# LR35902 State Snapshot\n")
	if cart := data.Cartridge; cart != nil {
		fmt.Fprintf(w, "# Cartridge: %s\n", cart.Summary)
		fmt.Fprintf(w, "# Fingerprint: %s\n", cart.Fingerprint)
	}

	cpu := data.CPU
	fmt.Fprintf(w, "#\n")
	fmt.Fprintf(w, "AF=%02X%02X BC=%02X%02X DE=%02X%02X HL=%02X%02X SP=%04X PC=%04X\n",
		cpu.A, cpu.F, cpu.B, cpu.C, cpu.D, cpu.E, cpu.H, cpu.L, cpu.SP, cpu.PC)
	fmt.Fprintf(w, "Flags=%s IME=%t Halted=%t Running=%t\n", cpu.Flags, cpu.IME, cpu.Halted, cpu.Running)
	fmt.Fprintf(w, "Cycles=%d Machine=%d\n", cpu.ClockCycles, cpu.MachineCycles)
	if data.LastError != "" {
		fmt.Fprintf(w, "Error=%s\n", data.LastError)
	}

	fmt.Fprintf(w, "\n")
	for _, line := range data.Disassembly {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
