package debug

import (
	"github.com/valerio/go-lr35902/lr35902/disasm"
)

// CreateDisassembly disassembles the snapshot and returns at most maxLines
// lines centered on pc. Decoding starts at the beginning of the snapshot, so
// lines before pc may be misaligned when the snapshot starts mid-instruction.
func CreateDisassembly(snapshot *MemorySnapshot, pc uint16, maxLines int) []disasm.DisassemblyLine {
	if snapshot == nil || maxLines <= 0 {
		return nil
	}

	var all []disasm.DisassemblyLine
	pcIndex := -1
	for i := 0; i < len(snapshot.Bytes); {
		addr := snapshot.StartAddr + uint16(i)
		// realign on pc if an instruction straddles it
		if pcIndex < 0 && addr > pc && int(pc) >= int(snapshot.StartAddr) {
			i = int(pc - snapshot.StartAddr)
			addr = pc
		}

		line := disasm.DisassembleBytes(snapshot.Bytes, snapshot.StartAddr, i)
		if addr == pc {
			pcIndex = len(all)
		}
		all = append(all, line)
		i += line.Length
	}

	if pcIndex < 0 {
		if len(all) > maxLines {
			all = all[:maxLines]
		}
		return all
	}

	start := pcIndex - maxLines/2
	if start < 0 {
		start = 0
	}
	end := start + maxLines
	if end > len(all) {
		end = len(all)
		start = max(end-maxLines, 0)
	}
	return all[start:end]
}
