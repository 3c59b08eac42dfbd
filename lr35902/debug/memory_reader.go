package debug

import "fmt"

// MemoryReader provides read-only access to emulator memory for debug tools.
type MemoryReader interface {
	Read(addr uint16) uint8
}

// SnapshotAround copies the memory from before bytes ahead of pc up to after
// bytes past it. The window is clamped to the address space.
func SnapshotAround(reader MemoryReader, pc uint16, before, after int) *MemorySnapshot {
	start := int(pc) - before
	if start < 0 {
		start = 0
	}
	end := int(pc) + after
	if end > 0xFFFF {
		end = 0xFFFF
	}

	snapshot := &MemorySnapshot{
		StartAddr: uint16(start),
		Bytes:     make([]uint8, 0, end-start+1),
	}
	for a := start; a <= end; a++ {
		snapshot.Bytes = append(snapshot.Bytes, reader.Read(uint16(a)))
	}
	return snapshot
}

func formatFingerprint(fp uint64) string {
	return fmt.Sprintf("%016x", fp)
}
