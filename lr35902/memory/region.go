package memory

import (
	"fmt"

	"github.com/valerio/go-lr35902/lr35902/addr"
)

// Region is one of the fixed, non-overlapping areas of the address space.
type Region uint8

const (
	RegionROM0 Region = iota
	RegionROMX
	RegionVRAM
	RegionExtRAM
	RegionWRAM
	RegionEcho
	RegionOAM
	RegionUnusable
	RegionIO
	RegionHRAM
	RegionIE
)

var regionNames = [...]string{
	RegionROM0:     "ROM bank 0",
	RegionROMX:     "ROM bank N",
	RegionVRAM:     "video RAM",
	RegionExtRAM:   "external RAM",
	RegionWRAM:     "work RAM",
	RegionEcho:     "echo RAM",
	RegionOAM:      "OAM",
	RegionUnusable: "unusable",
	RegionIO:       "I/O registers",
	RegionHRAM:     "high RAM",
	RegionIE:       "interrupt enable",
}

func (r Region) String() string {
	if int(r) < len(regionNames) {
		return regionNames[r]
	}
	return fmt.Sprintf("Region(%d)", uint8(r))
}

// pageRegions maps the high byte of an address to its region. Pages 0xFE and
// 0xFF hold more than one region and are split further by RegionOf.
var pageRegions = buildPageRegions()

func buildPageRegions() [256]Region {
	var pages [256]Region

	fill := func(start, end uint16, r Region) {
		for p := start >> 8; p <= end>>8; p++ {
			pages[p] = r
		}
	}

	fill(addr.ROM0Start, addr.ROM0End, RegionROM0)
	fill(addr.ROMXStart, addr.ROMXEnd, RegionROMX)
	fill(addr.VRAMStart, addr.VRAMEnd, RegionVRAM)
	fill(addr.ExtRAMStart, addr.ExtRAMEnd, RegionExtRAM)
	fill(addr.WRAMStart, addr.WRAMEnd, RegionWRAM)
	fill(addr.EchoStart, addr.EchoEnd, RegionEcho)
	pages[0xFE] = RegionOAM
	pages[0xFF] = RegionIO

	return pages
}

// RegionOf returns the region an address belongs to.
func RegionOf(address uint16) Region {
	r := pageRegions[address>>8]

	switch {
	case r == RegionOAM && address > addr.OAMEnd:
		return RegionUnusable
	case r == RegionIO && address == addr.IE:
		return RegionIE
	case r == RegionIO && address >= addr.HRAMStart:
		return RegionHRAM
	}
	return r
}
