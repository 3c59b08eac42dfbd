package cartridge

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// HeaderEnd is the first byte after the cartridge header. Images shorter than
// this cannot be parsed.
const HeaderEnd = 0x150

// Section identifies a single field of the cartridge header.
type Section uint8

const (
	SectionEntryPoint Section = iota
	SectionLogo
	SectionTitle
	SectionManufacturerCode
	SectionCGBFlag
	SectionNewLicenseeCode
	SectionSGBFlag
	SectionCartridgeType
	SectionROMSize
	SectionRAMSize
	SectionDestinationCode
	SectionOldLicenseeCode
	SectionMaskROMVersion
	SectionHeaderChecksum
	SectionGlobalChecksum

	sectionCount
)

// Range is an inclusive byte range within a ROM image.
type Range struct {
	Start int
	End   int
}

// Len returns the amount of bytes covered by the range.
func (r Range) Len() int {
	return r.End - r.Start + 1
}

// Of returns the bytes of data covered by the range. The caller must make sure
// data is long enough.
func (r Range) Of(data []byte) []byte {
	return data[r.Start : r.End+1]
}

// sectionRanges maps every header section to its location in the image.
// The manufacturer code and the CGB flag overlap the tail of the title: older
// cartridges use all 16 bytes for the title, newer ones repurpose the last five.
// Reference: https://gbdev.io/pandocs/The_Cartridge_Header.html
var sectionRanges = [sectionCount]Range{
	SectionEntryPoint:       {0x100, 0x103},
	SectionLogo:             {0x104, 0x133},
	SectionTitle:            {0x134, 0x143},
	SectionManufacturerCode: {0x13F, 0x142},
	SectionCGBFlag:          {0x143, 0x143},
	SectionNewLicenseeCode:  {0x144, 0x145},
	SectionSGBFlag:          {0x146, 0x146},
	SectionCartridgeType:    {0x147, 0x147},
	SectionROMSize:          {0x148, 0x148},
	SectionRAMSize:          {0x149, 0x149},
	SectionDestinationCode:  {0x14A, 0x14A},
	SectionOldLicenseeCode:  {0x14B, 0x14B},
	SectionMaskROMVersion:   {0x14C, 0x14C},
	SectionHeaderChecksum:   {0x14D, 0x14D},
	SectionGlobalChecksum:   {0x14E, 0x14F},
}

var sectionNames = [sectionCount]string{
	"entry point", "logo", "title", "manufacturer code", "CGB flag",
	"new licensee code", "SGB flag", "cartridge type", "ROM size", "RAM size",
	"destination code", "old licensee code", "mask ROM version",
	"header checksum", "global checksum",
}

// Range returns the inclusive byte range of the section.
func (s Section) Range() Range {
	return sectionRanges[s]
}

func (s Section) String() string {
	if s >= sectionCount {
		return fmt.Sprintf("Section(%d)", uint8(s))
	}
	return sectionNames[s]
}

// Header is the metadata found at 0x0100-0x014F of every ROM image.
type Header struct {
	EntryPoint       [4]byte
	Logo             [48]byte
	Title            string
	ManufacturerCode [4]byte
	CGBFlag          uint8
	NewLicenseeCode  [2]byte
	SGBFlag          uint8
	Type             Type
	ROMSizeCode      uint8
	RAMSizeCode      uint8
	DestinationCode  uint8
	OldLicenseeCode  uint8
	MaskROMVersion   uint8
	HeaderChecksum   uint8
	// GlobalChecksum is stored big-endian, unlike everything else on the CPU side.
	GlobalChecksum uint16
}

// ParseHeader extracts the header from a ROM image. Checksums are not verified,
// see Verify for that.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderEnd {
		return Header{}, fmt.Errorf("%w: got %d bytes, need at least %d", ErrHeaderTooShort, len(data), HeaderEnd)
	}

	h := Header{
		Title:           parseTitle(SectionTitle.Range().Of(data)),
		CGBFlag:         byteAt(data, SectionCGBFlag),
		SGBFlag:         byteAt(data, SectionSGBFlag),
		Type:            Type(byteAt(data, SectionCartridgeType)),
		ROMSizeCode:     byteAt(data, SectionROMSize),
		RAMSizeCode:     byteAt(data, SectionRAMSize),
		DestinationCode: byteAt(data, SectionDestinationCode),
		OldLicenseeCode: byteAt(data, SectionOldLicenseeCode),
		MaskROMVersion:  byteAt(data, SectionMaskROMVersion),
		HeaderChecksum:  byteAt(data, SectionHeaderChecksum),
	}

	copy(h.EntryPoint[:], SectionEntryPoint.Range().Of(data))
	copy(h.Logo[:], SectionLogo.Range().Of(data))
	copy(h.ManufacturerCode[:], SectionManufacturerCode.Range().Of(data))
	copy(h.NewLicenseeCode[:], SectionNewLicenseeCode.Range().Of(data))

	checksum := SectionGlobalChecksum.Range().Of(data)
	h.GlobalChecksum = uint16(checksum[0])<<8 | uint16(checksum[1])

	return h, nil
}

func byteAt(data []byte, s Section) uint8 {
	return data[s.Range().Start]
}

// parseTitle decodes the title bytes as lossy UTF-8 and drops the NUL padding.
// Every invalid byte becomes its own U+FFFD.
func parseTitle(raw []byte) string {
	var sb strings.Builder
	for len(raw) > 0 {
		r, size := utf8.DecodeRune(raw)
		sb.WriteRune(r)
		raw = raw[size:]
	}
	return strings.Trim(sb.String(), "\x00")
}

// ROMBanks returns the number of 16KiB ROM banks declared by the header.
func (h Header) ROMBanks() int {
	switch {
	case h.ROMSizeCode <= 0x08:
		return 2 << h.ROMSizeCode
	case h.ROMSizeCode == 0x52:
		return 72
	case h.ROMSizeCode == 0x53:
		return 80
	case h.ROMSizeCode == 0x54:
		return 96
	default:
		return 2
	}
}

// ROMSize returns the declared ROM size in bytes.
func (h Header) ROMSize() int {
	return h.ROMBanks() * 0x4000
}

var ramSizes = map[uint8]int{
	0x00: 0,
	0x01: 2 * 1024,
	0x02: 8 * 1024,
	0x03: 32 * 1024,
	0x04: 128 * 1024,
	0x05: 64 * 1024,
}

// RAMSize returns the declared external RAM size in bytes, 0 if none.
func (h Header) RAMSize() int {
	return ramSizes[h.RAMSizeCode]
}

// IsJapanese reports whether the cartridge is meant for the Japanese market.
func (h Header) IsJapanese() bool {
	return h.DestinationCode == 0x00
}

// SupportsCGB reports whether the CGB flag marks the game as color-capable.
func (h Header) SupportsCGB() bool {
	return h.CGBFlag == 0x80 || h.CGBFlag == 0xC0
}

// SupportsSGB reports whether the game uses Super Game Boy functions.
func (h Header) SupportsSGB() bool {
	return h.SGBFlag == 0x03
}

// Licensee returns the licensee code, using the new two character code when
// the old code points to it.
func (h Header) Licensee() string {
	if h.OldLicenseeCode == 0x33 {
		return string(h.NewLicenseeCode[:])
	}
	return fmt.Sprintf("%02X", h.OldLicenseeCode)
}

func (h Header) String() string {
	destination := "Overseas"
	if h.IsJapanese() {
		destination = "Japan"
	}
	return fmt.Sprintf("%s | %s | ROM: %dKiB (%d banks) | RAM: %dKiB | %s | v%d",
		cleanTitle(h.Title), h.Type, h.ROMSize()/1024, h.ROMBanks(), h.RAMSize()/1024, destination, h.MaskROMVersion)
}
