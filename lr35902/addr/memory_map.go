package addr

// Memory map boundaries, all inclusive.
// Reference: https://gbdev.io/pandocs/Memory_Map.html
const (
	// ROM0Start is the fixed cartridge ROM bank (bank 0).
	ROM0Start uint16 = 0x0000
	ROM0End   uint16 = 0x3FFF

	// ROMXStart is the switchable cartridge ROM bank (bank 1..n).
	ROMXStart uint16 = 0x4000
	ROMXEnd   uint16 = 0x7FFF

	VRAMStart uint16 = 0x8000
	VRAMEnd   uint16 = 0x9FFF

	// ExtRAMStart is the cartridge RAM window, if the cartridge has any.
	ExtRAMStart uint16 = 0xA000
	ExtRAMEnd   uint16 = 0xBFFF

	WRAMStart uint16 = 0xC000
	WRAMEnd   uint16 = 0xDFFF

	// EchoStart mirrors 0xC000-0xDDFF.
	EchoStart uint16 = 0xE000
	EchoEnd   uint16 = 0xFDFF

	OAMStart uint16 = 0xFE00
	OAMEnd   uint16 = 0xFE9F

	UnusableStart uint16 = 0xFEA0
	UnusableEnd   uint16 = 0xFEFF

	IOStart uint16 = 0xFF00
	IOEnd   uint16 = 0xFF7F

	HRAMStart uint16 = 0xFF80
	HRAMEnd   uint16 = 0xFFFE
)

const (
	// ROMBankSize is the size of a single switchable ROM bank.
	ROMBankSize = 0x4000
	// RAMBankSize is the size of a single external RAM bank.
	RAMBankSize = 0x2000
	// EchoOffset is the distance between the echo region and the work RAM it mirrors.
	EchoOffset uint16 = EchoStart - WRAMStart
)

// interrupts
const (
	// IF is the address for the Interrupt Flags register.
	IF uint16 = 0xFF0F
	// IE is the address for the Interrupt Enable register.
	IE uint16 = 0xFFFF
)

// EntryPoint is where execution starts once the boot ROM hands over control.
const EntryPoint uint16 = 0x0100
