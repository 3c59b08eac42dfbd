// Package memory implements the address bus: it routes every CPU access to
// the cartridge, to RAM or to a peripheral mapped in the I/O page.
package memory

import (
	"fmt"
	"log/slog"

	"github.com/valerio/go-lr35902/lr35902/addr"
	"github.com/valerio/go-lr35902/lr35902/cartridge"
)

// Device is a peripheral mapped into the I/O page (timer, video, audio...).
type Device interface {
	Read(address uint16) byte
	Write(address uint16, value byte)
}

type mapping struct {
	start, end uint16
	dev        Device
}

// MMU allows access to all memory mapped I/O and data/registers.
//
// Accesses to regions without backing storage never panic: reads return 0xFF,
// writes are dropped, and the first such access is kept as a fault until
// TakeFault collects it.
type MMU struct {
	cart   *cartridge.Cartridge
	memory []byte

	devices  []mapping
	io       [addr.IOEnd - addr.IOStart + 1]Device
	strictIO bool

	fault   *AccessError
	peeking bool
	logger  *slog.Logger

	// writes held back between Begin and Commit
	staging bool
	pending []pendingWrite
}

type pendingWrite struct {
	address uint16
	value   byte
}

// Option configures an MMU.
type Option func(*MMU)

// WithStrictIO makes accesses to I/O registers without an attached device
// fault instead of falling back to plain register storage. Without it the
// MMU uses DefaultStrictIO.
func WithStrictIO(enabled bool) Option { return func(m *MMU) { m.strictIO = enabled } }

// WithLogger sets the logger used to report faults.
func WithLogger(l *slog.Logger) Option { return func(m *MMU) { m.logger = l } }

// New creates a memory unit with no cartridge inserted.
func New(opts ...Option) *MMU {
	m := &MMU{
		memory:   make([]byte, 0x10000),
		strictIO: DefaultStrictIO,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewWithCartridge creates a memory unit with the cartridge inserted.
func NewWithCartridge(cart *cartridge.Cartridge, opts ...Option) *MMU {
	m := New(opts...)
	m.cart = cart
	return m
}

// Cartridge returns the inserted cartridge, nil if there is none.
func (m *MMU) Cartridge() *cartridge.Cartridge {
	return m.cart
}

// Attach maps dev on the inclusive range [start, end] of the I/O page.
func (m *MMU) Attach(start, end uint16, dev Device) error {
	if start > end || start < addr.IOStart || end > addr.IOEnd {
		return fmt.Errorf("%w: 0x%04X-0x%04X is outside the I/O page", ErrInvalidMapping, start, end)
	}
	for _, d := range m.devices {
		if start <= d.end && d.start <= end {
			return fmt.Errorf("%w: 0x%04X-0x%04X overlaps 0x%04X-0x%04X", ErrInvalidMapping, start, end, d.start, d.end)
		}
	}

	m.devices = append(m.devices, mapping{start: start, end: end, dev: dev})
	for a := start; a <= end; a++ {
		m.io[a-addr.IOStart] = dev
	}
	return nil
}

// TakeFault returns the first access fault recorded since the last call and
// clears it. It returns nil when every access was backed.
func (m *MMU) TakeFault() error {
	if m.fault == nil {
		return nil
	}
	err := m.fault
	m.fault = nil
	return err
}

// Peek reads like Read but never records a fault. Debuggers use it to look
// at memory without disturbing the next instruction.
func (m *MMU) Peek(address uint16) byte {
	m.peeking = true
	defer func() { m.peeking = false }()
	return m.Read(address)
}

// Begin holds back every following write until Commit or Discard. Reads in
// between see the held back values. Writes to unbacked regions still fault
// right away.
func (m *MMU) Begin() {
	m.staging = true
	m.pending = m.pending[:0]
}

// Commit applies the writes held back since Begin, in order.
func (m *MMU) Commit() {
	m.staging = false
	for _, w := range m.pending {
		m.Write(w.address, w.value)
	}
	m.pending = m.pending[:0]
}

// Discard drops the writes held back since Begin.
func (m *MMU) Discard() {
	m.staging = false
	m.pending = m.pending[:0]
}

func (m *MMU) raise(address uint16, region Region, write bool, value byte) {
	if m.fault != nil || m.peeking {
		return
	}
	m.fault = &AccessError{Address: address, Region: region, Write: write, Value: value}
	m.logger.Warn("Access to unimplemented memory region",
		"addr", fmt.Sprintf("0x%04X", address),
		"region", region.String(),
		"write", write)
}

func (m *MMU) hasExtRAM() bool {
	return m.cart != nil && m.cart.Header().RAMSize() > 0
}

func (m *MMU) Read(address uint16) byte {
	switch region := RegionOf(address); region {
	case RegionROM0, RegionROMX:
		if m.cart == nil {
			m.logger.Warn("Reading from ROM with no cartridge", "addr", fmt.Sprintf("0x%04X", address))
			return 0xFF
		}
		return m.cart.Read(address)
	case RegionExtRAM:
		if m.hasExtRAM() {
			m.raise(address, region, false, 0)
		}
		return 0xFF
	case RegionEcho:
		return m.load(address - addr.EchoOffset)
	case RegionUnusable:
		return 0xFF
	case RegionIO:
		if dev := m.io[address-addr.IOStart]; dev != nil {
			return dev.Read(address)
		}
		if m.strictIO {
			m.raise(address, region, false, 0)
			return 0xFF
		}
		// upper 3 bits of IF are not wired and always read as 1
		if address == addr.IF {
			return m.load(address) | 0xE0
		}
		return m.load(address)
	default:
		// VRAM, WRAM, OAM, HRAM, IE
		return m.load(address)
	}
}

// load reads plain storage, newest held back write first.
func (m *MMU) load(address uint16) byte {
	for i := len(m.pending) - 1; i >= 0; i-- {
		if m.pending[i].address == address {
			return m.pending[i].value
		}
	}
	return m.memory[address]
}

// writeFaults reports whether a write to address has nothing to land on.
func (m *MMU) writeFaults(address uint16, region Region) bool {
	switch region {
	case RegionExtRAM:
		return m.hasExtRAM()
	case RegionIO:
		return m.strictIO && m.io[address-addr.IOStart] == nil
	}
	return false
}

func (m *MMU) Write(address uint16, value byte) {
	region := RegionOf(address)
	if m.writeFaults(address, region) {
		m.raise(address, region, true, value)
		return
	}
	if m.staging {
		if region == RegionEcho {
			address -= addr.EchoOffset
		}
		m.pending = append(m.pending, pendingWrite{address: address, value: value})
		return
	}

	switch region {
	case RegionROM0, RegionROMX:
		if m.cart == nil {
			m.logger.Warn("Writing to ROM with no cartridge", "addr", fmt.Sprintf("0x%04X", address), "value", fmt.Sprintf("0x%02X", value))
			return
		}
		m.cart.Write(address, value)
	case RegionExtRAM, RegionUnusable:
	case RegionEcho:
		m.memory[address-addr.EchoOffset] = value
	case RegionIO:
		if dev := m.io[address-addr.IOStart]; dev != nil {
			dev.Write(address, value)
			return
		}
		m.memory[address] = value
	default:
		m.memory[address] = value
	}
}
