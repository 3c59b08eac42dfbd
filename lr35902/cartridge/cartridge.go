// Package cartridge parses ROM images and exposes them to the memory bus.
package cartridge

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/cespare/xxhash"
	"github.com/valerio/go-lr35902/lr35902/addr"
)

// ErrHeaderTooShort is returned when an image cannot hold a full header.
var ErrHeaderTooShort = errors.New("image shorter than cartridge header")

// LoadError is returned by Load when a ROM file cannot be turned into a Cartridge.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("could not load ROM %q: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Cartridge is an immutable ROM image plus the header parsed out of it.
type Cartridge struct {
	data        []byte
	header      Header
	name        string
	fingerprint uint64

	// romBank is the bank visible at 0x4000-0x7FFF. Without a bank controller
	// it is always 1.
	romBank int
}

// New creates a cartridge from a ROM image. The data is copied.
func New(data []byte) (*Cartridge, error) {
	header, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}

	cart := &Cartridge{
		data:        make([]byte, len(data)),
		header:      header,
		fingerprint: xxhash.Sum64(data),
		romBank:     1,
	}
	copy(cart.data, data)

	return cart, nil
}

// Load reads the ROM image at path (optionally compressed, see ReadImage) and
// parses its header.
func Load(path string) (*Cartridge, error) {
	data, err := ReadImage(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	cart, err := New(data)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	cart.name = filepath.Base(path)

	slog.Info("Loaded cartridge",
		"file", cart.name,
		"bytes", len(data),
		"title", cart.Title(),
		"type", cart.header.Type.String(),
		"fingerprint", fmt.Sprintf("%016x", cart.fingerprint))

	if len(data) < cart.header.ROMSize() {
		slog.Warn("ROM image is smaller than its header declares",
			"bytes", len(data), "declared", cart.header.ROMSize())
	}

	return cart, nil
}

// Read returns the byte visible at a cartridge ROM address. Reads outside the
// image return 0xFF, like an open bus.
func (c *Cartridge) Read(address uint16) uint8 {
	var offset int

	switch {
	case address <= addr.ROM0End:
		offset = int(address)
	case address <= addr.ROMXEnd:
		bank := c.romBank % c.header.ROMBanks()
		offset = bank*addr.ROMBankSize + int(address-addr.ROMXStart)
	default:
		return 0xFF
	}

	if offset >= len(c.data) {
		return 0xFF
	}
	return c.data[offset]
}

// Write is accepted and ignored: ROM is read-only and there is no bank
// controller to react to the write.
func (c *Cartridge) Write(address uint16, value uint8) {}

// Header returns the parsed header.
func (c *Cartridge) Header() Header {
	return c.header
}

// Title returns the header title, cleaned up for display.
func (c *Cartridge) Title() string {
	return cleanTitle(c.header.Title)
}

// Name returns the file name the cartridge was loaded from, if any.
func (c *Cartridge) Name() string {
	return c.name
}

// Size returns the size of the ROM image in bytes.
func (c *Cartridge) Size() int {
	return len(c.data)
}

// Fingerprint returns the xxhash of the raw image, handy to identify dumps.
func (c *Cartridge) Fingerprint() uint64 {
	return c.fingerprint
}

// VerifyChecksums checks the stored header and global checksums.
func (c *Cartridge) VerifyChecksums() error {
	return Verify(c.data, c.header)
}
