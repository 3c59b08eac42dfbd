// Package cartridgetest builds synthetic ROM images for tests.
package cartridgetest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/valerio/go-lr35902/lr35902/cartridge"
)

// Logo is the boot logo every licensed cartridge carries at 0x0104.
var Logo = [48]byte{
	0xCE, 0xED, 0x66, 0x66, 0xCC, 0x0D, 0x00, 0x0B, 0x03, 0x73, 0x00, 0x83,
	0x00, 0x0C, 0x00, 0x0D, 0x00, 0x08, 0x11, 0x1F, 0x88, 0x89, 0x00, 0x0E,
	0xDC, 0xCC, 0x6E, 0xE6, 0xDD, 0xDD, 0xD9, 0x99, 0xBB, 0xBB, 0x67, 0x63,
	0x6E, 0x0E, 0xEC, 0xCC, 0xDD, 0xDC, 0x99, 0x9F, 0xBB, 0xB9, 0x33, 0x3E,
}

// Image returns a ROM-only image of the given size with a well formed header:
// entry point "NOP; JP 0x0150", the boot logo, the title and valid checksums.
// Sizes below 32KiB are rounded up.
func Image(title string, size int) []byte {
	if size < 0x8000 {
		size = 0x8000
	}
	data := make([]byte, size)

	copy(data[0x100:], []byte{0x00, 0xC3, 0x50, 0x01})
	copy(data[0x104:], Logo[:])
	copy(data[0x134:0x144], title)
	data[0x147] = byte(cartridge.ROM)
	data[0x148] = sizeCode(size)
	data[0x14A] = 0x01

	Fix(data)
	return data
}

// Program returns an image whose bytes at origin are replaced by code.
func Program(size int, origin uint16, code ...byte) []byte {
	data := Image("TEST", size)
	copy(data[origin:], code)
	Fix(data)
	return data
}

// Fix recomputes both checksums after the image has been modified.
func Fix(data []byte) {
	data[0x14D] = cartridge.ComputeHeaderChecksum(data)
	data[0x14E], data[0x14F] = 0, 0
	global := cartridge.ComputeGlobalChecksum(data)
	data[0x14E] = byte(global >> 8)
	data[0x14F] = byte(global)
}

// Cartridge wraps data in a cartridge, failing the test on error.
func Cartridge(t testing.TB, data []byte) *cartridge.Cartridge {
	t.Helper()
	cart, err := cartridge.New(data)
	require.NoError(t, err)
	return cart
}

// WriteFile stores data in a temporary file named name and returns its path.
func WriteFile(t testing.TB, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func sizeCode(size int) byte {
	code := byte(0)
	for banks := 2; banks*0x4000 < size && code < 8; banks <<= 1 {
		code++
	}
	return code
}
