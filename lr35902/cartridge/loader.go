package cartridge

import (
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
)

var errEmptyArchive = errors.New("archive contains no ROM image")

// ReadImage reads a ROM image from disk. Files ending in .gz, .zip or .7z are
// decompressed; for archives the first .gb/.gbc entry (or the first file) is used.
func ReadImage(path string) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return readGzip(path)
	case ".zip":
		return readZip(path)
	case ".7z":
		return read7z(path)
	default:
		return os.ReadFile(path)
	}
}

func readGzip(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	defer r.Close()

	return io.ReadAll(r)
}

func readZip(path string) ([]byte, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("zip: %w", err)
	}
	defer r.Close()

	infos := make([]fs.FileInfo, len(r.File))
	for i, f := range r.File {
		infos[i] = f.FileInfo()
	}

	idx := pickEntry(infos)
	if idx < 0 {
		return nil, errEmptyArchive
	}

	return readEntry(r.File[idx].Open)
}

func read7z(path string) ([]byte, error) {
	r, err := sevenzip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("7z: %w", err)
	}
	defer r.Close()

	infos := make([]fs.FileInfo, len(r.File))
	for i, f := range r.File {
		infos[i] = f.FileInfo()
	}

	idx := pickEntry(infos)
	if idx < 0 {
		return nil, errEmptyArchive
	}

	return readEntry(r.File[idx].Open)
}

func readEntry(open func() (io.ReadCloser, error)) ([]byte, error) {
	rc, err := open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

// pickEntry returns the index of the archive entry to load, -1 if there is none.
func pickEntry(entries []fs.FileInfo) int {
	first := -1
	for i, info := range entries {
		if info.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(info.Name())) {
		case ".gb", ".gbc":
			return i
		}
		if first < 0 {
			first = i
		}
	}
	return first
}
