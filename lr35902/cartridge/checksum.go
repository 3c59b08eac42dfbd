package cartridge

import (
	"errors"
	"fmt"
)

// ChecksumError reports a stored checksum that does not match the image contents.
type ChecksumError struct {
	Section  Section
	Stored   uint16
	Computed uint16
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%s mismatch: stored 0x%04X, computed 0x%04X", e.Section, e.Stored, e.Computed)
}

// ComputeHeaderChecksum computes the checksum over 0x0134-0x014C the way the
// boot ROM does. The image must be at least HeaderEnd bytes long.
func ComputeHeaderChecksum(data []byte) uint8 {
	var x uint8
	for _, b := range data[SectionTitle.Range().Start:SectionHeaderChecksum.Range().Start] {
		x = x - b - 1
	}
	return x
}

// ComputeGlobalChecksum sums every byte of the image except the two checksum bytes.
func ComputeGlobalChecksum(data []byte) uint16 {
	r := SectionGlobalChecksum.Range()

	var sum uint16
	for i, b := range data {
		if i >= r.Start && i <= r.End {
			continue
		}
		sum += uint16(b)
	}
	return sum
}

// Verify checks both header checksums against the image. All mismatches are
// reported, joined into a single error.
func Verify(data []byte, h Header) error {
	if len(data) < HeaderEnd {
		return ErrHeaderTooShort
	}

	var errs []error

	if computed := ComputeHeaderChecksum(data); computed != h.HeaderChecksum {
		errs = append(errs, &ChecksumError{
			Section:  SectionHeaderChecksum,
			Stored:   uint16(h.HeaderChecksum),
			Computed: uint16(computed),
		})
	}

	if computed := ComputeGlobalChecksum(data); computed != h.GlobalChecksum {
		errs = append(errs, &ChecksumError{
			Section:  SectionGlobalChecksum,
			Stored:   h.GlobalChecksum,
			Computed: computed,
		})
	}

	return errors.Join(errs...)
}
