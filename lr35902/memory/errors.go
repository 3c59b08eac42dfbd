package memory

import (
	"errors"
	"fmt"
)

// ErrRegionNotImplemented is the cause of every AccessError: the address falls
// in a region that has no backing storage yet.
var ErrRegionNotImplemented = errors.New("memory region not implemented")

// ErrInvalidMapping is returned by Attach for ranges outside the I/O page or
// overlapping an existing device.
var ErrInvalidMapping = errors.New("invalid device mapping")

// AccessError describes a bus access that hit an unbacked region.
type AccessError struct {
	Address uint16
	Region  Region
	Write   bool
	Value   uint8
}

func (e *AccessError) Error() string {
	if e.Write {
		return fmt.Sprintf("write 0x%02X to 0x%04X (%s): %v", e.Value, e.Address, e.Region, ErrRegionNotImplemented)
	}
	return fmt.Sprintf("read from 0x%04X (%s): %v", e.Address, e.Region, ErrRegionNotImplemented)
}

func (e *AccessError) Unwrap() error {
	return ErrRegionNotImplemented
}
