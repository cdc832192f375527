package repchain

import (
	"errors"
	"fmt"
)

// Validation failures fall into exactly two categories. Both are caller
// errors: correct the input and re-invoke. A digest mismatch discovered
// during replay is not an error; it is reported in the ReplayResult.
var (
	// ErrInvalidLength reports a byte field whose length is outside its bounds.
	ErrInvalidLength = errors.New("repchain: invalid length")

	// ErrInvalidRange reports a numeric field outside its declared range.
	ErrInvalidRange = errors.New("repchain: value out of range")
)

// errExactLen reports a fixed-length field of the wrong size.
func errExactLen(field string, want, got int) error {
	return fmt.Errorf("%w: %s must be exactly %d bytes, got %d", ErrInvalidLength, field, want, got)
}

// errMaxLen reports a bounded variable-length field that is too long.
func errMaxLen(field string, max, got int) error {
	return fmt.Errorf("%w: %s must be at most %d bytes, got %d", ErrInvalidLength, field, max, got)
}

// errRange reports a numeric field outside [lo, hi].
func errRange(field string, lo, hi, got int) error {
	return fmt.Errorf("%w: %s must be in [%d, %d], got %d", ErrInvalidRange, field, lo, hi, got)
}
