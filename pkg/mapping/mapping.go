package mapping

import (
	"errors"
	"fmt"
)

// BytesPerPixel is the size of one RGB triplet.
const BytesPerPixel = 3

// MaxPixels bounds every source and target index. It is the largest strip
// DNRGB can address: chunks of 489 pixels whose last offset fits 16 bits.
const MaxPixels = (0xFFFF/489 + 1) * 489

// Mapping errors. Callers check them with errors.Is.
var (
	// ErrEmptyMappingSet is returned when a device has no mappings.
	ErrEmptyMappingSet = errors.New("mapping: there has to be at least one mapping per device")

	// ErrOverlappingTargetRanges is returned when two mappings write the same target pixel.
	ErrOverlappingTargetRanges = errors.New("mapping: overlapping target ranges are not allowed")

	// ErrInvalidMapping is returned for negative indexes or lengths, and for
	// runs that end past MaxPixels.
	ErrInvalidMapping = errors.New("mapping: invalid mapping")

	// ErrSourceRangeOutOfBounds is returned when a mapping reads past the end of the source frame.
	ErrSourceRangeOutOfBounds = errors.New("mapping: source range out of bounds")

	// ErrTargetRangeOutOfBounds is returned when a mapping writes outside the target window.
	ErrTargetRangeOutOfBounds = errors.New("mapping: target range out of bounds")
)

// Mapping copies Length source pixels starting at SourceStart to the target
// pixels starting at TargetStart. With Reverse set, the run is placed
// back-to-front on the target side; the source is always read forward.
type Mapping struct {
	SourceStart int
	TargetStart int

	// Length is the pixel count. Zero means 1.
	Length int

	Reverse bool
}

// Len returns the effective pixel count of the mapping.
func (m Mapping) Len() int {
	if m.Length == 0 {
		return 1
	}
	return m.Length
}

// TargetEnd returns the first target index after the mapping's run.
func (m Mapping) TargetEnd() int {
	return m.TargetStart + m.Len()
}

// SourceEnd returns the first source index after the mapping's run.
func (m Mapping) SourceEnd() int {
	return m.SourceStart + m.Len()
}

// TargetIndex returns the target pixel that receives source pixel
// SourceStart+i, for i in [0, Len()).
func TargetIndex(m Mapping, i int) int {
	if m.Reverse {
		return m.TargetStart + m.Len() - 1 - i
	}
	return m.TargetStart + i
}

func (m Mapping) String() string {
	dir := "forward"
	if m.Reverse {
		dir = "reverse"
	}
	return fmt.Sprintf("src[%d,%d) -> dst[%d,%d) %s",
		m.SourceStart, m.SourceEnd(), m.TargetStart, m.TargetEnd(), dir)
}

func (m Mapping) validate() error {
	if m.SourceStart < 0 || m.TargetStart < 0 || m.Length < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidMapping, m)
	}
	// Compare without adding so huge values cannot wrap.
	n := m.Len()
	if n > MaxPixels || m.SourceStart > MaxPixels-n || m.TargetStart > MaxPixels-n {
		return fmt.Errorf("%w: start=%d/%d length=%d exceeds %d pixels",
			ErrInvalidMapping, m.SourceStart, m.TargetStart, n, MaxPixels)
	}
	return nil
}
