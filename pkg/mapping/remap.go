package mapping

import "fmt"

// Remap builds a zeroed target buffer of size pixels and copies every
// mapping of t into it. Unmapped pixels stay black.
func Remap(src []byte, t *Table, size int) ([]byte, error) {
	return RemapWindow(src, t, 0, size)
}

// RemapWindow is Remap for a target window that starts at pixel origin.
// Target pixel p is written to buffer index p-origin.
func RemapWindow(src []byte, t *Table, origin, size int) ([]byte, error) {
	if size < 0 || origin < 0 || size > MaxPixels {
		return nil, fmt.Errorf("%w: window origin=%d size=%d", ErrTargetRangeOutOfBounds, origin, size)
	}

	// Check every run first so a failing device never yields a half-filled buffer.
	pixels := len(src) / BytesPerPixel
	for _, m := range t.mappings {
		if m.SourceStart > pixels-m.Len() {
			return nil, fmt.Errorf("%w: %s, frame has %d pixels",
				ErrSourceRangeOutOfBounds, m, pixels)
		}
		if m.TargetStart < origin || m.TargetStart-origin > size-m.Len() {
			return nil, fmt.Errorf("%w: %s outside window [%d,%d)",
				ErrTargetRangeOutOfBounds, m, origin, origin+size)
		}
	}

	dst := make([]byte, size*BytesPerPixel)
	for _, m := range t.mappings {
		for i := 0; i < m.Len(); i++ {
			s := (m.SourceStart + i) * BytesPerPixel
			d := (TargetIndex(m, i) - origin) * BytesPerPixel
			copy(dst[d:d+BytesPerPixel], src[s:s+BytesPerPixel])
		}
	}
	return dst, nil
}
