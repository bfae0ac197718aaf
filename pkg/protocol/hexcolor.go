package protocol

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// hexTokenLen is the length of one "#rrggbb " token.
const hexTokenLen = 8

// EncodeHexColors renders every RGB triplet of pixels as "#rrggbb " in order.
// A trailing partial triplet is ignored.
func EncodeHexColors(pixels []byte) string {
	n := len(pixels) / 3
	var sb strings.Builder
	sb.Grow(n * hexTokenLen)
	token := [hexTokenLen]byte{'#', 7: ' '}
	for i := 0; i < n; i++ {
		hex.Encode(token[1:7], pixels[i*3:i*3+3])
		sb.Write(token[:])
	}
	return sb.String()
}

// Topic returns the channel name for a strip whose lowest target pixel is
// lowestTarget. LED numbering in the name starts at 1.
func Topic(prefix string, lowestTarget int) string {
	return fmt.Sprintf("%s/LED%d", prefix, lowestTarget+1)
}
