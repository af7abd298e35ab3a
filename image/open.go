package image

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseRawRangeSpec parses a "RAW:<begin>:<end>" spec string (§4.4,
// §6) into its begin/end LBA bounds.
func ParseRawRangeSpec(spec string) (begin, end uint32, err error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 3 || parts[0] != "RAW" {
		return 0, 0, fmt.Errorf("image: malformed raw range spec %q", spec)
	}

	b, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("image: raw range begin: %w", err)
	}

	e, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("image: raw range end: %w", err)
	}

	if e <= b {
		return 0, 0, fmt.Errorf("image: raw range end %d must exceed begin %d", e, b)
	}

	return uint32(b), uint32(e), nil
}

// IsRawRangeSpec reports whether spec names a raw partition rather
// than a filename or "ROM:".
func IsRawRangeSpec(spec string) bool {
	return strings.HasPrefix(spec, "RAW:")
}

// IsRomSpec reports whether spec names the single MCU-flash ROM region.
func IsRomSpec(spec string) bool {
	return spec == "ROM:"
}
