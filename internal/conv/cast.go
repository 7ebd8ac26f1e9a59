package conv

import (
	"fmt"
	"math"
)

// OverflowError reports a value that does not fit the target type.
type OverflowError struct {
	Value  int
	Target string
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("integer overflow: %d cannot be converted to %s", e.Value, e.Target)
}

// IntToUint32 converts int to uint32 safely.
func IntToUint32(v int) (uint32, error) {
	// On 32-bit platforms the upper bound never triggers.
	if v < 0 || uint64(v) > math.MaxUint32 {
		return 0, &OverflowError{Value: v, Target: "uint32"}
	}
	return uint32(v), nil
}

// IntToUint16 converts int to uint16 safely.
func IntToUint16(v int) (uint16, error) {
	if v < 0 || v > math.MaxUint16 {
		return 0, &OverflowError{Value: v, Target: "uint16"}
	}
	return uint16(v), nil
}
