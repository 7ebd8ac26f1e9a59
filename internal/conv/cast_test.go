//go:build amd64 || arm64

package conv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntToUint32(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want uint32
		ok   bool
	}{
		{"zero", 0, 0, true},
		{"positive", 123, 123, true},
		{"max", math.MaxUint32, math.MaxUint32, true},
		{"negative", -1, 0, false},
		{"too large", math.MaxUint32 + 1, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IntToUint32(tt.in)
			if !tt.ok {
				var oe *OverflowError
				require.ErrorAs(t, err, &oe)
				assert.Equal(t, tt.in, oe.Value)
				assert.Equal(t, "uint32", oe.Target)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIntToUint16(t *testing.T) {
	got, err := IntToUint16(math.MaxUint16)
	require.NoError(t, err)
	assert.Equal(t, uint16(math.MaxUint16), got)

	_, err = IntToUint16(math.MaxUint16 + 1)
	assert.EqualError(t, err, "integer overflow: 65536 cannot be converted to uint16")

	_, err = IntToUint16(-3)
	assert.Error(t, err)
}
