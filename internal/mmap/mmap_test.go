package mmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapAnon(t *testing.T) {
	m, err := MapAnon(4096)
	require.NoError(t, err)

	data := m.Bytes()
	require.Len(t, data, 4096)
	assert.Equal(t, 4096, m.Size())

	for i := range data {
		if data[i] != 0 {
			t.Fatalf("byte %d not zero", i)
		}
	}

	copy(data, "relation")
	assert.Equal(t, "relation", string(m.Bytes()[:8]))

	require.NoError(t, m.Close())
	assert.Nil(t, m.Bytes())

	// Idempotent
	require.NoError(t, m.Close())
}

func TestMapAnon_InvalidSize(t *testing.T) {
	_, err := MapAnon(0)
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = MapAnon(-1)
	assert.ErrorIs(t, err, ErrInvalidSize)
}
