package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateCapacity(t *testing.T) {
	tests := []struct {
		n, limit int64
		want     int
	}{
		{0, 0, minBufferSize},
		{-1, 0, minBufferSize},
		{10, 0, minBufferSize},
		{100, 0, 110},
		{101, 0, 112},
		{1000, 500, 500},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EstimateCapacity(tt.n, tt.limit), "n=%d limit=%d", tt.n, tt.limit)
	}
}

func TestBufferGrowsPastEstimate(t *testing.T) {
	b := NewBuffer(64, 0)
	chunk := make([]byte, 50)
	for i := 0; i < 10; i++ {
		_, err := b.Write(chunk)
		require.NoError(t, err)
	}
	assert.Equal(t, 500, b.Len())
	assert.Greater(t, b.Grows(), 0)
	assert.GreaterOrEqual(t, b.Cap(), 500)
}

func TestBufferLimit(t *testing.T) {
	b := NewBuffer(16, 100)
	_, err := b.Write(make([]byte, 100))
	require.NoError(t, err)

	_, err = b.Write([]byte{1})
	assert.ErrorIs(t, err, ErrOutOfMemory)
	assert.Equal(t, 100, b.Len(), "failed write must not change contents")
}

func TestBufferDetachShrinksToFit(t *testing.T) {
	b := NewBuffer(4096, 0)
	_, err := b.Write([]byte("hello"))
	require.NoError(t, err)

	out := b.Detach()
	assert.Equal(t, []byte("hello"), out)
	assert.Equal(t, 5, cap(out))
	assert.Equal(t, 0, b.Len())
}
