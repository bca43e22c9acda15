package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryService(t *testing.T) {
	mc := NewMemoryService()

	_, err := mc.Get("missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, mc.Set("geo:london", []byte(`{"lat":51.5}`), 0))
	value, err := mc.Get("geo:london")
	require.NoError(t, err)
	assert.Equal(t, `{"lat":51.5}`, string(value))

	// Returned slices are copies
	value[0] = 'x'
	again, _ := mc.Get("geo:london")
	assert.Equal(t, byte('{'), again[0])

	require.NoError(t, mc.Delete("geo:london"))
	_, err = mc.Get("geo:london")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryServiceExpiry(t *testing.T) {
	mc := NewMemoryService()
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }

	require.NoError(t, mc.Set("k", []byte("v"), time.Minute))
	_, err := mc.Get("k")
	assert.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = mc.Get("k")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Empty(t, mc.items)
}
