package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScrapeErrorMessage(t *testing.T) {
	err := NewNetwork("locationiq", "request failed", stderrors.New("timeout"))
	assert.Equal(t, "[network] locationiq: request failed - timeout", err.Error())

	err = NewValidation("geocoder", "outside UK")
	assert.Equal(t, "[validation] geocoder: outside UK", err.Error())
}

func TestTypeOfWrapped(t *testing.T) {
	inner := NewAuth("locationiq", 401)
	wrapped := fmt.Errorf("geocode %q: %w", "London", inner)

	assert.Equal(t, ErrorTypeAuth, TypeOf(wrapped))
	assert.True(t, Is(wrapped, ErrorTypeAuth))
	assert.False(t, Is(wrapped, ErrorTypeNetwork))
	assert.Equal(t, ErrorType(""), TypeOf(stderrors.New("plain")))
}

func TestCacheError(t *testing.T) {
	err := NewCache("geocode", "read failed", stderrors.New("connection reset"))
	assert.True(t, Is(err, ErrorTypeCache))
	assert.Equal(t, "[cache] geocode: read failed - connection reset", err.Error())
}

func TestRateLimitMessage(t *testing.T) {
	assert.Equal(t, "rate limited", NewRateLimit("nominatim", "").Message)
	assert.Equal(t, "rate limited; retry after 30", NewRateLimit("nominatim", "30").Message)
}

func TestUnwrap(t *testing.T) {
	base := stderrors.New("connection refused")
	err := NewDatabase("mysql", "ping failed", base)
	assert.ErrorIs(t, err, base)
}
