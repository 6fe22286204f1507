package resilience

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsRateLimited(t *testing.T) {
	t.Parallel()

	assert.False(t, IsRateLimited(nil))
	assert.True(t, IsRateLimited(NewRateLimitError(errors.New("429"))))
	assert.True(t, IsRateLimited(eris.Wrap(NewRateLimitError(errors.New("429")), "sheets: append")))
	assert.True(t, IsRateLimited(NewTransientError(errors.New("too many"), 429)))
	assert.True(t, IsRateLimited(errors.New("googleapi: Error 429: Quota exceeded for quota metric")))
	assert.False(t, IsRateLimited(NewTransientError(errors.New("bad gateway"), 502)))
	assert.False(t, IsRateLimited(errors.New("permission denied")))
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(NewTransientError(errors.New("x"), 503)))
	assert.True(t, IsTransient(fmt.Errorf("wrapped: %w", NewTransientError(errors.New("x"), 500))))
	assert.True(t, IsTransient(NewRateLimitError(errors.New("quota"))))
	assert.True(t, IsTransient(fmt.Errorf("dial: %w", syscall.ECONNREFUSED)))
	assert.True(t, IsTransient(errors.New("read tcp: i/o timeout")))
	assert.False(t, IsTransient(errors.New("invalid argument")))
}

func TestClassifyHTTPStatus(t *testing.T) {
	t.Parallel()
	base := errors.New("status")

	var rl *RateLimitError
	assert.ErrorAs(t, ClassifyHTTPStatus(base, 429), &rl)

	var te *TransientError
	assert.ErrorAs(t, ClassifyHTTPStatus(base, 503), &te)
	assert.Equal(t, 503, te.StatusCode)

	assert.Same(t, base, ClassifyHTTPStatus(base, 400))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	t.Parallel()
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 400, 401, 403, 404} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
}
