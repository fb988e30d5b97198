package resilience

import (
	"fmt"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"marked transient", NewTransientError(eris.New("flaky upstream"), 0), true},
		{"wrapped transient", fmt.Errorf("call failed: %w", NewTransientError(eris.New("flaky"), 503)), true},
		{"rate limit text", eris.New("anthropic: rate limit exceeded"), true},
		{"overloaded text", eris.New("api overloaded, retry later"), true},
		{"http 429", eris.New("unexpected status 429"), true},
		{"http 502", eris.New("unexpected status 502"), true},
		{"http 503", eris.New("unexpected status 503"), true},
		{"http 504", eris.New("unexpected status 504"), true},
		{"connection reset", syscall.ECONNRESET, true},
		{"connection refused", syscall.ECONNREFUSED, true},
		{"dns failure", eris.New("dial tcp: no such host"), true},
		{"invalid api key", eris.New("invalid api key"), false},
		{"parse error", eris.New("generate: parse response array"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := eris.New("root cause")
	err := NewTransientError(inner, 429)

	assert.ErrorIs(t, err, inner)
	assert.Equal(t, 429, err.StatusCode)
	assert.Contains(t, err.Error(), "root cause")
}
