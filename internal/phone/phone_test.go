package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"4087017037", "(408) 701-7037"},
		{"14087017037", "(408) 701-7037"},
		{"+1 (408) 701-7037", "(408) 701-7037"},
		{"408-701-7037", "(408) 701-7037"},
		{"701-7037", "701-7037"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Display(tt.in), tt.in)
	}
}

func TestE164(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"(408) 701-7037", "+14087017037"},
		{"4087017037", "+14087017037"},
		{"1-408-701-7037", "+14087017037"},
		{"+14087017037", "+14087017037"},
		{"+44 20 7946 0958", "+442079460958"},
		{"  ", ""},
		{"n/a", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, E164(tt.in), tt.in)
	}
}
