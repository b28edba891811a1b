package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsE164(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"+15551234567", true},
		{"+447700900123", true},
		{"+12345678", true},
		{"+123456789012345", true},
		{"+1234567", false},
		{"+1234567890123456", false},
		{"+05551234567", false},
		{"15551234567", false},
		{"+1 555 123 4567", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, IsE164(tt.in))
		})
	}
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "+15*******67", MaskPhone("+15551234567"))
	assert.Equal(t, "****", MaskPhone("+123"))
	assert.Equal(t, "", MaskPhone(""))
}
