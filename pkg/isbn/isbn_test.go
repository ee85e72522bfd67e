package isbn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		value    string
		expected string
	}{
		{"978-0-316-76948-8", "9780316769488"},
		{"0-316-76948-7", "0316769487"},
		{"978 0 316 76948 8", "9780316769488"},
		{"ISBN: 9780316769488", "9780316769488"},
		{"ISBN-13 978-0-316-76948-8", "9780316769488"},
		{"080442957x", "080442957X"},
		{"  ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.value))
		})
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		value    string
		expected bool
	}{
		{"0316769487", true},
		{"080442957X", true},
		{"0451524934", true},
		{"0316769488", false},
		{"9780316769488", true},
		{"9780804429573", true},
		{"9780316769489", false},
		{"978031676948", false},
		{"97803167694888", false},
		{"X316769487", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.expected, Valid(tt.value))
		})
	}
}
