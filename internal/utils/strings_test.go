package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "single value",
			input:    "DOCUMENT_FAILED",
			expected: []string{"DOCUMENT_FAILED"},
		},
		{
			name:     "varied spacing",
			input:    "POLL_CYCLE_STARTED,  DOCUMENT_FAILED ",
			expected: []string{"POLL_CYCLE_STARTED", "DOCUMENT_FAILED"},
		},
		{
			name:     "empty entries dropped",
			input:    "a,,b, ,",
			expected: []string{"a", "b"},
		},
		{
			name:     "only separators",
			input:    " , , ",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseCSV(tt.input))
		})
	}
}
