package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanCompletion(t *testing.T) {
	prompt := "Some instruction\n\nUser Question: q\n\nAssistant:"

	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{
			name:     "plain completion",
			raw:      "Ketamine infusions are supervised.",
			expected: "Ketamine infusions are supervised.",
		},
		{
			name:     "echoed prompt stripped",
			raw:      prompt + " Ketamine infusions are supervised.",
			expected: "Ketamine infusions are supervised.",
		},
		{
			name:     "leading cue stripped",
			raw:      "Assistant: Ketamine infusions are supervised.",
			expected: "Ketamine infusions are supervised.",
		},
		{
			name:     "cue in the body is preserved",
			raw:      "Ask your care team. Assistant: is just a label here.",
			expected: "Ask your care team. Assistant: is just a label here.",
		},
		{
			name:     "stop marker removed",
			raw:      "Supervised infusions.</s>",
			expected: "Supervised infusions.",
		},
		{
			name:     "surrounding whitespace trimmed",
			raw:      "  \n An answer. \n ",
			expected: "An answer.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanCompletion(prompt, tt.raw))
		})
	}
}
