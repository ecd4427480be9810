package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryMatcher(t *testing.T) {
	m := NewCategoryMatcher([]string{"drowsy", "Head Drop", "yawn", "distracted", "YAWN"})

	assert.Equal(t, []string{"drowsy", "head drop", "yawn", "distracted"}, m.Categories())

	tests := []struct {
		name     string
		label    string
		expected string
		matched  bool
	}{
		{"exact", "drowsy", "drowsy", true},
		{"upper case", "DROWSY", "drowsy", true},
		{"mixed case with space", "Head Drop", "head drop", true},
		{"unknown label", "awake", "", false},
		// Only case is normalized.
		{"trailing space", "yawn ", "", false},
		{"underscore variant", "head_drop", "", false},
		{"hyphen variant", "head-drop", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.Match(tt.label)
			assert.Equal(t, tt.matched, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}
