package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureSentence(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"  ", ""},
		{"Gravity pulls", "Gravity pulls."},
		{"Gravity pulls.", "Gravity pulls."},
		{"Is it heavy?", "Is it heavy?"},
		{`He said "fall."`, `He said "fall."`},
		{"Consider this:", "Consider this."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EnsureSentence(tt.in), "input %q", tt.in)
	}
}

func TestJoinNarration(t *testing.T) {
	got := JoinNarration([]string{"First we draw a triangle", "", "Then we square each side!"})
	assert.Equal(t, "First we draw a triangle. Then we square each side!", got)
}
