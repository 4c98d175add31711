package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{
			name: "exact after normalization",
			a:    "  ויזה כאל ",
			b:    "ויזה כאל",
			want: 1.0,
		},
		{
			name: "containment scaled by length ratio",
			a:    "visa cal",
			b:    "cal",
			// 0.9 * 3/8
			want: 0.3375,
		},
		{
			name: "token overlap",
			a:    "bank hapoalim main",
			b:    "hapoalim bank",
			// 0.7 + 0.2 * 2/3
			want: 0.8333,
		},
		{
			name: "edit distance fallback",
			a:    "hapoalim",
			b:    "hapoalom",
			// 1 - 1/8
			want: 0.875,
		},
		{
			name: "edit distance below cutoff",
			a:    "abc",
			b:    "xyz",
			want: 0,
		},
		{
			name: "empty string",
			a:    "",
			b:    "anything",
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.a, tt.b), 0.001)
		})
	}
}

func TestSimilaritySymmetric(t *testing.T) {
	pairs := [][2]string{
		{"ויזה כאל", "כאל"},
		{"bank hapoalim main", "hapoalim bank"},
		{"hapoalim", "hapoalom"},
		{"visa cal", "cal"},
		{"abc", "xyz"},
	}

	for _, p := range pairs {
		assert.Equal(t, Similarity(p[0], p[1]), Similarity(p[1], p[0]),
			"similarity(%q, %q) should be symmetric", p[0], p[1])
	}
}
