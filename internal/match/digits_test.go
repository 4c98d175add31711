package match

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clarify-app/settle/internal/catalog"
)

func TestExtractDigitSequences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "long run plus its last four",
			input: "ויזה כאל 123456",
			want:  []string{"123456", "3456"},
		},
		{
			name:  "exactly four digits",
			input: "max 1456",
			want:  []string{"1456"},
		},
		{
			name:  "short runs ignored",
			input: "visa 123",
			want:  nil,
		},
		{
			name:  "duplicates collapse",
			input: "5678 card 5678",
			want:  []string{"5678"},
		},
		{
			name:  "empty",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractDigitSequences(tt.input))
		})
	}
}

func TestAccountLast4(t *testing.T) {
	long := "12345678"
	short := "123"
	blank := "  "

	assert.Equal(t, "5678", AccountLast4(&long))
	assert.Equal(t, "123", AccountLast4(&short))
	assert.Equal(t, "", AccountLast4(&blank))
	assert.Equal(t, "", AccountLast4(nil))
}

func TestBuildMatchPatterns(t *testing.T) {
	matcher := NewMatcher(catalog.DefaultCatalog())

	account := "1234-5678"
	patterns := matcher.BuildMatchPatterns("visaCal", &account)

	assert.Equal(t, []string{"כ.א.ל", "cal", "ויזה כאל", "visa cal", "1234-5678", "5678"}, patterns)

	t.Run("nil account", func(t *testing.T) {
		assert.Equal(t, []string{"מקס", "max"}, matcher.BuildMatchPatterns("max", nil))
	})

	t.Run("unknown vendor without account", func(t *testing.T) {
		assert.Empty(t, matcher.BuildMatchPatterns("unknownCard", nil))
	})
}
