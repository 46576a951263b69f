package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queryStrings(qs []*Query) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.String()
	}
	return out
}

func TestParseFile(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "one per line",
			input: "a b\nc d\n",
			want:  []string{"a b", "c d"},
		},
		{
			name:  "indent continues",
			input: "get user\n  name\n  email\nlist users\n",
			want:  []string{"get user name email", "list users"},
		},
		{
			name:  "semicolons split",
			input: "a; b; c",
			want:  []string{"a", "b", "c"},
		},
		{
			name:  "comments skipped",
			input: "# header\na\n  # inline comment\n  b\n",
			want:  []string{"a b"},
		},
		{
			name:  "blank line splits even when indented",
			input: "  a\n\n    b\n",
			want:  []string{"a", "b"},
		},
		{
			name:  "dedent splits",
			input: "  a\n    b\n  c\n",
			want:  []string{"a b", "c"},
		},
		{
			name:  "parens span lines",
			input: "a(\n  b\nc\n)\nd",
			want:  []string{"a(b c)", "d"},
		},
		{
			name:  "empty",
			input: "\n# nothing\n\n",
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qs, err := ParseFile(tt.input)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, qs)
				return
			}
			assert.Equal(t, tt.want, queryStrings(qs))
		})
	}
}

func TestParseFileErrorLine(t *testing.T) {
	_, err := ParseFile("a\nb=\nc")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 2, perr.Line)
}
