package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(*Task) (any, error) { return nil, nil }

func TestNewHandler(t *testing.T) {
	tests := []struct {
		name string
		decl string
		want []HandlerTag
	}{
		{
			name: "bare attributes are required",
			decl: "user name",
			want: []HandlerTag{
				{Attr: "user", IsRequired: true},
				{Attr: "name", IsRequired: true},
			},
		},
		{
			name: "parameter and optional",
			decl: "user $id email?",
			want: []HandlerTag{
				{Attr: "user", IsRequired: true},
				{Attr: "id", IsRequired: true, RequiresValue: true, IsParameter: true},
				{Attr: "email", IsRequired: false},
			},
		},
		{
			name: "outputs",
			decl: "user $id -> name email",
			want: []HandlerTag{
				{Attr: "user", IsRequired: true},
				{Attr: "id", IsRequired: true, RequiresValue: true, IsParameter: true},
				{Attr: "name", IsOutput: true},
				{Attr: "email", IsOutput: true},
			},
		},
		{
			name: "modifiers",
			decl: "cmd arg(positional) n(integer optional)",
			want: []HandlerTag{
				{Attr: "cmd", IsRequired: true},
				{Attr: "arg", IsRequired: true, IsPositional: true},
				{Attr: "n", RequiresValue: true, ExpectedType: TypeInteger},
			},
		},
		{
			name: "task is never required",
			decl: "task ping",
			want: []HandlerTag{
				{Attr: "task"},
				{Attr: "ping", IsRequired: true},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHandler(tt.decl, noop)
			require.NoError(t, err)
			assert.Equal(t, tt.want, h.Tags())
			assert.Equal(t, tt.decl, h.Decl())
		})
	}
}

func TestNewHandlerErrors(t *testing.T) {
	tests := []struct {
		name string
		decl string
		want string
	}{
		{"empty", "", "empty declaration"},
		{"duplicate", "a a", `duplicate attribute "a"`},
		{"unknown modifier", "a(sometimes)", `unknown modifier "sometimes"`},
		{"literal input", "a=1", "expected modifiers in parentheses"},
		{"flag", "--verbose", "invalid input"},
		{"output with value", "a -> b=1", "invalid output"},
		{"syntax", "a(", "unclosed '('"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHandler(tt.decl, noop)
			require.Error(t, err)
			var declErr *DeclError
			require.ErrorAs(t, err, &declErr)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewHandlerNilCallback(t *testing.T) {
	_, err := NewHandler("a", nil)
	require.Error(t, err)
	assert.Panics(t, func() { MustHandler("a", nil) })
}

func TestHandlerLookup(t *testing.T) {
	h := MustHandler("b a -> c", noop)

	tag, ok := h.Tag("a")
	require.True(t, ok)
	assert.Equal(t, "a", tag.Attr)

	tag, ok = h.TagAt(2)
	require.True(t, ok)
	assert.Equal(t, "c", tag.Attr)

	_, ok = h.TagAt(3)
	assert.False(t, ok)
	assert.Equal(t, []string{"a", "b", "c"}, h.Attrs())
}
