package query

import (
	"math/rand"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripCanonicalForms(t *testing.T) {
	inputs := []string{
		"a",
		"a b c",
		"a=v",
		"a=123",
		"a=-7",
		"a=007",
		"a=-0",
		`a="a b"`,
		`a="123"`,
		`a=""`,
		`a="say \"hi\""`,
		"a(b c)",
		"a(b(c=1) d?)",
		"a?",
		"a?=x",
		"$a",
		"$a?",
		"a=$p",
		"a=*",
		"--flag",
		"(x y) z",
		"get user $id -> name",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			if strings.Contains(input, "->") {
				in, out, err := ParseSignature(input)
				require.NoError(t, err)
				assert.Equal(t, input, in.String()+" -> "+out.String())
				return
			}
			q, err := Parse(input)
			require.NoError(t, err)
			assert.Equal(t, input, q.String())
		})
	}
}

// TestRoundTripProperty generates random canonical tag trees and checks
// print(parse(text)) == text.
func TestRoundTripProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		text := randomQuery(rng, 0).String()
		q, err := Parse(text)
		require.NoError(t, err, "input %q", text)
		require.Equal(t, text, q.String(), "input %q", text)
	}
}

// TestRoundTripStructure checks that a random tree survives print then parse
// structurally.
func TestRoundTripStructure(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		want := randomQuery(rng, 0)
		got, err := Parse(want.String())
		require.NoError(t, err)
		require.Equal(t, want.String(), got.String())
		require.Equal(t, want.Len(), got.Len())
	}
}

var (
	attrAlphabet  = []string{"a", "b", "id", "user", "name", "group_by", "x.y", "p/q", "e@f", "k-1"}
	valueAlphabet = []string{"v", "bob", "a b", "12", "-3x", "", "with\"quote", "tab\there", "--dash", "a->b", "1.5", "é"}
)

func randomQuery(rng *rand.Rand, depth int) *Query {
	n := 1 + rng.Intn(4)
	tags := make([]QueryTag, 0, n)
	for i := 0; i < n; i++ {
		tags = append(tags, randomTag(rng, depth))
	}
	return New(tags...)
}

func randomTag(rng *rand.Rand, depth int) QueryTag {
	attr := attrAlphabet[rng.Intn(len(attrAlphabet))]
	optional := rng.Intn(4) == 0

	switch rng.Intn(8) {
	case 0:
		return QueryTag{Attr: attr, Optional: optional}
	case 1:
		return QueryTag{Attr: attr, Optional: optional, Value: StringValue(valueAlphabet[rng.Intn(len(valueAlphabet))])}
	case 2:
		return QueryTag{Attr: attr, Optional: optional, Value: IntValue(rng.Int63n(2000) - 1000)}
	case 3:
		return QueryTag{Attr: attr, Optional: optional, IsParameter: true, ParamName: attr}
	case 4:
		return QueryTag{Attr: attr, Optional: optional, IsParameter: true, ParamName: "p" + strconv.Itoa(rng.Intn(9))}
	case 5:
		return QueryTag{Attr: attr, Optional: optional, Value: Star{}}
	case 6:
		return QueryTag{Attr: "f" + attr[:1], Value: BoolValue(true), IsFlag: true}
	default:
		if depth >= 2 {
			return QueryTag{Attr: attr}
		}
		return QueryTag{Attr: attr, Optional: optional, Value: randomQuery(rng, depth+1)}
	}
}

func TestQuoteIfNeeded(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"", `""`},
		{"12", `"12"`},
		{"007", "007"},
		{"a b", `"a b"`},
		{"--x", `"--x"`},
		{"a->b", `"a->b"`},
		{`q"`, `"q\""`},
		{"path/x.y", "path/x.y"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, QuoteIfNeeded(tt.in))
		})
	}
}
