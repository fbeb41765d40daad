package diff

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		tokens   Diff
		previous []string
		want     []string
		markup   string
	}{
		{
			name:     "copy between literals",
			tokens:   Diff{Lit("a"), CopyN(2), Lit("b")},
			previous: []string{"x", "y", "z"},
			want:     []string{"a", "x", "y", "b"},
			markup:   "a x y b",
		},
		{
			name:     "skip then literal",
			tokens:   Diff{SkipN(1), Lit("c")},
			previous: []string{"p", "q", "r"},
			want:     []string{"c"},
			markup:   "c",
		},
		{
			name:     "skip then copy",
			tokens:   Diff{SkipN(1), CopyN(2)},
			previous: []string{"p", "q", "r"},
			want:     []string{"q", "r"},
			markup:   "q r",
		},
		{
			name:     "first render",
			tokens:   Diff{Lit("<p>hi</p>")},
			previous: nil,
			want:     []string{"<p>hi</p>"},
			markup:   "<p>hi</p>",
		},
		{
			name:     "empty diff",
			tokens:   Diff{},
			previous: []string{"x"},
			want:     []string{},
			markup:   "",
		},
		{
			name:     "copy to exact end",
			tokens:   Diff{CopyN(3), CopyN(0)},
			previous: []string{"x", "y", "z"},
			want:     []string{"x", "y", "z"},
			markup:   "x y z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.tokens, tt.previous)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.markup, Reconstruct(got))
		})
	}
}

func TestDecodeLiteralsIgnorePrevious(t *testing.T) {
	literals := Diff{Lit("one"), Lit("two"), Lit("three")}
	for _, previous := range [][]string{nil, {"a"}, {"a", "b", "c", "d"}} {
		got, err := Decode(literals, previous)
		require.NoError(t, err)
		assert.Equal(t, []string{"one", "two", "three"}, got)
	}
}

func TestDecodeRangeViolations(t *testing.T) {
	tests := []struct {
		name   string
		tokens Diff
		index  int
		err    error
	}{
		{name: "copy past end", tokens: Diff{Lit("a"), CopyN(4)}, index: 1, err: ErrRangeExceeded},
		{name: "skip past end", tokens: Diff{CopyN(2), SkipN(2)}, index: 1, err: ErrRangeExceeded},
		{name: "negative count", tokens: Diff{{Kind: Copy, Count: -1}}, index: 0, err: ErrBadToken},
		{name: "unknown kind", tokens: Diff{{Kind: Kind(9)}}, index: 0, err: ErrBadToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			previous := []string{"x", "y", "z"}
			got, err := Decode(tt.tokens, previous)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.ErrorIs(t, err, tt.err)

			var violation *ProtocolViolation
			require.ErrorAs(t, err, &violation)
			assert.Equal(t, tt.index, violation.Index)
			assert.Equal(t, []string{"x", "y", "z"}, previous)
		})
	}
}

func TestUnmarshalWireTokens(t *testing.T) {
	var d Diff
	require.NoError(t, json.Unmarshal([]byte(`["<div>", 3, -2, "</div>", 0]`), &d))
	assert.Equal(t, Diff{Lit("<div>"), CopyN(3), SkipN(2), Lit("</div>"), CopyN(0)}, d)
}

func TestUnmarshalRejectsBadTokens(t *testing.T) {
	for _, payload := range []string{`[1.5]`, `[true]`, `[{"a":1}]`, `"text"`} {
		var d Diff
		err := json.Unmarshal([]byte(payload), &d)
		assert.Error(t, err, payload)
	}
}

func TestMarshalWireTokens(t *testing.T) {
	data, err := json.Marshal(Diff{Lit("a"), CopyN(2), SkipN(1)})
	require.NoError(t, err)
	assert.JSONEq(t, `["a", 2, -1]`, string(data))
}
