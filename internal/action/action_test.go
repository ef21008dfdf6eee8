package action

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundtrip(t *testing.T) {
	cases := []Action{
		{Kind: SelectYear, Token: "aB3xK9pQr0"},
		{Kind: SelectCategory, Token: "zzzzzzzzzz"},
		{Kind: SelectCourse, Token: "t"},
		{Kind: SelectSubcourse, Token: "0123456789"},
		{Kind: GoMenu},
		{Kind: GoBack},
	}

	for _, want := range cases {
		t.Run(want.Kind.String(), func(t *testing.T) {
			data, err := Encode(want)
			require.NoError(t, err)
			assert.Equal(t, want, Decode(data))
		})
	}
}

func TestEncodeBounds(t *testing.T) {
	t.Run("typical token stays small", func(t *testing.T) {
		data, err := Encode(Action{Kind: SelectCourse, Token: "aB3xK9pQr0"})
		require.NoError(t, err)
		assert.LessOrEqual(t, len(data), MaxPayload)
	})

	t.Run("oversized token rejected", func(t *testing.T) {
		_, err := Encode(Action{Kind: SelectYear, Token: strings.Repeat("x", MaxPayload)})
		assert.Error(t, err)
	})

	t.Run("unknown kind rejected", func(t *testing.T) {
		_, err := Encode(Action{Kind: Unknown})
		assert.Error(t, err)
	})
}

func TestDecodeUnknown(t *testing.T) {
	for _, data := range []string{"", "y", "y|", "x|tok", "menu|extra", "||"} {
		t.Run(data, func(t *testing.T) {
			assert.Equal(t, Unknown, Decode(data).Kind)
		})
	}
}

func TestKindForDepth(t *testing.T) {
	assert.Equal(t, SelectYear, KindForDepth(0))
	assert.Equal(t, SelectCategory, KindForDepth(1))
	assert.Equal(t, SelectCourse, KindForDepth(2))
	assert.Equal(t, SelectSubcourse, KindForDepth(3))
	assert.Equal(t, SelectSubcourse, KindForDepth(4))
	assert.Equal(t, SelectSubcourse, KindForDepth(5))
	assert.Equal(t, Unknown, KindForDepth(-1))
}
