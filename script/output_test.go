package script

import (
	"math"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.starlark.net/starlark"
)

func TestTruncate(t *testing.T) {
	t.Run("UnderLimitUnchanged", func(t *testing.T) {
		out, truncated := Truncate("short", 100)
		assert.Equal(t, "short", out)
		assert.False(t, truncated)
	})

	t.Run("CutsAtRuneBoundary", func(t *testing.T) {
		out, truncated := Truncate(strings.Repeat("é", 10), 4)
		assert.True(t, truncated)
		assert.Equal(t, "éééé"+TruncationMarker, out)
	})

	t.Run("ZeroLimitUsesDefault", func(t *testing.T) {
		out, truncated := Truncate(strings.Repeat("x", DefaultOutputLimit+1), 0)
		assert.True(t, truncated)
		assert.Equal(t, DefaultOutputLimit+len(TruncationMarker), len(out))
	})
}

func TestFromStarlark(t *testing.T) {
	t.Run("NilIsAbsent", func(t *testing.T) {
		assert.Equal(t, KindAbsent, FromStarlark(nil, 0).Kind)
	})

	t.Run("NoneIsAbsent", func(t *testing.T) {
		assert.Equal(t, KindAbsent, FromStarlark(starlark.None, 0).Kind)
	})

	t.Run("SmallIntIsScalar", func(t *testing.T) {
		v := FromStarlark(starlark.MakeInt(42), 0)
		assert.Equal(t, KindScalar, v.Kind)
		assert.Equal(t, ScalarInt, v.ScalarType)
		assert.Equal(t, int64(42), v.IntVal)
	})

	t.Run("HugeIntFallsBackToText", func(t *testing.T) {
		huge := starlark.MakeBigInt(new(big.Int).Lsh(big.NewInt(1), 200))
		v := FromStarlark(huge, 0)
		assert.Equal(t, KindText, v.Kind)
		assert.NotEmpty(t, v.Text)
	})

	t.Run("InfinitiesBecomeText", func(t *testing.T) {
		pos := FromStarlark(starlark.Float(math.Inf(1)), 0)
		assert.Equal(t, KindText, pos.Kind)
		assert.Equal(t, "inf", pos.Text)

		neg := FromStarlark(starlark.Float(math.Inf(-1)), 0)
		assert.Equal(t, "-inf", neg.Text)
	})

	t.Run("BoolScalar", func(t *testing.T) {
		v := FromStarlark(starlark.Bool(true), 0)
		assert.Equal(t, ScalarBool, v.ScalarType)
		assert.True(t, v.BoolVal)
	})
}
