package tabular

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrame(t *testing.T) *Frame {
	t.Helper()
	age := &Column{Name: "Age", Kind: KindFloat, Floats: []float64{22, 38, 26, 0}}
	age.SetNull(3)
	frame, err := NewFrame(
		&Column{Name: "PassengerId", Kind: KindInt, Ints: []int64{1, 2, 3, 4}},
		&Column{Name: "Name", Kind: KindString, Strs: []string{"Braund, Mr. Owen", "Cumings, Mrs. John", "Heikkinen, Miss. Laina", "Allen, Mr. William"}},
		age,
		&Column{Name: "Survived", Kind: KindInt, Ints: []int64{0, 1, 1, 0}},
	)
	require.NoError(t, err)
	return frame
}

func TestNewFrame(t *testing.T) {
	t.Run("RejectsDuplicateNames", func(t *testing.T) {
		_, err := NewFrame(
			&Column{Name: "A", Kind: KindInt, Ints: []int64{1}},
			&Column{Name: "A", Kind: KindInt, Ints: []int64{2}},
		)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate column")
	})

	t.Run("RejectsLengthMismatch", func(t *testing.T) {
		_, err := NewFrame(
			&Column{Name: "A", Kind: KindInt, Ints: []int64{1, 2}},
			&Column{Name: "B", Kind: KindInt, Ints: []int64{3}},
		)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rows")
	})

	t.Run("Shape", func(t *testing.T) {
		frame := testFrame(t)
		assert.Equal(t, 4, frame.NumRows())
		assert.Equal(t, 4, frame.NumCols())
		assert.Equal(t, []string{"PassengerId", "Name", "Age", "Survived"}, frame.Columns())
	})
}

func TestSetColumn(t *testing.T) {
	t.Run("AppendsNewColumn", func(t *testing.T) {
		frame := testFrame(t)
		err := frame.SetColumn(&Column{Name: "Fare", Kind: KindFloat, Floats: []float64{7.25, 71.28, 7.92, 8.05}})
		require.NoError(t, err)
		assert.True(t, frame.Has("Fare"))
		assert.Equal(t, 5, frame.NumCols())
	})

	t.Run("ReplacesExisting", func(t *testing.T) {
		frame := testFrame(t)
		err := frame.SetColumn(&Column{Name: "Survived", Kind: KindBool, Bools: []bool{false, true, true, false}})
		require.NoError(t, err)
		col, ok := frame.Column("Survived")
		require.True(t, ok)
		assert.Equal(t, KindBool, col.Kind)
		assert.Equal(t, 4, frame.NumCols())
	})

	t.Run("RejectsWrongLength", func(t *testing.T) {
		frame := testFrame(t)
		err := frame.SetColumn(&Column{Name: "Bad", Kind: KindInt, Ints: []int64{1}})
		require.Error(t, err)
	})
}

func TestDropColumn(t *testing.T) {
	frame := testFrame(t)
	frame.DropColumn("Name")
	assert.False(t, frame.Has("Name"))
	assert.Equal(t, []string{"PassengerId", "Age", "Survived"}, frame.Columns())

	// Index must stay consistent after the shift
	col, ok := frame.Column("Survived")
	require.True(t, ok)
	assert.Equal(t, int64(1), col.Ints[1])
}

func TestCloneIsDeep(t *testing.T) {
	frame := testFrame(t)
	clone := frame.Clone()

	col, ok := clone.Column("Age")
	require.True(t, ok)
	col.Floats[0] = 99

	orig, _ := frame.Column("Age")
	assert.Equal(t, float64(22), orig.Floats[0])
}

func TestFingerprint(t *testing.T) {
	t.Run("StableAcrossClones", func(t *testing.T) {
		frame := testFrame(t)
		assert.Equal(t, frame.Fingerprint(), frame.Clone().Fingerprint())
	})

	t.Run("ChangesOnMutation", func(t *testing.T) {
		frame := testFrame(t)
		before := frame.Fingerprint()
		col, _ := frame.Column("Age")
		col.Floats[0] = 23
		assert.NotEqual(t, before, frame.Fingerprint())
	})
}

func TestFrameJSONRoundTrip(t *testing.T) {
	frame := testFrame(t)
	data, err := json.Marshal(frame)
	require.NoError(t, err)

	var decoded Frame
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, frame.Columns(), decoded.Columns())
	assert.Equal(t, frame.Fingerprint(), decoded.Fingerprint())

	age, ok := decoded.Column("Age")
	require.True(t, ok)
	assert.True(t, age.IsNull(3))
	assert.Equal(t, float64(38), age.Floats[1])
}

func TestCellAccess(t *testing.T) {
	frame := testFrame(t)
	age, _ := frame.Column("Age")

	assert.Equal(t, float64(22), age.At(0))
	assert.Nil(t, age.At(3))

	v, ok := age.AsFloat(1)
	assert.True(t, ok)
	assert.Equal(t, float64(38), v)

	_, ok = age.AsFloat(3)
	assert.False(t, ok)

	assert.Equal(t, "null", age.CellString(3))
	assert.Equal(t, "38", age.CellString(1))
}
