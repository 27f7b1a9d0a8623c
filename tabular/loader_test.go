package tabular

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `PassengerId,Survived,Pclass,Name,Sex,Age,SibSp,Parch,Ticket,Fare,Cabin,Embarked
1,0,3,"Braund, Mr. Owen Harris",male,22,1,0,A/5 21171,7.25,,S
2,1,1,"Cumings, Mrs. John Bradley",female,38,1,0,PC 17599,71.2833,C85,C
3,1,3,"Heikkinen, Miss. Laina",female,26,0,0,STON/O2,7.925,,S
4,1,1,"Futrelle, Mrs. Jacques Heath",female,35,1,0,113803,53.1,C123,S
5,0,3,"Allen, Mr. William Henry",male,35,0,0,373450,8.05,,S
6,0,3,"Moran, Mr. James",male,,0,0,330877,8.4583,,Q
7,0,1,"McCarthy, Mr. Timothy J",male,54,0,0,17463,51.8625,E46,S
8,0,3,"Palsson, Master. Gosta Leonard",male,2,3,1,349909,21.075,,S
9,1,3,"Johnson, Dr. Oscar W",male,27,0,2,347742,11.1333,,S
10,1,2,"Nasser, Mrs. Nicholas",female,,1,0,237736,30.0708,,C
`

func writeSampleCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "titanic.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("TypeInference", func(t *testing.T) {
		frame, err := Load(writeSampleCSV(t), LoadOptions{})
		require.NoError(t, err)
		assert.Equal(t, 10, frame.NumRows())

		id, _ := frame.Column("PassengerId")
		assert.Equal(t, KindInt, id.Kind)

		age, _ := frame.Column("Age")
		assert.Equal(t, KindFloat, age.Kind)
		assert.Equal(t, 2, age.NullCount())

		name, _ := frame.Column("Name")
		assert.Equal(t, KindString, name.Kind)

		cabin, _ := frame.Column("Cabin")
		assert.Equal(t, 7, cabin.NullCount())
	})

	t.Run("IntColumnWithBlanksStaysInt", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.csv")
		require.NoError(t, os.WriteFile(path, []byte("A,B\n1,true\n,false\n3,\n"), 0o644))

		frame, err := Load(path, LoadOptions{})
		require.NoError(t, err)

		a, _ := frame.Column("A")
		assert.Equal(t, KindInt, a.Kind)
		assert.True(t, a.IsNull(1))

		b, _ := frame.Column("B")
		assert.Equal(t, KindBool, b.Kind)
		assert.True(t, b.IsNull(2))
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.csv"), LoadOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "open dataset")
	})
}

func TestLoadWithFeatures(t *testing.T) {
	frame, err := Load(writeSampleCSV(t), LoadOptions{
		EngineerFeatures: true,
		DropColumns:      []string{"Cabin", "Ticket"},
	})
	require.NoError(t, err)

	t.Run("LeakageColumnsDropped", func(t *testing.T) {
		assert.False(t, frame.Has("Cabin"))
		assert.False(t, frame.Has("Ticket"))
	})

	t.Run("Title", func(t *testing.T) {
		title, ok := frame.Column("Title")
		require.True(t, ok)
		assert.Equal(t, "Mr", title.Strs[0])
		assert.Equal(t, "Mrs", title.Strs[1])
		assert.Equal(t, "Miss", title.Strs[2])
		assert.Equal(t, "Master", title.Strs[7])
		assert.Equal(t, "Dr", title.Strs[8])
	})

	t.Run("FamilySize", func(t *testing.T) {
		fs, ok := frame.Column("FamilySize")
		require.True(t, ok)
		assert.Equal(t, int64(2), fs.Ints[0])  // 1 sibsp + 0 parch + self
		assert.Equal(t, int64(5), fs.Ints[7])  // 3 + 1 + self
	})

	t.Run("AgeGroup", func(t *testing.T) {
		ag, ok := frame.Column("AgeGroup")
		require.True(t, ok)
		assert.Equal(t, "YoungAdult", ag.Strs[0]) // 22
		assert.Equal(t, "Adult", ag.Strs[1])      // 38
		assert.Equal(t, "Unknown", ag.Strs[5])    // null age
		assert.Equal(t, "Child", ag.Strs[7])      // 2
	})

	t.Run("FareGroup", func(t *testing.T) {
		fg, ok := frame.Column("FareGroup")
		require.True(t, ok)
		assert.Equal(t, "Budget", fg.Strs[0])  // 7.25
		assert.Equal(t, "Comfort", fg.Strs[1]) // 71.28
		assert.Equal(t, "Economy", fg.Strs[7]) // 21.075
	})
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Braund, Mr. Owen Harris", "Mr"},
		{"Cumings, Mrs. John Bradley", "Mrs"},
		{"Palsson, Master. Gosta", "Master"},
		{"Rothes, the Countess. of", "Other"},
		{"No comma here", "Other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractTitle(tt.name), tt.name)
	}
}

func TestSchemaText(t *testing.T) {
	frame, err := Load(writeSampleCSV(t), LoadOptions{EngineerFeatures: true, DropColumns: []string{"Cabin", "Ticket"}})
	require.NoError(t, err)

	schema := frame.SchemaText()
	assert.Contains(t, schema, "Dataset Schema:")
	assert.Contains(t, schema, "Shape: 10 rows x 14 columns")
	assert.Contains(t, schema, "- Age (float, 2 nulls):")
	assert.Contains(t, schema, "- Title (string):")
}

func TestDescribe(t *testing.T) {
	frame, err := Load(writeSampleCSV(t), LoadOptions{})
	require.NoError(t, err)

	out := frame.Describe()
	assert.Contains(t, out, "mean")
	assert.Contains(t, out, "75%")
	assert.Contains(t, out, "Age")
	assert.NotContains(t, out, "Name") // non-numeric columns excluded

	empty, err := NewFrame(&Column{Name: "Label", Kind: KindString, Strs: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, "No numeric columns.", empty.Describe())
}
