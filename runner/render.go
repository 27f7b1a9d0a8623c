package runner

import (
	"strconv"

	"github.com/tablab/databox/script"
)

// NoResultText is the reply for a snippet that produced no result.
const NoResultText = "No result produced."

// Render turns an execution value into the final reply text. Tabular,
// row and text values arrive already rendered by the worker; only
// scalars need formatting here.
func Render(v script.Value) string {
	switch v.Kind {
	case script.KindScalar:
		switch v.ScalarType {
		case script.ScalarFloat:
			return strconv.FormatFloat(v.FloatVal, 'f', 2, 64)
		case script.ScalarInt:
			return strconv.FormatInt(v.IntVal, 10)
		case script.ScalarBool:
			if v.BoolVal {
				return "True"
			}
			return "False"
		}
	case script.KindTabular, script.KindRows, script.KindText:
		return v.Text
	}
	return NoResultText
}
