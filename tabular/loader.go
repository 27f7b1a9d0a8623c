package tabular

import (
	"encoding/csv"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// LoadOptions controls CSV ingestion.
type LoadOptions struct {
	// EngineerFeatures adds the derived Title/AgeGroup/FareGroup/FamilySize
	// columns when their source columns are present.
	EngineerFeatures bool
	// DropColumns are removed after feature engineering (label-leakage or
	// free-text columns that snippets should not see).
	DropColumns []string
}

// Load reads a CSV file into a typed frame. The first record is the
// header; column types are inferred from the remaining cells (int widens
// to float widens to string; true/false cells become bool). Empty cells
// become nulls.
func Load(path string, opts LoadOptions) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("dataset %s is empty", path)
	}

	frame, err := fromRecords(records[0], records[1:])
	if err != nil {
		return nil, err
	}
	if opts.EngineerFeatures {
		engineerFeatures(frame)
	}
	for _, name := range opts.DropColumns {
		frame.DropColumn(name)
	}
	return frame, nil
}

func fromRecords(header []string, rows [][]string) (*Frame, error) {
	cols := make([]*Column, len(header))
	for j, name := range header {
		cells := make([]string, len(rows))
		for i, row := range rows {
			if j < len(row) {
				cells[i] = row[j]
			}
		}
		cols[j] = inferColumn(strings.TrimSpace(name), cells)
	}
	return NewFrame(cols...)
}

// inferColumn picks the narrowest kind that fits every non-empty cell.
func inferColumn(name string, cells []string) *Column {
	isInt, isFloat, isBool := true, true, true
	nonEmpty := 0
	for _, cell := range cells {
		v := strings.TrimSpace(cell)
		if v == "" {
			continue
		}
		nonEmpty++
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			isInt = false
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			isFloat = false
		}
		switch strings.ToLower(v) {
		case "true", "false":
		default:
			isBool = false
		}
	}

	kind := KindString
	switch {
	case nonEmpty == 0:
		kind = KindString
	case isInt:
		kind = KindInt
	case isFloat:
		kind = KindFloat
	case isBool:
		kind = KindBool
	}

	col := &Column{Name: name, Kind: kind}
	switch kind {
	case KindInt:
		col.Ints = make([]int64, len(cells))
	case KindFloat:
		col.Floats = make([]float64, len(cells))
	case KindBool:
		col.Bools = make([]bool, len(cells))
	default:
		col.Strs = make([]string, len(cells))
	}
	for i, cell := range cells {
		v := strings.TrimSpace(cell)
		if v == "" {
			col.SetNull(i)
			continue
		}
		switch kind {
		case KindInt:
			col.Ints[i], _ = strconv.ParseInt(v, 10, 64)
		case KindFloat:
			col.Floats[i], _ = strconv.ParseFloat(v, 64)
		case KindBool:
			col.Bools[i] = strings.EqualFold(v, "true")
		default:
			col.Strs[i] = v
		}
	}
	return col
}

var titlePattern = regexp.MustCompile(`,\s*(\w+)\.`)

var keptTitles = map[string]bool{
	"Mr": true, "Mrs": true, "Miss": true, "Master": true, "Dr": true,
}

// ExtractTitle pulls the personal title out of a "Surname, Title. Given"
// name. Titles outside the common set collapse to "Other".
func ExtractTitle(name string) string {
	m := titlePattern.FindStringSubmatch(name)
	if m == nil {
		return "Other"
	}
	if keptTitles[m[1]] {
		return m[1]
	}
	return "Other"
}

// AssignAgeGroup bins an age into Child(<13), Teen(<18), YoungAdult(≤30),
// Adult(≤60) or Senior.
func AssignAgeGroup(age float64) string {
	switch {
	case age < 13:
		return "Child"
	case age < 18:
		return "Teen"
	case age <= 30:
		return "YoungAdult"
	case age <= 60:
		return "Adult"
	default:
		return "Senior"
	}
}

// AssignFareGroup bins a fare into Budget(<8), Economy(≤30), Comfort(≤100)
// or Luxury.
func AssignFareGroup(fare float64) string {
	switch {
	case fare < 8:
		return "Budget"
	case fare <= 30:
		return "Economy"
	case fare <= 100:
		return "Comfort"
	default:
		return "Luxury"
	}
}

// engineerFeatures adds the derived columns when their sources exist.
// Runs before leakage columns are dropped so Title can read Name.
func engineerFeatures(f *Frame) {
	n := f.NumRows()

	if name, ok := f.Column("Name"); ok && name.Kind == KindString {
		titles := make([]string, n)
		for i := 0; i < n; i++ {
			if name.IsNull(i) {
				titles[i] = "Other"
				continue
			}
			titles[i] = ExtractTitle(name.Strs[i])
		}
		_ = f.SetColumn(&Column{Name: "Title", Kind: KindString, Strs: titles})
	}

	sibsp, hasSibSp := f.Column("SibSp")
	parch, hasParch := f.Column("Parch")
	if hasSibSp && hasParch && sibsp.IsNumeric() && parch.IsNumeric() {
		sizes := make([]int64, n)
		col := &Column{Name: "FamilySize", Kind: KindInt, Ints: sizes}
		for i := 0; i < n; i++ {
			s, okS := sibsp.AsFloat(i)
			p, okP := parch.AsFloat(i)
			if !okS || !okP {
				col.SetNull(i)
				continue
			}
			sizes[i] = int64(s) + int64(p) + 1
		}
		_ = f.SetColumn(col)
	}

	if age, ok := f.Column("Age"); ok && age.IsNumeric() {
		groups := make([]string, n)
		for i := 0; i < n; i++ {
			if v, ok := age.AsFloat(i); ok {
				groups[i] = AssignAgeGroup(v)
			} else {
				groups[i] = "Unknown"
			}
		}
		_ = f.SetColumn(&Column{Name: "AgeGroup", Kind: KindString, Strs: groups})
	}

	if fare, ok := f.Column("Fare"); ok && fare.IsNumeric() {
		groups := make([]string, n)
		for i := 0; i < n; i++ {
			if v, ok := fare.AsFloat(i); ok {
				groups[i] = AssignFareGroup(v)
			} else {
				groups[i] = "Unknown"
			}
		}
		_ = f.SetColumn(&Column{Name: "FareGroup", Kind: KindString, Strs: groups})
	}
}
