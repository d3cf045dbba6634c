package preprocessing

import (
	"sort"
	"strconv"

	"github.com/YuminosukeSato/modelbench/dataset"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
)

// ModeImputer fills missing cells with the most frequent value of their
// column. Ties go to the smallest value: numeric order for numeric columns,
// lexical order otherwise.
type ModeImputer struct {
	// Fills maps column name to its fill value, as a raw cell string.
	Fills map[string]string
}

// NewModeImputer returns an unfitted imputer.
func NewModeImputer() *ModeImputer {
	return &ModeImputer{Fills: make(map[string]string)}
}

// Fit computes the mode of every column. numeric reports which columns
// compare as numbers. A column with no present value has no mode and fails
// with a PreprocessingError.
func (m *ModeImputer) Fit(cols []*dataset.Column, numeric map[string]bool) error {
	for _, c := range cols {
		fill, ok := columnMode(c, numeric[c.Name])
		if !ok {
			return errors.NewPreprocessingError("impute", c.Name, "mode is undefined for an all-missing column")
		}
		m.Fills[c.Name] = fill
	}
	return nil
}

// Transform returns copies of cols with missing cells replaced. The returned
// columns have no missing flags set.
func (m *ModeImputer) Transform(cols []*dataset.Column) ([]*dataset.Column, error) {
	out := make([]*dataset.Column, len(cols))
	for k, c := range cols {
		fill, ok := m.Fills[c.Name]
		if !ok {
			return nil, errors.NewValueError("ModeImputer.Transform", "column "+strconv.Quote(c.Name)+" was not seen during Fit")
		}
		nc := &dataset.Column{
			Name:    c.Name,
			Values:  make([]string, c.Len()),
			Missing: make([]bool, c.Len()),
		}
		for i, v := range c.Values {
			if c.Missing[i] {
				v = fill
			}
			nc.Values[i] = v
		}
		out[k] = nc
	}
	return out, nil
}

func columnMode(c *dataset.Column, numeric bool) (string, bool) {
	if numeric {
		counts := make(map[float64]int)
		repr := make(map[float64]string)
		for i, v := range c.Values {
			if c.Missing[i] {
				continue
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				continue
			}
			counts[f]++
			if _, seen := repr[f]; !seen {
				repr[f] = v
			}
		}
		if len(counts) == 0 {
			return "", false
		}
		keys := make([]float64, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Float64s(keys)
		best := keys[0]
		for _, k := range keys[1:] {
			if counts[k] > counts[best] {
				best = k
			}
		}
		return repr[best], true
	}

	counts := make(map[string]int)
	for i, v := range c.Values {
		if !c.Missing[i] {
			counts[v]++
		}
	}
	if len(counts) == 0 {
		return "", false
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best := keys[0]
	for _, k := range keys[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return best, true
}
