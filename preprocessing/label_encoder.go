package preprocessing

import (
	"sort"
	"strconv"

	"github.com/YuminosukeSato/modelbench/core/model"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
)

// LabelEncoder maps category strings to integer codes 0..n-1 in sorted
// category order. When every category parses as a number the order is
// numeric, otherwise lexical.
type LabelEncoder struct {
	state *model.StateManager

	// Classes holds the categories, index == code.
	Classes []string
	index   map[string]int
}

// NewLabelEncoder returns an unfitted encoder.
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{state: model.NewStateManager()}
}

// Fit learns the category set of values.
func (e *LabelEncoder) Fit(values []string) error {
	if len(values) == 0 {
		return errors.NewModelError("LabelEncoder.Fit", "empty data", errors.ErrEmptyData)
	}

	seen := make(map[string]struct{})
	for _, v := range values {
		seen[v] = struct{}{}
	}
	classes := make([]string, 0, len(seen))
	for v := range seen {
		classes = append(classes, v)
	}
	sortCategories(classes)

	e.Classes = classes
	e.index = make(map[string]int, len(classes))
	for code, c := range classes {
		e.index[c] = code
	}
	e.state.SetDimensions(1, len(values))
	e.state.SetFitted()
	return nil
}

// Transform encodes values. An unseen category is a ValueError.
func (e *LabelEncoder) Transform(values []string) ([]int, error) {
	if err := e.state.RequireFitted("LabelEncoder", "Transform"); err != nil {
		return nil, err
	}
	codes := make([]int, len(values))
	for i, v := range values {
		code, ok := e.index[v]
		if !ok {
			return nil, errors.NewValueError("LabelEncoder.Transform", "unseen category "+strconv.Quote(v))
		}
		codes[i] = code
	}
	return codes, nil
}

// FitTransform fits the encoder and encodes values.
func (e *LabelEncoder) FitTransform(values []string) ([]int, error) {
	if err := e.Fit(values); err != nil {
		return nil, err
	}
	return e.Transform(values)
}

// InverseTransform decodes codes back to categories.
func (e *LabelEncoder) InverseTransform(codes []int) ([]string, error) {
	if err := e.state.RequireFitted("LabelEncoder", "InverseTransform"); err != nil {
		return nil, err
	}
	out := make([]string, len(codes))
	for i, c := range codes {
		if c < 0 || c >= len(e.Classes) {
			return nil, errors.NewValueError("LabelEncoder.InverseTransform", "code "+strconv.Itoa(c)+" out of range")
		}
		out[i] = e.Classes[c]
	}
	return out, nil
}

func sortCategories(classes []string) {
	nums := make([]float64, len(classes))
	allNumeric := true
	for i, c := range classes {
		f, err := strconv.ParseFloat(c, 64)
		if err != nil {
			allNumeric = false
			break
		}
		nums[i] = f
	}
	if !allNumeric {
		sort.Strings(classes)
		return
	}
	sort.Sort(byNumber{classes: classes, nums: nums})
}

type byNumber struct {
	classes []string
	nums    []float64
}

func (b byNumber) Len() int { return len(b.classes) }
func (b byNumber) Less(i, j int) bool {
	if b.nums[i] != b.nums[j] {
		return b.nums[i] < b.nums[j]
	}
	return b.classes[i] < b.classes[j]
}
func (b byNumber) Swap(i, j int) {
	b.classes[i], b.classes[j] = b.classes[j], b.classes[i]
	b.nums[i], b.nums[j] = b.nums[j], b.nums[i]
}

// EncodingMap holds one fitted LabelEncoder per categorical column,
// including the target. It is built once by the Preprocessor and only read
// afterwards.
type EncodingMap struct {
	target   string
	order    []string
	encoders map[string]*LabelEncoder
}

func newEncodingMap(target string) *EncodingMap {
	return &EncodingMap{target: target, encoders: make(map[string]*LabelEncoder)}
}

func (m *EncodingMap) add(column string, enc *LabelEncoder) {
	m.order = append(m.order, column)
	m.encoders[column] = enc
}

// Target returns the name of the target column.
func (m *EncodingMap) Target() string { return m.target }

// Columns returns the encoded column names in encoding order.
func (m *EncodingMap) Columns() []string {
	return append([]string(nil), m.order...)
}

// Has reports whether column was encoded.
func (m *EncodingMap) Has(column string) bool {
	_, ok := m.encoders[column]
	return ok
}

// Categories returns the categories of column, index == code.
func (m *EncodingMap) Categories(column string) ([]string, error) {
	enc, ok := m.encoders[column]
	if !ok {
		return nil, errors.NewValueError("EncodingMap.Categories", "column "+strconv.Quote(column)+" is not encoded")
	}
	return append([]string(nil), enc.Classes...), nil
}

// ClassNames returns the target categories, index == class code.
func (m *EncodingMap) ClassNames() []string {
	names, _ := m.Categories(m.target)
	return names
}

// Encode maps one category of column to its code.
func (m *EncodingMap) Encode(column, value string) (int, error) {
	enc, ok := m.encoders[column]
	if !ok {
		return 0, errors.NewValueError("EncodingMap.Encode", "column "+strconv.Quote(column)+" is not encoded")
	}
	codes, err := enc.Transform([]string{value})
	if err != nil {
		return 0, err
	}
	return codes[0], nil
}

// Decode maps one code of column back to its category.
func (m *EncodingMap) Decode(column string, code int) (string, error) {
	enc, ok := m.encoders[column]
	if !ok {
		return "", errors.NewValueError("EncodingMap.Decode", "column "+strconv.Quote(column)+" is not encoded")
	}
	values, err := enc.InverseTransform([]int{code})
	if err != nil {
		return "", err
	}
	return values[0], nil
}

// ClassLabel names a target code for display. Codes outside the encoded
// range (for example rounded regression output) are shown as numbers.
func (m *EncodingMap) ClassLabel(code int) string {
	if name, err := m.Decode(m.target, code); err == nil {
		return name
	}
	return strconv.Itoa(code)
}
