// Package report prints per-model results and builds the run summary: the
// comparison table, the accuracy bar chart and the PCA scatter of the test
// features.
package report

import (
	"fmt"
	"strings"

	"github.com/YuminosukeSato/modelbench/evaluate"
	"github.com/YuminosukeSato/modelbench/registry"
)

// Entry is one row of the comparison table.
type Entry struct {
	Model    string
	Kind     registry.Kind
	Accuracy float64
}

// ComparisonTable maps model names to accuracies in insertion order.
type ComparisonTable struct {
	entries []Entry
	index   map[string]int
}

// NewComparisonTable returns an empty table.
func NewComparisonTable() *ComparisonTable {
	return &ComparisonTable{index: make(map[string]int)}
}

// Add records r. A second result for the same model replaces the first one
// in place.
func (t *ComparisonTable) Add(r *evaluate.Result) {
	e := Entry{Model: r.Model, Kind: r.Kind, Accuracy: r.Accuracy}
	if i, ok := t.index[r.Model]; ok {
		t.entries[i] = e
		return
	}
	t.index[r.Model] = len(t.entries)
	t.entries = append(t.entries, e)
}

// Len returns the number of models.
func (t *ComparisonTable) Len() int { return len(t.entries) }

// Entries returns the rows in insertion order.
func (t *ComparisonTable) Entries() []Entry { return append([]Entry(nil), t.entries...) }

// Accuracy returns the accuracy recorded for model.
func (t *ComparisonTable) Accuracy(model string) (float64, bool) {
	i, ok := t.index[model]
	if !ok {
		return 0, false
	}
	return t.entries[i].Accuracy, true
}

// Best returns the most accurate model; ties go to the earlier entry.
func (t *ComparisonTable) Best() (Entry, bool) {
	if len(t.entries) == 0 {
		return Entry{}, false
	}
	best := t.entries[0]
	for _, e := range t.entries[1:] {
		if e.Accuracy > best.Accuracy {
			best = e
		}
	}
	return best, true
}

// Names and Accuracies return the columns in insertion order.
func (t *ComparisonTable) Names() []string {
	out := make([]string, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Model
	}
	return out
}

func (t *ComparisonTable) Accuracies() []float64 {
	out := make([]float64, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Accuracy
	}
	return out
}

func (t *ComparisonTable) String() string {
	width := len("Model")
	for _, e := range t.entries {
		width = max(width, len(e.Model))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-*s  %s\n", width, "Model", "Accuracy")
	b.WriteString(strings.Repeat("-", width+10) + "\n")
	for _, e := range t.entries {
		fmt.Fprintf(&b, "%-*s  %.4f\n", width, e.Model, e.Accuracy)
	}
	return b.String()
}
