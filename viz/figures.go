package viz

import (
	"fmt"
	"image/color"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/modelbench/metrics"
	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/YuminosukeSato/modelbench/sklearn/tree"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/brewer"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Axis labels shared by the per-model diagnostics.
const (
	feature1Label = "Feature 1 (Standardized)"
	feature2Label = "Feature 2 (Standardized)"
)

var (
	blue = color.RGBA{B: 255, A: 255}
	red  = color.RGBA{R: 255, A: 255}
)

// ClassPalette returns n distinct colors from the Paired scheme, cycling
// after twelve.
func ClassPalette(n int) palette.Palette {
	paired, err := brewer.GetPalette(brewer.TypeQualitative, "Paired", 12)
	if err != nil {
		// Paired/12 は brewer に必ず存在する
		panic(err)
	}
	base := paired.Colors()
	cols := make(colors, max(n, 1))
	for i := range cols {
		cols[i] = base[i%len(base)]
	}
	return cols
}

type colors []color.Color

func (c colors) Colors() []color.Color { return c }

func withAlpha(p palette.Palette, alpha float64) palette.Palette {
	src := p.Colors()
	out := make(colors, len(src))
	for i, c := range src {
		n := color.NRGBAModel.Convert(c).(color.NRGBA)
		n.A = uint8(math.Round(alpha * 255))
		out[i] = n
	}
	return out
}

func dot(c color.Color) draw.GlyphStyle {
	return draw.GlyphStyle{Color: c, Radius: vg.Points(3), Shape: draw.CircleGlyph{}}
}

func newScatter(xs, ys []float64, c color.Color) (*plotter.Scatter, error) {
	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i] = plotter.XY{X: xs[i], Y: ys[i]}
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, err
	}
	s.GlyphStyle = dot(c)
	return s, nil
}

// confusionGrid adapts a confusion matrix to plotter.GridXYZ. Row 0 of the
// matrix is drawn at the top.
type confusionGrid struct {
	m *mat.Dense
	k int
}

func (g confusionGrid) Dims() (c, r int)    { return g.k, g.k }
func (g confusionGrid) Z(c, r int) float64  { return g.m.At(g.k-1-r, c) }
func (g confusionGrid) X(c int) float64     { return float64(c) }
func (g confusionGrid) Y(r int) float64     { return float64(r) }
func (g confusionGrid) actualRow(r int) int { return g.k - 1 - r }

// ConfusionHeatmap draws cm as an annotated Blues heatmap with predicted
// labels on X and actual labels on Y.
func ConfusionHeatmap(cm *metrics.ConfusionMatrix, name func(int) string) (*plot.Plot, error) {
	k := len(cm.Labels)
	if k == 0 {
		return nil, errors.NewValueError("ConfusionHeatmap", "empty confusion matrix")
	}
	if name == nil {
		name = strconv.Itoa
	}
	blues, err := brewer.GetPalette(brewer.TypeSequential, "Blues", 9)
	if err != nil {
		return nil, err
	}
	grid := confusionGrid{m: cm.Dense(), k: k}
	hm := plotter.NewHeatMap(grid, blues)
	if hm.Max == hm.Min {
		// 全セル同じ値だとパレットのスケールが無限大になる
		hm.Max = hm.Min + 1
	}

	threshold := (hm.Min + hm.Max) / 2
	var (
		pts    plotter.XYs
		labels []string
		light  []bool
	)
	for r := 0; r < k; r++ {
		for c := 0; c < k; c++ {
			pts = append(pts, plotter.XY{X: float64(c), Y: float64(r)})
			labels = append(labels, strconv.Itoa(cm.Counts[grid.actualRow(r)][c]))
			light = append(light, grid.Z(c, r) > threshold)
		}
	}
	annot, err := plotter.NewLabels(plotter.XYLabels{XYs: pts, Labels: labels})
	if err != nil {
		return nil, err
	}
	for i := range annot.TextStyle {
		annot.TextStyle[i].XAlign = draw.XCenter
		annot.TextStyle[i].YAlign = draw.YCenter
		annot.TextStyle[i].Color = color.Black
		if light[i] {
			annot.TextStyle[i].Color = color.White
		}
	}

	p := plot.New()
	p.X.Label.Text = "Predicted"
	p.Y.Label.Text = "Actual"
	p.Add(hm, annot)

	xNames := make([]string, k)
	yNames := make([]string, k)
	for i, l := range cm.Labels {
		xNames[i] = name(l)
		yNames[k-1-i] = name(l)
	}
	p.NominalX(xNames...)
	p.NominalY(yNames...)
	return p, nil
}

// TreeOptions control how a fitted tree is drawn.
type TreeOptions struct {
	FeatureNames []string
	// ClassName names a class code; nil prints the code.
	ClassName func(int) string
	Criterion string
	// MaxDepth truncates the drawing below that depth; 0 draws every node.
	MaxDepth int
}

type placedNode struct {
	node      *tree.Node
	x, y      float64
	truncated bool
}

func layoutTree(root *tree.Node, maxDepth int) ([]placedNode, [][2]int) {
	var (
		nodes  []placedNode
		edges  [][2]int
		leaves float64
	)
	var walk func(n *tree.Node) int
	walk = func(n *tree.Node) int {
		cut := maxDepth > 0 && n.Depth >= maxDepth && !n.IsLeaf()
		if n.IsLeaf() || cut {
			nodes = append(nodes, placedNode{node: n, x: leaves, y: -float64(n.Depth), truncated: cut})
			leaves++
			return len(nodes) - 1
		}
		l := walk(n.Left)
		r := walk(n.Right)
		nodes = append(nodes, placedNode{node: n, x: (nodes[l].x + nodes[r].x) / 2, y: -float64(n.Depth)})
		idx := len(nodes) - 1
		edges = append(edges, [2]int{idx, l}, [2]int{idx, r})
		return idx
	}
	walk(root)
	return nodes, edges
}

func nodeText(n *tree.Node, classes []int, opts TreeOptions) string {
	var b strings.Builder
	if !n.IsLeaf() {
		feature := strconv.Itoa(n.Feature)
		if n.Feature < len(opts.FeatureNames) {
			feature = opts.FeatureNames[n.Feature]
		}
		fmt.Fprintf(&b, "%s <= %.3f\n", feature, n.Threshold)
	}
	criterion := opts.Criterion
	if criterion == "" {
		criterion = "impurity"
	}
	fmt.Fprintf(&b, "%s = %.3f\nsamples = %d\nvalue = [", criterion, n.Impurity, n.NSamples)
	for i, v := range n.Value {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatFloat(v, 'g', 4, 64))
	}
	b.WriteString("]")
	if len(n.Value) > 0 && len(classes) == len(n.Value) {
		code := classes[n.Majority()]
		label := strconv.Itoa(code)
		if opts.ClassName != nil {
			label = opts.ClassName(code)
		}
		b.WriteString("\nclass = " + label)
	}
	return b.String()
}

// TreePlot draws a fitted tree top-down. Nodes are colored by their
// majority class, like plot_tree(filled=True).
func TreePlot(root *tree.Node, classes []int, opts TreeOptions) (*plot.Plot, error) {
	if root == nil {
		return nil, errors.NewValueError("TreePlot", "tree has no root node")
	}
	nodes, edges := layoutTree(root, opts.MaxDepth)

	p := plot.New()
	p.HideAxes()

	for _, e := range edges {
		a, b := nodes[e[0]], nodes[e[1]]
		l, err := plotter.NewLine(plotter.XYs{{X: a.x, Y: a.y}, {X: b.x, Y: b.y}})
		if err != nil {
			return nil, err
		}
		l.LineStyle.Color = color.Gray{Y: 128}
		p.Add(l)
	}

	pal := withAlpha(ClassPalette(len(classes)), 0.6).Colors()
	byClass := make(map[int]plotter.XYs)
	var (
		pts    plotter.XYs
		labels []string
	)
	for _, pn := range nodes {
		pts = append(pts, plotter.XY{X: pn.x, Y: pn.y})
		if pn.truncated {
			labels = append(labels, "(...)")
		} else {
			labels = append(labels, nodeText(pn.node, classes, opts))
		}
		if len(pn.node.Value) > 0 {
			k := pn.node.Majority()
			byClass[k] = append(byClass[k], plotter.XY{X: pn.x, Y: pn.y})
		}
	}

	keys := make([]int, 0, len(byClass))
	for k := range byClass {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		s, err := plotter.NewScatter(byClass[k])
		if err != nil {
			return nil, err
		}
		s.GlyphStyle = draw.GlyphStyle{Color: pal[k%len(pal)], Radius: vg.Points(9), Shape: draw.BoxGlyph{}}
		p.Add(s)
		if k < len(classes) {
			label := strconv.Itoa(classes[k])
			if opts.ClassName != nil {
				label = opts.ClassName(classes[k])
			}
			p.Legend.Add(label, s)
		}
	}

	text, err := plotter.NewLabels(plotter.XYLabels{XYs: pts, Labels: labels})
	if err != nil {
		return nil, err
	}
	for i := range text.TextStyle {
		text.TextStyle[i].Font.Size = vg.Points(6)
		text.TextStyle[i].XAlign = draw.XCenter
		text.TextStyle[i].YAlign = draw.YCenter
		text.TextStyle[i].Color = color.Black
	}
	p.Add(text)
	p.Legend.Top = true
	// ラベルが端で切れないように余白を取る
	p.X.Min, p.X.Max = -0.5, math.Max(p.X.Max, 0)+0.5
	p.Y.Min, p.Y.Max = p.Y.Min-0.5, 0.5
	return p, nil
}

// RegressionScatter plots actual and predicted classes against the first
// feature column.
func RegressionScatter(x, actual, predicted []float64) (*plot.Plot, error) {
	if len(x) != len(actual) || len(x) != len(predicted) {
		return nil, errors.NewDimensionError("RegressionScatter", len(x), len(predicted), 0)
	}
	act, err := newScatter(x, actual, blue)
	if err != nil {
		return nil, err
	}
	pred, err := newScatter(x, predicted, red)
	if err != nil {
		return nil, err
	}
	p := plot.New()
	p.X.Label.Text = feature1Label
	p.Y.Label.Text = "Class"
	p.Add(act, pred)
	p.Legend.Add("Actual", act)
	p.Legend.Add("Predicted", pred)
	p.Legend.Top = true
	return p, nil
}

// Sigmoid is the logistic function.
func Sigmoid(z float64) float64 { return 1 / (1 + math.Exp(-z)) }

// SigmoidCurve plots the actual classes against the first feature and the
// curve 1/(1+exp(-(x*coef + intercept))) over the sorted feature values.
func SigmoidCurve(x, actual []float64, coef, intercept float64) (*plot.Plot, error) {
	if len(x) != len(actual) {
		return nil, errors.NewDimensionError("SigmoidCurve", len(x), len(actual), 0)
	}
	act, err := newScatter(x, actual, blue)
	if err != nil {
		return nil, err
	}
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	curve := make(plotter.XYs, len(sorted))
	for i, v := range sorted {
		curve[i] = plotter.XY{X: v, Y: Sigmoid(v*coef + intercept)}
	}
	line, err := plotter.NewLine(curve)
	if err != nil {
		return nil, err
	}
	line.LineStyle.Color = red
	line.LineStyle.Width = vg.Points(1.5)

	p := plot.New()
	p.X.Label.Text = feature1Label
	p.Y.Label.Text = "Probability"
	p.Add(act, line)
	p.Legend.Add("Actual", act)
	p.Legend.Add("Sigmoid Curve", line)
	p.Legend.Top = true
	return p, nil
}

// ClassGrid holds predictions over a regular 2-D grid as palette indices.
// Cells is row-major with len(Xs) columns; NaN marks a cell whose class is
// unknown.
type ClassGrid struct {
	Xs, Ys []float64
	Cells  []float64
}

func (g *ClassGrid) Dims() (c, r int)   { return len(g.Xs), len(g.Ys) }
func (g *ClassGrid) Z(c, r int) float64 { return g.Cells[r*len(g.Xs)+c] }
func (g *ClassGrid) X(c int) float64    { return g.Xs[c] }
func (g *ClassGrid) Y(r int) float64    { return g.Ys[r] }

// Arange returns start, start+step, ... while < stop, like numpy.arange.
func Arange(start, stop, step float64) []float64 {
	if step <= 0 || stop <= start {
		return nil
	}
	n := int(math.Ceil((stop - start) / step))
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

// DecisionBoundary draws the class regions of grid (Z holds palette
// indices) with the Paired palette at 0.75 opacity, and the points of each
// class on top.
func DecisionBoundary(grid *ClassGrid, points *mat.Dense, labels []int, classes []int, name func(int) string) (*plot.Plot, error) {
	if len(grid.Xs) == 0 || len(grid.Ys) == 0 || len(grid.Cells) != len(grid.Xs)*len(grid.Ys) {
		return nil, errors.NewValueError("DecisionBoundary", "empty grid")
	}
	n, cols := points.Dims()
	if cols < 2 {
		return nil, errors.NewDimensionError("DecisionBoundary", 2, cols, 1)
	}
	if n != len(labels) {
		return nil, errors.NewDimensionError("DecisionBoundary", n, len(labels), 0)
	}
	if name == nil {
		name = strconv.Itoa
	}
	pal := ClassPalette(len(classes))
	hm := plotter.NewHeatMap(grid, withAlpha(pal, 0.75))
	hm.Rasterized = true
	hm.Min, hm.Max = 0, float64(len(pal.Colors())-1)
	if hm.Max == hm.Min {
		hm.Max = hm.Min + 1
	}

	p := plot.New()
	p.X.Label.Text = feature1Label
	p.Y.Label.Text = feature2Label
	p.Add(hm)

	rank := make(map[int]int, len(classes))
	for i, c := range classes {
		rank[c] = i
	}
	byClass := make(map[int][2][]float64)
	var order []int
	for i, l := range labels {
		cur, ok := byClass[l]
		if !ok {
			order = append(order, l)
		}
		cur[0] = append(cur[0], points.At(i, 0))
		cur[1] = append(cur[1], points.At(i, 1))
		byClass[l] = cur
	}
	sort.Ints(order)
	cols2 := pal.Colors()
	for _, l := range order {
		c := color.Color(color.Black)
		if r, ok := rank[l]; ok {
			c = cols2[r%len(cols2)]
		}
		s, err := newScatter(byClass[l][0], byClass[l][1], c)
		if err != nil {
			return nil, err
		}
		s.GlyphStyle.Shape = draw.RingGlyph{}
		s.GlyphStyle.Radius = vg.Points(4)
		p.Add(s)
		p.Legend.Add(name(l), s)
	}
	p.Legend.Top = true

	xmin, xmax := floats.Min(grid.Xs), floats.Max(grid.Xs)
	ymin, ymax := floats.Min(grid.Ys), floats.Max(grid.Ys)
	p.X.Min, p.X.Max = xmin, xmax
	p.Y.Min, p.Y.Max = ymin, ymax
	return p, nil
}

// AccuracyBarChart draws one bar per model in the given order, with
// rotated model names.
func AccuracyBarChart(models []string, accuracies []float64) (*plot.Plot, error) {
	if len(models) != len(accuracies) {
		return nil, errors.NewDimensionError("AccuracyBarChart", len(models), len(accuracies), 0)
	}
	if len(models) == 0 {
		return nil, errors.NewValueError("AccuracyBarChart", "no models to compare")
	}
	bars, err := plotter.NewBarChart(plotter.Values(accuracies), vg.Points(30))
	if err != nil {
		return nil, err
	}
	bars.Color = ClassPalette(1).Colors()[0]
	bars.LineStyle.Width = 0

	p := plot.New()
	p.X.Label.Text = "Models"
	p.Y.Label.Text = "Accuracy"
	p.Y.Min, p.Y.Max = 0, 1
	p.Add(bars)
	p.NominalX(models...)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter
	return p, nil
}

// ProjectionScatter plots 2-D projected points colored by label.
func ProjectionScatter(projected mat.Matrix, labels []int, name func(int) string) (*plot.Plot, error) {
	n, cols := projected.Dims()
	if cols < 2 {
		return nil, errors.NewDimensionError("ProjectionScatter", 2, cols, 1)
	}
	if n != len(labels) {
		return nil, errors.NewDimensionError("ProjectionScatter", n, len(labels), 0)
	}
	if name == nil {
		name = strconv.Itoa
	}
	byLabel := make(map[int][2][]float64)
	for i, l := range labels {
		cur := byLabel[l]
		cur[0] = append(cur[0], projected.At(i, 0))
		cur[1] = append(cur[1], projected.At(i, 1))
		byLabel[l] = cur
	}
	order := make([]int, 0, len(byLabel))
	for l := range byLabel {
		order = append(order, l)
	}
	sort.Ints(order)

	pal := ClassPalette(len(order)).Colors()
	p := plot.New()
	for i, l := range order {
		s, err := newScatter(byLabel[l][0], byLabel[l][1], pal[i%len(pal)])
		if err != nil {
			return nil, err
		}
		p.Add(s)
		p.Legend.Add(name(l), s)
	}
	p.Legend.Top = true
	return p, nil
}
