package metrics

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Accuracy は完全一致率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ConfusionMatrix は真のクラス（行）と予測クラス（列）の件数表
//
// Labels は yTrue と yPred に現れたラベルの和集合を昇順に並べたもの。
// 丸めた回帰出力のように範囲外のラベルが予測されても、その列が追加される。
type ConfusionMatrix struct {
	Labels []int
	Counts [][]int
}

// NewConfusionMatrix は混同行列を作る
func NewConfusionMatrix(yTrue, yPred *mat.VecDense) (*ConfusionMatrix, error) {
	n, err := checkPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, err
	}

	set := make(map[int]struct{})
	for i := 0; i < n; i++ {
		set[int(yTrue.AtVec(i))] = struct{}{}
		set[int(yPred.AtVec(i))] = struct{}{}
	}
	labels := make([]int, 0, len(set))
	for l := range set {
		labels = append(labels, l)
	}
	sort.Ints(labels)

	counts := make([][]int, len(labels))
	for i := range counts {
		counts[i] = make([]int, len(labels))
	}
	for i := 0; i < n; i++ {
		r := sort.SearchInts(labels, int(yTrue.AtVec(i)))
		c := sort.SearchInts(labels, int(yPred.AtVec(i)))
		counts[r][c]++
	}
	return &ConfusionMatrix{Labels: labels, Counts: counts}, nil
}

// Dense は件数を float64 の行列として返す（ヒートマップ描画用）
func (cm *ConfusionMatrix) Dense() *mat.Dense {
	k := len(cm.Labels)
	d := mat.NewDense(k, k, nil)
	for i := range cm.Counts {
		for j, v := range cm.Counts[i] {
			d.Set(i, j, float64(v))
		}
	}
	return d
}

// Total は全サンプル数
func (cm *ConfusionMatrix) Total() int {
	var t int
	for _, row := range cm.Counts {
		for _, v := range row {
			t += v
		}
	}
	return t
}

// String は numpy 風の表記を返す
func (cm *ConfusionMatrix) String() string {
	width := 1
	for _, row := range cm.Counts {
		for _, v := range row {
			width = max(width, len(strconv.Itoa(v)))
		}
	}
	var b strings.Builder
	b.WriteString("[")
	for i, row := range cm.Counts {
		if i > 0 {
			b.WriteString("\n ")
		}
		b.WriteString("[")
		for j, v := range row {
			if j > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "%*d", width, v)
		}
		b.WriteString("]")
	}
	b.WriteString("]")
	return b.String()
}

// ClassMetrics は1クラス分（または平均行）の指標
type ClassMetrics struct {
	Label     int
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// ClassificationReport は scikit-learn の classification_report 相当
type ClassificationReport struct {
	Classes     []ClassMetrics
	Accuracy    float64
	MacroAvg    ClassMetrics
	WeightedAvg ClassMetrics
	Support     int
}

// NewClassificationReport は混同行列から各クラスの precision/recall/F1 を計算する
// 分母が0の指標は0とし、UndefinedMetricWarning を出す
func NewClassificationReport(cm *ConfusionMatrix) (*ClassificationReport, error) {
	k := len(cm.Labels)
	if k == 0 {
		return nil, errors.NewValueError("ClassificationReport", "empty confusion matrix")
	}

	predicted := make([]int, k)
	support := make([]int, k)
	correct := 0
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			support[i] += cm.Counts[i][j]
			predicted[j] += cm.Counts[i][j]
		}
		correct += cm.Counts[i][i]
	}
	total := cm.Total()

	r := &ClassificationReport{
		Classes:  make([]ClassMetrics, k),
		Accuracy: float64(correct) / float64(total),
		Support:  total,
	}
	var undefPrecision, undefRecall bool
	for i, label := range cm.Labels {
		m := ClassMetrics{Label: label, Support: support[i]}
		tp := float64(cm.Counts[i][i])
		if predicted[i] > 0 {
			m.Precision = tp / float64(predicted[i])
		} else {
			undefPrecision = true
		}
		if support[i] > 0 {
			m.Recall = tp / float64(support[i])
		} else {
			undefRecall = true
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		r.Classes[i] = m

		r.MacroAvg.Precision += m.Precision / float64(k)
		r.MacroAvg.Recall += m.Recall / float64(k)
		r.MacroAvg.F1 += m.F1 / float64(k)
		w := float64(m.Support) / float64(total)
		r.WeightedAvg.Precision += m.Precision * w
		r.WeightedAvg.Recall += m.Recall * w
		r.WeightedAvg.F1 += m.F1 * w
	}
	r.MacroAvg.Label, r.WeightedAvg.Label = -1, -1
	r.MacroAvg.Support, r.WeightedAvg.Support = total, total

	if undefPrecision {
		errors.Warn(errors.NewUndefinedMetricWarning("precision", "labels with no predicted samples", 0))
	}
	if undefRecall {
		errors.Warn(errors.NewUndefinedMetricWarning("recall", "labels with no true samples", 0))
	}
	return r, nil
}

// Format はレポートを表形式の文字列にする
// name が nil ならラベルの整数値をそのまま使う
func (r *ClassificationReport) Format(name func(label int) string, digits int) string {
	if name == nil {
		name = strconv.Itoa
	}
	names := make([]string, len(r.Classes))
	width := len("weighted avg")
	for i, m := range r.Classes {
		names[i] = name(m.Label)
		width = max(width, len(names[i]))
	}
	width = max(width, digits)

	var b strings.Builder
	fmt.Fprintf(&b, "%*s  %9s %9s %9s %9s\n\n", width, "", "precision", "recall", "f1-score", "support")
	row := func(label string, m ClassMetrics) {
		fmt.Fprintf(&b, "%*s  %9.*f %9.*f %9.*f %9d\n",
			width, label, digits, m.Precision, digits, m.Recall, digits, m.F1, m.Support)
	}
	for i, m := range r.Classes {
		row(names[i], m)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%*s  %9s %9s %9.*f %9d\n", width, "accuracy", "", "", digits, r.Accuracy, r.Support)
	row("macro avg", r.MacroAvg)
	row("weighted avg", r.WeightedAvg)
	return b.String()
}
