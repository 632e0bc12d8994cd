package metrics

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// ErrShape reports predictions and labels that cannot be compared.
var ErrShape = errors.New("metrics: prediction/label shape mismatch")

// ConfusionMatrix counts examples by [predicted][actual] class.
type ConfusionMatrix [][]int

// NewConfusionMatrix returns a zeroed n×n matrix.
func NewConfusionMatrix(n int) ConfusionMatrix {
	m := make(ConfusionMatrix, n)
	for i := range m {
		m[i] = make([]int, n)
	}
	return m
}

// Total returns the number of counted examples.
func (m ConfusionMatrix) Total() int {
	total := 0
	for _, row := range m {
		for _, c := range row {
			total += c
		}
	}
	return total
}

func (m ConfusionMatrix) String() string {
	var sb strings.Builder
	for p, row := range m {
		fmt.Fprintf(&sb, "%3d:", p)
		for _, c := range row {
			fmt.Fprintf(&sb, " %5d", c)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Evaluation is the outcome of scoring one batch.
type Evaluation struct {
	ErrorRate float64
	Correct   int
	Total     int
	Confusion ConfusionMatrix
}

// Argmax returns the index of the largest value, preferring the lowest index
// on ties.
func Argmax(v []float64) int {
	return floats.MaxIdx(v)
}

// Classes converts one-hot (or probability) rows into class indices.
func Classes(rows [][]float64) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = Argmax(r)
	}
	return out
}

// Evaluate scores predicted class probabilities against true labels.
func Evaluate(predictions [][]float64, labels []int, numClasses int) (Evaluation, error) {
	if len(predictions) != len(labels) {
		return Evaluation{}, fmt.Errorf("%w: %d predictions, %d labels", ErrShape, len(predictions), len(labels))
	}
	if len(labels) == 0 {
		return Evaluation{}, fmt.Errorf("%w: empty batch", ErrShape)
	}
	ev := Evaluation{Total: len(labels), Confusion: NewConfusionMatrix(numClasses)}
	for i, p := range predictions {
		if len(p) != numClasses {
			return Evaluation{}, fmt.Errorf("%w: prediction %d has %d classes, want %d", ErrShape, i, len(p), numClasses)
		}
		actual := labels[i]
		if actual < 0 || actual >= numClasses {
			return Evaluation{}, fmt.Errorf("%w: label %d outside [0,%d)", ErrShape, actual, numClasses)
		}
		predicted := Argmax(p)
		if predicted == actual {
			ev.Correct++
		}
		ev.Confusion[predicted][actual]++
	}
	ev.ErrorRate = 100 * (1 - float64(ev.Correct)/float64(ev.Total))
	return ev, nil
}

// ErrorRate is Evaluate without the confusion matrix.
func ErrorRate(predictions [][]float64, labels []int, numClasses int) (float64, error) {
	ev, err := Evaluate(predictions, labels, numClasses)
	if err != nil {
		return 0, err
	}
	return ev.ErrorRate, nil
}
