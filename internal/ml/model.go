package ml

import (
	"math"
	"time"

	"pumpwatch/internal/features"
	"pumpwatch/internal/storage"
)

// Training hyperparameters. Batch gradient descent is plenty for the row
// volumes this service sees (hundreds, not millions).
const (
	trainEpochs       = 500
	trainLearningRate = 0.1
)

// Model is an immutable fitted logistic regression over the six-feature
// vector. Inputs are standardized with the means and deviations captured at
// fit time, so the artifact is self-contained.
type Model struct {
	Weights   []float64 `json:"weights"`
	Bias      float64   `json:"bias"`
	Means     []float64 `json:"means"`
	Stds      []float64 `json:"stds"`
	Samples   int       `json:"samples"`
	TrainedAt time.Time `json:"trainedAt"`
}

// valid checks that the artifact has the expected shape. Used after loading
// from disk so a truncated or hand-edited file degrades to the untrained path.
func (m *Model) valid() bool {
	n := len(features.Vector{}.Values())
	return m != nil && len(m.Weights) == n && len(m.Means) == n && len(m.Stds) == n
}

// Probability returns the positive-class probability for one feature vector.
func (m *Model) Probability(v features.Vector) float64 {
	x := v.Values()
	z := m.Bias
	for i, w := range m.Weights {
		z += w * standardize(x[i], m.Means[i], m.Stds[i])
	}
	return sigmoid(z)
}

// fit trains a logistic regression on the given rows. Rows with non-finite
// feature values or labels outside {0,1} are dropped before fitting; the
// caller decides whether the surviving row count is sufficient.
func fit(rows []storage.TrainingRow) (*Model, int) {
	var xs [][]float64
	var ys []float64
	for _, row := range rows {
		x := row.Values()
		if !finite(x) || (row.Pumped != 0 && row.Pumped != 1) {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, float64(row.Pumped))
	}
	if len(xs) == 0 {
		return nil, 0
	}

	dim := len(xs[0])
	means := make([]float64, dim)
	stds := make([]float64, dim)
	for j := 0; j < dim; j++ {
		sum := 0.0
		for _, x := range xs {
			sum += x[j]
		}
		means[j] = sum / float64(len(xs))

		variance := 0.0
		for _, x := range xs {
			d := x[j] - means[j]
			variance += d * d
		}
		stds[j] = math.Sqrt(variance / float64(len(xs)))
	}

	weights := make([]float64, dim)
	bias := 0.0
	n := float64(len(xs))

	for epoch := 0; epoch < trainEpochs; epoch++ {
		gradW := make([]float64, dim)
		gradB := 0.0
		for i, x := range xs {
			z := bias
			for j, w := range weights {
				z += w * standardize(x[j], means[j], stds[j])
			}
			err := sigmoid(z) - ys[i]
			for j := range gradW {
				gradW[j] += err * standardize(x[j], means[j], stds[j])
			}
			gradB += err
		}
		for j := range weights {
			weights[j] -= trainLearningRate * gradW[j] / n
		}
		bias -= trainLearningRate * gradB / n
	}

	return &Model{
		Weights:   weights,
		Bias:      bias,
		Means:     means,
		Stds:      stds,
		Samples:   len(xs),
		TrainedAt: time.Now().UTC(),
	}, len(xs)
}

func standardize(x, mean, std float64) float64 {
	if std == 0 {
		return 0
	}
	return (x - mean) / std
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

func finite(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
