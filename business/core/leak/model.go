package leak

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Training hyperparameters. They are fixed so retraining on the same data
// always produces the same model.
const (
	epochs       = 2000
	learningRate = 0.1
	l2           = 0.001
)

// Model is a standardized logistic regression classifier over the reading
// features. It is the artifact written to disk.
type Model struct {
	Features  []string  `yaml:"features"`
	Mean      []float64 `yaml:"mean"`
	Scale     []float64 `yaml:"scale"`
	Weights   []float64 `yaml:"weights"`
	Bias      float64   `yaml:"bias"`
	Samples   int       `yaml:"samples"`
	Accuracy  float64   `yaml:"accuracy"`
	TrainedAt time.Time `yaml:"trained_at"`
}

// Train fits a model to the samples using batch gradient descent.
func Train(samples []Sample, now time.Time) (Model, error) {
	if len(samples) < 2 {
		return Model{}, fmt.Errorf("need at least 2 samples, got %d", len(samples))
	}

	n := len(Features)
	m := Model{
		Features:  append([]string(nil), Features...),
		Mean:      make([]float64, n),
		Scale:     make([]float64, n),
		Weights:   make([]float64, n),
		Samples:   len(samples),
		TrainedAt: now.UTC(),
	}

	for _, s := range samples {
		for j, v := range s.Reading.vector() {
			m.Mean[j] += v
		}
	}
	for j := range m.Mean {
		m.Mean[j] /= float64(len(samples))
	}

	for _, s := range samples {
		for j, v := range s.Reading.vector() {
			d := v - m.Mean[j]
			m.Scale[j] += d * d
		}
	}
	for j := range m.Scale {
		m.Scale[j] = math.Sqrt(m.Scale[j] / float64(len(samples)))
		if m.Scale[j] == 0 {
			m.Scale[j] = 1
		}
	}

	xs := make([][]float64, len(samples))
	for i, s := range samples {
		xs[i] = m.standardize(s.Reading)
	}

	size := float64(len(samples))
	grad := make([]float64, n)
	for e := 0; e < epochs; e++ {
		for j := range grad {
			grad[j] = 0
		}
		var gradBias float64

		for i, x := range xs {
			diff := m.probability(x) - float64(samples[i].Leak)
			for j := range x {
				grad[j] += diff * x[j]
			}
			gradBias += diff
		}

		for j := range m.Weights {
			m.Weights[j] -= learningRate * (grad[j]/size + l2*m.Weights[j])
		}
		m.Bias -= learningRate * gradBias / size
	}

	var correct int
	for i, x := range xs {
		if label(m.probability(x)) == samples[i].Leak {
			correct++
		}
	}
	m.Accuracy = float64(correct) / size

	return m, nil
}

// Predict classifies the reading.
func (m Model) Predict(r Reading) Prediction {
	p := m.probability(m.standardize(r))
	l := label(p)

	return Prediction{
		Prediction:  l,
		Result:      result(l),
		Probability: p,
	}
}

// check validates a model before it is used for predictions.
func (m Model) check() error {
	n := len(Features)
	if len(m.Features) != n || len(m.Mean) != n || len(m.Scale) != n || len(m.Weights) != n {
		return errors.New("model does not match the reading features")
	}
	for j, f := range Features {
		if m.Features[j] != f {
			return fmt.Errorf("model feature %d is %q, exp %q", j, m.Features[j], f)
		}
		if m.Scale[j] == 0 {
			return fmt.Errorf("model feature %q has a zero scale", f)
		}
		if !finite(m.Mean[j], m.Scale[j], m.Weights[j]) {
			return fmt.Errorf("model feature %q has a non-finite parameter", f)
		}
	}
	if !finite(m.Bias) {
		return errors.New("model bias is not finite")
	}
	return nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (m Model) standardize(r Reading) []float64 {
	x := r.vector()
	for j := range x {
		x[j] = (x[j] - m.Mean[j]) / m.Scale[j]
	}
	return x
}

func (m Model) probability(x []float64) float64 {
	z := m.Bias
	for j := range x {
		z += m.Weights[j] * x[j]
	}
	return 1 / (1 + math.Exp(-z))
}

func label(p float64) int {
	if p >= 0.5 {
		return 1
	}
	return 0
}

func result(label int) string {
	if label == 1 {
		return "Leak Detected"
	}
	return "No Leak"
}
