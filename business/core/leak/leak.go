// Package leak provides the leak detection model. A model is trained from
// labelled zone readings and used to classify new readings.
package leak

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrNoModel is returned when a prediction is requested before any model
// was trained or loaded.
var ErrNoModel = errors.New("no leak detection model is available")

// Reading represents the water measurements of a zone.
type Reading struct {
	WaterSupplied float64 `json:"water_supplied_litres"`
	WaterConsumed float64 `json:"water_consumed_litres"`
	FlowRate      float64 `json:"flowrate_lps"`
	Pressure      float64 `json:"pressure_psi"`
}

func (r Reading) vector() []float64 {
	return []float64{r.WaterSupplied, r.WaterConsumed, r.FlowRate, r.Pressure}
}

// Sample is a reading with its known outcome.
type Sample struct {
	Reading Reading
	Leak    int
}

// Prediction is the outcome of classifying a reading.
type Prediction struct {
	Prediction  int     `json:"prediction"`
	Result      string  `json:"result"`
	Probability float64 `json:"probability"`
}

// =============================================================================

// Detector holds the live model. Predictions run against whichever model
// was published last; a retrain swaps it in one step.
type Detector struct {
	log   *zap.SugaredLogger
	path  string
	now   func() time.Time
	model atomic.Pointer[Model]
}

// NewDetector constructs a detector persisting its model at the specified
// path. An existing model file is loaded.
func NewDetector(log *zap.SugaredLogger, path string) (*Detector, error) {
	d := Detector{
		log:  log,
		path: path,
		now:  time.Now,
	}

	if path == "" {
		return &d, nil
	}

	m, err := load(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Infow("leak", "status", "no model on disk", "path", path)

	case err != nil:
		return nil, err

	default:
		d.model.Store(&m)
		log.Infow("leak", "status", "model loaded", "path", path, "samples", m.Samples, "trained", m.TrainedAt)
	}

	return &d, nil
}

// Model returns a copy of the live model.
func (d *Detector) Model() (Model, error) {
	m := d.model.Load()
	if m == nil {
		return Model{}, ErrNoModel
	}
	return *m, nil
}

// Predict classifies the reading with the live model.
func (d *Detector) Predict(r Reading) (Prediction, error) {
	m := d.model.Load()
	if m == nil {
		return Prediction{}, ErrNoModel
	}
	return m.Predict(r), nil
}

// Retrain trains a new model from CSV data, saves it and makes it live. The
// live model is untouched if any step fails.
func (d *Detector) Retrain(r io.Reader) (Model, error) {
	samples, err := ParseCSV(r)
	if err != nil {
		return Model{}, err
	}

	m, err := Train(samples, d.now())
	if err != nil {
		return Model{}, err
	}

	// Values that are finite on their own can still overflow in training.
	if err := m.check(); err != nil {
		return Model{}, fmt.Errorf("trained model: %w", err)
	}

	if d.path != "" {
		if err := save(d.path, m); err != nil {
			return Model{}, fmt.Errorf("saving model: %w", err)
		}
	}

	d.model.Store(&m)
	d.log.Infow("leak", "status", "model retrained", "samples", m.Samples, "accuracy", m.Accuracy)

	return m, nil
}

// =============================================================================

func load(path string) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Model{}, err
	}

	var m Model
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Model{}, fmt.Errorf("decoding model %s: %w", path, err)
	}

	if err := m.check(); err != nil {
		return Model{}, fmt.Errorf("model %s: %w", path, err)
	}

	return m, nil
}

// save writes the model to a temporary file and renames it into place.
func save(path string, m Model) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}
