// Package ml holds the pump classifier: a logistic regression retrained from
// the training log and swapped in atomically. When no model has been trained
// yet the service answers a neutral 50 so the untrained state reads as
// "unknown" rather than "negative".
package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sync/atomic"
	"time"

	"pumpwatch/internal/features"
	"pumpwatch/internal/storage"

	"github.com/rs/zerolog/log"
)

// NeutralProbability is returned while no trained model is loaded.
const NeutralProbability = 50

// ErrInsufficientData is returned by Retrain when the training log has fewer
// usable rows than the configured minimum. The active model stays in place.
var ErrInsufficientData = errors.New("insufficient training data")

// MetricsInterface defines the metrics hooks the classifier reports to.
type MetricsInterface interface {
	MLPredictionsInc()
	MLRetrainsInc()
	MLModelAgeSet(float64)
}

// Classifier owns the active model. Predict is safe for concurrent use with
// Retrain: the model is replaced by a single pointer swap, never mutated.
type Classifier struct {
	modelPath string
	minRows   int
	model     atomic.Pointer[Model]
	metrics   MetricsInterface
}

// New builds a classifier and tries to load a previously persisted model.
// A missing artifact is the normal cold-start state; a corrupt one is logged
// and ignored. Neither aborts startup.
func New(modelPath string, minRows int, metrics MetricsInterface) *Classifier {
	c := &Classifier{
		modelPath: modelPath,
		minRows:   minRows,
		metrics:   metrics,
	}

	model, err := loadModel(modelPath)
	switch {
	case err != nil:
		log.Warn().Err(err).Str("model_path", modelPath).Msg("model load failed, starting untrained")
	case model == nil:
		log.Info().Str("model_path", modelPath).Msg("no model artifact, starting untrained")
	default:
		c.model.Store(model)
		log.Info().
			Str("model_path", modelPath).
			Int("samples", model.Samples).
			Time("trained_at", model.TrainedAt).
			Msg("model loaded")
		c.reportModelAge(model)
	}

	return c
}

// Ready reports whether a trained model is active.
func (c *Classifier) Ready() bool {
	return c.model.Load() != nil
}

// Predict returns the pump probability for one feature vector as an integer
// in [0,100]. Without a model it returns exactly NeutralProbability.
func (c *Classifier) Predict(v features.Vector) int {
	if c.metrics != nil {
		c.metrics.MLPredictionsInc()
	}

	model := c.model.Load()
	if model == nil {
		return NeutralProbability
	}
	return int(math.Round(model.Probability(v) * 100))
}

// Retrain fits a fresh model from the given rows, persists it, and swaps it
// in. It returns ErrInsufficientData when fewer than the minimum usable rows
// exist; any other error means the fit or save failed. In both cases the
// previously active model is retained.
func (c *Classifier) Retrain(rows []storage.TrainingRow) error {
	if len(rows) < c.minRows {
		return ErrInsufficientData
	}

	model, used := fit(rows)
	if model == nil || used < c.minRows {
		return ErrInsufficientData
	}

	if err := saveModel(c.modelPath, model); err != nil {
		return fmt.Errorf("persist model: %w", err)
	}

	c.model.Store(model)
	if c.metrics != nil {
		c.metrics.MLRetrainsInc()
	}
	c.reportModelAge(model)

	log.Info().Int("samples", used).Str("model_path", c.modelPath).Msg("model retrained")
	return nil
}

func (c *Classifier) reportModelAge(model *Model) {
	if c.metrics != nil && !model.TrainedAt.IsZero() {
		c.metrics.MLModelAgeSet(time.Since(model.TrainedAt).Seconds())
	}
}

// loadModel reads the artifact from disk. A missing file returns (nil, nil).
func loadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read model file: %w", err)
	}

	var model Model
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("parse model file: %w", err)
	}
	if !model.valid() {
		return nil, fmt.Errorf("model file has unexpected shape")
	}
	return &model, nil
}

// saveModel overwrites the artifact wholesale. Write-then-rename keeps a
// crash mid-save from corrupting the previous artifact.
func saveModel(path string, model *Model) error {
	data, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("marshal model: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write model file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace model file: %w", err)
	}
	return nil
}
