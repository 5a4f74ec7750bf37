package ml

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"pumpwatch/internal/features"
	"pumpwatch/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func modelPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "model.json")
}

// separableRows builds n/2 quiet negatives and n/2 spiky positives so a
// logistic fit has an easy boundary on vsr and bp.
func separableRows(n int) []storage.TrainingRow {
	rows := make([]storage.TrainingRow, 0, n)
	for i := 0; i < n/2; i++ {
		rows = append(rows, storage.TrainingRow{
			Vector: features.Vector{
				VSR: 0.05 + float64(i)*0.01, BP: 0.5 + float64(i)*0.05,
				Liq: 30000, Txns: 10 + i, Whale: 0.25, Hype: 300,
			},
			Pumped: 0,
		})
		rows = append(rows, storage.TrainingRow{
			Vector: features.Vector{
				VSR: 2.0 + float64(i)*0.05, BP: 5.0 + float64(i)*0.1,
				Liq: 80000, Txns: 60 + i, Whale: 0.25, Hype: 300,
			},
			Pumped: 1,
		})
	}
	return rows
}

func TestPredict_UntrainedReturnsNeutral(t *testing.T) {
	c := New(modelPath(t), 20, nil)

	assert.False(t, c.Ready())
	for _, v := range []features.Vector{
		{},
		{VSR: 0.5, BP: 4, Liq: 50000, Txns: 50, Whale: 0.25, Hype: 300},
		{VSR: 100, BP: 100},
	} {
		assert.Equal(t, NeutralProbability, c.Predict(v))
	}
}

func TestRetrain_InsufficientRowsKeepsPrior(t *testing.T) {
	c := New(modelPath(t), 20, nil)

	err := c.Retrain(separableRows(18))
	assert.ErrorIs(t, err, ErrInsufficientData)
	assert.False(t, c.Ready())
	assert.Equal(t, NeutralProbability, c.Predict(features.Vector{VSR: 3, BP: 6}))
}

func TestRetrain_FiltersNonFiniteRows(t *testing.T) {
	c := New(modelPath(t), 20, nil)

	rows := separableRows(18)
	for i := 0; i < 4; i++ {
		rows = append(rows, storage.TrainingRow{
			Vector: features.Vector{VSR: math.NaN(), BP: 1},
			Pumped: 1,
		})
	}

	// 22 rows on disk but only 18 usable: the gate applies after filtering.
	err := c.Retrain(rows)
	assert.ErrorIs(t, err, ErrInsufficientData)
	assert.False(t, c.Ready())
}

func TestRetrain_FitsAndDiscriminates(t *testing.T) {
	c := New(modelPath(t), 20, nil)

	require.NoError(t, c.Retrain(separableRows(24)))
	assert.True(t, c.Ready())

	pumpy := c.Predict(features.Vector{VSR: 2.5, BP: 5.5, Liq: 80000, Txns: 70, Whale: 0.25, Hype: 300})
	quiet := c.Predict(features.Vector{VSR: 0.05, BP: 0.5, Liq: 30000, Txns: 10, Whale: 0.25, Hype: 300})

	assert.Greater(t, pumpy, 60, "spiky vector should classify as likely pump")
	assert.Less(t, quiet, 40, "quiet vector should classify as unlikely pump")
	assert.GreaterOrEqual(t, pumpy, 0)
	assert.LessOrEqual(t, pumpy, 100)
}

func TestRetrain_ModelSurvivesRestart(t *testing.T) {
	path := modelPath(t)

	c := New(path, 20, nil)
	require.NoError(t, c.Retrain(separableRows(24)))
	v := features.Vector{VSR: 2.5, BP: 5.5, Liq: 80000, Txns: 70, Whale: 0.25, Hype: 300}
	want := c.Predict(v)

	reloaded := New(path, 20, nil)
	assert.True(t, reloaded.Ready())
	assert.Equal(t, want, reloaded.Predict(v))
}

func TestNew_CorruptArtifactFallsBackToUntrained(t *testing.T) {
	path := modelPath(t)
	require.NoError(t, os.WriteFile(path, []byte("not json {"), 0o600))

	c := New(path, 20, nil)
	assert.False(t, c.Ready())
	assert.Equal(t, NeutralProbability, c.Predict(features.Vector{VSR: 3, BP: 6}))
}

func TestNew_WrongShapeArtifactFallsBackToUntrained(t *testing.T) {
	path := modelPath(t)
	require.NoError(t, os.WriteFile(path, []byte(`{"weights":[1,2],"bias":0,"means":[0],"stds":[1]}`), 0o600))

	c := New(path, 20, nil)
	assert.False(t, c.Ready())
}

func TestRetrain_ReplacesModelAtomically(t *testing.T) {
	path := modelPath(t)
	c := New(path, 20, nil)
	require.NoError(t, c.Retrain(separableRows(24)))

	// Concurrent predictions while a retrain swaps the pointer must never
	// observe a half-built model.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			p := c.Predict(features.Vector{VSR: 2.5, BP: 5.5, Liq: 80000, Txns: 70, Whale: 0.25, Hype: 300})
			if p < 0 || p > 100 {
				t.Errorf("prediction out of range: %d", p)
				return
			}
		}
	}()
	for i := 0; i < 5; i++ {
		require.NoError(t, c.Retrain(separableRows(24)))
	}
	<-done
}
