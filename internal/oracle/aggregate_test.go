package oracle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proptoken/internal/oracle/models"
)

func evidenceWith(confidences ...float64) []models.Evidence {
	out := make([]models.Evidence, 0, len(confidences))
	for _, c := range confidences {
		out = append(out, models.Evidence{Source: "probe", Confidence: c})
	}
	return out
}

func TestAggregate_Mean(t *testing.T) {
	tests := []struct {
		name        string
		confidences []float64
		want        float64
	}{
		{"single evidence", []float64{0.88}, 0.88},
		{"satellite and activity", []float64{0.92, 0.78}, 0.85},
		{"raised satellite", []float64{0.95, 0.78}, 0.865},
		{"perfect satellite", []float64{1.0, 0.78}, 0.89},
		{"three probes", []float64{0.1, 0.2, 0.6}, 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Aggregate(models.CategoryExistence, evidenceWith(tt.confidences...))
			require.NoError(t, err)
			assert.InDelta(t, tt.want, res.Score, 1e-9)
			assert.Equal(t, models.CategoryExistence, res.Category)
			assert.Len(t, res.Evidences, len(tt.confidences))
		})
	}
}

func TestAggregate_EmptyEvidenceIsAnError(t *testing.T) {
	res, err := Aggregate(models.CategoryOwnership, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyEvidence))

	var empty *EmptyEvidenceError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, models.CategoryOwnership, empty.Category)
	assert.Equal(t, KindEmptyEvidence, empty.Kind())
	assert.Zero(t, res.Score)
}

func TestAggregate_DoesNotAliasInput(t *testing.T) {
	in := evidenceWith(0.5)
	res, err := AggregateOwnership(in...)
	require.NoError(t, err)

	in[0].Confidence = 0.1
	assert.Equal(t, 0.5, res.Evidences[0].Confidence)
}
