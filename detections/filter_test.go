package detections

import (
	"math"
	"testing"

	"github.com/Tutortoise/weapon-detection-service/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLabels = models.LabelMap{1: "weapon", 2: "knife"}

func rawOf(scores []float32, classes []int) models.RawDetections {
	boxes := make([]models.Box, len(scores))
	for i := range boxes {
		boxes[i] = models.Box{0.1, 0.1, 0.5, 0.5}
	}
	return models.RawDetections{Boxes: boxes, Scores: scores, ClassIDs: classes}
}

func TestFilter_StrictThreshold(t *testing.T) {
	nan := float32(math.NaN())
	batch, err := Filter(rawOf([]float32{0.5, 0.51, 0.49, nan}, []int{1, 1, 1, 1}), testLabels, 0.5)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, float32(0.51), batch[0].Score)
}

func TestFilter_PreservesModelOrder(t *testing.T) {
	batch, err := Filter(rawOf([]float32{0.6, 0.9, 0.1, 0.7}, []int{2, 1, 1, 2}), testLabels, 0.5)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	assert.Equal(t, []float32{0.6, 0.9, 0.7}, []float32{batch[0].Score, batch[1].Score, batch[2].Score})
	assert.Equal(t, "knife", batch[0].ClassName)
	assert.Equal(t, "weapon", batch[1].ClassName)
}

func TestFilter_UnknownClass(t *testing.T) {
	batch, err := Filter(rawOf([]float32{0.8}, []int{42}), testLabels, 0.5)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, 42, batch[0].ClassID)
	assert.Equal(t, models.UnknownClassName, batch[0].ClassName)
}

func TestFilter_EmptyAndMismatched(t *testing.T) {
	batch, err := Filter(models.RawDetections{}, testLabels, 0.5)
	require.NoError(t, err)
	assert.Empty(t, batch)

	_, err = Filter(models.RawDetections{
		Boxes:    []models.Box{{}},
		Scores:   []float32{0.9, 0.8},
		ClassIDs: []int{1, 1},
	}, testLabels, 0.5)
	assert.Error(t, err)
}

func TestFilter_NormalizesBoxes(t *testing.T) {
	raw := models.RawDetections{
		Boxes:    []models.Box{{-0.1, 1.2, 0.5, 0.3}},
		Scores:   []float32{0.9},
		ClassIDs: []int{1},
	}
	batch, err := Filter(raw, testLabels, 0.5)
	require.NoError(t, err)
	assert.Equal(t, models.Box{0, 0.3, 0.5, 1}, batch[0].Box)
}

func TestFilter_NonFiniteCoordinates(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	raw := models.RawDetections{
		Boxes:    []models.Box{{nan, 0.2, inf, float32(math.Inf(-1))}},
		Scores:   []float32{0.9},
		ClassIDs: []int{1},
	}
	batch, err := Filter(raw, testLabels, 0.5)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, models.Box{0, 0, 1, 0.2}, batch[0].Box)
}
