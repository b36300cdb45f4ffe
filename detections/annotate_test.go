package detections

import (
	"image"
	"image/color"
	"testing"

	"github.com/Tutortoise/weapon-detection-service/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var green = color.NRGBA{G: 255, A: 255}

func white(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img
}

func TestAnnotate_DoesNotMutateInput(t *testing.T) {
	img := white(100, 100)
	before := append([]uint8(nil), img.Pix...)

	out := Annotate(img, models.DetectionBatch{
		{Box: models.Box{0.2, 0.2, 0.8, 0.8}, Score: 0.9, ClassName: "weapon"},
	}, AnnotateOptions{})

	assert.Equal(t, before, img.Pix)
	assert.NotEqual(t, img.Pix, out.Pix)
	assert.Equal(t, img.Bounds(), out.Bounds())
}

func TestAnnotate_EmptyBatchCopiesPixels(t *testing.T) {
	img := white(10, 10)
	out := Annotate(img, nil, AnnotateOptions{})
	require.NotSame(t, img, out)
	assert.Equal(t, img.Pix, out.Pix)
}

func TestAnnotate_DrawsBoxEdges(t *testing.T) {
	out := Annotate(white(100, 100), models.DetectionBatch{
		{Box: models.Box{0.2, 0.2, 0.8, 0.8}, Score: 0.92, ClassName: "weapon"},
	}, AnnotateOptions{LineThickness: 4})

	for _, pt := range []image.Point{{50, 20}, {50, 80}, {20, 50}, {80, 50}, {18, 18}, {82, 82}} {
		assert.Equal(t, green, out.NRGBAAt(pt.X, pt.Y), "edge pixel %v", pt)
	}
	for _, pt := range []image.Point{{50, 50}, {23, 50}, {50, 77}, {85, 85}} {
		assert.Equal(t, color.NRGBA{255, 255, 255, 255}, out.NRGBAAt(pt.X, pt.Y), "pixel %v", pt)
	}
}

func TestAnnotate_TruncatesToMaxBoxes(t *testing.T) {
	batch := models.DetectionBatch{
		{Box: models.Box{0.5, 0.1, 0.9, 0.4}, Score: 0.9, ClassName: "weapon"},
		{Box: models.Box{0.5, 0.6, 0.9, 0.9}, Score: 0.8, ClassName: "weapon"},
	}
	out := Annotate(white(100, 100), batch, AnnotateOptions{MaxBoxes: 1})

	assert.Equal(t, green, out.NRGBAAt(10, 70))
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, out.NRGBAAt(60, 70))
}

func TestAnnotate_LabelStaysInsideImage(t *testing.T) {
	out := Annotate(white(100, 100), models.DetectionBatch{
		{Box: models.Box{0, 0.5, 0.5, 1}, Score: 0.75, ClassName: "weapon"},
	}, AnnotateOptions{})

	// Inside the box, away from its edges: only label glyphs can be green here.
	found := false
	for y := 3; y <= 11 && !found; y++ {
		for x := 55; x <= 95; x++ {
			if out.NRGBAAt(x, y) == green {
				found = true
				break
			}
		}
	}
	assert.True(t, found)
}

func TestAnnotate_DegenerateBoxes(t *testing.T) {
	assert.NotPanics(t, func() {
		Annotate(white(20, 20), models.DetectionBatch{
			{Box: models.Box{0.5, 0.5, 0.5, 0.5}, Score: 0.9, ClassName: "weapon"},
			{Box: models.Box{0, 0, 1, 1}, Score: 0.9, ClassName: "weapon"},
		}, AnnotateOptions{LineThickness: 30})
	})
}

func TestLabelText(t *testing.T) {
	assert.Equal(t, "weapon: 92%", labelText(models.Detection{ClassName: "weapon", Score: 0.92}))
	assert.Equal(t, "N/A: 100%", labelText(models.Detection{ClassName: "N/A", Score: 0.999}))
	assert.Equal(t, "knife: 51%", labelText(models.Detection{ClassName: "knife", Score: 0.51}))
}
