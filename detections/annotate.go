package detections

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/Tutortoise/weapon-detection-service/models"
)

var boxColor = color.NRGBA{G: 255, A: 255}

type AnnotateOptions struct {
	MaxBoxes      int
	LineThickness int
}

func (o AnnotateOptions) withDefaults() AnnotateOptions {
	if o.MaxBoxes <= 0 {
		o.MaxBoxes = DefaultMaxBoxes
	}
	if o.LineThickness <= 0 {
		o.LineThickness = DefaultLineThickness
	}
	return o
}

// Annotate draws the first MaxBoxes detections of batch onto a copy of img.
// img itself is never written to.
func Annotate(img *image.NRGBA, batch models.DetectionBatch, opts AnnotateOptions) *image.NRGBA {
	opts = opts.withDefaults()
	out := imaging.Clone(img)

	width, height := out.Bounds().Dx(), out.Bounds().Dy()
	n := len(batch)
	if n > opts.MaxBoxes {
		n = opts.MaxBoxes
	}

	for _, det := range batch[:n] {
		rect := pixelRect(det.Box, width, height)
		drawRectangle(out, rect, opts.LineThickness)
		drawLabel(out, labelText(det), rect.Min)
	}
	return out
}

// pixelRect converts a normalized box to pixel corners, truncating toward zero.
// Max is the inclusive bottom-right corner.
func pixelRect(b models.Box, width, height int) image.Rectangle {
	return image.Rectangle{
		Min: image.Pt(int(b.XMin()*float32(width)), int(b.YMin()*float32(height))),
		Max: image.Pt(int(b.XMax()*float32(width)), int(b.YMax()*float32(height))),
	}
}

func labelText(det models.Detection) string {
	return fmt.Sprintf("%s: %d%%", det.ClassName, int(math.Round(float64(det.Score)*100)))
}

// drawRectangle strokes r with a line of the given thickness centered on its edges.
func drawRectangle(dst *image.NRGBA, r image.Rectangle, thickness int) {
	src := image.NewUniform(boxColor)
	half := thickness / 2
	outer := image.Rect(r.Min.X-half, r.Min.Y-half, r.Max.X+half+1, r.Max.Y+half+1)
	inner := image.Rect(outer.Min.X+thickness, outer.Min.Y+thickness, outer.Max.X-thickness, outer.Max.Y-thickness)

	if inner.Dx() <= 0 || inner.Dy() <= 0 {
		draw.Draw(dst, outer, src, image.Point{}, draw.Src)
		return
	}

	bands := []image.Rectangle{
		image.Rect(outer.Min.X, outer.Min.Y, outer.Max.X, inner.Min.Y),
		image.Rect(outer.Min.X, inner.Max.Y, outer.Max.X, outer.Max.Y),
		image.Rect(outer.Min.X, inner.Min.Y, inner.Min.X, inner.Max.Y),
		image.Rect(inner.Max.X, inner.Min.Y, outer.Max.X, inner.Max.Y),
	}
	for _, band := range bands {
		draw.Draw(dst, band, src, image.Point{}, draw.Src)
	}
}

// drawLabel writes text with its baseline LabelOffset pixels above corner.
// The top of the glyphs never goes above row 0.
func drawLabel(dst *image.NRGBA, text string, corner image.Point) {
	face := basicfont.Face7x13
	ascent := face.Metrics().Ascent.Ceil()

	x := corner.X
	if x < 0 {
		x = 0
	}
	y := corner.Y - LabelOffset
	if y < ascent {
		y = ascent
	}

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(boxColor),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
