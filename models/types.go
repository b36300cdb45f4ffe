package models

import (
	"image"
	"time"
)

// Box is a normalized bounding box in [ymin, xmin, ymax, xmax] order.
type Box [4]float32

func (b Box) YMin() float32 { return b[0] }
func (b Box) XMin() float32 { return b[1] }
func (b Box) YMax() float32 { return b[2] }
func (b Box) XMax() float32 { return b[3] }

// Detection is one candidate that survived the confidence threshold.
type Detection struct {
	Box       Box
	Score     float32
	ClassID   int
	ClassName string
}

// DetectionBatch keeps the model's emission order.
type DetectionBatch []Detection

// LabelMap maps class ids to display names. Read-only once built.
type LabelMap map[int]string

// UnknownClassName is used when a class id has no entry in the LabelMap.
const UnknownClassName = "N/A"

// Name resolves id, falling back to UnknownClassName.
func (l LabelMap) Name(id int) string {
	if name, ok := l[id]; ok {
		return name
	}
	return UnknownClassName
}

// RawDetections is the unfiltered output of one inference call. The three
// slices are parallel, one entry per candidate slot.
type RawDetections struct {
	Boxes    []Box
	Scores   []float32
	ClassIDs []int
}

// Len returns the number of candidate slots.
func (r RawDetections) Len() int {
	return len(r.Scores)
}

// AnnotatedResult pairs the filtered batch with an annotated copy of the input.
type AnnotatedResult struct {
	Batch DetectionBatch
	Image *image.NRGBA
}

type ProcessingTimings struct {
	RequestID string
	Decode    time.Duration
	Inference time.Duration
	Filter    time.Duration
	Annotate  time.Duration
	Encode    time.Duration
	Total     time.Duration
}
