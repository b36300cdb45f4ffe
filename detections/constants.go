package detections

const (
	DefaultConfThreshold = 0.5
	DefaultMaxBoxes      = 20
	DefaultLineThickness = 4
	DefaultJPEGQuality   = 95
	DefaultMaxPixels     = 1 << 26

	// LabelOffset is the distance in pixels between the label baseline and the box top.
	LabelOffset = 10
)
