package detections

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/Tutortoise/weapon-detection-service/logger"
	"github.com/Tutortoise/weapon-detection-service/models"
)

// Model is the inference backend consumed by the pipeline. Implementations must
// be safe for concurrent use and must treat img as read-only.
type Model interface {
	Infer(ctx context.Context, img *image.NRGBA) (models.RawDetections, error)
	LabelMap() models.LabelMap
	Close() error
}

type PipelineConfig struct {
	ConfThreshold float32
	MaxBoxes      int
	LineThickness int
	JPEGQuality   int
	// MaxPixels bounds the decoded image area; <= 0 disables the bound.
	MaxPixels int64
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		ConfThreshold: DefaultConfThreshold,
		MaxBoxes:      DefaultMaxBoxes,
		LineThickness: DefaultLineThickness,
		JPEGQuality:   DefaultJPEGQuality,
		MaxPixels:     DefaultMaxPixels,
	}
}

// Pipeline runs infer → filter → annotate over one shared Model.
// Only Model.Infer may block on shared state; the remaining steps are request-local.
type Pipeline struct {
	model  Model
	cfg    PipelineConfig
	logger *logger.Logger
}

// Output is what the web layer serializes for a single request.
type Output struct {
	Batch         models.DetectionBatch
	AnnotatedJPEG []byte
	Width, Height int
}

func NewPipeline(model Model, cfg PipelineConfig, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Pipeline{model: model, cfg: cfg, logger: log}
}

// Run detects objects in img and returns the filtered batch with an annotated copy.
// ctx only bounds the wait for the model; a started inference is never interrupted.
// Failed inference is returned as-is and never retried.
func (p *Pipeline) Run(ctx context.Context, img *image.NRGBA, timings *models.ProcessingTimings) (*models.AnnotatedResult, error) {
	if timings == nil {
		timings = &models.ProcessingTimings{}
	}
	if img == nil || img.Bounds().Empty() {
		return nil, newDecodeError("invalid image", errEmptyImage)
	}

	inferStart := time.Now()
	raw, err := p.model.Infer(ctx, img)
	timings.Inference = time.Since(inferStart)
	if err != nil {
		return nil, newInferenceError(err)
	}

	filterStart := time.Now()
	batch, err := Filter(raw, p.model.LabelMap(), p.cfg.ConfThreshold)
	timings.Filter = time.Since(filterStart)
	if err != nil {
		return nil, newInferenceError(err)
	}

	annotateStart := time.Now()
	annotated := Annotate(img, batch, AnnotateOptions{
		MaxBoxes:      p.cfg.MaxBoxes,
		LineThickness: p.cfg.LineThickness,
	})
	timings.Annotate = time.Since(annotateStart)

	return &models.AnnotatedResult{Batch: batch, Image: annotated}, nil
}

// Process is the byte-level entry point: decode, Run, then a single JPEG encode.
func (p *Pipeline) Process(ctx context.Context, data []byte, timings *models.ProcessingTimings) (*Output, error) {
	if timings == nil {
		timings = &models.ProcessingTimings{}
	}
	start := time.Now()

	decodeStart := time.Now()
	img, err := DecodeLimited(data, p.cfg.MaxPixels)
	timings.Decode = time.Since(decodeStart)
	if err != nil {
		return nil, err
	}

	result, err := p.Run(ctx, img, timings)
	if err != nil {
		return nil, err
	}

	encodeStart := time.Now()
	encoded, err := EncodeJPEG(result.Image, p.cfg.JPEGQuality)
	timings.Encode = time.Since(encodeStart)
	if err != nil {
		return nil, err
	}

	timings.Total = time.Since(start)
	p.logTimings(timings, len(result.Batch))

	bounds := result.Image.Bounds()
	return &Output{
		Batch:         result.Batch,
		AnnotatedJPEG: encoded,
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
	}, nil
}

// Close releases the model.
func (p *Pipeline) Close() error {
	if p.model == nil {
		return errors.New("pipeline has no model")
	}
	return p.model.Close()
}

func (p *Pipeline) logTimings(t *models.ProcessingTimings, count int) {
	p.logger.Debug("Processing times",
		"request_id", t.RequestID,
		"detections", count,
		"decode", t.Decode,
		"inference", t.Inference,
		"filter", t.Filter,
		"annotate", t.Annotate,
		"encode", t.Encode,
		"total", t.Total,
	)
}
