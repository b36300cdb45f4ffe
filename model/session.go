package model

import (
	"fmt"
	"image"
	"runtime"

	"github.com/Tutortoise/weapon-detection-service/models"
	ort "github.com/yalue/onnxruntime_go"
)

// SessionConfig names the model file and the graph's tensor names.
type SessionConfig struct {
	ModelPath      string
	InputName      string
	BoxesOutput    string
	ScoresOutput   string
	ClassesOutput  string
	IntraOpThreads int
}

// Runner executes one forward pass. A Runner is used by one goroutine at a time.
type Runner interface {
	Run(img *image.NRGBA) (models.RawDetections, error)
	Destroy() error
}

// Session is one ONNX Runtime session over a detection graph taking a
// uint8 [1, H, W, 3] image and producing boxes, scores and classes.
type Session struct {
	session *ort.DynamicAdvancedSession
	packer  *tensorPacker
}

func NewSession(cfg SessionConfig) (*Session, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()

	threads := cfg.IntraOpThreads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	if err := options.SetIntraOpNumThreads(threads); err != nil {
		return nil, fmt.Errorf("error setting intra-op threads: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.BoxesOutput, cfg.ScoresOutput, cfg.ClassesOutput},
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	return &Session{session: session, packer: newTensorPacker()}, nil
}

func (s *Session) Run(img *image.NRGBA) (models.RawDetections, error) {
	bounds := img.Bounds()
	buf := s.packer.Pack(img)
	defer s.packer.Put(buf)

	input, err := ort.NewTensor(ort.NewShape(1, int64(bounds.Dy()), int64(bounds.Dx()), 3), *buf)
	if err != nil {
		return models.RawDetections{}, fmt.Errorf("create input tensor: %w", err)
	}
	defer input.Destroy()

	outputs := make([]ort.Value, 3)
	if err := s.session.Run([]ort.Value{input}, outputs); err != nil {
		return models.RawDetections{}, fmt.Errorf("run session: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	boxes, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return models.RawDetections{}, fmt.Errorf("unexpected boxes output type %T", outputs[0])
	}
	scores, ok := outputs[1].(*ort.Tensor[float32])
	if !ok {
		return models.RawDetections{}, fmt.Errorf("unexpected scores output type %T", outputs[1])
	}
	classes, ok := outputs[2].(*ort.Tensor[float32])
	if !ok {
		return models.RawDetections{}, fmt.Errorf("unexpected classes output type %T", outputs[2])
	}

	return decodeOutputs(boxes.GetData(), scores.GetData(), classes.GetData())
}

// decodeOutputs copies flat [N*4], [N], [N] arrays out of tensor memory.
func decodeOutputs(boxData, scoreData, classData []float32) (models.RawDetections, error) {
	n := len(scoreData)
	if len(boxData) != n*4 || len(classData) != n {
		return models.RawDetections{}, fmt.Errorf(
			"inconsistent output sizes: boxes=%d scores=%d classes=%d", len(boxData), n, len(classData))
	}

	raw := models.RawDetections{
		Boxes:    make([]models.Box, n),
		Scores:   make([]float32, n),
		ClassIDs: make([]int, n),
	}
	copy(raw.Scores, scoreData)
	for i := 0; i < n; i++ {
		copy(raw.Boxes[i][:], boxData[i*4:i*4+4])
		raw.ClassIDs[i] = int(classData[i])
	}
	return raw, nil
}

func (s *Session) Destroy() error {
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	return err
}
