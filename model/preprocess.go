package model

import (
	"image"
	"runtime"
	"sync"
)

// Rows per worker below which packing stays on the calling goroutine.
const minRowsPerWorker = 64

// tensorPacker turns NRGBA images into uint8 NHWC (RGB) input buffers.
type tensorPacker struct {
	numWorkers int
	bufferPool *sync.Pool
}

func newTensorPacker() *tensorPacker {
	return &tensorPacker{
		numWorkers: runtime.GOMAXPROCS(0),
		bufferPool: &sync.Pool{
			New: func() interface{} {
				b := make([]uint8, 0)
				return &b
			},
		},
	}
}

// Pack returns a buffer of len w*h*3. The caller must hand it back with Put
// once the tensor built over it is destroyed.
func (p *tensorPacker) Pack(img *image.NRGBA) *[]uint8 {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	size := width * height * 3

	buf := p.bufferPool.Get().(*[]uint8)
	if cap(*buf) < size {
		*buf = make([]uint8, size)
	}
	*buf = (*buf)[:size]

	workers := p.numWorkers
	if height/minRowsPerWorker < workers {
		workers = height / minRowsPerWorker
	}
	if workers <= 1 {
		packRows(img, *buf, 0, height)
		return buf
	}

	rowsPerWorker := height / workers
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		start := w * rowsPerWorker
		end := start + rowsPerWorker
		if w == workers-1 {
			end = height
		}
		go func(start, end int) {
			defer wg.Done()
			packRows(img, *buf, start, end)
		}(start, end)
	}
	wg.Wait()

	return buf
}

func (p *tensorPacker) Put(buf *[]uint8) {
	p.bufferPool.Put(buf)
}

// packRows copies rows [start, end) dropping the alpha channel.
func packRows(img *image.NRGBA, dst []uint8, start, end int) {
	bounds := img.Bounds()
	width := bounds.Dx()
	for y := start; y < end; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+width*4]
		row := dst[y*width*3 : (y+1)*width*3]
		for x := 0; x < width; x++ {
			row[x*3] = src[x*4]
			row[x*3+1] = src[x*4+1]
			row[x*3+2] = src[x*4+2]
		}
	}
}
