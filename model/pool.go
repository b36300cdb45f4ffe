package model

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/Tutortoise/weapon-detection-service/models"
)

const (
	DefaultPoolSize       = 1
	DefaultAcquireTimeout = 30 * time.Second
)

var (
	ErrPoolClosed     = errors.New("pool is closed")
	ErrAcquireTimeout = errors.New("timeout waiting for available session")
)

// SessionPool hands out model sessions to concurrent requests. With size 1 all
// inference is serialized. It satisfies detections.Model.
type SessionPool struct {
	sessions       chan Runner
	size           int
	labels         models.LabelMap
	acquireTimeout time.Duration
	mu             sync.Mutex
	closed         bool
	metrics        *PoolMetrics
}

type PoolMetrics struct {
	mu              sync.RWMutex
	inUse           int
	totalAcquired   int64
	totalReleased   int64
	acquireFailures int64
	waitTime        time.Duration
	inferences      int64
	inferenceErrors int64
}

// PoolStats is a point-in-time copy of PoolMetrics.
type PoolStats struct {
	Size            int           `json:"pool_size"`
	InUse           int           `json:"sessions_in_use"`
	TotalAcquired   int64         `json:"total_acquired"`
	TotalReleased   int64         `json:"total_released"`
	AcquireFailures int64         `json:"acquire_failures"`
	WaitTime        time.Duration `json:"wait_time_ns"`
	Inferences      int64         `json:"inferences"`
	InferenceErrors int64         `json:"inference_errors"`
}

// NewSessionPool creates size sessions with factory. If any fails, the ones
// already created are destroyed.
func NewSessionPool(factory func() (Runner, error), size int, labels models.LabelMap, acquireTimeout time.Duration) (*SessionPool, error) {
	if size <= 0 {
		size = DefaultPoolSize
	}

	pool := &SessionPool{
		sessions:       make(chan Runner, size),
		size:           size,
		labels:         labels,
		acquireTimeout: acquireTimeout,
		metrics:        &PoolMetrics{},
	}

	for i := 0; i < size; i++ {
		session, err := factory()
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to initialize session %d: %w", i, err)
		}
		pool.sessions <- session
	}

	return pool, nil
}

func (p *SessionPool) Acquire(ctx context.Context) (Runner, error) {
	start := time.Now()
	defer func() {
		p.metrics.mu.Lock()
		p.metrics.waitTime += time.Since(start)
		p.metrics.mu.Unlock()
	}()

	var timeout <-chan time.Time
	if p.acquireTimeout > 0 {
		timer := time.NewTimer(p.acquireTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case session, ok := <-p.sessions:
		if !ok {
			return nil, ErrPoolClosed
		}
		p.metrics.mu.Lock()
		p.metrics.inUse++
		p.metrics.totalAcquired++
		p.metrics.mu.Unlock()
		return session, nil
	case <-timeout:
		p.recordAcquireFailure()
		return nil, ErrAcquireTimeout
	case <-ctx.Done():
		p.recordAcquireFailure()
		return nil, ctx.Err()
	}
}

func (p *SessionPool) Release(session Runner) {
	p.metrics.mu.Lock()
	p.metrics.inUse--
	p.metrics.totalReleased++
	p.metrics.mu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		session.Destroy()
		return
	}
	p.sessions <- session
}

// Infer runs img through one pooled session. ctx bounds only the wait for a
// free session.
func (p *SessionPool) Infer(ctx context.Context, img *image.NRGBA) (models.RawDetections, error) {
	session, err := p.Acquire(ctx)
	if err != nil {
		return models.RawDetections{}, err
	}
	defer p.Release(session)

	raw, err := session.Run(img)

	p.metrics.mu.Lock()
	p.metrics.inferences++
	if err != nil {
		p.metrics.inferenceErrors++
	}
	p.metrics.mu.Unlock()

	return raw, err
}

func (p *SessionPool) LabelMap() models.LabelMap {
	return p.labels
}

func (p *SessionPool) Size() int {
	return p.size
}

// Available is the number of idle sessions.
func (p *SessionPool) Available() int {
	return len(p.sessions)
}

func (p *SessionPool) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close destroys idle sessions now and busy ones when they are released.
// Later calls are no-ops.
func (p *SessionPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	close(p.sessions)

	var errs []error
	for session := range p.sessions {
		if err := session.Destroy(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *SessionPool) Stats() PoolStats {
	p.metrics.mu.RLock()
	defer p.metrics.mu.RUnlock()
	return PoolStats{
		Size:            p.size,
		InUse:           p.metrics.inUse,
		TotalAcquired:   p.metrics.totalAcquired,
		TotalReleased:   p.metrics.totalReleased,
		AcquireFailures: p.metrics.acquireFailures,
		WaitTime:        p.metrics.waitTime,
		Inferences:      p.metrics.inferences,
		InferenceErrors: p.metrics.inferenceErrors,
	}
}

func (p *SessionPool) recordAcquireFailure() {
	p.metrics.mu.Lock()
	p.metrics.acquireFailures++
	p.metrics.mu.Unlock()
}
