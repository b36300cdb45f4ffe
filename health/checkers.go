package health

import (
	"context"
	"fmt"
	"os"
	"time"
)

// PoolStatus is the subset of the session pool the model checker reads.
type PoolStatus interface {
	Closed() bool
	Size() int
	Available() int
}

// ModelChecker reports whether a model session pool is loaded and open.
type ModelChecker struct {
	pool    PoolStatus
	details map[string]interface{}
}

// NewModelChecker accepts a nil pool, which reports the model as not loaded.
// details are copied into every check.
func NewModelChecker(pool PoolStatus, details map[string]interface{}) *ModelChecker {
	return &ModelChecker{pool: pool, details: details}
}

func (c *ModelChecker) Name() string {
	return "model"
}

func (c *ModelChecker) Check(ctx context.Context) Check {
	check := Check{
		Name:      c.Name(),
		Timestamp: time.Now(),
		Details:   make(map[string]interface{}, len(c.details)+2),
	}
	for k, v := range c.details {
		check.Details[k] = v
	}

	if c.pool == nil {
		check.Status = StatusUnhealthy
		check.Message = "Model not loaded"
		return check
	}
	if c.pool.Closed() {
		check.Status = StatusUnhealthy
		check.Message = "Model session pool is closed"
		return check
	}

	check.Details["pool_size"] = c.pool.Size()
	check.Details["available_sessions"] = c.pool.Available()
	check.Status = StatusHealthy
	check.Message = "Model loaded"
	return check
}

// UploadDirChecker verifies the upload directory exists and is writable.
type UploadDirChecker struct {
	dir string
}

func NewUploadDirChecker(dir string) *UploadDirChecker {
	return &UploadDirChecker{dir: dir}
}

func (c *UploadDirChecker) Name() string {
	return "upload_dir"
}

func (c *UploadDirChecker) Check(ctx context.Context) Check {
	check := Check{
		Name:      c.Name(),
		Timestamp: time.Now(),
		Details:   map[string]interface{}{"path": c.dir},
	}

	info, err := os.Stat(c.dir)
	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = fmt.Sprintf("Upload directory unavailable: %v", err)
		return check
	}
	if !info.IsDir() {
		check.Status = StatusUnhealthy
		check.Message = "Upload path is not a directory"
		return check
	}

	probe, err := os.CreateTemp(c.dir, ".health-*")
	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = fmt.Sprintf("Upload directory not writable: %v", err)
		return check
	}
	probe.Close()
	os.Remove(probe.Name())

	check.Status = StatusHealthy
	check.Message = "Upload directory writable"
	return check
}
