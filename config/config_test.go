package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "uploads", cfg.Upload.Dir)
	assert.Equal(t, int64(16<<20), cfg.Upload.MaxSizeBytes)
	assert.Equal(t, int64(1<<26), cfg.Upload.MaxPixels)
	assert.Equal(t, []string{"png", "jpg", "jpeg"}, cfg.Upload.AllowedExtensions)
	assert.Equal(t, 0.5, cfg.Detection.ConfidenceThreshold)
	assert.Equal(t, 20, cfg.Detection.MaxBoxes)
	assert.Equal(t, 4, cfg.Detection.LineThickness)
	assert.Equal(t, 95, cfg.Detection.JPEGQuality)
	assert.Equal(t, 1, cfg.Model.PoolSize)
	assert.Equal(t, "image_tensor:0", cfg.Model.InputName)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlData := `
server:
  port: 8080
detection:
  max_boxes: 5
  confidence_threshold: 0.3
model:
  pool_size: 2
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0o644))

	t.Setenv("DETECTOR_PORT", "9090")
	t.Setenv("DETECTOR_ALLOWED_EXTENSIONS", "png, webp ,")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Detection.MaxBoxes)
	assert.InDelta(t, 0.3, cfg.Detection.ConfidenceThreshold, 1e-9)
	assert.Equal(t, 2, cfg.Model.PoolSize)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, []string{"png", "webp"}, cfg.Upload.AllowedExtensions)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ExplicitZeroThreshold(t *testing.T) {
	t.Setenv("DETECTOR_CONFIDENCE_THRESHOLD", "0")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.Detection.ConfidenceThreshold)
	assert.NoError(t, cfg.Validate())

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("detection:\n  confidence_threshold: 0\n"), 0o644))
	t.Setenv("DETECTOR_CONFIDENCE_THRESHOLD", "")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.Detection.ConfidenceThreshold)

	require.NoError(t, os.WriteFile(path, []byte("detection:\n  max_boxes: 3\n"), 0o644))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Detection.ConfidenceThreshold)
}

func TestLoad_MaxPixelsEnv(t *testing.T) {
	t.Setenv("DETECTOR_MAX_PIXELS", "4096")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(4096), cfg.Upload.MaxPixels)

	cfg.Upload.MaxPixels = -1
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload.max_pixels")
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("DETECTOR_POOL_SIZE", "many")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DETECTOR_POOL_SIZE")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Detection.ConfidenceThreshold = 1.5
	cfg.Detection.JPEGQuality = 101
	cfg.Model.PoolSize = -1
	cfg.Upload.AllowedExtensions = []string{".png"}
	cfg.Log.Format = "xml"

	err = cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "confidence_threshold")
	assert.Contains(t, msg, "jpeg_quality")
	assert.Contains(t, msg, "pool_size")
	assert.Contains(t, msg, "\".png\"")
	assert.Contains(t, msg, "log.format")
}

func TestUploadConfig_AllowsExtension(t *testing.T) {
	u := UploadConfig{AllowedExtensions: []string{"png", "jpg", "jpeg"}}
	assert.True(t, u.AllowsExtension("PNG"))
	assert.True(t, u.AllowsExtension("jpeg"))
	assert.False(t, u.AllowsExtension("txt"))
	assert.False(t, u.AllowsExtension(""))
}
