package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "DETECTOR_"

// DefaultConfidenceThreshold is preset before the file and environment are
// read, so an explicit 0 survives.
const DefaultConfidenceThreshold = 0.5

// Config is the whole service configuration. It is built once in main and
// passed down explicitly.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Upload    UploadConfig    `yaml:"upload"`
	Model     ModelConfig     `yaml:"model"`
	Detection DetectionConfig `yaml:"detection"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type UploadConfig struct {
	Dir               string   `yaml:"dir"`
	MaxSizeBytes      int64    `yaml:"max_size_bytes"`
	MaxPixels         int64    `yaml:"max_pixels"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

type ModelConfig struct {
	Path              string `yaml:"path"`
	LabelMapPath      string `yaml:"label_map_path"`
	MaxClasses        int    `yaml:"max_classes"`
	SharedLibraryPath string `yaml:"shared_library_path"`
	PoolSize          int    `yaml:"pool_size"`
	IntraOpThreads    int    `yaml:"intra_op_threads"`
	InputName         string `yaml:"input_name"`
	BoxesOutput       string `yaml:"boxes_output"`
	ScoresOutput      string `yaml:"scores_output"`
	ClassesOutput     string `yaml:"classes_output"`
}

type DetectionConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	MaxBoxes            int     `yaml:"max_boxes"`
	LineThickness       int     `yaml:"line_thickness"`
	JPEGQuality         int     `yaml:"jpeg_quality"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configPath (optional), then .env, then DETECTOR_* environment
// variables, and finally fills defaults. It does not validate.
func Load(configPath string) (*Config, error) {
	cfg := Config{
		Detection: DetectionConfig{ConfidenceThreshold: DefaultConfidenceThreshold},
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration: %w", err)
		}
	}

	// A missing .env file is fine.
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 60 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}

	if c.Upload.Dir == "" {
		c.Upload.Dir = "uploads"
	}
	if c.Upload.MaxSizeBytes == 0 {
		c.Upload.MaxSizeBytes = 16 << 20
	}
	if c.Upload.MaxPixels == 0 {
		c.Upload.MaxPixels = 1 << 26
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		c.Upload.AllowedExtensions = []string{"png", "jpg", "jpeg"}
	}

	if c.Model.Path == "" {
		c.Model.Path = filepath.Join("model", "frozen_inference_graph.onnx")
	}
	if c.Model.LabelMapPath == "" {
		c.Model.LabelMapPath = filepath.Join("model", "label_map.pbtxt")
	}
	if c.Model.PoolSize == 0 {
		c.Model.PoolSize = 1
	}
	if c.Model.InputName == "" {
		c.Model.InputName = "image_tensor:0"
	}
	if c.Model.BoxesOutput == "" {
		c.Model.BoxesOutput = "detection_boxes:0"
	}
	if c.Model.ScoresOutput == "" {
		c.Model.ScoresOutput = "detection_scores:0"
	}
	if c.Model.ClassesOutput == "" {
		c.Model.ClassesOutput = "detection_classes:0"
	}

	if c.Detection.MaxBoxes == 0 {
		c.Detection.MaxBoxes = 20
	}
	if c.Detection.LineThickness == 0 {
		c.Detection.LineThickness = 4
	}
	if c.Detection.JPEGQuality == 0 {
		c.Detection.JPEGQuality = 95
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
}

// applyEnv overrides file values with DETECTOR_* variables.
func (c *Config) applyEnv() error {
	var errs []string

	setString := func(key string, dst *string) {
		if v, ok := lookupEnv(key); ok {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := lookupEnv(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s: %v", envPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	setInt64 := func(key string, dst *int64) {
		if v, ok := lookupEnv(key); ok {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s: %v", envPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	setFloat := func(key string, dst *float64) {
		if v, ok := lookupEnv(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s: %v", envPrefix, key, err))
				return
			}
			*dst = f
		}
	}

	setString("HOST", &c.Server.Host)
	setInt("PORT", &c.Server.Port)
	setString("UPLOAD_DIR", &c.Upload.Dir)
	setInt64("MAX_UPLOAD_BYTES", &c.Upload.MaxSizeBytes)
	setInt64("MAX_PIXELS", &c.Upload.MaxPixels)
	if v, ok := lookupEnv("ALLOWED_EXTENSIONS"); ok {
		c.Upload.AllowedExtensions = splitList(v)
	}
	setString("MODEL_PATH", &c.Model.Path)
	setString("LABEL_MAP_PATH", &c.Model.LabelMapPath)
	setString("ONNXRUNTIME_LIB", &c.Model.SharedLibraryPath)
	setInt("POOL_SIZE", &c.Model.PoolSize)
	setFloat("CONFIDENCE_THRESHOLD", &c.Detection.ConfidenceThreshold)
	setString("LOG_LEVEL", &c.Log.Level)
	setString("LOG_FORMAT", &c.Log.Format)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment overrides:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
