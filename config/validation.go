package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errors []string

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errors = append(errors, fmt.Sprintf("server.port must be between 0 and 65535, got: %d", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		errors = append(errors, "server timeouts must be >= 0")
	}

	if c.Upload.Dir == "" {
		errors = append(errors, "upload.dir is required")
	}
	if c.Upload.MaxSizeBytes <= 0 {
		errors = append(errors, fmt.Sprintf("upload.max_size_bytes must be > 0, got: %d", c.Upload.MaxSizeBytes))
	}
	if c.Upload.MaxPixels <= 0 {
		errors = append(errors, fmt.Sprintf("upload.max_pixels must be > 0, got: %d", c.Upload.MaxPixels))
	}
	for _, ext := range c.Upload.AllowedExtensions {
		if ext == "" || strings.Contains(ext, ".") {
			errors = append(errors, fmt.Sprintf("invalid upload extension %q (use e.g. \"png\")", ext))
		}
	}

	if c.Model.Path == "" {
		errors = append(errors, "model.path is required")
	}
	if c.Model.LabelMapPath == "" {
		errors = append(errors, "model.label_map_path is required")
	}
	if c.Model.PoolSize <= 0 {
		errors = append(errors, fmt.Sprintf("model.pool_size must be > 0, got: %d", c.Model.PoolSize))
	}
	if c.Model.MaxClasses < 0 {
		errors = append(errors, fmt.Sprintf("model.max_classes must be >= 0, got: %d", c.Model.MaxClasses))
	}

	if c.Detection.ConfidenceThreshold < 0 || c.Detection.ConfidenceThreshold >= 1 {
		errors = append(errors, fmt.Sprintf("detection.confidence_threshold must be in [0, 1), got: %.2f", c.Detection.ConfidenceThreshold))
	}
	if c.Detection.MaxBoxes <= 0 {
		errors = append(errors, fmt.Sprintf("detection.max_boxes must be > 0, got: %d", c.Detection.MaxBoxes))
	}
	if c.Detection.LineThickness <= 0 {
		errors = append(errors, fmt.Sprintf("detection.line_thickness must be > 0, got: %d", c.Detection.LineThickness))
	}
	if c.Detection.JPEGQuality < 1 || c.Detection.JPEGQuality > 100 {
		errors = append(errors, fmt.Sprintf("detection.jpeg_quality must be between 1 and 100, got: %d", c.Detection.JPEGQuality))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errors = append(errors, fmt.Sprintf("invalid log.level: %s (must be: debug, info, warn, error, fatal)", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errors = append(errors, fmt.Sprintf("invalid log.format: %s (must be: text or json)", c.Log.Format))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}
	return nil
}

// AllowsExtension reports whether ext (without the dot) is an accepted upload type.
// The comparison is case-insensitive.
func (u UploadConfig) AllowsExtension(ext string) bool {
	for _, allowed := range u.AllowedExtensions {
		if strings.EqualFold(allowed, ext) {
			return true
		}
	}
	return false
}
