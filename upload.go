package main

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/Tutortoise/weapon-detection-service/detections"
	"github.com/google/uuid"
)

// Multipart parts above this size spill to disk while parsing.
const multipartMemory = 8 << 20

type upload struct {
	Filename  string
	Extension string
	Data      []byte
}

// readUpload extracts and validates the "file" form field. Every failure is a
// validation error carrying the user-facing message.
func (s *AppState) readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxSizeBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isTooLarge(err) {
			return nil, detections.NewValidationError(MsgFileTooLarge)
		}
		return nil, detections.NewValidationError(MsgNoFileUploaded)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		// A file part submitted without a filename is parsed as a plain value.
		if _, ok := r.MultipartForm.Value["file"]; ok {
			return nil, detections.NewValidationError(MsgNoFileSelected)
		}
		return nil, detections.NewValidationError(MsgNoFileUploaded)
	}
	defer file.Close()

	if header.Filename == "" {
		return nil, detections.NewValidationError(MsgNoFileSelected)
	}

	ext := fileExtension(header.Filename)
	if ext == "" || !s.cfg.Upload.AllowsExtension(ext) {
		return nil, detections.NewValidationError(MsgInvalidFileType)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		if isTooLarge(err) {
			return nil, detections.NewValidationError(MsgFileTooLarge)
		}
		return nil, fmt.Errorf("read upload: %w", err)
	}

	return &upload{Filename: header.Filename, Extension: ext, Data: data}, nil
}

// persist writes the upload under dir with a random name and returns the path.
func (u *upload) persist(dir string) (string, error) {
	path := filepath.Join(dir, uuid.NewString()+"."+u.Extension)
	if err := os.WriteFile(path, u.Data, 0o600); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	return path, nil
}

func fileExtension(filename string) string {
	ext := filepath.Ext(filepath.Base(filename))
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || errors.Is(err, multipart.ErrMessageTooLarge) {
		return true
	}
	// Some multipart read paths flatten the cause into the message.
	return strings.Contains(err.Error(), "request body too large")
}
