package detections

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindDecode     ErrorKind = "decode"
	KindInference  ErrorKind = "inference"
	KindEncode     ErrorKind = "encode"
)

// ProcessingError is the single error type produced by the detection core.
// Kind tells the web layer how to surface it.
type ProcessingError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// IsKind reports whether any error in err's chain is a ProcessingError of kind.
func IsKind(err error, kind ErrorKind) bool {
	var perr *ProcessingError
	if errors.As(err, &perr) {
		return perr.Kind == kind
	}
	return false
}

func NewValidationError(message string) error {
	return &ProcessingError{Kind: KindValidation, Message: message}
}

func newDecodeError(message string, cause error) error {
	return &ProcessingError{Kind: KindDecode, Message: message, Cause: cause}
}

func newInferenceError(cause error) error {
	return &ProcessingError{Kind: KindInference, Message: "model inference failed", Cause: cause}
}

func newEncodeError(message string, cause error) error {
	return &ProcessingError{Kind: KindEncode, Message: message, Cause: cause}
}
