package reporter

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSchemaMismatch is returned when an existing log carries a different header row.
	ErrSchemaMismatch = errors.New("reports log header does not match schema")
	// ErrUnsupportedImage is returned for photos whose extension is not png, jpg or jpeg.
	ErrUnsupportedImage = errors.New("unsupported image type")
	// ErrImageExists is returned when a photo with the same name is already stored.
	ErrImageExists = errors.New("image already exists")
)

// ValidationError lists the form fields that failed validation. Nothing has been written when it is returned.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return "missing required field(s): " + strings.Join(e.Fields, ", ")
}

// ImageWriteError means the photo could not be stored; the submission was aborted.
type ImageWriteError struct {
	Path string
	Err  error
}

func (e *ImageWriteError) Error() string {
	return fmt.Sprintf("save image %s: %v", e.Path, e.Err)
}

func (e *ImageWriteError) Unwrap() error { return e.Err }

// LogAppendError means the record could not be appended and is lost.
type LogAppendError struct {
	ReportID string
	Err      error
}

func (e *LogAppendError) Error() string {
	return fmt.Sprintf("append report %s: %v", e.ReportID, e.Err)
}

func (e *LogAppendError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsSaveFailure reports whether err is an image or log write failure.
func IsSaveFailure(err error) bool {
	var iw *ImageWriteError
	var la *LogAppendError
	return errors.As(err, &iw) || errors.As(err, &la)
}
