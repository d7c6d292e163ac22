package document

import (
	"fmt"

	"github.com/joseph-ayodele/hwp-analyzer/internal/common"
)

// ErrorKind classifies fatal extraction failures.
type ErrorKind string

const (
	KindUnreadable        ErrorKind = "unreadable"
	KindUnsupportedFormat ErrorKind = "unsupported_format"
	KindDependencyMissing ErrorKind = "dependency_missing"
)

// ExtractionError is returned when a document cannot be processed at all.
// It matches common.ErrInvalidInput, common.ErrUnsupported or
// common.ErrDependency under errors.Is, as well as its cause.
type ExtractionError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	prefix := "extract"
	if e.Path != "" {
		prefix = "extract " + e.Path
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Kind)
}

func (e *ExtractionError) Unwrap() []error {
	errs := []error{e.sentinel()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Code is the API error code for this failure.
func (e *ExtractionError) Code() string {
	switch e.Kind {
	case KindUnsupportedFormat:
		return "UNSUPPORTED_FILE_TYPE"
	case KindDependencyMissing:
		return "DEPENDENCY_MISSING"
	default:
		return "UNREADABLE_FILE"
	}
}

func (e *ExtractionError) sentinel() error {
	switch e.Kind {
	case KindUnsupportedFormat:
		return common.ErrUnsupported
	case KindDependencyMissing:
		return common.ErrDependency
	default:
		return common.ErrInvalidInput
	}
}

func unreadable(path string, err error) error {
	return &ExtractionError{Kind: KindUnreadable, Path: path, Err: err}
}

func unsupported(path string, err error) error {
	return &ExtractionError{Kind: KindUnsupportedFormat, Path: path, Err: err}
}
