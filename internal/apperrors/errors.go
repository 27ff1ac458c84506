package apperrors

import (
	"errors"
	"strings"
)

type Kind string

const (
	// Validation failures. Each check of the input validator maps to exactly one kind.
	KindUnreachable       Kind = "unreachable"
	KindUnsupportedFormat Kind = "unsupported_format"
	KindMalformed         Kind = "malformed"

	// Conversion failures.
	KindToolMissing Kind = "tool_missing"
	KindCanceled    Kind = "canceled"
	KindConversion  Kind = "conversion"
)

type Error struct {
	Kind Kind
	// SafeMessage is intended for user-facing output and logs.
	SafeMessage string
	// Path is the file the error refers to, if any.
	Path string
	// Cause keeps the original internal error for troubleshooting.
	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if msg := strings.TrimSpace(e.SafeMessage); msg != "" {
		return msg
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return defaultSafeMessage(e.Kind)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsValidation reports whether the error kind belongs to the input validator.
func (e *Error) IsValidation() bool {
	if e == nil {
		return false
	}
	switch e.Kind {
	case KindUnreachable, KindUnsupportedFormat, KindMalformed:
		return true
	}
	return false
}

func defaultSafeMessage(kind Kind) string {
	switch kind {
	case KindUnreachable:
		return "The file could not be opened."
	case KindUnsupportedFormat:
		return "The file format is not supported."
	case KindMalformed:
		return "The video could not be read. It may be corrupt or incomplete."
	case KindToolMissing:
		return "ffmpeg was not found. Install it or set its path in the configuration."
	case KindCanceled:
		return "The conversion was canceled."
	case KindConversion:
		return "The conversion failed."
	default:
		return "Request failed."
	}
}

func New(kind Kind, safeMessage string, cause error) *Error {
	msg := strings.TrimSpace(safeMessage)
	if msg == "" {
		msg = defaultSafeMessage(kind)
	}
	return &Error{
		Kind:        kind,
		SafeMessage: msg,
		Cause:       cause,
	}
}

// WithPath returns a copy of e that records the file it refers to.
func (e *Error) WithPath(path string) *Error {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Path = path
	return &cp
}

func Unreachable(safeMessage string, err error) *Error {
	return New(KindUnreachable, safeMessage, err)
}

func UnsupportedFormat(safeMessage string, err error) *Error {
	return New(KindUnsupportedFormat, safeMessage, err)
}

func Malformed(safeMessage string, err error) *Error {
	return New(KindMalformed, safeMessage, err)
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return nil, false
	}
	return e, true
}

func KindOf(err error) (Kind, bool) {
	e, ok := As(err)
	if !ok {
		return "", false
	}
	return e.Kind, true
}

func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return e.Error()
	}
	return err.Error()
}
