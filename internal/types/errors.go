package types

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrFileRead             = errors.New("file read error")
	ErrUnsupportedExtension = errors.New("unsupported extension")
	ErrParse                = errors.New("parse error")
	ErrEmbedding            = errors.New("embedding error")
	ErrStore                = errors.New("store error")
	ErrGeneration           = errors.New("generation error")
	ErrConfiguration        = errors.New("configuration error")
)

// Error attaches a kind and an operation to an underlying cause.
type Error struct {
	Kind error
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Wrap returns nil when err is nil.
func Wrap(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func WrapPath(kind error, op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}
