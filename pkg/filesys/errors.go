package filesys

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"syscall"
)

// ErrorKind classifies transport failures
type ErrorKind int

const (
	KindTransport ErrorKind = iota
	KindNotFound
	KindPermission
	KindConflict
	KindConnectionLost
	KindDiskFull
	KindCancelled
)

// Sentinels usable with errors.Is against any *Error of the same kind
var (
	ErrTransport      = errors.New("transport error")
	ErrNotFound       = errors.New("not found")
	ErrPermission     = errors.New("permission denied")
	ErrConflict       = errors.New("already exists")
	ErrConnectionLost = errors.New("connection lost")
	ErrDiskFull       = errors.New("disk full")
	ErrCancelled      = errors.New("cancelled")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindPermission:
		return ErrPermission
	case KindConflict:
		return ErrConflict
	case KindConnectionLost:
		return ErrConnectionLost
	case KindDiskFull:
		return ErrDiskFull
	case KindCancelled:
		return ErrCancelled
	default:
		return ErrTransport
	}
}

func (k ErrorKind) String() string {
	return k.sentinel().Error()
}

// Error is returned by every Filesystem operation
type Error struct {
	Op   string
	Path string
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Kind)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Path, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// NewError builds an *Error of an explicit kind
func NewError(op, path string, kind ErrorKind, err error) *Error {
	return &Error{Op: op, Path: path, Kind: kind, Err: err}
}

// KindOf returns the kind of err, KindTransport for unclassified errors
func KindOf(err error) ErrorKind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return classify(err)
}

// Wrap classifies a raw error from the os or a network library. Errors that
// are already *Error pass through unchanged.
func Wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	return &Error{Op: op, Path: path, Kind: classify(err), Err: err}
}

func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	case errors.Is(err, fs.ErrNotExist):
		return KindNotFound
	case errors.Is(err, fs.ErrPermission):
		return KindPermission
	case errors.Is(err, fs.ErrExist):
		return KindConflict
	case errors.Is(err, syscall.ENOSPC):
		return KindDiskFull
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return KindConnectionLost
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindConnectionLost
	}
	return KindTransport
}
