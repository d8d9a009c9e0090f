// Package synkerr defines the error taxonomy shared by every SynkNode component.
//
// Each failure is tagged with one kind sentinel. A *Error unwraps to both the
// kind and the underlying cause, so callers can test either one:
//
//	if errors.Is(err, synkerr.ErrStorage) { ... }
//	if errors.Is(err, fs.ErrPermission) { ... }
package synkerr

import (
	"errors"
	"fmt"
)

var (
	// ErrStorage marks disk or lock failures of the store.
	ErrStorage = errors.New("storage error")
	// ErrNetwork marks bind and accept failures.
	ErrNetwork = errors.New("network error")
	// ErrConfig marks malformed configuration.
	ErrConfig = errors.New("configuration error")
	// ErrSerialization marks a snapshot that is not valid JSON of string->string.
	ErrSerialization = errors.New("serialization error")
	// ErrIO marks generic I/O failures passed through from the OS.
	ErrIO = errors.New("io error")
)

// Error is a failure tagged with its kind and the operation that produced it.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%v: %s", e.Kind, e.Op)
	default:
		return e.Kind.Error()
	}
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Storage wraps err as a storage failure of op.
func Storage(op string, err error) error { return newError(ErrStorage, op, err) }

// Network wraps err as a network failure of op.
func Network(op string, err error) error { return newError(ErrNetwork, op, err) }

// Config wraps err as a configuration failure of op.
func Config(op string, err error) error { return newError(ErrConfig, op, err) }

// Serialization wraps err as a serialization failure of op.
func Serialization(op string, err error) error { return newError(ErrSerialization, op, err) }

// IO wraps err as a generic I/O failure of op.
func IO(op string, err error) error { return newError(ErrIO, op, err) }

// KindOf returns the kind sentinel carried by err, or nil if err is untagged.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}
