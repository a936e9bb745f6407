package faults

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by how the sampler reacts to it.
type Kind int

const (
	// Transient failures are replaced by a sentinel value and polling continues.
	Transient Kind = iota
	// Malformed marks a single table line that could not be parsed.
	Malformed
	// Defect is a broken programming invariant. It is never recovered locally.
	Defect
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Malformed:
		return "malformed"
	case Defect:
		return "defect"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	ErrTransient = errors.New("transient read failure")
	ErrMalformed = errors.New("malformed line")
	ErrDefect    = errors.New("invariant violation")
)

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.String()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match an *Error against the sentinel of its kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransient:
		return e.Kind == Transient
	case ErrMalformed:
		return e.Kind == Malformed
	case ErrDefect:
		return e.Kind == Defect
	}
	return false
}

func NewTransient(op string, err error) error {
	return &Error{Kind: Transient, Op: op, Err: err}
}

func NewMalformed(op string, format string, args ...any) error {
	return &Error{Kind: Malformed, Op: op, Err: fmt.Errorf(format, args...)}
}

func NewDefect(op string, format string, args ...any) error {
	return &Error{Kind: Defect, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the kind of err. Errors that carry no kind are transient.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Transient
}

func IsDefect(err error) bool {
	return errors.Is(err, ErrDefect)
}
