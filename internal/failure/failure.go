package failure

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a processing failure. The queue driver decides between
// deleting and retaining a message only by looking at the Kind.
type Kind int

const (
	KindDecode Kind = iota + 1
	KindProcessing
	KindExternal
	KindInvalidResponse
)

func (k Kind) String() string {
	switch k {
	case KindDecode:
		return "decode"
	case KindProcessing:
		return "processing"
	case KindExternal:
		return "external"
	case KindInvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

// Permanent reports whether a message failing with this kind can never succeed on redelivery.
func (k Kind) Permanent() bool {
	return k == KindDecode || k == KindProcessing || k == KindInvalidResponse
}

// Sentinels used by collaborators (notify API, channels) to mark their errors
// so call sites can classify them without knowing concrete error types.
var (
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrInvalidResponse    = errors.New("invalid response")
)

// Error is a classified failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s failure: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s failure: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(k Kind, op string, err error) error {
	if err == nil {
		err = errors.New(k.String())
	}
	return &Error{Kind: k, Op: op, Err: err}
}

func Decode(op string, err error) error          { return newError(KindDecode, op, err) }
func Processing(op string, err error) error      { return newError(KindProcessing, op, err) }
func External(op string, err error) error        { return newError(KindExternal, op, err) }
func InvalidResponse(op string, err error) error { return newError(KindInvalidResponse, op, err) }

// Decodef builds a decode failure from a format string.
func Decodef(format string, args ...any) error {
	return Decode("", fmt.Errorf(format, args...))
}

// Processingf builds a processing failure from a format string.
func Processingf(format string, args ...any) error {
	return Processing("", fmt.Errorf(format, args...))
}

// Anomaly marks an unexpected condition that is deliberately left
// unclassified, e.g. a recovered panic.
type Anomaly struct {
	Reason any
}

func (a *Anomaly) Error() string { return fmt.Sprintf("anomaly: %v", a.Reason) }

// KindOf returns the kind of the outermost classified failure in err's chain.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}

// Permanent reports whether err is a classified permanent failure.
func Permanent(err error) bool {
	k, ok := KindOf(err)
	return ok && k.Permanent()
}

// Retryable reports whether err is a classified transient failure.
func Retryable(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindExternal
}

// Classify maps a collaborator error onto the taxonomy:
// service unavailable is transient, a contract violation is an invalid
// response, everything else is a processing failure. Context cancellation
// is returned as is and stays unclassified.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := KindOf(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, ErrServiceUnavailable):
		return External(op, err)
	case errors.Is(err, ErrInvalidResponse):
		return InvalidResponse(op, err)
	default:
		return Processing(op, err)
	}
}

// Supersede returns the error the caller should act on after a step that
// follows prev. A non-nil next always replaces prev: the last failure wins.
func Supersede(prev, next error) error {
	if next != nil {
		return next
	}
	return prev
}
