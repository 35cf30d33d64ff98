package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

// Errno is a declared error: a stable AABBCCC code, the statuses it maps
// to on HTTP and gRPC, and an English and Chinese text.
//
// Declared values are shared; WithCause and the WithMessage variants
// return copies so a declaration is never mutated.
type Errno struct {
	Code      int        `json:"code"`
	HTTP      int        `json:"-"`
	GRPCCode  codes.Code `json:"-"`
	MessageEN string     `json:"message"`
	MessageZH string     `json:"message_zh,omitempty"`

	cause error
}

func (e *Errno) Error() string {
	msg := fmt.Sprintf("errno %d: %s", e.Code, e.MessageEN)
	if e.cause == nil {
		return msg
	}
	return msg + ": " + e.cause.Error()
}

func (e *Errno) Unwrap() error { return e.cause }

// Is matches any Errno with the same code, so a copy made by WithCause
// still satisfies errors.Is against the declaration.
func (e *Errno) Is(target error) bool {
	t, ok := target.(*Errno)
	return ok && t.Code == e.Code
}

// WithCause returns a copy wrapping cause.
func (e *Errno) WithCause(cause error) *Errno {
	c := *e
	c.cause = cause
	return &c
}

// WithMessage returns a copy with another English text.
func (e *Errno) WithMessage(msg string) *Errno {
	c := *e
	c.MessageEN = msg
	return &c
}

func (e *Errno) WithMessagef(format string, args ...any) *Errno {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// Message picks the text for lang. Any zh variant gets the Chinese text
// when there is one.
func (e *Errno) Message(lang string) string {
	switch lang {
	case "zh", "zh-CN", "zh_CN":
		if e.MessageZH != "" {
			return e.MessageZH
		}
	}
	return e.MessageEN
}

// HTTPStatus is HTTP, or 500 when unset.
func (e *Errno) HTTPStatus() int {
	if e.HTTP == 0 {
		return http.StatusInternalServerError
	}
	return e.HTTP
}

// GRPCStatus is GRPCCode, or Internal when unset.
func (e *Errno) GRPCStatus() codes.Code {
	if e.GRPCCode == codes.OK {
		return codes.Internal
	}
	return e.GRPCCode
}

// Format adds %+v, which prints the status mapping and then the cause
// chain one level per line.
func (e *Errno) Format(s fmt.State, verb rune) {
	switch {
	case verb == 'v' && s.Flag('+'):
		_, _ = fmt.Fprintf(s, "errno %d [HTTP %d, gRPC %s]: %s", e.Code, e.HTTPStatus(), e.GRPCStatus(), e.MessageEN)
		if e.cause != nil {
			_, _ = fmt.Fprintf(s, "\ncaused by: %+v", e.cause)
		}
	case verb == 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	default:
		_, _ = fmt.Fprint(s, e.Error())
	}
}

// FromError returns the first Errno in err's chain. Context deadlines and
// cancellations become ErrTimeout and ErrCanceled; anything else is
// wrapped in ErrInternal.
func FromError(err error) *Errno {
	if err == nil {
		return nil
	}
	var e *Errno
	if stderrors.As(err, &e) {
		return e
	}
	if e, ok := fromContext(err); ok {
		return e
	}
	return ErrInternal.WithCause(err)
}

// GetCode returns the code of the first Errno in err's chain, or -1.
func GetCode(err error) int {
	var e *Errno
	if !stderrors.As(err, &e) {
		return -1
	}
	return e.Code
}
