package failure

import (
	"errors"
	"fmt"
)

// Kind - класс ошибки, видимый пользователю
type Kind string

const (
	KindTransport  Kind = "transport"
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not-found"
	KindConflict   Kind = "conflict"
)

// Сентинелы для errors.Is
var (
	ErrTransport  = &Error{Kind: KindTransport}
	ErrValidation = &Error{Kind: KindValidation}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrConflict   = &Error{Kind: KindConflict}
)

// Error - классифицированная ошибка. Message предназначено для показа пользователю.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is сравнивает только Kind, поэтому errors.Is(err, ErrTransport) работает для любой транспортной ошибки
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func Transport(op string, err error) error {
	return &Error{Kind: KindTransport, Op: op, Message: "request failed", Err: err}
}

func Transportf(op string, format string, args ...any) error {
	return &Error{Kind: KindTransport, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Validation(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

func NotFound(message string) error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Conflict(message string) error {
	return &Error{Kind: KindConflict, Message: message}
}

// KindOf возвращает класс ошибки; неклассифицированные ошибки считаются транспортными
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindTransport
}

// Message возвращает текст для пользователя, либо fallback если текста нет
func Message(err error, fallback string) string {
	var fe *Error
	if errors.As(err, &fe) && fe.Kind != KindTransport && fe.Message != "" {
		return fe.Message
	}
	return fallback
}
