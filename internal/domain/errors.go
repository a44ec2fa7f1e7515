package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced to the user.
type ErrorKind string

const (
	KindTranscription          ErrorKind = "TranscriptionError"
	KindClassification         ErrorKind = "ClassificationError"
	KindValidation             ErrorKind = "ValidationError"
	KindCalendarUnavailable    ErrorKind = "CalendarUnavailableError"
	KindNotificationDelivery   ErrorKind = "NotificationDeliveryError"
	KindEmailDelivery          ErrorKind = "EmailDeliveryError"
	KindClarificationExhausted ErrorKind = "ClarificationExhaustedError"
	KindPersistence            ErrorKind = "PersistenceError"
)

// Error is a classified failure. Two errors match with errors.Is when the
// target is a bare kind sentinel of the same Kind.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

var (
	ErrTranscription          = &Error{Kind: KindTranscription}
	ErrClassification         = &Error{Kind: KindClassification}
	ErrValidation             = &Error{Kind: KindValidation}
	ErrCalendarUnavailable    = &Error{Kind: KindCalendarUnavailable}
	ErrNotificationDelivery   = &Error{Kind: KindNotificationDelivery}
	ErrEmailDelivery          = &Error{Kind: KindEmailDelivery}
	ErrClarificationExhausted = &Error{Kind: KindClarificationExhausted}
	ErrPersistence            = &Error{Kind: KindPersistence}
)

func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return string(e.Kind)
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Op == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// UserMessage returns the text shown to users for a failure kind. It never
// includes provider detail.
func UserMessage(kind ErrorKind) string {
	switch kind {
	case KindTranscription:
		return "Sorry, I couldn't make out what you said. Please try again."
	case KindClassification:
		return "Sorry, I'm having trouble understanding requests right now. Please try again in a moment."
	case KindValidation:
		return "Sorry, some details of that request were missing or invalid."
	case KindCalendarUnavailable:
		return "Sorry, your calendar is unavailable right now."
	case KindNotificationDelivery:
		return "Sorry, the reminder could not be delivered."
	case KindEmailDelivery:
		return "Sorry, email delivery failed."
	case KindClarificationExhausted:
		return "Sorry, I could not understand your request. Please start again and tell me what you need."
	case KindPersistence:
		return "Sorry, something went wrong while saving your request."
	}
	return "Sorry, something went wrong."
}
