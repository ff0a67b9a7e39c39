package infrastructure

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by a use case wraps exactly one of
// these so the transport can map it with errors.Is.
var (
	ErrValidation  = errors.New("validation error")
	ErrAuth        = errors.New("auth error")
	ErrForbidden   = errors.New("forbidden")
	ErrSize        = errors.New("size error")
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("backend unavailable")
)

var (
	ErrUserNotFound         = fmt.Errorf("user %w", ErrNotFound)
	ErrConversationNotFound = fmt.Errorf("conversation %w", ErrNotFound)
	ErrMessageNotFound      = fmt.Errorf("message %w", ErrNotFound)
	ErrAccountNotFound      = fmt.Errorf("account %w", ErrNotFound)
	ErrUserAlreadyExists    = fmt.Errorf("%w: email already registered", ErrAuth)
	ErrInvalidCredentials   = fmt.Errorf("%w: invalid email or password", ErrAuth)
	ErrNotParticipant       = fmt.Errorf("%w: %w: not a participant of this conversation", ErrAuth, ErrForbidden)

	ErrMissingToken = fmt.Errorf("%w: missing access token", ErrAuth)
	ErrInvalidToken = fmt.Errorf("%w: invalid access token", ErrAuth)
	ErrTokenExpired = fmt.Errorf("%w: access token has expired", ErrAuth)
)

func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func Size(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSize, fmt.Sprintf(format, args...))
}

// Unavailable marks err as a backend failure unless it already carries a
// class.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if Classified(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

func Classified(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrAuth) ||
		errors.Is(err, ErrSize) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUnavailable)
}
