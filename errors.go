package auth

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// ErrorKind identifies the class of failure surfaced by the core.
type ErrorKind string

const (
	KindUnauthenticated        ErrorKind = "UNAUTHENTICATED"
	KindForbidden              ErrorKind = "FORBIDDEN"
	KindInvalidStateTransition ErrorKind = "INVALID_STATE_TRANSITION"
	KindValidation             ErrorKind = "VALIDATION_ERROR"
	KindNotFound               ErrorKind = "NOT_FOUND"
	KindInvalidToken           ErrorKind = "INVALID_TOKEN"
	KindExpired                ErrorKind = "TOKEN_EXPIRED"
	KindRevoked                ErrorKind = "TOKEN_REVOKED"
	KindInternal               ErrorKind = "INTERNAL_ERROR"
)

// Kind sentinels. Every error built by this package chains to exactly one
// of them, so errors.Is works across wrapping.
var (
	ErrUnauthenticated        = errors.New("unauthenticated")
	ErrForbidden              = errors.New("forbidden")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrValidation             = errors.New("validation error")
	ErrNotFound               = errors.New("not found")
	ErrInvalidToken           = errors.New("invalid token")
	ErrTokenExpired           = errors.New("token expired")
	ErrTokenRevoked           = errors.New("token revoked")
)

var kindSentinels = []struct {
	kind     ErrorKind
	sentinel error
}{
	// token-level kinds first: a gate error wraps both Unauthenticated and its cause
	{KindRevoked, ErrTokenRevoked},
	{KindExpired, ErrTokenExpired},
	{KindInvalidToken, ErrInvalidToken},
	{KindUnauthenticated, ErrUnauthenticated},
	{KindForbidden, ErrForbidden},
	{KindInvalidStateTransition, ErrInvalidStateTransition},
	{KindValidation, ErrValidation},
	{KindNotFound, ErrNotFound},
}

// KindOf reports the kind attached to err. The outer text code wins, so a
// gate rejection caused by an expired token reports KindUnauthenticated.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.TextCode != "" {
		return ErrorKind(rich.TextCode)
	}

	for _, ks := range kindSentinels {
		if errors.Is(err, ks.sentinel) {
			return ks.kind
		}
	}

	return KindInternal
}

// IsKind reports whether err carries kind anywhere in its chain.
func IsKind(err error, kind ErrorKind) bool {
	if err == nil {
		return false
	}
	if KindOf(err) == kind {
		return true
	}
	for _, ks := range kindSentinels {
		if ks.kind == kind {
			return errors.Is(err, ks.sentinel)
		}
	}
	return false
}

func newKindError(source error, kind ErrorKind, category goerrors.Category, code int, message string) *goerrors.Error {
	rich := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(string(kind))
	rich.Source = source
	return rich
}

func unauthenticatedError(message string, cause error) *goerrors.Error {
	source := ErrUnauthenticated
	if cause != nil {
		source = fmt.Errorf("%w: %w", ErrUnauthenticated, cause)
	}
	return newKindError(source, KindUnauthenticated, goerrors.CategoryAuth, goerrors.CodeUnauthorized, message)
}

func forbiddenError(message string) *goerrors.Error {
	return newKindError(ErrForbidden, KindForbidden, goerrors.CategoryAuthz, goerrors.CodeForbidden, message)
}

func invalidTransitionError(message string) *goerrors.Error {
	return newKindError(ErrInvalidStateTransition, KindInvalidStateTransition, goerrors.CategoryValidation, goerrors.CodeBadRequest, message)
}

func validationError(message string) *goerrors.Error {
	return newKindError(ErrValidation, KindValidation, goerrors.CategoryValidation, goerrors.CodeBadRequest, message)
}

func notFoundError(message string) *goerrors.Error {
	return newKindError(ErrNotFound, KindNotFound, goerrors.CategoryNotFound, goerrors.CodeNotFound, message)
}

func invalidTokenError(message string, cause error) *goerrors.Error {
	source := ErrInvalidToken
	if cause != nil {
		source = fmt.Errorf("%w: %w", ErrInvalidToken, cause)
	}
	return newKindError(source, KindInvalidToken, goerrors.CategoryAuth, goerrors.CodeUnauthorized, message)
}

func expiredTokenError() *goerrors.Error {
	return newKindError(ErrTokenExpired, KindExpired, goerrors.CategoryAuth, goerrors.CodeUnauthorized, "token is expired")
}

func revokedTokenError() *goerrors.Error {
	return newKindError(ErrTokenRevoked, KindRevoked, goerrors.CategoryAuth, goerrors.CodeUnauthorized, "token has been revoked")
}

// fromValidation converts ozzo validation failures into a ValidationError
// carrying field level details.
func fromValidation(err error, message string) *goerrors.Error {
	if err == nil {
		return nil
	}
	rich := goerrors.FromOzzoValidation(err, message)
	if rich.Source == nil {
		rich.Source = ErrValidation
	} else {
		rich.Source = fmt.Errorf("%w: %w", ErrValidation, rich.Source)
	}
	return rich.
		WithCode(goerrors.CodeBadRequest).
		WithTextCode(string(KindValidation))
}

func internalError(err error, message string) *goerrors.Error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, message).
		WithCode(goerrors.CodeInternal).
		WithTextCode(string(KindInternal))
}
