package auth

import (
	"context"
	"errors"

	"github.com/fenixedu/fenix-auth/middleware/gateware"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// DefaultContextKey is the fiber locals key of the authenticated principal
const DefaultContextKey = "principal"

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Success          bool              `json:"success"`
	Error            string            `json:"error"`
	StatusCode       int               `json:"status_code"`
	Code             string            `json:"code,omitempty"`
	ValidationErrors map[string]string `json:"validation_errors,omitempty"`
}

// RouteAuthenticator builds fiber middleware around a Gate
type RouteAuthenticator struct {
	gate         *Gate
	contextKey   string
	authScheme   string
	Logger       Logger
	ErrorHandler fiber.ErrorHandler
}

// NewHTTPAuthenticator returns a RouteAuthenticator. cfg may be nil.
func NewHTTPAuthenticator(gate *Gate, cfg Config, logger Logger, reporter ErrorReporter) *RouteAuthenticator {
	a := &RouteAuthenticator{
		gate:       gate,
		contextKey: DefaultContextKey,
		authScheme: DefaultAuthScheme,
		Logger:     normalizeLogger(logger),
	}
	if cfg != nil {
		if key := cfg.GetContextKey(); key != "" {
			a.contextKey = key
		}
		if scheme := cfg.GetAuthScheme(); scheme != "" {
			a.authScheme = scheme
		}
	}
	a.ErrorHandler = NewErrorHandler(a.Logger, reporter)
	return a
}

// ContextKey is the fiber locals key the principal is stored under.
func (a *RouteAuthenticator) ContextKey() string {
	return a.contextKey
}

// ProtectedRoute admits active identities holding one of the required roles.
// A nil set admits every active identity.
func (a *RouteAuthenticator) ProtectedRoute(required RoleSet) fiber.Handler {
	return a.middleware(func(ctx context.Context, token string) (any, error) {
		return a.gate.AuthenticateToken(ctx, token, required)
	})
}

// WaitingRoute admits any identity with a valid token whatever its status.
func (a *RouteAuthenticator) WaitingRoute() fiber.Handler {
	return a.middleware(func(ctx context.Context, token string) (any, error) {
		return a.gate.AuthenticateWaitingToken(ctx, token)
	})
}

func (a *RouteAuthenticator) middleware(checker gateware.Checker) fiber.Handler {
	return gateware.New(gateware.Config{
		Checker:    checker,
		ContextKey: a.contextKey,
		AuthScheme: a.authScheme,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if errors.Is(err, gateware.ErrTokenMissingOrMalformed) {
				err = unauthenticatedError(msgAuthRequired, err)
			}
			return a.ErrorHandler(c, err)
		},
		ContextEnricher: func(ctx context.Context, principal any) context.Context {
			p, _ := principal.(*Principal)
			return WithPrincipalContext(ctx, p)
		},
	})
}

// GetPrincipal returns the principal stored by the gate middleware.
func GetPrincipal(c *fiber.Ctx, key string) (*Principal, bool) {
	if key == "" {
		key = DefaultContextKey
	}
	p, ok := c.Locals(key).(*Principal)
	return p, ok && p != nil
}

// NewErrorHandler renders errors as ErrorResponse. Internal failures are
// handed to reporter.
func NewErrorHandler(logger Logger, reporter ErrorReporter) fiber.ErrorHandler {
	logger = normalizeLogger(logger)
	return func(c *fiber.Ctx, err error) error {
		richErr := ToRichError(err)
		status := StatusCodeOf(richErr)

		if status >= fiber.StatusInternalServerError {
			logger.Error("request %s %s failed: %v", c.Method(), c.Path(), err)
			if reporter != nil {
				reporter(err)
			}
		} else {
			logger.Debug(
				"request %s %s rejected: %s %s",
				c.Method(), c.Path(), richErr.Message, print.MaybePrettyJSON(richErr.Metadata),
			)
		}

		message := richErr.Message
		if status >= fiber.StatusInternalServerError {
			message = "Внутренняя ошибка сервера"
		}

		return c.Status(status).JSON(ErrorResponse{
			Success:          false,
			Error:            message,
			StatusCode:       status,
			Code:             richErr.TextCode,
			ValidationErrors: richErr.ValidationMap(),
		})
	}
}

// ToRichError coerces err into a *goerrors.Error.
func ToRichError(err error) *goerrors.Error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return goerrors.New(fiberErr.Message, goerrors.HTTPStatusToCategory(fiberErr.Code)).
			WithCode(fiberErr.Code).
			WithTextCode(goerrors.HTTPStatusToTextCode(fiberErr.Code))
	}

	return internalError(err, "An unexpected server error occurred")
}

// StatusCodeOf maps an error to its HTTP status.
func StatusCodeOf(richErr *goerrors.Error) int {
	if richErr == nil {
		return fiber.StatusInternalServerError
	}
	if richErr.Code != 0 {
		return richErr.Code
	}

	switch KindOf(richErr) {
	case KindUnauthenticated, KindInvalidToken, KindExpired, KindRevoked:
		return fiber.StatusUnauthorized
	case KindForbidden:
		return fiber.StatusForbidden
	case KindNotFound:
		return fiber.StatusNotFound
	case KindValidation, KindInvalidStateTransition:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
