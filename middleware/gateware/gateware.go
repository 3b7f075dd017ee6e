package gateware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

var (
	defaultTokenLookup = "header:" + fiber.HeaderAuthorization
	// ErrTokenMissingOrMalformed is returned when no extractor yields a token
	ErrTokenMissingOrMalformed = errors.New("missing or malformed token")
)

// Checker resolves a raw token into the principal stored for the request.
// It is provided by the caller so this package does not depend on the
// token or identity implementation.
type Checker func(ctx context.Context, token string) (any, error)

// ValidationListener is invoked after the checker accepted the token.
type ValidationListener func(c *fiber.Ctx, principal any) error

type Config struct {
	Filter         func(*fiber.Ctx) bool
	SuccessHandler fiber.Handler
	ErrorHandler   fiber.ErrorHandler
	Checker        Checker
	// ContextKey is the fiber locals key the principal is stored under
	ContextKey string
	// TokenKey is the fiber locals key the raw token is stored under
	TokenKey    string
	TokenLookup string
	AuthScheme  string

	// ContextEnricher propagates the principal to the request's standard
	// context, see fiber.Ctx.UserContext.
	ContextEnricher func(ctx context.Context, principal any) context.Context

	ValidationListeners []ValidationListener
}

// New returns the gate middleware.
func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)
	extractors := cfg.getExtractors()

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		raw, err := ExtractRawToken(c, extractors)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		principal, err := cfg.Checker(c.UserContext(), raw)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		if err := cfg.runValidationListeners(c, principal); err != nil {
			return cfg.ErrorHandler(c, err)
		}

		c.Locals(cfg.ContextKey, principal)
		c.Locals(cfg.TokenKey, raw)

		if cfg.ContextEnricher != nil {
			c.SetUserContext(cfg.ContextEnricher(c.UserContext(), principal))
		}

		return cfg.SuccessHandler(c)
	}
}

// ExtractRawToken returns the first token any extractor yields.
func ExtractRawToken(c *fiber.Ctx, extractors []Extractor) (string, error) {
	var raw string
	err := ErrTokenMissingOrMalformed

	for _, extractor := range extractors {
		raw, err = extractor(c)
		if raw != "" && err == nil {
			break
		}
	}

	return raw, err
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *fiber.Ctx, err error) error {
			if errors.Is(err, ErrTokenMissingOrMalformed) {
				return c.Status(fiber.StatusUnauthorized).SendString(ErrTokenMissingOrMalformed.Error())
			}
			return c.Status(fiber.StatusUnauthorized).SendString("Invalid or expired token")
		}
	}

	if cfg.Checker == nil {
		panic("AUTH: gate middleware configuration: Checker is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.TokenKey == "" {
		cfg.TokenKey = "token"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

func (cfg *Config) getExtractors() []Extractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

func (cfg *Config) runValidationListeners(c *fiber.Ctx, principal any) error {
	for _, listener := range cfg.ValidationListeners {
		if listener == nil {
			continue
		}
		if err := listener(c, principal); err != nil {
			return err
		}
	}
	return nil
}

// GetExtractors parses a lookup such as
// "header:Authorization,cookie:token,query:access_token,param:token".
func GetExtractors(tokenLookup string, authSchemes ...string) []Extractor {
	extractors := make([]Extractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 && authSchemes[0] != "" {
		authScheme = strings.TrimSpace(authSchemes[0])
	}

	for _, rootPart := range strings.Split(tokenLookup, ",") {
		parts := strings.SplitN(strings.TrimSpace(rootPart), ":", 2)
		if len(parts) != 2 {
			continue
		}
		source, name := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

		switch source {
		case "header":
			extractors = append(extractors, tokenFromHeader(name, authScheme))
		case "query":
			extractors = append(extractors, tokenFromQuery(name))
		case "param":
			extractors = append(extractors, tokenFromParam(name))
		case "cookie":
			extractors = append(extractors, tokenFromCookie(name))
		}
	}

	return extractors
}

type Extractor func(c *fiber.Ctx) (string, error)

// ParseAuthorization returns the credentials of an Authorization header
// value. The scheme is matched case insensitively and defaults to Bearer.
func ParseAuthorization(header, scheme string) (string, bool) {
	if scheme == "" {
		scheme = "Bearer"
	}
	header = strings.TrimSpace(header)
	l := len(scheme)
	if len(header) <= l+1 || !strings.EqualFold(header[:l], scheme) || header[l] != ' ' {
		return "", false
	}
	token := strings.TrimSpace(header[l+1:])
	return token, token != ""
}

// tokenFromHeader returns a function that extracts token from the request header.
func tokenFromHeader(header string, authScheme string) Extractor {
	return func(c *fiber.Ctx) (string, error) {
		if token, ok := ParseAuthorization(c.Get(header), authScheme); ok {
			return token, nil
		}
		return "", ErrTokenMissingOrMalformed
	}
}

// tokenFromQuery returns a function that extracts token from the query string.
func tokenFromQuery(param string) Extractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Query(param)
		if token == "" {
			return "", ErrTokenMissingOrMalformed
		}
		return token, nil
	}
}

// tokenFromParam returns a function that extracts token from the url param string.
func tokenFromParam(param string) Extractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Params(param)
		if token == "" {
			return "", ErrTokenMissingOrMalformed
		}
		return token, nil
	}
}

// tokenFromCookie returns a function that extracts token from the named cookie.
func tokenFromCookie(name string) Extractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrTokenMissingOrMalformed
		}
		return token, nil
	}
}
