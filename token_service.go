package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	// DefaultAccessTokenTTL is the lifetime of access tokens
	DefaultAccessTokenTTL = 24 * time.Hour
	// DefaultRefreshTokenTTL is the lifetime of refresh tokens
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
)

// TokenPair is what login, registration and refresh hand back to clients
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// TokenService issues and verifies access/refresh tokens
type TokenService interface {
	IssueAccess(identity Identity, now time.Time) (string, error)
	IssueRefresh(identity Identity, now time.Time) (string, error)
	IssuePair(identity Identity, now time.Time) (TokenPair, error)
	Verify(token string, now time.Time) (*TokenClaims, error)
	VerifyAccess(token string, now time.Time) (*TokenClaims, error)
	VerifyRefresh(token string, now time.Time) (*TokenClaims, error)
	Refresh(refreshToken string, now time.Time) (TokenPair, error)
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	logger     Logger
}

var _ TokenService = (*TokenServiceImpl)(nil)

// NewTokenService creates a new TokenService instance
func NewTokenService(signingKey []byte, accessTTL, refreshTTL time.Duration, issuer string, logger Logger) *TokenServiceImpl {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}
	return &TokenServiceImpl{
		signingKey: signingKey,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		issuer:     issuer,
		logger:     normalizeLogger(logger),
	}
}

// NewTokenServiceFromConfig wires a TokenService from Config values
func NewTokenServiceFromConfig(cfg Config, logger Logger) *TokenServiceImpl {
	return NewTokenService(
		[]byte(cfg.GetSigningKey()),
		cfg.GetAccessTokenTTL(),
		cfg.GetRefreshTokenTTL(),
		cfg.GetIssuer(),
		logger,
	)
}

// AccessTTL returns the configured access token lifetime
func (ts *TokenServiceImpl) AccessTTL() time.Duration {
	return ts.accessTTL
}

// RefreshTTL returns the configured refresh token lifetime
func (ts *TokenServiceImpl) RefreshTTL() time.Duration {
	return ts.refreshTTL
}

// IssueAccess signs a short lived access token
func (ts *TokenServiceImpl) IssueAccess(identity Identity, now time.Time) (string, error) {
	return ts.issue(identity, TokenTypeAccess, now, ts.accessTTL)
}

// IssueRefresh signs a long lived refresh token
func (ts *TokenServiceImpl) IssueRefresh(identity Identity, now time.Time) (string, error) {
	return ts.issue(identity, TokenTypeRefresh, now, ts.refreshTTL)
}

// IssuePair signs a fresh access and refresh token for identity
func (ts *TokenServiceImpl) IssuePair(identity Identity, now time.Time) (TokenPair, error) {
	access, err := ts.IssueAccess(identity, now)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := ts.IssueRefresh(identity, now)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	}, nil
}

func (ts *TokenServiceImpl) issue(identity Identity, typ TokenType, now time.Time, ttl time.Duration) (string, error) {
	if identity == nil || identity.ID() == "" {
		return "", goerrors.New("identity is required", goerrors.CategoryBadInput)
	}

	claims := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiryAt(now, ttl)),
		},
		UID:       identity.ID(),
		UserEmail: identity.Email(),
		TokenType: typ,
	}

	return ts.SignClaims(claims)
}

// expiryAt rounds now+ttl up to the next whole second. exp is encoded with
// second precision and must never cut the lifetime short.
func expiryAt(now time.Time, ttl time.Duration) time.Time {
	exp := now.Add(ttl)
	if floor := exp.Truncate(time.Second); floor.Before(exp) {
		return floor.Add(time.Second)
	}
	return exp
}

// SignClaims signs arbitrary claims using the configured signing key.
func (ts *TokenServiceImpl) SignClaims(claims *TokenClaims) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Verify checks signature and expiry at now and returns the claims
func (ts *TokenServiceImpl) Verify(tokenString string, now time.Time) (*TokenClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
		// a token is expired once now is past exp, not at exp
		jwt.WithLeeway(time.Nanosecond),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("token service encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, expiredTokenError()
		}
		return nil, invalidTokenError("token is malformed or its signature is invalid", err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, invalidTokenError("unable to decode token claims", nil)
	}

	switch claims.TokenType {
	case TokenTypeAccess, TokenTypeRefresh:
	default:
		return nil, invalidTokenError("token type is missing or unknown", nil).
			WithMetadata(map[string]any{"type": claims.TokenType})
	}

	if claims.UserID() == "" {
		return nil, invalidTokenError("token has no subject", nil)
	}

	return claims, nil
}

// VerifyAccess verifies token and requires the access discriminator
func (ts *TokenServiceImpl) VerifyAccess(tokenString string, now time.Time) (*TokenClaims, error) {
	return ts.verifyType(tokenString, TokenTypeAccess, now)
}

// VerifyRefresh verifies token and requires the refresh discriminator
func (ts *TokenServiceImpl) VerifyRefresh(tokenString string, now time.Time) (*TokenClaims, error) {
	return ts.verifyType(tokenString, TokenTypeRefresh, now)
}

func (ts *TokenServiceImpl) verifyType(tokenString string, want TokenType, now time.Time) (*TokenClaims, error) {
	claims, err := ts.Verify(tokenString, now)
	if err != nil {
		return nil, err
	}
	if claims.Type() != want {
		return nil, invalidTokenError(fmt.Sprintf("expected %s token", want), nil).
			WithMetadata(map[string]any{
				"expected": want,
				"actual":   claims.Type(),
			})
	}
	return claims, nil
}

// Refresh exchanges a refresh token for a brand new pair
func (ts *TokenServiceImpl) Refresh(refreshToken string, now time.Time) (TokenPair, error) {
	claims, err := ts.VerifyRefresh(refreshToken, now)
	if err != nil {
		if IsKind(err, KindInvalidToken) {
			return TokenPair{}, err
		}
		return TokenPair{}, invalidTokenError("invalid refresh token", err)
	}

	return ts.IssuePair(claimsIdentity{claims: claims}, now)
}

type claimsIdentity struct {
	claims *TokenClaims
}

func (c claimsIdentity) ID() string    { return c.claims.UserID() }
func (c claimsIdentity) Email() string { return c.claims.Email() }
func (c claimsIdentity) Role() string  { return "" }
