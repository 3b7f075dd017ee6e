package auth

import (
	"context"
	"time"

	"github.com/fenixedu/fenix-auth/middleware/gateware"
	"github.com/google/uuid"
)

// DefaultAuthScheme is the scheme expected in the Authorization header
const DefaultAuthScheme = "Bearer"

// Principal is the outcome of a successful gate pass.
type Principal struct {
	User   *User
	Claims *TokenClaims
	Token  string
}

// Gate composes token verification, revocation, identity lookup, status
// and role checks. The first failing step decides the error.
type Gate struct {
	tokens   TokenService
	denylist Denylist
	users    IdentityLoader
	scheme   string
	now      func() time.Time
	sink     ActivitySink
	logger   Logger
}

// GateOption customizes a Gate.
type GateOption func(*Gate)

// WithGateClock injects a custom clock (useful for tests).
func WithGateClock(clock func() time.Time) GateOption {
	return func(g *Gate) {
		if clock != nil {
			g.now = clock
		}
	}
}

// WithGateActivitySink publishes gate rejections to sink.
func WithGateActivitySink(sink ActivitySink) GateOption {
	return func(g *Gate) {
		g.sink = normalizeActivitySink(sink)
	}
}

// WithGateLogger sets the gate logger.
func WithGateLogger(logger Logger) GateOption {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithGateAuthScheme overrides the expected Authorization scheme.
func WithGateAuthScheme(scheme string) GateOption {
	return func(g *Gate) {
		if scheme != "" {
			g.scheme = scheme
		}
	}
}

// NewGate returns a request authentication gate.
func NewGate(tokens TokenService, denylist Denylist, users IdentityLoader, opts ...GateOption) *Gate {
	g := &Gate{
		tokens:   tokens,
		denylist: denylist,
		users:    users,
		scheme:   DefaultAuthScheme,
		now:      time.Now,
		sink:     noopActivitySink{},
		logger:   defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// ExtractBearer returns the credentials of an Authorization header value.
// The scheme is matched case insensitively.
func ExtractBearer(header, scheme string) (string, bool) {
	return gateware.ParseAuthorization(header, scheme)
}

// Authenticate runs the full gate against an Authorization header value.
func (g *Gate) Authenticate(ctx context.Context, authorizationHeader string, required RoleSet) (*Principal, error) {
	token, ok := ExtractBearer(authorizationHeader, g.scheme)
	if !ok {
		return nil, g.reject(ctx, "missing_token", "", unauthenticatedError(msgAuthRequired, nil))
	}
	return g.AuthenticateToken(ctx, token, required)
}

// AuthenticateToken runs the full gate against a raw access token.
func (g *Gate) AuthenticateToken(ctx context.Context, token string, required RoleSet) (*Principal, error) {
	p, err := g.identify(ctx, token)
	if err != nil {
		return nil, err
	}

	if err := ensureActive(p.User); err != nil {
		return nil, g.reject(ctx, "inactive", p.User.ID.String(), err)
	}

	if !Authorize(p.User.Role, required) {
		return nil, g.reject(ctx, "role", p.User.ID.String(), forbiddenError(msgNotEnoughRight).
			WithMetadata(map[string]any{
				"role":     p.User.Role,
				"required": required.Roles(),
			}))
	}

	return p, nil
}

// AuthenticateWaiting is the weaker gate used by endpoints that must be
// reachable before approval. It skips the account status check.
func (g *Gate) AuthenticateWaiting(ctx context.Context, authorizationHeader string) (*Principal, error) {
	token, ok := ExtractBearer(authorizationHeader, g.scheme)
	if !ok {
		return nil, g.reject(ctx, "missing_token", "", unauthenticatedError(msgAuthRequired, nil))
	}
	return g.AuthenticateWaitingToken(ctx, token)
}

// AuthenticateWaitingToken is AuthenticateWaiting for a raw access token.
func (g *Gate) AuthenticateWaitingToken(ctx context.Context, token string) (*Principal, error) {
	return g.identify(ctx, token)
}

// identify covers verification, revocation and identity lookup.
func (g *Gate) identify(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, g.reject(ctx, "missing_token", "", unauthenticatedError(msgAuthRequired, nil))
	}

	claims, err := g.tokens.VerifyAccess(token, g.now())
	if err != nil {
		return nil, g.reject(ctx, "token", "", unauthenticatedError("Невалидный токен", err))
	}

	if g.denylist != nil {
		revoked, err := g.denylist.IsRevoked(ctx, token)
		if err != nil {
			g.logger.Error("gate denylist lookup failed: %v", err)
			return nil, internalError(err, "failed to check token revocation")
		}
		if revoked {
			return nil, g.reject(ctx, "revoked", claims.UserID(), unauthenticatedError("Токен отозван", revokedTokenError()))
		}
	}

	id, err := uuid.Parse(claims.UserID())
	if err != nil {
		return nil, g.reject(ctx, "token", "", unauthenticatedError("Невалидный токен", invalidTokenError("token subject is not a valid id", err)))
	}

	user, err := g.users.GetByID(ctx, id)
	if err != nil {
		if IsKind(err, KindNotFound) {
			return nil, g.reject(ctx, "unknown_user", id.String(), unauthenticatedError(msgUserNotFound, err))
		}
		return nil, internalError(err, "failed to load identity")
	}
	if user == nil {
		return nil, g.reject(ctx, "unknown_user", id.String(), unauthenticatedError(msgUserNotFound, ErrNotFound))
	}

	return &Principal{
		User:   user,
		Claims: claims,
		Token:  token,
	}, nil
}

func (g *Gate) reject(ctx context.Context, reason, userID string, err error) error {
	g.logger.Debug("gate rejected request: reason=%s user=%s err=%v", reason, userID, err)
	recordActivity(ctx, g.sink, g.logger, g.now, ActivityEvent{
		EventType: ActivityEventGateRejected,
		UserID:    userID,
		Metadata: map[string]any{
			"reason": reason,
			"kind":   string(KindOf(err)),
		},
	})
	return err
}
