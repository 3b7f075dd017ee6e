package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	msgBadCredentials = "Неверный email или пароль"
	msgNotConfirmed   = "Аккаунт не подтвержден администратором"
	msgInvalidRefresh = "Невалидный refresh token"
	msgUserNotFound   = "Пользователь не найден"
	msgAuthRequired   = "Требуется авторизация"
	msgNotEnoughRight = "Недостаточно прав"
)

// AuthResult is returned by registration and login
type AuthResult struct {
	TokenPair
	User *User `json:"user"`
}

// UserPage is one page of a user listing
type UserPage struct {
	Users []*User `json:"users"`
	Total int     `json:"total"`
	Page  int     `json:"page"`
	Pages int     `json:"pages"`
	Limit int     `json:"limit"`
}

// StatusReport describes the account state of the caller
type StatusReport struct {
	Status  UserStatus `json:"status"`
	Message string     `json:"message"`
	User    *User      `json:"user"`
}

// FirstAdmin describes the account seeded on an empty store
type FirstAdmin struct {
	Email    string
	Password string
	FullName string
}

// AccountService implements registration, login, token lifecycle and the
// approval workflow on top of the repositories.
type AccountService struct {
	repo     RepositoryManager
	tokens   TokenService
	denylist Denylist
	machine  UserStateMachine
	hasher   PasswordAuthenticator
	now      func() time.Time
	sink     ActivitySink
	logger   Logger
	hooks    []TransitionHook
}

// AccountServiceOption customizes an AccountService
type AccountServiceOption func(*AccountService)

// WithAccountClock injects a custom clock (useful for tests).
func WithAccountClock(clock func() time.Time) AccountServiceOption {
	return func(s *AccountService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithAccountLogger sets the service logger.
func WithAccountLogger(logger Logger) AccountServiceOption {
	return func(s *AccountService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAccountActivitySink publishes account events to sink.
func WithAccountActivitySink(sink ActivitySink) AccountServiceOption {
	return func(s *AccountService) {
		s.sink = normalizeActivitySink(sink)
	}
}

// WithAccountHasher overrides the password hasher.
func WithAccountHasher(hasher PasswordAuthenticator) AccountServiceOption {
	return func(s *AccountService) {
		if hasher != nil {
			s.hasher = hasher
		}
	}
}

// WithAccountStateMachine overrides the lifecycle state machine.
func WithAccountStateMachine(machine UserStateMachine) AccountServiceOption {
	return func(s *AccountService) {
		if machine != nil {
			s.machine = machine
		}
	}
}

// WithAccountTransitionHook runs hook after every successful status change,
// inside the transaction that persisted it. A hook error rolls it back.
func WithAccountTransitionHook(hook TransitionHook) AccountServiceOption {
	return func(s *AccountService) {
		if hook != nil {
			s.hooks = append(s.hooks, hook)
		}
	}
}

// NewAccountService wires the service. A nil denylist falls back to an in
// memory one.
func NewAccountService(repo RepositoryManager, tokens TokenService, denylist Denylist, opts ...AccountServiceOption) *AccountService {
	s := &AccountService{
		repo:     repo,
		tokens:   tokens,
		denylist: denylist,
		hasher:   BcryptHasher{},
		now:      time.Now,
		sink:     noopActivitySink{},
		logger:   defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.denylist == nil {
		s.denylist = NewMemoryDenylist(WithDenylistClock(s.now))
	}
	if s.machine == nil {
		s.machine = NewUserStateMachine(repo.Users(),
			WithStateMachineClock(s.now),
			WithStateMachineActivitySink(s.sink),
			WithStateMachineLogger(s.logger),
		)
	}
	return s
}

// Register creates a pending account and returns its first token pair.
func (s *AccountService) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user := req.User()
	hash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return nil, internalError(err, "failed to hash password")
	}
	user.PasswordHash = hash

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.ensureEmailAvailable(ctx, tx, user.Email); err != nil {
			return err
		}
		user, err = s.repo.Users().RegisterTx(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	pair, err := s.tokens.IssuePair(user.Identity(), s.now())
	if err != nil {
		return nil, internalError(err, "failed to issue tokens")
	}

	s.logger.Info("registered user %s with role %s", user.Email, user.Role)
	recordActivity(ctx, s.sink, s.logger, s.now, ActivityEvent{
		EventType: ActivityEventUserRegistered,
		Actor:     ActorFromUser(user),
		UserID:    user.ID.String(),
		ToStatus:  user.Status,
		Metadata:  map[string]any{"role": user.Role},
	})

	return &AuthResult{TokenPair: pair, User: user}, nil
}

// Login checks credentials and requires an active account.
func (s *AccountService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	if err := (LoginRequest{Email: email, Password: password}).Validate(); err != nil {
		return nil, err
	}

	user, err := s.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if IsKind(err, KindNotFound) {
			s.loginFailed(ctx, "", email, "unknown_email")
			return nil, unauthenticatedError(msgBadCredentials, err)
		}
		return nil, err
	}

	if err := s.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		s.loginFailed(ctx, user.ID.String(), email, "password_mismatch")
		return nil, unauthenticatedError(msgBadCredentials, err)
	}

	if !user.IsActive() {
		s.loginFailed(ctx, user.ID.String(), email, "inactive")
		return nil, forbiddenError(msgNotConfirmed).WithMetadata(map[string]any{
			"status":         user.Status,
			"status_message": StatusMessage(user.Status),
		})
	}

	pair, err := s.tokens.IssuePair(user.Identity(), s.now())
	if err != nil {
		return nil, internalError(err, "failed to issue tokens")
	}

	recordActivity(ctx, s.sink, s.logger, s.now, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     ActorFromUser(user),
		UserID:    user.ID.String(),
	})

	return &AuthResult{TokenPair: pair, User: user}, nil
}

// Refresh exchanges a refresh token for a new pair. Revoked refresh tokens
// are refused.
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if err := (RefreshRequest{RefreshToken: refreshToken}).Validate(); err != nil {
		return TokenPair{}, err
	}

	revoked, err := s.denylist.IsRevoked(ctx, refreshToken)
	if err != nil {
		return TokenPair{}, internalError(err, "failed to check token revocation")
	}
	if revoked {
		return TokenPair{}, unauthenticatedError(msgInvalidRefresh, revokedTokenError())
	}

	pair, err := s.tokens.Refresh(refreshToken, s.now())
	if err != nil {
		return TokenPair{}, unauthenticatedError(msgInvalidRefresh, err)
	}

	recordActivity(ctx, s.sink, s.logger, s.now, ActivityEvent{
		EventType: ActivityEventTokenRefreshed,
	})

	return pair, nil
}

// Logout revokes the access token for its remaining lifetime. A valid
// refresh token of the same subject is revoked too.
func (s *AccountService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	now := s.now()

	claims, err := s.tokens.VerifyAccess(accessToken, now)
	if err != nil {
		return unauthenticatedError("Невалидный токен", err)
	}

	if err := s.denylist.Revoke(ctx, accessToken, claims.RemainingLifetime(now)); err != nil {
		return internalError(err, "failed to revoke access token")
	}

	if refreshToken != "" {
		refreshClaims, err := s.tokens.VerifyRefresh(refreshToken, now)
		switch {
		case err != nil:
			s.logger.Debug("logout ignored refresh token: %v", err)
		case refreshClaims.UserID() != claims.UserID():
			s.logger.Warn("logout refresh token subject mismatch for user %s", claims.UserID())
		default:
			if err := s.denylist.Revoke(ctx, refreshToken, refreshClaims.RemainingLifetime(now)); err != nil {
				return internalError(err, "failed to revoke refresh token")
			}
		}
	}

	recordActivity(ctx, s.sink, s.logger, s.now, ActivityEvent{
		EventType: ActivityEventLogout,
		Actor:     ActorRef{ID: claims.UserID(), Type: "user"},
		UserID:    claims.UserID(),
	})

	return nil
}

// Approve activates a pending account. Department heads and admins only.
func (s *AccountService) Approve(ctx context.Context, actor *User, targetID uuid.UUID) (*User, error) {
	return s.transition(ctx, actor, TierDepartmentHead, targetID, UserStatusActive, "approve")
}

// Reject declines a pending account. Admins only.
func (s *AccountService) Reject(ctx context.Context, actor *User, targetID uuid.UUID) (*User, error) {
	return s.transition(ctx, actor, TierAdmin, targetID, UserStatusRejected, "reject")
}

// Block disables an active account. Admins only.
func (s *AccountService) Block(ctx context.Context, actor *User, targetID uuid.UUID) (*User, error) {
	return s.transition(ctx, actor, TierAdmin, targetID, UserStatusBlocked, "block")
}

// ChangeStatus dispatches a raw target status to the matching action.
func (s *AccountService) ChangeStatus(ctx context.Context, actor *User, targetID uuid.UUID, status UserStatus) (*User, error) {
	if err := authorizeActor(actor, TierDepartmentHead); err != nil {
		return nil, err
	}

	switch status {
	case UserStatusActive:
		return s.Approve(ctx, actor, targetID)
	case UserStatusRejected:
		return s.Reject(ctx, actor, targetID)
	case UserStatusBlocked:
		return s.Block(ctx, actor, targetID)
	default:
		return nil, validationError("Некорректный статус").
			WithMetadata(map[string]any{"status": status})
	}
}

// GetUser loads a user by id.
func (s *AccountService) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.Users().GetByID(ctx, id)
}

// ListUsers pages over users matching filter. Admins only.
func (s *AccountService) ListUsers(ctx context.Context, actor *User, filter UserFilter) (*UserPage, error) {
	if err := authorizeActor(actor, TierAdmin); err != nil {
		return nil, err
	}

	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, validationError("Некорректный статус").
			WithMetadata(map[string]any{"status": filter.Status})
	}
	if filter.Role != "" && !filter.Role.IsValid() {
		return nil, validationError("Некорректная роль").
			WithMetadata(map[string]any{"role": filter.Role})
	}

	filter = filter.Normalize()
	records, total, err := s.repo.Users().List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []*User{}
	}

	return &UserPage{
		Users: records,
		Total: total,
		Page:  filter.Page,
		Pages: (total + filter.Limit - 1) / filter.Limit,
		Limit: filter.Limit,
	}, nil
}

// PendingUsers pages over accounts waiting for approval. Admins only.
func (s *AccountService) PendingUsers(ctx context.Context, actor *User, page, limit int) (*UserPage, error) {
	return s.ListUsers(ctx, actor, UserFilter{
		Status: UserStatusPending,
		Page:   page,
		Limit:  limit,
	})
}

// CheckStatus reports the account state of user, whatever it is.
func (s *AccountService) CheckStatus(user *User) StatusReport {
	if user == nil {
		return StatusReport{Message: UnknownStatusMessage}
	}
	user.EnsureStatus()
	return StatusReport{
		Status:  user.Status,
		Message: StatusMessage(user.Status),
		User:    user,
	}
}

// EnsureFirstAdmin seeds an active admin when admin.Email is unknown. It
// reports whether a record was created.
func (s *AccountService) EnsureFirstAdmin(ctx context.Context, admin FirstAdmin) (*User, bool, error) {
	existing, err := s.repo.Users().GetByEmail(ctx, admin.Email)
	if err == nil {
		return existing, false, nil
	}
	if !IsKind(err, KindNotFound) {
		return nil, false, err
	}

	hash, err := s.hasher.HashPassword(admin.Password)
	if err != nil {
		return nil, false, internalError(err, "failed to hash admin password")
	}

	confirmedAt := s.now().UTC()
	user, err := s.repo.Users().Register(ctx, &User{
		Email:        admin.Email,
		FullName:     admin.FullName,
		PasswordHash: hash,
		Role:         RoleAdmin,
		Status:       UserStatusActive,
		ConfirmedAt:  &confirmedAt,
	})
	if err != nil {
		return nil, false, err
	}

	s.logger.Info("created first admin %s", user.Email)
	return user, true, nil
}

func (s *AccountService) transition(ctx context.Context, actor *User, tier RoleSet, targetID uuid.UUID, target UserStatus, reason string) (*User, error) {
	if err := authorizeActor(actor, tier); err != nil {
		return nil, err
	}

	var updated *User
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := s.repo.Users().LockByIDTx(ctx, tx, targetID)
		if err != nil {
			return err
		}

		opts := []TransitionOption{
			WithTransitionDB(tx),
			WithTransitionReason(reason),
			WithTransitionMetadata(map[string]any{
				"actor_email":  actor.Email,
				"target_email": user.Email,
			}),
			WithAfterTransitionHook(s.logTransition),
		}
		for _, hook := range s.hooks {
			opts = append(opts, WithAfterTransitionHook(hook))
		}

		updated, err = s.machine.Transition(ctx, ActorFromUser(actor), user, target, opts...)
		return err
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (s *AccountService) logTransition(_ context.Context, tc TransitionContext) error {
	actor, _ := tc.Meta.Metadata["actor_email"].(string)
	if tc.To == UserStatusBlocked {
		s.logger.Warn("user %s blocked by %s", tc.User.Email, actor)
		return nil
	}
	s.logger.Info("user %s status changed %s -> %s by %s", tc.User.Email, tc.From, tc.To, actor)
	return nil
}

func (s *AccountService) ensureEmailAvailable(ctx context.Context, tx bun.IDB, email string) error {
	_, err := s.repo.Users().GetByEmailTx(ctx, tx, email)
	switch {
	case err == nil:
		return duplicateEmailError(email)
	case IsKind(err, KindNotFound):
		return nil
	default:
		return err
	}
}

func (s *AccountService) loginFailed(ctx context.Context, userID, email, reason string) {
	s.logger.Debug("login failed for %s: %s", email, reason)
	recordActivity(ctx, s.sink, s.logger, s.now, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		UserID:    userID,
		Metadata:  map[string]any{"reason": reason},
	})
}

// authorizeActor requires an active actor holding one of the tier roles.
func authorizeActor(actor *User, tier RoleSet) error {
	if actor == nil {
		return unauthenticatedError(msgAuthRequired, nil)
	}
	if err := ensureActive(actor); err != nil {
		return err
	}
	if !Authorize(actor.Role, tier) {
		return forbiddenError(msgNotEnoughRight).WithMetadata(map[string]any{
			"role":     actor.Role,
			"required": tier.Roles(),
		})
	}
	return nil
}
