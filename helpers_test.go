package auth_test

import (
	"context"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/fenixedu/fenix-auth"
	"github.com/fenixedu/fenix-auth/repository"
)

const testSecret = "test-secret-key"

var testNow = time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)

// clock is a settable time source shared by the components under test.
type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	ctx := context.Background()

	db, err := repository.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = repository.Migrate(ctx, db)
	require.NoError(t, err)
	return db
}

func newTestTokens() *auth.TokenServiceImpl {
	return auth.NewTokenService([]byte(testSecret), time.Hour, 24*time.Hour, "fenix-auth", auth.NopLogger())
}

type harness struct {
	clock    *clock
	db       *bun.DB
	repo     auth.RepositoryManager
	tokens   *auth.TokenServiceImpl
	denylist *auth.MemoryDenylist
	sink     *recordingSink
	service  *auth.AccountService
	gate     *auth.Gate
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		clock:  &clock{now: testNow},
		db:     newTestDB(t),
		tokens: newTestTokens(),
		sink:   &recordingSink{},
	}
	h.repo = auth.NewRepositoryManager(h.db, auth.WithUsersClock(h.clock.Now))
	h.denylist = auth.NewMemoryDenylist(auth.WithDenylistClock(h.clock.Now))
	h.service = auth.NewAccountService(h.repo, h.tokens, h.denylist,
		auth.WithAccountClock(h.clock.Now),
		auth.WithAccountHasher(auth.BcryptHasher{Cost: bcrypt.MinCost}),
		auth.WithAccountActivitySink(h.sink),
		auth.WithAccountLogger(auth.NopLogger()),
	)
	h.gate = auth.NewGate(h.tokens, h.denylist, h.repo.Users(),
		auth.WithGateClock(h.clock.Now),
		auth.WithGateActivitySink(h.sink),
		auth.WithGateLogger(auth.NopLogger()),
	)
	return h
}

// seed stores an account with the given role and status.
func (h *harness) seed(t *testing.T, email string, role auth.UserRole, status auth.UserStatus) *auth.User {
	t.Helper()
	hash, err := auth.BcryptHasher{Cost: bcrypt.MinCost}.HashPassword("password1")
	require.NoError(t, err)

	user, err := h.repo.Users().Register(context.Background(), &auth.User{
		Email:        email,
		FullName:     "Test " + string(role),
		PasswordHash: hash,
		Role:         role,
		Status:       status,
	})
	require.NoError(t, err)
	return user
}

func (h *harness) accessToken(t *testing.T, user *auth.User) string {
	t.Helper()
	token, err := h.tokens.IssueAccess(user.Identity(), h.clock.Now())
	require.NoError(t, err)
	return token
}

// messageOf returns the client facing message of a rich error.
func messageOf(err error) string {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
