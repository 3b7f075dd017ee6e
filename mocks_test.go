package auth_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"

	auth "github.com/fenixedu/fenix-auth"
)

// MockUsers implements auth.Users
type MockUsers struct {
	mock.Mock
}

var _ auth.Users = (*MockUsers)(nil)

func (m *MockUsers) user(args mock.Arguments) (*auth.User, error) {
	if u, ok := args.Get(0).(*auth.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) GetByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	return m.user(m.Called(ctx, id))
}

func (m *MockUsers) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*auth.User, error) {
	return m.user(m.Called(ctx, tx, id))
}

func (m *MockUsers) LockByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*auth.User, error) {
	return m.user(m.Called(ctx, tx, id))
}

func (m *MockUsers) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return m.user(m.Called(ctx, email))
}

func (m *MockUsers) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*auth.User, error) {
	return m.user(m.Called(ctx, tx, email))
}

func (m *MockUsers) GetByIdentifier(ctx context.Context, identifier string) (*auth.User, error) {
	return m.user(m.Called(ctx, identifier))
}

func (m *MockUsers) Register(ctx context.Context, user *auth.User) (*auth.User, error) {
	return m.user(m.Called(ctx, user))
}

func (m *MockUsers) RegisterTx(ctx context.Context, tx bun.IDB, user *auth.User) (*auth.User, error) {
	return m.user(m.Called(ctx, tx, user))
}

func (m *MockUsers) UpdateStatus(ctx context.Context, id uuid.UUID, status auth.UserStatus, opts ...auth.StatusUpdateOption) (*auth.User, error) {
	return m.user(m.Called(ctx, id, status, opts))
}

func (m *MockUsers) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status auth.UserStatus, opts ...auth.StatusUpdateOption) (*auth.User, error) {
	return m.user(m.Called(ctx, tx, id, status, opts))
}

func (m *MockUsers) List(ctx context.Context, filter auth.UserFilter) ([]*auth.User, int, error) {
	args := m.Called(ctx, filter)
	records, _ := args.Get(0).([]*auth.User)
	return records, args.Int(1), args.Error(2)
}

// recordingSink collects activity events.
type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Events() []auth.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.ActivityEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *recordingSink) OfType(typ auth.ActivityEventType) []auth.ActivityEvent {
	var out []auth.ActivityEvent
	for _, e := range s.Events() {
		if e.EventType == typ {
			out = append(out, e)
		}
	}
	return out
}

var errStoreDown = errors.New("store unavailable")

// brokenDenylist fails every lookup.
type brokenDenylist struct{}

func (brokenDenylist) Revoke(context.Context, string, time.Duration) error {
	return errStoreDown
}

func (brokenDenylist) IsRevoked(context.Context, string) (bool, error) {
	return false, errStoreDown
}
