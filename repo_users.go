package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

const (
	// DefaultPageLimit is used when a listing does not specify a limit
	DefaultPageLimit = 20
	// MaxPageLimit caps the page size of listings
	MaxPageLimit = 100
)

// Users is the credential store
type Users interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)
	// LockByIDTx reads the record for a read-modify-write inside tx.
	LockByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status UserStatus, opts ...StatusUpdateOption) (*User, error)
	UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status UserStatus, opts ...StatusUpdateOption) (*User, error)

	List(ctx context.Context, filter UserFilter) ([]*User, int, error)
}

// UserFilter narrows a user listing
type UserFilter struct {
	Status UserStatus
	Role   UserRole
	Page   int
	Limit  int
}

// Normalize clamps paging values into range.
func (f UserFilter) Normalize() UserFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	return f
}

// Offset is the number of rows skipped for the current page.
func (f UserFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

type users struct {
	repository.Repository[*User]
	db  *bun.DB
	now func() time.Time
}

var _ Users = (*users)(nil)

// UsersOption customizes the bun backed repository
type UsersOption func(*users)

// WithUsersClock injects a custom clock used for created_at defaults.
func WithUsersClock(clock func() time.Time) UsersOption {
	return func(u *users) {
		if clock != nil {
			u.now = clock
		}
	}
}

// NewUsersRepository returns a bun backed Users store
func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
	})

	repoUsers := &users{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}
	return repoUsers
}

func (a *users) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.GetByIDTx(ctx, a.db, id)
}

func (a *users) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	record, err := a.Repository.GetByIDTx(ctx, tx, id.String())
	if err != nil {
		return nil, userLookupError(err, "id", id.String())
	}
	return record, nil
}

func (a *users) LockByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	record, err := a.Repository.GetByIDTx(ctx, tx, id.String(), selectForUpdate(tx))
	if err != nil {
		return nil, userLookupError(err, "id", id.String())
	}
	return record, nil
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Apply(selectByEmail(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, userLookupError(err, "email", email)
	}
	return record, nil
}

// GetByIdentifier accepts either an id or an email.
func (a *users) GetByIdentifier(ctx context.Context, identifier string) (*User, error) {
	trimmed := strings.TrimSpace(identifier)
	if id, err := uuid.Parse(trimmed); err == nil {
		return a.GetByID(ctx, id)
	}
	return a.GetByEmail(ctx, trimmed)
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	if user == nil {
		return nil, validationError("user is required")
	}

	a.prepareUserDefaults(user)

	created, err := a.Repository.CreateTx(ctx, tx, user)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, duplicateEmailError(user.Email)
		}
		return nil, internalError(err, "failed to insert user")
	}
	return created, nil
}

func (a *users) UpdateStatus(ctx context.Context, id uuid.UUID, status UserStatus, opts ...StatusUpdateOption) (*User, error) {
	return a.UpdateStatusTx(ctx, a.db, id, status, opts...)
}

func (a *users) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status UserStatus, opts ...StatusUpdateOption) (*User, error) {
	if _, err := a.GetByIDTx(ctx, tx, id); err != nil {
		return nil, err
	}

	update := &statusUpdate{
		record: &User{
			ID:     id,
			Status: status,
		},
		columns: []string{"status"},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(update)
		}
	}

	_, err := a.Repository.UpdateTx(ctx, tx, update.record,
		repository.UpdateByID(id.String()),
		updateColumns(update.columns...),
	)
	if err != nil {
		return nil, internalError(err, "failed to update user status")
	}

	return a.GetByIDTx(ctx, tx, id)
}

func (a *users) List(ctx context.Context, filter UserFilter) ([]*User, int, error) {
	filter = filter.Normalize()

	records, total, err := a.Repository.List(ctx,
		selectByFilter(filter),
		selectOrderByCreation(),
		selectPage(filter),
	)
	if err != nil {
		return nil, 0, internalError(err, "failed to list users")
	}
	return records, total, nil
}

func selectByEmail(email string) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("lower(?TableAlias.email) = ?", normalizeEmail(email))
	}
}

// selectForUpdate locks the row on Postgres. sqlite serializes writers on
// its own and has no row locks.
func selectForUpdate(tx bun.IDB) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		if tx.Dialect().Name() == dialect.PG {
			return q.For("UPDATE")
		}
		return q
	}
}

func selectByFilter(filter UserFilter) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		if filter.Status != "" {
			q = q.Where("?TableAlias.status = ?", filter.Status)
		}
		if filter.Role != "" {
			q = q.Where("?TableAlias.role = ?", filter.Role)
		}
		return q
	}
}

func selectOrderByCreation() repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.OrderExpr("?TableAlias.created_at ASC, ?TableAlias.id ASC")
	}
}

func selectPage(filter UserFilter) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Limit(filter.Limit).Offset(filter.Offset())
	}
}

func updateColumns(columns ...string) repository.UpdateCriteria {
	return func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Column(columns...)
	}
}

// StatusUpdateOption allows callers to persist extra columns alongside a status change.
type StatusUpdateOption func(*statusUpdate)

type statusUpdate struct {
	record  *User
	columns []string
}

// WithConfirmedAt sets the confirmation timestamp during a status transition.
func WithConfirmedAt(at *time.Time) StatusUpdateOption {
	return func(u *statusUpdate) {
		u.record.ConfirmedAt = at
		u.columns = append(u.columns, "confirmed_at")
	}
}

// WithConfirmedBy records the acting identity during a status transition.
func WithConfirmedBy(id *uuid.UUID) StatusUpdateOption {
	return func(u *statusUpdate) {
		u.record.ConfirmedBy = id
		u.columns = append(u.columns, "confirmed_by")
	}
}

func (a *users) prepareUserDefaults(record *User) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Role == "" {
		record.Role = RoleStudent
	}
	record.EnsureStatus()
	record.Email = normalizeEmail(record.Email)
	if record.CreatedAt.IsZero() {
		record.CreatedAt = a.now().UTC()
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func userLookupError(err error, column, value string) error {
	if repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows) {
		return notFoundError(msgUserNotFound).
			WithMetadata(map[string]any{column: value})
	}
	return internalError(err, "failed to load user")
}

func duplicateEmailError(email string) error {
	return validationError("Пользователь с таким email уже существует").
		WithMetadata(map[string]any{"email": email})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	for ; err != nil; err = errors.Unwrap(err) {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "unique constraint failed") ||
			strings.Contains(msg, "duplicate key value") {
			return true
		}
	}
	return false
}
