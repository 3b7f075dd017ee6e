package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ActorRef identifies who/what triggered a transition.
type ActorRef struct {
	ID   string
	Type string
}

// ActorFromUser builds the ActorRef of an authenticated user.
func ActorFromUser(user *User) ActorRef {
	if user == nil {
		return ActorRef{}
	}
	return ActorRef{ID: user.ID.String(), Type: string(user.Role)}
}

// TransitionMetadata captures extra context for a transition.
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

// TransitionContext is passed into hooks for additional processing.
type TransitionContext struct {
	Actor ActorRef
	User  *User
	From  UserStatus
	To    UserStatus
	Meta  TransitionMetadata
}

// TransitionHook is executed before or after a transition.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// TransitionHookPhase identifies whether a hook ran before or after persistence.
type TransitionHookPhase string

const (
	HookPhaseBefore TransitionHookPhase = "before_transition"
	HookPhaseAfter  TransitionHookPhase = "after_transition"
)

// TransitionOption customizes a single transition.
type TransitionOption func(*transitionOptions)

// UserStateMachine defines lifecycle operations for users.
type UserStateMachine interface {
	Transition(ctx context.Context, actor ActorRef, user *User, target UserStatus, opts ...TransitionOption) (*User, error)
	CanTransition(from, to UserStatus) bool
	CurrentStatus(user *User) UserStatus
}

// HookErrorHandler handles errors surfaced by transition hooks.
type HookErrorHandler func(ctx context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*userStateMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *userStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineActivitySink sets the ActivitySink used to publish lifecycle events.
func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *userStateMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithStateMachineHookErrorHandler overrides how hook failures are propagated.
func WithStateMachineHookErrorHandler(handler HookErrorHandler) StateMachineOption {
	return func(sm *userStateMachine) {
		if handler != nil {
			sm.hookErrorHandler = handler
		}
	}
}

// WithStateMachineLogger overrides the logger used for sink failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *userStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.metadata.Reason = reason
	}
}

// WithTransitionMetadata merges metadata into the transition context.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(opts *transitionOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata.Metadata == nil {
			opts.metadata.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			opts.metadata.Metadata[k] = v
		}
	}
}

// WithTransitionDB persists the transition through tx instead of the
// repository's default connection.
func WithTransitionDB(tx bun.IDB) TransitionOption {
	return func(opts *transitionOptions) {
		opts.tx = tx
	}
}

// WithBeforeTransitionHook adds a hook executed before the status update.
func WithBeforeTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.beforeHooks = append(opts.beforeHooks, h)
		}
	}
}

// WithAfterTransitionHook adds a hook executed after the status update succeeds.
func WithAfterTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.afterHooks = append(opts.afterHooks, h)
		}
	}
}

// NewUserStateMachine returns the default implementation backed by the provided repository.
func NewUserStateMachine(users Users, opts ...StateMachineOption) UserStateMachine {
	sm := &userStateMachine{
		users: users,
		transitions: map[UserStatus]map[UserStatus]struct{}{
			UserStatusPending: {
				UserStatusActive:   {},
				UserStatusRejected: {},
			},
			UserStatusActive: {
				UserStatusBlocked: {},
			},
		},
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
		hookErrorHandler: func(_ context.Context, _ TransitionHookPhase, err error, _ TransitionContext) error {
			return err
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type userStateMachine struct {
	users            Users
	transitions      map[UserStatus]map[UserStatus]struct{}
	now              func() time.Time
	activitySink     ActivitySink
	logger           Logger
	hookErrorHandler HookErrorHandler
}

type transitionOptions struct {
	metadata    TransitionMetadata
	tx          bun.IDB
	beforeHooks []TransitionHook
	afterHooks  []TransitionHook
}

func (o *transitionOptions) cloneMetadata() TransitionMetadata {
	var cloned map[string]any
	if len(o.metadata.Metadata) > 0 {
		cloned = make(map[string]any, len(o.metadata.Metadata))
		for k, v := range o.metadata.Metadata {
			cloned[k] = v
		}
	}

	return TransitionMetadata{
		Reason:   o.metadata.Reason,
		Metadata: cloned,
	}
}

func (sm *userStateMachine) Transition(ctx context.Context, actor ActorRef, user *User, target UserStatus, opts ...TransitionOption) (*User, error) {
	if user == nil {
		return nil, invalidTransitionError("user is required").WithMetadata(map[string]any{
			"target": target,
		})
	}

	user.EnsureStatus()
	from := user.Status

	if !target.IsValid() {
		return nil, invalidTransitionError(fmt.Sprintf("Недопустимый статус: %s", target)).WithMetadata(map[string]any{
			"from": from,
			"to":   target,
		})
	}

	if !sm.CanTransition(from, target) {
		return nil, sm.rejectTransition(from, target)
	}

	options := sm.buildTransitionOptions(opts...)

	statusOpts, err := sm.buildStatusOptions(actor, target)
	if err != nil {
		return nil, err
	}

	ctxData := TransitionContext{
		Actor: actor,
		User:  user,
		From:  from,
		To:    target,
		Meta:  options.cloneMetadata(),
	}

	if err := sm.runHooks(ctx, options.beforeHooks, ctxData, HookPhaseBefore); err != nil {
		return nil, err
	}

	var updated *User
	if options.tx != nil {
		updated, err = sm.users.UpdateStatusTx(ctx, options.tx, user.ID, target, statusOpts...)
	} else {
		updated, err = sm.users.UpdateStatus(ctx, user.ID, target, statusOpts...)
	}
	if err != nil {
		return nil, err
	}

	sm.applyUpdates(user, updated, target, actor)

	if err := sm.runHooks(ctx, options.afterHooks, ctxData, HookPhaseAfter); err != nil {
		return nil, err
	}

	recordActivity(ctx, sm.activitySink, sm.logger, sm.now, ActivityEvent{
		EventType:  ActivityEventUserStatusChanged,
		Actor:      actor,
		UserID:     user.ID.String(),
		FromStatus: from,
		ToStatus:   target,
		Metadata:   sm.transitionMetadata(ctxData.Meta),
	})

	return user, nil
}

func (sm *userStateMachine) CurrentStatus(user *User) UserStatus {
	if user == nil {
		return ""
	}
	user.EnsureStatus()
	return user.Status
}

func (sm *userStateMachine) CanTransition(from, to UserStatus) bool {
	if allowed, ok := sm.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func (sm *userStateMachine) rejectTransition(from, to UserStatus) error {
	meta := map[string]any{
		"from": from,
		"to":   to,
	}
	// approval and rejection only apply to pending accounts
	if (to == UserStatusActive || to == UserStatusRejected) && from != UserStatusPending || from == to {
		return invalidTransitionError(fmt.Sprintf("Пользователь уже имеет статус: %s", from)).WithMetadata(meta)
	}
	return invalidTransitionError(fmt.Sprintf("Недопустимый переход статуса: %s -> %s", from, to)).WithMetadata(meta)
}

func (sm *userStateMachine) runHooks(ctx context.Context, hooks []TransitionHook, data TransitionContext, phase TransitionHookPhase) error {
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, data); err != nil {
			if sm.hookErrorHandler == nil {
				return err
			}
			return sm.hookErrorHandler(ctx, phase, err, data)
		}
	}
	return nil
}

func (sm *userStateMachine) buildTransitionOptions(opts ...TransitionOption) *transitionOptions {
	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	return options
}

// buildStatusOptions derives the confirmation columns written with the status.
func (sm *userStateMachine) buildStatusOptions(actor ActorRef, to UserStatus) ([]StatusUpdateOption, error) {
	switch to {
	case UserStatusActive, UserStatusRejected:
		actorID, err := uuid.Parse(actor.ID)
		if err != nil {
			return nil, validationError("actor id is required to confirm an account").
				WithMetadata(map[string]any{"actor": actor.ID})
		}
		opts := []StatusUpdateOption{WithConfirmedBy(&actorID)}
		if to == UserStatusActive {
			now := sm.now().UTC()
			opts = append(opts, WithConfirmedAt(&now))
		}
		return opts, nil
	default:
		return nil, nil
	}
}

func (sm *userStateMachine) applyUpdates(user, updated *User, target UserStatus, actor ActorRef) {
	if updated != nil {
		if updated.Status != "" {
			user.Status = updated.Status
		} else {
			user.Status = target
		}
		user.ConfirmedAt = updated.ConfirmedAt
		user.ConfirmedBy = updated.ConfirmedBy
		return
	}

	user.Status = target
	if target == UserStatusActive || target == UserStatusRejected {
		if id, err := uuid.Parse(actor.ID); err == nil {
			user.ConfirmedBy = &id
		}
	}
	if target == UserStatusActive {
		now := sm.now().UTC()
		user.ConfirmedAt = &now
	}
}

func (sm *userStateMachine) transitionMetadata(meta TransitionMetadata) map[string]any {
	if meta.Reason == "" && len(meta.Metadata) == 0 {
		return nil
	}

	result := map[string]any{}
	if meta.Reason != "" {
		result["reason"] = meta.Reason
	}
	for k, v := range meta.Metadata {
		result[k] = v
	}
	return result
}
