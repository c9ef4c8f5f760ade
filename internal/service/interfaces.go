package service

import (
	"context"
	"time"

	"github.com/set-night/rewardhub/internal/domain"
	"github.com/shopspring/decimal"
)

// Store is the persistence collaborator shared by all services.
type Store interface {
	UserStore
	TokenStore
	TaskStore
	WithdrawalStore
	CommissionStore

	// WithTx runs fn inside a single transaction. The Store passed to fn is
	// bound to that transaction; returning an error rolls everything back.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

// UserStore defines user data access.
type UserStore interface {
	// GetUser returns domain.ErrUserNotFound when the user does not exist.
	GetUser(ctx context.Context, id int64) (*domain.User, error)

	// CreateUser inserts u unless a user with the same id exists. Reports
	// whether a row was created.
	CreateUser(ctx context.Context, u *domain.User) (bool, error)

	CountReferrals(ctx context.Context, id int64) (int, error)

	TouchUser(ctx context.Context, id int64, at time.Time) error

	// ResetQuota zeroes the counter if its limit was reached at or before
	// reachedBefore. Reports whether a reset happened.
	ResetQuota(ctx context.Context, id int64, q domain.Quota, reachedBefore time.Time) (bool, error)

	// IncrementQuota credits the reward and advances the counter in one
	// conditional write guarded by counter < Max. Returns false when the
	// guard did not match.
	IncrementQuota(ctx context.Context, p QuotaIncrement) (*domain.User, bool, error)

	// CreditBalance adds amount and returns the new balance.
	CreditBalance(ctx context.Context, id int64, amount decimal.Decimal, at time.Time) (decimal.Decimal, error)

	// DebitBalance subtracts amount only if the balance covers it, returning
	// domain.ErrInsufficientBalance otherwise.
	DebitBalance(ctx context.Context, id int64, amount decimal.Decimal, at time.Time) (decimal.Decimal, error)

	SetBalance(ctx context.Context, id int64, balance decimal.Decimal) error
	SetBanned(ctx context.Context, id int64, banned bool) error

	// ClaimActionSlot stamps now as the user's last action if the previous
	// one is at least minGap old. Reports whether the slot was taken.
	ClaimActionSlot(ctx context.Context, id int64, now time.Time, minGap time.Duration) (bool, error)
}

// QuotaIncrement describes one quota-guarded reward.
type QuotaIncrement struct {
	UserID int64
	Quota  domain.Quota
	Reward decimal.Decimal
	Max    int
	At     time.Time
}

// TokenStore defines action token data access.
type TokenStore interface {
	// GetActionToken returns the token for (userID, kind) or nil.
	GetActionToken(ctx context.Context, userID int64, kind string) (*domain.ActionToken, error)

	// InsertActionToken stores t unless a token for the same (user, kind)
	// exists. Reports whether t was stored.
	InsertActionToken(ctx context.Context, t *domain.ActionToken) (bool, error)

	DeleteActionTokens(ctx context.Context, userID int64, kind string) error

	// FindActionToken returns the row matching all three keys or nil.
	FindActionToken(ctx context.Context, userID int64, value, kind string) (*domain.ActionToken, error)

	// DeleteActionToken reports whether this call removed the row.
	DeleteActionToken(ctx context.Context, id int64) (bool, error)

	PurgeActionTokens(ctx context.Context, createdBefore time.Time) (int64, error)
}

// TaskStore defines task, completion and spin log data access.
type TaskStore interface {
	// GetTask returns domain.ErrTaskNotFound when the task does not exist.
	GetTask(ctx context.Context, id int64) (*domain.Task, error)
	ListTasks(ctx context.Context) ([]domain.Task, error)
	CreateTask(ctx context.Context, t *domain.Task) (int64, error)
	DeleteTask(ctx context.Context, id int64) (bool, error)

	LastCompletionAt(ctx context.Context, userID int64) (*time.Time, error)
	HasCompletion(ctx context.Context, userID, taskID int64) (bool, error)
	CountCompletions(ctx context.Context, taskID int64) (int, error)
	CompletedTaskIDs(ctx context.Context, userID int64) ([]int64, error)

	// InsertCompletion returns domain.ErrTaskAlreadyDone when the
	// (user, task) pair already has a row.
	InsertCompletion(ctx context.Context, c *domain.TaskCompletion) error

	InsertSpinResult(ctx context.Context, r *domain.SpinResult) error
}

// WithdrawalStore defines withdrawal data access.
type WithdrawalStore interface {
	InsertWithdrawal(ctx context.Context, w *domain.Withdrawal) (int64, error)

	// GetWithdrawal returns domain.ErrWithdrawalNotFound when missing.
	GetWithdrawal(ctx context.Context, id int64) (*domain.Withdrawal, error)

	ListPendingWithdrawals(ctx context.Context, rail domain.Rail) ([]domain.Withdrawal, error)
	ListUserWithdrawals(ctx context.Context, userID int64) ([]domain.Withdrawal, error)

	// TransitionWithdrawal moves the row from one status to another only if
	// it is still in from. Reports whether the row changed.
	TransitionWithdrawal(ctx context.Context, id int64, from, to domain.WithdrawalStatus, at time.Time) (bool, error)

	SetWithdrawalStatus(ctx context.Context, id int64, status domain.WithdrawalStatus) error
}

// CommissionStore defines referral commission data access.
type CommissionStore interface {
	// InsertCommission reports false when the event was already recorded.
	InsertCommission(ctx context.Context, c *domain.Commission) (bool, error)
}

// MembershipChecker looks up a user's status in a Telegram channel.
type MembershipChecker interface {
	MemberStatus(ctx context.Context, userID int64, channel string) (domain.MemberStatus, error)
}

// CommissionDispatcher hands a commission event to background processing.
// Implementations must not block the caller.
type CommissionDispatcher interface {
	Dispatch(event domain.CommissionEvent)
}

// Notifier reports operator-relevant events.
type Notifier interface {
	LogRegistration(userID int64, name, username string, refBy *int64)
	LogWithdrawalRequest(w *domain.Withdrawal)
	LogSettlement(w *domain.Withdrawal, decision domain.Decision)
	LogError(err error, context string)
}

// Privileges answers whether an identity is on the admin allow-list.
type Privileges interface {
	IsAdmin(telegramID int64) bool
}
