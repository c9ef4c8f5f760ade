package domain

import (
	"errors"
	"fmt"

	"github.com/set-night/rewardhub/internal/config"
)

// Kind classifies a failure for the response envelope.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindForbidden
	KindNotFound
	KindExpired
	KindConflict
	KindRateLimited
	KindNotImplemented
)

// Error is a domain failure carrying its Kind. Sentinels below are compared
// with errors.Is; Newf builds one-off errors with a specific message.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func newErr(kind Kind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

// Newf returns a fresh error of the given kind.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf reports the Kind of err, KindInternal for anything that is not a
// domain error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

var (
	// Identity
	ErrInitDataInvalid = newErr(KindAuth, "invalid or expired initData")
	ErrUserMismatch    = newErr(KindAuth, "initData user does not match user_id")
	ErrBotTokenMissing = newErr(KindInternal, "bot token is not configured")

	// Action tokens
	ErrMissingToken       = newErr(KindValidation, "missing server token (action id), request rejected")
	ErrTokenInvalidOrUsed = newErr(KindConflict, "invalid or previously used server token (action id)")
	ErrTokenExpired       = newErr(KindExpired, "server token (action id) expired, please try again")
	ErrInvalidActionKind  = newErr(KindValidation, "invalid action_type")

	// Users
	ErrUserNotFound   = newErr(KindNotFound, "user not found")
	ErrUserBanned     = newErr(KindForbidden, "user is banned")
	ErrForbidden      = newErr(KindForbidden, "admin privileges required")
	ErrRateLimited    = newErr(KindRateLimited, "too many actions, slow down")
	ErrDailyAdLimit   = newErr(KindForbidden, "daily ad limit reached")
	ErrDailySpinLimit = newErr(KindForbidden, "daily spin limit reached")

	// Balance
	ErrInsufficientBalance = newErr(KindValidation, "insufficient balance")
	ErrInvalidAmount       = newErr(KindValidation, "invalid amount")

	// Tasks
	ErrTaskNotFound    = newErr(KindNotFound, "task not found")
	ErrTaskAlreadyDone = newErr(KindConflict, "task already completed by this user")
	ErrTaskTooSoon     = newErr(KindRateLimited, fmt.Sprintf("please wait %d seconds between completing tasks", int(config.MinTaskCompletionInterval.Seconds())))
	ErrTaskFull        = newErr(KindConflict, "task has reached its participant limit")
	ErrInvalidTask     = newErr(KindValidation, "missing required task fields: name, link, reward")
	ErrInvalidTaskType = newErr(KindValidation, "task type must be channel or bot")

	ErrInvalidParticipantCap = newErr(KindValidation, "max_participants must be a positive number")

	// Withdrawals
	ErrWithdrawalNotFound   = newErr(KindNotFound, "withdrawal request not found")
	ErrWithdrawalNotPending = newErr(KindValidation, "withdrawal is not pending")
	ErrWithdrawalConflict   = newErr(KindConflict, "withdrawal was already processed")
	ErrMissingDestination   = newErr(KindValidation, "missing withdrawal destination, provide binance_id or faucetpay_email")
	ErrInvalidEmail         = newErr(KindValidation, "invalid FaucetPay email address")
	ErrInvalidRail          = newErr(KindValidation, "unknown withdrawal method")
	ErrInvalidDecision      = newErr(KindValidation, "unknown settlement decision")

	ErrNotImplemented = newErr(KindNotImplemented, "not implemented")
)

// ErrNotJoined is returned when channel membership cannot be proven.
func ErrNotJoined(channel string) error {
	return Newf(KindValidation, "user has not joined the required channel: %s", channel)
}
