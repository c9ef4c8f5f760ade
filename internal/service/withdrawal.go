package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/set-night/rewardhub/internal/domain"
	"github.com/shopspring/decimal"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// WithdrawalService handles payout requests and their settlement.
type WithdrawalService struct {
	store    Store
	tokens   *ActionTokenService
	notifier Notifier
	now      func() time.Time
}

func NewWithdrawalService(store Store, tokens *ActionTokenService, notifier Notifier) *WithdrawalService {
	return &WithdrawalService{
		store:    store,
		tokens:   tokens,
		notifier: notifier,
		now:      time.Now,
	}
}

// WithdrawParams is a user's payout request.
type WithdrawParams struct {
	UserID         int64
	ActionID       string
	Amount         decimal.Decimal
	FaucetPayEmail string
	BinanceID      string
}

// WithdrawResult is returned once the request is recorded.
type WithdrawResult struct {
	WithdrawalID int64           `json:"withdrawal_id"`
	NewBalance   decimal.Decimal `json:"new_balance"`
	Message      string          `json:"message"`
}

// Request deducts the amount and records a pending withdrawal.
func (s *WithdrawalService) Request(ctx context.Context, p WithdrawParams) (*WithdrawResult, error) {
	if !p.Amount.IsPositive() || !domain.ValidMoney(p.Amount) {
		return nil, domain.ErrInvalidAmount
	}
	if err := s.tokens.Authorize(ctx, p.UserID, p.ActionID, domain.ActionWithdraw); err != nil {
		return nil, err
	}

	user, err := s.store.GetUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if user.IsBanned {
		return nil, domain.ErrUserBanned
	}
	if p.Amount.GreaterThan(user.Balance) {
		return nil, domain.ErrInsufficientBalance
	}

	rail, destination, err := withdrawalDestination(p.FaucetPayEmail, p.BinanceID)
	if err != nil {
		return nil, err
	}

	w := &domain.Withdrawal{
		UserID:      p.UserID,
		Amount:      p.Amount,
		Rail:        rail,
		Destination: destination,
		Status:      domain.WithdrawalPending,
		CreatedAt:   s.now(),
	}
	var newBalance decimal.Decimal
	err = s.store.WithTx(ctx, func(tx Store) error {
		balance, err := tx.DebitBalance(ctx, p.UserID, p.Amount, s.now())
		if err != nil {
			return err
		}
		id, err := tx.InsertWithdrawal(ctx, w)
		if err != nil {
			return fmt.Errorf("insert withdrawal: %w", err)
		}
		w.ID = id
		newBalance = balance
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("withdrawal requested",
		"withdrawal_id", w.ID,
		"user_id", w.UserID,
		"amount", w.Amount.String(),
		"rail", w.Rail,
	)
	s.notifier.LogWithdrawalRequest(w)

	return &WithdrawResult{
		WithdrawalID: w.ID,
		NewBalance:   newBalance,
		Message:      "Withdrawal request submitted successfully and is pending approval.",
	}, nil
}

// withdrawalDestination prefers a FaucetPay email over a Binance id.
func withdrawalDestination(email, binanceID string) (domain.Rail, string, error) {
	if email = strings.TrimSpace(email); email != "" {
		if !emailPattern.MatchString(email) {
			return "", "", domain.ErrInvalidEmail
		}
		return domain.RailFaucetPay, email, nil
	}
	if binanceID = strings.TrimSpace(binanceID); binanceID != "" {
		return domain.RailBinance, binanceID, nil
	}
	return "", "", domain.ErrMissingDestination
}

// SettleResult describes a settled withdrawal.
type SettleResult struct {
	WithdrawalID   int64            `json:"withdrawal_id"`
	UserID         int64            `json:"user_id"`
	Rail           domain.Rail      `json:"method"`
	Decision       domain.Decision  `json:"decision"`
	RefundedAmount *decimal.Decimal `json:"refunded_amount,omitempty"`
	Message        string           `json:"message"`
}

// Settle moves a pending withdrawal to completed or rejected. Only one of
// several concurrent settlements of the same withdrawal can succeed; a reject
// refunds the amount to the user.
func (s *WithdrawalService) Settle(ctx context.Context, id int64, decision domain.Decision) (*SettleResult, error) {
	var to domain.WithdrawalStatus
	switch decision {
	case domain.DecisionAccept:
		to = domain.WithdrawalCompleted
	case domain.DecisionReject:
		to = domain.WithdrawalRejected
	default:
		return nil, domain.ErrInvalidDecision
	}

	w, err := s.store.GetWithdrawal(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.Status != domain.WithdrawalPending {
		return nil, fmt.Errorf("%w (current status: %s)", domain.ErrWithdrawalNotPending, w.Status)
	}

	moved, err := s.store.TransitionWithdrawal(ctx, id, domain.WithdrawalPending, to, s.now())
	if err != nil {
		return nil, fmt.Errorf("transition withdrawal: %w", err)
	}
	if !moved {
		return nil, domain.ErrWithdrawalConflict
	}
	w.Status = to

	result := &SettleResult{
		WithdrawalID: w.ID,
		UserID:       w.UserID,
		Rail:         w.Rail,
		Decision:     decision,
	}

	if decision == domain.DecisionAccept {
		slog.Info("withdrawal accepted", "withdrawal_id", w.ID, "user_id", w.UserID)
		s.notifier.LogSettlement(w, decision)
		result.Message = fmt.Sprintf("Withdrawal %d accepted (user %d).", w.ID, w.UserID)
		return result, nil
	}

	if _, err := s.store.CreditBalance(ctx, w.UserID, w.Amount, s.now()); err != nil {
		slog.Error("refund rejected withdrawal", "error", err, "withdrawal_id", w.ID, "user_id", w.UserID)
		if serr := s.store.SetWithdrawalStatus(ctx, w.ID, domain.WithdrawalRejectedRefundFailed); serr != nil {
			slog.Warn("annotate refund failure", "error", serr, "withdrawal_id", w.ID)
		} else {
			w.Status = domain.WithdrawalRejectedRefundFailed
		}
		s.notifier.LogError(err, fmt.Sprintf("refund of withdrawal %d for user %d", w.ID, w.UserID))
		return nil, fmt.Errorf("withdrawal rejected but refund failed: %w", err)
	}

	slog.Info("withdrawal rejected and refunded", "withdrawal_id", w.ID, "user_id", w.UserID, "amount", w.Amount.String())
	s.notifier.LogSettlement(w, decision)
	refunded := w.Amount
	result.RefundedAmount = &refunded
	result.Message = fmt.Sprintf("Withdrawal %d rejected and %s refunded to user %d.", w.ID, w.Amount.String(), w.UserID)
	return result, nil
}

// ListPending returns pending withdrawals on one rail, newest first.
func (s *WithdrawalService) ListPending(ctx context.Context, rail domain.Rail) ([]domain.Withdrawal, error) {
	list, err := s.store.ListPendingWithdrawals(ctx, rail)
	if err != nil {
		return nil, fmt.Errorf("list pending withdrawals: %w", err)
	}
	return list, nil
}

// History returns the user's withdrawals on every rail, newest first.
func (s *WithdrawalService) History(ctx context.Context, userID int64) ([]domain.Withdrawal, error) {
	list, err := s.store.ListUserWithdrawals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user withdrawals: %w", err)
	}
	return list, nil
}
