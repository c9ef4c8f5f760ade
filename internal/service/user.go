package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/set-night/rewardhub/internal/domain"
	"github.com/shopspring/decimal"
)

type UserService struct {
	store       Store
	withdrawals *WithdrawalService
	ledger      *LedgerService
	notifier    Notifier
	now         func() time.Time
}

func NewUserService(store Store, withdrawals *WithdrawalService, ledger *LedgerService, notifier Notifier) *UserService {
	return &UserService{
		store:       store,
		withdrawals: withdrawals,
		ledger:      ledger,
		notifier:    notifier,
		now:         time.Now,
	}
}

// RegisterParams identifies a Mini App user on first contact.
type RegisterParams struct {
	UserID    int64
	FirstName string
	Username  string
	RefBy     *int64
}

// Register creates the user if it does not exist yet. Existing banned users
// are turned away.
func (s *UserService) Register(ctx context.Context, p RegisterParams) (bool, error) {
	existing, err := s.store.GetUser(ctx, p.UserID)
	switch {
	case err == nil:
		if existing.IsBanned {
			return false, domain.ErrUserBanned
		}
		return false, nil
	case !errors.Is(err, domain.ErrUserNotFound):
		return false, err
	}

	refBy := p.RefBy
	if refBy != nil && *refBy == p.UserID {
		slog.Warn("self referral ignored", "user_id", p.UserID)
		refBy = nil
	}

	now := s.now()
	created, err := s.store.CreateUser(ctx, &domain.User{
		ID:           p.UserID,
		FirstName:    p.FirstName,
		Username:     p.Username,
		Balance:      decimal.Zero,
		RefBy:        refBy,
		LastActivity: now,
		CreatedAt:    now,
	})
	if err != nil {
		return false, fmt.Errorf("create user: %w", err)
	}
	if created {
		slog.Info("user registered", "user_id", p.UserID, "ref_by", refBy)
		s.notifier.LogRegistration(p.UserID, p.FirstName, p.Username, refBy)
	}
	return created, nil
}

// WithdrawalEntry is one row of a user's payout history.
type WithdrawalEntry struct {
	Amount         decimal.Decimal         `json:"amount"`
	Status         domain.WithdrawalStatus `json:"status"`
	CreatedAt      time.Time               `json:"created_at"`
	BinanceID      *string                 `json:"binance_id"`
	FaucetPayEmail *string                 `json:"faucetpay_email"`
	Source         domain.Rail             `json:"source"`
}

// Profile is the balance and counter view shown on the home screen.
type Profile struct {
	Balance           decimal.Decimal   `json:"balance"`
	AdsWatchedToday   int               `json:"ads_watched_today"`
	SpinsToday        int               `json:"spins_today"`
	AdsLimitReachedAt *time.Time        `json:"ads_limit_reached_at"`
	SpinsLimitReached *time.Time        `json:"spins_limit_reached_at"`
	IsBanned          bool              `json:"is_banned"`
	RefBy             *int64            `json:"ref_by"`
	ReferralsCount    int               `json:"referrals_count"`
	WithdrawalHistory []WithdrawalEntry `json:"withdrawal_history"`
}

// Profile resets expired quotas, loads the user's counters, referral count
// and withdrawal history, and records the visit. Unknown users get an empty
// profile; banned users get only the ban flag.
func (s *UserService) Profile(ctx context.Context, userID int64) (*Profile, error) {
	for _, q := range []domain.Quota{domain.QuotaAds, domain.QuotaSpins} {
		if err := s.ledger.ResetQuotaIfExpired(ctx, userID, q); err != nil {
			return nil, err
		}
	}

	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return &Profile{Balance: decimal.Zero, WithdrawalHistory: []WithdrawalEntry{}}, nil
	}
	if err != nil {
		return nil, err
	}
	if user.IsBanned {
		return &Profile{IsBanned: true}, nil
	}

	referrals, err := s.store.CountReferrals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count referrals: %w", err)
	}
	history, err := s.withdrawals.History(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.store.TouchUser(ctx, userID, s.now()); err != nil {
		slog.Warn("touch user", "error", err, "user_id", userID)
	}

	entries := make([]WithdrawalEntry, 0, len(history))
	for _, w := range history {
		e := WithdrawalEntry{
			Amount:    w.Amount,
			Status:    w.Status,
			CreatedAt: w.CreatedAt,
			Source:    w.Rail,
		}
		dest := w.Destination
		if w.Rail == domain.RailFaucetPay {
			e.FaucetPayEmail = &dest
		} else {
			e.BinanceID = &dest
		}
		entries = append(entries, e)
	}

	return &Profile{
		Balance:           user.Balance,
		AdsWatchedToday:   user.AdsWatchedToday,
		SpinsToday:        user.SpinsToday,
		AdsLimitReachedAt: user.AdsLimitReachedAt,
		SpinsLimitReached: user.SpinsLimitReachedAt,
		RefBy:             user.RefBy,
		ReferralsCount:    referrals,
		WithdrawalHistory: entries,
	}, nil
}

// UserSummary is what an admin sees when looking a user up.
type UserSummary struct {
	UserID          int64           `json:"user_id"`
	FirstName       *string         `json:"first_name"`
	Username        *string         `json:"username"`
	Balance         decimal.Decimal `json:"balance"`
	AdsWatchedToday int             `json:"ads_watched_today"`
	SpinsToday      int             `json:"spins_today"`
	IsBanned        bool            `json:"is_banned"`
	RefBy           *int64          `json:"ref_by"`
}

func (s *UserService) Search(ctx context.Context, targetID int64) (*UserSummary, error) {
	u, err := s.store.GetUser(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return &UserSummary{
		UserID:          u.ID,
		FirstName:       nonEmpty(u.FirstName),
		Username:        nonEmpty(u.Username),
		Balance:         u.Balance,
		AdsWatchedToday: u.AdsWatchedToday,
		SpinsToday:      u.SpinsToday,
		IsBanned:        u.IsBanned,
		RefBy:           u.RefBy,
	}, nil
}

// SetBalance overwrites a user's balance.
func (s *UserService) SetBalance(ctx context.Context, targetID int64, balance decimal.Decimal) error {
	if balance.IsNegative() || !domain.ValidMoney(balance) {
		return domain.ErrInvalidAmount
	}
	if err := s.store.SetBalance(ctx, targetID, balance); err != nil {
		return err
	}
	slog.Info("balance overwritten", "user_id", targetID, "balance", balance.String())
	return nil
}

func (s *UserService) SetBanned(ctx context.Context, targetID int64, banned bool) error {
	if err := s.store.SetBanned(ctx, targetID, banned); err != nil {
		return err
	}
	slog.Info("ban state changed", "user_id", targetID, "is_banned", banned)
	return nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
