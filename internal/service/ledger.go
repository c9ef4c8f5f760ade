package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/set-night/rewardhub/internal/config"
	"github.com/set-night/rewardhub/internal/domain"
	"github.com/shopspring/decimal"
)

// LedgerService grants quota-limited rewards for ads and wheel spins.
type LedgerService struct {
	store       Store
	commissions CommissionDispatcher
	adReward    decimal.Decimal
	sectors     []decimal.Decimal
	pick        func(n int) int
	now         func() time.Time
}

func NewLedgerService(store Store, commissions CommissionDispatcher) *LedgerService {
	sectors := make([]decimal.Decimal, len(config.SpinSectors))
	for i, v := range config.SpinSectors {
		sectors[i] = decimal.NewFromInt(v)
	}
	return &LedgerService{
		store:       store,
		commissions: commissions,
		adReward:    decimal.NewFromInt(config.RewardPerAd),
		sectors:     sectors,
		pick:        rand.IntN,
		now:         time.Now,
	}
}

// AdReward is the outcome of a watched ad.
type AdReward struct {
	NewBalance   decimal.Decimal `json:"new_balance"`
	ActualReward decimal.Decimal `json:"actual_reward"`
	NewAdsCount  int             `json:"new_ads_count"`
}

// SpinReward is the outcome of a wheel spin.
type SpinReward struct {
	NewBalance    decimal.Decimal `json:"new_balance"`
	ActualPrize   decimal.Decimal `json:"actual_prize"`
	PrizeIndex    int             `json:"prize_index"`
	NewSpinsCount int             `json:"new_spins_count"`
}

// WatchAd credits the fixed ad reward.
func (s *LedgerService) WatchAd(ctx context.Context, userID int64) (*AdReward, error) {
	if err := s.ResetQuotaIfExpired(ctx, userID, domain.QuotaAds); err != nil {
		return nil, err
	}
	if err := s.precheck(ctx, userID, domain.QuotaAds, config.DailyMaxAds); err != nil {
		return nil, err
	}

	user, applied, err := s.store.IncrementQuota(ctx, QuotaIncrement{
		UserID: userID,
		Quota:  domain.QuotaAds,
		Reward: s.adReward,
		Max:    config.DailyMaxAds,
		At:     s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("apply ad reward: %w", err)
	}
	if !applied {
		return nil, domain.ErrDailyAdLimit
	}

	dispatchCommission(s.commissions, user, "ad", s.adReward, s.now())

	return &AdReward{
		NewBalance:   user.Balance,
		ActualReward: s.adReward,
		NewAdsCount:  user.AdsWatchedToday,
	}, nil
}

// PreSpin confirms the user may spin. The token check happens upstream.
func (s *LedgerService) PreSpin(ctx context.Context, userID int64) error {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsBanned {
		return domain.ErrUserBanned
	}
	return nil
}

// Spin draws a prize uniformly from the sector table and credits it.
func (s *LedgerService) Spin(ctx context.Context, userID int64) (*SpinReward, error) {
	if err := s.ResetQuotaIfExpired(ctx, userID, domain.QuotaSpins); err != nil {
		return nil, err
	}
	if err := s.precheck(ctx, userID, domain.QuotaSpins, config.DailyMaxSpins); err != nil {
		return nil, err
	}

	index := s.pick(len(s.sectors))
	prize := s.sectors[index]

	var user *domain.User
	err := s.store.WithTx(ctx, func(tx Store) error {
		updated, applied, err := tx.IncrementQuota(ctx, QuotaIncrement{
			UserID: userID,
			Quota:  domain.QuotaSpins,
			Reward: prize,
			Max:    config.DailyMaxSpins,
			At:     s.now(),
		})
		if err != nil {
			return fmt.Errorf("apply spin reward: %w", err)
		}
		if !applied {
			return domain.ErrDailySpinLimit
		}
		if err := tx.InsertSpinResult(ctx, &domain.SpinResult{
			UserID:     userID,
			Prize:      prize,
			PrizeIndex: index,
			CreatedAt:  s.now(),
		}); err != nil {
			return fmt.Errorf("insert spin result: %w", err)
		}
		user = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	dispatchCommission(s.commissions, user, "spin", prize, s.now())

	return &SpinReward{
		NewBalance:    user.Balance,
		ActualPrize:   prize,
		PrizeIndex:    index,
		NewSpinsCount: user.SpinsToday,
	}, nil
}

// ResetQuotaIfExpired zeroes a counter once the reset interval has passed
// since it hit its limit.
func (s *LedgerService) ResetQuotaIfExpired(ctx context.Context, userID int64, q domain.Quota) error {
	reset, err := s.store.ResetQuota(ctx, userID, q, s.now().Add(-config.QuotaResetInterval))
	if err != nil {
		return fmt.Errorf("reset %s quota: %w", q, err)
	}
	if reset {
		slog.Info("daily quota reset", "user_id", userID, "quota", q)
	}
	return nil
}

// precheck reports the specific reason a quota reward cannot proceed and
// takes the user's action slot.
func (s *LedgerService) precheck(ctx context.Context, userID int64, q domain.Quota, limit int) error {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsBanned {
		return domain.ErrUserBanned
	}
	if user.Count(q) >= limit {
		if q == domain.QuotaSpins {
			return domain.ErrDailySpinLimit
		}
		return domain.ErrDailyAdLimit
	}

	ok, err := s.store.ClaimActionSlot(ctx, userID, s.now(), config.MinTimeBetweenActions)
	if err != nil {
		return fmt.Errorf("claim action slot: %w", err)
	}
	if !ok {
		return domain.ErrRateLimited
	}
	return nil
}
