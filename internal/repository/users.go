package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/set-night/rewardhub/internal/domain"
	"github.com/set-night/rewardhub/internal/service"
	"github.com/shopspring/decimal"
)

const userColumns = `id, first_name, username, balance, ads_watched_today, spins_today,
	ads_limit_reached_at, spins_limit_reached_at, is_banned, ref_by,
	last_activity, last_action_at, created_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.FirstName,
		&u.Username,
		&u.Balance,
		&u.AdsWatchedToday,
		&u.SpinsToday,
		&u.AdsLimitReachedAt,
		&u.SpinsLimitReachedAt,
		&u.IsBanned,
		&u.RefBy,
		&u.LastActivity,
		&u.LastActionAt,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// quotaColumns maps a quota to its counter and limit stamp columns.
func quotaColumns(q domain.Quota) (counter, reachedAt string) {
	if q == domain.QuotaSpins {
		return "spins_today", "spins_limit_reached_at"
	}
	return "ads_watched_today", "ads_limit_reached_at"
}

func (s *Store) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO users (id, first_name, username, balance, ref_by, last_activity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		u.ID, u.FirstName, u.Username, u.Balance, u.RefBy, u.LastActivity, u.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert user: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) CountReferrals(ctx context.Context, id int64) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM users WHERE ref_by = $1`, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("count referrals: %w", err)
	}
	return n, nil
}

func (s *Store) TouchUser(ctx context.Context, id int64, at time.Time) error {
	if _, err := s.db.Exec(ctx, `UPDATE users SET last_activity = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("touch user: %w", err)
	}
	return nil
}

func (s *Store) ResetQuota(ctx context.Context, id int64, q domain.Quota, reachedBefore time.Time) (bool, error) {
	counter, reachedAt := quotaColumns(q)
	tag, err := s.db.Exec(ctx, `
		UPDATE users SET `+counter+` = 0, `+reachedAt+` = NULL
		WHERE id = $1 AND `+reachedAt+` IS NOT NULL AND `+reachedAt+` <= $2`,
		id, reachedBefore,
	)
	if err != nil {
		return false, fmt.Errorf("reset quota: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// IncrementQuota re-checks the limit inside the UPDATE so concurrent
// requests cannot push the counter past Max.
func (s *Store) IncrementQuota(ctx context.Context, p service.QuotaIncrement) (*domain.User, bool, error) {
	counter, reachedAt := quotaColumns(p.Quota)
	u, err := scanUser(s.db.QueryRow(ctx, `
		UPDATE users SET
			balance = balance + $2,
			`+counter+` = `+counter+` + 1,
			`+reachedAt+` = CASE WHEN `+counter+` + 1 >= $3 THEN $4 ELSE `+reachedAt+` END,
			last_activity = $4
		WHERE id = $1 AND `+counter+` < $3 AND NOT is_banned
		RETURNING `+userColumns,
		p.UserID, p.Reward, p.Max, p.At,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("increment quota: %w", err)
	}
	return u, true, nil
}

func (s *Store) CreditBalance(ctx context.Context, id int64, amount decimal.Decimal, at time.Time) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.db.QueryRow(ctx, `
		UPDATE users SET balance = balance + $2, last_activity = $3
		WHERE id = $1
		RETURNING balance`,
		id, amount, at,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, domain.ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("credit balance: %w", err)
	}
	return balance, nil
}

func (s *Store) DebitBalance(ctx context.Context, id int64, amount decimal.Decimal, at time.Time) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.db.QueryRow(ctx, `
		UPDATE users SET balance = balance - $2, last_activity = $3
		WHERE id = $1 AND balance >= $2
		RETURNING balance`,
		id, amount, at,
	).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("debit balance: %w", err)
	}
	if _, err := s.GetUser(ctx, id); err != nil {
		return decimal.Zero, err
	}
	return decimal.Zero, domain.ErrInsufficientBalance
}

func (s *Store) SetBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	tag, err := s.db.Exec(ctx, `UPDATE users SET balance = $2 WHERE id = $1`, id, balance)
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (s *Store) SetBanned(ctx context.Context, id int64, banned bool) error {
	tag, err := s.db.Exec(ctx, `UPDATE users SET is_banned = $2 WHERE id = $1`, id, banned)
	if err != nil {
		return fmt.Errorf("set banned: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (s *Store) ClaimActionSlot(ctx context.Context, id int64, now time.Time, minGap time.Duration) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE users SET last_action_at = $2
		WHERE id = $1 AND (last_action_at IS NULL OR last_action_at <= $3)`,
		id, now, now.Add(-minGap),
	)
	if err != nil {
		return false, fmt.Errorf("claim action slot: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
