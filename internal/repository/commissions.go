package repository

import (
	"context"
	"fmt"

	"github.com/set-night/rewardhub/internal/domain"
)

func (s *Store) InsertCommission(ctx context.Context, c *domain.Commission) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO referral_commissions (event_id, referrer_id, referee_id, source, reward, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO NOTHING`,
		c.EventID, c.ReferrerID, c.RefereeID, c.Source, c.Reward, c.Amount, c.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert commission: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
