package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/set-night/rewardhub/internal/domain"
)

const tokenColumns = `id, user_id, token, action_kind, created_at`

func scanToken(row pgx.Row) (*domain.ActionToken, error) {
	var t domain.ActionToken
	if err := row.Scan(&t.ID, &t.UserID, &t.Value, &t.Kind, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (s *Store) GetActionToken(ctx context.Context, userID int64, kind string) (*domain.ActionToken, error) {
	t, err := scanToken(s.db.QueryRow(ctx,
		`SELECT `+tokenColumns+` FROM action_tokens WHERE user_id = $1 AND action_kind = $2`,
		userID, kind,
	))
	if err != nil {
		return nil, fmt.Errorf("get action token: %w", err)
	}
	return t, nil
}

func (s *Store) InsertActionToken(ctx context.Context, t *domain.ActionToken) (bool, error) {
	err := s.db.QueryRow(ctx, `
		INSERT INTO action_tokens (user_id, token, action_kind, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING
		RETURNING id`,
		t.UserID, t.Value, t.Kind, t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("insert action token: %w", err)
	}
	return true, nil
}

func (s *Store) DeleteActionTokens(ctx context.Context, userID int64, kind string) error {
	if _, err := s.db.Exec(ctx,
		`DELETE FROM action_tokens WHERE user_id = $1 AND action_kind = $2`,
		userID, kind,
	); err != nil {
		return fmt.Errorf("delete action tokens: %w", err)
	}
	return nil
}

func (s *Store) FindActionToken(ctx context.Context, userID int64, value, kind string) (*domain.ActionToken, error) {
	t, err := scanToken(s.db.QueryRow(ctx,
		`SELECT `+tokenColumns+` FROM action_tokens WHERE user_id = $1 AND token = $2 AND action_kind = $3`,
		userID, value, kind,
	))
	if err != nil {
		return nil, fmt.Errorf("find action token: %w", err)
	}
	return t, nil
}

func (s *Store) DeleteActionToken(ctx context.Context, id int64) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM action_tokens WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete action token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) PurgeActionTokens(ctx context.Context, createdBefore time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM action_tokens WHERE created_at < $1`, createdBefore)
	if err != nil {
		return 0, fmt.Errorf("purge action tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
