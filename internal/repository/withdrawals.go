package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/set-night/rewardhub/internal/domain"
)

const withdrawalColumns = `id, user_id, amount, rail, destination, status, created_at, processed_at`

func scanWithdrawal(row pgx.Row) (domain.Withdrawal, error) {
	var w domain.Withdrawal
	err := row.Scan(
		&w.ID,
		&w.UserID,
		&w.Amount,
		&w.Rail,
		&w.Destination,
		&w.Status,
		&w.CreatedAt,
		&w.ProcessedAt,
	)
	return w, err
}

func (s *Store) collectWithdrawals(ctx context.Context, sql string, args ...any) ([]domain.Withdrawal, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Withdrawal, error) {
		return scanWithdrawal(row)
	})
}

func (s *Store) InsertWithdrawal(ctx context.Context, w *domain.Withdrawal) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO withdrawals (user_id, amount, rail, destination, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		w.UserID, w.Amount, w.Rail, w.Destination, w.Status, w.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert withdrawal: %w", err)
	}
	return id, nil
}

func (s *Store) GetWithdrawal(ctx context.Context, id int64) (*domain.Withdrawal, error) {
	w, err := scanWithdrawal(s.db.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("get withdrawal: %w", err)
	}
	return &w, nil
}

func (s *Store) ListPendingWithdrawals(ctx context.Context, rail domain.Rail) ([]domain.Withdrawal, error) {
	list, err := s.collectWithdrawals(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals
		WHERE status = 'pending' AND rail = $1
		ORDER BY created_at DESC`,
		rail,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending withdrawals: %w", err)
	}
	return list, nil
}

func (s *Store) ListUserWithdrawals(ctx context.Context, userID int64) ([]domain.Withdrawal, error) {
	list, err := s.collectWithdrawals(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list user withdrawals: %w", err)
	}
	return list, nil
}

func (s *Store) TransitionWithdrawal(ctx context.Context, id int64, from, to domain.WithdrawalStatus, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE withdrawals SET status = $3, processed_at = $4
		WHERE id = $1 AND status = $2`,
		id, from, to, at,
	)
	if err != nil {
		return false, fmt.Errorf("transition withdrawal: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) SetWithdrawalStatus(ctx context.Context, id int64, status domain.WithdrawalStatus) error {
	if _, err := s.db.Exec(ctx, `UPDATE withdrawals SET status = $2 WHERE id = $1`, id, status); err != nil {
		return fmt.Errorf("set withdrawal status: %w", err)
	}
	return nil
}
