package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/set-night/rewardhub/internal/domain"
)

const taskColumns = `id, name, link, reward, max_participants, type, skip_verification,
	coalesce(note, ''), created_by, created_at`

func scanTask(row pgx.Row) (domain.Task, error) {
	var t domain.Task
	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Link,
		&t.Reward,
		&t.MaxParticipants,
		&t.Type,
		&t.SkipVerification,
		&t.Note,
		&t.CreatedBy,
		&t.CreatedAt,
	)
	return t, err
}

func (s *Store) GetTask(ctx context.Context, id int64) (*domain.Task, error) {
	t, err := scanTask(s.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &t, nil
}

func (s *Store) ListTasks(ctx context.Context) ([]domain.Task, error) {
	rows, err := s.db.Query(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	tasks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Task, error) {
		return scanTask(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan tasks: %w", err)
	}
	return tasks, nil
}

func (s *Store) CreateTask(ctx context.Context, t *domain.Task) (int64, error) {
	var note *string
	if t.Note != "" {
		note = &t.Note
	}
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO tasks (name, link, reward, max_participants, type, skip_verification, note, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		t.Name, t.Link, t.Reward, t.MaxParticipants, t.Type, t.SkipVerification, note, t.CreatedBy, t.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	return id, nil
}

// DeleteTask removes the task; completions go with it through ON DELETE CASCADE.
func (s *Store) DeleteTask(ctx context.Context, id int64) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) LastCompletionAt(ctx context.Context, userID int64) (*time.Time, error) {
	var last *time.Time
	err := s.db.QueryRow(ctx,
		`SELECT max(created_at) FROM task_completions WHERE user_id = $1`, userID,
	).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("last completion: %w", err)
	}
	return last, nil
}

func (s *Store) HasCompletion(ctx context.Context, userID, taskID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM task_completions WHERE user_id = $1 AND task_id = $2)`,
		userID, taskID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has completion: %w", err)
	}
	return exists, nil
}

func (s *Store) CountCompletions(ctx context.Context, taskID int64) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM task_completions WHERE task_id = $1`, taskID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count completions: %w", err)
	}
	return n, nil
}

func (s *Store) CompletedTaskIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.db.Query(ctx, `SELECT task_id FROM task_completions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("completed tasks: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan completed tasks: %w", err)
	}
	return ids, nil
}

func (s *Store) InsertCompletion(ctx context.Context, c *domain.TaskCompletion) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO task_completions (user_id, task_id, reward_amount, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		c.UserID, c.TaskID, c.RewardAmount, c.CreatedAt,
	).Scan(&c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrTaskAlreadyDone
		}
		return fmt.Errorf("insert completion: %w", err)
	}
	return nil
}

func (s *Store) InsertSpinResult(ctx context.Context, r *domain.SpinResult) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO spin_results (user_id, prize, prize_index, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		r.UserID, r.Prize, r.PrizeIndex, r.CreatedAt,
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("insert spin result: %w", err)
	}
	return nil
}
