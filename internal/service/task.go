package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/set-night/rewardhub/internal/config"
	"github.com/set-night/rewardhub/internal/domain"
	"github.com/shopspring/decimal"
)

var channelLinkPattern = regexp.MustCompile(`(?:t\.me|telegram\.me)/([a-zA-Z0-9_]+)`)

// ChannelHandle extracts "@handle" from a t.me or telegram.me link.
func ChannelHandle(link string) (string, bool) {
	m := channelLinkPattern.FindStringSubmatch(link)
	if m == nil {
		return "", false
	}
	return "@" + m[1], true
}

// TaskService lists, manages and verifies completion of tasks.
type TaskService struct {
	store       Store
	tokens      *ActionTokenService
	verifier    *InitDataVerifier
	membership  MembershipChecker
	commissions CommissionDispatcher
	cooldown    time.Duration
	now         func() time.Time
}

func NewTaskService(store Store, tokens *ActionTokenService, verifier *InitDataVerifier, membership MembershipChecker, commissions CommissionDispatcher) *TaskService {
	return &TaskService{
		store:       store,
		tokens:      tokens,
		verifier:    verifier,
		membership:  membership,
		commissions: commissions,
		cooldown:    config.MinTaskCompletionInterval,
		now:         time.Now,
	}
}

// TaskView is a task as shown to one user.
type TaskView struct {
	TaskID          int64           `json:"task_id"`
	Name            string          `json:"name"`
	Link            string          `json:"link"`
	Reward          decimal.Decimal `json:"reward"`
	MaxParticipants *int            `json:"max_participants"`
	IsCompleted     bool            `json:"is_completed"`
	Type            domain.TaskType `json:"type"`
	NoVerification  bool            `json:"no_verification"`
}

// List returns every task annotated with the user's completion state.
func (s *TaskService) List(ctx context.Context, userID int64) ([]TaskView, error) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	done, err := s.store.CompletedTaskIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list completed tasks: %w", err)
	}
	completed := make(map[int64]bool, len(done))
	for _, id := range done {
		completed[id] = true
	}

	views := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, TaskView{
			TaskID:          t.ID,
			Name:            t.Name,
			Link:            t.Link,
			Reward:          t.Reward,
			MaxParticipants: t.MaxParticipants,
			IsCompleted:     completed[t.ID],
			Type:            t.Type,
			NoVerification:  t.SkipVerification,
		})
	}
	return views, nil
}

// CreateTaskParams is the admin input for a new task.
type CreateTaskParams struct {
	Name             string
	Link             string
	Reward           decimal.Decimal
	MaxParticipants  *int
	Note             string
	Type             string
	SkipVerification bool
	CreatedBy        int64
}

func (s *TaskService) Create(ctx context.Context, p CreateTaskParams) (int64, error) {
	name := strings.TrimSpace(p.Name)
	link := strings.TrimSpace(p.Link)
	if name == "" || link == "" || p.Reward.IsNegative() {
		return 0, domain.ErrInvalidTask
	}
	if !domain.ValidMoney(p.Reward) {
		return 0, domain.ErrInvalidAmount
	}
	if p.MaxParticipants != nil && *p.MaxParticipants <= 0 {
		return 0, domain.ErrInvalidParticipantCap
	}

	taskType := domain.TaskType(strings.ToLower(strings.TrimSpace(p.Type)))
	switch taskType {
	case "":
		taskType = domain.TaskTypeChannel
	case domain.TaskTypeChannel, domain.TaskTypeBot:
	default:
		return 0, domain.ErrInvalidTaskType
	}

	id, err := s.store.CreateTask(ctx, &domain.Task{
		Name:             name,
		Link:             link,
		Reward:           p.Reward,
		MaxParticipants:  p.MaxParticipants,
		Type:             taskType,
		SkipVerification: p.SkipVerification,
		Note:             strings.TrimSpace(p.Note),
		CreatedBy:        p.CreatedBy,
		CreatedAt:        s.now(),
	})
	if err != nil {
		return 0, fmt.Errorf("create task: %w", err)
	}
	slog.Info("task created", "task_id", id, "type", taskType, "created_by", p.CreatedBy)
	return id, nil
}

// Delete removes the task together with its completions.
func (s *TaskService) Delete(ctx context.Context, taskID int64) error {
	deleted, err := s.store.DeleteTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if !deleted {
		return domain.ErrTaskNotFound
	}
	return nil
}

// CompleteParams is one completion attempt.
type CompleteParams struct {
	UserID   int64
	TaskID   int64
	ActionID string
	InitData string
}

// CompleteResult is the outcome of a granted completion.
type CompleteResult struct {
	NewBalance   decimal.Decimal `json:"new_balance"`
	ActualReward decimal.Decimal `json:"actual_reward"`
	Message      string          `json:"message"`
}

// Complete runs the verification pipeline and grants the reward at most once
// per (user, task).
func (s *TaskService) Complete(ctx context.Context, p CompleteParams) (*CompleteResult, error) {
	task, err := s.store.GetTask(ctx, p.TaskID)
	if err != nil {
		return nil, err
	}

	if err := s.authorize(ctx, task, p); err != nil {
		return nil, err
	}

	last, err := s.store.LastCompletionAt(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("get last completion: %w", err)
	}
	if last != nil && s.now().Sub(*last) < s.cooldown {
		return nil, domain.ErrTaskTooSoon
	}

	done, err := s.store.HasCompletion(ctx, p.UserID, task.ID)
	if err != nil {
		return nil, fmt.Errorf("check completion: %w", err)
	}
	if done {
		return nil, domain.ErrTaskAlreadyDone
	}

	user, err := s.store.GetUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if user.IsBanned {
		return nil, domain.ErrUserBanned
	}

	if task.MaxParticipants != nil {
		n, err := s.store.CountCompletions(ctx, task.ID)
		if err != nil {
			return nil, fmt.Errorf("count completions: %w", err)
		}
		if n >= *task.MaxParticipants {
			return nil, domain.ErrTaskFull
		}
	}

	ok, err := s.store.ClaimActionSlot(ctx, p.UserID, s.now(), config.MinTimeBetweenActions)
	if err != nil {
		return nil, fmt.Errorf("claim action slot: %w", err)
	}
	if !ok {
		return nil, domain.ErrRateLimited
	}

	if task.RequiresVerification() {
		if err := s.verifyMembership(ctx, task, p.UserID); err != nil {
			return nil, err
		}
	}

	var newBalance decimal.Decimal
	err = s.store.WithTx(ctx, func(tx Store) error {
		if err := tx.InsertCompletion(ctx, &domain.TaskCompletion{
			UserID:       p.UserID,
			TaskID:       task.ID,
			RewardAmount: task.Reward,
			CreatedAt:    s.now(),
		}); err != nil {
			if errors.Is(err, domain.ErrTaskAlreadyDone) {
				return err
			}
			return fmt.Errorf("insert completion: %w", err)
		}
		balance, err := tx.CreditBalance(ctx, p.UserID, task.Reward, s.now())
		if err != nil {
			return fmt.Errorf("credit task reward: %w", err)
		}
		newBalance = balance
		return nil
	})
	if err != nil {
		return nil, err
	}

	dispatchCommission(s.commissions, user, "task", task.Reward, s.now())

	return &CompleteResult{
		NewBalance:   newBalance,
		ActualReward: task.Reward,
		Message:      "Task completed successfully.",
	}, nil
}

// authorize requires init data and a token for human-facing tasks. Bot tasks
// skip the init data check and validate a token only when one is supplied.
func (s *TaskService) authorize(ctx context.Context, task *domain.Task, p CompleteParams) error {
	kind := domain.CompleteTaskAction(task.ID)
	if task.Type == domain.TaskTypeBot {
		if p.ActionID == "" {
			return nil
		}
		return s.tokens.Redeem(ctx, p.UserID, p.ActionID, kind)
	}

	session, err := s.verifier.Verify(p.InitData)
	if err != nil {
		return err
	}
	if err := session.CheckUser(p.UserID); err != nil {
		return err
	}
	return s.tokens.Redeem(ctx, p.UserID, p.ActionID, kind)
}

// verifyMembership asks the oracle whether the user joined the task's
// channel. Links that do not name a t.me channel are not checked.
func (s *TaskService) verifyMembership(ctx context.Context, task *domain.Task, userID int64) error {
	channel, ok := ChannelHandle(task.Link)
	if !ok {
		slog.Warn("channel task link is not a t.me/telegram.me link, skipping membership check",
			"task_id", task.ID,
			"link", task.Link,
		)
		return nil
	}

	status, err := s.membership.MemberStatus(ctx, userID, channel)
	if err != nil {
		slog.Error("membership check failed", "error", err, "task_id", task.ID, "channel", channel, "user_id", userID)
		return domain.ErrNotJoined(channel)
	}
	if !status.IsMember() {
		return domain.ErrNotJoined(channel)
	}
	return nil
}
