package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TaskType string

const (
	TaskTypeChannel TaskType = "channel"
	TaskTypeBot     TaskType = "bot"
)

type Task struct {
	ID               int64
	Name             string
	Link             string
	Reward           decimal.Decimal
	MaxParticipants  *int
	Type             TaskType
	SkipVerification bool
	Note             string
	CreatedBy        int64
	CreatedAt        time.Time
}

// RequiresVerification reports whether completing the task needs proof of
// channel membership.
func (t *Task) RequiresVerification() bool {
	return t.Type == TaskTypeChannel && !t.SkipVerification
}

type TaskCompletion struct {
	ID           int64
	UserID       int64
	TaskID       int64
	RewardAmount decimal.Decimal
	CreatedAt    time.Time
}
