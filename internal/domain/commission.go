package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CommissionEvent asks the commission worker to pay a referrer a share of
// a reward earned by one of its referees.
type CommissionEvent struct {
	ID         uuid.UUID       `json:"id"`
	ReferrerID int64           `json:"referrer_id"`
	RefereeID  int64           `json:"referee_id"`
	Source     string          `json:"source"`
	Reward     decimal.Decimal `json:"reward"`
	CreatedAt  time.Time       `json:"created_at"`
}

type Commission struct {
	ID         int64
	EventID    uuid.UUID
	ReferrerID int64
	RefereeID  int64
	Source     string
	Reward     decimal.Decimal
	Amount     decimal.Decimal
	CreatedAt  time.Time
}
