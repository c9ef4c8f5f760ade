package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SpinResult is an audit row for one wheel spin.
type SpinResult struct {
	ID         int64
	UserID     int64
	Prize      decimal.Decimal
	PrizeIndex int
	CreatedAt  time.Time
}
