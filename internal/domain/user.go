package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID                  int64
	FirstName           string
	Username            string
	Balance             decimal.Decimal
	AdsWatchedToday     int
	SpinsToday          int
	AdsLimitReachedAt   *time.Time
	SpinsLimitReachedAt *time.Time
	IsBanned            bool
	RefBy               *int64
	LastActivity        time.Time
	LastActionAt        *time.Time
	CreatedAt           time.Time
}

// Quota names one of the per-user daily counters.
type Quota string

const (
	QuotaAds   Quota = "ads"
	QuotaSpins Quota = "spins"
)

// Count returns the current value of the counter.
func (u *User) Count(q Quota) int {
	if q == QuotaSpins {
		return u.SpinsToday
	}
	return u.AdsWatchedToday
}

// LimitReachedAt returns when the counter last hit its maximum.
func (u *User) LimitReachedAt(q Quota) *time.Time {
	if q == QuotaSpins {
		return u.SpinsLimitReachedAt
	}
	return u.AdsLimitReachedAt
}
