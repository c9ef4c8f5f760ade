package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Rail is a payout channel.
type Rail string

const (
	RailBinance   Rail = "binance"
	RailFaucetPay Rail = "faucetpay"
)

// ParseRail maps a client-supplied method name to a Rail. An empty name
// selects Binance.
func ParseRail(s string) (Rail, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(RailBinance):
		return RailBinance, nil
	case string(RailFaucetPay):
		return RailFaucetPay, nil
	}
	return "", ErrInvalidRail
}

type WithdrawalStatus string

const (
	WithdrawalPending              WithdrawalStatus = "pending"
	WithdrawalCompleted            WithdrawalStatus = "completed"
	WithdrawalRejected             WithdrawalStatus = "rejected"
	WithdrawalRejectedRefundFailed WithdrawalStatus = "rejected_refund_failed"
)

type Withdrawal struct {
	ID          int64
	UserID      int64
	Amount      decimal.Decimal
	Rail        Rail
	Destination string
	Status      WithdrawalStatus
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// Decision is an admin verdict on a pending withdrawal.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)
