package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/set-night/rewardhub/internal/service"
	"github.com/shopspring/decimal"
)

// flexInt accepts a JSON number or a numeric string. Empty strings and null
// leave it at zero.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Accept integral floats such as 12.0.
		d, derr := decimal.NewFromString(s)
		if derr != nil || !d.IsInteger() {
			return fmt.Errorf("invalid integer %q", s)
		}
		n = d.IntPart()
	}
	*f = flexInt(n)
	return nil
}

// apiRequest is the union of every field any request type reads.
type apiRequest struct {
	Type     string  `json:"type"`
	InitData string  `json:"initData"`
	UserID   flexInt `json:"user_id"`
	ActionID string  `json:"action_id"`

	// generateActionId
	ActionType string `json:"action_type"`

	// register
	RefBy     flexInt `json:"ref_by"`
	FirstName string  `json:"first_name"`
	Username  string  `json:"username"`

	// tasks
	TaskID           flexInt          `json:"task_id"`
	Name             string           `json:"name"`
	Link             string           `json:"link"`
	Reward           *decimal.Decimal `json:"reward"`
	MaxParticipants  *flexInt         `json:"max_participants"`
	Note             string           `json:"note"`
	TaskType         string           `json:"task_type"`
	NoVerification   bool             `json:"no_verification"`
	SkipVerification bool             `json:"skip_verification"`

	// admin
	SearchUserID flexInt          `json:"search_user_id"`
	TargetUserID flexInt          `json:"target_user_id"`
	NewBalance   *decimal.Decimal `json:"new_balance"`
	Action       string           `json:"action"`
	RequestID    flexInt          `json:"request_id"`
	UserToBan    flexInt          `json:"user_to_ban"`
	Method       string           `json:"method"`

	// withdraw
	Amount         *decimal.Decimal `json:"amount"`
	BinanceID      string           `json:"binance_id"`
	FaucetPayEmail string           `json:"faucetpay_email"`

	session *service.Session
}

func (r *apiRequest) userID() int64 { return int64(r.UserID) }

// displayName prefers the names signed into init data over the body.
func (r *apiRequest) displayName() (firstName, username string) {
	firstName, username = r.FirstName, r.Username
	if r.session != nil {
		if r.session.FirstName != "" {
			firstName = r.session.FirstName
		}
		if r.session.Username != "" {
			username = r.session.Username
		}
	}
	return firstName, username
}
