package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/set-night/rewardhub/internal/domain"
	"github.com/set-night/rewardhub/internal/service"
	"github.com/shopspring/decimal"
)

// Every handler in this file is restricted to allow-listed admins; the
// privilege check runs before anything is read or written.

func (h *Handler) handleCreateTask(ctx context.Context, req *apiRequest) (any, error) {
	if err := h.tokens.Authorize(ctx, req.userID(), req.ActionID, domain.ActionCreateTask); err != nil {
		return nil, err
	}
	if req.Reward == nil {
		return nil, domain.ErrInvalidTask
	}

	var maxParticipants *int
	if req.MaxParticipants != nil {
		n := int(*req.MaxParticipants)
		maxParticipants = &n
	}
	id, err := h.tasks.Create(ctx, service.CreateTaskParams{
		Name:             req.Name,
		Link:             req.Link,
		Reward:           *req.Reward,
		MaxParticipants:  maxParticipants,
		Note:             req.Note,
		Type:             req.TaskType,
		SkipVerification: req.NoVerification || req.SkipVerification,
		CreatedBy:        req.userID(),
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"message": "Task created successfully.", "task_id": id}, nil
}

func (h *Handler) handleDeleteTask(ctx context.Context, req *apiRequest) (any, error) {
	if req.TaskID <= 0 {
		return nil, validationError("Invalid task_id.")
	}
	if err := h.tokens.Authorize(ctx, req.userID(), req.ActionID, domain.ActionDeleteTask); err != nil {
		return nil, err
	}
	if err := h.tasks.Delete(ctx, int64(req.TaskID)); err != nil {
		return nil, err
	}
	return map[string]string{
		"message": fmt.Sprintf("Task %d and its completions deleted successfully.", req.TaskID),
	}, nil
}

func (h *Handler) handleSearchUser(ctx context.Context, req *apiRequest) (any, error) {
	if req.SearchUserID == 0 {
		return nil, validationError("Missing search_user_id.")
	}
	if err := h.tokens.Authorize(ctx, req.userID(), req.ActionID, domain.ActionSearchUser); err != nil {
		return nil, err
	}
	user, err := h.users.Search(ctx, int64(req.SearchUserID))
	if err != nil {
		return nil, err
	}
	return map[string]any{"user": user}, nil
}

type pendingWithdrawal struct {
	ID             int64           `json:"id"`
	UserID         int64           `json:"user_id"`
	Amount         decimal.Decimal `json:"amount"`
	BinanceID      string          `json:"binance_id,omitempty"`
	FaucetPayEmail string          `json:"faucetpay_email,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	Method         domain.Rail     `json:"method"`
}

func (h *Handler) handleGetPendingWithdrawals(ctx context.Context, req *apiRequest) (any, error) {
	if err := h.tokens.Authorize(ctx, req.userID(), req.ActionID, domain.ActionListPending); err != nil {
		return nil, err
	}
	rail, err := domain.ParseRail(req.Method)
	if err != nil {
		return nil, err
	}
	list, err := h.withdrawals.ListPending(ctx, rail)
	if err != nil {
		return nil, err
	}

	out := make([]pendingWithdrawal, 0, len(list))
	for _, w := range list {
		p := pendingWithdrawal{
			ID:        w.ID,
			UserID:    w.UserID,
			Amount:    w.Amount,
			CreatedAt: w.CreatedAt,
			Method:    w.Rail,
		}
		if w.Rail == domain.RailFaucetPay {
			p.FaucetPayEmail = w.Destination
		} else {
			p.BinanceID = w.Destination
		}
		out = append(out, p)
	}
	return map[string]any{"pending_withdrawals": out}, nil
}

func (h *Handler) handleUpdateBalance(ctx context.Context, req *apiRequest) (any, error) {
	if req.TargetUserID == 0 {
		return nil, validationError("Missing target_user_id.")
	}
	if req.NewBalance == nil {
		return nil, validationError("Missing new_balance.")
	}
	if err := h.tokens.Authorize(ctx, req.userID(), req.ActionID, domain.ActionUpdateBalance); err != nil {
		return nil, err
	}
	target := int64(req.TargetUserID)
	if err := h.users.SetBalance(ctx, target, *req.NewBalance); err != nil {
		return nil, err
	}
	return map[string]any{
		"message":     fmt.Sprintf("Balance updated for user %d.", target),
		"new_balance": *req.NewBalance,
	}, nil
}

func (h *Handler) handleToggleBan(ctx context.Context, req *apiRequest) (any, error) {
	if req.TargetUserID == 0 {
		return nil, validationError("Missing target_user_id.")
	}
	if req.Action == "" {
		return nil, validationError("Missing action (ban/unban).")
	}
	if err := h.tokens.Authorize(ctx, req.userID(), req.ActionID, domain.ActionToggleBan); err != nil {
		return nil, err
	}
	target := int64(req.TargetUserID)
	ban := req.Action == "ban"
	if err := h.users.SetBanned(ctx, target, ban); err != nil {
		return nil, err
	}
	verb := "unbanned"
	if ban {
		verb = "banned"
	}
	return map[string]any{
		"message":   fmt.Sprintf("User %d %s.", target, verb),
		"is_banned": ban,
	}, nil
}

func (h *Handler) handleAdminAction(ctx context.Context, req *apiRequest) (any, error) {
	if req.Action == "" {
		return nil, validationError("Missing action field.")
	}
	if err := h.tokens.Authorize(ctx, req.userID(), req.ActionID, domain.ActionAdmin); err != nil {
		return nil, err
	}

	switch req.Action {
	case "ban":
		if req.UserToBan == 0 {
			return nil, validationError("Missing user_to_ban for ban action.")
		}
		target := int64(req.UserToBan)
		if err := h.users.SetBanned(ctx, target, true); err != nil {
			return nil, err
		}
		return map[string]string{"message": fmt.Sprintf("User %d has been banned.", target)}, nil

	case string(domain.DecisionAccept), string(domain.DecisionReject):
		if req.RequestID <= 0 {
			return nil, validationError("Missing request_id for withdrawal action.")
		}
		return h.withdrawals.Settle(ctx, int64(req.RequestID), domain.Decision(req.Action))
	}

	return nil, validationError(fmt.Sprintf("Unknown admin action: %s", req.Action))
}
