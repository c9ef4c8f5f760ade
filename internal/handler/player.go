package handler

import (
	"context"

	"github.com/set-night/rewardhub/internal/domain"
	"github.com/set-night/rewardhub/internal/service"
	"github.com/shopspring/decimal"
)

func (h *Handler) handleRegister(ctx context.Context, req *apiRequest) (any, error) {
	var refBy *int64
	if req.RefBy != 0 {
		id := int64(req.RefBy)
		refBy = &id
	}
	firstName, username := req.displayName()
	if _, err := h.users.Register(ctx, service.RegisterParams{
		UserID:    req.userID(),
		FirstName: firstName,
		Username:  username,
		RefBy:     refBy,
	}); err != nil {
		return nil, err
	}
	return map[string]string{"message": "User registered or already exists."}, nil
}

func (h *Handler) handleGetUserData(ctx context.Context, req *apiRequest) (any, error) {
	profile, err := h.users.Profile(ctx, req.userID())
	if err != nil {
		return nil, err
	}
	if profile.IsBanned {
		return map[string]any{
			"is_banned": true,
			"message":   "User is banned from accessing the app.",
		}, nil
	}
	return profile, nil
}

func (h *Handler) handleGetTasks(ctx context.Context, req *apiRequest) (any, error) {
	tasks, err := h.tasks.List(ctx, req.userID())
	if err != nil {
		return nil, err
	}
	return map[string]any{"tasks": tasks}, nil
}

func (h *Handler) handleGenerateActionID(ctx context.Context, req *apiRequest) (any, error) {
	if req.ActionType == "" {
		return nil, validationError("Missing action_type.")
	}
	token, err := h.tokens.Issue(ctx, req.userID(), req.ActionType)
	if err != nil {
		return nil, err
	}
	return map[string]string{"action_id": token}, nil
}

func (h *Handler) handleWatchAd(ctx context.Context, req *apiRequest) (any, error) {
	if err := h.tokens.Redeem(ctx, req.userID(), req.ActionID, domain.ActionWatchAd); err != nil {
		return nil, err
	}
	return h.ledger.WatchAd(ctx, req.userID())
}

func (h *Handler) handlePreSpin(ctx context.Context, req *apiRequest) (any, error) {
	if err := h.tokens.Redeem(ctx, req.userID(), req.ActionID, domain.ActionPreSpin); err != nil {
		return nil, err
	}
	if err := h.ledger.PreSpin(ctx, req.userID()); err != nil {
		return nil, err
	}
	return map[string]string{"message": "Pre-spin action secured."}, nil
}

func (h *Handler) handleSpinResult(ctx context.Context, req *apiRequest) (any, error) {
	if err := h.tokens.Redeem(ctx, req.userID(), req.ActionID, domain.ActionSpinResult); err != nil {
		return nil, err
	}
	return h.ledger.Spin(ctx, req.userID())
}

func (h *Handler) handleCompleteTask(ctx context.Context, req *apiRequest) (any, error) {
	if req.TaskID <= 0 {
		return nil, validationError("Missing or invalid task_id.")
	}
	return h.tasks.Complete(ctx, service.CompleteParams{
		UserID:   req.userID(),
		TaskID:   int64(req.TaskID),
		ActionID: req.ActionID,
		InitData: req.InitData,
	})
}

func (h *Handler) handleWithdraw(ctx context.Context, req *apiRequest) (any, error) {
	amount := decimal.Zero
	if req.Amount != nil {
		amount = *req.Amount
	}
	return h.withdrawals.Request(ctx, service.WithdrawParams{
		UserID:         req.userID(),
		ActionID:       req.ActionID,
		Amount:         amount,
		FaucetPayEmail: req.FaucetPayEmail,
		BinanceID:      req.BinanceID,
	})
}
