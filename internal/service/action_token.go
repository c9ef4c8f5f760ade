package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/set-night/rewardhub/internal/config"
	"github.com/set-night/rewardhub/internal/domain"
)

const actionTokenBytes = 32

// ActionTokenService issues and redeems single-use tokens that gate every
// balance-mutating request.
type ActionTokenService struct {
	store      TokenStore
	privileges Privileges
	ttl        time.Duration
	now        func() time.Time
}

func NewActionTokenService(store TokenStore, privileges Privileges) *ActionTokenService {
	return &ActionTokenService{
		store:      store,
		privileges: privileges,
		ttl:        config.ActionTokenTTL,
		now:        time.Now,
	}
}

// Issue returns the live token for (userID, kind), minting one if needed.
func (s *ActionTokenService) Issue(ctx context.Context, userID int64, kind string) (string, error) {
	if !domain.ValidActionKind(kind) {
		return "", domain.ErrInvalidActionKind
	}

	existing, err := s.store.GetActionToken(ctx, userID, kind)
	if err != nil {
		return "", fmt.Errorf("get action token: %w", err)
	}
	if existing != nil {
		if s.live(existing) {
			return existing.Value, nil
		}
		if err := s.store.DeleteActionTokens(ctx, userID, kind); err != nil {
			return "", fmt.Errorf("delete stale action token: %w", err)
		}
	}

	value, err := generateActionToken()
	if err != nil {
		return "", fmt.Errorf("generate action token: %w", err)
	}
	token := &domain.ActionToken{
		UserID:    userID,
		Value:     value,
		Kind:      kind,
		CreatedAt: s.now(),
	}
	inserted, err := s.store.InsertActionToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("insert action token: %w", err)
	}
	if inserted {
		return value, nil
	}

	// A concurrent Issue for the same pair won the insert; hand out its token.
	winner, err := s.store.GetActionToken(ctx, userID, kind)
	if err != nil {
		return "", fmt.Errorf("get action token: %w", err)
	}
	if winner == nil || !s.live(winner) {
		return "", domain.Newf(domain.KindConflict, "failed to generate security token, please retry")
	}
	return winner.Value, nil
}

// Redeem consumes the token. Only one caller can redeem a given token.
func (s *ActionTokenService) Redeem(ctx context.Context, userID int64, value, kind string) error {
	if value == "" {
		return domain.ErrMissingToken
	}

	token, err := s.store.FindActionToken(ctx, userID, value, kind)
	if err != nil {
		return fmt.Errorf("find action token: %w", err)
	}
	if token == nil {
		return domain.ErrTokenInvalidOrUsed
	}

	if !s.live(token) {
		if _, err := s.store.DeleteActionToken(ctx, token.ID); err != nil {
			slog.Warn("delete expired action token", "error", err, "user_id", userID)
		}
		return domain.ErrTokenExpired
	}

	deleted, err := s.store.DeleteActionToken(ctx, token.ID)
	if err != nil {
		return fmt.Errorf("delete action token: %w", err)
	}
	if !deleted {
		return domain.ErrTokenInvalidOrUsed
	}
	return nil
}

// Authorize applies the privilege rules in front of Redeem. Admin-scoped
// kinds require an allow-listed caller, who then needs no token; allow-listed
// callers also skip the token for withdrawals.
func (s *ActionTokenService) Authorize(ctx context.Context, userID int64, value, kind string) error {
	admin := s.privileges.IsAdmin(userID)
	if domain.IsAdminAction(kind) {
		if !admin {
			return domain.ErrForbidden
		}
		return nil
	}
	if admin && kind == domain.ActionWithdraw {
		return nil
	}
	return s.Redeem(ctx, userID, value, kind)
}

// PurgeExpired removes tokens nobody came back for.
func (s *ActionTokenService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.store.PurgeActionTokens(ctx, s.now().Add(-s.ttl))
	if err != nil {
		return 0, fmt.Errorf("purge action tokens: %w", err)
	}
	return n, nil
}

func (s *ActionTokenService) live(t *domain.ActionToken) bool {
	return s.now().Sub(t.CreatedAt) <= s.ttl
}

func generateActionToken() (string, error) {
	b := make([]byte, actionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
