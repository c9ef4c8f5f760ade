package service_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/set-night/rewardhub/internal/domain"
	"github.com/set-night/rewardhub/internal/service"
	"github.com/set-night/rewardhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminID = int64(900)

func newTokenService(store *testutil.MemStore, clock *testutil.Clock) *service.ActionTokenService {
	s := service.NewActionTokenService(store, testutil.Admins{adminID})
	s.SetClock(clock.Now)
	return s
}

func TestActionTokenService_IssueCoalesces(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemStore()
	clock := testutil.NewClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	tokens := newTokenService(store, clock)

	first, err := tokens.Issue(ctx, 1, domain.ActionWatchAd)
	require.NoError(t, err)
	assert.Len(t, first, 64)

	clock.Advance(30 * time.Second)
	second, err := tokens.Issue(ctx, 1, domain.ActionWatchAd)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.ActionTokenCount())

	other, err := tokens.Issue(ctx, 1, domain.ActionPreSpin)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestActionTokenService_IssueReplacesExpired(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemStore()
	clock := testutil.NewClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	tokens := newTokenService(store, clock)

	first, err := tokens.Issue(ctx, 1, domain.ActionWatchAd)
	require.NoError(t, err)

	clock.Advance(61 * time.Second)
	second, err := tokens.Issue(ctx, 1, domain.ActionWatchAd)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, 1, store.ActionTokenCount())
}

func TestActionTokenService_IssueRejectsUnknownKind(t *testing.T) {
	tokens := newTokenService(testutil.NewMemStore(), testutil.NewClock(time.Now()))

	for _, kind := range []string{"", "stealBalance", "completeTask_", "completeTask_abc", "completeTask_-3"} {
		_, err := tokens.Issue(context.Background(), 1, kind)
		assert.ErrorIs(t, err, domain.ErrInvalidActionKind, kind)
	}
	_, err := tokens.Issue(context.Background(), 1, domain.CompleteTaskAction(7))
	assert.NoError(t, err)
}

func TestActionTokenService_RedeemOnce(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemStore()
	clock := testutil.NewClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	tokens := newTokenService(store, clock)

	value, err := tokens.Issue(ctx, 1, domain.ActionWatchAd)
	require.NoError(t, err)

	require.NoError(t, tokens.Redeem(ctx, 1, value, domain.ActionWatchAd))
	assert.ErrorIs(t, tokens.Redeem(ctx, 1, value, domain.ActionWatchAd), domain.ErrTokenInvalidOrUsed)
	assert.Equal(t, 0, store.ActionTokenCount())
}

func TestActionTokenService_RedeemScopedToUserAndKind(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemStore()
	tokens := newTokenService(store, testutil.NewClock(time.Now()))

	value, err := tokens.Issue(ctx, 1, domain.ActionWatchAd)
	require.NoError(t, err)

	assert.ErrorIs(t, tokens.Redeem(ctx, 2, value, domain.ActionWatchAd), domain.ErrTokenInvalidOrUsed)
	assert.ErrorIs(t, tokens.Redeem(ctx, 1, value, domain.ActionSpinResult), domain.ErrTokenInvalidOrUsed)
	assert.NoError(t, tokens.Redeem(ctx, 1, value, domain.ActionWatchAd))
}

func TestActionTokenService_RedeemExpired(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemStore()
	clock := testutil.NewClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	tokens := newTokenService(store, clock)

	value, err := tokens.Issue(ctx, 1, domain.ActionWatchAd)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	err = tokens.Redeem(ctx, 1, value, domain.ActionWatchAd)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
	assert.Equal(t, domain.KindExpired, domain.KindOf(err))
	assert.Equal(t, 0, store.ActionTokenCount())
}

func TestActionTokenService_RedeemMissing(t *testing.T) {
	tokens := newTokenService(testutil.NewMemStore(), testutil.NewClock(time.Now()))
	assert.ErrorIs(t, tokens.Redeem(context.Background(), 1, "", domain.ActionWatchAd), domain.ErrMissingToken)
}

func TestActionTokenService_ConcurrentRedeem(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemStore()
	tokens := newTokenService(store, testutil.NewClock(time.Now()))

	value, err := tokens.Issue(ctx, 1, domain.ActionWatchAd)
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tokens.Redeem(ctx, 1, value, domain.ActionWatchAd) == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestActionTokenService_Authorize(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemStore()
	tokens := newTokenService(store, testutil.NewClock(time.Now()))

	t.Run("admin kinds forbidden to players", func(t *testing.T) {
		err := tokens.Authorize(ctx, 1, "anything", domain.ActionCreateTask)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("admin needs no token for admin kinds", func(t *testing.T) {
		assert.NoError(t, tokens.Authorize(ctx, adminID, "", domain.ActionAdmin))
	})

	t.Run("admin needs no token to withdraw", func(t *testing.T) {
		assert.NoError(t, tokens.Authorize(ctx, adminID, "", domain.ActionWithdraw))
	})

	t.Run("player withdraw needs a token", func(t *testing.T) {
		assert.ErrorIs(t, tokens.Authorize(ctx, 1, "", domain.ActionWithdraw), domain.ErrMissingToken)

		value, err := tokens.Issue(ctx, 1, domain.ActionWithdraw)
		require.NoError(t, err)
		assert.NoError(t, tokens.Authorize(ctx, 1, value, domain.ActionWithdraw))
	})
}

func TestActionTokenService_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemStore()
	clock := testutil.NewClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	tokens := newTokenService(store, clock)

	_, err := tokens.Issue(ctx, 1, domain.ActionWatchAd)
	require.NoError(t, err)
	clock.Advance(45 * time.Second)
	_, err = tokens.Issue(ctx, 2, domain.ActionWatchAd)
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	n, err := tokens.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, store.ActionTokenCount())
}
