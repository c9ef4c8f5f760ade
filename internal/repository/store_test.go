package repository_test

import (
	"context"
	"errors"
	"io/fs"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/rewardhub"
	"github.com/set-night/rewardhub/internal/config"
	"github.com/set-night/rewardhub/internal/domain"
	"github.com/set-night/rewardhub/internal/repository"
	"github.com/set-night/rewardhub/internal/service"
	"github.com/set-night/rewardhub/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *repository.Store {
	t.Helper()
	return repository.NewStore(testutil.SetupTestDatabase(t).Pool)
}

func TestRunMigrations_Rerun(t *testing.T) {
	db := testutil.SetupTestDatabase(t)
	migrations, err := fs.Sub(rewardhub.MigrationsFS, "migrations")
	require.NoError(t, err)

	assert.NoError(t, repository.RunMigrations(db.URL, migrations))
	assert.Equal(t, int32(5), db.Pool.Config().MaxConns)
}

func createUser(t *testing.T, store *repository.Store, id int64, balance int64) {
	t.Helper()
	now := time.Now().UTC()
	created, err := store.CreateUser(context.Background(), &domain.User{
		ID:           id,
		FirstName:    "user",
		Balance:      decimal.NewFromInt(balance),
		LastActivity: now,
		CreatedAt:    now,
	})
	require.NoError(t, err)
	require.True(t, created)
}

func TestStore_Users(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	createUser(t, store, 1, 0)
	created, err := store.CreateUser(ctx, &domain.User{ID: 1, CreatedAt: time.Now(), LastActivity: time.Now()})
	require.NoError(t, err)
	assert.False(t, created)

	ref := int64(1)
	_, err = store.CreateUser(ctx, &domain.User{ID: 2, RefBy: &ref, CreatedAt: time.Now(), LastActivity: time.Now()})
	require.NoError(t, err)

	n, err := store.CountReferrals(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.GetUser(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.ErrorIs(t, store.SetBanned(ctx, 404, true), domain.ErrUserNotFound)
	assert.ErrorIs(t, store.SetBalance(ctx, 404, decimal.NewFromInt(1)), domain.ErrUserNotFound)
}

func TestStore_BalanceGuards(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	createUser(t, store, 1, 40)
	now := time.Now()

	_, err := store.DebitBalance(ctx, 1, decimal.NewFromInt(50), now)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	balance, err := store.DebitBalance(ctx, 1, decimal.NewFromInt(40), now)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	balance, err = store.CreditBalance(ctx, 1, decimal.RequireFromString("2.5"), now)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("2.5")))

	_, err = store.DebitBalance(ctx, 404, decimal.NewFromInt(1), now)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestStore_IncrementQuotaNeverExceedsMax(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	createUser(t, store, 1, 0)
	now := time.Now().UTC().Truncate(time.Microsecond)

	var wg sync.WaitGroup
	var mu sync.Mutex
	applied := 0
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := store.IncrementQuota(ctx, service.QuotaIncrement{
				UserID: 1, Quota: domain.QuotaSpins, Reward: decimal.NewFromInt(5), Max: 3, At: now,
			})
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, applied)
	u, err := store.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, u.SpinsToday)
	assert.True(t, u.Balance.Equal(decimal.NewFromInt(15)))
	require.NotNil(t, u.SpinsLimitReachedAt)
	assert.True(t, u.SpinsLimitReachedAt.Equal(now))

	reset, err := store.ResetQuota(ctx, 1, domain.QuotaSpins, now.Add(-time.Second))
	require.NoError(t, err)
	assert.False(t, reset)

	reset, err = store.ResetQuota(ctx, 1, domain.QuotaSpins, now)
	require.NoError(t, err)
	assert.True(t, reset)
}

func TestStore_ClaimActionSlot(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	createUser(t, store, 1, 0)
	now := time.Now()

	ok, err := store.ClaimActionSlot(ctx, 1, now, config.MinTimeBetweenActions)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.ClaimActionSlot(ctx, 1, now.Add(time.Second), config.MinTimeBetweenActions)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.ClaimActionSlot(ctx, 1, now.Add(config.MinTimeBetweenActions), config.MinTimeBetweenActions)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_ActionTokens(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	now := time.Now()

	token := &domain.ActionToken{UserID: 1, Value: "abc", Kind: domain.ActionWatchAd, CreatedAt: now}
	inserted, err := store.InsertActionToken(ctx, token)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.InsertActionToken(ctx, &domain.ActionToken{UserID: 1, Value: "def", Kind: domain.ActionWatchAd, CreatedAt: now})
	require.NoError(t, err)
	assert.False(t, inserted)

	found, err := store.FindActionToken(ctx, 1, "abc", domain.ActionWatchAd)
	require.NoError(t, err)
	require.NotNil(t, found)

	missing, err := store.FindActionToken(ctx, 2, "abc", domain.ActionWatchAd)
	require.NoError(t, err)
	assert.Nil(t, missing)

	deleted, err := store.DeleteActionToken(ctx, found.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = store.DeleteActionToken(ctx, found.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = store.InsertActionToken(ctx, &domain.ActionToken{UserID: 3, Value: "old", Kind: domain.ActionWithdraw, CreatedAt: now.Add(-time.Hour)})
	require.NoError(t, err)
	purged, err := store.PurgeActionTokens(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestStore_TasksAndCompletions(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	now := time.Now().UTC().Truncate(time.Microsecond)
	limit := 5

	id, err := store.CreateTask(ctx, &domain.Task{
		Name: "Join", Link: "https://t.me/rewardnews", Reward: decimal.NewFromInt(25),
		MaxParticipants: &limit, Type: domain.TaskTypeChannel, CreatedBy: 900, CreatedAt: now,
	})
	require.NoError(t, err)

	task, err := store.GetTask(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, task.MaxParticipants)
	assert.Equal(t, 5, *task.MaxParticipants)
	assert.Equal(t, "", task.Note)

	completion := &domain.TaskCompletion{UserID: 1, TaskID: id, RewardAmount: task.Reward, CreatedAt: now}
	require.NoError(t, store.InsertCompletion(ctx, completion))
	err = store.InsertCompletion(ctx, &domain.TaskCompletion{UserID: 1, TaskID: id, RewardAmount: task.Reward, CreatedAt: now})
	assert.ErrorIs(t, err, domain.ErrTaskAlreadyDone)

	done, err := store.HasCompletion(ctx, 1, id)
	require.NoError(t, err)
	assert.True(t, done)

	last, err := store.LastCompletionAt(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.Equal(now))

	ids, err := store.CompletedTaskIDs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{id}, ids)

	deleted, err := store.DeleteTask(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)
	n, err := store.CountCompletions(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = store.GetTask(ctx, id)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestStore_WithdrawalTransition(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	now := time.Now()

	id, err := store.InsertWithdrawal(ctx, &domain.Withdrawal{
		UserID: 1, Amount: decimal.NewFromInt(40), Rail: domain.RailBinance,
		Destination: "12345678", Status: domain.WithdrawalPending, CreatedAt: now,
	})
	require.NoError(t, err)

	pending, err := store.ListPendingWithdrawals(ctx, domain.RailBinance)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			moved, err := store.TransitionWithdrawal(ctx, id, domain.WithdrawalPending, domain.WithdrawalCompleted, now)
			assert.NoError(t, err)
			if moved {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	w, err := store.GetWithdrawal(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalCompleted, w.Status)
	assert.NotNil(t, w.ProcessedAt)

	_, err = store.GetWithdrawal(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrWithdrawalNotFound)
}

func TestStore_WithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	createUser(t, store, 1, 10)
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx service.Store) error {
		if _, err := tx.CreditBalance(ctx, 1, decimal.NewFromInt(5), time.Now()); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	u, err := store.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.True(t, u.Balance.Equal(decimal.NewFromInt(10)))
}

func TestStore_InsertCommissionOnce(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	c := &domain.Commission{
		EventID: uuid.New(), ReferrerID: 2, RefereeID: 1, Source: "ad",
		Reward: decimal.NewFromInt(3), Amount: decimal.RequireFromString("0.15"), CreatedAt: time.Now(),
	}

	inserted, err := store.InsertCommission(ctx, c)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.InsertCommission(ctx, c)
	require.NoError(t, err)
	assert.False(t, inserted)
}
