package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/set-night/rewardhub/internal/config"
	"github.com/set-night/rewardhub/internal/domain"
	"github.com/set-night/rewardhub/internal/service"
	"github.com/set-night/rewardhub/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type userFixture struct {
	ctx      context.Context
	store    *testutil.MemStore
	clock    *testutil.Clock
	notifier *testutil.RecordingNotifier
	users    *service.UserService
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()
	f := &userFixture{
		ctx:      context.Background(),
		store:    testutil.NewMemStore(),
		clock:    testutil.NewClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		notifier: &testutil.RecordingNotifier{},
	}
	tokens := newTokenService(f.store, f.clock)
	withdrawals := service.NewWithdrawalService(f.store, tokens, f.notifier)
	withdrawals.SetClock(f.clock.Now)
	ledger := newLedger(f.store, f.clock, nil)
	f.users = service.NewUserService(f.store, withdrawals, ledger, f.notifier)
	f.users.SetClock(f.clock.Now)
	return f
}

func TestUserService_Register(t *testing.T) {
	f := newUserFixture(t)
	referrer := int64(7)

	created, err := f.users.Register(f.ctx, service.RegisterParams{UserID: 1, FirstName: "Alice", Username: "alice", RefBy: &referrer})
	require.NoError(t, err)
	assert.True(t, created)

	u := f.store.User(1)
	assert.True(t, u.Balance.IsZero())
	require.NotNil(t, u.RefBy)
	assert.Equal(t, referrer, *u.RefBy)
	assert.Equal(t, []int64{1}, f.notifier.Registrations)

	created, err = f.users.Register(f.ctx, service.RegisterParams{UserID: 1, FirstName: "Alice"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, f.notifier.Registrations, 1)
}

func TestUserService_RegisterIgnoresSelfReferral(t *testing.T) {
	f := newUserFixture(t)
	self := int64(1)

	_, err := f.users.Register(f.ctx, service.RegisterParams{UserID: 1, RefBy: &self})
	require.NoError(t, err)
	assert.Nil(t, f.store.User(1).RefBy)
}

func TestUserService_RegisterBanned(t *testing.T) {
	f := newUserFixture(t)
	f.store.AddUser(domain.User{ID: 1, IsBanned: true})

	_, err := f.users.Register(f.ctx, service.RegisterParams{UserID: 1})
	assert.ErrorIs(t, err, domain.ErrUserBanned)
}

func TestUserService_Profile(t *testing.T) {
	f := newUserFixture(t)
	referrer := int64(1)
	f.store.AddUser(domain.User{ID: 1, Balance: decimal.NewFromInt(12), SpinsToday: 4})
	f.store.AddUser(domain.User{ID: 2, RefBy: &referrer})
	f.store.AddUser(domain.User{ID: 3, RefBy: &referrer})
	f.store.AddWithdrawal(domain.Withdrawal{
		UserID: 1, Amount: decimal.NewFromInt(5), Rail: domain.RailFaucetPay,
		Destination: "alice@example.com", Status: domain.WithdrawalPending, CreatedAt: f.clock.Now(),
	})

	p, err := f.users.Profile(f.ctx, 1)
	require.NoError(t, err)
	assert.True(t, p.Balance.Equal(decimal.NewFromInt(12)))
	assert.Equal(t, 4, p.SpinsToday)
	assert.Equal(t, 2, p.ReferralsCount)
	require.Len(t, p.WithdrawalHistory, 1)
	entry := p.WithdrawalHistory[0]
	assert.Equal(t, domain.RailFaucetPay, entry.Source)
	require.NotNil(t, entry.FaucetPayEmail)
	assert.Equal(t, "alice@example.com", *entry.FaucetPayEmail)
	assert.Nil(t, entry.BinanceID)
	assert.True(t, f.store.User(1).LastActivity.Equal(f.clock.Now()))
}

func TestUserService_ProfileResetsExpiredQuotas(t *testing.T) {
	f := newUserFixture(t)
	reachedAt := f.clock.Now().Add(-7 * time.Hour)
	recent := f.clock.Now().Add(-time.Hour)
	f.store.AddUser(domain.User{
		ID:                  1,
		AdsWatchedToday:     config.DailyMaxAds,
		AdsLimitReachedAt:   &reachedAt,
		SpinsToday:          config.DailyMaxSpins,
		SpinsLimitReachedAt: &recent,
	})

	p, err := f.users.Profile(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, p.AdsWatchedToday)
	assert.Nil(t, p.AdsLimitReachedAt)
	assert.Equal(t, config.DailyMaxSpins, p.SpinsToday)
	assert.NotNil(t, p.SpinsLimitReached)
}

func TestUserService_ProfileUnknownAndBanned(t *testing.T) {
	f := newUserFixture(t)
	f.store.AddUser(domain.User{ID: 2, Balance: decimal.NewFromInt(99), IsBanned: true})

	p, err := f.users.Profile(f.ctx, 1)
	require.NoError(t, err)
	assert.True(t, p.Balance.IsZero())
	assert.Empty(t, p.WithdrawalHistory)

	p, err = f.users.Profile(f.ctx, 2)
	require.NoError(t, err)
	assert.True(t, p.IsBanned)
	assert.True(t, p.Balance.IsZero())
}

func TestUserService_AdminOperations(t *testing.T) {
	f := newUserFixture(t)
	f.store.AddUser(domain.User{ID: 1, FirstName: "Alice", Balance: decimal.NewFromInt(3)})

	summary, err := f.users.Search(f.ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, summary.FirstName)
	assert.Equal(t, "Alice", *summary.FirstName)
	assert.Nil(t, summary.Username)

	_, err = f.users.Search(f.ctx, 2)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	require.NoError(t, f.users.SetBalance(f.ctx, 1, decimal.RequireFromString("120.5")))
	assert.True(t, f.store.User(1).Balance.Equal(decimal.RequireFromString("120.5")))
	assert.ErrorIs(t, f.users.SetBalance(f.ctx, 1, decimal.NewFromInt(-1)), domain.ErrInvalidAmount)
	assert.ErrorIs(t, f.users.SetBalance(f.ctx, 1, decimal.RequireFromString("1.123456789")), domain.ErrInvalidAmount)
	assert.True(t, f.store.User(1).Balance.Equal(decimal.RequireFromString("120.5")))
	assert.ErrorIs(t, f.users.SetBalance(f.ctx, 2, decimal.NewFromInt(1)), domain.ErrUserNotFound)

	require.NoError(t, f.users.SetBanned(f.ctx, 1, true))
	assert.True(t, f.store.User(1).IsBanned)
	require.NoError(t, f.users.SetBanned(f.ctx, 1, false))
	assert.False(t, f.store.User(1).IsBanned)
	assert.ErrorIs(t, f.users.SetBanned(f.ctx, 2, true), domain.ErrUserNotFound)
}
