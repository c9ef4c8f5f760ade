package service_test

import (
	"net/url"
	"testing"
	"time"

	"github.com/set-night/rewardhub/internal/domain"
	"github.com/set-night/rewardhub/internal/service"
	"github.com/set-night/rewardhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBotToken = "123456:TEST-token"

func newVerifier(now time.Time) *service.InitDataVerifier {
	v := service.NewInitDataVerifier(testBotToken)
	v.SetClock(func() time.Time { return now })
	return v
}

func TestInitDataVerifier_Valid(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v := newVerifier(now)

	session, err := v.Verify(testutil.InitData(testBotToken, 42, now.Add(-time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, int64(42), session.UserID)
	assert.Equal(t, "Alice", session.FirstName)
	assert.Equal(t, "alice", session.Username)
	assert.NoError(t, session.CheckUser(42))
}

func TestInitDataVerifier_Tampered(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v := newVerifier(now)

	values, err := url.ParseQuery(testutil.InitData(testBotToken, 42, now))
	require.NoError(t, err)
	values.Set("user", `{"id":43,"first_name":"Mallory"}`)

	_, err = v.Verify(values.Encode())
	assert.ErrorIs(t, err, domain.ErrInitDataInvalid)
}

func TestInitDataVerifier_WrongBotToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v := newVerifier(now)

	_, err := v.Verify(testutil.InitData("other:token", 42, now))
	assert.ErrorIs(t, err, domain.ErrInitDataInvalid)
}

func TestInitDataVerifier_Expired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v := newVerifier(now)

	_, err := v.Verify(testutil.InitData(testBotToken, 42, now.Add(-21*time.Minute)))
	assert.ErrorIs(t, err, domain.ErrInitDataInvalid)

	_, err = v.Verify(testutil.InitData(testBotToken, 42, now.Add(-19*time.Minute)))
	assert.NoError(t, err)
}

func TestInitDataVerifier_FutureAuthDate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v := newVerifier(now)

	_, err := v.Verify(testutil.InitData(testBotToken, 42, now.Add(5*time.Minute)))
	assert.ErrorIs(t, err, domain.ErrInitDataInvalid)

	_, err = v.Verify(testutil.InitData(testBotToken, 42, now.Add(10*time.Second)))
	assert.NoError(t, err)
}

func TestInitDataVerifier_MissingInput(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := newVerifier(now).Verify("")
	assert.ErrorIs(t, err, domain.ErrInitDataInvalid)

	_, err = newVerifier(now).Verify("auth_date=1&user=%7B%7D")
	assert.ErrorIs(t, err, domain.ErrInitDataInvalid)

	_, err = service.NewInitDataVerifier("").Verify(testutil.InitData(testBotToken, 42, now))
	assert.ErrorIs(t, err, domain.ErrBotTokenMissing)
}

func TestSession_CheckUser(t *testing.T) {
	s := &service.Session{UserID: 42}
	assert.ErrorIs(t, s.CheckUser(7), domain.ErrUserMismatch)

	anonymous := &service.Session{}
	assert.NoError(t, anonymous.CheckUser(7))
}

func TestSession_RequireUser(t *testing.T) {
	s := &service.Session{UserID: 42}
	assert.NoError(t, s.RequireUser(42))
	assert.ErrorIs(t, s.RequireUser(7), domain.ErrUserMismatch)

	anonymous := &service.Session{}
	assert.ErrorIs(t, anonymous.RequireUser(7), domain.ErrUserMismatch)
}
