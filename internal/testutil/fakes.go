package testutil

import (
	"context"
	"net/url"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/set-night/rewardhub/internal/domain"
	"github.com/set-night/rewardhub/internal/service"
	"github.com/stretchr/testify/mock"
)

// MockMembershipChecker is a mock implementation of service.MembershipChecker.
type MockMembershipChecker struct {
	mock.Mock
}

func (m *MockMembershipChecker) MemberStatus(ctx context.Context, userID int64, channel string) (domain.MemberStatus, error) {
	args := m.Called(ctx, userID, channel)
	return args.Get(0).(domain.MemberStatus), args.Error(1)
}

// Admins is a fixed allow-list.
type Admins []int64

func (a Admins) IsAdmin(id int64) bool { return slices.Contains(a, id) }

// RecordingNotifier keeps every notification for later assertions.
type RecordingNotifier struct {
	mu            sync.Mutex
	Registrations []int64
	Requests      []domain.Withdrawal
	Settlements   []domain.Decision
	Errors        []error
}

var _ service.Notifier = (*RecordingNotifier)(nil)

func (n *RecordingNotifier) LogRegistration(userID int64, name, username string, refBy *int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Registrations = append(n.Registrations, userID)
}

func (n *RecordingNotifier) LogWithdrawalRequest(w *domain.Withdrawal) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Requests = append(n.Requests, *w)
}

func (n *RecordingNotifier) LogSettlement(w *domain.Withdrawal, decision domain.Decision) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Settlements = append(n.Settlements, decision)
}

func (n *RecordingNotifier) LogError(err error, context string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Errors = append(n.Errors, err)
}

// RecordingDispatcher collects commission events instead of processing them.
type RecordingDispatcher struct {
	mu     sync.Mutex
	events []domain.CommissionEvent
}

var _ service.CommissionDispatcher = (*RecordingDispatcher)(nil)

func (d *RecordingDispatcher) Dispatch(event domain.CommissionEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
}

func (d *RecordingDispatcher) Events() []domain.CommissionEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.events)
}

// Clock is a manually advanced time source.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock(t time.Time) *Clock { return &Clock{t: t} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// InitData builds a signed init data payload for userID authenticated at
// authDate.
func InitData(botToken string, userID int64, authDate time.Time) string {
	fields := url.Values{}
	fields.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	fields.Set("query_id", "AAHdF6IQAAAAAN0XohDhrOrc")
	if userID != 0 {
		fields.Set("user", `{"id":`+strconv.FormatInt(userID, 10)+`,"first_name":"Alice","username":"alice"}`)
	}
	fields.Set("hash", service.SignInitData(botToken, fields))
	return fields.Encode()
}
