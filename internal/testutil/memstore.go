package testutil

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/rewardhub/internal/domain"
	"github.com/set-night/rewardhub/internal/service"
	"github.com/shopspring/decimal"
)

// MemStore is an in-memory service.Store for service and handler tests. It
// mirrors the conditional-write semantics of the PostgreSQL store.
// Transactions hold a store-wide lock and roll back by restoring a snapshot.
type MemStore struct {
	mu   *sync.Mutex
	data *memData
	inTx bool
}

type memData struct {
	users       map[int64]domain.User
	tasks       map[int64]domain.Task
	completions []domain.TaskCompletion
	tokens      map[int64]domain.ActionToken
	spins       []domain.SpinResult
	withdrawals map[int64]domain.Withdrawal
	commissions map[uuid.UUID]domain.Commission
	nextID      int64

	creditErr error
}

var _ service.Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		mu: &sync.Mutex{},
		data: &memData{
			users:       map[int64]domain.User{},
			tasks:       map[int64]domain.Task{},
			tokens:      map[int64]domain.ActionToken{},
			withdrawals: map[int64]domain.Withdrawal{},
			commissions: map[uuid.UUID]domain.Commission{},
		},
	}
}

func (d *memData) clone() *memData {
	c := *d
	c.users = make(map[int64]domain.User, len(d.users))
	for k, v := range d.users {
		c.users[k] = v
	}
	c.tasks = make(map[int64]domain.Task, len(d.tasks))
	for k, v := range d.tasks {
		c.tasks[k] = v
	}
	c.tokens = make(map[int64]domain.ActionToken, len(d.tokens))
	for k, v := range d.tokens {
		c.tokens[k] = v
	}
	c.withdrawals = make(map[int64]domain.Withdrawal, len(d.withdrawals))
	for k, v := range d.withdrawals {
		c.withdrawals[k] = v
	}
	c.commissions = make(map[uuid.UUID]domain.Commission, len(d.commissions))
	for k, v := range d.commissions {
		c.commissions[k] = v
	}
	c.completions = slices.Clone(d.completions)
	c.spins = slices.Clone(d.spins)
	return &c
}

func (m *MemStore) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (d *memData) id() int64 {
	d.nextID++
	return d.nextID
}

func (m *MemStore) WithTx(ctx context.Context, fn func(tx service.Store) error) error {
	if m.inTx {
		return fn(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.data.clone()
	if err := fn(&MemStore{mu: m.mu, data: m.data, inTx: true}); err != nil {
		*m.data = *snapshot
		return err
	}
	return nil
}

// Fixtures and inspection

// FailCredits makes every CreditBalance call return err until reset with nil.
func (m *MemStore) FailCredits(err error) {
	defer m.lock()()
	m.data.creditErr = err
}

func (m *MemStore) AddUser(u domain.User) {
	defer m.lock()()
	m.data.users[u.ID] = u
}

// User returns a copy of the stored user. It panics if the user is missing.
func (m *MemStore) User(id int64) domain.User {
	defer m.lock()()
	u, ok := m.data.users[id]
	if !ok {
		panic("testutil: unknown user")
	}
	return u
}

func (m *MemStore) AddTask(t domain.Task) int64 {
	defer m.lock()()
	if t.ID == 0 {
		t.ID = m.data.id()
	}
	m.data.tasks[t.ID] = t
	return t.ID
}

func (m *MemStore) AddCompletion(c domain.TaskCompletion) {
	defer m.lock()()
	c.ID = m.data.id()
	m.data.completions = append(m.data.completions, c)
}

func (m *MemStore) Completions() []domain.TaskCompletion {
	defer m.lock()()
	return slices.Clone(m.data.completions)
}

func (m *MemStore) SpinResults() []domain.SpinResult {
	defer m.lock()()
	return slices.Clone(m.data.spins)
}

func (m *MemStore) AddActionToken(t domain.ActionToken) int64 {
	defer m.lock()()
	t.ID = m.data.id()
	m.data.tokens[t.ID] = t
	return t.ID
}

func (m *MemStore) ActionTokenCount() int {
	defer m.lock()()
	return len(m.data.tokens)
}

func (m *MemStore) AddWithdrawal(w domain.Withdrawal) int64 {
	defer m.lock()()
	w.ID = m.data.id()
	m.data.withdrawals[w.ID] = w
	return w.ID
}

func (m *MemStore) Withdrawal(id int64) domain.Withdrawal {
	defer m.lock()()
	return m.data.withdrawals[id]
}

func (m *MemStore) Commissions() []domain.Commission {
	defer m.lock()()
	out := make([]domain.Commission, 0, len(m.data.commissions))
	for _, c := range m.data.commissions {
		out = append(out, c)
	}
	return out
}

// UserStore

func (m *MemStore) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	defer m.lock()()
	u, ok := m.data.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (m *MemStore) CreateUser(ctx context.Context, u *domain.User) (bool, error) {
	defer m.lock()()
	if _, ok := m.data.users[u.ID]; ok {
		return false, nil
	}
	m.data.users[u.ID] = *u
	return true, nil
}

func (m *MemStore) CountReferrals(ctx context.Context, id int64) (int, error) {
	defer m.lock()()
	n := 0
	for _, u := range m.data.users {
		if u.RefBy != nil && *u.RefBy == id {
			n++
		}
	}
	return n, nil
}

func (m *MemStore) TouchUser(ctx context.Context, id int64, at time.Time) error {
	defer m.lock()()
	if u, ok := m.data.users[id]; ok {
		u.LastActivity = at
		m.data.users[id] = u
	}
	return nil
}

func (m *MemStore) ResetQuota(ctx context.Context, id int64, q domain.Quota, reachedBefore time.Time) (bool, error) {
	defer m.lock()()
	u, ok := m.data.users[id]
	if !ok {
		return false, nil
	}
	reached := u.LimitReachedAt(q)
	if reached == nil || reached.After(reachedBefore) {
		return false, nil
	}
	if q == domain.QuotaSpins {
		u.SpinsToday, u.SpinsLimitReachedAt = 0, nil
	} else {
		u.AdsWatchedToday, u.AdsLimitReachedAt = 0, nil
	}
	m.data.users[id] = u
	return true, nil
}

func (m *MemStore) IncrementQuota(ctx context.Context, p service.QuotaIncrement) (*domain.User, bool, error) {
	defer m.lock()()
	u, ok := m.data.users[p.UserID]
	if !ok || u.IsBanned || u.Count(p.Quota) >= p.Max {
		return nil, false, nil
	}
	at := p.At
	u.Balance = u.Balance.Add(p.Reward)
	u.LastActivity = at
	if p.Quota == domain.QuotaSpins {
		u.SpinsToday++
		if u.SpinsToday >= p.Max {
			u.SpinsLimitReachedAt = &at
		}
	} else {
		u.AdsWatchedToday++
		if u.AdsWatchedToday >= p.Max {
			u.AdsLimitReachedAt = &at
		}
	}
	m.data.users[p.UserID] = u
	return &u, true, nil
}

func (m *MemStore) CreditBalance(ctx context.Context, id int64, amount decimal.Decimal, at time.Time) (decimal.Decimal, error) {
	defer m.lock()()
	if m.data.creditErr != nil {
		return decimal.Zero, m.data.creditErr
	}
	u, ok := m.data.users[id]
	if !ok {
		return decimal.Zero, domain.ErrUserNotFound
	}
	u.Balance = u.Balance.Add(amount)
	u.LastActivity = at
	m.data.users[id] = u
	return u.Balance, nil
}

func (m *MemStore) DebitBalance(ctx context.Context, id int64, amount decimal.Decimal, at time.Time) (decimal.Decimal, error) {
	defer m.lock()()
	u, ok := m.data.users[id]
	if !ok {
		return decimal.Zero, domain.ErrUserNotFound
	}
	if u.Balance.LessThan(amount) {
		return decimal.Zero, domain.ErrInsufficientBalance
	}
	u.Balance = u.Balance.Sub(amount)
	u.LastActivity = at
	m.data.users[id] = u
	return u.Balance, nil
}

func (m *MemStore) SetBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	defer m.lock()()
	u, ok := m.data.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Balance = balance
	m.data.users[id] = u
	return nil
}

func (m *MemStore) SetBanned(ctx context.Context, id int64, banned bool) error {
	defer m.lock()()
	u, ok := m.data.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.IsBanned = banned
	m.data.users[id] = u
	return nil
}

func (m *MemStore) ClaimActionSlot(ctx context.Context, id int64, now time.Time, minGap time.Duration) (bool, error) {
	defer m.lock()()
	u, ok := m.data.users[id]
	if !ok {
		return false, nil
	}
	if u.LastActionAt != nil && u.LastActionAt.After(now.Add(-minGap)) {
		return false, nil
	}
	u.LastActionAt = &now
	m.data.users[id] = u
	return true, nil
}

// TokenStore

func (m *MemStore) GetActionToken(ctx context.Context, userID int64, kind string) (*domain.ActionToken, error) {
	defer m.lock()()
	for _, t := range m.data.tokens {
		if t.UserID == userID && t.Kind == kind {
			return &t, nil
		}
	}
	return nil, nil
}

func (m *MemStore) InsertActionToken(ctx context.Context, t *domain.ActionToken) (bool, error) {
	defer m.lock()()
	for _, existing := range m.data.tokens {
		if existing.Value == t.Value || (existing.UserID == t.UserID && existing.Kind == t.Kind) {
			return false, nil
		}
	}
	t.ID = m.data.id()
	m.data.tokens[t.ID] = *t
	return true, nil
}

func (m *MemStore) DeleteActionTokens(ctx context.Context, userID int64, kind string) error {
	defer m.lock()()
	for id, t := range m.data.tokens {
		if t.UserID == userID && t.Kind == kind {
			delete(m.data.tokens, id)
		}
	}
	return nil
}

func (m *MemStore) FindActionToken(ctx context.Context, userID int64, value, kind string) (*domain.ActionToken, error) {
	defer m.lock()()
	for _, t := range m.data.tokens {
		if t.UserID == userID && t.Value == value && t.Kind == kind {
			return &t, nil
		}
	}
	return nil, nil
}

func (m *MemStore) DeleteActionToken(ctx context.Context, id int64) (bool, error) {
	defer m.lock()()
	if _, ok := m.data.tokens[id]; !ok {
		return false, nil
	}
	delete(m.data.tokens, id)
	return true, nil
}

func (m *MemStore) PurgeActionTokens(ctx context.Context, createdBefore time.Time) (int64, error) {
	defer m.lock()()
	var n int64
	for id, t := range m.data.tokens {
		if t.CreatedAt.Before(createdBefore) {
			delete(m.data.tokens, id)
			n++
		}
	}
	return n, nil
}

// TaskStore

func (m *MemStore) GetTask(ctx context.Context, id int64) (*domain.Task, error) {
	defer m.lock()()
	t, ok := m.data.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return &t, nil
}

func (m *MemStore) ListTasks(ctx context.Context) ([]domain.Task, error) {
	defer m.lock()()
	out := make([]domain.Task, 0, len(m.data.tasks))
	for _, t := range m.data.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) CreateTask(ctx context.Context, t *domain.Task) (int64, error) {
	defer m.lock()()
	t.ID = m.data.id()
	m.data.tasks[t.ID] = *t
	return t.ID, nil
}

func (m *MemStore) DeleteTask(ctx context.Context, id int64) (bool, error) {
	defer m.lock()()
	if _, ok := m.data.tasks[id]; !ok {
		return false, nil
	}
	delete(m.data.tasks, id)
	m.data.completions = slices.DeleteFunc(m.data.completions, func(c domain.TaskCompletion) bool {
		return c.TaskID == id
	})
	return true, nil
}

func (m *MemStore) LastCompletionAt(ctx context.Context, userID int64) (*time.Time, error) {
	defer m.lock()()
	var last *time.Time
	for _, c := range m.data.completions {
		if c.UserID == userID && (last == nil || c.CreatedAt.After(*last)) {
			at := c.CreatedAt
			last = &at
		}
	}
	return last, nil
}

func (m *MemStore) HasCompletion(ctx context.Context, userID, taskID int64) (bool, error) {
	defer m.lock()()
	return slices.ContainsFunc(m.data.completions, func(c domain.TaskCompletion) bool {
		return c.UserID == userID && c.TaskID == taskID
	}), nil
}

func (m *MemStore) CountCompletions(ctx context.Context, taskID int64) (int, error) {
	defer m.lock()()
	n := 0
	for _, c := range m.data.completions {
		if c.TaskID == taskID {
			n++
		}
	}
	return n, nil
}

func (m *MemStore) CompletedTaskIDs(ctx context.Context, userID int64) ([]int64, error) {
	defer m.lock()()
	var ids []int64
	for _, c := range m.data.completions {
		if c.UserID == userID {
			ids = append(ids, c.TaskID)
		}
	}
	return ids, nil
}

func (m *MemStore) InsertCompletion(ctx context.Context, c *domain.TaskCompletion) error {
	defer m.lock()()
	for _, existing := range m.data.completions {
		if existing.UserID == c.UserID && existing.TaskID == c.TaskID {
			return domain.ErrTaskAlreadyDone
		}
	}
	c.ID = m.data.id()
	m.data.completions = append(m.data.completions, *c)
	return nil
}

func (m *MemStore) InsertSpinResult(ctx context.Context, r *domain.SpinResult) error {
	defer m.lock()()
	r.ID = m.data.id()
	m.data.spins = append(m.data.spins, *r)
	return nil
}

// WithdrawalStore

func (m *MemStore) InsertWithdrawal(ctx context.Context, w *domain.Withdrawal) (int64, error) {
	defer m.lock()()
	w.ID = m.data.id()
	m.data.withdrawals[w.ID] = *w
	return w.ID, nil
}

func (m *MemStore) GetWithdrawal(ctx context.Context, id int64) (*domain.Withdrawal, error) {
	defer m.lock()()
	w, ok := m.data.withdrawals[id]
	if !ok {
		return nil, domain.ErrWithdrawalNotFound
	}
	return &w, nil
}

func (m *MemStore) listWithdrawals(keep func(domain.Withdrawal) bool) []domain.Withdrawal {
	var out []domain.Withdrawal
	for _, w := range m.data.withdrawals {
		if keep(w) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (m *MemStore) ListPendingWithdrawals(ctx context.Context, rail domain.Rail) ([]domain.Withdrawal, error) {
	defer m.lock()()
	return m.listWithdrawals(func(w domain.Withdrawal) bool {
		return w.Status == domain.WithdrawalPending && w.Rail == rail
	}), nil
}

func (m *MemStore) ListUserWithdrawals(ctx context.Context, userID int64) ([]domain.Withdrawal, error) {
	defer m.lock()()
	return m.listWithdrawals(func(w domain.Withdrawal) bool {
		return w.UserID == userID
	}), nil
}

func (m *MemStore) TransitionWithdrawal(ctx context.Context, id int64, from, to domain.WithdrawalStatus, at time.Time) (bool, error) {
	defer m.lock()()
	w, ok := m.data.withdrawals[id]
	if !ok || w.Status != from {
		return false, nil
	}
	w.Status = to
	w.ProcessedAt = &at
	m.data.withdrawals[id] = w
	return true, nil
}

func (m *MemStore) SetWithdrawalStatus(ctx context.Context, id int64, status domain.WithdrawalStatus) error {
	defer m.lock()()
	w, ok := m.data.withdrawals[id]
	if !ok {
		return domain.ErrWithdrawalNotFound
	}
	w.Status = status
	m.data.withdrawals[id] = w
	return nil
}

// CommissionStore

func (m *MemStore) InsertCommission(ctx context.Context, c *domain.Commission) (bool, error) {
	defer m.lock()()
	if _, ok := m.data.commissions[c.EventID]; ok {
		return false, nil
	}
	c.ID = m.data.id()
	m.data.commissions[c.EventID] = *c
	return true, nil
}
