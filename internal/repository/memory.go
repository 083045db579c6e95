package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/partiksingh1/smartbank/internal/model"
)

// MemoryStore хранит счета и журнал в памяти процесса. Блокировки строк
// ведут себя как FOR NO KEY UPDATE: держатся до конца единицы работы,
// ожидание ограничено lockTimeout и контекстом.
type MemoryStore struct {
	mu          sync.Mutex
	lockTimeout time.Duration

	accounts      map[string]*memAccount // по номеру счета
	nextAccountID int64

	entries     map[int64]*model.Transaction
	nextEntryID int64
}

type memAccount struct {
	lock chan struct{} // занятый слот = строка заблокирована
	data model.Account
}

func NewMemoryStore(lockTimeout time.Duration) *MemoryStore {
	return &MemoryStore{
		lockTimeout: lockTimeout,
		accounts:    make(map[string]*memAccount),
		entries:     make(map[int64]*model.Transaction),
	}
}

// Ledger возвращает журнал, разделяющий состояние с хранилищем счетов
func (s *MemoryStore) Ledger() Ledger {
	return memLedger{s: s}
}

func (s *MemoryStore) Create(ctx context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.AccountNumber]; ok {
		return fmt.Errorf("account %s already exists: %w", account.AccountNumber, model.ErrConflict)
	}
	if account.Balance.IsNegative() {
		return fmt.Errorf("%w: negative balance violates accounts_balance_check", model.ErrStorage)
	}

	s.nextAccountID++
	account.ID = s.nextAccountID
	s.accounts[account.AccountNumber] = &memAccount{
		lock: make(chan struct{}, 1),
		data: *account,
	}
	return nil
}

func (s *MemoryStore) GetByNumber(ctx context.Context, accountNumber string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[accountNumber]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", accountNumber, model.ErrNotFound)
	}
	data := acc.data
	return &data, nil
}

func (s *MemoryStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var accounts []model.Account
	for _, acc := range s.accounts {
		if acc.data.UserID == userID {
			accounts = append(accounts, acc.data)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx AccountTx) error) error {
	tx := &memTx{
		s:      s,
		writes: make(map[string]model.Account),
	}
	defer tx.release()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

type memTx struct {
	s         *MemoryStore
	held      []*memAccount
	writes    map[string]model.Account
	completes []int64
}

func (t *memTx) LockForUpdate(ctx context.Context, accountNumber string) (*model.Account, error) {
	t.s.mu.Lock()
	acc, ok := t.s.accounts[accountNumber]
	t.s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("failed to lock account %s: %w", accountNumber, model.ErrNotFound)
	}

	if !t.holds(acc) {
		if err := t.acquire(ctx, acc); err != nil {
			return nil, fmt.Errorf("failed to lock account %s: %w", accountNumber, err)
		}
	}

	if w, ok := t.writes[accountNumber]; ok {
		return &w, nil
	}
	t.s.mu.Lock()
	data := acc.data
	t.s.mu.Unlock()
	return &data, nil
}

func (t *memTx) acquire(ctx context.Context, acc *memAccount) error {
	var timeout <-chan time.Time
	if t.s.lockTimeout > 0 {
		timer := time.NewTimer(t.s.lockTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case acc.lock <- struct{}{}:
		t.held = append(t.held, acc)
		return nil
	case <-timeout:
		return model.ErrLockTimeout
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", model.ErrLockTimeout, ctx.Err())
		}
		return fmt.Errorf("%w: %w", model.ErrStorage, ctx.Err())
	}
}

func (t *memTx) holds(acc *memAccount) bool {
	for _, h := range t.held {
		if h == acc {
			return true
		}
	}
	return false
}

func (t *memTx) Save(ctx context.Context, account *model.Account) error {
	t.s.mu.Lock()
	acc, ok := t.s.accounts[account.AccountNumber]
	t.s.mu.Unlock()
	if !ok {
		return fmt.Errorf("account %d: %w", account.ID, model.ErrNotFound)
	}
	if !t.holds(acc) {
		return fmt.Errorf("%w: account %s is not locked by this transaction", model.ErrStorage, account.AccountNumber)
	}
	if account.Balance.IsNegative() {
		return fmt.Errorf("%w: negative balance violates accounts_balance_check", model.ErrStorage)
	}

	w := *account
	w.UpdatedAt = time.Now()
	t.writes[account.AccountNumber] = w
	return nil
}

func (t *memTx) CompleteEntry(ctx context.Context, entryID int64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	entry, ok := t.s.entries[entryID]
	if !ok {
		return fmt.Errorf("transaction %d: %w", entryID, model.ErrNotFound)
	}
	if entry.Status != model.TransactionStatusPending {
		return fmt.Errorf("transaction %d is no longer pending: %w", entryID, model.ErrConflict)
	}
	t.completes = append(t.completes, entryID)
	return nil
}

// commit применяет балансы и статусы под одним мьютексом
func (t *memTx) commit() error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for _, id := range t.completes {
		if e, ok := t.s.entries[id]; !ok || e.Status != model.TransactionStatusPending {
			return fmt.Errorf("failed to commit transaction: entry %d is no longer pending: %w", id, model.ErrConflict)
		}
	}
	for number, w := range t.writes {
		t.s.accounts[number].data = w
	}
	for _, id := range t.completes {
		t.s.entries[id].Status = model.TransactionStatusCompleted
	}
	return nil
}

func (t *memTx) release() {
	for _, acc := range t.held {
		<-acc.lock
	}
	t.held = nil
}

type memLedger struct {
	s *MemoryStore
}

func (l memLedger) Create(ctx context.Context, entry *model.Transaction) (int64, error) {
	if !entry.Amount.IsPositive() {
		return 0, fmt.Errorf("%w: amount violates bank_transactions_amount_check", model.ErrStorage)
	}

	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	l.s.nextEntryID++
	entry.ID = l.s.nextEntryID
	stored := *entry
	l.s.entries[entry.ID] = &stored
	return entry.ID, nil
}

func (l memLedger) UpdateStatus(ctx context.Context, id int64, status model.TransactionStatus) error {
	if !model.TransactionStatusPending.CanTransitionTo(status) {
		return fmt.Errorf("%w: invalid target status %s", model.ErrValidation, status)
	}

	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	entry, ok := l.s.entries[id]
	if !ok {
		return fmt.Errorf("transaction %d: %w", id, model.ErrNotFound)
	}
	if entry.Status != model.TransactionStatusPending {
		return fmt.Errorf("transaction %d is not pending: %w", id, model.ErrConflict)
	}
	entry.Status = status
	return nil
}

func (l memLedger) FindByID(ctx context.Context, id int64) (*model.Transaction, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	entry, ok := l.s.entries[id]
	if !ok {
		return nil, fmt.Errorf("transaction %d: %w", id, model.ErrNotFound)
	}
	out := *entry
	return &out, nil
}

func (l memLedger) ListAll(ctx context.Context) ([]model.Transaction, error) {
	return l.filter(func(*model.Transaction) bool { return true }), nil
}

func (l memLedger) ListByAccount(ctx context.Context, accountID int64, from, to time.Time) ([]model.Transaction, error) {
	return l.filter(func(e *model.Transaction) bool {
		involved := e.SourceAccountID == accountID || (e.TargetAccountID != nil && *e.TargetAccountID == accountID)
		return involved && !e.TransactionDate.Before(from) && e.TransactionDate.Before(to)
	}), nil
}

func (l memLedger) ListStalePending(ctx context.Context, before time.Time) ([]model.Transaction, error) {
	return l.filter(func(e *model.Transaction) bool {
		return e.Status == model.TransactionStatusPending && e.TransactionDate.Before(before)
	}), nil
}

func (l memLedger) Delete(ctx context.Context, id int64) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	entry, ok := l.s.entries[id]
	if !ok {
		return fmt.Errorf("transaction %d: %w", id, model.ErrNotFound)
	}
	if entry.Status == model.TransactionStatusPending {
		return fmt.Errorf("transaction %d is pending: %w", id, model.ErrConflict)
	}
	delete(l.s.entries, id)
	return nil
}

func (l memLedger) filter(keep func(*model.Transaction) bool) []model.Transaction {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	var out []model.Transaction
	for _, e := range l.s.entries {
		if keep(e) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MemoryUserStore - пользователи для режима STORAGE_DRIVER=memory
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[uuid.UUID]model.User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[uuid.UUID]model.User)}
}

func (s *MemoryUserStore) Create(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == user.Email {
			return fmt.Errorf("email %s already exists: %w", user.Email, model.ErrConflict)
		}
	}
	s.users[user.ID] = *user
	return nil
}

func (s *MemoryUserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, model.ErrNotFound)
}

func (s *MemoryUserStore) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, model.ErrNotFound)
	}
	return &u, nil
}

func (s *MemoryUserStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := s.FindByEmail(ctx, email)
	if err != nil {
		return false, nil
	}
	return true, nil
}
