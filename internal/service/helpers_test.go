package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/partiksingh1/smartbank/internal/model"
	"github.com/partiksingh1/smartbank/internal/repository"
)

const testPin = "1234"

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type engine struct {
	svc    *TransactionService
	store  *repository.MemoryStore
	ledger repository.Ledger
	users  *repository.MemoryUserStore
}

func newEngine(t *testing.T, lockTimeout time.Duration) *engine {
	t.Helper()
	store := repository.NewMemoryStore(lockTimeout)
	users := repository.NewMemoryUserStore()
	ledger := store.Ledger()
	return &engine{
		svc:    NewTransactionService(store, ledger, users, nil, 0, newTestLogger()),
		store:  store,
		ledger: ledger,
		users:  users,
	}
}

// openAccount заводит счет напрямую в хранилище с заданным балансом
func (e *engine) openAccount(t *testing.T, owner uuid.UUID, number string, balance string) *model.Account {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPin), bcrypt.MinCost)
	require.NoError(t, err)

	acc := &model.Account{
		UserID:        owner,
		AccountNumber: number,
		AccountType:   model.AccountTypeChecking,
		Balance:       decimal.RequireFromString(balance),
		PinHash:       string(hash),
	}
	require.NoError(t, e.store.Create(context.Background(), acc))
	return acc
}

func (e *engine) balance(t *testing.T, number string) decimal.Decimal {
	t.Helper()
	acc, err := e.store.GetByNumber(context.Background(), number)
	require.NoError(t, err)
	return acc.Balance
}

func (e *engine) entries(t *testing.T) []model.Transaction {
	t.Helper()
	entries, err := e.ledger.ListAll(context.Background())
	require.NoError(t, err)
	return entries
}

func transfer(from, to, amount string) model.SubmitRequest {
	return model.SubmitRequest{
		Type:                model.TransactionTypeTransfer,
		Amount:              decimal.RequireFromString(amount),
		SourceAccountNumber: from,
		TargetAccountNumber: to,
		Pin:                 testPin,
	}
}

func withdrawal(from, amount string) model.SubmitRequest {
	return model.SubmitRequest{
		Type:                model.TransactionTypeWithdrawal,
		Amount:              decimal.RequireFromString(amount),
		SourceAccountNumber: from,
		Pin:                 testPin,
	}
}

func deposit(to, amount string) model.SubmitRequest {
	return model.SubmitRequest{
		Type:                model.TransactionTypeDeposit,
		Amount:              decimal.RequireFromString(amount),
		SourceAccountNumber: to,
		Pin:                 testPin,
	}
}

// faultyAccounts подменяет Save для одного счета внутри единицы работы
type faultyAccounts struct {
	repository.AccountStore
	failOn  string
	saveErr error
}

func (f *faultyAccounts) WithinTx(ctx context.Context, fn func(tx repository.AccountTx) error) error {
	return f.AccountStore.WithinTx(ctx, func(tx repository.AccountTx) error {
		return fn(&faultyTx{AccountTx: tx, f: f})
	})
}

type faultyTx struct {
	repository.AccountTx
	f *faultyAccounts
}

func (t *faultyTx) Save(ctx context.Context, account *model.Account) error {
	if account.AccountNumber == t.f.failOn {
		return t.f.saveErr
	}
	return t.AccountTx.Save(ctx, account)
}

// reconciledAccounts закрывает запись в FAILED перед ее подтверждением,
// как если бы сверка успела раньше
type reconciledAccounts struct {
	repository.AccountStore
	ledger repository.Ledger
}

func (r *reconciledAccounts) WithinTx(ctx context.Context, fn func(tx repository.AccountTx) error) error {
	return r.AccountStore.WithinTx(ctx, func(tx repository.AccountTx) error {
		return fn(&reconciledTx{AccountTx: tx, ledger: r.ledger})
	})
}

type reconciledTx struct {
	repository.AccountTx
	ledger repository.Ledger
}

func (t *reconciledTx) CompleteEntry(ctx context.Context, entryID int64) error {
	if err := t.ledger.UpdateStatus(ctx, entryID, model.TransactionStatusFailed); err != nil {
		return err
	}
	return t.AccountTx.CompleteEntry(ctx, entryID)
}

// faultyLedger отказывает при создании записи или смене статуса
type faultyLedger struct {
	repository.Ledger
	createErr error
	updateErr error
}

func (l *faultyLedger) Create(ctx context.Context, entry *model.Transaction) (int64, error) {
	if l.createErr != nil {
		return 0, l.createErr
	}
	return l.Ledger.Create(ctx, entry)
}

func (l *faultyLedger) UpdateStatus(ctx context.Context, id int64, status model.TransactionStatus) error {
	if l.updateErr != nil {
		return l.updateErr
	}
	return l.Ledger.UpdateStatus(ctx, id, status)
}

type recordingNotifier struct {
	mu            sync.Mutex
	notifications chan string
	reports       [][]model.Transaction
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{notifications: make(chan string, 16)}
}

func (n *recordingNotifier) SendTransactionNotification(email string, entry *model.Transaction, accountNumber string) error {
	n.notifications <- email + " " + accountNumber
	return nil
}

func (n *recordingNotifier) SendReconciliationReport(email string, entries []model.Transaction) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, entries)
	return nil
}
