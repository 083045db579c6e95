package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partiksingh1/smartbank/internal/model"
)

func seedAccount(t *testing.T, store *MemoryStore, number string, balance int64) *model.Account {
	t.Helper()
	acc := &model.Account{
		UserID:        uuid.New(),
		AccountNumber: number,
		AccountType:   model.AccountTypeChecking,
		Balance:       decimal.NewFromInt(balance),
	}
	require.NoError(t, store.Create(context.Background(), acc))
	return acc
}

func balanceOf(t *testing.T, store *MemoryStore, number string) decimal.Decimal {
	t.Helper()
	acc, err := store.GetByNumber(context.Background(), number)
	require.NoError(t, err)
	return acc.Balance
}

func TestMemoryStore_RollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Second)
	seedAccount(t, store, "100000000001", 100)

	errBoom := errors.New("boom")
	err := store.WithinTx(ctx, func(tx AccountTx) error {
		acc, err := tx.LockForUpdate(ctx, "100000000001")
		require.NoError(t, err)
		acc.Balance = decimal.NewFromInt(1)
		require.NoError(t, tx.Save(ctx, acc))
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.True(t, balanceOf(t, store, "100000000001").Equal(decimal.NewFromInt(100)))
}

func TestMemoryStore_LockTimeout(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(50 * time.Millisecond)
	seedAccount(t, store, "100000000001", 100)

	locked := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = store.WithinTx(ctx, func(tx AccountTx) error {
			_, err := tx.LockForUpdate(ctx, "100000000001")
			close(locked)
			<-done
			return err
		})
	}()
	<-locked

	err := store.WithinTx(ctx, func(tx AccountTx) error {
		_, err := tx.LockForUpdate(ctx, "100000000001")
		return err
	})
	close(done)

	assert.ErrorIs(t, err, model.ErrLockTimeout)
}

func TestMemoryStore_LockIsReleasedAfterCommit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(50 * time.Millisecond)
	seedAccount(t, store, "100000000001", 100)

	for i := 0; i < 3; i++ {
		err := store.WithinTx(ctx, func(tx AccountTx) error {
			acc, err := tx.LockForUpdate(ctx, "100000000001")
			if err != nil {
				return err
			}
			// повторная блокировка той же строки в той же транзакции не ждет
			again, err := tx.LockForUpdate(ctx, "100000000001")
			if err != nil {
				return err
			}
			assert.True(t, acc.Balance.Equal(again.Balance))
			acc.Balance = acc.Balance.Add(decimal.NewFromInt(1))
			return tx.Save(ctx, acc)
		})
		require.NoError(t, err)
	}
	assert.True(t, balanceOf(t, store, "100000000001").Equal(decimal.NewFromInt(103)))
}

func TestMemoryStore_SaveRequiresLockAndNonNegativeBalance(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Second)
	acc := seedAccount(t, store, "100000000001", 100)

	err := store.WithinTx(ctx, func(tx AccountTx) error {
		return tx.Save(ctx, acc)
	})
	assert.ErrorIs(t, err, model.ErrStorage)

	err = store.WithinTx(ctx, func(tx AccountTx) error {
		locked, err := tx.LockForUpdate(ctx, acc.AccountNumber)
		require.NoError(t, err)
		locked.Balance = decimal.NewFromInt(-1)
		return tx.Save(ctx, locked)
	})
	assert.ErrorIs(t, err, model.ErrStorage)
	assert.True(t, balanceOf(t, store, acc.AccountNumber).Equal(decimal.NewFromInt(100)))
}

func TestMemoryStore_CommitRejectsEntryResolvedMeanwhile(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Second)
	ledger := store.Ledger()
	acc := seedAccount(t, store, "100000000001", 100)

	entry := &model.Transaction{
		Type:            model.TransactionTypeWithdrawal,
		Status:          model.TransactionStatusPending,
		Amount:          decimal.NewFromInt(10),
		TransactionDate: time.Now(),
		SourceAccountID: acc.ID,
	}
	_, err := ledger.Create(ctx, entry)
	require.NoError(t, err)

	err = store.WithinTx(ctx, func(tx AccountTx) error {
		locked, err := tx.LockForUpdate(ctx, acc.AccountNumber)
		require.NoError(t, err)
		locked.Balance = locked.Balance.Sub(entry.Amount)
		require.NoError(t, tx.Save(ctx, locked))
		require.NoError(t, tx.CompleteEntry(ctx, entry.ID))

		// сверка закрыла запись до коммита
		return ledger.UpdateStatus(ctx, entry.ID, model.TransactionStatusFailed)
	})
	assert.ErrorIs(t, err, model.ErrConflict)

	stored, err := ledger.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusFailed, stored.Status)
	assert.True(t, balanceOf(t, store, acc.AccountNumber).Equal(decimal.NewFromInt(100)))
}

func TestMemoryLedger_StatusIsMonotonic(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Second)
	ledger := store.Ledger()

	entry := &model.Transaction{
		Type:            model.TransactionTypeDeposit,
		Status:          model.TransactionStatusPending,
		Amount:          decimal.NewFromInt(5),
		TransactionDate: time.Now(),
		SourceAccountID: 1,
	}
	_, err := ledger.Create(ctx, entry)
	require.NoError(t, err)

	assert.ErrorIs(t, ledger.Delete(ctx, entry.ID), model.ErrConflict)
	require.NoError(t, ledger.UpdateStatus(ctx, entry.ID, model.TransactionStatusCompleted))
	assert.ErrorIs(t, ledger.UpdateStatus(ctx, entry.ID, model.TransactionStatusFailed), model.ErrConflict)
	assert.ErrorIs(t, ledger.UpdateStatus(ctx, 999, model.TransactionStatusFailed), model.ErrNotFound)

	require.NoError(t, ledger.Delete(ctx, entry.ID))
	_, err = ledger.FindByID(ctx, entry.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMemoryLedger_RejectsNonPositiveAmount(t *testing.T) {
	ledger := NewMemoryStore(time.Second).Ledger()
	_, err := ledger.Create(context.Background(), &model.Transaction{
		Type:   model.TransactionTypeDeposit,
		Status: model.TransactionStatusPending,
		Amount: decimal.Zero,
	})
	assert.ErrorIs(t, err, model.ErrStorage)
}

func TestMemoryLedger_ListByAccountPeriod(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryStore(time.Second).Ledger()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	target := int64(2)

	for i, e := range []model.Transaction{
		{Type: model.TransactionTypeDeposit, SourceAccountID: 1, TransactionDate: base.Add(-time.Hour)},
		{Type: model.TransactionTypeTransfer, SourceAccountID: 3, TargetAccountID: &target, TransactionDate: base},
		{Type: model.TransactionTypeWithdrawal, SourceAccountID: 2, TransactionDate: base.Add(time.Hour)},
		{Type: model.TransactionTypeWithdrawal, SourceAccountID: 2, TransactionDate: base.Add(24 * time.Hour)},
	} {
		e := e
		e.Status = model.TransactionStatusCompleted
		e.Amount = decimal.NewFromInt(int64(i + 1))
		_, err := ledger.Create(ctx, &e)
		require.NoError(t, err)
	}

	entries, err := ledger.ListByAccount(ctx, 2, base, base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.TransactionTypeTransfer, entries[0].Type)
	assert.Equal(t, model.TransactionTypeWithdrawal, entries[1].Type)
}

func TestMemoryUserStore(t *testing.T) {
	ctx := context.Background()
	users := NewMemoryUserStore()
	user := &model.User{ID: uuid.New(), Name: "Anna", Email: "anna@example.com"}

	require.NoError(t, users.Create(ctx, user))
	assert.ErrorIs(t, users.Create(ctx, &model.User{ID: uuid.New(), Email: user.Email}), model.ErrConflict)

	exists, err := users.ExistsByEmail(ctx, user.Email)
	require.NoError(t, err)
	assert.True(t, exists)

	found, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, found.Email)

	_, err = users.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
