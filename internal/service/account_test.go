package service

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

func TestCreateAccount_InitialDepositGoesThroughLedger(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, time.Second)
	svc := NewAccountService(e.store, e.svc, newTestLogger())
	owner := uuid.New()

	account, err := svc.CreateAccount(ctx, owner, model.CreateAccountRequest{
		AccountType:    "savings",
		Branch:         "Central",
		Pin:            "4321",
		InitialDeposit: decimal.RequireFromString("500.50"),
	})
	require.NoError(t, err)
	assert.Len(t, account.AccountNumber, 12)
	assert.Equal(t, model.AccountTypeSavings, account.AccountType)
	assert.Equal(t, owner, account.UserID)
	assert.True(t, account.Balance.Equal(decimal.RequireFromString("500.50")))
	assert.NotEqual(t, "4321", account.PinHash)

	entries := e.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, model.TransactionTypeDeposit, entries[0].Type)
	assert.Equal(t, model.TransactionStatusCompleted, entries[0].Status)
	assert.Equal(t, account.ID, entries[0].SourceAccountID)

	// PIN счета принимается движком
	req := withdrawal(account.AccountNumber, "0.50")
	req.Pin = "4321"
	_, err = e.svc.Submit(ctx, owner, req)
	require.NoError(t, err)
	assert.True(t, e.balance(t, account.AccountNumber).Equal(decimal.NewFromInt(500)))
}

func TestCreateAccount_WithoutDeposit(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, time.Second)
	svc := NewAccountService(e.store, e.svc, newTestLogger())

	account, err := svc.CreateAccount(ctx, uuid.New(), model.CreateAccountRequest{AccountType: "CHECKING", Pin: "1234"})
	require.NoError(t, err)
	assert.True(t, account.Balance.IsZero())
	assert.Empty(t, e.entries(t))
}

func TestCreateAccount_FailedDepositReturnsOpenedAccount(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, time.Second)
	createErr := errors.New("connection reset by peer")
	ledger := &faultyLedger{Ledger: e.ledger, createErr: createErr}
	svc := NewAccountService(e.store, NewTransactionService(e.store, ledger, e.users, nil, 0, newTestLogger()), newTestLogger())
	owner := uuid.New()

	account, err := svc.CreateAccount(ctx, owner, model.CreateAccountRequest{
		AccountType:    "CHECKING",
		Pin:            "1234",
		InitialDeposit: decimal.NewFromInt(100),
	})
	assert.ErrorIs(t, err, createErr)
	require.NotNil(t, account)
	assert.True(t, account.Balance.IsZero())

	accounts, err := svc.GetUserAccounts(ctx, owner)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, account.AccountNumber, accounts[0].AccountNumber)
	assert.Empty(t, e.entries(t))
}

func TestCreateAccount_Validation(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, time.Second)
	svc := NewAccountService(e.store, e.svc, newTestLogger())

	_, err := svc.CreateAccount(ctx, uuid.New(), model.CreateAccountRequest{AccountType: "CHECKING", Pin: "12"})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.CreateAccount(ctx, uuid.New(), model.CreateAccountRequest{AccountType: "BROKERAGE", Pin: "1234"})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestGetAccount_OwnerOnly(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, time.Second)
	svc := NewAccountService(e.store, e.svc, newTestLogger())
	owner := uuid.New()
	e.openAccount(t, owner, accountX, "10")
	e.openAccount(t, owner, accountY, "20")

	account, err := svc.GetAccount(ctx, owner, accountX)
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(decimal.NewFromInt(10)))

	_, err = svc.GetAccount(ctx, uuid.New(), accountX)
	assert.ErrorIs(t, err, model.ErrUnauthorized)

	_, err = svc.GetAccount(ctx, owner, "000000000000")
	assert.ErrorIs(t, err, model.ErrNotFound)

	accounts, err := svc.GetUserAccounts(ctx, owner)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, accountX, accounts[0].AccountNumber)
}

func TestGenerateAccountNumber(t *testing.T) {
	for i := 0; i < 100; i++ {
		number := generateAccountNumber()
		assert.Len(t, number, 12)
		assert.NotEqual(t, byte('0'), number[0])
	}
}
