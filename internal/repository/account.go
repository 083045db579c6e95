package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/partiksingh1/smartbank/internal/model"
)

const accountColumns = `id, user_id, account_number, account_type, balance, branch, pin_hash, created_at, updated_at`

type AccountRepository struct {
	db          *sql.DB
	lockTimeout time.Duration
	logger      *logrus.Logger
}

func NewAccountRepository(db *sql.DB, lockTimeout time.Duration, logger *logrus.Logger) *AccountRepository {
	return &AccountRepository{db: db, lockTimeout: lockTimeout, logger: logger}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*model.Account, error) {
	var account model.Account
	err := row.Scan(
		&account.ID,
		&account.UserID,
		&account.AccountNumber,
		&account.AccountType,
		&account.Balance,
		&account.Branch,
		&account.PinHash,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) Create(ctx context.Context, account *model.Account) error {
	query := `
		INSERT INTO accounts (user_id, account_number, account_type, balance, branch, pin_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		account.UserID,
		account.AccountNumber,
		account.AccountType,
		account.Balance,
		account.Branch,
		account.PinHash,
		account.CreatedAt,
		account.UpdatedAt,
	).Scan(&account.ID)
	if err != nil {
		return mapError(err, "failed to create account")
	}

	return nil
}

func (r *AccountRepository) GetByNumber(ctx context.Context, accountNumber string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1`

	account, err := scanAccount(r.db.QueryRowContext(ctx, query, accountNumber))
	if err != nil {
		return nil, mapError(err, "failed to get account")
	}
	return account, nil
}

func (r *AccountRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, mapError(err, "failed to query user accounts")
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, mapError(err, "failed to scan account")
		}
		accounts = append(accounts, *account)
	}

	if err := rows.Err(); err != nil {
		return nil, mapError(err, "rows iteration error")
	}

	return accounts, nil
}

// WithinTx открывает транзакцию БД. Блокировки строк живут до Commit или Rollback.
func (r *AccountRepository) WithinTx(ctx context.Context, fn func(tx AccountTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.WithError(err).Error("Ошибка начала транзакции")
		return mapError(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if r.lockTimeout > 0 {
		// SET LOCAL не принимает параметры, значение формируется из числа
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return mapError(err, "failed to set lock timeout")
		}
	}

	if err := fn(&accountTx{tx: tx, logger: r.logger}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		r.logger.WithError(err).Error("Ошибка подтверждения транзакции")
		return mapError(err, "failed to commit transaction")
	}
	return nil
}

type accountTx struct {
	tx     *sql.Tx
	logger *logrus.Logger
}

// LockForUpdate берет FOR NO KEY UPDATE: строка эксклюзивна для других
// блокирующих и пишущих, но FK-проверка вставки в журнал с другого
// соединения (FOR KEY SHARE) не ждет держателя блокировки.
func (t *accountTx) LockForUpdate(ctx context.Context, accountNumber string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1 FOR NO KEY UPDATE`

	t.logger.WithField("account_number", accountNumber).Debug("Блокировка счета")
	account, err := scanAccount(t.tx.QueryRowContext(ctx, query, accountNumber))
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("failed to lock account %s", accountNumber))
	}
	return account, nil
}

func (t *accountTx) Save(ctx context.Context, account *model.Account) error {
	query := `
        UPDATE accounts
        SET balance = $1,
            updated_at = NOW()
        WHERE id = $2
    `

	result, err := t.tx.ExecContext(ctx, query, account.Balance, account.ID)
	if err != nil {
		return mapError(err, "failed to update balance")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return mapError(err, "failed to get rows affected")
	}

	if rowsAffected == 0 {
		return fmt.Errorf("account %d: %w", account.ID, model.ErrNotFound)
	}

	return nil
}

func (t *accountTx) CompleteEntry(ctx context.Context, entryID int64) error {
	query := `
        UPDATE bank_transactions
        SET transaction_status = $1
        WHERE id = $2 AND transaction_status = $3
    `

	result, err := t.tx.ExecContext(ctx, query, model.TransactionStatusCompleted, entryID, model.TransactionStatusPending)
	if err != nil {
		return mapError(err, "failed to complete transaction")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return mapError(err, "failed to get rows affected")
	}

	if rowsAffected == 0 {
		return fmt.Errorf("transaction %d is no longer pending: %w", entryID, model.ErrConflict)
	}

	return nil
}
