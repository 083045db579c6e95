package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/partiksingh1/smartbank/internal/model"
)

const transactionColumns = `id, transaction_type, transaction_status, amount, transaction_date, source_account_id, target_account_id`

type TransactionRepository struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewTransactionRepository(db *sql.DB, logger *logrus.Logger) *TransactionRepository {
	return &TransactionRepository{db: db, logger: logger}
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var (
		tx     model.Transaction
		target sql.NullInt64
	)
	err := row.Scan(
		&tx.ID,
		&tx.Type,
		&tx.Status,
		&tx.Amount,
		&tx.TransactionDate,
		&tx.SourceAccountID,
		&target,
	)
	if err != nil {
		return nil, err
	}
	if target.Valid {
		id := target.Int64
		tx.TargetAccountID = &id
	}
	return &tx, nil
}

// Create записывает PENDING запись вне транзакции над счетами,
// поэтому запись переживает откат и падение процесса.
func (r *TransactionRepository) Create(ctx context.Context, entry *model.Transaction) (int64, error) {
	r.logger.WithFields(logrus.Fields{
		"source_account_id": entry.SourceAccountID,
		"target_account_id": entry.TargetAccountID,
		"amount":            entry.Amount,
		"type":              entry.Type,
		"status":            entry.Status,
	}).Info("Создание записи журнала")

	query := `
        INSERT INTO bank_transactions (transaction_type, transaction_status, amount, transaction_date, source_account_id, target_account_id)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id
    `

	err := r.db.QueryRowContext(
		ctx,
		query,
		entry.Type,
		entry.Status,
		entry.Amount,
		entry.TransactionDate,
		entry.SourceAccountID,
		entry.TargetAccountID,
	).Scan(&entry.ID)
	if err != nil {
		r.logger.WithError(err).Error("Ошибка при создании записи журнала")
		return 0, mapError(err, "failed to create transaction")
	}

	return entry.ID, nil
}

// UpdateStatus фиксирует финальный статус только для записи в PENDING
func (r *TransactionRepository) UpdateStatus(ctx context.Context, id int64, status model.TransactionStatus) error {
	if !model.TransactionStatusPending.CanTransitionTo(status) {
		return fmt.Errorf("%w: invalid target status %s", model.ErrValidation, status)
	}

	query := `
        UPDATE bank_transactions
        SET transaction_status = $1
        WHERE id = $2 AND transaction_status = $3
    `

	result, err := r.db.ExecContext(ctx, query, status, id, model.TransactionStatusPending)
	if err != nil {
		return mapError(err, "failed to update transaction status")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return mapError(err, "failed to get rows affected")
	}

	if rowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("transaction %d is not pending: %w", id, model.ErrConflict)
	}

	r.logger.WithFields(logrus.Fields{
		"transaction_id": id,
		"status":         status,
	}).Info("Статус записи журнала обновлен")
	return nil
}

func (r *TransactionRepository) FindByID(ctx context.Context, id int64) (*model.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM bank_transactions WHERE id = $1`

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("failed to get transaction %d", id))
	}
	return tx, nil
}

func (r *TransactionRepository) ListAll(ctx context.Context) ([]model.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM bank_transactions ORDER BY id`
	return r.list(ctx, query)
}

// ListByAccount возвращает записи, где счет является источником или получателем
func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID int64, from, to time.Time) ([]model.Transaction, error) {
	r.logger.WithFields(logrus.Fields{
		"account_id": accountID,
		"from":       from.Format("2006-01-02"),
		"to":         to.Format("2006-01-02"),
	}).Debug("Запрос записей журнала по счету за период")

	query := `SELECT ` + transactionColumns + `
              FROM bank_transactions
              WHERE (source_account_id = $1 OR target_account_id = $1)
                AND transaction_date >= $2 AND transaction_date < $3
              ORDER BY transaction_date, id`
	return r.list(ctx, query, accountID, from, to)
}

func (r *TransactionRepository) ListStalePending(ctx context.Context, before time.Time) ([]model.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
              FROM bank_transactions
              WHERE transaction_status = $1 AND transaction_date < $2
              ORDER BY id`
	return r.list(ctx, query, model.TransactionStatusPending, before)
}

// Delete - административное удаление. PENDING записи не удаляются.
func (r *TransactionRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM bank_transactions WHERE id = $1 AND transaction_status <> $2`

	result, err := r.db.ExecContext(ctx, query, id, model.TransactionStatusPending)
	if err != nil {
		return mapError(err, "failed to delete transaction")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return mapError(err, "failed to get rows affected")
	}

	if rowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("transaction %d is pending: %w", id, model.ErrConflict)
	}
	return nil
}

func (r *TransactionRepository) list(ctx context.Context, query string, args ...any) ([]model.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.WithError(err).Error("Ошибка запроса записей журнала")
		return nil, mapError(err, "failed to query transactions")
	}
	defer rows.Close()

	var transactions []model.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			r.logger.WithError(err).Error("Ошибка чтения строки журнала")
			return nil, mapError(err, "failed to scan transaction")
		}
		transactions = append(transactions, *tx)
	}

	if err := rows.Err(); err != nil {
		return nil, mapError(err, "rows iteration error")
	}

	return transactions, nil
}
