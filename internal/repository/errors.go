package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/partiksingh1/smartbank/internal/model"
)

// mapError переводит ошибки драйвера в виды ошибок модели
func mapError(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, model.ErrNotFound)
	}

	// Дедлайн операции истек в ожидании соединения из пула или блокировки
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, model.ErrLockTimeout, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "unique_violation":
			return fmt.Errorf("%s: %w", op, model.ErrConflict)
		case "lock_not_available", "query_canceled":
			return fmt.Errorf("%s: %w", op, model.ErrLockTimeout)
		}
	}

	return fmt.Errorf("%s: %w: %w", op, model.ErrStorage, err)
}
