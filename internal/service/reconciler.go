package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/partiksingh1/smartbank/internal/model"
	"github.com/partiksingh1/smartbank/internal/repository"
)

type ReconciliationNotifier interface {
	SendReconciliationReport(email string, entries []model.Transaction) error
}

// Reconciler закрывает записи журнала, зависшие в PENDING.
// COMPLETED пишется в одной транзакции с балансами, поэтому запись,
// оставшаяся в PENDING после конца своей транзакции, балансы не меняла
// и может быть переведена в FAILED.
type Reconciler struct {
	ledger   repository.Ledger
	notifier ReconciliationNotifier
	opsEmail string
	after    time.Duration
	logger   *logrus.Logger
	now      func() time.Time
}

func NewReconciler(
	ledger repository.Ledger,
	notifier ReconciliationNotifier,
	opsEmail string,
	after time.Duration,
	logger *logrus.Logger,
) *Reconciler {
	return &Reconciler{
		ledger:   ledger,
		notifier: notifier,
		opsEmail: opsEmail,
		after:    after,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ResolveStalePending переводит в FAILED записи старше порога.
// Возвращает количество закрытых записей.
func (r *Reconciler) ResolveStalePending(ctx context.Context) (int, error) {
	before := r.now().Add(-r.after)
	stale, err := r.ledger.ListStalePending(ctx, before)
	if err != nil {
		r.logger.WithError(err).Error("Ошибка получения зависших записей журнала")
		return 0, fmt.Errorf("ошибка получения зависших записей: %w", err)
	}
	if len(stale) == 0 {
		r.logger.Debug("Зависших записей журнала нет")
		return 0, nil
	}

	r.logger.Infof("Найдено %d зависших записей журнала", len(stale))
	var resolved []model.Transaction
	for _, entry := range stale {
		err := r.ledger.UpdateStatus(ctx, entry.ID, model.TransactionStatusFailed)
		switch {
		case err == nil:
			entry.Status = model.TransactionStatusFailed
			resolved = append(resolved, entry)
			r.logger.WithFields(logrus.Fields{
				"transaction_id": entry.ID,
				"type":           entry.Type,
				"amount":         entry.Amount.String(),
				"created_at":     entry.TransactionDate,
			}).Warn("Зависшая запись журнала переведена в FAILED")
		case errors.Is(err, model.ErrConflict), errors.Is(err, model.ErrNotFound):
			// запись успела завершиться или удалена
			r.logger.WithField("transaction_id", entry.ID).Debug("Запись журнала уже не в PENDING")
		default:
			r.logger.WithError(err).Errorf("Не удалось закрыть запись журнала %d", entry.ID)
		}
	}

	if len(resolved) > 0 && r.notifier != nil && r.opsEmail != "" {
		if err := r.notifier.SendReconciliationReport(r.opsEmail, resolved); err != nil {
			r.logger.WithError(err).Warn("Не удалось отправить отчет о сверке")
		}
	}

	return len(resolved), nil
}
