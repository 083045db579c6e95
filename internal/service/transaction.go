package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/partiksingh1/smartbank/internal/model"
	"github.com/partiksingh1/smartbank/internal/repository"
)

// TransactionNotifier уведомляет владельца счета о завершенной операции
type TransactionNotifier interface {
	SendTransactionNotification(email string, entry *model.Transaction, accountNumber string) error
}

// TransactionService проводит операции над балансами. Корректность при
// конкурентном доступе обеспечивают только блокировки строк хранилища.
type TransactionService struct {
	accounts repository.AccountStore
	ledger   repository.Ledger
	users    repository.UserStore
	notifier TransactionNotifier
	timeout  time.Duration // Предел времени на всю операцию, 0 - без предела
	logger   *logrus.Logger
	now      func() time.Time
}

func NewTransactionService(
	accounts repository.AccountStore,
	ledger repository.Ledger,
	users repository.UserStore,
	notifier TransactionNotifier,
	timeout time.Duration,
	logger *logrus.Logger,
) *TransactionService {
	return &TransactionService{
		accounts: accounts,
		ledger:   ledger,
		users:    users,
		notifier: notifier,
		timeout:  timeout,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Submit проводит пополнение, снятие или перевод.
//
// Порядок: блокировки счетов по возрастанию номера, проверка владельца и PIN,
// PENDING запись в журнале, проверка баланса под блокировкой, изменение
// балансов и COMPLETED в одной транзакции. Любая ошибка после создания
// записи переводит ее в FAILED отдельной записью. Истечение дедлайна
// операции возвращается как ErrLockTimeout.
func (s *TransactionService) Submit(ctx context.Context, callerID uuid.UUID, req model.SubmitRequest) (*model.Transaction, error) {
	log := s.logger.WithFields(logrus.Fields{
		"caller_id":      callerID,
		"type":           req.Type,
		"amount":         req.Amount.String(),
		"source_account": req.SourceAccountNumber,
		"target_account": req.TargetAccountNumber,
	})

	if err := req.Validate(); err != nil {
		log.WithError(err).Warn("Запрос на операцию отклонен")
		return nil, err
	}
	log.Info("Инициирована операция")

	// Ожидание соединения из пула не ограничено lock_timeout, поэтому вся
	// операция получает собственный дедлайн
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var (
		entry  *model.Transaction
		source *model.Account
	)
	err := s.accounts.WithinTx(ctx, func(tx repository.AccountTx) error {
		var (
			target *model.Account
			err    error
		)
		for _, number := range lockOrder(req) {
			acc, lockErr := tx.LockForUpdate(ctx, number)
			if lockErr != nil {
				log.WithError(lockErr).Warnf("Не удалось заблокировать счет %s", number)
				return lockErr
			}
			if number != req.SourceAccountNumber {
				target = acc
				continue
			}
			// PIN проверяется сразу после блокировки источника, до записи в журнал
			if err = s.authorize(callerID, acc, req.Pin); err != nil {
				log.WithError(err).Warn("Проверка владельца или PIN не пройдена")
				return err
			}
			source = acc
		}

		pending := &model.Transaction{
			Type:            req.Type,
			Status:          model.TransactionStatusPending,
			Amount:          req.Amount,
			TransactionDate: s.now(),
			SourceAccountID: source.ID,
		}
		if target != nil {
			targetID := target.ID
			pending.TargetAccountID = &targetID
		}
		if _, err = s.ledger.Create(ctx, pending); err != nil {
			log.WithError(err).Error("Ошибка создания записи журнала")
			return err
		}
		entry = pending
		log = log.WithField("transaction_id", entry.ID)

		return s.apply(ctx, tx, entry, source, target, log)
	})
	if err != nil {
		if entry == nil {
			return nil, err
		}
		return s.fail(ctx, entry, err, log)
	}

	entry.Status = model.TransactionStatusCompleted
	if completed, findErr := s.ledger.FindByID(ctx, entry.ID); findErr == nil {
		entry = completed
	} else {
		log.WithError(findErr).Warn("Не удалось перечитать завершенную запись журнала")
	}
	log.Info("Операция успешно завершена")

	s.notify(ctx, callerID, entry, source.AccountNumber)
	return entry, nil
}

// lockOrder возвращает номера счетов в порядке взятия блокировок.
// Единый порядок для всех операций исключает взаимную блокировку
// встречных переводов.
func lockOrder(req model.SubmitRequest) []string {
	numbers := []string{req.SourceAccountNumber}
	if req.Type == model.TransactionTypeTransfer {
		numbers = append(numbers, req.TargetAccountNumber)
	}
	sort.Strings(numbers)
	return numbers
}

func (s *TransactionService) authorize(callerID uuid.UUID, account *model.Account, pin string) error {
	if account.UserID != callerID {
		return fmt.Errorf("%w: account %s does not belong to caller", model.ErrUnauthorized, account.AccountNumber)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PinHash), []byte(pin)); err != nil {
		return fmt.Errorf("%w: invalid pin for account %s", model.ErrUnauthorized, account.AccountNumber)
	}
	return nil
}

// apply проверяет баланс заблокированного источника и меняет балансы.
// Вызывается внутри единицы работы, результат фиксируется одним коммитом.
func (s *TransactionService) apply(
	ctx context.Context,
	tx repository.AccountTx,
	entry *model.Transaction,
	source, target *model.Account,
	log *logrus.Entry,
) error {
	amount := entry.Amount

	if entry.Type.Debits() && source.Balance.LessThan(amount) {
		log.WithField("balance", source.Balance.String()).Warn("Недостаточно средств на счете")
		return fmt.Errorf("%w: account %s", model.ErrInsufficientFunds, source.AccountNumber)
	}

	switch entry.Type {
	case model.TransactionTypeDeposit:
		source.Balance = source.Balance.Add(amount)
	case model.TransactionTypeWithdrawal:
		source.Balance = source.Balance.Sub(amount)
	case model.TransactionTypeTransfer:
		source.Balance = source.Balance.Sub(amount)
		target.Balance = target.Balance.Add(amount)
	}

	if err := tx.Save(ctx, source); err != nil {
		log.WithError(err).Errorf("Ошибка сохранения баланса счета %s", source.AccountNumber)
		return err
	}
	if target != nil {
		if err := tx.Save(ctx, target); err != nil {
			log.WithError(err).Errorf("Ошибка сохранения баланса счета %s", target.AccountNumber)
			return err
		}
	}

	return tx.CompleteEntry(ctx, entry.ID)
}

// fail переводит запись в FAILED после отката балансов. Если запись уже
// COMPLETED, значит коммит прошел, а ошибка пришла при его подтверждении.
// Если уже FAILED, ее закрыла сверка.
func (s *TransactionService) fail(ctx context.Context, entry *model.Transaction, cause error, log *logrus.Entry) (*model.Transaction, error) {
	// FAILED пишется даже если запрос клиента уже отменен
	ctx = context.WithoutCancel(ctx)

	err := s.ledger.UpdateStatus(ctx, entry.ID, model.TransactionStatusFailed)
	if err == nil {
		entry.Status = model.TransactionStatusFailed
		log.WithError(cause).Warn("Операция не выполнена, запись журнала переведена в FAILED")
		return nil, cause
	}

	if errors.Is(err, model.ErrConflict) {
		current, findErr := s.ledger.FindByID(ctx, entry.ID)
		if findErr == nil {
			switch current.Status {
			case model.TransactionStatusCompleted:
				log.WithError(cause).Warn("Ошибка подтверждения, но операция зафиксирована")
				return current, nil
			case model.TransactionStatusFailed:
				// Запись уже закрыта сверкой, балансы откачены
				entry.Status = model.TransactionStatusFailed
				log.WithError(cause).Warn("Операция не выполнена, запись журнала уже переведена в FAILED сверкой")
				return nil, cause
			}
		}
	}

	log.WithError(err).WithFields(logrus.Fields{
		"cause":                   cause.Error(),
		"reconciliation_required": true,
	}).Error("Не удалось перевести запись журнала в FAILED, запись осталась в PENDING")
	return nil, cause
}

func (s *TransactionService) notify(ctx context.Context, callerID uuid.UUID, entry *model.Transaction, accountNumber string) {
	if s.notifier == nil || s.users == nil {
		return
	}

	user, err := s.users.GetByID(ctx, callerID)
	if err != nil || user.Email == "" {
		return
	}

	go func() {
		if err := s.notifier.SendTransactionNotification(user.Email, entry, accountNumber); err != nil {
			s.logger.WithError(err).Warn("Не удалось отправить email уведомление")
		}
	}()
}

func (s *TransactionService) GetByID(ctx context.Context, id int64) (*model.Transaction, error) {
	entry, err := s.ledger.FindByID(ctx, id)
	if err != nil {
		s.logger.WithError(err).Warnf("Ошибка получения записи журнала %d", id)
		return nil, err
	}
	return entry, nil
}

func (s *TransactionService) ListAll(ctx context.Context) ([]model.Transaction, error) {
	entries, err := s.ledger.ListAll(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Ошибка получения журнала")
		return nil, err
	}
	return entries, nil
}

// ListByAccount возвращает записи по счету вызывающего за период [from, to)
func (s *TransactionService) ListByAccount(
	ctx context.Context,
	callerID uuid.UUID,
	accountNumber string,
	from, to time.Time,
) ([]model.Transaction, error) {
	if from.After(to) {
		return nil, fmt.Errorf("%w: period start is after period end", model.ErrValidation)
	}

	account, err := s.accounts.GetByNumber(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	if account.UserID != callerID {
		s.logger.Warnf("Попытка чтения журнала чужого счета: пользователь %s, счет %s", callerID, accountNumber)
		return nil, fmt.Errorf("%w: account %s does not belong to caller", model.ErrUnauthorized, accountNumber)
	}

	return s.ledger.ListByAccount(ctx, account.ID, from, to)
}

// Delete - административное удаление завершенной записи журнала
func (s *TransactionService) Delete(ctx context.Context, adminID uuid.UUID, id int64) error {
	if err := s.ledger.Delete(ctx, id); err != nil {
		s.logger.WithError(err).Warnf("Не удалось удалить запись журнала %d", id)
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"transaction_id": id,
		"admin_id":       adminID,
	}).Warn("Запись журнала удалена администратором")
	return nil
}
