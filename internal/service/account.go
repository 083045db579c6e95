package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/partiksingh1/smartbank/internal/model"
	"github.com/partiksingh1/smartbank/internal/repository"
)

const accountNumberAttempts = 5

type AccountService struct {
	accounts     repository.AccountStore
	transactions *TransactionService
	logger       *logrus.Logger
}

func NewAccountService(
	accounts repository.AccountStore,
	transactions *TransactionService,
	logger *logrus.Logger,
) *AccountService {
	return &AccountService{
		accounts:     accounts,
		transactions: transactions,
		logger:       logger,
	}
}

// CreateAccount открывает счет с нулевым балансом. Начальный взнос
// проводится обычным пополнением, баланс напрямую не записывается.
// Если взнос не прошел, возвращается открытый счет и ошибка взноса.
func (s *AccountService) CreateAccount(ctx context.Context, userID uuid.UUID, req model.CreateAccountRequest) (*model.Account, error) {
	if err := req.Validate(); err != nil {
		s.logger.WithError(err).Warn("Некорректный запрос на открытие счета")
		return nil, err
	}
	accountType, _ := model.ParseAccountType(req.AccountType)

	pinHash, err := bcrypt.GenerateFromPassword([]byte(req.Pin), bcrypt.DefaultCost)
	if err != nil {
		s.logger.WithError(err).Error("Не удалось захешировать PIN")
		return nil, fmt.Errorf("ошибка хеширования PIN: %w", err)
	}

	now := time.Now().UTC()
	account := &model.Account{
		UserID:      userID,
		AccountType: accountType,
		Branch:      req.Branch,
		PinHash:     string(pinHash),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.logger.Infof("Создание нового счета для пользователя %s", userID)
	for attempt := 1; ; attempt++ {
		account.AccountNumber = generateAccountNumber()
		err = s.accounts.Create(ctx, account)
		if err == nil {
			break
		}
		if !errors.Is(err, model.ErrConflict) || attempt == accountNumberAttempts {
			s.logger.WithError(err).Error("Ошибка при создании счета")
			return nil, fmt.Errorf("ошибка создания счета: %w", err)
		}
		s.logger.Debugf("Номер счета %s занят, повторная генерация", account.AccountNumber)
	}
	s.logger.Infof("Успешно создан счет %s для пользователя %s", account.AccountNumber, userID)

	if !req.InitialDeposit.IsPositive() {
		return account, nil
	}

	_, err = s.transactions.Submit(ctx, userID, model.SubmitRequest{
		Type:                model.TransactionTypeDeposit,
		Amount:              req.InitialDeposit,
		SourceAccountNumber: account.AccountNumber,
		Pin:                 req.Pin,
	})
	if err != nil {
		// Счет остается открытым с нулевым балансом и возвращается вместе с ошибкой
		s.logger.WithError(err).Errorf("Счет %s открыт, но начальный взнос не зачислен", account.AccountNumber)
		return account, fmt.Errorf("счет %s открыт, начальный взнос не зачислен: %w", account.AccountNumber, err)
	}

	return s.accounts.GetByNumber(ctx, account.AccountNumber)
}

func (s *AccountService) GetUserAccounts(ctx context.Context, userID uuid.UUID) ([]model.Account, error) {
	s.logger.Infof("Получение списка счетов пользователя %s", userID)
	accounts, err := s.accounts.ListByUser(ctx, userID)
	if err != nil {
		s.logger.WithError(err).Error("Ошибка при получении счетов пользователя")
		return nil, fmt.Errorf("ошибка получения счетов: %w", err)
	}
	return accounts, nil
}

func (s *AccountService) GetAccount(ctx context.Context, userID uuid.UUID, accountNumber string) (*model.Account, error) {
	account, err := s.accounts.GetByNumber(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		s.logger.Warnf("Попытка чтения чужого счета: пользователь %s, владелец %s", userID, account.UserID)
		return nil, fmt.Errorf("%w: account %s does not belong to caller", model.ErrUnauthorized, accountNumber)
	}
	return account, nil
}

// generateAccountNumber возвращает случайный 12-значный номер
func generateAccountNumber() string {
	const minNumber = 100000000000
	return strconv.FormatInt(minNumber+rand.Int63n(900000000000), 10)
}
