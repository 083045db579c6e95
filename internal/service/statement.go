package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/partiksingh1/smartbank/internal/model"
	"github.com/partiksingh1/smartbank/internal/repository"
)

// StatementSigner подписывает выписку отделенной подписью
type StatementSigner interface {
	Sign(data []byte) (string, error)
}

type StatementService struct {
	accounts repository.AccountStore
	ledger   repository.Ledger
	signer   StatementSigner
	logger   *logrus.Logger
	now      func() time.Time
}

func NewStatementService(
	accounts repository.AccountStore,
	ledger repository.Ledger,
	signer StatementSigner,
	logger *logrus.Logger,
) *StatementService {
	return &StatementService{
		accounts: accounts,
		ledger:   ledger,
		signer:   signer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Export формирует XML выписку по счету вызывающего за период [from, to).
// В итоги попадают только COMPLETED операции, остальные выводятся со статусом.
func (s *StatementService) Export(
	ctx context.Context,
	userID uuid.UUID,
	accountNumber string,
	from, to time.Time,
) (*model.Statement, error) {
	s.logger.WithFields(logrus.Fields{
		"user_id":        userID,
		"account_number": accountNumber,
		"from":           from.Format("2006-01-02"),
		"to":             to.Format("2006-01-02"),
	}).Info("Формирование выписки по счету")

	if from.After(to) {
		return nil, fmt.Errorf("%w: period start is after period end", model.ErrValidation)
	}

	account, err := s.accounts.GetByNumber(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		s.logger.Warnf("Попытка получения выписки по чужому счету: пользователь %s, счет %s", userID, accountNumber)
		return nil, fmt.Errorf("%w: account %s does not belong to caller", model.ErrUnauthorized, accountNumber)
	}

	entries, err := s.ledger.ListByAccount(ctx, account.ID, from, to)
	if err != nil {
		s.logger.WithError(err).Error("Ошибка получения записей журнала для выписки")
		return nil, fmt.Errorf("ошибка получения записей журнала: %w", err)
	}

	statement := &model.Statement{
		AccountNumber: account.AccountNumber,
		From:          from,
		To:            to,
		Balance:       account.Balance,
		TotalCredits:  decimal.Zero,
		TotalDebits:   decimal.Zero,
		Entries:       len(entries),
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("Statement")
	root.CreateAttr("generated", s.now().Format(time.RFC3339))

	acc := root.CreateElement("Account")
	acc.CreateAttr("number", account.AccountNumber)
	acc.CreateAttr("type", string(account.AccountType))
	if account.Branch != "" {
		acc.CreateAttr("branch", account.Branch)
	}

	period := root.CreateElement("Period")
	period.CreateAttr("from", from.Format(time.RFC3339))
	period.CreateAttr("to", to.Format(time.RFC3339))

	list := root.CreateElement("Entries")
	for _, e := range entries {
		direction := entryDirection(&e, account.ID)

		el := list.CreateElement("Entry")
		el.CreateAttr("id", strconv.FormatInt(e.ID, 10))
		el.CreateAttr("type", string(e.Type))
		el.CreateAttr("status", string(e.Status))
		el.CreateAttr("direction", direction)
		el.CreateAttr("date", e.TransactionDate.Format(time.RFC3339))
		el.SetText(e.Amount.StringFixed(2))

		if e.Status != model.TransactionStatusCompleted {
			continue
		}
		if direction == "CREDIT" {
			statement.TotalCredits = statement.TotalCredits.Add(e.Amount)
		} else {
			statement.TotalDebits = statement.TotalDebits.Add(e.Amount)
		}
	}

	totals := root.CreateElement("Totals")
	totals.CreateElement("Credits").SetText(statement.TotalCredits.StringFixed(2))
	totals.CreateElement("Debits").SetText(statement.TotalDebits.StringFixed(2))
	balance := root.CreateElement("Balance")
	balance.CreateAttr("asOf", s.now().Format(time.RFC3339))
	balance.SetText(account.Balance.StringFixed(2))

	doc.Indent(2)
	statement.XML, err = doc.WriteToBytes()
	if err != nil {
		s.logger.WithError(err).Error("Ошибка сериализации выписки")
		return nil, fmt.Errorf("ошибка сериализации выписки: %w", err)
	}

	if s.signer != nil {
		statement.Signature, err = s.signer.Sign(statement.XML)
		if err != nil {
			s.logger.WithError(err).Error("Ошибка подписи выписки")
			return nil, fmt.Errorf("ошибка подписи выписки: %w", err)
		}
	}

	s.logger.WithField("entries", len(entries)).Info("Выписка сформирована")
	return statement, nil
}

// entryDirection - CREDIT если средства пришли на счет, DEBIT если ушли
func entryDirection(e *model.Transaction, accountID int64) string {
	switch e.Type {
	case model.TransactionTypeDeposit:
		return "CREDIT"
	case model.TransactionTypeTransfer:
		if e.TargetAccountID != nil && *e.TargetAccountID == accountID {
			return "CREDIT"
		}
	}
	return "DEBIT"
}
