package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "DEPOSIT"    // пополнение счета
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL" // вывод средств со счета
	TransactionTypeTransfer   TransactionType = "TRANSFER"   // перевод между счетами
)

// ParseTransactionType разбирает тип операции на границе системы.
// Дальше по стеку ходит только проверенное значение.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown transaction type %q", ErrValidation, s)
	}
	return t, nil
}

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypeTransfer:
		return true
	}
	return false
}

// Debits сообщает, списывает ли операция средства со счета-источника
func (t TransactionType) Debits() bool {
	return t == TransactionTypeWithdrawal || t == TransactionTypeTransfer
}

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed
}

// CanTransitionTo допускает только PENDING -> COMPLETED и PENDING -> FAILED
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	return s == TransactionStatusPending && next.IsTerminal()
}

// Transaction - запись журнала операций. Сумма и тип неизменяемы после создания.
type Transaction struct {
	ID              int64             `json:"id" db:"id"`
	Type            TransactionType   `json:"transaction_type" db:"transaction_type"`
	Status          TransactionStatus `json:"transaction_status" db:"transaction_status"`
	Amount          decimal.Decimal   `json:"amount" db:"amount"`
	TransactionDate time.Time         `json:"transaction_date" db:"transaction_date"`
	SourceAccountID int64             `json:"source_account_id" db:"source_account_id"`
	TargetAccountID *int64            `json:"target_account_id,omitempty" db:"target_account_id"`
}

// SubmitRequest - уже разобранный запрос на операцию
type SubmitRequest struct {
	Type                TransactionType
	Amount              decimal.Decimal
	SourceAccountNumber string
	TargetAccountNumber string
	Pin                 string
}

// Validate отклоняет запрос до взятия каких-либо блокировок
func (r *SubmitRequest) Validate() error {
	if !r.Type.Valid() {
		return fmt.Errorf("%w: unknown transaction type %q", ErrValidation, r.Type)
	}
	if !r.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if strings.TrimSpace(r.SourceAccountNumber) == "" {
		return fmt.Errorf("%w: source account number is required", ErrValidation)
	}
	if r.Pin == "" {
		return fmt.Errorf("%w: pin is required", ErrValidation)
	}

	switch r.Type {
	case TransactionTypeTransfer:
		if strings.TrimSpace(r.TargetAccountNumber) == "" {
			return fmt.Errorf("%w: target account number is required for transfer", ErrValidation)
		}
		if r.TargetAccountNumber == r.SourceAccountNumber {
			return fmt.Errorf("%w: source and target accounts must differ", ErrValidation)
		}
	default:
		if r.TargetAccountNumber != "" {
			return fmt.Errorf("%w: target account is only allowed for transfer", ErrValidation)
		}
	}
	return nil
}

// TransactionRequest - тело HTTP запроса на операцию
type TransactionRequest struct {
	TransactionType     string          `json:"transaction_type" validate:"required"`
	Amount              decimal.Decimal `json:"amount"` // положительность проверяет SubmitRequest.Validate
	SourceAccountNumber string          `json:"source_account_number" validate:"required,max=32"`
	TargetAccountNumber string          `json:"target_account_number" validate:"max=32"`
	Pin                 string          `json:"pin" validate:"required"`
}

// ToSubmitRequest проверяет тип операции и строит запрос для движка
func (r *TransactionRequest) ToSubmitRequest() (SubmitRequest, error) {
	if err := validateStruct(r); err != nil {
		return SubmitRequest{}, err
	}
	t, err := ParseTransactionType(r.TransactionType)
	if err != nil {
		return SubmitRequest{}, err
	}
	req := SubmitRequest{
		Type:                t,
		Amount:              r.Amount,
		SourceAccountNumber: strings.TrimSpace(r.SourceAccountNumber),
		TargetAccountNumber: strings.TrimSpace(r.TargetAccountNumber),
		Pin:                 r.Pin,
	}
	return req, req.Validate()
}
