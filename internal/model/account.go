package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountTypeSavings  AccountType = "SAVINGS"  // сберегательный счет
	AccountTypeChecking AccountType = "CHECKING" // расчетный счет
	AccountTypeCurrent  AccountType = "CURRENT"  // текущий счет
	AccountTypeLoan     AccountType = "LOAN"     // ссудный счет
	AccountTypeCredit   AccountType = "CREDIT"   // кредитный счет
)

// ParseAccountType разбирает тип счета без учета регистра
func ParseAccountType(s string) (AccountType, error) {
	t := AccountType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown account type %q", ErrValidation, s)
	}
	return t, nil
}

func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeSavings, AccountTypeChecking, AccountTypeCurrent, AccountTypeLoan, AccountTypeCredit:
		return true
	}
	return false
}

type Account struct {
	ID            int64           `json:"id" db:"id"`
	UserID        uuid.UUID       `json:"user_id" db:"user_id"`
	AccountNumber string          `json:"account_number" db:"account_number"`
	AccountType   AccountType     `json:"account_type" db:"account_type"`
	Balance       decimal.Decimal `json:"balance" db:"balance"`
	Branch        string          `json:"branch" db:"branch"`
	PinHash       string          `json:"-" db:"pin_hash"` // bcrypt hash
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

type CreateAccountRequest struct {
	AccountType    string          `json:"account_type" validate:"required"`
	Branch         string          `json:"branch" validate:"max=100"`
	Pin            string          `json:"pin" validate:"required,number,len=4|len=6"`
	InitialDeposit decimal.Decimal `json:"initial_deposit"`
}

// Validate проверяет запрос на открытие счета
func (r *CreateAccountRequest) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	if _, err := ParseAccountType(r.AccountType); err != nil {
		return err
	}
	if r.InitialDeposit.IsNegative() {
		return fmt.Errorf("%w: initial deposit cannot be negative", ErrValidation)
	}
	return nil
}
