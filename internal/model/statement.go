package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionResponse - запись журнала в том виде, в каком ее видит клиент
type TransactionResponse struct {
	ID                int64             `json:"id"`
	TransactionType   TransactionType   `json:"transaction_type"`
	TransactionStatus TransactionStatus `json:"transaction_status"`
	Amount            decimal.Decimal   `json:"amount"`
	TransactionDate   time.Time         `json:"transaction_date"`
	SourceAccountID   int64             `json:"source_account_id"`
	TargetAccountID   *int64            `json:"target_account_id,omitempty"`
}

func NewTransactionResponse(tx *Transaction) TransactionResponse {
	return TransactionResponse{
		ID:                tx.ID,
		TransactionType:   tx.Type,
		TransactionStatus: tx.Status,
		Amount:            tx.Amount,
		TransactionDate:   tx.TransactionDate,
		SourceAccountID:   tx.SourceAccountID,
		TargetAccountID:   tx.TargetAccountID,
	}
}

// Statement - выписка по счету за период
type Statement struct {
	AccountNumber string          `json:"account_number"`
	From          time.Time       `json:"from"`
	To            time.Time       `json:"to"`
	Balance       decimal.Decimal `json:"balance"`
	TotalCredits  decimal.Decimal `json:"total_credits"`
	TotalDebits   decimal.Decimal `json:"total_debits"`
	Entries       int             `json:"entries"`
	XML           []byte          `json:"-"`
	Signature     string          `json:"-"` // ASCII-armored detached PGP signature
}
