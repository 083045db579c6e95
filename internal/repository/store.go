package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/partiksingh1/smartbank/internal/model"
)

// AccountStore - хранилище счетов с построчными эксклюзивными блокировками
type AccountStore interface {
	// WithinTx выполняет fn как одну атомарную единицу работы.
	// Ошибка из fn откатывает все изменения и снимает блокировки.
	WithinTx(ctx context.Context, fn func(tx AccountTx) error) error
	GetByNumber(ctx context.Context, accountNumber string) (*model.Account, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Account, error)
	Create(ctx context.Context, account *model.Account) error
}

// AccountTx - операции внутри атомарной единицы работы
type AccountTx interface {
	// LockForUpdate блокирует строку счета до конца единицы работы
	LockForUpdate(ctx context.Context, accountNumber string) (*model.Account, error)
	// Save сохраняет баланс заблокированного счета
	Save(ctx context.Context, account *model.Account) error
	// CompleteEntry переводит запись журнала в COMPLETED вместе с балансами
	CompleteEntry(ctx context.Context, entryID int64) error
}

// Ledger - журнал операций. Записи Create и UpdateStatus фиксируются сразу,
// независимо от судьбы единицы работы над счетами.
type Ledger interface {
	Create(ctx context.Context, entry *model.Transaction) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status model.TransactionStatus) error
	FindByID(ctx context.Context, id int64) (*model.Transaction, error)
	ListAll(ctx context.Context) ([]model.Transaction, error)
	ListByAccount(ctx context.Context, accountID int64, from, to time.Time) ([]model.Transaction, error)
	ListStalePending(ctx context.Context, before time.Time) ([]model.Transaction, error)
	Delete(ctx context.Context, id int64) error
}

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

var (
	_ AccountStore = (*AccountRepository)(nil)
	_ AccountStore = (*MemoryStore)(nil)
	_ Ledger       = (*TransactionRepository)(nil)
	_ Ledger       = memLedger{}
	_ UserStore    = (*UserRepository)(nil)
	_ UserStore    = (*MemoryUserStore)(nil)
)
