package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/partiksingh1/smartbank/internal/config"
	"github.com/partiksingh1/smartbank/internal/crypto"
	"github.com/partiksingh1/smartbank/internal/handler"
	"github.com/partiksingh1/smartbank/internal/repository"
	"github.com/partiksingh1/smartbank/internal/service"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Загрузка конфигурации приложения
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)

	// Инициализация хранилищ
	logger.WithField("driver", cfg.StorageDriver).Info("Инициализация хранилищ...")
	var (
		accounts repository.AccountStore
		ledger   repository.Ledger
		users    repository.UserStore
	)
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		store := repository.NewMemoryStore(cfg.LockTimeout)
		accounts = store
		ledger = store.Ledger()
		users = repository.NewMemoryUserStore()
	default:
		// Подключение к PostgreSQL. Журнал получает отдельный пул: запись PENDING
		// фиксируется, пока основной пул держит транзакцию с блокировками счетов.
		db := openDB(cfg.DSN(), cfg.DBMaxOpenConns, logger)
		defer db.Close()
		ledgerDB := openDB(cfg.DSN(), cfg.LedgerMaxOpenConns, logger)
		defer ledgerDB.Close()

		accounts = repository.NewAccountRepository(db, cfg.LockTimeout, logger)
		ledger = repository.NewTransactionRepository(ledgerDB, logger)
		users = repository.NewUserRepository(db, logger)
	}

	// Ключ подписи выписок
	var signer service.StatementSigner
	if cfg.PGPKeyPath != "" {
		pgpManager, err := crypto.NewPGPManager(cfg.PGPKeyPath)
		if err != nil {
			logger.Fatalf("Ошибка инициализации PGP: %v", err)
		}
		signer = pgpManager
	} else {
		logger.Warn("PGP_KEY_PATH не задан, выписки не подписываются")
	}

	// Инициализация сервисов
	logger.Info("Инициализация сервисов...")
	emailSender := service.NewEmailSender(cfg.SMTP, logger)
	authService := service.NewAuthService(users, cfg.JWTSecret, cfg.TokenExpiry, cfg.AdminEmails, logger)
	transactionService := service.NewTransactionService(accounts, ledger, users, emailSender, cfg.SubmitTimeout, logger)
	accountService := service.NewAccountService(accounts, transactionService, logger)
	statementService := service.NewStatementService(accounts, ledger, signer, logger)
	reconciler := service.NewReconciler(ledger, emailSender, cfg.OpsEmail, cfg.ReconcileAfter, logger)

	router := handler.NewRouter(handler.Services{
		Auth:         authService,
		Accounts:     accountService,
		Transactions: transactionService,
		Statements:   statementService,
	}, logger)

	// Планировщик сверки зависших записей журнала
	logger.Info("Настройка планировщика сверки журнала...")
	c := cron.New()
	_, err = c.AddFunc(cfg.ReconcileCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		resolved, err := reconciler.ResolveStalePending(ctx)
		if err != nil {
			logger.WithError(err).Error("Ошибка сверки журнала")
			return
		}
		if resolved > 0 {
			logger.Infof("Сверка журнала завершена, закрыто записей: %d", resolved)
		}
	})
	if err != nil {
		logger.Fatalf("Ошибка настройки планировщика: %v", err)
	}
	c.Start()

	// Настройка и запуск HTTP сервера
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.SubmitTimeout + 10*time.Second,
	}

	go func() {
		logger.Infof("Запуск сервера на %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Ошибка сервера: %v", err)
		}
	}()

	// Ожидание сигналов для graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Завершение работы сервера...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Ошибка при завершении работы сервера: %v", err)
	}
	<-c.Stop().Done()
	logger.Info("Сервер успешно остановлен")
}

// openDB открывает пул соединений с PostgreSQL и проверяет соединение
func openDB(dsn string, maxOpen int, logger *logrus.Logger) *sql.DB {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Fatalf("Ошибка подключения к базе данных: %v", err)
	}
	db.SetMaxOpenConns(maxOpen)

	// Проверка соединения с БД
	if err := db.Ping(); err != nil {
		logger.Fatalf("Ошибка проверки соединения с БД: %v", err)
	}
	return db
}
