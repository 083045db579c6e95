package handler

import (
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/partiksingh1/smartbank/internal/service"
)

// Services - все, что нужно маршрутизатору
type Services struct {
	Auth         *service.AuthService
	Accounts     *service.AccountService
	Transactions *service.TransactionService
	Statements   *service.StatementService
}

// NewRouter собирает публичные, защищенные и административные маршруты
func NewRouter(services Services, logger *logrus.Logger) *mux.Router {
	authHandler := NewAuthHandler(services.Auth, logger)
	accountHandler := NewAccountHandler(services.Accounts, services.Transactions, services.Statements, logger)
	transactionHandler := NewTransactionHandler(services.Transactions, logger)

	router := mux.NewRouter()

	// 1. Публичные маршруты для аутентификации
	publicRouter := router.PathPrefix("/auth").Subrouter()
	authHandler.RegisterRoutes(publicRouter)

	// 2. Защищенные API маршруты (требуется JWT токен)
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(AuthMiddleware(services.Auth, logger))

	accountHandler.RegisterRoutes(apiRouter.PathPrefix("/accounts").Subrouter())
	transactionHandler.RegisterRoutes(apiRouter.PathPrefix("/transactions").Subrouter())

	// 3. Административные маршруты
	adminRouter := apiRouter.PathPrefix("/admin").Subrouter()
	adminRouter.Use(AdminMiddleware(services.Auth, logger))
	transactionHandler.RegisterAdminRoutes(adminRouter.PathPrefix("/transactions").Subrouter())

	return router
}
