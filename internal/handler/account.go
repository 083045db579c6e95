package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/partiksingh1/smartbank/internal/model"
	"github.com/partiksingh1/smartbank/internal/service"
)

const defaultPeriod = 30 * 24 * time.Hour

// AccountHandler обрабатывает запросы, связанные со счетами
type AccountHandler struct {
	accountService     *service.AccountService
	transactionService *service.TransactionService
	statementService   *service.StatementService
	logger             *logrus.Logger
}

func NewAccountHandler(
	accountService *service.AccountService,
	transactionService *service.TransactionService,
	statementService *service.StatementService,
	logger *logrus.Logger,
) *AccountHandler {
	return &AccountHandler{
		accountService:     accountService,
		transactionService: transactionService,
		statementService:   statementService,
		logger:             logger,
	}
}

// RegisterRoutes регистрирует маршруты для работы со счетами
func (h *AccountHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("", h.CreateAccount).Methods(http.MethodPost)
	router.HandleFunc("", h.GetUserAccounts).Methods(http.MethodGet)
	router.HandleFunc("/{number}", h.GetAccount).Methods(http.MethodGet)
	router.HandleFunc("/{number}/transactions", h.ListTransactions).Methods(http.MethodGet)
	router.HandleFunc("/{number}/statement", h.GetStatement).Methods(http.MethodGet)
}

// CreateAccount открывает новый счет вызывающему
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthenticated", Message: "неавторизованный доступ"})
		return
	}

	var req model.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WithError(err).Warn("Не удалось декодировать запрос на создание счета")
		writeBadRequest(w, "неверный формат запроса")
		return
	}

	account, err := h.accountService.CreateAccount(r.Context(), userID, req)
	if err != nil {
		status, body := errorBody(h.logger, err)
		// Счет открыт, но начальный взнос не прошел
		body.Account = account
		writeJSON(w, status, body)
		return
	}

	writeJSON(w, http.StatusCreated, account)
}

func (h *AccountHandler) GetUserAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthenticated", Message: "неавторизованный доступ"})
		return
	}

	accounts, err := h.accountService.GetUserAccounts(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if accounts == nil {
		accounts = []model.Account{}
	}

	writeJSON(w, http.StatusOK, accounts)
}

func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthenticated", Message: "неавторизованный доступ"})
		return
	}

	account, err := h.accountService.GetAccount(r.Context(), userID, mux.Vars(r)["number"])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, account)
}

// ListTransactions возвращает записи журнала по счету за период
func (h *AccountHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthenticated", Message: "неавторизованный доступ"})
		return
	}

	from, to, err := parsePeriod(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	entries, err := h.transactionService.ListByAccount(r.Context(), userID, mux.Vars(r)["number"], from, to)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response := make([]model.TransactionResponse, 0, len(entries))
	for i := range entries {
		response = append(response, model.NewTransactionResponse(&entries[i]))
	}
	writeJSON(w, http.StatusOK, response)
}

// GetStatement отдает XML выписку, подпись передается в заголовке
func (h *AccountHandler) GetStatement(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthenticated", Message: "неавторизованный доступ"})
		return
	}

	from, to, err := parsePeriod(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	statement, err := h.statementService.Export(r.Context(), userID, mux.Vars(r)["number"], from, to)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	if statement.Signature != "" {
		// armored подпись многострочная, в заголовок она идет в base64
		w.Header().Set("X-Statement-Signature", base64.StdEncoding.EncodeToString([]byte(statement.Signature)))
	}
	w.WriteHeader(http.StatusOK)
	w.Write(statement.XML)
}

// parsePeriod читает from и to из query. Принимаются RFC3339 и YYYY-MM-DD,
// дата без времени в to включает весь день. По умолчанию последние 30 дней.
func parsePeriod(r *http.Request) (time.Time, time.Time, error) {
	query := r.URL.Query()
	to := time.Now().UTC()
	if raw := query.Get("to"); raw != "" {
		t, dateOnly, err := parseTime(raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		if dateOnly {
			t = t.Add(24 * time.Hour)
		}
		to = t
	}

	from := to.Add(-defaultPeriod)
	if raw := query.Get("from"); raw != "" {
		t, _, err := parseTime(raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = t
	}

	if from.After(to) {
		return time.Time{}, time.Time{}, errPeriod
	}
	return from, to, nil
}

var errPeriod = errors.New("начало периода позже конца")

func parseTime(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), false, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("неверный формат даты: %s", raw)
	}
	return t, true, nil
}
