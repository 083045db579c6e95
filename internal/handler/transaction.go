package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/partiksingh1/smartbank/internal/model"
	"github.com/partiksingh1/smartbank/internal/service"
)

// TransactionHandler обрабатывает запросы к журналу операций
type TransactionHandler struct {
	transactionService *service.TransactionService
	logger             *logrus.Logger
}

func NewTransactionHandler(transactionService *service.TransactionService, logger *logrus.Logger) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService, logger: logger}
}

func (h *TransactionHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("", h.Submit).Methods(http.MethodPost)
	router.HandleFunc("", h.ListAll).Methods(http.MethodGet)
	router.HandleFunc("/{id:[0-9]+}", h.GetByID).Methods(http.MethodGet)
}

// RegisterAdminRoutes регистрирует административные маршруты журнала
func (h *TransactionHandler) RegisterAdminRoutes(router *mux.Router) {
	router.HandleFunc("/{id:[0-9]+}", h.Delete).Methods(http.MethodDelete)
}

// Submit проводит пополнение, снятие или перевод
func (h *TransactionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthenticated", Message: "неавторизованный доступ"})
		return
	}

	var body model.TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.WithError(err).Warn("Не удалось декодировать запрос на операцию")
		writeBadRequest(w, "неверный формат запроса")
		return
	}

	req, err := body.ToSubmitRequest()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	entry, err := h.transactionService.Submit(r.Context(), userID, req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, model.NewTransactionResponse(entry))
}

func (h *TransactionHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	entries, err := h.transactionService.ListAll(r.Context())
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

func (h *TransactionHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	entry, err := h.transactionService.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, model.NewTransactionResponse(entry))
}

// Delete удаляет завершенную запись журнала
func (h *TransactionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	adminID, ok := callerID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthenticated", Message: "неавторизованный доступ"})
		return
	}

	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	if err := h.transactionService.Delete(r.Context(), adminID, id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TransactionHandler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeBadRequest(w, "неверный идентификатор операции")
		return 0, false
	}
	return id, true
}
