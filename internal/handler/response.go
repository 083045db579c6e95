package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/partiksingh1/smartbank/internal/model"
)

type errorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Account *model.Account `json:"account,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError переводит вид ошибки в HTTP статус
func writeError(w http.ResponseWriter, logger *logrus.Logger, err error) {
	status, body := errorBody(logger, err)
	writeJSON(w, status, body)
}

func errorBody(logger *logrus.Logger, err error) (int, errorResponse) {
	kind := model.KindOf(err)
	status := statusFor(err)

	entry := logger.WithError(err).WithField("kind", kind)
	if status >= http.StatusInternalServerError {
		entry.Error("Ошибка обработки запроса")
	} else {
		entry.Warn("Запрос отклонен")
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "внутренняя ошибка сервера"
	}
	return status, errorResponse{Error: kind, Message: message}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, model.ErrLockTimeout):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation_failed", Message: message})
}
