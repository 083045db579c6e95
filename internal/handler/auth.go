package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/partiksingh1/smartbank/internal/model"
	"github.com/partiksingh1/smartbank/internal/service"
)

// AuthHandler обрабатывает запросы аутентификации
type AuthHandler struct {
	authService *service.AuthService
	logger      *logrus.Logger
}

func NewAuthHandler(authService *service.AuthService, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, logger: logger}
}

// RegisterRoutes регистрирует маршруты для аутентификации
func (h *AuthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/signup", h.SignUp).Methods(http.MethodPost)
	router.HandleFunc("/signin", h.SignIn).Methods(http.MethodPost)
}

// SignUp обрабатывает запрос на регистрацию нового пользователя
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var input model.SignUpInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.WithError(err).Warn("Не удалось декодировать входные данные для регистрации")
		writeBadRequest(w, "неверный формат запроса")
		return
	}

	user, err := h.authService.SignUp(r.Context(), input)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":         user.ID,
		"name":       user.Name,
		"email":      user.Email,
		"created_at": user.CreatedAt.Format(time.RFC3339),
	})
}

// SignIn обрабатывает запрос на вход пользователя
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var input model.SignInInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.WithError(err).Warn("Не удалось декодировать входные данные для входа")
		writeBadRequest(w, "неверный формат запроса")
		return
	}

	token, err := h.authService.SignIn(r.Context(), input)
	if errors.Is(err, model.ErrValidation) {
		writeError(w, h.logger, err)
		return
	}
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthenticated", Message: "неверные учетные данные"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
