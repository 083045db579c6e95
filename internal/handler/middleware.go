package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/partiksingh1/smartbank/internal/service"
)

type contextKey string

const userIDKey contextKey = "userID"

// AuthMiddleware проверяет наличие и валидность JWT токена в заголовке Authorization
func AuthMiddleware(authService *service.AuthService, logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("Отсутствует заголовок Authorization")
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthenticated", Message: "заголовок Authorization обязателен"})
				return
			}

			// Проверяем формат заголовка
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				logger.Warn("Неверный формат заголовка Authorization")
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthenticated", Message: "неверный формат заголовка Authorization"})
				return
			}

			userID, err := authService.ParseToken(parts[1])
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthenticated", Message: "неверный токен"})
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminMiddleware пропускает только администраторов. Ставится после AuthMiddleware.
func AdminMiddleware(authService *service.AuthService, logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := callerID(r)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthenticated", Message: "неавторизованный доступ"})
				return
			}

			isAdmin, err := authService.IsAdmin(r.Context(), userID)
			if err != nil {
				writeError(w, logger, err)
				return
			}
			if !isAdmin {
				logger.WithField("user_id", userID).Warn("Попытка доступа к административному маршруту")
				writeJSON(w, http.StatusForbidden, errorResponse{Error: "unauthorized", Message: "требуются права администратора"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func callerID(r *http.Request) (uuid.UUID, bool) {
	userID, ok := r.Context().Value(userIDKey).(uuid.UUID)
	return userID, ok
}
