package model

import "errors"

// Виды ошибок. Конкретные ошибки оборачивают их через %w.
var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrConflict          = errors.New("conflict")
	ErrStorage           = errors.New("storage failure")
)

// ErrLockTimeout - блокировку строки не удалось получить за lock_timeout
var ErrLockTimeout = lockTimeoutError{}

type lockTimeoutError struct{}

func (lockTimeoutError) Error() string { return "lock wait timeout" }

func (lockTimeoutError) Is(target error) bool { return target == ErrStorage }

// KindOf возвращает стабильный код вида ошибки для внешних слоев
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrValidation):
		return "validation_failed"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrLockTimeout):
		return "lock_timeout"
	case errors.Is(err, ErrStorage):
		return "storage_failure"
	}
	return "internal"
}
