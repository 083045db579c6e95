package model

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

type User struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Email       string    `json:"email" db:"email"`
	Password    string    `json:"-" db:"password"`
	PhoneNumber string    `json:"phone_number" db:"phone_number"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type SignUpInput struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=64"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,max=32"`
}

type SignInInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=64"`
}

func (u *SignUpInput) Validate() error {
	if err := validateStruct(u); err != nil {
		return err
	}
	if len(strings.TrimSpace(u.Name)) < 2 {
		return fmt.Errorf("%w: name is too short", ErrValidation)
	}

	// Проверка пароля
	if !isValidPassword(u.Password) {
		return fmt.Errorf("%w: password must contain at least one uppercase letter, one lowercase letter, one number and one special character", ErrValidation)
	}

	return nil
}

func (u *SignInInput) Validate() error {
	return validateStruct(u)
}

func isValidPassword(password string) bool {
	var (
		hasUpper   = false
		hasLower   = false
		hasNumber  = false
		hasSpecial = false
	)

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	return hasUpper && hasLower && hasNumber && hasSpecial && len(password) >= 8 && len(password) <= 64
}
