package authenticating

import (
	"errors"
	"fmt"

	"github.com/vfg2006/traffic-diagnostics-api/pkg/apiErrors"
)

var (
	ErrInvalidToken  = errors.New("token inválido")
	ErrExpiredToken  = errors.New("token expirado")
	ErrMissingSecret = errors.New("chave secreta não configurada")
)

// AuthError carrega o código de API junto da causa da rejeição do token
type AuthError struct {
	Err     error
	Code    string
	Details string
}

func (e *AuthError) Error() string {
	if e.Details == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err, e.Details)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func NewAuthError(baseErr error, code string, details string) *AuthError {
	return &AuthError{Err: baseErr, Code: code, Details: details}
}

// APICode devolve o código de API para um erro de validação de token
func APICode(err error) string {
	var authErr *AuthError
	if errors.As(err, &authErr) && authErr.Code != "" {
		return authErr.Code
	}
	if errors.Is(err, ErrExpiredToken) {
		return apiErrors.ErrExpiredToken
	}
	return apiErrors.ErrInvalidToken
}
