package domain

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// Claims do token JWT emitido para usuários da API
type Claims struct {
	UserID       int
	UserName     string
	UserEmail    string
	UserRoleID   int
	UserAccounts []string
	jwt.RegisteredClaims
}

// CanAccessAccount indica se o usuário está vinculado à conta. Perfis
// administrativos são verificados pelo middleware de roles.
func (c *Claims) CanAccessAccount(accountID string) bool {
	return slices.Contains(c.UserAccounts, accountID)
}
