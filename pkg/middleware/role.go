package middleware

import (
	"net/http"
	"slices"

	"github.com/vfg2006/traffic-diagnostics-api/internal/domain"
	"github.com/vfg2006/traffic-diagnostics-api/pkg/apiErrors"
	"github.com/vfg2006/traffic-diagnostics-api/pkg/log"
)

// Perfis de acesso. Administradores e supervisores enxergam todas as contas;
// clientes só as contas presentes no token.
const (
	RoleAdmin      = 1
	RoleSupervisor = 2
	RoleClient     = 3
)

var privilegedRoles = []int{RoleAdmin, RoleSupervisor}

// RoleMiddleware restringe a rota aos perfis informados
func RoleMiddleware(allowedRoles ...int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := log.ForContext(r.Context()).WithField("path", r.URL.Path)

			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				logger.Warn("acesso sem autenticação")
				apiErrors.WriteError(w, apiErrors.ErrInvalidToken, "Usuário não autenticado", nil)
				return
			}

			if !slices.Contains(allowedRoles, claims.UserRoleID) {
				logger.WithFields(log.Fields{
					"user_id":   claims.UserID,
					"user_role": claims.UserRoleID,
				}).Warn("acesso negado para o perfil")
				apiErrors.WriteError(w, apiErrors.ErrInsufficientPrivilege, "Você não tem permissão para acessar este recurso", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AdminOnly protege operações que alteram o agendamento
func AdminOnly() func(http.Handler) http.Handler {
	return RoleMiddleware(RoleAdmin)
}

// AdminOrSupervisor protege importação de snapshots e status das rotinas
func AdminOrSupervisor() func(http.Handler) http.Handler {
	return RoleMiddleware(privilegedRoles...)
}

// AllRoles permite qualquer usuário autenticado
func AllRoles() func(http.Handler) http.Handler {
	return RoleMiddleware(RoleAdmin, RoleSupervisor, RoleClient)
}

// IsPrivileged indica perfis com acesso a todas as contas
func IsPrivileged(claims *domain.Claims) bool {
	return claims != nil && slices.Contains(privilegedRoles, claims.UserRoleID)
}
