package diagnosing

import (
	"errors"
	"fmt"
	"time"

	"github.com/vfg2006/traffic-diagnostics-api/internal/domain"
)

var (
	ErrDuplicateSnapshot     = errors.New("snapshot duplicado para entidade e dia")
	ErrUngroundedFinding     = errors.New("finding sem evidência nos dados de entrada")
	ErrInvalidConfiguration  = errors.New("configuração de thresholds inválida")
	ErrInvalidRequest        = errors.New("requisição de diagnóstico inválida")
	ErrDiagnosticPersistence = errors.New("erro ao persistir diagnóstico")
)

// DuplicateSnapshotError aborta apenas a série da entidade afetada
type DuplicateSnapshotError struct {
	EntityID string
	Date     time.Time
}

func (e *DuplicateSnapshotError) Error() string {
	return fmt.Sprintf("%s: entidade %s em %s", ErrDuplicateSnapshot.Error(), e.EntityID, e.Date.Format(time.DateOnly))
}

func (e *DuplicateSnapshotError) Unwrap() error {
	return ErrDuplicateSnapshot
}

// UngroundedFindingError aponta a citação que não pôde ser verificada
type UngroundedFindingError struct {
	Category domain.Category
	EntityID string
	Citation *domain.Citation
	Details  string
}

func (e *UngroundedFindingError) Error() string {
	msg := fmt.Sprintf("%s: %s/%s", ErrUngroundedFinding.Error(), e.Category, e.EntityID)
	if e.Citation != nil {
		msg = fmt.Sprintf("%s (%s %s em %s)", msg, e.Citation.EntityID, e.Citation.Field, e.Citation.Date.Format(time.DateOnly))
	}
	if e.Details != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Details)
	}
	return msg
}

func (e *UngroundedFindingError) Unwrap() error {
	return ErrUngroundedFinding
}

// InvalidConfigurationError identifica o threshold fora do domínio
type InvalidConfigurationError struct {
	Name    string
	Value   float64
	Details string
}

func (e *InvalidConfigurationError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s=%v (%s)", ErrInvalidConfiguration.Error(), e.Name, e.Value, e.Details)
	}
	return fmt.Sprintf("%s: %s=%v", ErrInvalidConfiguration.Error(), e.Name, e.Value)
}

func (e *InvalidConfigurationError) Unwrap() error {
	return ErrInvalidConfiguration
}

// IsClientError indica erros causados pela entrada do chamador
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, domain.ErrInvalidDateRange)
}
