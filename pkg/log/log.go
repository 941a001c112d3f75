package log

import (
	"context"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Fields é um alias para logrus.Fields
type Fields logrus.Fields

// Logger é a fachada de log usada pelos handlers e middlewares
type Logger interface {
	WithField(key string, value any) Logger
	WithFields(fields Fields) Logger
	WithError(err error) Logger
	WithContext(ctx context.Context) Logger

	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Warnf(format string, args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)
}

type contextKey string

const (
	// CorrelationIDKey guarda o ID de correlação da requisição no contexto
	CorrelationIDKey contextKey = "correlation_id"
	runIDKey         contextKey = "run_id"

	correlationIDField = "correlation_id"
	runIDField         = "run_id"

	maxCorrelationIDLength = 64
)

// L é a instância global de Logger
var L Logger = newLogger()

// IsDevelopment retorna verdadeiro quando APP_ENV indica ambiente local
func IsDevelopment() bool {
	switch os.Getenv("APP_ENV") {
	case "", "development", "dev":
		return true
	}
	return false
}

// SetupTestLogger configura um logger em texto, nível debug, para testes
func SetupTestLogger() {
	logrus.SetFormatter(&logrus.TextFormatter{PadLevelText: true})
	logrus.SetLevel(logrus.DebugLevel)
	logrus.SetReportCaller(false)
	L = newLogger()
}

// logger encapsula uma entrada do logrus. Em modo compacto (desenvolvimento)
// só os campos de rastreio do diagnóstico são mantidos.
type logger struct {
	entry   *logrus.Entry
	compact bool
}

func newLogger() *logger {
	return &logger{entry: logrus.NewEntry(logrus.StandardLogger()), compact: IsDevelopment()}
}

func (l *logger) with(entry *logrus.Entry) Logger {
	return &logger{entry: entry, compact: l.compact}
}

var compactFields = map[string]bool{
	correlationIDField: true,
	runIDField:         true,
	"method":           true,
	"path":             true,
	"status_code":      true,
	"duration_ms":      true,
	"error":            true,
	"account_id":       true,
	"category":         true,
}

func keepField(compact bool, key string) bool {
	return !compact || compactFields[key] || strings.HasPrefix(key, "user_")
}

func (l *logger) WithField(key string, value any) Logger {
	if !keepField(l.compact, key) {
		return l
	}
	return l.with(l.entry.WithField(key, value))
}

func (l *logger) WithFields(fields Fields) Logger {
	kept := make(logrus.Fields, len(fields))
	for k, v := range fields {
		if keepField(l.compact, k) {
			kept[k] = v
		}
	}
	if len(kept) == 0 {
		return l
	}
	return l.with(l.entry.WithFields(kept))
}

func (l *logger) WithError(err error) Logger {
	return l.with(l.entry.WithError(err))
}

// WithContext anexa o ID de correlação e o ID da execução presentes no contexto
func (l *logger) WithContext(ctx context.Context) Logger {
	if ctx == nil {
		return l
	}
	fields := Fields{}
	if id := GetCorrelationID(ctx); id != "" {
		fields[correlationIDField] = id
	}
	if id := GetRunID(ctx); id != "" {
		fields[runIDField] = id
	}
	return l.WithFields(fields)
}

func (l *logger) Debug(args ...any)                 { l.entry.Debug(args...) }
func (l *logger) Info(args ...any)                  { l.entry.Info(args...) }
func (l *logger) Warn(args ...any)                  { l.entry.Warn(args...) }
func (l *logger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *logger) Error(args ...any)                 { l.entry.Error(args...) }
func (l *logger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }

// WithCorrelationID guarda um ID de correlação no contexto, reaproveitando o
// informado pelo cliente quando for utilizável
func WithCorrelationID(ctx context.Context, incoming ...string) (context.Context, string) {
	var correlationID string
	if len(incoming) > 0 {
		correlationID = strings.TrimSpace(incoming[0])
	}
	if correlationID == "" || len(correlationID) > maxCorrelationIDLength {
		correlationID = uuid.New().String()
	}
	return context.WithValue(ctx, CorrelationIDKey, correlationID), correlationID
}

// GetCorrelationID obtém o ID de correlação do contexto
func GetCorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(CorrelationIDKey).(string)
	return id
}

// WithRunID guarda o ID de uma execução de diagnóstico no contexto
func WithRunID(ctx context.Context, runID string) context.Context {
	if runID == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, runID)
}

// GetRunID obtém o ID da execução de diagnóstico do contexto
func GetRunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}

// ForContext cria um logger com os IDs de rastreio do contexto
func ForContext(ctx context.Context) Logger {
	return L.WithContext(ctx)
}
