package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/vfg2006/traffic-diagnostics-api/internal/metrics"
	"github.com/vfg2006/traffic-diagnostics-api/pkg/apiErrors"
	"github.com/vfg2006/traffic-diagnostics-api/pkg/log"
)

// CorrelationIDHeader propaga o ID de correlação entre cliente e servidor
const CorrelationIDHeader = "X-Correlation-ID"

// slowRequest marca requisições que merecem aviso. Diagnósticos de contas
// grandes passam disso com frequência.
const slowRequest = 2 * time.Second

// LoggingMiddleware atribui o ID de correlação, registra uma linha por
// requisição e alimenta as métricas HTTP
func LoggingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, correlationID := log.WithCorrelationID(r.Context(), r.Header.Get(CorrelationIDHeader))
			r = r.WithContext(ctx)
			w.Header().Set(CorrelationIDHeader, correlationID)

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			startedAt := time.Now()

			next.ServeHTTP(sw, r)

			elapsed := time.Since(startedAt)
			metrics.ObserveRequest(r.Method, sw.status, elapsed)

			logger := log.ForContext(ctx).WithFields(log.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"query":       r.URL.RawQuery,
				"remote_addr": r.RemoteAddr,
				"status_code": sw.status,
				"duration_ms": elapsed.Milliseconds(),
			})
			switch {
			case sw.status >= http.StatusInternalServerError:
				logger.Error("request failed")
			case sw.status >= http.StatusBadRequest:
				logger.Warn("request rejected")
			case elapsed > slowRequest:
				logger.Warnf("slow request: %s", elapsed)
			default:
				logger.Info("request completed")
			}
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// LogPanicMiddleware converte pânicos dos handlers em 500 com o corpo de erro padrão
func LogPanicMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}

				logger := log.ForContext(r.Context()).WithFields(log.Fields{
					"error":  recovered,
					"method": r.Method,
					"path":   r.URL.Path,
				})
				if log.IsDevelopment() {
					logger.Errorf("panic: %v\n%s", recovered, debug.Stack())
				} else {
					logger.WithField("stack_trace", string(debug.Stack())).Error("panic while handling request")
				}

				apiErrors.WriteError(w, apiErrors.ErrInternalServer, "Erro interno no servidor", nil)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
