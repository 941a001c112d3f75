package handler

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vfg2006/traffic-diagnostics-api/internal/api/handler/router"
	"github.com/vfg2006/traffic-diagnostics-api/internal/usecases/diagnosing"
	"github.com/vfg2006/traffic-diagnostics-api/pkg/middleware"
)

func Healthcheck(db Pinger) []router.Route {
	return []router.Route{
		{
			Path:    "/healthcheck",
			Method:  http.MethodGet,
			Handler: HealthcheckHandler(),
		},
		{
			Path:    "/readiness",
			Method:  http.MethodGet,
			Handler: ReadinessHandler(db),
		},
	}
}

func Metrics(gatherer prometheus.Gatherer) []router.Route {
	return []router.Route{
		{
			Path:    "/metrics",
			Method:  http.MethodGet,
			Handler: promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
		},
	}
}

func Diagnostics(service diagnosing.Diagnoser) []router.Route {
	return []router.Route{
		{
			Path:        "/v1/diagnostics",
			Method:      http.MethodPost,
			Handler:     RunDiagnostic(service),
			Middlewares: []func(http.Handler) http.Handler{middleware.AllRoles()},
		},
		{
			Path:        "/v1/diagnostics/evidence",
			Method:      http.MethodGet,
			Handler:     ListEvidence(service),
			Middlewares: []func(http.Handler) http.Handler{middleware.AllRoles()},
		},
		{
			Path:        "/v1/diagnostics/runs/:id",
			Method:      http.MethodGet,
			Handler:     GetDiagnosticRun(service),
			Middlewares: []func(http.Handler) http.Handler{middleware.AllRoles()},
		},
		{
			Path:        "/v1/diagnostics/thresholds",
			Method:      http.MethodGet,
			Handler:     GetThresholds(service),
			Middlewares: []func(http.Handler) http.Handler{middleware.AllRoles()},
		},
	}
}

func Snapshots(service diagnosing.Diagnoser) []router.Route {
	return []router.Route{
		{
			Path:        "/v1/snapshots",
			Method:      http.MethodPost,
			Handler:     ImportSnapshots(service),
			Middlewares: []func(http.Handler) http.Handler{middleware.AdminOrSupervisor()},
		},
		{
			Path:        "/v1/snapshots",
			Method:      http.MethodGet,
			Handler:     ListSnapshots(service),
			Middlewares: []func(http.Handler) http.Handler{middleware.AllRoles()},
		},
	}
}

func CronJobs(services CronJobServices) []router.Route {
	return []router.Route{
		{
			Path:        "/v1/cron/:type/run",
			Method:      http.MethodPost,
			Handler:     RunCronJob(services),
			Middlewares: []func(http.Handler) http.Handler{middleware.AdminOnly()},
		},
		{
			Path:        "/v1/cron/status",
			Method:      http.MethodGet,
			Handler:     GetCronStatus(services),
			Middlewares: []func(http.Handler) http.Handler{middleware.AdminOrSupervisor()},
		},
	}
}
