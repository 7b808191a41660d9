package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/99minutos/user-registry/docs"
	"github.com/99minutos/user-registry/internal/api/handler"
	"github.com/99minutos/user-registry/internal/api/metrics"
	"github.com/99minutos/user-registry/internal/api/middleware"
	"github.com/99minutos/user-registry/internal/core/ports"
)

const defaultMaxBatchItems = 100

// Dependencies are the collaborators the router wires into handlers.
type Dependencies struct {
	Users ports.UserService
	Batch ports.BatchRegistrar

	// Health holds the readiness checks, keyed by dependency name.
	Health map[string]handler.PingFunc

	// Registry receives both HTTP and domain metrics and backs /metrics.
	Registry *prometheus.Registry

	Log           zerolog.Logger
	MaxBatchItems int
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	maxItems := deps.MaxBatchItems
	if maxItems <= 0 {
		maxItems = defaultMaxBatchItems
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(deps.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "http",
		Registerer: reg,
	}))

	// --- Dependencies ---
	m := metrics.New(reg)
	userHandler := handler.NewUserHandler(deps.Users, deps.Batch, m, maxItems)
	helloHandler := handler.NewHelloHandler()

	// --- User routes ---
	e.GET("/user", userHandler.List)
	e.POST("/user", userHandler.Create)
	e.POST("/user/batch", userHandler.Batch)
	e.GET("/user/id/:id", userHandler.GetByID)
	e.GET("/user/:username", userHandler.FindByUsername)

	// --- Greeting ---
	e.GET("/hello", helloHandler.Text)
	e.GET("/hello/json", helloHandler.JSON)
	e.GET("/hello/json/reactive", helloHandler.JSON)

	// --- Health probes ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(deps.Health)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	// --- Operations ---
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: reg}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
