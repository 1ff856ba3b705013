// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/amirphl/campaign-callcenter/app/dto"
	"github.com/amirphl/campaign-callcenter/app/handlers"
	"github.com/amirphl/campaign-callcenter/app/middleware"
	"github.com/amirphl/campaign-callcenter/config"
	"github.com/amirphl/campaign-callcenter/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app               *fiber.App
	cfg               *config.ProductionConfig
	callCenterHandler handlers.CallCenterHandlerInterface
	authMiddleware    *middleware.AuthMiddleware
	healthChecks      map[string]HealthCheck
	logger            *slog.Logger
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	cfg *config.ProductionConfig,
	callCenterHandler handlers.CallCenterHandlerInterface,
	authMiddleware *middleware.AuthMiddleware,
	healthChecks map[string]HealthCheck,
	log *slog.Logger,
) *FiberRouter {
	if log == nil {
		log = utils.NopLogger()
	}

	app := fiber.New(fiber.Config{
		AppName:      "Campaign Call Center API",
		ServerHeader: "campaign-callcenter",
		ErrorHandler: errorHandler(log),
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return &FiberRouter{
		app:               app,
		cfg:               cfg,
		callCenterHandler: callCenterHandler,
		authMiddleware:    authMiddleware,
		healthChecks:      healthChecks,
		logger:            log,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.setupMiddleware()

	if r.cfg.Metrics.Enabled {
		r.app.Get(r.cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	api := r.app.Group("/api/v1")
	api.Get("/health", r.healthCheck)

	api.Use(limiter.New(limiter.Config{
		Max:        r.cfg.Security.GlobalRateLimit,
		Expiration: r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error:   dto.ErrorDetail{Code: "RATE_LIMIT_EXCEEDED"},
			})
		},
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/api/v1/health"
		},
	}))

	cc := api.Group("/call-center", r.authMiddleware.Authenticate())
	h := r.callCenterHandler

	cc.Get("/pool/candidates", h.PoolCandidates)

	cc.Post("/assignments", h.AssignVoter)
	cc.Post("/assignments/batch", h.AssignVoters)
	cc.Post("/assignments/auto", h.AutoAssignVoters)
	cc.Post("/assignments/:id/start", h.StartAssignment)
	cc.Post("/assignments/:id/complete", h.CompleteAssignment)

	cc.Post("/load-batch", h.LoadBatch)
	cc.Post("/reassign", h.ReassignPending)
	cc.Post("/workload", h.Workload)
	cc.Post("/workload/export", h.ExportWorkload)

	cc.Get("/queue", h.CallerQueue)
	cc.Get("/queue/next", h.NextAssignment)

	cc.Post("/calls", h.StartCall)
	cc.Post("/calls/:id/end", h.EndCall)
	cc.Get("/voters/:id/calls", h.ListVoterCalls)

	r.app.Use(r.notFoundHandler)

	r.logger.Info("routes configured")
}

func (r *FiberRouter) setupMiddleware() {
	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			r.logger.Error("panic recovered",
				slog.Any("request_id", c.Locals("request_id")),
				slog.Any("error", e),
				slog.String("path", c.Path()),
				slog.String("method", c.Method()),
				slog.String("ip", c.IP()))
		},
	}))

	r.app.Use(middleware.RequestID())

	if r.cfg.Server.EnableMetrics {
		r.app.Use(middleware.Metrics())
	}

	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         r.cfg.Security.XFrameOptions,
		HSTSMaxAge:            r.cfg.Security.HSTSMaxAge,
		ContentSecurityPolicy: r.cfg.Security.CSPPolicy,
		ReferrerPolicy:        r.cfg.Security.ReferrerPolicy,
		XDownloadOptions:      "noopen",
		XPermittedCrossDomain: "none",
	}))

	r.app.Use(cors.New(cors.Config{
		AllowOrigins:     r.cfg.Security.AllowedOrigins,
		AllowMethods:     r.cfg.Security.AllowedMethods,
		AllowHeaders:     r.cfg.Security.AllowedHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: r.cfg.Security.AllowCredentials,
		MaxAge:           r.cfg.Security.CORSMaxAge,
	}))

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
			Next: func(c fiber.Ctx) bool {
				// xlsx is already a zip archive
				return strings.HasSuffix(c.Path(), "/export")
			},
		}))
	}

	if r.cfg.Logging.EnableAccessLog {
		r.app.Use(logger.New(logger.Config{
			Format:     `{"time":"${time}","request_id":"${locals:request_id}","level":"info","method":"${method}","path":"${path}","ip":"${ip}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
			TimeFormat: time.RFC3339,
			TimeZone:   "UTC",
			Next: func(c fiber.Ctx) bool {
				return c.Path() == "/api/v1/health" || c.Path() == r.cfg.Metrics.Path
			},
		}))
	}
}

func (r *FiberRouter) Start(address string) error {
	r.logger.Info("starting server", slog.String("address", address))
	return r.app.Listen(address)
}

func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// healthCheck pings every registered dependency; any failure answers 503
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	resp := dto.HealthResponse{Status: "ok", Services: make(map[string]string, len(r.healthChecks))}
	for name, check := range r.healthChecks {
		if err := check(ctx); err != nil {
			r.logger.Warn("health check failed", slog.String("service", name), slog.Any("error", err))
			resp.Services[name] = "down"
			resp.Status = "degraded"
			continue
		}
		resp.Services[name] = "up"
	}

	if resp.Status != "ok" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.APIResponse{
			Success: false,
			Message: "Service is degraded",
			Data:    resp,
			Error:   dto.ErrorDetail{Code: "SERVICE_DEGRADED"},
		})
	}
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data:    resp,
	})
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": c.Locals("request_id"),
			},
		},
	})
}

func errorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}

		log.Error("unhandled request error",
			slog.Int("status", code),
			slog.Any("request_id", c.Locals("request_id")),
			slog.Any("error", err))

		return c.Status(code).JSON(dto.APIResponse{
			Success: false,
			Message: "An internal server error occurred",
			Error: dto.ErrorDetail{
				Code: "INTERNAL_ERROR",
				Details: fiber.Map{
					"timestamp":  utils.UTCNow().Unix(),
					"request_id": c.Locals("request_id"),
				},
			},
		})
	}
}
