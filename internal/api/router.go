// Package api assembles the HTTP surface of the dashboard.
package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/rag-dashboard/backend/internal/api/handlers"
	"github.com/rag-dashboard/backend/internal/catalog"
	"github.com/rag-dashboard/backend/internal/compare"
	"github.com/rag-dashboard/backend/internal/coverage"
	"github.com/rag-dashboard/backend/internal/metrics"
	"github.com/rag-dashboard/backend/internal/middleware/ratelimit"
	"github.com/rag-dashboard/backend/internal/middleware/security"
	"github.com/rag-dashboard/backend/internal/middleware/validation"
	"github.com/rag-dashboard/backend/internal/ragtests"
	"github.com/rag-dashboard/backend/internal/reports"
	"github.com/rag-dashboard/backend/pkg/config"
	"github.com/rag-dashboard/backend/pkg/logger"
)

// Deps are the long-lived components the routes are served from. Journal,
// Dialer and RateLimiter are optional.
type Deps struct {
	Config      *config.Config
	Repository  *reports.Repository
	Catalog     *catalog.Catalog
	Compare     *compare.Engine
	Coverage    *coverage.Coverage
	Stability   *coverage.Stability
	RAGTests    *ragtests.Store
	Journal     handlers.Journal
	Dialer      handlers.BackendDialer
	RateLimiter *ratelimit.RateLimiter
	AccessLog   bool
}

// NewApp wires every route. ctx bounds the lifetime of proxied chat sessions.
func NewApp(ctx context.Context, d Deps) *fiber.App {
	cfg := d.Config

	app := fiber.New(fiber.Config{
		ReadTimeout:           time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:          time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:             cfg.Server.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(recover.New())
	if d.AccessLog {
		app.Use(fiberlogger.New())
	}
	app.Use(metrics.Middleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins(cfg.Security.AllowedOrigins),
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, HEAD, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.Security.AllowedOrigins,
		IsDevelopment:  cfg.Security.IsDevelopment,
	}))

	idGuard := func(params ...string) fiber.Handler {
		return validation.IDGuard(validation.Config{Logger: logger.GetLogger()}, params...)
	}

	reportsHandler := handlers.NewReportsHandler(d.Catalog, d.Repository, d.Compare, cfg.Catalog.DefaultPageLimit)
	coverageHandler := handlers.NewCoverageHandler(d.Coverage, d.Stability)
	ragTestsHandler := handlers.NewRAGTestsHandler(d.RAGTests)
	chatHandler := handlers.NewChatHandler(d.Journal, d.Coverage, handlers.ChatConfig{
		ServerConfigPath: cfg.Data.ServerConfigPath,
		TunnelURL:        cfg.Proxy.TunnelURL,
		BackendAddr:      backendAddr(d.Dialer),
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
		})
	})
	app.Get("/metrics", metrics.MetricsHandler())
	app.Static("/reports", d.Repository.Dir(), fiber.Static{Browse: false})

	api := app.Group("/api")
	if d.RateLimiter != nil {
		api.Use(d.RateLimiter.Middleware())
	}

	api.Get("/reports", reportsHandler.ListReports)
	api.Get("/filters", reportsHandler.GetFilters)
	api.Get("/compare", reportsHandler.CompareReports)
	api.Get("/report/:id", idGuard("id"), reportsHandler.GetReport)
	api.Post("/cache/invalidate", reportsHandler.InvalidateCache)

	api.Get("/coverage", coverageHandler.GetCoverage)
	api.Get("/coverage/stats", coverageHandler.GetCoverageStats)
	api.Get("/coverage/chunks", coverageHandler.GetChunksIndex)
	api.Get("/coverage/tree", coverageHandler.GetCoverageTree)
	api.Get("/coverage/chunk/:id", idGuard("id"), coverageHandler.GetCoverageChunk)

	api.Get("/stability", coverageHandler.GetStability)
	api.Get("/stability/stats", coverageHandler.GetStabilityStats)
	api.Get("/stability/categories", coverageHandler.GetStabilityCategories)
	api.Get("/stability/chunk/:id", idGuard("id"), coverageHandler.GetStabilityChunk)

	api.Get("/rag-tests", ragTestsHandler.ListTests)
	api.Get("/rag-tests/:id", idGuard("id"), ragTestsHandler.GetTest)
	api.Get("/rag-dynamic-sessions", ragTestsHandler.ListSessions)
	api.Get("/rag-dynamic-session/:timestamp", idGuard("timestamp"), ragTestsHandler.GetSession)

	api.Get("/server-config", chatHandler.GetServerConfig)

	chat := api.Group("/chat")
	chat.Get("/config", chatHandler.GetChatConfig)
	chat.Get("/chunks", chatHandler.GetChunks)
	chat.Post("/feedback", chatHandler.SubmitFeedback)
	chat.Get("/logs/stats", chatHandler.GetStats)
	chat.Get("/logs/interactions", chatHandler.GetInteractions)
	chat.Get("/logs/feedback", chatHandler.GetFeedback)

	if d.Dialer != nil {
		wsHandler := handlers.NewWebSocketHandler(ctx, d.Dialer, d.Journal, uint64(cfg.Proxy.MaxFrameBytes))
		chat.Get("/ws", wsHandler.Upgrade, websocket.New(wsHandler.HandleConnection))
		// A tunnel pointed at this server is reached on /ws.
		app.Get("/ws", wsHandler.Upgrade, websocket.New(wsHandler.HandleConnection))
	}

	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		logger.Error("Unhandled request error", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func allowOrigins(origins []string) string {
	if len(origins) == 0 {
		return "*"
	}
	return strings.Join(origins, ", ")
}

func backendAddr(d handlers.BackendDialer) string {
	if d == nil {
		return ""
	}
	return d.Addr()
}
