package bootstrap

import (
	"strings"
	"time"

	"travel_server/adapter/in/http"
	"travel_server/infra/middleware"
	"travel_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// maxRequestBody bounds posted emails and items
const maxRequestBody = 1 << 20

// NewAPI builds the fiber app over initialized dependencies
func NewAPI(deps *Dependencies) *fiber.App {
	cfg := deps.Config

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             maxRequestBody,
		ReadTimeout:           30 * time.Second,
		// Scans and LLM summaries can run for minutes
		WriteTimeout: 10 * time.Minute,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.RequestLogger())

	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	allowCredentials := true
	if allowOrigins == "" || allowOrigins == "*" {
		allowOrigins = "*"
		allowCredentials = false
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Request-ID",
		ExposeHeaders:    "X-Request-ID,X-RateLimit-Limit,X-RateLimit-Remaining,X-RateLimit-Reset",
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}))

	// Health check (no auth required)
	http.NewHealthHandler(map[string]http.HealthChecker{
		cfg.StoreBackend: deps.Store,
	}).Register(app)

	api := app.Group("/api/v1")
	api.Use(middleware.JWTAuth(cfg.JWTSecret))
	api.Use(middleware.MaxBodySize(maxRequestBody))
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, API is unauthenticated")
	}

	// LLM-backed routes share one budget per caller
	var limit []fiber.Handler
	if cfg.RateLimitPerMin > 0 {
		limit = append(limit, middleware.NewRateLimiter(cfg.RateLimitPerMin, time.Minute).Handler())
	}

	travelHandler := http.NewTravelHandler(deps.Classifier, deps.ScanService, deps.Store, deps.SummaryService)
	travelHandler.Register(api, limit...)

	logger.Info("API server initialized successfully")
	return app
}
