package main

import (
	"context"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scenevoice/docs"
	"scenevoice/internal/cache"
	"scenevoice/internal/config"
	handlers "scenevoice/internal/http/handler"
	"scenevoice/internal/http/middleware"
	"scenevoice/internal/otel"
	"scenevoice/internal/service"
	"scenevoice/internal/storage"
	"scenevoice/internal/vision"

	speechsynth "scenevoice/internal/speech"
)

// @title SceneVoice API
// @version 1.0
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize tracing (no-op when OTEL_SDK_DISABLED=true)
	shutdownTracing, err := otel.Init(ctx, time.Local)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	// Artifact storage: local directory by default, S3-compatible when configured
	var store storage.Storage
	switch cfg.Storage.Backend {
	case "s3":
		store, err = storage.NewMinIO(cfg.Storage.MinIO)
	default:
		store, err = storage.NewLocal(cfg.Upload.Dir)
	}
	if err != nil {
		log.Fatalf("failed to initialize artifact storage: %v", err)
	}

	// One client serves both the vision and the speech endpoints
	clientOpts := []option.RequestOption{option.WithAPIKey(cfg.Vision.APIKey)}
	if cfg.Vision.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.Vision.BaseURL))
	}
	client := openai.NewClient(clientOpts...)

	describer := vision.NewOpenAIDescriber(client, cfg.Vision)
	synthesizer := speechsynth.NewOpenAISynthesizer(client, cfg.Speech)

	svcOpts := service.Options{MaxUploadBytes: cfg.Upload.MaxBytes}
	if cfg.Cache.Enabled {
		svcOpts.Cache = cache.NewRedisCache(cfg.Cache)
	}
	svc := service.NewAnalysisService(store, describer, synthesizer, svcOpts)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		// Transport ceiling only. The service enforces the real upload cap
		// and returns the validation error; the error handler folds bodies
		// rejected at this level into the same response.
		BodyLimit: 64 * 1024 * 1024,
	})

	// Register global middleware
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger())
	// Browser clients upload straight from the page
	app.Use(cors.New())
	app.Use(otelfiber.Middleware())

	promMiddleware, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("failed to register prometheus metrics: %v", err)
	}
	app.Use(promMiddleware.Handler())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Register HTTP routes with injected service
	handlers.RegisterRoutes(app, store, svc)

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	addr := ":" + cfg.Port

	go func() {
		if err := app.Listen(addr); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("server shutdown: %v", err)
	}
}
