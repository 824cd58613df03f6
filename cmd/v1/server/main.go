package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/parley-im/parley/internal/v1/config"
	"github.com/parley-im/parley/internal/v1/coordinator"
	"github.com/parley-im/parley/internal/v1/health"
	"github.com/parley-im/parley/internal/v1/logging"
	"github.com/parley-im/parley/internal/v1/middleware"
	"github.com/parley-im/parley/internal/v1/room"
	"github.com/parley-im/parley/internal/v1/transport"
)

func main() {
	port := flag.String("port", "", "listen port (required)")
	flag.Parse()
	if *port == "" {
		slog.Error("the -port flag is required")
		flag.Usage()
		os.Exit(2)
	}
	if n, err := strconv.Atoi(*port); err != nil || n < 1 || n > 65535 {
		slog.Error("invalid -port value", "port", *port)
		os.Exit(2)
	}

	// Load .env for local development; paths cover the different ways of
	// running the binary.
	envLoaded := false
	for _, path := range []string{".env", "../../../.env", "../../.env"} {
		if err := godotenv.Load(path); err == nil {
			slog.Info("loaded environment", "path", path)
			envLoaded = true
			break
		}
	}
	if !envLoaded {
		slog.Warn("no .env file found, relying on environment variables")
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		slog.Error("environment validation failed", "error", err)
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.DevelopmentMode, cfg.LogLevel); err != nil {
		slog.Error("logger initialization failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Coordinator owns the directories; the default room exists from the
	// first accepted connection onward.
	registry := room.NewRegistry(cfg.RoomBacklog, coordinator.DefaultRoom)
	coord := coordinator.New(registry, cfg.MailboxCap)
	coordDone := make(chan struct{})
	go func() {
		defer close(coordDone)
		coord.Run(ctx)
	}()

	gateway := transport.NewGateway(ctx, coord, cfg.AllowedOrigins)

	if !cfg.DevelopmentMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	router.GET("/ws", gateway.ServeWs)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	healthHandler := health.NewHandler(coord)
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)

	srv := &http.Server{
		Addr:    ":" + *port,
		Handler: router,
	}

	bindErr := make(chan error, 1)
	go func() {
		slog.Info("chat server starting", "port", *port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			bindErr <- err
		}
	}()

	select {
	case err := <-bindErr:
		slog.Error("failed to run server", "error", err)
		stop()
		<-coordDone
		os.Exit(1)
	case <-ctx.Done():
	}

	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// WebSocket connections are hijacked from the HTTP server; their pumps
	// exit on the cancelled context and are joined here.
	gateway.Wait()
	<-coordDone

	slog.Info("server exiting")
}
