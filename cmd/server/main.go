package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Tyrowin/roomrelay/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("RELAY_CONFIG"), "path to a YAML config file")
	flag.Parse()

	// Load local .env (dev only)
	_ = godotenv.Load()

	cfg, err := server.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := server.NewLogger(os.Stdout, cfg.Log)

	// Cancel on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := server.New(cfg, logger)
	srv.StartHub()

	httpServer := server.CreateServer(cfg.Port, srv.SetupRoutes())

	go func() {
		if err := server.StartServer(httpServer, logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server crashed", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	if err := server.ShutdownServer(httpServer, shutdownTimeout, logger); err != nil {
		logger.Error("HTTP server shutdown", "error", err)
	}
	if err := srv.Shutdown(shutdownTimeout); err != nil {
		logger.Error("hub shutdown", "error", err)
	}

	logger.Info("shutdown complete")
}
