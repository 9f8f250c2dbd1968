package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NeRF-or-Nothing/user-store/internal/config"
	"github.com/NeRF-or-Nothing/user-store/internal/database"
	"github.com/NeRF-or-Nothing/user-store/internal/log"
	"github.com/NeRF-or-Nothing/user-store/internal/models/user"
	"github.com/NeRF-or-Nothing/user-store/internal/services"
	"github.com/NeRF-or-Nothing/user-store/internal/web"
)

func main() {
	// Load configuration from the environment (and .env, if present)
	cfg, err := config.Load(os.Getenv("ENV_FILE"))
	if err != nil {
		panic(fmt.Sprintf("Error loading configuration: %s", err))
	}

	// Create webserver logger
	logger, err := log.NewLogger(cfg.Logging.Development, cfg.Logging.Debug, cfg.Logging.OutputPaths...)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := database.Connect(context.Background(), cfg.Mongo, logger)
	if err != nil {
		logger.Fatal("MongoDB connection error:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Close(ctx); err != nil {
			logger.Error("Error closing MongoDB connection:", err)
		}
	}()

	collection, err := db.EnsureCollection(context.Background(), cfg.Mongo.Collection, user.CollectionValidator(), user.Indexes())
	if err != nil {
		logger.Error("Error preparing users collection:", err)
		return
	}
	userManager := user.NewUserManager(collection, logger)

	// Change events are optional
	var publisher services.EventPublisher
	if cfg.RabbitMQ.URL != "" {
		mqService, err := services.NewAMPQService(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, services.DefaultConnectTimeout, logger)
		if err != nil {
			logger.Error("Error initializing AMPQ service:", err)
			return
		}
		defer mqService.Shutdown()
		publisher = mqService
	}
	userService := services.NewUserService(userManager, publisher, logger)

	server := web.NewWebServer(cfg.JWTSecret, userService, logger)

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down web server:", err)
		}
	}()

	logger.Infof("Starting server on %s:%d", cfg.WebServer.IP, cfg.WebServer.Port)
	if err := server.Run(cfg.WebServer.IP, cfg.WebServer.Port); err != nil {
		logger.Error("Error running web server:", err)
	}
}
