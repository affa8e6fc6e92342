package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/notehub/gatekeeper/internal/database"
	"github.com/notehub/gatekeeper/internal/di"
)

func main() {
	_ = godotenv.Load()

	app, cleanup, err := di.InitializeApplication()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	app.Logger.Info("Starting Gatekeeper API",
		"version", di.Version,
		"session_store", app.Config.Token.SessionStore,
	)

	if err := database.RunMigrations(app.DB, app.Logger); err != nil {
		app.Logger.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	app.Sweeper.Start(ctx)

	app.RegisterRoutes()

	go func() {
		if err := app.Server.Start(); err != nil {
			app.Logger.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	if port := app.Config.Server.GRPCPort; port > 0 {
		go func() {
			addr := fmt.Sprintf("%s:%d", app.Config.Server.Host, port)
			if err := app.GRPCServer.Start(addr); err != nil {
				app.Logger.Error("gRPC server error", "error", err)
				os.Exit(1)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.GRPCServer.Stop()

	if err := app.Server.Shutdown(); err != nil {
		app.Logger.Error("Server forced to shutdown", "error", err)
	}

	stop()
	app.Sweeper.Stop()

	app.Logger.Info("Server stopped")
}
