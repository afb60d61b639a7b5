package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "github.com/fallrisk/super-serial/docs"
	"github.com/fallrisk/super-serial/internal/config"
	"github.com/fallrisk/super-serial/internal/handler"
	"github.com/fallrisk/super-serial/internal/link"
	"github.com/fallrisk/super-serial/internal/metric"
	"github.com/fallrisk/super-serial/internal/profile"
	"github.com/fallrisk/super-serial/internal/routes"
	"github.com/fallrisk/super-serial/internal/service"
	"github.com/fallrisk/super-serial/internal/transport"
	"github.com/fallrisk/super-serial/internal/utils"
)

// Application is the HTTP and WebSocket bridge
type Application struct {
	config  *config.Config
	logger  *zap.Logger
	metrics *metric.Registry
	server  *http.Server
	router  *routes.Router

	eventBus *handler.EventBus
	manager  *link.Manager
	terminal *service.TerminalService
	prefs    *config.PreferencesWatcher
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the serial link over HTTP and WebSocket",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bridge, err := NewApplication(app.config, app.logger, app.metrics)
		if err != nil {
			return err
		}
		return bridge.Start()
	},
}

// @title super-serial API
// @version 1.0.0
// @description Serial link bridge: open, close and write a serial link, manage connection profiles and stream link events.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8086
// @BasePath /api/v1

// NewApplication wires the bridge from an already loaded configuration.
func NewApplication(cfg *config.Config, logger *zap.Logger, metrics *metric.Registry) (*Application, error) {
	serviceLogger := utils.NewServiceLogger(logger, "super-serial")
	serviceLogger.LogServiceStart(cfg.App.Version, cfg)

	app := &Application{
		config:  cfg,
		logger:  logger,
		metrics: metrics,
	}

	app.initializeLink()

	if err := app.initializeProfiles(); err != nil {
		return nil, fmt.Errorf("failed to initialize profiles: %w", err)
	}

	app.initializePreferences()
	app.initializeServer()

	return app, nil
}

// initializeLink creates the event bus and the link manager feeding it
func (app *Application) initializeLink() {
	app.eventBus = handler.NewEventBus(app.logger)
	go app.eventBus.Start()

	driver := transport.NewSerialDriver(app.logger, app.config.Link.ReadWindow)
	app.manager = link.NewManager(driver, link.MultiListener{app.eventBus}, link.Options{
		ReadBufferSize: app.config.Link.ReadBufferSize,
		PollInterval:   app.config.Link.PollInterval,
		Logger:         app.logger,
		Metrics:        app.metrics.Metrics,
	})

	app.logger.Info("Link manager initialized",
		zap.Int("read_buffer_size", app.config.Link.ReadBufferSize),
		zap.Duration("read_window", app.config.Link.ReadWindow),
	)
}

// initializeProfiles loads the profile file. A missing or rejected file
// leaves the bridge running with no profiles.
func (app *Application) initializeProfiles() error {
	if app.config.Profiles.Path == "" {
		return errors.New("profiles.path is empty")
	}

	store := profile.NewStore(app.logger, app.metrics.Metrics)
	app.terminal = service.NewTerminalService(app.manager, store, app.config.Profiles.Path, app.logger)

	if err := app.terminal.LoadProfiles(); err != nil {
		app.logger.Warn("Starting without profiles",
			zap.String("path", app.config.Profiles.Path),
			zap.Error(err),
		)
		return nil
	}

	app.logger.Info("Profiles loaded", zap.Int("count", len(app.terminal.Profiles())))
	return nil
}

// initializePreferences follows the preferences file when watching is on.
// The bridge has no display of its own so reloads are only logged.
func (app *Application) initializePreferences() {
	if !app.config.Preferences.Watch || app.config.Preferences.Path == "" {
		return
	}

	watcher, err := config.WatchPreferences(app.config.Preferences.Path, app.logger, func(p config.Preferences) {
		app.logger.Debug("Preferences changed",
			zap.String("font_face", p.FontFace),
			zap.Int("font_size", p.FontSize),
			zap.Bool("prompt_on_quit", p.PromptOnQuit),
			zap.Bool("local_echo", p.LocalEcho),
		)
	})
	if err != nil {
		app.logger.Warn("Preferences will not be watched", zap.Error(err))
		return
	}
	app.prefs = watcher
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() {
	app.router = routes.NewRouter(
		app.config,
		app.logger,
		app.terminal,
		app.eventBus,
		app.metrics,
	)

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      app.router.SetupRouter(),
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
	)
}

// Start serves until SIGINT or SIGTERM, or until the listener fails.
func (app *Application) Start() error {
	failed := make(chan error, 1)
	go func() {
		defer utils.LogPanic(app.logger, "http-server")

		app.logger.Info("Starting HTTP server",
			zap.String("address", app.server.Addr),
		)

		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			failed <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		app.shutdown("shutdown signal received")
		return nil
	case err := <-failed:
		app.shutdown("listener failed")
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
}

// shutdown performs graceful shutdown
func (app *Application) shutdown(reason string) {
	serviceLogger := utils.NewServiceLogger(app.logger, "super-serial")
	serviceLogger.LogServiceStop(reason)

	if err := app.terminal.Close(); err != nil {
		utils.LogError(app.logger, "Link close error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		utils.LogError(app.logger, "HTTP server shutdown error", err)
	} else {
		app.logger.Info("HTTP server stopped")
	}

	app.router.Close()
	app.eventBus.Stop()

	if app.prefs != nil {
		if err := app.prefs.Close(); err != nil {
			app.logger.Warn("Preferences watcher close error", zap.Error(err))
		}
	}

	app.logger.Info("Application shutdown completed")
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
