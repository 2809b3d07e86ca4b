package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"procurement/internal/config"
	"procurement/internal/controller"
	"procurement/internal/logger"
	"procurement/internal/repository"
	"procurement/internal/router"
	"procurement/internal/service"
)

const serviceName = "procurement"

type App struct {
	repo       *repository.Repository
	service    *service.Service
	controller *controller.Controller
	handler    http.Handler
	stopSig    chan os.Signal
	cfg        *config.Config
	log        *zap.Logger

	Done chan struct{}
}

type option func(*App)

func WithConfig(cfg *config.Config) option {
	return func(app *App) {
		app.cfg = cfg
	}
}

func WithLogger(log *zap.Logger) option {
	return func(app *App) {
		app.log = log
	}
}

func NewApp(opts ...option) (*App, error) {
	var err error

	app := &App{
		stopSig: make(chan os.Signal, 2),
		Done:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(app)
	}

	if app.cfg == nil {
		app.cfg, err = config.NewConfig()
		if err != nil {
			return nil, err
		}
	}

	if app.log == nil {
		app.log, err = logger.New(app.cfg.LogLevel, app.cfg.LogFormat, serviceName)
		if err != nil {
			return nil, err
		}
	}

	app.repo, err = repository.NewRepository(context.Background(), nil, &app.cfg.PostgresConfig, app.log.Named("repository"))
	if err != nil {
		return nil, err
	}

	app.service = service.NewService(app.repo, app.log.Named("service"))
	app.controller = controller.NewController(app.service, app.log.Named("controller"), app.cfg.EditRetryAttempts)
	app.handler = router.NewRouter(app.controller, app.log.Named("http"))

	return app, nil
}

// Handler returns the routed API, for serving it outside of Run.
func (app *App) Handler() http.Handler {
	return app.handler
}

// Run serves HTTP until SIGINT or SIGTERM, then shuts the server down and closes
// the repository. Done is closed once everything is released.
func (app *App) Run() {
	defer app.log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signal.Notify(app.stopSig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(app.stopSig)

	go func() {
		select {
		case sig := <-app.stopSig:
			app.log.Info("received signal", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	server := http.Server{
		Addr:         app.cfg.ServerAddress,
		Handler:      app.handler,
		ReadTimeout:  app.cfg.ReadTimeout,
		WriteTimeout: app.cfg.WriteTimeout,
	}

	go func() {
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.log.Error("http server error", zap.Error(err))
			cancel()
		}
	}()

	app.log.Info("server started, listening for connections", zap.String("address", app.cfg.ServerAddress))
	<-ctx.Done()

	timeout, tcancel := context.WithTimeout(context.Background(), app.cfg.ShutdownTimeout)
	defer tcancel()
	app.log.Info("shutting down http server")
	if err := server.Shutdown(timeout); err != nil {
		app.log.Warn("http server shutdown", zap.Error(err))
	}

	app.log.Info("closing repository")
	if err := app.repo.Close(); err != nil {
		app.log.Error("repository closing error", zap.Error(err))
	}

	close(app.Done)
	app.log.Info("exiting app")
}

// Stop asks a running app to shut down.
func (app *App) Stop() {
	app.stopSig <- os.Interrupt
}
