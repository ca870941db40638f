package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrSnakeDoc/warden/internal/cache"
	"github.com/MrSnakeDoc/warden/internal/catalog"
	"github.com/MrSnakeDoc/warden/internal/config"
	"github.com/MrSnakeDoc/warden/internal/endpoint"
	"github.com/MrSnakeDoc/warden/internal/gate"
	"github.com/MrSnakeDoc/warden/internal/gateway"
	"github.com/MrSnakeDoc/warden/internal/httpserver"
	"github.com/MrSnakeDoc/warden/internal/httpserver/deps"
	"github.com/MrSnakeDoc/warden/internal/logger"
	"github.com/MrSnakeDoc/warden/internal/proto"
	"github.com/MrSnakeDoc/warden/internal/scheduler"
	"github.com/MrSnakeDoc/warden/internal/store/file"
	"github.com/MrSnakeDoc/warden/internal/user"
	"github.com/MrSnakeDoc/warden/internal/version"
	"github.com/MrSnakeDoc/warden/internal/watcher"
)

type App struct {
	cfg        *config.Config
	logger     logger.Logger
	server     *httpserver.Server
	store      *file.Store
	sessions   *watcher.SessionTable
	manager    *watcher.Manager
	reconciler *scheduler.Reconciler
	gate       *gate.Gate
	users      *user.Service
	endpoints  *endpoint.Service
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Open the store early - fail fast if the data dir is unusable
	loggerClient.Infof("Opening store at %s", cfg.DataDir)
	store, err := file.Open(cfg.DataDir, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to open store: %v", err)
		os.Exit(1)
	}

	resolver := catalog.New(store.Versions, loggerClient)

	if err := bootstrap(store, resolver, cfg.AdminID, loggerClient); err != nil {
		loggerClient.Errorf("Failed to bootstrap persisted state: %v", err)
		os.Exit(1)
	}
	loggerClient.Info("store initialized successfully")

	// Shared session table: manager writes it, reconciler and ops read it.
	sessions := watcher.NewSessionTable()

	prober := &proto.Pinger{}
	dialer := &proto.PollDialer{
		Prober:   prober,
		Interval: cfg.PollInterval,
		Timeout:  cfg.ProbeTimeout,
		Log:      loggerClient,
	}
	notifier := &gateway.LogNotifier{Log: loggerClient}

	manager := watcher.New(store.Endpoints, resolver, sessions, prober, dialer, notifier, loggerClient,
		watcher.Options{
			ProbeTimeout: cfg.ProbeTimeout,
			RestartDelay: cfg.RestartDelay,
		})

	accessGate := gate.New(
		store,
		gateway.AllowAll{},
		cache.New[int64, gate.UserState](),
		cache.New[int64, bool](),
		loggerClient,
	)

	users := user.NewService(store, accessGate, loggerClient)
	endpoints := endpoint.NewService(store, loggerClient)

	reconciler := scheduler.NewReconciler(store.Endpoints, sessions, loggerClient, cfg.ReconcileInterval)

	d := deps.Deps{
		Logger:       loggerClient,
		StartTime:    time.Now(),
		Version:      version.Version,
		Commit:       version.Commit,
		BuildDate:    version.BuildDate,
		GoVersion:    version.GoVersion,
		TimeNow:      time.Now,
		AllowedCIDRS: cfg.AllowedCIDRS,
		TrustProxy:   cfg.TrustProxy,
		Store:        store,
		Sessions:     sessions,
		DataDir:      cfg.DataDir,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:        cfg,
		logger:     loggerClient,
		server:     server,
		store:      store,
		sessions:   sessions,
		manager:    manager,
		reconciler: reconciler,
		gate:       accessGate,
		users:      users,
		endpoints:  endpoints,
	}
}

// Manager exposes the session manager for the gateway layer.
func (a *App) Manager() *watcher.Manager { return a.manager }

// Gate exposes the access gate for the gateway layer.
func (a *App) Gate() *gate.Gate { return a.gate }

// Users exposes the user service for the gateway layer.
func (a *App) Users() *user.Service { return a.users }

// Endpoints exposes the endpoint service for the gateway layer.
func (a *App) Endpoints() *endpoint.Service { return a.endpoints }

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting Warden v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("Warden %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start the reconciliation sweeper
	if err := a.reconciler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start reconciler: %w", err)
	}
	a.logger.Info("reconciler started",
		logger.Duration("interval", a.cfg.ReconcileInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	// Stop the reconciler
	a.reconciler.Stop()

	// Close live connections without persisting: sessions are in-memory
	// only and the owner's auto-restart flag must survive a restart.
	for _, s := range a.sessions.All() {
		if s.Conn != nil {
			_ = s.Conn.Close()
		}
		a.sessions.Remove(s.EndpointID)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	a.logger.Info("✅ Warden stopped cleanly")
	return nil
}
