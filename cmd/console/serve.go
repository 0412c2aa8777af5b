package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/qcconsole/api/handler"
	"github.com/fastygo/qcconsole/domain"
	"github.com/fastygo/qcconsole/internal/backend"
	"github.com/fastygo/qcconsole/internal/guard"
	"github.com/fastygo/qcconsole/internal/infrastructure/monitor"
	"github.com/fastygo/qcconsole/internal/interceptor"
	"github.com/fastygo/qcconsole/internal/middleware"
	"github.com/fastygo/qcconsole/internal/notify"
	"github.com/fastygo/qcconsole/internal/router"
	"github.com/fastygo/qcconsole/internal/services/lifecycle"
	"github.com/fastygo/qcconsole/pkg/httpcontext"
	"github.com/fastygo/qcconsole/repository"
	authUC "github.com/fastygo/qcconsole/usecase/auth"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the console gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, zapLogger, err := bootstrap()
			if err != nil {
				return err
			}
			defer zapLogger.Sync()
			if addr == "" {
				addr = cfg.Address()
			}

			manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
			appCtx, stop := manager.Listen(cmd.Context())
			defer stop()

			store, err := openStore(appCtx, cfg, zapLogger)
			if err != nil {
				return err
			}
			manager.Register("storage", func(ctx context.Context) error {
				return store.Close()
			})

			queue := notify.NewQueue(cfg.Notify.QueueSize)
			notifier := notify.Multi{queue, notify.NewLog(zapLogger.Named("toast"))}

			httpClient := backend.NewHTTPClient(cfg.Backend, cfg.AppName)
			var client *backend.Client
			sessions := authUC.New(repository.NewAuthStorage(store), lazyBackend(func() *backend.Client { return client }), zapLogger, authUC.Config{
				ValidateInterval: cfg.Session.ValidateInterval,
				ExpiringSoon:     cfg.Session.ExpiringSoon,
			})
			ic := interceptor.New(httpClient, sessions, notifier, zapLogger, interceptor.Options{
				LoginPath: cfg.Backend.LoginPath,
				Timeout:   cfg.Backend.Timeout,
			})
			client = backend.New(ic, httpClient, cfg.Backend)

			if err := sessions.Initialize(appCtx); err != nil {
				zapLogger.Warn("session initialization failed, starting logged out", zap.Error(err))
			}
			if err := sessions.Start(); err != nil {
				return err
			}
			manager.Register("session_validator", func(ctx context.Context) error {
				sessions.Stop(ctx)
				return nil
			})

			mon := monitor.New(cfg.Backend.CheckPeriod, zapLogger,
				monitor.Check{Name: "storage", Probe: store.Ping, Critical: true},
				monitor.Check{Name: "backend", Probe: client.Ping, Timeout: 5 * time.Second},
			)
			mon.Start()
			manager.Register("monitor", func(ctx context.Context) error {
				mon.Stop()
				return nil
			})

			ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)
			authGuard := guard.NewAuthGuard(sessions, nil, cfg.Session.LoginRoute, zapLogger)
			adminGuard := guard.NewAdminGuard(sessions, nil, cfg.Session.LoginRoute, zapLogger)

			handlers := router.Handlers{
				Auth:          apiHandler.NewAuthHandler(sessions, ctxAdapter, zapLogger),
				Proxy:         apiHandler.NewProxyHandler(client, router.APIPrefix, ctxAdapter, zapLogger),
				Notifications: apiHandler.NewNotificationHandler(queue, ctxAdapter, zapLogger),
				Health:        apiHandler.NewHealthHandler(mon, sessions, ctxAdapter, zapLogger),
			}
			r := router.New(handlers, router.Guards{
				Authenticated: middleware.Guard(authGuard, ctxAdapter, zapLogger),
				Admin:         middleware.Guard(guard.Chain(authGuard, adminGuard), ctxAdapter, zapLogger),
			})

			server := &fasthttp.Server{
				Handler:      r.Handler,
				ReadTimeout:  cfg.HTTP.ReadTimeout,
				WriteTimeout: cfg.HTTP.WriteTimeout,
				IdleTimeout:  cfg.HTTP.IdleTimeout,
				Name:         cfg.AppName,
			}

			serveErr := make(chan error, 1)
			go func() {
				zapLogger.Info("console started",
					zap.String("address", addr),
					zap.String("backend", cfg.Backend.BaseURL),
					zap.String("storage", cfg.Storage.Driver),
					zap.String("session", domain.State(sessions.Session())),
				)
				serveErr <- server.ListenAndServe(addr)
			}()
			manager.Register("http_server", func(ctx context.Context) error {
				return server.ShutdownWithContext(ctx)
			})

			select {
			case <-appCtx.Done():
				err = nil
			case err = <-serveErr:
				zapLogger.Error("server stopped", zap.Error(err))
			}

			if shutdownErr := manager.Shutdown(context.Background()); shutdownErr != nil {
				zapLogger.Error("graceful shutdown error", zap.Error(shutdownErr))
			}
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides SERVER_HOST and SERVER_PORT")
	return cmd
}

// lazyBackend breaks the construction cycle between the session manager and
// the interceptor-backed client.
type lazyBackend func() *backend.Client

func (f lazyBackend) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	return f().Login(ctx, email, password)
}

func (f lazyBackend) Refresh(ctx context.Context, refreshToken string) (string, error) {
	return f().Refresh(ctx, refreshToken)
}

func (f lazyBackend) Logout(ctx context.Context) error {
	return f().Logout(ctx)
}
