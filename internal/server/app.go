// Package server initializes and runs the AuraChat server: the TCP command
// endpoint, the UDP discovery responder, the credential store and the audit
// log manager, with graceful shutdown on SIGINT/SIGTERM.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/aurachat/internal/discovery"
	"github.com/dmitrijs2005/aurachat/internal/logging"
	"github.com/dmitrijs2005/aurachat/internal/server/archive"
	"github.com/dmitrijs2005/aurachat/internal/server/audit"
	"github.com/dmitrijs2005/aurachat/internal/server/config"
	"github.com/dmitrijs2005/aurachat/internal/server/registry"
	"github.com/dmitrijs2005/aurachat/internal/server/session"
	"github.com/dmitrijs2005/aurachat/internal/server/stats"
	"github.com/dmitrijs2005/aurachat/internal/server/users"
)

// acceptPoll bounds Accept so the loop can observe shutdown.
const acceptPoll = time.Second

type App struct {
	config    *config.Config
	logger    logging.Logger
	users     *users.Service
	registry  *registry.Registry
	stats     *stats.Stats
	audit     *audit.Manager
	serverLog *audit.Store
	closeRepo func() error
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	mgr, err := audit.NewManager(c.LogDir, logger)
	if err != nil {
		return nil, fmt.Errorf("audit init error: %w", err)
	}
	serverLog, err := mgr.OpenServerLog()
	if err != nil {
		return nil, fmt.Errorf("audit init error: %w", err)
	}

	var repo users.Repository
	closeRepo := func() error { return nil }
	if c.DatabaseDSN != "" {
		db, err := users.OpenPostgres(context.Background(), c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		repo = users.NewPostgresRepository(db)
		closeRepo = db.Close
	} else {
		jr, err := users.NewJSONRepository(c.UsersFile)
		if err != nil {
			return nil, fmt.Errorf("user store init error: %w", err)
		}
		repo = jr
	}

	return &App{
		config:    c,
		logger:    logger,
		users:     users.NewService(repo),
		registry:  registry.New(),
		stats:     stats.New(),
		audit:     mgr,
		serverLog: serverLog,
		closeRepo: closeRepo,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run starts the listeners and blocks until the context is canceled or a
// termination signal arrives, then waits for every session to finish and
// archives the audit logs when object storage is configured.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	ln, err := net.Listen("tcp", app.config.BindAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", app.config.BindAddr, err)
	}
	defer ln.Close()

	app.logger.Info(ctx, "server listening",
		"addr", ln.Addr().String(), "discovery_port", app.config.DiscoveryPort)
	app.serverLog.Append(audit.LevelInfo, "SERVER_START",
		fmt.Sprintf("listening on %s", ln.Addr().String()))

	tcpPort := ln.Addr().(*net.TCPAddr).Port

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.runDiscovery(ctx, tcpPort)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.acceptLoop(ctx, ln.(*net.TCPListener))
	}()

	wg.Wait()

	app.shutdown()
	return nil
}

// acceptLoop accepts connections until shutdown, spawning one session engine
// per connection. Sessions are waited for so teardown audit entries land
// before the server log is sealed.
func (app *App) acceptLoop(ctx context.Context, ln *net.TCPListener) {
	var sessions sync.WaitGroup
	defer func() {
		if active := app.registry.Snapshot(); len(active) > 0 {
			app.logger.Info(ctx, "waiting for active sessions", "users", active)
		}
		sessions.Wait()
	}()

	deps := session.Deps{
		Users:        app.users,
		Registry:     app.registry,
		Audit:        app.audit,
		ServerLog:    app.serverLog,
		Stats:        app.stats,
		Logger:       app.logger,
		IdleTimeout:  app.config.IdleTimeout,
		ReadyTimeout: app.config.ReadyTimeout,
	}

	for {
		if ctx.Err() != nil {
			return
		}

		ln.SetDeadline(time.Now().Add(acceptPoll))
		conn, err := ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if !errors.Is(err, net.ErrClosed) {
				app.logger.Error(ctx, "accept failed", "error", err)
			}
			return
		}

		sessions.Add(1)
		go func() {
			defer sessions.Done()
			session.New(conn, deps).Run(ctx)
		}()
	}
}

func (app *App) runDiscovery(ctx context.Context, tcpPort int) {
	r := discovery.NewResponder(
		app.config.DiscoveryPort, app.config.DiscoveryToken, tcpPort, app.logger)
	if err := r.Run(ctx); err != nil {
		app.logger.Error(ctx, "discovery responder stopped", "error", err)
	}
}

// shutdown seals the audit stream, archives the log directory when object
// storage is configured and releases the credential store.
func (app *App) shutdown() {
	ctx := context.Background()

	app.serverLog.Append(audit.LevelInfo, "SERVER_STOP", "server shutting down")
	app.serverLog.SetEndTime()

	opts := archive.Options{
		RootUser:     app.config.S3RootUser,
		RootPassword: app.config.S3RootPassword,
		Bucket:       app.config.S3Bucket,
		Region:       app.config.S3Region,
		BaseEndpoint: app.config.S3BaseEndpoint,
	}
	if opts.Enabled() {
		uploader, err := archive.NewUploader(ctx, opts, app.logger)
		if err != nil {
			app.logger.Error(ctx, "archive init failed", "error", err)
		} else {
			n := uploader.UploadDir(ctx, app.audit.Dir())
			app.logger.Info(ctx, "audit logs archived", "uploaded", n)
		}
	}

	if err := app.closeRepo(); err != nil {
		app.logger.Error(ctx, "credential store close failed", "error", err)
	}
	app.logger.Info(ctx, "server stopped")
}
