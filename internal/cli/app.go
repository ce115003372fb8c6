package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/libra/internal/config"
	"github.com/me/libra/internal/logging"
	"github.com/me/libra/internal/push"
	"github.com/me/libra/internal/router"
	"github.com/me/libra/internal/session"
	"github.com/me/libra/internal/store"
	"github.com/me/libra/pkg/libraryapi"
)

// app is the wiring shared by every command for one invocation.
type app struct {
	cfg      config.ClientConfig
	logger   *slog.Logger
	kv       *store.SQLiteStore
	creds    *store.Credentials
	api      *libraryapi.Client
	sessions *session.Manager
	push     *push.Registrar
	out      io.Writer
	errOut   io.Writer
	now      func() time.Time
}

// loadConfig resolves configuration: file and environment first, then any
// persistent flag that was set explicitly.
func loadConfig(cmd *cobra.Command) (config.ClientConfig, error) {
	cfg, err := config.LoadClientConfig(flagConfig)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.Server = flagServer
	}
	if flags.Changed("db") {
		cfg.DBPath = flagDB
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = flagLogFormat
	}
	if flagDebug {
		cfg.LogLevel = "debug"
	}
	return cfg, cfg.Validate()
}

func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := logging.NewLoggerWithWriter(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, cmd.ErrOrStderr())

	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o700); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	kv, err := store.NewSQLiteStore(cfg.DBPath, logger, store.WithNamespace(cfg.Server))
	if err != nil {
		return nil, err
	}
	if err := kv.Migrate(cmd.Context()); err != nil {
		kv.Close()
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		kv:     kv,
		creds:  store.NewCredentials(kv, logger),
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
		now:    time.Now,
	}
	a.api = libraryapi.NewClient(libraryapi.Config{
		BaseURL:    cfg.Server,
		AuthScheme: cfg.AuthScheme,
		Timeout:    cfg.Timeout,
		UserAgent:  "libra",
	}, a.creds, logger)
	a.sessions = session.New(a.api, a.creds, logger)
	a.api.OnUnauthorized(a.sessions.HandleUnauthorized)

	var provider push.TokenProvider = push.NewInstallationProvider(kv)
	if cfg.DeviceToken != "" {
		provider = push.StaticProvider(cfg.DeviceToken)
	}
	a.push = a.newRegistrar(provider)
	return a, nil
}

func (a *app) newRegistrar(provider push.TokenProvider) *push.Registrar {
	return push.NewRegistrar(provider, a.api, a.kv, a.sessions, a.logger,
		push.WithNotifier(func(err error) {
			fmt.Fprintf(a.errOut, "notice: %v\n", err)
		}))
}

func (a *app) Close() error {
	return a.kv.Close()
}

// syncPush evaluates push registration for the current session. Failures
// are reported through the registrar's notifier and never fail a command.
func (a *app) syncPush(ctx context.Context) {
	if a.push.PushToken() == "" {
		if _, err := a.push.Acquire(ctx); err != nil {
			return
		}
	}
	a.push.Sync(ctx)
}

// withApp wraps a command body that belongs to tree. The session is
// resolved before the body runs; push registration is evaluated before and
// after it, so a login, logout or rejected token during the command is
// reflected in the marker.
func withApp(tree router.Tree, fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		snap := a.sessions.Initialize(ctx)
		if err := router.Check(tree, snap.Status); err != nil {
			return err
		}
		a.syncPush(ctx)
		defer a.syncPush(context.WithoutCancel(ctx))

		return fn(cmd, a, args)
	}
}
