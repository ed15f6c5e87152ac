package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"adminpanel/internal/api"
	"adminpanel/internal/auth"
	"adminpanel/internal/config"
	"adminpanel/internal/guard"
	"adminpanel/internal/janitor"
	"adminpanel/internal/logging"
	"adminpanel/internal/store"
)

const version = "0.3.0"

// Globals are flags shared by every command
type Globals struct {
	Config  string           `help:"Path to the JSON config file." default:"config.json" short:"c" type:"path"`
	Version kong.VersionFlag `help:"Print version and exit."`
}

// CLI is the command tree
type CLI struct {
	Globals

	Serve            ServeCmd            `cmd:"" default:"1" help:"Run the admin panel HTTP server."`
	CreateSuperadmin CreateSuperadminCmd `cmd:"" help:"Create a named superadmin account."`
	SetAdminPassword SetAdminPasswordCmd `cmd:"" help:"Set the shared admin password."`
}

// ServeCmd runs the HTTP server until interrupted
type ServeCmd struct{}

// CreateSuperadminCmd bootstraps the first named account
type CreateSuperadminCmd struct {
	Username string `arg:"" help:"Account username."`
	Password string `required:"" env:"ADMINPANEL_PASSWORD" help:"Account password."`
}

// SetAdminPasswordCmd stores the shared-secret hash
type SetAdminPasswordCmd struct {
	Password string `required:"" env:"ADMINPANEL_PASSWORD" help:"New shared admin password."`
}

// app holds the components every command needs
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	store  *store.Store
	core   *auth.Core
	closer []io.Closer
}

func newApp(g *Globals) (*app, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}

	var output io.Writer = os.Stdout
	if cfg.Logging.File != "" {
		fw, err := logging.NewFileWriter(cfg.Logging.File, cfg.Logging.MaxSizeMB, cfg.Logging.MaxBackups)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		a.closer = append(a.closer, fw)
		output = io.MultiWriter(os.Stdout, fw)
	}
	a.logger = logging.NewLogger("main", logging.ParseLevel(cfg.Logging.Level), output)

	st, err := store.NewStore(cfg.Database.Path)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	a.store = st
	a.closer = append([]io.Closer{st}, a.closer...)

	a.core = auth.NewCore(st, coreConfig(cfg.Auth), a.logger.Named("auth"))

	return a, nil
}

func coreConfig(c config.AuthConfig) auth.Config {
	return auth.Config{
		SessionTTL:        c.SessionTTL(),
		LockoutThreshold:  c.LockoutThreshold,
		LockoutWindow:     c.LockoutWindow(),
		MinPasswordLength: c.MinPasswordLength,
		BcryptCost:        c.BcryptCost,
		AllowNamed:        c.Mode != config.AuthModeShared,
		AllowShared:       c.Mode != config.AuthModeNamed,
	}
}

func (a *app) Close() {
	for _, c := range a.closer {
		c.Close()
	}
}

// Run starts the server, the session janitor, and waits for a signal
func (cmd *ServeCmd) Run(g *Globals) error {
	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	logger := a.logger
	logger.Info("Starting adminpanel %s (auth mode %s)", version, a.cfg.Auth.Mode)

	var proxies []*net.IPNet
	if a.cfg.Server.TrustProxyHeaders {
		proxies, err = auth.ParseTrustedProxies(a.cfg.Server.TrustedProxies)
		if err != nil {
			return err
		}
		logger.Info("Honoring forwarding headers from %d trusted proxy range(s)", len(proxies))
	}

	srv := api.NewServer(a.store, a.core, guard.New(logger.Named("guard")), logger.Named("api"), &api.ServerConfig{
		TrustedProxies:    proxies,
		CORSAllowedOrigin: a.cfg.Server.CORSAllowedOrigin,
	})

	var jan *janitor.Janitor
	if schedule := a.cfg.Maintenance.SessionCleanupSchedule; schedule != "" {
		jan, err = janitor.New(schedule, a.store, logger.Named("janitor"))
		if err != nil {
			return err
		}
		jan.Start()
	}

	addr := fmt.Sprintf("%s:%d", a.cfg.Server.BindAddress, a.cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if jan != nil {
		jan.Stop(ctx)
	}
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("Shutdown incomplete: %v", err)
	}
	logger.Info("adminpanel stopped")
	return nil
}

// Run creates the account
func (cmd *CreateSuperadminCmd) Run(g *Globals) error {
	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	username := strings.TrimSpace(cmd.Username)
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if err := a.core.ValidateNewPassword(cmd.Password); err != nil {
		return err
	}

	hash, err := a.core.HashPassword(cmd.Password)
	if err != nil {
		return err
	}

	user, err := a.store.CreateUser(context.Background(), username, hash, auth.RoleSuperadmin)
	if err != nil {
		return err
	}

	a.logger.Info("Created superadmin %q (id %d)", user.Username, user.ID)
	return nil
}

// Run replaces the shared-secret hash
func (cmd *SetAdminPasswordCmd) Run(g *Globals) error {
	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.core.ValidateNewPassword(cmd.Password); err != nil {
		return err
	}

	hash, err := a.core.HashPassword(cmd.Password)
	if err != nil {
		return err
	}

	if err := a.store.UpdateSharedSecret(context.Background(), hash); err != nil {
		return err
	}

	a.logger.Info("Shared admin password updated")
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("adminpanel"),
		kong.Description("Admin panel backend: sessions, lockout, and role-scoped content management."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)
	ctx.FatalIfErrorf(ctx.Run(&cli.Globals))
}
