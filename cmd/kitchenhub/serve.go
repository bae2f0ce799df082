package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/james702283/ai-kitchen-health-suite/internal/auth"
	"github.com/james702283/ai-kitchen-health-suite/internal/logger"
	"github.com/james702283/ai-kitchen-health-suite/internal/server"
	"github.com/james702283/ai-kitchen-health-suite/pkg/store/memstore"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the development document server",
		Long: `Run the document server the other commands talk to. With
KITCHENHUB_SERVER_DATA_DIR set, documents and user accounts persist to
SQLite files in that directory; otherwise everything is in memory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}
}

func runServe(opts *rootOptions) error {
	log := logger.Get()
	cfg := opts.cfg

	storeOpts := memstore.DefaultOptions()
	authOpts := auth.Options{
		Tenant:    cfg.Tenant,
		JWTSecret: cfg.Server.JWTSecret,
		TokenTTL:  cfg.Server.TokenTTL,
	}
	if cfg.Server.DataDir != "" {
		if err := os.MkdirAll(cfg.Server.DataDir, 0o755); err != nil {
			return err
		}
		storeOpts.DBPath = filepath.Join(cfg.Server.DataDir, "documents.db")
		authOpts.DBPath = filepath.Join(cfg.Server.DataDir, "users.db")
	}
	// Writes are only allowed inside the tenant this server hosts.
	storeOpts.Rules = map[string]string{
		"write": `request.path.startsWith("tenants/` + cfg.Tenant + `/")`,
	}

	st, err := memstore.Open(storeOpts)
	if err != nil {
		return err
	}
	defer st.Close()

	authSvc, err := auth.Open(authOpts)
	if err != nil {
		return err
	}
	defer authSvc.Close()

	srv := server.New(server.Options{
		Store:  st,
		Auth:   authSvc,
		Tenant: cfg.Tenant,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting kitchenhub server",
		"addr", cfg.Server.ListenAddr, "tenant", cfg.Tenant, "data_dir", cfg.Server.DataDir)
	return srv.Run(ctx, cfg.Server.ListenAddr)
}
