package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/THL-Leo/llmail/internal/audit"
	"github.com/THL-Leo/llmail/internal/config"
	"github.com/THL-Leo/llmail/internal/database"
	"github.com/THL-Leo/llmail/internal/profile"
	"github.com/THL-Leo/llmail/internal/server"
	"github.com/THL-Leo/llmail/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if missing := cfg.MissingRequired(); len(missing) > 0 {
		// Start anyway: the diagnostic endpoints report what is missing.
		slog.Warn("Starting with missing configuration", "missing", missing)
	}

	ctx := context.Background()

	// Application database (optional; endpoints degrade without it)
	var appDB *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		slog.Info("Connecting to database")
		appDB, err = database.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Warn("Database unavailable, continuing degraded", "error", err)
		} else {
			slog.Info("Connected to database")
		}
	}

	if appDB != nil && cfg.AutoMigrate {
		slog.Info("Running migrations")
		if err := database.RunMigrations(ctx, appDB, migrations()); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		slog.Info("Migrations complete")
	}

	// Catalog connection for introspection and policy management. Shares the
	// app pool unless ADMIN_DATABASE_URL points elsewhere.
	catalogDB := appDB
	if cfg.AdminDatabaseURL != "" && cfg.AdminDatabaseURL != cfg.DatabaseURL {
		catalogDB, err = database.NewPool(ctx, cfg.CatalogURL())
		if err != nil {
			slog.Warn("Catalog database unavailable, falling back to app pool", "error", err)
			catalogDB = appDB
		}
	}

	// Initialize services
	var sessions *session.Manager
	if cfg.SessionSecret != "" {
		secure := strings.HasPrefix(cfg.BaseURL, "https://")
		sessions, err = session.NewManager(cfg.SessionSecret, time.Duration(cfg.SessionMaxAge)*time.Second, secure)
		if err != nil {
			log.Fatalf("Failed to create session manager: %v", err)
		}
	}

	var oauth *session.OAuth
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		oauth = session.NewOAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.BaseURL)
	}

	var provisioner *profile.Provisioner
	var auditService *audit.Service
	var inspector *database.Inspector
	if appDB != nil {
		provisioner = profile.NewProvisioner(appDB)
		auditService = audit.NewService(appDB)
	}
	if catalogDB != nil {
		inspector = database.NewInspector(catalogDB)
	}

	srv := server.New(cfg, appDB, sessions, oauth, provisioner, inspector, auditService)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("Shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		httpServer.Shutdown(shutCtx)
		if catalogDB != nil && catalogDB != appDB {
			catalogDB.Close()
		}
		if appDB != nil {
			appDB.Close()
		}
	}()

	slog.Info("Server started", "host", cfg.Host, "port", cfg.Port)

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}

// migrations is the app-owned DDL: the audit trail only. The domain schema
// (profiles, emails) stays operator-applied via /api/setup-db so the app
// never needs DDL rights on those tables.
func migrations() []database.Migration {
	return []database.Migration{
		{
			Name: "001_audit_log.sql",
			SQL: `
CREATE TABLE IF NOT EXISTS audit_log (
  id BIGSERIAL PRIMARY KEY,
  user_id TEXT,
  action TEXT NOT NULL,
  resource_type TEXT,
  resource_id TEXT,
  ip_address TEXT,
  user_agent TEXT,
  metadata JSONB DEFAULT '{}'::jsonb,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_audit_log_user ON audit_log(user_id);
CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action);
CREATE INDEX IF NOT EXISTS idx_audit_log_created ON audit_log(created_at);
`,
		},
	}
}
