// dropit metadata server
//
// HTTP API for a personal cloud-storage app: file/folder metadata in
// PostgreSQL, bytes in S3-compatible object storage, signed direct-upload
// credentials, Prometheus metrics and structured logging (zap).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dropit/dropit/internal/api"
	"github.com/dropit/dropit/internal/auth"
	"github.com/dropit/dropit/internal/config"
	"github.com/dropit/dropit/internal/logging"
	"github.com/dropit/dropit/internal/metadata/postgres"
	"github.com/dropit/dropit/internal/metrics"
	s3storage "github.com/dropit/dropit/internal/storage/s3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("dropit server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logging.Info("connecting to PostgreSQL...")
	metaStore, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		logging.Fatal("database connection failed", zap.Error(err))
	}
	defer metaStore.Close()

	if dir := findMigrationsDir(); dir != "" {
		logging.Info("running migrations...", zap.String("dir", dir))
		if err := metaStore.Migrate(dir); err != nil {
			logging.Fatal("migration failed", zap.Error(err))
		}
	}

	provider, err := s3storage.New(ctx, s3storage.Config{
		Endpoint:      cfg.S3Endpoint,
		Bucket:        cfg.S3Bucket,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		Region:        cfg.S3Region,
		UseSSL:        cfg.S3UseSSL,
		PublicBaseURL: cfg.PublicBaseURL,
	})
	if err != nil {
		logging.Fatal("storage backend init failed", zap.Error(err))
	}

	authHandler := auth.New(cfg.JWTSecret)
	if cfg.OIDCIssuerURL != "" {
		verifier, err := auth.NewOIDCVerifier(ctx, auth.OIDCConfig{
			IssuerURL: cfg.OIDCIssuerURL,
			ClientID:  cfg.OIDCClientID,
		})
		if err != nil {
			logging.Fatal("OIDC verifier init failed", zap.Error(err))
		}
		if verifier != nil {
			authHandler.SetOIDCVerifier(verifier)
		}
	}

	srv := api.NewServer(metaStore, provider, authHandler, cfg)

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()
		httpServer.Close()
		metricsServer.Close()
	}()

	// Periodic connection-pool metrics
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metaStore.UpdateConnectionMetrics()
			}
		}
	}()

	logging.Info("server listening", zap.String("addr", cfg.ListenAddr))
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("server error", zap.Error(err))
	}
}

func findMigrationsDir() string {
	candidates := []string{
		"migrations",
		"../migrations",
	}

	exe, _ := os.Executable()
	if exe != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "migrations"))
	}

	for _, dir := range candidates {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return ""
}
