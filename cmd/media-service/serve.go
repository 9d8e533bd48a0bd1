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

	"github.com/ondrasimku/media-pipeline/internal/attachment"
	"github.com/ondrasimku/media-pipeline/internal/auth"
	"github.com/ondrasimku/media-pipeline/internal/cleanup"
	"github.com/ondrasimku/media-pipeline/internal/config"
	"github.com/ondrasimku/media-pipeline/internal/database"
	httphandler "github.com/ondrasimku/media-pipeline/internal/http"
	"github.com/ondrasimku/media-pipeline/internal/log"
	"github.com/ondrasimku/media-pipeline/internal/repository"
	"github.com/ondrasimku/media-pipeline/internal/storage/local"
	"github.com/ondrasimku/media-pipeline/internal/upload"
	"github.com/ondrasimku/media-pipeline/internal/variant"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := log.NewLogger(cfg.Log.Level, cfg.Log.Format)

	db, err := database.Open(database.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
	if err != nil {
		logger.Error("Failed to open database", "driver", cfg.Database.Driver, "error", err)
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	defer sqlDB.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db, logger); err != nil {
			logger.Error("Failed to migrate database", "error", err)
			return err
		}
	}

	store, err := local.NewLocalStorage(cfg.StorageDir)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		return err
	}

	repo := repository.NewMediaRepository(db)
	tx := repository.NewTxRunner(db)

	image := upload.NewImageStrategy(store, store, variant.NewGenerator(store, variant.WithMaxPixels(cfg.Thumbnail.MaxPixels)), tx, upload.ImageOptions{
		ThumbnailHeight: cfg.Thumbnail.Height,
		ThumbnailPrefix: cfg.Thumbnail.Prefix,
	}, logger)
	document := upload.NewDocumentStrategy(store, store, repo, logger)
	manager := upload.NewManager(upload.NewDispatcher(image, document), logger)

	owners := attachment.NewOwnerRegistry()
	for ownerType, table := range cfg.OwnerTables {
		owners.Register(ownerType, attachment.NewTableLookup(db, table))
	}
	logger.Info("Owner types registered", "types", owners.Types())
	attacher := attachment.NewAttacher(attachment.NewResolver(repo, logger), owners, tx, logger)

	deleter := cleanup.NewCascadeDeleter(repo, tx, store, logger)

	var verifier *auth.Verifier
	if cfg.Auth.Enabled {
		jwks, err := auth.NewJWKSClient(ctx, cfg.Auth.JWKSUrl, cfg.Auth.JWKSCacheTTL)
		if err != nil {
			logger.Error("Failed to set up JWKS client", "url", cfg.Auth.JWKSUrl, "error", err)
			return err
		}
		verifier = auth.NewVerifier(jwks, cfg.Auth.Issuer, cfg.Auth.Audience)
	}

	router := httphandler.NewRouter(httphandler.Dependencies{
		Uploader:    manager,
		Media:       repo,
		Attacher:    attacher,
		Deleter:     deleter,
		Storage:     store,
		DB:          sqlDB,
		MaxFileSize: cfg.MaxFileSize,
		Verifier:    verifier,
	}, logger)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting media service", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		if err != nil {
			logger.Error("Server failed to start", "error", err)
			return err
		}
	}

	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		return err
	}

	logger.Info("Server exited")
	return nil
}
