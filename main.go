package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/msomdec/ebookshelf/internal/config"
	"github.com/msomdec/ebookshelf/internal/cover"
	"github.com/msomdec/ebookshelf/internal/domain"
	"github.com/msomdec/ebookshelf/internal/handler"
	"github.com/msomdec/ebookshelf/internal/repository/diskstore"
	"github.com/msomdec/ebookshelf/internal/repository/jsonfile"
	"github.com/msomdec/ebookshelf/internal/service"
	"github.com/msomdec/ebookshelf/internal/watcher"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logOpts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	logger := slog.New(slog.NewMultiHandler(
		slog.NewTextHandler(os.Stdout, logOpts),
		slog.NewJSONHandler(os.Stderr, logOpts),
	))
	slog.SetDefault(logger)

	if info, err := os.Stat(cfg.BooksDir); err != nil || !info.IsDir() {
		slog.Error("books directory is not accessible", "path", cfg.BooksDir, "error", err)
		os.Exit(1)
	}

	store, err := jsonfile.Open(cfg.UsersFile)
	if err != nil {
		slog.Error("failed to open user store", "error", err)
		os.Exit(1)
	}
	slog.Info("user store ready", "path", store.Path())

	authService := service.NewAuthService(jsonfile.NewUserRepository(store), cfg.Auth.JWTSecret, cfg.Auth.BcryptCost)

	libraryService, err := service.NewLibraryService(cfg.BooksDir, cfg.PublicURL)
	if err != nil {
		slog.Error("failed to open library", "error", err)
		os.Exit(1)
	}

	placeholder, err := cover.Placeholder(cfg.Covers.PlaceholderPath)
	if err != nil {
		slog.Error("failed to load cover placeholder", "error", err)
		os.Exit(1)
	}
	var coverCache domain.FileStore
	if cfg.Covers.CacheDir != "" {
		cache, err := diskstore.New(cfg.Covers.CacheDir)
		if err != nil {
			slog.Error("failed to open cover cache", "error", err)
			os.Exit(1)
		}
		slog.Info("cover cache enabled", "path", cache.Dir())
		coverCache = cache
	}
	extractor := cover.NewExtractor(cover.Options{DPI: cfg.Covers.DPI, MaxEdge: cfg.Covers.MaxEdge})
	coverService, err := service.NewCoverService(cfg.BooksDir, extractor, coverCache, placeholder)
	if err != nil {
		slog.Error("failed to create cover service", "error", err)
		os.Exit(1)
	}

	loginLimiter := service.NewTokenBucket(cfg.Auth.LoginRate, cfg.Auth.LoginBurst)
	defer loginLimiter.Close()

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, handler.Options{
		Auth:           authService,
		Library:        libraryService,
		Covers:         coverService,
		LoginLimiter:   loginLimiter,
		CookieSecure:   cfg.Auth.CookieSecure,
		MaxUploadBytes: cfg.MaxUploadBytes,
		WebDAV:         cfg.WebDAVEnabled,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.SecurityHeaders(handler.RequestLogger(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.WatchEnabled {
		startWatcher(ctx, libraryService.Root())
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "books", libraryService.Root())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// startWatcher logs library changes until ctx is cancelled. A watcher that
// cannot start only costs the log lines.
func startWatcher(ctx context.Context, root string) {
	w, err := watcher.New(root, 256)
	if err != nil {
		slog.Warn("directory watcher disabled", "error", err)
		return
	}
	events := w.Subscribe()
	go func() {
		if err := w.Run(ctx); err != nil {
			slog.Warn("directory watcher stopped", "error", err)
		}
	}()
	go func() {
		for ev := range events {
			slog.Info("library changed", "path", ev.Path, "op", ev.Op.String())
		}
	}()
	slog.Info("directory watcher started", "root", root)
}
