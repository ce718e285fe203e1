package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/KrzysztofLuczakDev/crypto-list-watch/internal/coinlore"
	"github.com/KrzysztofLuczakDev/crypto-list-watch/internal/currency"
	"github.com/KrzysztofLuczakDev/crypto-list-watch/internal/infra"
	"github.com/KrzysztofLuczakDev/crypto-list-watch/internal/store"
	"github.com/KrzysztofLuczakDev/crypto-list-watch/internal/watchlist"
)

func main() {
	// .env is optional; real env vars win either way.
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		slog.Error("❌ Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	workDir := infra.GetWorkspaceDir()
	if err := infra.EnsureDir(workDir); err != nil {
		slog.Error("❌ Failed to create workspace dir", slog.String("dir", workDir), slog.Any("error", err))
		os.Exit(1)
	}
	unlock, err := infra.CreateLockFile(workDir)
	if err != nil {
		slog.Error("❌ Another instance is running", slog.Any("error", err))
		os.Exit(1)
	}
	defer unlock()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Preference storage: fall back to an in-memory store rather than
	// refusing to start if the database cannot be opened.
	var kv store.KV
	sqliteKV, err := store.OpenSQLiteKV(filepath.Join(workDir, "preferences.db"))
	if err != nil {
		slog.Warn("Preferences database unavailable, using memory store", slog.Any("error", err))
		kv = store.NewMemoryKV()
	} else {
		defer sqliteKV.Close()
		kv = sqliteKV
	}
	favorites := store.NewFavoritesStore(kv, logger)
	settings := store.NewSettingsStore(kv, logger)

	monitor := infra.NewNetworkMonitor()
	go monitor.Watch(ctx, infra.DialProbe("api.coinlore.net:443", 5*time.Second), 30*time.Second)
	monitor.OnChange(func(reachable bool) {
		slog.Info("Network reachability changed", slog.Bool("reachable", reachable))
	})

	cache := infra.NewResponseCache(cfg.Cache.MaxEntries, cfg.Cache.MaxBytes)
	limiter := infra.NewRateLimiter(cfg.API.CoinLore.RequestsPerMinute, time.Minute)

	client := coinlore.New(coinlore.Config{
		BaseURL:           cfg.API.CoinLore.BaseURL,
		UserAgent:         cfg.API.CoinLore.UserAgent,
		MaxRetries:        cfg.API.CoinLore.MaxRetries,
		RequestTimeout:    cfg.RequestTimeout(),
		ResourceTimeout:   cfg.ResourceTimeout(),
		FavoritesScanSize: cfg.List.FavoritesScanSize,
		MaxSearchResults:  cfg.List.MaxSearchResults,
	}, cache, limiter, monitor)

	converter := currency.NewConverter(currency.Config{
		PrimaryURL:  cfg.API.ExchangeRate.PrimaryURL,
		FallbackURL: cfg.API.ExchangeRate.FallbackURL,
	}, logger)

	controller := watchlist.New(client, converter, favorites, settings, watchlist.Config{
		ItemsPerPage:   cfg.List.ItemsPerPage,
		SearchDebounce: cfg.SearchDebounce(),
		SearchMinLen:   cfg.List.MinSearchQueryLen,
	}, logger)

	controller.Subscribe(func(snap watchlist.Snapshot) {
		attrs := []any{
			slog.Int("coins", len(snap.Coins)),
			slog.Int("favorites", len(snap.Favorites)),
			slog.Bool("loading", snap.IsLoading || snap.IsLoadingMore),
			slog.Bool("has_more", snap.HasMore),
		}
		if snap.Err != nil {
			attrs = append(attrs, slog.String("error", snap.Err.Error()))
		}
		slog.Debug("State changed", attrs...)
	})

	controller.Start(ctx)
	if err := controller.LoadTop(ctx); err != nil {
		slog.Warn("Initial market load failed", slog.Any("error", err))
	}
	if err := controller.LoadFavorites(ctx); err != nil {
		slog.Warn("Initial favorites load failed", slog.Any("error", err))
	}

	slog.InfoContext(ctx, "✅ Watchlist running",
		slog.String("version", cfg.App.Version),
		slog.String("currency", string(settings.Currency())),
		slog.String("refresh", string(settings.RefreshInterval())))

	<-ctx.Done()
	slog.Info("Shutting down")
	controller.Wait()
}
