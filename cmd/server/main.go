package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inamate/tokamak/internal/analysis"
	"github.com/inamate/tokamak/internal/api"
	"github.com/inamate/tokamak/internal/asset"
	"github.com/inamate/tokamak/internal/auth"
	"github.com/inamate/tokamak/internal/cache"
	"github.com/inamate/tokamak/internal/collab"
	"github.com/inamate/tokamak/internal/config"
	"github.com/inamate/tokamak/internal/db"
	"github.com/inamate/tokamak/internal/design"
	"github.com/inamate/tokamak/internal/engine"
	mw "github.com/inamate/tokamak/internal/middleware"
	"github.com/inamate/tokamak/internal/record"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cwd, err := os.Getwd()
	if err != nil {
		slog.Error("get working directory", "error", err)
		os.Exit(1)
	}

	var storeOpts []design.Option
	if cfg.RandomSeed != 0 {
		storeOpts = append(storeOpts, design.WithSeed(cfg.RandomSeed))
	}
	store := design.NewStore(storeOpts...)

	records, closeRecords, err := openRecords(ctx, cfg)
	if err != nil {
		slog.Error("open record store", "backend", cfg.RecordBackend, "error", err)
		os.Exit(1)
	}
	defer closeRecords()

	var lockCache cache.Cache = cache.NewMemory()
	if cfg.RedisURL != "" {
		rdb, err := cache.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("connect to redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		lockCache = cache.NewRedis(rdb, "")
	}

	runner := analysis.NewRunner(analysis.Config{
		Command:       cfg.AnalysisCommand,
		ProjectRoot:   analysis.ResolveProjectRoot(cwd, cfg.ProjectDirName),
		Notebook:      cfg.Notebook,
		ResultsSubdir: cfg.ResultsSubdir,
	})
	results := asset.NewHandler(runner.ResultsDir(), "/results/")

	eng := engine.New(store, engine.Config{
		SafetyMargin: cfg.SafetyMargin,
		VesselWall:   cfg.VesselWall,
		Records:      records,
		RecordsDir:   cfg.RecordsDir,
		Cache:        lockCache,
		Runner:       runner,
		Results:      results,
	})

	authService := auth.NewService(cfg.OperatorPasswordHash, cfg.JWTSecret)
	authHandler := auth.NewHandler(authService)
	if !authService.Enabled() {
		slog.Warn("OPERATOR_PASSWORD_HASH not set, operator routes are open")
	}

	hub := collab.NewHub(eng)
	eng.OnChange(hub.BroadcastDesign)
	hubCtx, stopHub := context.WithCancel(ctx)
	go hub.Run(hubCtx)

	origins := mw.SplitOrigins(cfg.AllowedOrigins)

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	r.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	// Pipeline images, regenerated on every run
	r.PathPrefix("/results/").Handler(results.Serve()).Methods("GET")

	api.NewHandler(eng).Routes(r.PathPrefix("/api").Subrouter(), authService.Middleware)

	r.Handle("/ws/design", collab.NewHandler(hub, authService, origins))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mw.CORS(origins)(r), // preflights never match a mux route
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")
		stopHub()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting",
		"addr", addr,
		"records", cfg.RecordsDir,
		"backend", cfg.RecordBackend,
		"projectRoot", runner.ProjectRoot(),
		"results", runner.ResultsDir(),
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// openRecords builds the record store for cfg: JSON files in RecordsDir,
// mirrored into SQLite or Postgres when a backend is selected.
func openRecords(ctx context.Context, cfg *config.Config) (record.Store, func(), error) {
	files := record.NewFileStore(cfg.RecordsDir)

	switch cfg.RecordBackend {
	case config.BackendSQLite:
		sqlDB, err := record.OpenSQLite(filepath.Clean(cfg.SQLitePath))
		if err != nil {
			return nil, nil, err
		}
		idx, err := record.NewSQLiteStore(ctx, sqlDB)
		if err != nil {
			sqlDB.Close()
			return nil, nil, err
		}
		return record.NewMulti(files, idx), closer(sqlDB), nil

	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		idx, err := record.NewPostgresStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return record.NewMulti(files, idx), poolCloser(pool), nil
	}
	return files, func() {}, nil
}

func closer(sqlDB *sql.DB) func() {
	return func() {
		if err := sqlDB.Close(); err != nil {
			slog.Warn("close sqlite", "error", err)
		}
	}
}

func poolCloser(pool *pgxpool.Pool) func() { return pool.Close }
