package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bufbuild/connect-go"
	"github.com/bufbuild/protovalidate-go"
	"github.com/sirupsen/logrus"
	"github.com/tierklinik-dobersberg/apis/pkg/cors"
	"github.com/tierklinik-dobersberg/apis/pkg/log"
	"github.com/tierklinik-dobersberg/apis/pkg/server"
	"github.com/tierklinik-dobersberg/apis/pkg/validator"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/automation"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/config"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/repo"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/repo/inmem"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/repo/mongo"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/services"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/services/filters"
)

func main() {
	ctx := context.Background()

	slog.Info("logfilter service starting")

	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)

		os.Exit(1)
	}

	slog.Info("configuration loaded successfully")

	protoValidator, err := protovalidate.New()
	if err != nil {
		slog.Error("failed to prepare protovalidator", "error", err)

		os.Exit(1)
	}

	interceptors := []connect.Interceptor{
		log.NewLoggingInterceptor(),
		validator.NewInterceptor(protoValidator),
	}

	if os.Getenv("DEBUG") != "" {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	corsConfig := cors.Config{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowCredentials: true,
	}

	// Prepare our servemux and add handlers.
	serveMux := http.NewServeMux()

	var backend repo.Backend

	if cfg.MongoDBURL != "" {
		var err error
		backend, err = mongo.New(ctx, cfg.MongoDBURL, cfg.MongoDatabaseName, cfg.RepoOptions())
		if err != nil {
			logrus.Fatalf("failed to create repository: %s", err)
		}
	} else {
		logrus.Warn("MONGO_URL not set, messages and filter history are kept in memory only")

		backend = inmem.New(cfg.RepoOptions())
	}

	repo := repo.New(backend)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := repo.Close(closeCtx); err != nil {
			logrus.Errorf("failed to close repository: %s", err)
		}
	}()

	common := &services.Common{
		Config: *cfg,
	}

	filterService, err := filters.New(ctx, repo, common)
	if err != nil {
		logrus.Fatalf("failed to create filter service: %s", err)
	}

	path, handler := filters.NewHandler(filterService, connect.WithInterceptors(interceptors...))
	serveMux.Handle(path, handler)

	if cfg.AutomationScript != "" {
		engine, err := startAutomation(ctx, cfg, repo)
		if err != nil {
			logrus.Fatalf("failed to start automation: %s", err)
		}
		defer engine.Wait()
	}

	loggingHandler := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logrus.Infof("received request: %s %s %s%s", r.Proto, r.Method, r.Host, r.URL.String())

			next.ServeHTTP(w, r)
		})
	}

	// Create the server
	srv, err := server.CreateWithOptions(cfg.ListenAddress, loggingHandler(serveMux), server.WithCORS(corsConfig))
	if err != nil {
		logrus.Fatalf("failed to setup server: %s", err)
	}

	adminServer, err := server.CreateWithOptions(cfg.AdminListenAddress, loggingHandler(serveMux), server.WithCORS(corsConfig))
	if err != nil {
		logrus.Fatalf("failed to setup server: %s", err)
	}

	logrus.Infof("HTTP/2 server (h2c) prepared successfully, starting to listen ...")

	if err := server.Serve(ctx, srv, adminServer); err != nil {
		logrus.Fatalf("failed to serve: %s", err)
	}
}

// startAutomation loads the automation script and runs its scheduled
// callback in the background.
func startAutomation(ctx context.Context, cfg *config.Config, repo repo.Repo) (*automation.Engine, error) {
	script, err := os.ReadFile(cfg.AutomationScript)
	if err != nil {
		return nil, err
	}

	engine, err := automation.New(string(script), automation.Providers{
		Repo:    repo,
		Options: cfg.MatchOptions(),
		FS:      os.DirFS(filepath.Dir(cfg.AutomationScript)),
	})
	if err != nil {
		return nil, err
	}

	interval, ok := engine.Interval()
	if !ok {
		interval = cfg.AutomationInterval
	}
	if interval <= 0 {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runCtx, cancel := context.WithTimeout(ctx, interval)
				if err := engine.RunSchedule(runCtx); err != nil {
					slog.Error("automation schedule failed", "error", err)
				}
				cancel()
			}
		}
	}()

	logrus.Infof("automation script %s scheduled every %s", cfg.AutomationScript, interval)

	return engine, nil
}
