package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/arkananta/data-analyst-agent/internal/application"
	appanalysis "github.com/arkananta/data-analyst-agent/internal/application/analysis"
	"github.com/arkananta/data-analyst-agent/internal/config"
	domain "github.com/arkananta/data-analyst-agent/internal/domain/analysis"
	"github.com/arkananta/data-analyst-agent/internal/infra/ai/openai"
	"github.com/arkananta/data-analyst-agent/internal/infra/ai/prompt"
	mongodb "github.com/arkananta/data-analyst-agent/internal/infra/db/mongo"
	mysqlp "github.com/arkananta/data-analyst-agent/internal/infra/db/mysql"
	postgresp "github.com/arkananta/data-analyst-agent/internal/infra/db/postgres"
	dockerrunner "github.com/arkananta/data-analyst-agent/internal/infra/executor/docker"
	"github.com/arkananta/data-analyst-agent/internal/infra/files"
	"github.com/arkananta/data-analyst-agent/internal/infra/httpserver"
	"github.com/arkananta/data-analyst-agent/internal/infra/normalize"
	minioStore "github.com/arkananta/data-analyst-agent/internal/infra/storage"
	"github.com/arkananta/data-analyst-agent/internal/middleware"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// connect audit store sesuai driver
	repo, checkers, closeDB, err := connectRepository(ctx, cfg)
	if err != nil {
		log.Fatalf("database connect error: %v", err)
	}
	defer closeDB()

	// init minio (optional; analysis jalan terus tanpa artifact store)
	var artifacts domain.ArtifactStore
	if cfg.Minio.Endpoint != "" {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Fatalf("minio init error: %v", err)
		}
		artifacts = store
	}

	// init sandbox runner
	runner := dockerrunner.NewRunner(
		cfg.Sandbox.Image,
		cfg.Sandbox.BaseDir,
		cfg.Sandbox.Memory,
		cfg.Sandbox.CPUs,
		cfg.Sandbox.PidsLimit,
		log,
	)
	checkers["sandbox"] = &middleware.SandboxHealthChecker{}

	// init service
	svc := &appanalysis.Service{
		Repo:       repo,
		Context:    files.NewBuilder(),
		Prompts:    prompt.NewAssembler(),
		Generator:  openai.NewClient(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model),
		Sandbox:    runner,
		Normalizer: normalize.NewNormalizer(),
		Artifacts:  artifacts,
		Clock:      application.SystemClock{},
		Budgets: appanalysis.Budgets{
			Overall:              cfg.OverallDeadline(),
			Generation:           cfg.GenerationTimeout(),
			Execution:            cfg.ExecutionTimeout(),
			Slack:                cfg.Slack(),
			MaxGenerationRetries: cfg.Analysis.MaxGenerationRetries,
			MaxCycles:            cfg.Analysis.MaxCycles,
		},
		Log: log,
	}

	// init router + middleware chain
	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	mux.Use(middleware.LoggingMiddleware(log))
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(middleware.APIKeyAuth(cfg.Auth.APIKeys))
	mux.Use(middleware.RateLimitMiddleware(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSecond))
	mux.Mount("/", httpserver.NewRouter(svc, checkers))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
		// Analyze dapat memakan waktu sampai overall deadline
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.OverallDeadline() + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Infof("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Errorf("shutdown error: %v", err)
	}
}

// connectRepository picks the audit store from config.Database.Driver.
func connectRepository(ctx context.Context, cfg *config.Config) (domain.Repository, map[string]middleware.HealthChecker, func(), error) {
	checkers := make(map[string]middleware.HealthChecker)

	switch cfg.Database.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, nil, nil, err
		}
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
		return mysqlp.NewAuditRepository(db), checkers, func() { db.Close() }, nil

	case "postgres":
		db, err := postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, nil, err
		}
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
		return postgresp.NewAuditRepository(db), checkers, func() { db.Close() }, nil

	case "mongo":
		client, err := mongodb.Connect(ctx, cfg.Database.URI)
		if err != nil {
			return nil, nil, nil, err
		}
		checkers["database"] = &middleware.MongoHealthChecker{Client: client}
		closeFn := func() {
			cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			client.Disconnect(cctx)
		}
		return mongodb.NewAuditRepository(client, cfg.Database.Name), checkers, closeFn, nil

	default:
		return nil, nil, nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
}
