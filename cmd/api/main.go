package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/claimdesk/incident-api/internal/application"
	appadmin "github.com/claimdesk/incident-api/internal/application/admin"
	appanalysis "github.com/claimdesk/incident-api/internal/application/analysis"
	appcompanies "github.com/claimdesk/incident-api/internal/application/companies"
	appreports "github.com/claimdesk/incident-api/internal/application/reports"
	"github.com/claimdesk/incident-api/internal/config"
	"github.com/claimdesk/incident-api/internal/domain/companies"
	"github.com/claimdesk/incident-api/internal/domain/detection"
	"github.com/claimdesk/incident-api/internal/domain/identity"
	"github.com/claimdesk/incident-api/internal/domain/reports"
	"github.com/claimdesk/incident-api/internal/domain/workererrors"
	aiopenai "github.com/claimdesk/incident-api/internal/infra/ai/openai"
	mysqlp "github.com/claimdesk/incident-api/internal/infra/db/mysql"
	postgresp "github.com/claimdesk/incident-api/internal/infra/db/postgres"
	"github.com/claimdesk/incident-api/internal/infra/detection/httpclient"
	"github.com/claimdesk/incident-api/internal/infra/httpserver"
	minioStore "github.com/claimdesk/incident-api/internal/infra/storage"
	"github.com/claimdesk/incident-api/internal/middleware"
)

type repositories struct {
	companies companies.Repository
	reports   reports.Repository
	directory identity.Directory
	failures  workererrors.Repository
}

func openRepositories(ctx context.Context, cfg *config.Config) (*sql.DB, *repositories, error) {
	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, err
		}
		return db, &repositories{
			companies: postgresp.NewCompanyRepository(db),
			reports:   postgresp.NewReportRepository(db),
			directory: postgresp.NewDirectoryStore(db),
			failures:  postgresp.NewWorkerErrorRepository(db),
		}, nil
	default:
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, nil, err
		}
		return db, &repositories{
			companies: mysqlp.NewCompanyRepository(db),
			reports:   mysqlp.NewReportRepository(db),
			directory: mysqlp.NewDirectoryStore(db),
			failures:  mysqlp.NewWorkerErrorRepository(db),
		}, nil
	}
}

func main() {
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	db, repos, err := openRepositories(ctx, cfg)
	if err != nil {
		log.Fatalf("database connect error (%s): %v", cfg.Database.Driver, err)
	}
	defer db.Close()

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

	detector := httpclient.NewClient(cfg.Detection.Endpoint, cfg.Detection.APIKey)

	var summarizer detection.Summarizer
	if cfg.OpenAI.APIKey != "" {
		summarizer = aiopenai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	} else {
		log.Printf("openai api key not set; analysis summaries disabled")
	}

	clock := application.SystemClock{}
	adminSvc := &appadmin.Service{Dir: repos.directory}
	companySvc := &appcompanies.Service{Repo: repos.companies, Clock: clock}
	reportSvc := &appreports.Service{Repo: repos.reports, Photos: store, Clock: clock}
	analysisSvc := &appanalysis.Service{
		Reports:    repos.reports,
		Detector:   detector,
		Photos:     store,
		Failures:   repos.failures,
		Summarizer: summarizer,
		Clock:      clock,
	}

	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins(cfg),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(middleware.JWTAuth([]byte(cfg.Auth.JWTSecret)))
	// after auth so the limiter can key on the caller's company
	mux.Use(middleware.RateLimitMiddleware(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate))

	mux.Get("/health", middleware.HealthHandler(map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
		"storage":  &middleware.StorageHealthChecker{Pinger: store},
	}))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Handle("/metrics", middleware.MetricsHandler())

	mux.Mount("/", httpserver.NewRouter(adminSvc, companySvc, reportSvc, analysisSvc, repos.failures))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s driver=%s", addr, cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func corsOrigins(cfg *config.Config) []string {
	if len(cfg.Server.CORSOrigins) > 0 {
		return cfg.Server.CORSOrigins
	}
	return []string{"*"}
}
