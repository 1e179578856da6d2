package cli

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

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/noesis-ai/noesis/internal/api/handlers"
	"github.com/noesis-ai/noesis/internal/config"
	"github.com/noesis-ai/noesis/internal/database"
	"github.com/noesis-ai/noesis/internal/domain"
	"github.com/noesis-ai/noesis/internal/jobs"
	"github.com/noesis-ai/noesis/internal/provider"
	"github.com/noesis-ai/noesis/internal/repository"
	"github.com/noesis-ai/noesis/internal/server"
	"github.com/noesis-ai/noesis/internal/service"
	"github.com/noesis-ai/noesis/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the noesis knowledge engine API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	knowledgeRepo := repository.NewKnowledgeRepository(pool)
	categoryRepo := repository.NewCategoryRepository(pool)
	promotionRepo := repository.NewPromotionRepository(pool)
	queryLogRepo := repository.NewQueryLogRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)
	reembedJobRepo := repository.NewReembedJobRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	uuidGen := &service.DefaultUUIDGenerator{}
	authSvc := service.NewAuthService(apiKeyRepo, uuidGen)

	knowledgeSvc := service.NewKnowledgeService(knowledgeRepo, categoryRepo)

	if cfg.InitOrgID != "" {
		if err := knowledgeSvc.SeedSystemCategories(ctx, cfg.InitOrgID); err != nil {
			return fmt.Errorf("failed to seed system categories: %w", err)
		}
		if cfg.InitAPIKey != "" {
			if err := bootstrapInitialKey(ctx, cfg, authSvc); err != nil {
				return fmt.Errorf("failed to bootstrap initial API key: %w", err)
			}
		}
	}

	embedder, completer, err := buildProviders(cfg)
	if err != nil {
		return err
	}
	log.Printf("embedding provider: %s (%s, %d dims)", cfg.EmbeddingProvider, embedder.ModelName(), embedder.Dimensions())

	ingestSvc, err := service.NewIngestService(txRunner, knowledgeRepo, categoryRepo, embedder, uuidGen, cfg.IngestWorkers)
	if err != nil {
		return fmt.Errorf("failed to create ingest service: %w", err)
	}
	defer ingestSvc.Release()

	validationSvc := service.NewValidationService(knowledgeRepo)
	promotionSvc := service.NewPromotionService(txRunner, knowledgeRepo, promotionRepo, embedder, uuidGen)
	querySvc := service.NewQueryService(knowledgeRepo, queryLogRepo, embedder, completer, ingestSvc, uuidGen, cfg.MinSimilarity)
	reembedSvc := service.NewReembedService(knowledgeRepo, reembedJobRepo, uuidGen, cfg.ReembedBatchSize)
	healthSvc := service.NewHealthService(knowledgeRepo, queryLogRepo, cfg.EmbeddingProvider, embedder, cfg.StaleValidationAge)

	staleProcessor := jobs.NewStaleValidationProcessor(validationSvc, cfg.StaleValidationAge, 100)
	staleWorker := jobs.NewWorker(staleProcessor, cfg.StalePollInterval)
	go staleWorker.Start(ctx)

	var reembedWorker *jobs.Worker
	if cfg.ReembedWorkerEnabled {
		reembedProcessor := jobs.NewReembedProcessor(reembedSvc, cfg.EmbeddingProvider, embedder)
		reembedWorker = jobs.NewWorker(reembedProcessor, cfg.ReembedPollInterval)
		go reembedWorker.Start(ctx)
		log.Println("reembed worker started")
	}

	routerCfg := server.RouterConfig{
		Authenticator:    authSvc,
		QueryHandler:     handlers.NewQueryHandler(querySvc),
		IngestHandler:    handlers.NewIngestHandler(ingestSvc),
		KnowledgeHandler: handlers.NewKnowledgeHandler(knowledgeSvc, validationSvc, promotionSvc),
		CategoryHandler:  handlers.NewCategoryHandler(knowledgeSvc),
		HealthHandler:    handlers.NewHealthHandler(healthSvc),
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	staleWorker.Stop()
	if reembedWorker != nil {
		reembedWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// buildProviders registers the configured backends and resolves the active
// embedding and completion providers by name.
func buildProviders(cfg *config.Config) (provider.EmbeddingProvider, provider.CompletionProvider, error) {
	registry := provider.NewRegistry()

	if cfg.HasOpenAI() {
		p := provider.NewOpenAI(provider.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
		})
		registry.RegisterEmbedding(provider.Name, p)
		registry.RegisterCompletion(provider.Name, p)
	}

	embedder, err := registry.Embedding(cfg.EmbeddingProvider)
	if err != nil {
		return nil, nil, fmt.Errorf("embedding provider %q not available (is NOESIS_OPENAI_API_KEY set?): %w", cfg.EmbeddingProvider, err)
	}
	completer, err := registry.Completion(cfg.EmbeddingProvider)
	if err != nil {
		return nil, nil, err
	}
	return embedder, completer, nil
}

func bootstrapInitialKey(ctx context.Context, cfg *config.Config, authSvc *service.AuthService) error {
	if !service.IsValidAPIToken(cfg.InitAPIKey) {
		return fmt.Errorf("invalid NOESIS_INIT_API_KEY format (expected 'nss_<64 hex chars>')")
	}

	existing, err := authSvc.GetAPIKeyByHash(ctx, cfg.InitAPIKey)
	if err == nil && existing != nil {
		log.Printf("bootstrap: API key already exists (id: %s)", existing.ID)
		return nil
	}

	if err := authSvc.CreateAPIKeyWithToken(ctx, cfg.InitOrgID, "bootstrap", cfg.InitAPIKey, domain.RoleAdmin); err != nil {
		return fmt.Errorf("failed to create API key: %w", err)
	}
	log.Printf("bootstrap: created admin API key for organization %s", cfg.InitOrgID)
	return nil
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else {
		log.Printf("migrations: database at version %d", version)
	}

	return nil
}
