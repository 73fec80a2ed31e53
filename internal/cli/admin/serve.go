package admin

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
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mentora-labs/mentora/internal/api/handlers"
	"github.com/mentora-labs/mentora/internal/config"
	"github.com/mentora-labs/mentora/internal/domain"
	"github.com/mentora-labs/mentora/internal/jobs"
	"github.com/mentora-labs/mentora/internal/openai"
	"github.com/mentora-labs/mentora/internal/repository"
	"github.com/mentora-labs/mentora/internal/server"
	"github.com/mentora-labs/mentora/internal/service"
	"github.com/mentora-labs/mentora/internal/storage"
	"github.com/mentora-labs/mentora/internal/telemetry"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat API server",
		Long:  "Start the mentora chat API server on the specified port",
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

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	chatbotRepo := repository.NewChatbotRepository(pool)
	conversationRepo := repository.NewConversationRepository(pool)
	recordRepo := repository.NewRecordRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	documentRepo := repository.NewDocumentRepository(pool)
	escalationRepo := repository.NewEscalationRepository(pool)
	quotaRepo := repository.NewQuotaRepository(pool)
	ownerRepo := repository.NewOwnerRepository(pool)

	if cfg.InitChatbotName != "" {
		if err := bootstrapInitialChatbot(ctx, cfg, chatbotRepo, quotaRepo, ownerRepo); err != nil {
			return fmt.Errorf("failed to bootstrap initial chatbot: %w", err)
		}
	}

	gate := service.NewGateService(chatbotRepo, quotaRepo, cfg.DevMode)
	conversations := service.NewConversationServiceWithConfig(conversationRepo, service.ConversationConfig{
		HistoryLimit: cfg.HistoryLimit,
		PromptWindow: cfg.PromptWindow,
	})
	structured := service.NewStructuredRetrieverWithConfig(recordRepo, service.StructuredRetrieverConfig{
		RecordLimit: cfg.RecordLimit,
	})

	var (
		extractor  service.IntentExtractor
		documents  *service.DocumentSearcher
		completion service.CompletionClient = noCompletionClient{}
	)
	if cfg.HasOpenAI() {
		client := openai.NewClientWithConfig(openai.Config{
			APIKey:          cfg.OpenAIAPIKey,
			EmbedRatePerSec: cfg.EmbedRatePerSec,
		})
		completion = client
		extractor = service.NewCompletionIntentExtractor(client, "")
		documents = service.NewDocumentSearcherWithConfig(client, chunkRepo, service.DocumentSearcherConfig{
			ChunkLimit: cfg.ChunkLimit,
		})
	} else {
		log.Println("OPENAI_API_KEY not set: answering from fallback messages only")
	}

	dispatcher := jobs.NewDispatcher(0, 0)
	go dispatcher.Start(ctx)

	engine := service.NewChatServiceWithConfig(service.ChatServiceDeps{
		Gate:          gate,
		Conversations: conversations,
		Extractor:     extractor,
		Structured:    structured,
		Documents:     documents,
		Completion:    completion,
		Escalations:   escalationRepo,
		Stats:         chatbotRepo,
		Quotas:        quotaRepo,
		Owners:        ownerRepo,
		Dispatcher:    dispatcher,
	}, service.EngineConfig{
		SimilarityFloor: cfg.SimilarityFloor,
		EscalationFloor: cfg.EscalationFloor,
	})

	routerCfg := server.RouterConfig{
		ChatHandler: handlers.NewChatHandler(engine),
	}

	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		routerCfg.DocumentHandler = handlers.NewDocumentHandler(documentRepo, s3Client)
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

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	// Drain queued side effects after the listener stops accepting work.
	dispatcher.Stop()

	log.Println("server exited")
	return nil
}

// noCompletionClient stands in when no provider key is configured; every
// synthesis attempt degrades to the chatbot's fallback message.
type noCompletionClient struct{}

func (noCompletionClient) StreamChat(ctx context.Context, req openai.ChatRequest) (openai.ChatStream, error) {
	return nil, fmt.Errorf("completion not configured: OPENAI_API_KEY required")
}

func bootstrapInitialChatbot(ctx context.Context, cfg *config.Config, chatbotRepo *repository.ChatbotRepository, quotaRepo *repository.QuotaRepository, ownerRepo *repository.OwnerRepository) error {
	existing, err := chatbotRepo.GetByPublicID(ctx, cfg.InitChatbotPublicID)
	if err != nil && err != domain.ErrChatbotNotFound {
		return fmt.Errorf("failed to check existing chatbot: %w", err)
	}
	if existing != nil {
		log.Printf("bootstrap: chatbot '%s' already exists (id: %s)", existing.Name, existing.ID)
		return nil
	}

	ownerID := uuid.NewString()
	if err := ownerRepo.Create(ctx, ownerID, cfg.InitChatbotOwner, cfg.InitChatbotOwner != ""); err != nil {
		return fmt.Errorf("failed to create owner: %w", err)
	}

	chatbot := domain.NewChatbot(uuid.NewString(), cfg.InitChatbotPublicID, ownerID, cfg.InitChatbotName, domain.IndustryEducation)
	if err := chatbotRepo.Create(ctx, chatbot); err != nil {
		return fmt.Errorf("failed to create chatbot: %w", err)
	}

	if err := quotaRepo.Create(ctx, &domain.UsageQuota{
		OwnerID: ownerID,
		Ceiling: domain.UnlimitedQuota,
	}); err != nil {
		return fmt.Errorf("failed to create quota: %w", err)
	}

	log.Printf("bootstrap: created chatbot '%s' (public id: %s)", chatbot.Name, chatbot.PublicID)
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
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
