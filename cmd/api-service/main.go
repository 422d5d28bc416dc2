package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/Moudathirou/meetscribe/internal/api/handler"
	"github.com/Moudathirou/meetscribe/internal/api/router"
	"github.com/Moudathirou/meetscribe/internal/config"
	"github.com/Moudathirou/meetscribe/internal/events"
	"github.com/Moudathirou/meetscribe/internal/executor"
	"github.com/Moudathirou/meetscribe/internal/mailer"
	"github.com/Moudathirou/meetscribe/internal/media"
	"github.com/Moudathirou/meetscribe/internal/orchestrator"
	"github.com/Moudathirou/meetscribe/internal/provider/gemini"
	"github.com/Moudathirou/meetscribe/internal/provider/groq"
	"github.com/Moudathirou/meetscribe/internal/quota"
	"github.com/Moudathirou/meetscribe/internal/registry"
	"github.com/Moudathirou/meetscribe/internal/user"
	"github.com/Moudathirou/meetscribe/shared/logger"
	"github.com/Moudathirou/meetscribe/shared/postgresql"
	"github.com/Moudathirou/meetscribe/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	staticKey := os.Getenv("STATIC_KEY")
	if staticKey == "" {
		return fmt.Errorf("STATIC_KEY environment variable is required")
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Initialize PostgreSQL client
	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	users := user.NewStorage(dbClient)
	if err := users.EnsureSchema(context.Background()); err != nil {
		dbClient.Close()
		return err
	}

	// Initialize the optional RabbitMQ lifecycle-event publisher
	var rabbitClient *rabbitmq.Client
	var publisher events.Publisher
	if cfg.RabbitMQ.Enabled {
		rabbitClient, err = initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
		if err != nil {
			dbClient.Close()
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		publisher = events.NewAMQPPublisher(rabbitClient, appLogger.Logger)

		appLogger.Info("RabbitMQ connection established")
	}

	// Initialize the upload intake store and audio extractor
	intake, err := media.NewStore(&media.Config{
		Dir:               cfg.Upload.Dir,
		MaxBytes:          cfg.Upload.MaxBytes,
		AllowedExtensions: cfg.Upload.AllowedExtensions,
		Logger:            appLogger.Logger,
	})
	if err != nil {
		dbClient.Close()
		return fmt.Errorf("failed to initialize upload store: %w", err)
	}

	extractor := media.NewExtractor(cfg.Upload.FFmpegPath, appLogger.Logger)

	// Initialize the transcription and summarization providers
	transcriber, err := groq.NewClient(&groq.Config{
		APIKey:  os.Getenv("GROQ_API_KEY"),
		BaseURL: cfg.Providers.Groq.BaseURL,
		Model:   cfg.Providers.Groq.Model,
		Timeout: cfg.Providers.Groq.Timeout,
		Logger:  appLogger.Logger,
	})
	if err != nil {
		dbClient.Close()
		return fmt.Errorf("failed to initialize transcription provider: %w", err)
	}

	summarizer, err := gemini.NewSummarizer(context.Background(), &gemini.Config{
		APIKey: os.Getenv("GEMINI_API_KEY"),
		Model:  cfg.Providers.Gemini.Model,
		Logger: appLogger.Logger,
	})
	if err != nil {
		dbClient.Close()
		return fmt.Errorf("failed to initialize summarization provider: %w", err)
	}

	// Quota ledger, job registry and executor pool
	ledger := quota.NewLedger(&quota.Config{
		Limit:  cfg.Quota.DailyLimit,
		Window: cfg.Quota.Window,
		Store:  users,
		Logger: appLogger.Logger,
	})

	jobs := registry.New()

	pool := executor.NewPool(&executor.Config{
		Workers: cfg.Executor.Workers,
		Logger:  appLogger.Logger,
	})

	poolCtx, cancelPool := context.WithCancel(context.Background())
	pool.Start(poolCtx)

	orch := orchestrator.New(&orchestrator.Config{
		Ledger:      ledger,
		Registry:    jobs,
		Pool:        pool,
		Transcriber: transcriber,
		Summarizer:  summarizer,
		Intake:      intake,
		Extractor:   extractor,
		Events:      publisher,
		Logger:      appLogger.Logger,
	})

	mail := mailer.New(&mailer.Config{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: os.Getenv("MAIL_USERNAME"),
		Password: os.Getenv("MAIL_PASSWORD"),
		Sender:   cfg.Mail.Sender,
		Logger:   appLogger.Logger,
	})

	// Initialize router
	r := initRouter(cfg.App.Environment, appLogger.Logger, staticKey, users, orch, mail, dbClient)

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed to start",
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}()

	appLogger.Info("API service is running",
		slog.String("address", addr),
	)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)

	// Cleanup function to close all resources. The pool drains its queue
	// before the clients go away, whether or not Shutdown succeeded.
	cleanup := func() {
		cancel()
		pool.Stop()
		cancelPool()
		if dbClient != nil {
			dbClient.Close()
		}
		if rabbitClient != nil {
			rabbitClient.Close()
		}
	}
	defer cleanup()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		VHost:           cfg.VHost,
		ExchangeName:    cfg.Exchange,
		ExchangeType:    cfg.ExchangeType,
		ExchangeDurable: true,
		QueueName:       cfg.Queue,
		QueueDurable:    true,
		RoutingKey:      cfg.RoutingKey,
		RetryAttempts:   cfg.RetryAttempts,
		RetryInterval:   cfg.RetryInterval,
		Heartbeat:       cfg.Heartbeat,

		PublishRetries:     cfg.PublishRetries,
		PublishRetryDelay:  cfg.PublishRetryDelay,
		PublishBackoffMult: cfg.PublishBackoffMult,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(environment string, logger *slog.Logger, staticKey string, users *user.Storage, orch *orchestrator.Orchestrator, mail *mailer.Mailer, dbClient *postgresql.Client) *gin.Engine {
	// Set Gin mode based on environment
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize handler dependencies
	h := handler.New(&handler.Dependencies{
		Logger:       logger,
		Orchestrator: orch,
		Mailer:       mail,
	})

	// Setup router
	return router.Setup(&router.Config{
		Logger:    logger,
		StaticKey: staticKey,
		Users:     users,
		Handler:   h,
		Database:  dbClient,
	})
}
