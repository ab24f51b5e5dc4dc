package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/domyjob/domyjob/internal/ai"
	"github.com/domyjob/domyjob/internal/auth"
	"github.com/domyjob/domyjob/internal/blob"
	"github.com/domyjob/domyjob/internal/config"
	"github.com/domyjob/domyjob/internal/contextdoc"
	"github.com/domyjob/domyjob/internal/database"
	"github.com/domyjob/domyjob/internal/emailsync"
	"github.com/domyjob/domyjob/internal/mailer"
	"github.com/domyjob/domyjob/internal/ratelimit"
	"github.com/domyjob/domyjob/internal/store/postgres"
	"github.com/domyjob/domyjob/internal/vault"
	"github.com/domyjob/domyjob/internal/web"
	"github.com/domyjob/domyjob/internal/web/handlers"
	"github.com/domyjob/domyjob/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Database
	db, err := postgres.NewDB(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Migrations
	if err := database.RunMigrations(migrations.FS, cfg.DatabaseURL); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Stores
	userStore := postgres.NewUserStore(db)
	sessionStore := postgres.NewSessionStore(db)
	settingsStore := postgres.NewEmailSettingsStore(db)
	emailStore := postgres.NewEmailStore(db)
	responseStore := postgres.NewEmailResponseStore(db)
	contextStore := postgres.NewContextStore(db)
	taskStore := postgres.NewTaskStore(db)
	conversationStore := postgres.NewConversationStore(db)
	chatMessageStore := postgres.NewChatMessageStore(db)
	learningStore := postgres.NewLearningProgressStore(db)

	// Credential vault
	credVault, err := vault.New(cfg.EncryptionKey)
	if err != nil {
		slog.Error("failed to initialize vault", "error", err)
		os.Exit(1)
	}

	// Blob store for raw uploads
	blobStore, err := blob.NewFromConfig(context.Background(), blob.Config{
		Backend:           cfg.BlobBackend,
		FSRoot:            cfg.BlobFSRoot,
		S3Bucket:          cfg.S3Bucket,
		S3Region:          cfg.S3Region,
		S3Endpoint:        cfg.S3Endpoint,
		S3AccessKeyID:     cfg.S3AccessKeyID,
		S3SecretAccessKey: cfg.S3SecretAccessKey,
		S3ForcePathStyle:  cfg.S3ForcePathStyle,
	})
	if err != nil {
		slog.Error("failed to initialize blob store", "error", err)
		os.Exit(1)
	}

	// Services
	tokenIssuer := auth.NewTokenIssuer(cfg.APITokenSecret, 30*24*time.Hour)
	authService := auth.NewService(userStore, sessionStore, tokenIssuer, cfg.SessionMaxAge)

	aiClient := ai.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel)
	responder := ai.NewResponder(aiClient)

	dialer := emailsync.DialerFunc(func(ctx context.Context, creds mailer.Credentials) (emailsync.Mailbox, error) {
		return mailer.Dial(ctx, creds)
	})
	syncService := emailsync.NewService(settingsStore, emailStore, responseStore, contextStore, credVault, dialer, responder, cfg.SyncLookbackDays)

	docService := contextdoc.NewService(contextStore, blobStore, cfg.MaxUploadBytes)

	// Rate limiter
	limiter := ratelimit.NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, cfg.SecureCookies)
	contextHandler := handlers.NewContextHandler(docService, contextStore, cfg.MaxUploadBytes)
	taskHandler := handlers.NewTaskHandler(taskStore)
	conversationHandler := handlers.NewConversationHandler(conversationStore, chatMessageStore, contextStore, responder)
	aiHandler := handlers.NewAIHandler(responder, contextStore)
	learningHandler := handlers.NewLearningHandler(learningStore)
	emailHandler := handlers.NewEmailHandler(settingsStore, emailStore, responseStore, syncService, credVault)
	emailResponseHandler := handlers.NewEmailResponseHandler(responseStore, emailStore, syncService)
	screenshotHandler := handlers.NewScreenshotHandler(responder, docService)

	// Router
	router := web.NewRouter(web.RouterDeps{
		AuthHandler:          authHandler,
		ContextHandler:       contextHandler,
		TaskHandler:          taskHandler,
		ConversationHandler:  conversationHandler,
		AIHandler:            aiHandler,
		LearningHandler:      learningHandler,
		EmailHandler:         emailHandler,
		EmailResponseHandler: emailResponseHandler,
		ScreenshotHandler:    screenshotHandler,
		AuthService:          authService,
		Limiter:              limiter,
	})

	// Session cleanup goroutine
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if err := sessionStore.DeleteExpiredSessions(context.Background()); err != nil {
				slog.Error("failed to clean up expired sessions", "error", err)
			}
		}
	}()

	// Server. Write timeout is generous because a sync pass holds the
	// request open while it talks to the mail server and the model.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("DoMyJob starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
