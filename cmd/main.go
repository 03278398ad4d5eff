package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-relay/auth"
	"chat-relay/domain/event"
	"chat-relay/infrastructure/ws"
	"chat-relay/moderation"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes
// error reporting so every defer (database cleanup included) executes before
// the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories & auth
	messageRepository := repositories.NewMessageRepository(db, log, config.LimitMessages)
	userRepository := repositories.NewUserRepository(db)
	tokenManager := auth.NewTokenManager(config.JWTSecret, config.AuthTokenDuration)

	var moderator *moderation.Moderator
	if len(config.CensoredWords) > 0 {
		if moderator, err = moderation.NewModerator(config.CensoredWords, '*'); err != nil {
			return fmt.Errorf("moderation setup failed: %w", err)
		}
		log.Info(fmt.Sprintf("%d censored words loaded", len(config.CensoredWords)))
	}

	// 4. Core: registry, presence, typing, relay
	registry := runtime.NewSessionRegistry()
	presenceEvents := make(chan event.DomainEvent, config.BufferSize)
	presenceTracker := runtime.NewPresenceTracker(userRepository, presenceEvents, log)
	typingNotifier := runtime.NewTypingNotifier(registry, config.TypingTimeout, log)
	relay := runtime.NewMessageRelay(registry, messageRepository, userRepository,
		moderator, config.MaxContentLength, log)
	gateway := runtime.NewGateway(registry, presenceTracker, typingNotifier, log)

	// 5. Supervision: presence fanout + telemetry
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(workers.NewPresenceFanout(log, presenceEvents, registry, messageRepository,
		workers.PresenceScope(config.PresenceScope), config.SinkTimeout))
	sup.Add(workers.NewTelemetryWorker(log, config.TelemetryInterval))

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		sup.Run(ctx)
	}()

	// 7. Services & HTTP server
	authService := services.NewAuthService(userRepository, tokenManager)
	chatService := services.NewChatService(relay, typingNotifier, messageRepository)
	server := ws.NewServer(log, tokenManager, authService, chatService,
		gateway, presenceTracker, config.ConnectionBufferSize, config.AllowedOrigins)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{Addr: address, Handler: server.Handler()}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting relay server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly")

	return nil
}
