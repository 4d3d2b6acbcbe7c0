package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tokensite-backend/internal/config"
	"tokensite-backend/internal/database"
	"tokensite-backend/internal/handlers"
	"tokensite-backend/internal/middleware"
	"tokensite-backend/internal/repository"
	"tokensite-backend/internal/router"
	"tokensite-backend/internal/services"
	"tokensite-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting TokenSite Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Replay Store (Redis or in-memory) ────
	var signatureStore services.SignatureStore
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("✗ Redis connection failed: %v", err)
		}
		defer redisClient.Close()
		signatureStore = repository.NewRedisSignatureStore(redisClient)
		log.Println("✓ Redis connected (signature replay store)")
	} else {
		signatureStore = repository.NewMemorySignatureStore()
		log.Println("! REDIS_URL not set, using in-memory signature replay store")
	}

	// ──── Step 3: Access Grant Audit Log (optional) ────
	var grantRecorder services.AccessGrantRecorder
	if cfg.DatabaseURL != "" {
		pool, err := database.NewPostgresPool(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("✗ PostgreSQL connection failed: %v", err)
		}
		defer pool.Close()
		if err := database.RunMigrations(pool, cfg.MigrationsPath); err != nil {
			log.Fatalf("✗ Database migration failed: %v", err)
		}
		log.Println("✓ PostgreSQL connected, migrations applied")

		grantWriter := worker.NewPool(repository.NewAccessGrantRepo(pool), 2, 256)
		grantWriter.Start()
		defer grantWriter.Stop()
		grantRecorder = grantWriter
	}

	// ──── Step 4: Blockchain RPC + Balance Gate ────
	var balanceGate *services.BalanceGate
	if cfg.TokenGateEnabled() {
		if cfg.RPCURL == "" {
			log.Println("✗ TOKEN_CONTRACT_ADDRESS set without RPC_URL, wallet logins will fail as misconfigured")
		} else {
			ethClient, chainID, err := database.NewEthClient(cfg.RPCURL)
			if err != nil {
				log.Fatalf("✗ RPC connection failed: %v", err)
			}
			defer ethClient.Close()

			minBalance, err := services.ParseTokenAmount(cfg.MinTokenBalance, cfg.TokenDecimals)
			if err != nil {
				log.Fatalf("✗ Invalid MIN_TOKEN_BALANCE: %v", err)
			}
			balanceGate, err = services.NewBalanceGate(ethClient, cfg.TokenContract, minBalance, cfg.RPCTimeout)
			if err != nil {
				log.Fatalf("✗ Balance gate initialization failed: %v", err)
			}
			log.Printf("✓ RPC connected (chain %s), token gate min balance %s", chainID, cfg.MinTokenBalance)
		}
	}

	// ──── Step 5: Initialize AI Provider ────
	provider, closeProvider, err := newProvider(cfg)
	if err != nil {
		log.Fatalf("✗ AI provider initialization failed: %v", err)
	}
	defer closeProvider()
	if provider.Configured() {
		log.Printf("✓ AI provider %s initialized", provider.Name())
	} else {
		log.Printf("! AI provider %s has no API key, chat will report it is not configured", provider.Name())
	}

	// ──── Initialize Services ────
	maxAge := time.Duration(cfg.SignatureMaxAgeMins) * time.Minute
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	walletService := services.NewWalletService(services.DefaultChallenge)
	accessService := services.NewAccessService(walletService, signatureStore, jwtAuth, services.AccessOptions{
		GateRequired: cfg.TokenGateEnabled(),
		Gate:         balanceGate,
		Grants:       grantRecorder,
		MaxAge:       maxAge,
		SessionTTL:   cfg.SessionTTL,
	})
	chatService := services.NewChatService(provider, services.ChatOptions{
		Timeout:     cfg.AITimeout,
		StripMarkup: cfg.ChatStripMarkup,
	})

	// ──── Initialize Handlers ────
	walletHandler := handlers.NewWalletHandler(walletService, accessService, maxAge, cfg.IsDevelopment())
	chatHandler := handlers.NewChatHandler(chatService, cfg.IsDevelopment())

	// ──── Step 6: Start HTTP Server ────
	r := router.New(jwtAuth, walletHandler, chatHandler, router.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		DefaultOrigin:  cfg.DefaultOrigin,
		ChatRatePerMin: cfg.ChatRatePerMin,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AITimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ TokenSite Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}

// newProvider builds the completion provider selected by AI_PROVIDER.
func newProvider(cfg *config.Config) (services.Completer, func(), error) {
	noop := func() {}

	switch cfg.AIProvider {
	case "anthropic", "claude":
		return services.NewAnthropicProvider(services.ProviderOptions{
			APIKey:      cfg.AnthropicAPIKey,
			BaseURL:     cfg.AnthropicBaseURL,
			Model:       cfg.AIModel,
			MaxTokens:   cfg.AIMaxTokens,
			Temperature: cfg.AITemperature,
		}), noop, nil
	case "openai":
		return services.NewOpenAIProvider(services.ProviderOptions{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.AIModel,
			MaxTokens:   cfg.AIMaxTokens,
			Temperature: cfg.AITemperature,
		}), noop, nil
	case "gemini":
		gemini, err := services.NewGeminiProvider(context.Background(), services.ProviderOptions{
			APIKey:      cfg.GeminiAPIKey,
			Model:       cfg.AIModel,
			MaxTokens:   cfg.AIMaxTokens,
			Temperature: cfg.AITemperature,
		}, 5)
		if err != nil {
			return nil, noop, err
		}
		return gemini, gemini.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown AI_PROVIDER %q", cfg.AIProvider)
	}
}
