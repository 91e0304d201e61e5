package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/datagent-dev/datagent/internal/agent"
	"github.com/datagent-dev/datagent/internal/ai"
	"github.com/datagent-dev/datagent/internal/auth"
	"github.com/datagent-dev/datagent/internal/chat"
	"github.com/datagent-dev/datagent/internal/codegen"
	"github.com/datagent-dev/datagent/internal/config"
	"github.com/datagent-dev/datagent/internal/db"
	"github.com/datagent-dev/datagent/internal/events"
	"github.com/datagent-dev/datagent/internal/httpapi"
	"github.com/datagent-dev/datagent/internal/httpapi/handlers"
	"github.com/datagent-dev/datagent/internal/httpapi/middleware"
	"github.com/datagent-dev/datagent/internal/sandbox"
	"github.com/datagent-dev/datagent/internal/storage"
	"github.com/datagent-dev/datagent/internal/store/redisstore"
	"github.com/datagent-dev/datagent/internal/transcribe"
)

func main() {
	cfg := config.Load()
	for _, w := range cfg.Warnings() {
		log.Printf("[Config] %s is not set; the dependent feature will fail at call time", w)
	}

	gdb := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err := gdb.AutoMigrate(&chat.Session{}, &chat.Message{}, &chat.DataVersion{}); err != nil {
		log.Fatalf("automigrate: %v", err)
	}
	repo := chat.NewRepo(gdb)

	var rateCounter middleware.WindowCounter
	if cfg.RedisAddr != "" {
		rateCounter = redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	}

	// Domain events are optional; the pipeline runs fine without a broker.
	var sink handlers.EventSink
	if cfg.RabbitURL != "" {
		pub, err := events.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Printf("[Events] publisher disabled: %v", err)
		} else {
			defer pub.Close()
			sink = pub
		}
	}

	primary := ai.NewGeminiProvider(cfg.GeminiBaseURL, cfg.GeminiAPIKey, cfg.GeminiModel)
	var fallback ai.Provider
	if cfg.OpenRouterAPIKey != "" {
		fallback = ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, cfg.OpenRouterModel, cfg.OpenRouterSiteURL, cfg.OpenRouterAppName)
	}
	gen := codegen.New(primary, fallback)

	runner := sandbox.NewClient(cfg.SandboxBaseURL, cfg.SandboxAPIKey, cfg.SandboxTemplate)
	store := storage.NewClient(cfg.StorageURL, cfg.StorageServiceKey, cfg.StorageBucket)
	whisper := transcribe.NewWhisperClient(cfg.OpenAIAPIKey)

	ag := agent.New(repo, gen, runner, store, sink)

	h := handlers.NewHandler(repo, gen, ag, store, whisper, sink)
	router := httpapi.NewRouter(h, auth.NewVerifier(cfg.JWTSecret), rateCounter, cfg.ChatRatePerMin, cfg.CORSOrigin)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("server running on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
