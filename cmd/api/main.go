package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/estampa/internal/auth"
	"github.com/snappy-loop/estampa/internal/config"
	"github.com/snappy-loop/estampa/internal/controller"
	"github.com/snappy-loop/estampa/internal/handlers"
	"github.com/snappy-loop/estampa/internal/kafka"
	"github.com/snappy-loop/estampa/internal/llm"
	"github.com/snappy-loop/estampa/internal/messages"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := config.Load()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Msg("Starting Estampa API")

	msgs, err := messages.LoadFile(cfg.MessagesFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.MessagesFile).Msg("Failed to load messages")
	}

	if cfg.GeminiAPIKey == "" {
		log.Warn().Msg("GEMINI_API_KEY not set; every generation will fail")
	}
	llmClient := llm.NewClient(cfg.GeminiAPIKey, cfg.GeminiModelImage, cfg.GeminiAPIEndpoint)

	opts := []controller.Option{
		controller.WithModel(llmClient.Model()),
		controller.WithTimeout(cfg.GenerationTimeout),
	}
	if cfg.EventsEnabled() {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicEvents)
		defer producer.Close()
		opts = append(opts, controller.WithPublisher(producer))
	}

	h := handlers.NewHandler(llmClient, msgs, cfg.WSReadLimit, opts...)

	authService := auth.NewService(cfg.APITokenHashes)
	if !authService.Enabled() {
		log.Warn().Msg("API_TOKEN_HASHES not set; /v1 is unauthenticated")
	}

	r := mux.NewRouter()
	r.HandleFunc("/", h.Index).Methods("GET")
	r.HandleFunc("/ws", h.WS).Methods("GET")
	r.HandleFunc("/healthz", h.Health).Methods("GET")

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(authService.Middleware)
	api.HandleFunc("/generate", h.Generate).Methods("POST")

	// No WriteTimeout: generation waits on the API and /ws is long-lived.
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down API...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("API exited")
}
