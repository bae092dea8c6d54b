// signalboard ingests product feedback from multiple channels, clusters it by
// theme with vector similarity, classifies it, and publishes daily digests.
//
// External dependencies:
//   - SQLite (embedded, via go-sqlite3 + sqlite-vec)
//   - Ollama (optional, for embeddings)
//   - Anthropic API (optional, for classification/summarization/digests)
//   - Discord (optional, live ingestion)
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/signalboard/signalboard/internal/classify"
	"github.com/signalboard/signalboard/internal/cluster"
	"github.com/signalboard/signalboard/internal/config"
	"github.com/signalboard/signalboard/internal/digest"
	"github.com/signalboard/signalboard/internal/embedding"
	"github.com/signalboard/signalboard/internal/ingest"
	"github.com/signalboard/signalboard/internal/label"
	"github.com/signalboard/signalboard/internal/llm"
	"github.com/signalboard/signalboard/internal/reconcile"
	"github.com/signalboard/signalboard/internal/server"
	"github.com/signalboard/signalboard/internal/store"
	"github.com/signalboard/signalboard/internal/types"
	"github.com/signalboard/signalboard/internal/vector"
	"github.com/signalboard/signalboard/internal/worker"

	"github.com/google/uuid"
)

func main() {
	log.Println("signalboard - feedback signal engine")

	// Load .env file (optional - won't error if missing)
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, using environment variables")
	}

	cfg := config.Load()
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer st.Close()

	idx, err := vector.New(st.DB())
	if err != nil {
		log.Fatalf("Failed to initialize vector index: %v", err)
	}

	labeler := label.Default()
	if cfg.RulesFile != "" {
		if l, err := label.FromFile(cfg.RulesFile); err != nil {
			log.Printf("[config] Failed to load rules file %s, using defaults: %v", cfg.RulesFile, err)
		} else {
			labeler = l
		}
	}

	var embedder embedding.Embedder
	if !cfg.DisableEmbeds {
		embedder = embedding.NewClient(cfg.OllamaURL, cfg.EmbedModel)
	}
	embedResolver := embedding.NewResolver(embedder)

	var completer llm.Completer
	if c := llm.NewClient(cfg.AnthropicKey, cfg.AnthropicModel); c != nil {
		completer = c
	} else {
		log.Println("[config] No Anthropic API key, text capabilities run in fallback mode")
	}

	classifier := classify.New(completer, cfg.DevMode)
	summarizer := cluster.NewSummarizer(completer, cfg.DevMode)
	resolver := cluster.NewResolver(st, idx, labeler)
	manager := cluster.NewManager(st, labeler, summarizer)
	processor := cluster.NewProcessor(st, idx, embedResolver, resolver, classifier, manager)

	pool := worker.NewPool(cfg.Workers, cfg.QueueSize, processor.Process)
	jobs := reconcile.New(st, labeler)
	synth := digest.NewSynthesizer(st, completer, cfg.Location())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go digest.NewScheduler(synth, cfg.Location()).Run(ctx)

	if cfg.DiscordToken != "" {
		listener, err := ingest.NewDiscordListener(ingest.DiscordConfig{
			Token:     cfg.DiscordToken,
			ChannelID: cfg.DiscordChannel,
		}, func(source, author, text string) (string, error) {
			item := &types.FeedbackItem{
				ID:        uuid.NewString(),
				Source:    types.NormalizeSource(source),
				Author:    author,
				Text:      text,
				CreatedAt: time.Now().UTC(),
			}
			if err := st.InsertFeedback(item); err != nil {
				return "", err
			}
			pool.Enqueue(item.ID)
			return item.ID, nil
		})
		if err != nil {
			log.Fatalf("Failed to create Discord listener: %v", err)
		}
		if err := listener.Start(); err != nil {
			log.Fatalf("Failed to connect to Discord: %v", err)
		}
		defer listener.Stop()
	}

	srv := server.New(st, pool, jobs, synth, cfg.FreePlan)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
		pool.Close()
	}()

	log.Printf("signalboard listening on :%s (data: %s)", cfg.Port, cfg.DataDir)
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
