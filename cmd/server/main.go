package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"srokagri.com/khmer-agri-chat/internal/api"
	"srokagri.com/khmer-agri-chat/internal/config"
	"srokagri.com/khmer-agri-chat/internal/core"
	"srokagri.com/khmer-agri-chat/internal/corpus"
	"srokagri.com/khmer-agri-chat/internal/index"
	"srokagri.com/khmer-agri-chat/internal/store"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if config.AppConfig.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	// Command line flag for corpus ingestion
	ingestFlag := flag.Bool("ingest", false, "Embed the chunks file into the database and exit")
	flag.Parse()

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(config.AppConfig.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStore.Close()

	// Load the passage corpus. The vector index rows are position-aligned
	// with these passages, so both sides come from the same artifact.
	passages, err := corpus.Load(config.AppConfig.ChunksPath)
	if err != nil {
		log.Fatalf("Failed to load passage corpus: %v", err)
	}
	log.Printf("Loaded %d passages from %s", len(passages), config.AppConfig.ChunksPath)

	// Initialize LLM service
	llmService := core.NewLLMService()
	defer llmService.Close()

	// Handle corpus ingestion if flag is set
	if *ingestFlag {
		log.Printf("Embedding %d passages (this may take a while)...", len(passages))
		vectors, err := llmService.EmbedBatch(context.Background(), passages)
		if err != nil {
			log.Fatalf("Corpus embedding failed: %v", err)
		}
		if err := dbStore.SaveEmbeddings(vectors); err != nil {
			log.Fatalf("Failed to store embeddings: %v", err)
		}
		log.Printf("Ingestion complete. Stored %d embeddings. Exiting.", len(vectors))
		os.Exit(0)
	}

	// Build the vector index from the persisted embeddings
	vectors, err := dbStore.LoadEmbeddings()
	if err != nil {
		log.Fatalf("Failed to load embeddings: %v", err)
	}
	if len(vectors) != len(passages) {
		log.Fatalf("Embedding count (%d) does not match passage count (%d); re-run with -ingest", len(vectors), len(passages))
	}
	vectorIndex, err := index.NewFlat(vectors)
	if err != nil {
		log.Fatalf("Failed to build vector index: %v", err)
	}
	log.Printf("Vector index ready with %d passages", vectorIndex.Size())

	// Initialize retriever and chat service
	retriever := core.NewRetriever(core.NewNormalizer(core.DefaultAliases), llmService, vectorIndex, passages)
	chatService := core.NewChatService(dbStore, retriever, llmService, config.AppConfig.TopK, config.AppConfig.BoostScore)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(chatService, api.NewSessionManager())
	router := api.NewRouter(apiHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // LLM calls can take time
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give active connections time to finish
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}
