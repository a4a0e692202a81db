package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/novalabs-ai/nova-chat/internal/ai"
	"github.com/novalabs-ai/nova-chat/internal/api"
	"github.com/novalabs-ai/nova-chat/internal/config"
	"github.com/novalabs-ai/nova-chat/internal/core"
	"github.com/novalabs-ai/nova-chat/internal/extract"
	"github.com/novalabs-ai/nova-chat/internal/store"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if config.AppConfig.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	// Command line flag for ingesting a document from disk
	ingestPath := flag.String("ingest", "", "Ingest the given document into the index and exit")
	flag.Parse()

	// Initialize database store (in-memory by default)
	dbStore, err := store.NewSQLiteStore(config.AppConfig.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStore.Close()

	// Initialize model client
	gemini := ai.NewGeminiClient()
	defer gemini.Close()

	// Initialize embedding index and ingestion pipeline
	index, err := core.NewEmbeddingIndex(dbStore, gemini)
	if err != nil {
		log.Fatalf("Failed to initialize embedding index: %v", err)
	}
	chunker := core.NewChunker(config.AppConfig.ChunkSize, config.AppConfig.ChunkOverlap)
	ingester := core.NewIngestionPipeline(chunker, index)

	// Handle document ingestion if flag is set
	if *ingestPath != "" {
		log.Printf("Starting ingestion of %s...", *ingestPath)
		data, err := os.ReadFile(*ingestPath)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", *ingestPath, err)
		}
		doc := extract.Document{
			Name:      filepath.Base(*ingestPath),
			MediaType: extract.ResolveMediaType("", *ingestPath),
			Data:      data,
		}
		if err := ingester.Ingest(context.Background(), doc); err != nil {
			log.Fatalf("Ingestion failed: %v", err)
		}
		log.Printf("Ingestion complete. Index holds %d chunks. Exiting.", index.Len())
		// With the default in-memory database nothing is kept; configure a
		// file DATABASE_URL to reuse the corpus on the next start.
		dbStore.Close()
		gemini.Close()
		os.Exit(0)
	}

	// Initialize answer services and sessions
	chatService := core.NewChatService(gemini)
	ragService := core.NewRAGService(index, gemini, config.AppConfig.RetrievalK)
	sessions := core.NewSessionManager(dbStore)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(chatService, ragService, ingester, sessions, config.AppConfig.MaxUploadBytes)
	router := api.NewRouter(apiHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:        serverAddr,
		Handler:     router,
		ReadTimeout: 15 * time.Second, // Adjusted for potentially slower LLM handshakes
		// No WriteTimeout: streamed answers hold the connection open for as
		// long as the model keeps producing tokens.
		IdleTimeout: 120 * time.Second,
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
	<-quit // Block until a signal is received
	log.Println("Shutting down server...")

	// Give active connections time to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}
