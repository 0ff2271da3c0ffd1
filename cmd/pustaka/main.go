// Package main is the Pustaka CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/pustakalab/pustaka/internal/config"
	"github.com/pustakalab/pustaka/internal/embedding"
	"github.com/pustakalab/pustaka/internal/ingest"
	"github.com/pustakalab/pustaka/internal/llm"
	"github.com/pustakalab/pustaka/internal/models"
	"github.com/pustakalab/pustaka/internal/rag"
	"github.com/pustakalab/pustaka/internal/server"
	"github.com/pustakalab/pustaka/internal/storage"
	"github.com/pustakalab/pustaka/internal/vector"
	"github.com/pustakalab/pustaka/internal/watcher"
	"github.com/pustakalab/pustaka/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/pustaka/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence so running from the project dir
// picks up the project's config.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// Provider keys may live in a .env file during development.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "reingest-books":
		runReingestBooks()
	case "models":
		runModels()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("pustaka version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var inbox *watcher.InboxWatcher
	if cfg.Watch.InboxDir != "" {
		pipeline := components.Pipeline
		watchOpts := []watcher.Option{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		inbox = watcher.NewInboxWatcher(cfg.Watch.InboxDir, func(path string) {
			if err := ingestInboxFile(pipeline, path); err != nil {
				logger.Warn("inbox ingestion failed", zap.String("path", path), zap.Error(err))
			}
		}, watchOpts...)
		if err := inbox.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start inbox watcher", zap.Error(err))
		}
		inbox.SyncExisting()
	}

	srv := server.NewServer(
		components.Assistant,
		components.Pipeline,
		components.Storage,
		components.Chat,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if inbox != nil {
		inbox.Stop()
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// ingestInboxFile registers a dropped PDF as a document and runs the pipeline.
func ingestInboxFile(pipeline *ingest.Pipeline, path string) error {
	ctx := context.Background()
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	doc, err := pipeline.SaveUpload(ctx, file, filepath.Base(path))
	file.Close()
	if err != nil {
		return err
	}
	if _, err := pipeline.IngestDocument(ctx, doc); err != nil {
		return err
	}
	// The inbox copy is consumed; the stored copy lives in the documents dir.
	return os.Remove(path)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: pustaka ingest [flags] <file.pdf>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || *debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug || *debug)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	file, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", path, err)
		os.Exit(1)
	}
	doc, err := components.Pipeline.SaveUpload(context.Background(), file, filepath.Base(path))
	file.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to store %s: %v\n", path, err)
		os.Exit(1)
	}

	result, err := components.Pipeline.IngestDocument(context.Background(), doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingestion failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Ingested %s: %d pages, %d chunks, %d vectors\n",
		doc.Filename, result.PagesCount, result.ChunksCount, result.UpsertedCount)
}

func runReingestBooks() {
	fs := flag.NewFlagSet("reingest-books", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || *debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug || *debug)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	total, err := components.Pipeline.ReingestBooks(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Reingest failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Catalog reingested: %d vectors\n", total)
}

func runModels() {
	fs := flag.NewFlagSet("models", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	client := llm.NewGeminiClient(&cfg.Gemini, &cfg.Chat, nil)
	infos, err := client.ListModels(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list models: %v\n", err)
		os.Exit(1)
	}
	for _, m := range infos {
		name := m.Name
		if m.DisplayName != "" {
			name = fmt.Sprintf("%s\t%s", m.Name, m.DisplayName)
		}
		fmt.Printf("%s\t%s\n", name, strings.Join(m.SupportedGenerationMethods, ", "))
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open storage: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	books, err := store.CountBooks(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to count books: %v\n", err)
		os.Exit(1)
	}
	docs, err := store.CountDocuments(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to count documents: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Books:     %d\n", books)
	fmt.Printf("Documents: %d\n", docs)
	fmt.Printf("Database:  %s\n", cfg.Storage.DatabasePath)

	pending := 0
	all, err := store.ListDocuments(ctx)
	if err == nil {
		for _, d := range all {
			if d.Status != models.DocumentStatusCompleted {
				pending++
			}
		}
		fmt.Printf("Documents not yet ingested: %d\n", pending)
	}
}

// Components holds the wired application services.
type Components struct {
	Storage   storage.Storage
	Embedder  embedding.Embedder
	Index     vector.Index
	Chat      *llm.GeminiClient
	Pipeline  *ingest.Pipeline
	Assistant *rag.Assistant
}

// Close releases component resources.
func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	var embedder embedding.Embedder
	if cfg.Gemini.APIKey != "" {
		embedder = embedding.NewGeminiEmbedder(&cfg.Gemini, logger)
	} else {
		logger.Warn("GEMINI_API_KEY not set, using mock embedder")
		embedder = embedding.NewMockEmbedder(cfg.Gemini.Dimensions)
	}

	var index vector.Index
	if cfg.Pinecone.Host != "" && cfg.Pinecone.APIKey != "" {
		index = vector.NewPineconeIndex(&cfg.Pinecone, logger)
	} else {
		logger.Warn("Pinecone not configured, using in-memory index")
		index = vector.NewMemoryIndex()
	}

	chat := llm.NewGeminiClient(&cfg.Gemini, &cfg.Chat, logger)

	pipelineOpts := []ingest.Option{ingest.WithDocumentsDir(cfg.Storage.DocumentsDir)}
	if debug {
		pipelineOpts = append(pipelineOpts, ingest.WithLogger(logger))
	}
	pipeline := ingest.NewPipeline(store, embedder, index, &cfg.Ingest, pipelineOpts...)

	assistantOpts := []rag.Option{rag.WithTopK(cfg.Chat.TopK)}
	if debug {
		assistantOpts = append(assistantOpts, rag.WithLogger(logger))
	}
	assistant := rag.NewAssistant(embedder, index, chat, rag.NewContextBuilder(store, store), assistantOpts...)

	return &Components{
		Storage:   store,
		Embedder:  embedder,
		Index:     index,
		Chat:      chat,
		Pipeline:  pipeline,
		Assistant: assistant,
	}, nil
}

func printUsage() {
	fmt.Println(`Pustaka - AI librarian for your library

Usage:
  pustaka <command> [flags]

Commands:
  server           Start the HTTP API server
  ingest <file>    Ingest a PDF into the index
  reingest-books   Wipe the index and re-embed the book catalog
  models           List available chat models
  status           Show catalog and document counts
  version          Print version
  help             Show this help

Flags (server, ingest, reingest-books):
  -config <path>   Config file path (default ` + defaultConfigPath + `)
  -debug           Enable debug logging

Environment:
  GEMINI_API_KEY, PINECONE_API_KEY, PINECONE_HOST override config values.
  A .env file in the working directory is loaded at startup.`)
}
