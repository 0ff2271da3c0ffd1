// Package config provides configuration loading and structs for the Pustaka server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Pinecone PineconeConfig `yaml:"pinecone"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Chat     ChatConfig     `yaml:"chat"`
	Watch    WatchConfig    `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database and uploaded documents.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	DocumentsDir string `yaml:"documents_dir"`
}

// GeminiConfig holds Gemini API settings. APIKey is overridden by the
// GEMINI_API_KEY environment variable when set.
type GeminiConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	ChatModel      string `yaml:"chat_model"`
	EmbeddingModel string `yaml:"embedding_model"`
	Dimensions     int    `yaml:"dimensions"`
}

// PineconeConfig holds vector index settings. APIKey and Host are overridden
// by PINECONE_API_KEY and PINECONE_HOST when set.
type PineconeConfig struct {
	APIKey string `yaml:"api_key"`
	Host   string `yaml:"host"`
}

// IngestConfig holds chunking and upsert batching settings.
type IngestConfig struct {
	ChunkSize    int           `yaml:"chunk_size"`
	ChunkOverlap int           `yaml:"chunk_overlap"`
	BatchSize    int           `yaml:"batch_size"`
	EmbedDelay   time.Duration `yaml:"embed_delay"`
}

// ChatConfig holds retrieval and generation settings.
type ChatConfig struct {
	TopK            int           `yaml:"top_k"`
	Temperature     float64       `yaml:"temperature"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	Timeout         time.Duration `yaml:"timeout"`
}

// WatchConfig holds inbox watcher settings. When InboxDir is empty the
// watcher is disabled.
type WatchConfig struct {
	InboxDir string `yaml:"inbox_dir"`
}

// Load reads and parses the config file at path, applies defaults, expands
// paths, and overlays provider credentials from the environment.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	applyEnv(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.DocumentsDir = expandPath(cfg.Storage.DocumentsDir, configDir)
	if cfg.Watch.InboxDir != "" {
		cfg.Watch.InboxDir = expandPath(cfg.Watch.InboxDir, configDir)
	}

	return &cfg, nil
}

// applyEnv overlays credentials and endpoints from the environment so keys
// never need to live in the config file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Gemini.APIKey = v
	}
	if v := os.Getenv("PINECONE_API_KEY"); v != "" {
		cfg.Pinecone.APIKey = v
	}
	if v := os.Getenv("PINECONE_HOST"); v != "" {
		cfg.Pinecone.Host = v
	}
	cfg.Pinecone.Host = normalizeHost(cfg.Pinecone.Host)
}

// normalizeHost ensures the Pinecone host is an https URL without a trailing slash.
func normalizeHost(host string) string {
	host = strings.TrimRight(host, "/")
	if host == "" {
		return host
	}
	if !strings.HasPrefix(host, "https://") && !strings.HasPrefix(host, "http://") {
		host = "https://" + host
	}
	return host
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
