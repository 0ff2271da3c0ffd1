package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/pustaka/data/db/library.db"
	}
	if cfg.Storage.DocumentsDir == "" {
		cfg.Storage.DocumentsDir = "/usr/local/var/pustaka/data/documents"
	}
	if cfg.Gemini.BaseURL == "" {
		cfg.Gemini.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Gemini.ChatModel == "" {
		cfg.Gemini.ChatModel = "models/gemini-1.5-flash"
	}
	if cfg.Gemini.EmbeddingModel == "" {
		cfg.Gemini.EmbeddingModel = "models/gemini-embedding-001"
	}
	if cfg.Gemini.Dimensions == 0 {
		cfg.Gemini.Dimensions = 768
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 1000
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 100
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 10
	}
	if cfg.Ingest.EmbedDelay == 0 {
		cfg.Ingest.EmbedDelay = 100 * time.Millisecond
	}
	if cfg.Chat.TopK == 0 {
		cfg.Chat.TopK = 5
	}
	if cfg.Chat.Temperature == 0 {
		cfg.Chat.Temperature = 0.7
	}
	if cfg.Chat.MaxOutputTokens == 0 {
		cfg.Chat.MaxOutputTokens = 1024
	}
	if cfg.Chat.Timeout == 0 {
		cfg.Chat.Timeout = 60 * time.Second
	}
}
