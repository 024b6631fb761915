// Package config loads the application configuration from YAML with
// defaults suitable for a local Ollama + Qdrant stack.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// QdrantConfig holds vector store connection details.
type QdrantConfig struct {
	Addr       string `yaml:"addr"`
	Collection string `yaml:"collection"`
}

// TextEmbedConfig configures the text-lane encoder.
type TextEmbedConfig struct {
	URL   string  `yaml:"url"`
	Model string  `yaml:"model"`
	Dims  int     `yaml:"dims"`
	RPS   float64 `yaml:"rps"`
}

// ImageEmbedConfig configures the CLIP-style multimodal encoder.
type ImageEmbedConfig struct {
	Enabled bool    `yaml:"enabled"`
	URL     string  `yaml:"url"`
	Dims    int     `yaml:"dims"`
	RPS     float64 `yaml:"rps"`
}

// ChatConfig configures the OpenAI-compatible generator and transcriber.
type ChatConfig struct {
	BaseURL         string `yaml:"base_url"`
	APIKeyEnv       string `yaml:"api_key_env"`
	Model           string `yaml:"model"`
	TranscribeModel string `yaml:"transcribe_model"`
}

// IndexConfig configures chunking and upsert batching.
type IndexConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	BatchSize int `yaml:"batch_size"`
}

// RetrieveConfig configures the fusion retriever.
type RetrieveConfig struct {
	TopK            int  `yaml:"top_k"`
	ServerFusion    bool `yaml:"server_fusion"`
	MaxContextBytes int  `yaml:"max_context_bytes"`
}

// Config is the root configuration.
type Config struct {
	Qdrant     QdrantConfig     `yaml:"qdrant"`
	TextEmbed  TextEmbedConfig  `yaml:"text_embed"`
	ImageEmbed ImageEmbedConfig `yaml:"image_embed"`
	Chat       ChatConfig       `yaml:"chat"`
	Index      IndexConfig      `yaml:"index"`
	Retrieve   RetrieveConfig   `yaml:"retrieve"`
}

// Default returns the configuration for a local single-node stack.
func Default() Config {
	return Config{
		Qdrant: QdrantConfig{
			Addr:       "localhost:6334",
			Collection: "local_docs",
		},
		TextEmbed: TextEmbedConfig{
			URL:   "http://localhost:11434",
			Model: "all-minilm",
			Dims:  384,
		},
		ImageEmbed: ImageEmbedConfig{
			Enabled: true,
			URL:     "http://localhost:8081",
			Dims:    512,
		},
		Chat: ChatConfig{
			BaseURL:   "http://localhost:11434/v1",
			APIKeyEnv: "OPENAI_API_KEY",
			Model:     "llama3.1:8b",
		},
		Index: IndexConfig{
			ChunkSize: 500,
			BatchSize: 32,
		},
		Retrieve: RetrieveConfig{
			TopK:            5,
			MaxContextBytes: 8192,
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// APIKey resolves the generator API key from the configured env var.
// Local OpenAI-compatible servers ignore the key, so empty is fine.
func (c ChatConfig) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}
