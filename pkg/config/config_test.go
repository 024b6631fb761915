package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Qdrant.Collection != "local_docs" {
		t.Errorf("collection = %q", cfg.Qdrant.Collection)
	}
	if cfg.Index.ChunkSize != 500 || cfg.Index.BatchSize != 32 {
		t.Errorf("index defaults = %+v", cfg.Index)
	}
	if cfg.TextEmbed.Dims != 384 || cfg.ImageEmbed.Dims != 512 {
		t.Errorf("dims defaults = %d/%d", cfg.TextEmbed.Dims, cfg.ImageEmbed.Dims)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Retrieve.TopK != 5 {
		t.Errorf("top_k = %d", cfg.Retrieve.TopK)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "polyrag.yaml")
	yaml := `
qdrant:
  collection: research_notes
index:
  chunk_size: 200
image_embed:
  enabled: false
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Qdrant.Collection != "research_notes" {
		t.Errorf("collection = %q", cfg.Qdrant.Collection)
	}
	if cfg.Index.ChunkSize != 200 {
		t.Errorf("chunk_size = %d", cfg.Index.ChunkSize)
	}
	if cfg.ImageEmbed.Enabled {
		t.Error("image_embed.enabled should be overridden to false")
	}
	// Untouched fields keep their defaults.
	if cfg.Qdrant.Addr != "localhost:6334" {
		t.Errorf("addr = %q", cfg.Qdrant.Addr)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv("POLYRAG_TEST_KEY", "sk-123")
	c := ChatConfig{APIKeyEnv: "POLYRAG_TEST_KEY"}
	if got := c.APIKey(); got != "sk-123" {
		t.Errorf("APIKey = %q", got)
	}
}
