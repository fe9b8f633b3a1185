package config

import (
	"errors"
	"testing"
)

// validConfig returns a configuration that passes Validate.
func validConfig() *Config {
	return &Config{
		OllamaHost:       "http://localhost:11434",
		EmbedderModel:    DefaultEmbedderModel,
		DBPath:           "/tmp/app.db",
		CacheDir:         "/tmp/cache",
		TopK:             DefaultTopK,
		SimilarityCutoff: 0,
		Addr:             DefaultAddr,
	}
}

func TestValidate_Valid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "empty ollama host",
			mutate:  func(c *Config) { c.OllamaHost = "" },
			wantErr: ErrInvalidOllamaHost,
		},
		{
			name:    "bad ollama scheme",
			mutate:  func(c *Config) { c.OllamaHost = "ftp://localhost:11434" },
			wantErr: ErrInvalidOllamaHost,
		},
		{
			name:    "missing host",
			mutate:  func(c *Config) { c.OllamaHost = "http://" },
			wantErr: ErrInvalidOllamaHost,
		},
		{
			name:    "empty embedder model",
			mutate:  func(c *Config) { c.EmbedderModel = "  " },
			wantErr: ErrInvalidEmbedderModel,
		},
		{
			name:    "empty db path",
			mutate:  func(c *Config) { c.DBPath = "" },
			wantErr: ErrInvalidDBPath,
		},
		{
			name:    "top_k too small",
			mutate:  func(c *Config) { c.TopK = 0 },
			wantErr: ErrInvalidTopK,
		},
		{
			name:    "top_k too large",
			mutate:  func(c *Config) { c.TopK = 101 },
			wantErr: ErrInvalidTopK,
		},
		{
			name:    "cutoff above 1",
			mutate:  func(c *Config) { c.SimilarityCutoff = 1.5 },
			wantErr: ErrInvalidCutoff,
		},
		{
			name:    "cutoff below -1",
			mutate:  func(c *Config) { c.SimilarityCutoff = -1.5 },
			wantErr: ErrInvalidCutoff,
		},
		{
			name:    "negative rate burst",
			mutate:  func(c *Config) { c.RateBurst = -1 },
			wantErr: ErrInvalidRateBurst,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}
