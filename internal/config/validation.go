package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for out-of-range or missing values.
// Returns a sentinel error (wrapped with context) on the first failure.
func (c *Config) Validate() error {
	if err := c.validateOllamaHost(); err != nil {
		return err
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: model name must not be empty", ErrInvalidEmbedderModel)
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("%w: db_path must not be empty", ErrInvalidDBPath)
	}
	if c.TopK < 1 || c.TopK > 100 {
		return fmt.Errorf("%w: top_k must be in [1, 100], got %d", ErrInvalidTopK, c.TopK)
	}
	if c.SimilarityCutoff < -1 || c.SimilarityCutoff > 1 {
		return fmt.Errorf("%w: similarity_cutoff must be in [-1, 1], got %g",
			ErrInvalidCutoff, c.SimilarityCutoff)
	}
	if c.RateBurst < 0 {
		return fmt.Errorf("%w: rate_burst must be non-negative, got %d",
			ErrInvalidRateBurst, c.RateBurst)
	}
	return nil
}

func (c *Config) validateOllamaHost() error {
	host := strings.TrimSpace(c.OllamaHost)
	if host == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidOllamaHost)
	}
	u, err := url.Parse(host)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOllamaHost, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https, got %q",
			ErrInvalidOllamaHost, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host in %q", ErrInvalidOllamaHost, host)
	}
	return nil
}
