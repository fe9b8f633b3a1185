package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/GengGao/hackathon-agent/internal/rag"
	"github.com/GengGao/hackathon-agent/internal/rules"
)

// Retriever is the slice of the retrieval engine the HTTP layer needs.
// rag.Engine satisfies it; tests supply fakes.
type Retriever interface {
	SetSession(sessionID string)
	Rebuild(ctx context.Context, force bool) (bool, error)
	Retrieve(ctx context.Context, query string, k int) ([]rag.Match, error)
	StatusScoped(sessionID string) rag.Status
	ChunkCount() int
}

// RuleStore is the slice of the rules store the HTTP layer needs.
type RuleStore interface {
	Add(ctx context.Context, source, filename, content, sessionID string) (int64, error)
	Deactivate(ctx context.Context, id int64) error
	ClearSession(ctx context.Context, sessionID string) error
	List(ctx context.Context, sessionID string) ([]rules.Document, error)
}

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger     *slog.Logger
	Rules      RuleStore // Required
	Engine     Retriever // Required
	TrustProxy bool      // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst  int       // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Rules == nil {
		return nil, errors.New("rules store is required")
	}
	if cfg.Engine == nil {
		return nil, errors.New("engine is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ch := &contextHandler{
		store:  cfg.Rules,
		engine: cfg.Engine,
		logger: logger,
	}
	rh := &retrieveHandler{
		engine: cfg.Engine,
		logger: logger,
	}

	mux := http.NewServeMux()

	// Session provisioning
	mux.HandleFunc("POST /api/session", newSession(logger))

	// Corpus management
	mux.HandleFunc("POST /api/context/text", ch.addText)
	mux.HandleFunc("GET /api/rules-context", ch.list)
	mux.HandleFunc("DELETE /api/context/{id}", ch.remove)
	mux.HandleFunc("DELETE /api/rules-context", ch.clear)
	mux.HandleFunc("GET /api/rules-context/status", ch.status)

	// Retrieval
	mux.HandleFunc("POST /api/retrieve", rh.retrieve)

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack, outermost first:
	//   Recovery → Logging → RateLimit → Routes
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Top-level mux keeps health probes outside the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
