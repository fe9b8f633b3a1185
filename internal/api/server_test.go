package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/GengGao/hackathon-agent/internal/rag"
	"github.com/GengGao/hackathon-agent/internal/rules"
)

// fakeEngine implements Retriever with canned responses.
type fakeEngine struct {
	mu          sync.Mutex
	session     string
	rebuilds    int
	lastForce   bool
	rebuildErr  error
	matches     []rag.Match
	retrieveErr error
	status      rag.Status
	chunks      int

	rebuildCh chan struct{} // signaled on every Rebuild
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{rebuildCh: make(chan struct{}, 8)}
}

func (f *fakeEngine) SetSession(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = sessionID
}

func (f *fakeEngine) Rebuild(ctx context.Context, force bool) (bool, error) {
	f.mu.Lock()
	f.rebuilds++
	f.lastForce = force
	err := f.rebuildErr
	f.mu.Unlock()

	select {
	case f.rebuildCh <- struct{}{}:
	default:
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (f *fakeEngine) Retrieve(ctx context.Context, query string, k int) ([]rag.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.retrieveErr != nil {
		return nil, f.retrieveErr
	}
	return f.matches, nil
}

func (f *fakeEngine) StatusScoped(sessionID string) rag.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = sessionID
	st := f.status
	st.SessionID = sessionID
	return st
}

func (f *fakeEngine) ChunkCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chunks
}

func (f *fakeEngine) rebuildCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rebuilds
}

// fakeStore implements RuleStore over an in-memory slice.
type fakeStore struct {
	mu      sync.Mutex
	nextID  int64
	rows    []rules.Document
	addErr  error
	listErr error
}

func (s *fakeStore) Add(ctx context.Context, source, filename, content, sessionID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addErr != nil {
		return 0, s.addErr
	}
	s.nextID++
	s.rows = append(s.rows, rules.Document{
		ID:        s.nextID,
		Source:    source,
		Filename:  filename,
		Content:   content,
		SessionID: sessionID,
		CreatedAt: time.Now(),
	})
	return s.nextID, nil
}

func (s *fakeStore) Deactivate(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rows {
		if r.ID == id {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *fakeStore) ClearSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.rows[:0]
	for _, r := range s.rows {
		if r.SessionID != sessionID {
			kept = append(kept, r)
		}
	}
	s.rows = kept
	return nil
}

func (s *fakeStore) List(ctx context.Context, sessionID string) ([]rules.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []rules.Document
	for _, r := range s.rows {
		if r.SessionID == "" || r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func newTestServer(t *testing.T, store RuleStore, engine Retriever) *Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{Rules: store, Engine: engine})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return srv
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	tests := []struct {
		name string
		cfg  ServerConfig
	}{
		{name: "missing store", cfg: ServerConfig{Engine: newFakeEngine()}},
		{name: "missing engine", cfg: ServerConfig{Rules: &fakeStore{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewServer(tt.cfg); err == nil {
				t.Error("NewServer accepted incomplete config")
			}
		})
	}
}

func TestServer_UnknownRouteIs404(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, newFakeEngine())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/nope", nil)
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != 404 {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, newFakeEngine())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestServer_NewSession(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, newFakeEngine())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/session", nil)
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != 201 {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["session_id"] == "" {
		t.Error("session_id missing from response")
	}
}

var errTest = errors.New("test failure")
