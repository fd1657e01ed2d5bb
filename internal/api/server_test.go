package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vlaship/rex/internal/ingest"
	"github.com/vlaship/rex/internal/log"
)

type mockEnqueuer struct {
	accept bool
	last   []ingest.Item
}

func (m *mockEnqueuer) Enqueue(items []ingest.Item) bool {
	m.last = items
	return m.accept
}

func newFullServer(t *testing.T, enq Enqueuer) *Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Logger:   log.NewNop(),
		Answerer: &mockAnswerer{},
		Sessions: &mockSessionStore{},
		Ingest:   enq,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

func TestNewServer_Validation(t *testing.T) {
	if _, err := NewServer(ServerConfig{Sessions: &mockSessionStore{}}); err == nil {
		t.Error("missing answerer accepted")
	}
	if _, err := NewServer(ServerConfig{Answerer: &mockAnswerer{}}); err == nil {
		t.Error("missing session store accepted")
	}
}

func TestHealth(t *testing.T) {
	srv := newFullServer(t, &mockEnqueuer{accept: true})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestReady_NilPoolDegradesToLiveness(t *testing.T) {
	srv := newFullServer(t, &mockEnqueuer{accept: true})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestIngest_Accepted(t *testing.T) {
	enq := &mockEnqueuer{accept: true}
	srv := newFullServer(t, enq)

	body := `[{"content":"labradors are friendly","metadata":{"dogId":"42"}}]`
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(enq.last) != 1 || enq.last[0].Text() != "labradors are friendly" {
		t.Errorf("enqueued = %+v", enq.last)
	}
	if !strings.Contains(rec.Body.String(), `"queued":1`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestIngest_NonStringContentIsCoerced(t *testing.T) {
	enq := &mockEnqueuer{accept: true}
	srv := newFullServer(t, enq)

	body := `[{"content":42},{"content":{"name":"Buddy","age":3}}]`
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(enq.last) != 2 {
		t.Fatalf("enqueued %d items, want 2", len(enq.last))
	}
	if got := enq.last[0].Text(); got != "42" {
		t.Errorf("number content = %q, want \"42\"", got)
	}
	if got := enq.last[1].Text(); !strings.Contains(got, `"name":"Buddy"`) {
		t.Errorf("object content = %q, want JSON text", got)
	}
}

func TestIngest_QueueFull(t *testing.T) {
	srv := newFullServer(t, &mockEnqueuer{accept: false})

	body := `[{"content":"x"}]`
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestIngest_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `[{"content":`},
		{"not an array", `{"content":"x"}`},
		{"empty batch", `[]`},
		{"blank content", `[{"content":""}]`},
		{"null content", `[{"metadata":{"k":"v"}}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newFullServer(t, &mockEnqueuer{accept: true})
			req := httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestIngest_NotRegisteredWithoutPipeline(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Logger:   log.NewNop(),
		Answerer: &mockAnswerer{},
		Sessions: &mockSessionStore{},
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(`[{"content":"x"}]`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
