package testutil

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// MockAPIServer provides a mock sticker API server for testing.
type MockAPIServer struct {
	*httptest.Server
	t        *testing.T
	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	captures []Capture
}

// NewMockServer creates a mock API server.
// The server is automatically closed when the test completes.
func NewMockServer(t *testing.T) *MockAPIServer {
	t.Helper()

	m := &MockAPIServer{
		t:        t,
		handlers: make(map[string]http.HandlerFunc),
	}

	m.Server = httptest.NewServer(http.HandlerFunc(m.handle))
	t.Cleanup(m.Server.Close)
	return m
}

func (m *MockAPIServer) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	m.mu.Lock()
	m.captures = append(m.captures, Capture{
		Method:      r.Method,
		Path:        r.URL.Path,
		Headers:     r.Header.Clone(),
		Body:        body,
		ContentType: r.Header.Get("Content-Type"),
		Timestamp:   time.Now(),
	})
	handler, exists := m.handlers[r.Method+":"+r.URL.Path]
	m.mu.Unlock()

	if exists {
		handler(w, r)
		return
	}

	ReplyError(w, 404, "METHOD_NOT_MOCKED", nil)
}

// OnMethod registers a handler for a specific HTTP method and path.
func (m *MockAPIServer) OnMethod(method, path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[method+":"+path] = handler
}

// On registers a handler for a POST request to path.
func (m *MockAPIServer) On(path string, handler http.HandlerFunc) {
	m.OnMethod(http.MethodPost, path, handler)
}

// OnAPI registers a handler for an API method called with TestToken.
func (m *MockAPIServer) OnAPI(apiMethod string, handler http.HandlerFunc) {
	m.On(SessionPath(apiMethod), handler)
}

// Captures returns all captured requests.
func (m *MockAPIServer) Captures() []Capture {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Capture{}, m.captures...)
}

// CapturesFor returns the captured calls of one API method.
func (m *MockAPIServer) CapturesFor(apiMethod string) []Capture {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Capture
	for i := range m.captures {
		if m.captures[i].APIMethod() == apiMethod {
			out = append(out, m.captures[i])
		}
	}
	return out
}

// LastCapture returns the most recent captured request.
func (m *MockAPIServer) LastCapture() *Capture {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.captures) == 0 {
		return nil
	}
	c := m.captures[len(m.captures)-1]
	return &c
}

// CaptureCount returns the total number of captured requests.
func (m *MockAPIServer) CaptureCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.captures)
}

// ResetCaptures clears captures, keeping handlers.
func (m *MockAPIServer) ResetCaptures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captures = m.captures[:0]
}

// BaseURL returns the server's base URL.
// Use this as the API base URL when creating clients.
func (m *MockAPIServer) BaseURL() string {
	return m.Server.URL
}

// SessionPath returns the request path of apiMethod for TestToken.
func SessionPath(apiMethod string) string {
	return "/session/" + TestToken + "/" + apiMethod
}
