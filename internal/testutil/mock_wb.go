// Package testutil provides testing utilities for the price export client.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock API endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockWB is a configurable mock Wildberries API server for testing. It
// stands in for both the content host and the discounts-prices host.
type MockWB struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	RequestBodies     [][]byte
	LastRequestHeader http.Header
}

// NewMockWB creates a new mock API server.
func NewMockWB() *MockWB {
	mock := &MockWB{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		mock.mu.Lock()
		mock.RequestCount++
		mock.RequestBodies = append(mock.RequestBodies, body)
		mock.LastRequestHeader = r.Header.Clone()
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockWB) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockWB) Close() {
	m.server.Close()
}

// Reset clears all tracking state.
func (m *MockWB) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.RequestBodies = nil
	m.LastRequestHeader = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockWB) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockWB) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockWB) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetRequestBodies returns the recorded request bodies.
func (m *MockWB) GetRequestBodies() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bodies := make([][]byte, len(m.RequestBodies))
	copy(bodies, m.RequestBodies)
	return bodies
}

// defaultHandler answers unconfigured paths with a 404.
func (m *MockWB) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"error": "unknown endpoint"}`))
}

// NewListGoodsResponse builds a 200 response with the nested listGoods
// envelope around the given items JSON.
func NewListGoodsResponse(itemsJSON string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"data": {"listGoods": ` + itemsJSON + `}}`,
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse(retryAfter string) MockResponse {
	headers := map[string]string{}
	if retryAfter != "" {
		headers["Retry-After"] = retryAfter
	}
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "too many requests"}`,
		Headers:    headers,
	}
}

// NewBadRequestResponse creates a 400 Bad Request response.
func NewBadRequestResponse(detail string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusBadRequest,
		Body:       `{"errorText": "` + detail + `"}`,
	}
}
