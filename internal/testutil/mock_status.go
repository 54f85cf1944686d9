// Package testutil provides testing utilities for the statusq tool.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior of the mock endpoint for one identifier.
type MockResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// MockStatusAPI is a configurable mock account-status server for testing.
// It decodes the easy_id from each request body and answers with the
// response configured for that identifier, or a default 200.
type MockStatusAPI struct {
	server    *httptest.Server
	mu        sync.RWMutex
	responses map[string]MockResponse
	fallback  *MockResponse

	// Tracking
	RequestCount int
	SeenIDs      []string
}

// NewMockStatusAPI creates a new mock status server.
func NewMockStatusAPI() *MockStatusAPI {
	mock := &MockStatusAPI{
		responses: make(map[string]MockResponse),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := decodeEasyID(r)

		mock.mu.Lock()
		mock.RequestCount++
		mock.SeenIDs = append(mock.SeenIDs, id)
		mock.mu.Unlock()

		mock.mu.RLock()
		resp, exists := mock.responses[id]
		fallback := mock.fallback
		mock.mu.RUnlock()

		if !exists {
			if fallback != nil {
				resp = *fallback
			} else {
				mock.defaultHandler(w)
				return
			}
		}

		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	}))

	return mock
}

// decodeEasyID extracts the easy_id from a status request body.
// json.Number keeps arbitrary-precision identifiers intact.
func decodeEasyID(r *http.Request) string {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return ""
	}

	var req struct {
		EasyID json.Number `json:"easy_id"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return ""
	}
	return req.EasyID.String()
}

// URL returns the mock server URL.
func (m *MockStatusAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockStatusAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking state.
func (m *MockStatusAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.SeenIDs = nil
}

// SetResponse configures the response for one identifier.
func (m *MockStatusAPI) SetResponse(id string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[id] = resp
}

// SetFallback configures the response for identifiers without an explicit one.
func (m *MockStatusAPI) SetFallback(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &resp
}

// GetRequestCount returns the number of requests the server received.
func (m *MockStatusAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// defaultHandler answers with a typical healthy status payload.
func (m *MockStatusAPI) defaultHandler(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"account_status": "active", "reset_time": 1700000000}`))
}

// NewActiveResponse creates a standard 200 OK status payload response.
func NewActiveResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"account_status": "active", "reset_time": 1700000000}`,
	}
}

// NewErrorResponse creates a non-success response with the given code.
func NewErrorResponse(statusCode int) MockResponse {
	return MockResponse{
		StatusCode: statusCode,
		Body:       `{"error": "rejected"}`,
	}
}
