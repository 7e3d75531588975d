package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/mselser95/vault-factory/pkg/types"
)

// MockJSONAPI is a mock HTTP server returning canned JSON bodies by path.
// It stands in for both the Curve registry and the yDaemon catalog.
type MockJSONAPI struct {
	*httptest.Server
	bodies map[string]string
	hits   map[string]int
	status int
	mu     sync.RWMutex
}

// NewMockJSONAPI creates a new mock API serving bodies keyed by URL path.
func NewMockJSONAPI(bodies map[string]string) *MockJSONAPI {
	mock := &MockJSONAPI{
		bodies: bodies,
		hits:   make(map[string]int),
		status: http.StatusOK,
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		defer mock.mu.Unlock()

		mock.hits[r.URL.Path]++

		body, ok := mock.bodies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(mock.status)
		_, _ = w.Write([]byte(body))
	})

	mock.Server = httptest.NewServer(handler)
	return mock
}

// SetBody replaces the body served for path.
func (m *MockJSONAPI) SetBody(path string, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bodies[path] = body
}

// SetStatus changes the status code of every response.
func (m *MockJSONAPI) SetStatus(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
}

// Hits returns how many requests were made for path.
func (m *MockJSONAPI) Hits(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hits[path]
}

// MockStorage is an in-memory submission ledger for testing.
type MockStorage struct {
	Submissions []*types.SubmissionRecord
	Err         error
	mu          sync.Mutex
}

// NewMockStorage creates a new mock storage.
func NewMockStorage() *MockStorage {
	return &MockStorage{
		Submissions: make([]*types.SubmissionRecord, 0),
	}
}

// StoreSubmission stores a submission record in memory.
func (m *MockStorage) StoreSubmission(ctx context.Context, record *types.SubmissionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}

	m.Submissions = append(m.Submissions, record)
	return nil
}

// Close is a no-op for mock storage.
func (m *MockStorage) Close() error {
	return nil
}

// GetSubmissions returns a copy of all stored records.
func (m *MockStorage) GetSubmissions() []*types.SubmissionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*types.SubmissionRecord, len(m.Submissions))
	copy(result, m.Submissions)
	return result
}
