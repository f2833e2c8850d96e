package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// StubResponse is a canned reply for Stub
type StubResponse struct {
	StatusCode int
	Body       []byte
	Err        error
}

// Stub is an in-memory Fetcher. URLs without a canned reply get a 404.
type Stub struct {
	mu        sync.Mutex
	responses map[string]StubResponse
	calls     []string
}

// NewStub creates an empty stub fetcher
func NewStub() *Stub {
	return &Stub{responses: make(map[string]StubResponse)}
}

// Serve registers a 200 reply with body for url
func (s *Stub) Serve(url string, body []byte) {
	s.Respond(url, StubResponse{StatusCode: http.StatusOK, Body: body})
}

// Respond registers an arbitrary reply for url
func (s *Stub) Respond(url string, resp StubResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[url] = resp
}

// Calls returns the URLs fetched so far, in order
func (s *Stub) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// Get implements Fetcher
func (s *Stub) Get(ctx context.Context, url string, _ time.Duration) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.calls = append(s.calls, url)
	resp, ok := s.responses[url]
	s.mu.Unlock()

	if !ok {
		resp = StubResponse{StatusCode: http.StatusNotFound}
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Status:     fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		Body:       io.NopCloser(bytes.NewReader(resp.Body)),
	}, nil
}

var _ Fetcher = (*Stub)(nil)
