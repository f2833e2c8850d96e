package fetcher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "mediacrawl/pkg/errors"
	"mediacrawl/pkg/logger"
)

// mockRoundTripper allows us to intercept HTTP requests
type mockRoundTripper struct {
	handler func(req *http.Request) (*http.Response, error)
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.handler(req)
}

func newTestClient(t *testing.T, handler func(req *http.Request) (*http.Response, error)) *Client {
	t.Helper()
	client, err := NewClient("", logger.NewTestLogger())
	require.NoError(t, err)
	client.httpClient.Transport = &mockRoundTripper{handler: handler}
	return client
}

func TestGetStreamsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.Write([]byte("video-bytes"))
	}))
	defer srv.Close()

	client, err := NewClient("", logger.NewNopLogger())
	require.NoError(t, err)

	resp, err := client.Get(context.Background(), srv.URL+"/clip.mp4", time.Second)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NoError(t, CheckStatus(resp))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "video-bytes", string(body))
}

func TestGetNon2xx(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Status:     "404 Not Found",
			Body:       io.NopCloser(bytes.NewBufferString("")),
			Header:     make(http.Header),
		}, nil
	})

	resp, err := client.Get(context.Background(), "https://cdn.example.com/missing.jpg", time.Second)
	require.NoError(t, err)
	defer resp.Body.Close()

	statusErr := CheckStatus(resp)
	require.Error(t, statusErr)
	assert.Equal(t, errs.ErrorTypeHTTPStatus, errs.Classify(statusErr))

	var typed *errs.Error
	require.True(t, errors.As(statusErr, &typed))
	assert.Equal(t, 404, typed.Code)
	assert.Equal(t, "HTTP 404", typed.Message)
}

func TestGetTransportError(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})

	_, err := client.Get(context.Background(), "https://cdn.example.com/a.jpg", time.Second)
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeTransfer, errs.Classify(err))
}

func TestGetTimeoutCoversBody(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("head"))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client, err := NewClient("", logger.NewNopLogger())
	require.NoError(t, err)

	resp, err := client.Get(context.Background(), srv.URL, 100*time.Millisecond)
	require.NoError(t, err)
	defer resp.Body.Close()

	_, err = io.ReadAll(resp.Body)
	assert.Error(t, err, "reading past the deadline should fail")
}

func TestCookiesAreSent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("bbsessionhash")
		if err != nil {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte(c.Value))
	}))
	defer srv.Close()

	client, err := NewClient("test-agent", logger.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, client.SetCookies(srv.URL, []*http.Cookie{{Name: "bbsessionhash", Value: "abc", Path: "/"}}))
	assert.Len(t, client.Cookies(srv.URL), 1)

	resp, err := client.Get(context.Background(), srv.URL+"/attachment.php", time.Second)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "abc", string(body))
}

func TestSetHeader(t *testing.T) {
	var got string
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		got = req.Header.Get("Referer")
		return &http.Response{StatusCode: 200, Body: io.NopCloser(bytes.NewReader(nil)), Header: make(http.Header)}, nil
	})
	client.SetHeader("Referer", "https://forum.example.com/")

	resp, err := client.Get(context.Background(), "https://cdn.example.com/a.jpg", 0)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "https://forum.example.com/", got)
}

// childCounter is a parent context that tracks how many derived contexts are
// still registered with it. Value hides the embedded cancelCtx so children
// register through AfterFunc.
type childCounter struct {
	context.Context

	mu   sync.Mutex
	live int
}

func (c *childCounter) Value(any) any { return nil }

func (c *childCounter) AfterFunc(f func()) func() bool {
	c.mu.Lock()
	c.live++
	c.mu.Unlock()

	stop := context.AfterFunc(c.Context, f)
	var once sync.Once
	return func() bool {
		once.Do(func() {
			c.mu.Lock()
			c.live--
			c.mu.Unlock()
		})
		return stop()
	}
}

func (c *childCounter) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

func TestGetReleasesRequestContext(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		if req.URL.Path == "/down" {
			return nil, errors.New("connection refused")
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Status:     "200 OK",
			Body:       io.NopCloser(bytes.NewReader([]byte("data"))),
			Header:     make(http.Header),
		}, nil
	})

	base, cancel := context.WithCancel(context.Background())
	defer cancel()
	parent := &childCounter{Context: base}

	for _, timeout := range []time.Duration{time.Second, 0} {
		for i := 0; i < 20; i++ {
			resp, err := client.Get(parent, "https://cdn.example.com/img.jpg", timeout)
			require.NoError(t, err)
			_, err = io.ReadAll(resp.Body)
			require.NoError(t, err)
			require.NoError(t, resp.Body.Close())
		}
		_, err := client.Get(parent, "https://cdn.example.com/down", timeout)
		require.Error(t, err)
	}

	assert.Equal(t, 0, parent.Live(), "every request context must be released")
}

func TestGetRepairsStrayPercent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/a/50%off.jpg", r.URL.Path)
		assert.Equal(t, "/a/50%25off.jpg", r.URL.EscapedPath())
		w.Write([]byte("img"))
	}))
	defer srv.Close()

	client, err := NewClient("", logger.NewNopLogger())
	require.NoError(t, err)

	resp, err := client.Get(context.Background(), srv.URL+"/a/50%off.jpg", time.Second)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NoError(t, CheckStatus(resp))
}

func TestRepairEscapes(t *testing.T) {
	assert.Equal(t, "https://x.com/a/b%20c.jpg?x=1", repairEscapes("https://x.com/a/b%20c.jpg?x=1"))
	assert.Equal(t, "https://x.com/a/50%25off.jpg", repairEscapes("https://x.com/a/50%off.jpg"))
	assert.Equal(t, "https://x.com/%25zz%41", repairEscapes("https://x.com/%zz%41"))
}
