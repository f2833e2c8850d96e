package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	errs "mediacrawl/pkg/errors"
	"mediacrawl/pkg/logger"
)

// DefaultUserAgent is sent when no user agent is configured
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

// Response is a streamed transfer. The caller must close Body.
type Response struct {
	StatusCode int
	Status     string
	Body       io.ReadCloser
}

// Fetcher transfers a single URL
type Fetcher interface {
	// Get starts a GET of rawURL. timeout bounds the whole transfer,
	// including reading the body.
	Get(ctx context.Context, rawURL string, timeout time.Duration) (*Response, error)
}

// Client is the net/http Fetcher. It keeps a cookie jar so that session
// cookies copied from the browser are sent with media requests.
type Client struct {
	httpClient *http.Client
	jar        http.CookieJar
	headers    map[string]string
	logger     logger.Logger
}

// NewClient creates a fetcher client
func NewClient(userAgent string, log logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &Client{
		httpClient: &http.Client{Jar: jar},
		jar:        jar,
		headers: map[string]string{
			"User-Agent":      userAgent,
			"Accept":          "*/*",
			"Accept-Language": "en-US,en;q=0.9",
		},
		logger: log,
	}, nil
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetCookies stores cookies for the given URL in the client's jar
func (c *Client) SetCookies(rawURL string, cookies []*http.Cookie) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid cookie url: %w", err)
	}
	c.jar.SetCookies(u, cookies)
	return nil
}

// Cookies returns the cookies the jar would send to rawURL
func (c *Client) Cookies(rawURL string) []*http.Cookie {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return c.jar.Cookies(u)
}

// Get implements Fetcher
func (c *Client) Get(ctx context.Context, rawURL string, timeout time.Duration) (*Response, error) {
	var (
		reqCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		reqCtx, cancel = context.WithCancel(ctx)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, repairEscapes(rawURL), nil)
	if err != nil {
		cancel()
		return nil, errs.Wrap(errs.ErrorTypeTransfer, err, "failed to create request")
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		cancel()
		c.logger.DebugWithFields("HTTP request failed", map[string]interface{}{
			"url":      rawURL,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.Wrap(errs.ErrorTypeTransfer, err, "request failed")
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      rawURL,
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       &cancelOnClose{ReadCloser: resp.Body, cancel: cancel},
	}, nil
}

// repairEscapes rewrites a '%' that does not start a valid escape as "%25",
// so links with literal percent signs in their path still resolve. URLs that
// already parse are returned unchanged.
func repairEscapes(rawURL string) string {
	if _, err := url.Parse(rawURL); err == nil {
		return rawURL
	}
	var b strings.Builder
	b.Grow(len(rawURL) + 8)
	for i := 0; i < len(rawURL); i++ {
		if rawURL[i] == '%' && !(i+2 < len(rawURL) && isHex(rawURL[i+1]) && isHex(rawURL[i+2])) {
			b.WriteString("%25")
			continue
		}
		b.WriteByte(rawURL[i])
	}
	return b.String()
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

// cancelOnClose releases the request context when the body is closed
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// CheckStatus returns a typed error for non-2xx responses
func CheckStatus(resp *Response) error {
	if errs.IsSuccessStatus(resp.StatusCode) {
		return nil
	}
	return &errs.Error{
		Type:    errs.ErrorTypeHTTPStatus,
		Code:    resp.StatusCode,
		Message: fmt.Sprintf("HTTP %d", resp.StatusCode),
	}
}
