package chrome

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediacrawl/pkg/browser"
	"mediacrawl/pkg/logger"
)

const threadPage = `<html><body>
<a href="logout.php?s=1">Log out</a>
<blockquote class="postcontent restore">
  <img src="/img/one.jpg">
  <video src="//cdn.invalid/clip.mp4"></video>
</blockquote>
</body></html>`

// requireChrome turns a missing browser into a failure; set by the chrome
// build tag
var requireChrome = false

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	found := false
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			found = true
			break
		}
	}
	if !found {
		if requireChrome {
			t.Fatal("no Chrome binary on PATH")
		}
		t.Skip("no Chrome binary on PATH")
	}

	r, err := New(context.Background(), Options{Headless: true, NavigateTimeout: 20 * time.Second}, logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRendererExtractsAttributes(t *testing.T) {
	r := newTestRenderer(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(threadPage))
	}))
	defer srv.Close()

	ctx := context.Background()
	require.NoError(t, r.Navigate(ctx, srv.URL+"/thread"))

	containers, err := r.WaitForSelector(ctx, "blockquote.postcontent.restore", 5*time.Second)
	require.NoError(t, err)
	require.Len(t, containers, 1)

	imgs, err := containers[0].FindAll(ctx, "img")
	require.NoError(t, err)
	require.Len(t, imgs, 1)
	src, ok := imgs[0].Attribute("src")
	assert.True(t, ok)
	assert.Equal(t, srv.URL+"/img/one.jpg", src)

	videos, err := containers[0].FindAll(ctx, "video")
	require.NoError(t, err)
	require.Len(t, videos, 1)
	src, ok = videos[0].Attribute("src")
	assert.True(t, ok)
	assert.Equal(t, "http://cdn.invalid/clip.mp4", src)
	_, ok = videos[0].Attribute("poster")
	assert.False(t, ok)

	sources, err := containers[0].FindAll(ctx, "source")
	require.NoError(t, err)
	assert.Empty(t, sources)

	found, err := r.PageContainsText(ctx, "logout.php")
	require.NoError(t, err)
	assert.True(t, found)

	_, err = r.WaitForSelector(ctx, "div.missing", 200*time.Millisecond)
	assert.True(t, errors.Is(err, browser.ErrTimeout))
}
