package session

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediacrawl/pkg/browser/fakedom"
	errs "mediacrawl/pkg/errors"
	"mediacrawl/pkg/logger"
)

const (
	loginURL = "https://forum.example.com/login.php"
	homeURL  = "https://forum.example.com/index.php"
)

const loginPage = `<html><body>
<form id="navbar_loginform" action="login.php?do=login">
  <input id="navbar_username" name="vb_login_username">
  <input id="navbar_password_hint" type="text" value="Password">
  <input id="navbar_password" name="vb_login_password" type="password">
  <input type="hidden" name="vb_login_md5password">
  <input type="hidden" name="vb_login_md5password_utf">
</form>
</body></html>`

const homePage = `<html><body>Welcome, alice. <a href="login.php?do=logout">Log out</a></body></html>`

func newRenderer() *fakedom.Renderer {
	r := fakedom.New()
	r.SetPage(loginURL, loginPage)
	r.SetPage(homeURL, homePage)
	return r
}

func newManager(log logger.Logger) *Manager {
	return NewManager(Credentials{
		LoginURL: loginURL,
		Username: "alice",
		Password: "secret",
	}, Options{}, log)
}

type cookieRecorder struct {
	url     string
	cookies []*http.Cookie
}

func (c *cookieRecorder) SetCookies(rawURL string, cookies []*http.Cookie) error {
	c.url = rawURL
	c.cookies = cookies
	return nil
}

func TestPasswordDigest(t *testing.T) {
	assert.Equal(t, "5ebe2294ecd0e0f08eab7690d2a6ee69", PasswordDigest("secret"))
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", PasswordDigest(""))
}

func TestEstablishFirstAttempt(t *testing.T) {
	r := newRenderer()
	r.OnSubmit = func(r *fakedom.Renderer, _ string) { r.Show(homeURL) }

	tl := logger.NewTestLogger()
	m := newManager(tl)
	require.NoError(t, m.Establish(context.Background(), r))

	assert.Equal(t, 1, r.NavigationCount(loginURL))
	assert.Equal(t, "alice", r.Fills["#navbar_username"])
	assert.Equal(t, "secret", r.Fills["#navbar_password"])
	assert.Equal(t, []string{"#navbar_password_hint"}, r.Clicks)
	assert.Equal(t, []string{"#navbar_loginform"}, r.Submits)
	assert.Equal(t, []string{
		`document.getElementsByName("vb_login_md5password")[0].value = "5ebe2294ecd0e0f08eab7690d2a6ee69";`,
		`document.getElementsByName("vb_login_md5password_utf")[0].value = "5ebe2294ecd0e0f08eab7690d2a6ee69";`,
	}, r.Scripts)
	assert.True(t, tl.HasMessage("Session established"))
}

func TestEstablishRetriesUntilAccepted(t *testing.T) {
	r := newRenderer()
	r.FailNavigate(loginURL, errs.New(errs.ErrorTypeNavigation, "net::ERR_CONNECTION_RESET"))

	submits := 0
	r.OnSubmit = func(r *fakedom.Renderer, _ string) {
		submits++
		if submits >= 3 {
			r.Show(homeURL)
		}
	}

	m := newManager(nil)
	require.NoError(t, m.Establish(context.Background(), r))

	assert.Equal(t, 3, submits)
	// one failed navigation plus three form attempts
	assert.Equal(t, 4, r.NavigationCount(loginURL))
}

// maintenanceRenderer serves a page without the login form for the first
// few navigations
type maintenanceRenderer struct {
	*fakedom.Renderer
	remaining int
}

func (m *maintenanceRenderer) Navigate(ctx context.Context, url string) error {
	if m.remaining > 0 {
		m.remaining--
		if m.remaining == 0 {
			m.SetPage(loginURL, loginPage)
		}
	}
	return m.Renderer.Navigate(ctx, url)
}

func TestEstablishMissingFormRetries(t *testing.T) {
	inner := newRenderer()
	inner.SetPage(loginURL, `<html><body>maintenance</body></html>`)
	inner.OnSubmit = func(r *fakedom.Renderer, _ string) { r.Show(homeURL) }
	r := &maintenanceRenderer{Renderer: inner, remaining: 3}

	require.NoError(t, newManager(nil).Establish(context.Background(), r))
	assert.Equal(t, 3, inner.NavigationCount(loginURL))
	assert.Len(t, inner.Submits, 1)
}

func TestEstablishStopsOnCancel(t *testing.T) {
	r := newRenderer()
	ctx, cancel := context.WithCancel(context.Background())

	submits := 0
	r.OnSubmit = func(_ *fakedom.Renderer, _ string) {
		submits++
		if submits == 5 {
			cancel()
		}
	}

	err := newManager(nil).Establish(ctx, r)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 5, submits)
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	r := newRenderer()
	m := newManager(nil)

	require.NoError(t, r.Navigate(ctx, loginURL))
	assert.False(t, m.Verify(ctx, r))

	r.SetPage("https://forum.example.com/other", `<a href="logout.php?s=1">x</a>`)
	require.NoError(t, r.Navigate(ctx, "https://forum.example.com/other"))
	assert.True(t, m.Verify(ctx, r))

	require.NoError(t, r.Navigate(ctx, homeURL))
	assert.True(t, m.Verify(ctx, r))

	r.Close()
	assert.False(t, m.Verify(ctx, r))
}

func TestEstablishSharesCookies(t *testing.T) {
	r := newRenderer()
	r.OnSubmit = func(r *fakedom.Renderer, _ string) { r.Show(homeURL) }
	r.CookieJar = []*http.Cookie{{Name: "bbsessionhash", Value: "abc"}}

	sink := &cookieRecorder{}
	m := newManager(nil)
	m.SetCookieSink(sink)

	require.NoError(t, m.Establish(context.Background(), r))
	assert.Equal(t, loginURL, sink.url)
	require.Len(t, sink.cookies, 1)
	assert.Equal(t, "bbsessionhash", sink.cookies[0].Name)
}
