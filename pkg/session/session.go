// Package session logs into the forum and checks that the browser is still
// authenticated.
package session

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"mediacrawl/pkg/browser"
	errs "mediacrawl/pkg/errors"
	"mediacrawl/pkg/logger"
	"mediacrawl/pkg/retry"
)

// ErrLoginRejected is returned by an attempt whose post-login probe failed
var ErrLoginRejected = errors.New("session: login rejected")

// LogoutMarker appears on every page served to a logged-in user
const LogoutMarker = "logout.php"

// Credentials identify the forum account
type Credentials struct {
	LoginURL string
	Username string
	Password string
}

// FormLayout names the login form elements. Selectors are CSS; HashFields
// are input names that receive the MD5 hex digest of the password.
type FormLayout struct {
	Form         string
	Username     string
	PasswordHint string
	Password     string
	HashFields   []string
}

// VBulletinLayout is the navbar login form of vBulletin 4 boards
func VBulletinLayout() FormLayout {
	return FormLayout{
		Form:         "#navbar_loginform",
		Username:     "#navbar_username",
		PasswordHint: "#navbar_password_hint",
		Password:     "#navbar_password",
		HashFields:   []string{"vb_login_md5password", "vb_login_md5password_utf"},
	}
}

// Options holds the login timings
type Options struct {
	FormWait   time.Duration
	Settle     time.Duration
	RetryDelay time.Duration
	Layout     FormLayout
}

// CookieSink receives the browser's cookies after a successful login
type CookieSink interface {
	SetCookies(rawURL string, cookies []*http.Cookie) error
}

// Manager establishes and verifies the authenticated session
type Manager struct {
	creds  Credentials
	opts   Options
	sink   CookieSink
	logger logger.Logger
}

// NewManager creates a session manager
func NewManager(creds Credentials, opts Options, log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if opts.Layout.Form == "" {
		opts.Layout = VBulletinLayout()
	}
	return &Manager{creds: creds, opts: opts, logger: log}
}

// SetCookieSink makes Establish copy the browser's cookies into sink
func (m *Manager) SetCookieSink(sink CookieSink) {
	m.sink = sink
}

// Establish logs in, retrying forever until the probe succeeds. It only
// returns an error when ctx is cancelled.
func (m *Manager) Establish(ctx context.Context, r browser.Renderer) error {
	attempt := 0
	err := retry.Do(func() error {
		attempt++
		logger.LogSessionEvent(m.logger, "login attempt", m.creds.Username, attempt)
		return m.login(ctx, r)
	}, &retry.Config{
		MaxAttempts: 0,
		Backoff:     retry.ConstantBackoff{Delay: m.opts.RetryDelay},
		RetryIf:     func(error) bool { return ctx.Err() == nil },
		Context:     ctx,
		Logger:      m.logger,
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}

	logger.LogSessionEvent(m.logger, "established", m.creds.Username, attempt)
	m.shareCookies(ctx, r)
	return nil
}

func (m *Manager) login(ctx context.Context, r browser.Renderer) error {
	layout := m.opts.Layout

	if err := r.Navigate(ctx, m.creds.LoginURL); err != nil {
		return err
	}
	if _, err := r.WaitForSelector(ctx, layout.Form, m.opts.FormWait); err != nil {
		return fmt.Errorf("login form: %w", err)
	}
	if err := r.Fill(ctx, layout.Username, m.creds.Username); err != nil {
		return err
	}
	if layout.PasswordHint != "" {
		if err := r.Click(ctx, layout.PasswordHint); err != nil {
			return err
		}
	}
	if err := r.Fill(ctx, layout.Password, m.creds.Password); err != nil {
		return err
	}

	digest := PasswordDigest(m.creds.Password)
	for _, name := range layout.HashFields {
		if err := r.RunScript(ctx, hashFieldScript(name, digest)); err != nil {
			return err
		}
	}

	if err := r.Submit(ctx, layout.Form); err != nil {
		return err
	}
	if err := retry.Wait(ctx, m.opts.Settle); err != nil {
		return err
	}

	if !m.Verify(ctx, r) {
		return errs.Wrap(errs.ErrorTypeAuth, ErrLoginRejected, m.creds.Username)
	}
	return nil
}

// Verify probes the current page for signs of a logged-in user. Renderer
// errors count as not logged in.
func (m *Manager) Verify(ctx context.Context, r browser.Renderer) bool {
	for _, needle := range []string{m.creds.Username, LogoutMarker} {
		found, err := r.PageContainsText(ctx, needle)
		if err != nil {
			m.logger.WithError(err).Debug("Session probe failed")
			return false
		}
		if found {
			return true
		}
	}
	return false
}

func (m *Manager) shareCookies(ctx context.Context, r browser.Renderer) {
	if m.sink == nil {
		return
	}
	source, ok := r.(browser.CookieSource)
	if !ok {
		return
	}
	cookies, err := source.Cookies(ctx)
	if err != nil {
		m.logger.WithError(err).Warn("Could not read browser cookies")
		return
	}
	if err := m.sink.SetCookies(m.creds.LoginURL, cookies); err != nil {
		m.logger.WithError(err).Warn("Could not share browser cookies")
		return
	}
	m.logger.DebugWithFields("Shared session cookies", map[string]interface{}{
		"count": len(cookies),
	})
}

// PasswordDigest is the lowercase hex MD5 the forum expects in its hidden
// password fields
func PasswordDigest(password string) string {
	sum := md5.Sum([]byte(password))
	return hex.EncodeToString(sum[:])
}

func hashFieldScript(name, digest string) string {
	return fmt.Sprintf("document.getElementsByName(%q)[0].value = %q;", name, digest)
}
