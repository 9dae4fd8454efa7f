// Package hubone holds an authenticated web admin session against a
// Plusnet Hub One router.
package hubone

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	adminPath       = "/index.cgi"
	statusPageQuery = "?active_page=9143"
	loginPageID     = "9148"

	sessionCookieName = "rg_cookie_session_id"

	sessionLimitMarker = "No more than 100 sessions at a time are allowed. Please wait until open sessions expire."

	// Present on the login form, absent once the session is authorized.
	loginFormMarker = "password protected"

	// Bounds each cycle's worst case; the router is on the local network.
	requestTimeout = 3 * time.Second
)

// ErrSessionLimit is returned by Login when the router refuses to open
// another session. Only waiting for open sessions to expire resolves
// it, so callers treat this as fatal.
var ErrSessionLimit = errors.New("router session limit reached")

// Client owns the session cookie and the tokens needed to authenticate
// against the router's admin interface. Not safe for concurrent use;
// the collection loop is its only caller.
type Client struct {
	password string
	base     *url.URL
	client   *http.Client
}

func New(routerAddr, password string) (*Client, error) {
	base, err := url.Parse("http://" + routerAddr + adminPath)
	if err != nil {
		return nil, errors.Wrap(err, "router address")
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	return &Client{
		password: password,
		base:     base,
		client: &http.Client{
			Jar:     jar,
			Timeout: requestTimeout,
		},
	}, nil
}

// Login authorizes the session cookie. An unauthenticated fetch of the
// status page yields the login form with its per-session auth_key and
// post_token; the login POST carries those back along with the md5 of
// the password concatenated with the auth key.
func (c *Client) Login(ctx context.Context) error {
	log := logrus.WithField("action", "login")

	body, err := c.get(ctx, statusPageQuery)
	if err != nil {
		return errors.Wrap(err, "fetch login form")
	}

	if strings.Contains(body, sessionLimitMarker) {
		return ErrSessionLimit
	}

	// An authorized session gets the status page back instead of the
	// login form; there is nothing to submit. Login is called both at
	// startup and by the collection loop, so this must be idempotent.
	if !strings.Contains(body, loginFormMarker) {
		log.WithField("cookie", c.SessionCookie()).Info("session already authorized")
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "parse login form")
	}

	authKey, err := hiddenInput(doc, "auth_key")
	if err != nil {
		return err
	}
	postToken, err := hiddenInput(doc, "post_token")
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("active_page", loginPageID)
	form.Set("mimic_button_field", "submit_button_login_submit: ..")
	form.Set("post_token", postToken)
	form.Set("auth_key", authKey)
	form.Set("md5_pass", credentialHash(c.password, authKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "submit login form")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("login rejected with status %d", resp.StatusCode)
	}

	log.WithField("cookie", c.SessionCookie()).Info("session authorized")
	return nil
}

// StatusPage fetches the connection information page over the current
// session and returns the raw body.
func (c *Client) StatusPage(ctx context.Context) (string, error) {
	return c.get(ctx, statusPageQuery)
}

// SessionCookie reports the router's current session cookie value, for
// log lines.
func (c *Client) SessionCookie() string {
	for _, cookie := range c.client.Jar.Cookies(c.base) {
		if cookie.Name == sessionCookieName {
			return cookie.Value
		}
	}
	return ""
}

func (c *Client) get(ctx context.Context, query string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.String()+query, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read response")
	}
	return string(body), nil
}

func hiddenInput(doc *goquery.Document, name string) (string, error) {
	value, ok := doc.Find(fmt.Sprintf("input[name=%q]", name)).Attr("value")
	if !ok {
		return "", errors.Errorf("login form is missing the %s input", name)
	}
	return value, nil
}

func credentialHash(password, authKey string) string {
	sum := md5.Sum([]byte(password + authKey))
	return hex.EncodeToString(sum[:])
}
