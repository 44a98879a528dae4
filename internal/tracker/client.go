package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/franz/spreadred/internal/util"
)

const (
	// DefaultBaseURL is the tracker the catalog is built against
	DefaultBaseURL = "https://redacted.ch/"

	// UserAgent identifies this application to the tracker
	UserAgent = "spreadred/1.1 (https://github.com/franz/spreadred)"

	// MinInterval is the minimum spacing between API calls required by the
	// tracker's rate policy, measured from the end of the previous call
	MinInterval = 2 * time.Second

	// SessionCookie is the cookie that carries an authenticated session
	SessionCookie = "session"
)

// Credentials selects the login strategy: Username and Password post a login
// form, Session installs an existing session cookie. The password pair wins
// when both are present.
type Credentials struct {
	Username string
	Password string
	Session  string
}

func (c Credentials) hasPassword() bool {
	return c.Username != "" && c.Password != ""
}

// Options tunes the client; the zero value talks to DefaultBaseURL
type Options struct {
	BaseURL     string
	HTTPClient  *http.Client
	MinInterval time.Duration
	UserAgent   string

	// Retry governs API calls that fail in transit; nil uses
	// util.DefaultRetryConfig. Every attempt is rate limited.
	Retry *util.RetryConfig
}

// Client owns one authenticated tracker session and spaces its requests
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	userAgent  string
	interval   time.Duration
	retry      *util.RetryConfig
	creds      Credentials
	authKey    string

	mu          sync.Mutex
	lastRequest time.Time
}

// envelope is the JSON wrapper around every ajax.php response
type envelope struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
	Error    string          `json:"error"`
}

type response struct {
	status int
	body   []byte
}

// New creates a client and logs in. Any failure is a *LoginError.
func New(ctx context.Context, creds Credentials, opts *Options) (*Client, error) {
	if opts == nil {
		opts = &Options{}
	}
	if !creds.hasPassword() && creds.Session == "" {
		return nil, &LoginError{Err: fmt.Errorf("%w: username and password, or a session, is required", util.ErrInvalidConfig)}
	}

	raw := opts.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, &LoginError{Err: fmt.Errorf("%w: bad tracker URL %q: %v", util.ErrInvalidConfig, raw, err)}
	}

	// Work on a copy so the jar and redirect policy stay private
	hc := &http.Client{Timeout: 30 * time.Second}
	if opts.HTTPClient != nil {
		copied := *opts.HTTPClient
		hc = &copied
	}
	hc.CheckRedirect = checkRedirect

	c := &Client{
		baseURL:    base,
		httpClient: hc,
		userAgent:  opts.UserAgent,
		interval:   opts.MinInterval,
		retry:      opts.Retry,
		creds:      creds,
	}
	if c.userAgent == "" {
		c.userAgent = UserAgent
	}
	if c.interval <= 0 {
		c.interval = MinInterval
	}
	if c.retry == nil {
		c.retry = util.DefaultRetryConfig()
	}

	if err := c.login(ctx); err != nil {
		return nil, err
	}

	return c, nil
}

// checkRedirect stops at API redirects; an expired session bounces ajax.php
// to the login page, which must surface as a failed request.
func checkRedirect(req *http.Request, via []*http.Request) error {
	if strings.HasSuffix(via[0].URL.Path, "/ajax.php") {
		return http.ErrUseLastResponse
	}
	if len(via) >= 10 {
		return errors.New("stopped after 10 redirects")
	}
	return nil
}

func (c *Client) login(ctx context.Context) error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return &LoginError{Err: err}
	}
	c.httpClient.Jar = jar

	if !c.creds.hasPassword() {
		jar.SetCookies(c.baseURL, []*http.Cookie{{Name: SessionCookie, Value: c.creds.Session}})
		util.DebugLog("Tracker: using stored session cookie")
		return nil
	}

	util.DebugLog("Tracker: logging in as %s", c.creds.Username)

	form := url.Values{
		"username": {c.creds.Username},
		"password": {c.creds.Password},
	}
	status, _, err := c.do(ctx, http.MethodPost, "login.php", nil, form)
	if err != nil {
		return &LoginError{Err: err}
	}
	if status != http.StatusOK {
		return &LoginError{StatusCode: status}
	}

	index, err := c.request(ctx, "index", nil)
	if err != nil {
		return &LoginError{StatusCode: status, Err: err}
	}

	var account struct {
		AuthKey string `json:"authkey"`
	}
	if err := json.Unmarshal(index, &account); err != nil {
		return &LoginError{StatusCode: status, Err: fmt.Errorf("failed to decode account info: %w", err)}
	}
	if account.AuthKey == "" {
		return &LoginError{StatusCode: status, Err: errors.New("account info has no authkey")}
	}
	c.authKey = account.AuthKey

	return nil
}

// FetchTorrent returns the raw "response" payload of the torrent action.
// Failures are *RequestError.
func (c *Client) FetchTorrent(ctx context.Context, torrentID int64) (json.RawMessage, error) {
	util.DebugLog("Tracker API: fetching torrent %d", torrentID)

	payload, err := c.request(ctx, "torrent", url.Values{"id": {strconv.FormatInt(torrentID, 10)}})
	if err != nil {
		var re *RequestError
		if errors.As(err, &re) {
			re.TorrentID = torrentID
		}
		return nil, err
	}
	return payload, nil
}

// Logout ends a password-based session. Session-cookie clients keep their
// cookie valid and do nothing.
func (c *Client) Logout(ctx context.Context) error {
	if !c.creds.hasPassword() || c.authKey == "" {
		return nil
	}

	status, _, err := c.do(ctx, http.MethodGet, "logout.php", url.Values{"auth": {c.authKey}}, nil)
	if err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("logout failed: unexpected status code %d", status)
	}
	c.authKey = ""
	return nil
}

// request calls ajax.php and unwraps the JSON envelope
func (c *Client) request(ctx context.Context, action string, params url.Values) (json.RawMessage, error) {
	query := url.Values{"action": {action}}
	for k, v := range params {
		query[k] = v
	}

	reply, err := util.RetryWithBackoff(ctx, c.retry, func() (response, error) {
		status, body, err := c.do(ctx, http.MethodGet, "ajax.php", query, nil)
		return response{status: status, body: body}, err
	}, "ajax.php?action="+action)
	if err != nil {
		return nil, &RequestError{Action: action, Err: err}
	}
	status, body := reply.status, reply.body

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &RequestError{Action: action, StatusCode: status, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if env.Status != "success" {
		return nil, &RequestError{Action: action, StatusCode: status, Message: env.Error}
	}

	return env.Response, nil
}

// do performs one rate-limited HTTP round trip and returns the status code
// and body. form, when non-nil, is posted url-encoded.
func (c *Client) do(ctx context.Context, method, path string, query, form url.Values) (int, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.waitForRateLimit(ctx); err != nil {
		return 0, nil, err
	}
	defer func() { c.lastRequest = time.Now() }()

	u := c.baseURL.ResolveReference(&url.URL{Path: path})
	u.RawQuery = query.Encode()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Cache-Control", "max-age=0")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, data, nil
}

// waitForRateLimit blocks until the minimum interval since the previous
// request has passed
func (c *Client) waitForRateLimit(ctx context.Context) error {
	if c.lastRequest.IsZero() {
		return nil
	}

	wait := c.interval - time.Since(c.lastRequest)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
