package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franz/spreadred/internal/util"
)

const mockBase = "https://tracker.test/"

const torrentPayload = `{"group":{"id":7,"name":"Album","categoryId":1},"torrent":{"id":12345,"format":"FLAC"}}`

// fakeTracker is a minimal ajax.php/login.php implementation
type fakeTracker struct {
	mu       sync.Mutex
	loginOK  bool
	authKey  string
	requests []string
	starts   []time.Time
	logouts  []string
}

func (f *fakeTracker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.starts = append(f.starts, time.Now())
	f.requests = append(f.requests, r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery)
	f.mu.Unlock()

	switch r.URL.Path {
	case "/login.php":
		if r.Method != http.MethodPost || r.FormValue("username") != "alice" || r.FormValue("password") != "secret" || !f.loginOK {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "abc", Path: "/"})
	case "/ajax.php":
		if c, err := r.Cookie(SessionCookie); err != nil || c.Value != "abc" {
			http.Redirect(w, r, "/login.php", http.StatusFound)
			return
		}
		switch r.URL.Query().Get("action") {
		case "index":
			fmt.Fprintf(w, `{"status":"success","response":{"username":"alice","authkey":%q}}`, f.authKey)
		case "torrent":
			if r.URL.Query().Get("id") == "12345" {
				fmt.Fprintf(w, `{"status":"success","response":%s}`, torrentPayload)
				return
			}
			fmt.Fprint(w, `{"status":"failure","error":"bad id parameter"}`)
		}
	case "/logout.php":
		f.mu.Lock()
		f.logouts = append(f.logouts, r.URL.Query().Get("auth"))
		f.mu.Unlock()
	}
}

func newFakeTracker(t *testing.T, loginOK bool, authKey string) (*fakeTracker, *httptest.Server) {
	t.Helper()
	f := &fakeTracker{loginOK: loginOK, authKey: authKey}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func fastOptions(baseURL string) *Options {
	return &Options{
		BaseURL:     baseURL,
		MinInterval: 10 * time.Millisecond,
		Retry:       &util.RetryConfig{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond},
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Credentials{Username: "alice"}, fastOptions(mockBase))
	require.Error(t, err)

	var le *LoginError
	require.ErrorAs(t, err, &le)
	assert.ErrorIs(t, err, util.ErrInvalidConfig)
}

func TestCredentialLogin(t *testing.T) {
	f, srv := newFakeTracker(t, true, "k1")
	ctx := context.Background()

	client, err := New(ctx, Credentials{Username: "alice", Password: "secret"}, fastOptions(srv.URL))
	require.NoError(t, err)

	raw, err := client.FetchTorrent(ctx, 12345)
	require.NoError(t, err)
	assert.JSONEq(t, torrentPayload, string(raw))

	require.NoError(t, client.Logout(ctx))
	assert.Equal(t, []string{"k1"}, f.logouts)

	assert.Equal(t, []string{
		"POST /login.php?",
		"GET /ajax.php?action=index",
		"GET /ajax.php?action=torrent&id=12345",
		"GET /logout.php?auth=k1",
	}, f.requests)
}

func TestCredentialLoginRejected(t *testing.T) {
	_, srv := newFakeTracker(t, false, "k1")

	_, err := New(context.Background(), Credentials{Username: "alice", Password: "secret"}, fastOptions(srv.URL))
	require.Error(t, err)

	var le *LoginError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, http.StatusForbidden, le.StatusCode)
}

func TestCredentialLoginMissingAuthKey(t *testing.T) {
	_, srv := newFakeTracker(t, true, "")

	_, err := New(context.Background(), Credentials{Username: "alice", Password: "secret"}, fastOptions(srv.URL))

	var le *LoginError
	require.ErrorAs(t, err, &le)
	assert.Contains(t, le.Error(), "authkey")
}

func TestPasswordPreferredOverSession(t *testing.T) {
	f, srv := newFakeTracker(t, true, "k1")

	_, err := New(context.Background(), Credentials{Username: "alice", Password: "secret", Session: "stale"}, fastOptions(srv.URL))
	require.NoError(t, err)
	require.NotEmpty(t, f.requests)
	assert.Equal(t, "POST /login.php?", f.requests[0])
}

func TestSessionLoginMakesNoRequest(t *testing.T) {
	mt := httpmock.NewMockTransport()
	var gotCookie string
	mt.RegisterResponder(http.MethodGet, `=~^https://tracker\.test/ajax\.php`,
		func(req *http.Request) (*http.Response, error) {
			if c, err := req.Cookie(SessionCookie); err == nil {
				gotCookie = c.Value
			}
			return httpmock.NewStringResponse(http.StatusOK, `{"status":"success","response":`+torrentPayload+`}`), nil
		})

	opts := fastOptions(mockBase)
	opts.HTTPClient = &http.Client{Transport: mt}
	ctx := context.Background()

	client, err := New(ctx, Credentials{Session: "tok"}, opts)
	require.NoError(t, err)
	assert.Equal(t, 0, mt.GetTotalCallCount())

	raw, err := client.FetchTorrent(ctx, 12345)
	require.NoError(t, err)
	assert.JSONEq(t, torrentPayload, string(raw))
	assert.Equal(t, "tok", gotCookie)

	require.NoError(t, client.Logout(ctx))
	assert.Equal(t, 1, mt.GetTotalCallCount())
}

func TestFetchTorrentFailureStatus(t *testing.T) {
	_, srv := newFakeTracker(t, true, "k1")
	ctx := context.Background()

	client, err := New(ctx, Credentials{Username: "alice", Password: "secret"}, fastOptions(srv.URL))
	require.NoError(t, err)

	_, err = client.FetchTorrent(ctx, 999)
	require.Error(t, err)

	var re *RequestError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, int64(999), re.TorrentID)
	assert.Equal(t, "bad id parameter", re.Message)
	assert.ErrorIs(t, err, ErrAPIFailure)
}

func TestFetchTorrentTransportError(t *testing.T) {
	mt := httpmock.NewMockTransport()
	mt.RegisterResponder(http.MethodGet, `=~^https://tracker\.test/ajax\.php`,
		httpmock.NewErrorResponder(errors.New("connection reset")))

	opts := fastOptions(mockBase)
	opts.HTTPClient = &http.Client{Transport: mt}
	ctx := context.Background()

	client, err := New(ctx, Credentials{Session: "tok"}, opts)
	require.NoError(t, err)

	_, err = client.FetchTorrent(ctx, 1)
	var re *RequestError
	require.ErrorAs(t, err, &re)
	assert.Contains(t, re.Error(), "connection reset")
	assert.NotErrorIs(t, err, ErrAPIFailure)
	assert.Equal(t, 2, mt.GetTotalCallCount(), "transport errors are retried")
}

func TestFetchTorrentUndecodableBody(t *testing.T) {
	mt := httpmock.NewMockTransport()
	mt.RegisterResponder(http.MethodGet, `=~^https://tracker\.test/ajax\.php`,
		httpmock.NewStringResponder(http.StatusBadGateway, "<html>bad gateway</html>"))

	opts := fastOptions(mockBase)
	opts.HTTPClient = &http.Client{Transport: mt}
	ctx := context.Background()

	client, err := New(ctx, Credentials{Session: "tok"}, opts)
	require.NoError(t, err)

	_, err = client.FetchTorrent(ctx, 1)
	var re *RequestError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusBadGateway, re.StatusCode)
}

func TestExpiredSessionRedirectIsNotFollowed(t *testing.T) {
	f, srv := newFakeTracker(t, true, "k1")
	ctx := context.Background()

	client, err := New(ctx, Credentials{Session: "expired"}, fastOptions(srv.URL))
	require.NoError(t, err)

	_, err = client.FetchTorrent(ctx, 12345)
	var re *RequestError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusFound, re.StatusCode)
	assert.Len(t, f.requests, 1)
}

func TestRequestsAreSpacedByDefaultInterval(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping rate limit test in short mode")
	}

	f, srv := newFakeTracker(t, true, "k1")
	ctx := context.Background()

	client, err := New(ctx, Credentials{Session: "abc"}, &Options{BaseURL: srv.URL})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := client.FetchTorrent(ctx, 12345)
		require.NoError(t, err)
	}

	require.Len(t, f.starts, 2)
	assert.GreaterOrEqual(t, f.starts[1].Sub(f.starts[0]), MinInterval)
}

func TestRateLimitWaitHonoursContext(t *testing.T) {
	_, srv := newFakeTracker(t, true, "k1")

	client, err := New(context.Background(), Credentials{Session: "abc"}, &Options{BaseURL: srv.URL, MinInterval: time.Hour})
	require.NoError(t, err)

	_, err = client.FetchTorrent(context.Background(), 12345)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = client.FetchTorrent(ctx, 12345)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
