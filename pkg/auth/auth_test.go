package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, baseURL string, tok *oauth2.Token) *Client {
	t.Helper()

	c, err := New(Config{
		ClientID:     "test_client_id",
		ClientSecret: "test_client_secret",
		RedirectURI:  "http://localhost/callback",
		BaseURL:      baseURL,
		Token:        tok,
	}, discardLogger())
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}
	return c
}

// countingTransport fails any request that reaches it, for asserting that
// an operation issued no network call.
type countingTransport struct {
	calls int
}

func (tr *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	tr.calls++
	return nil, fmt.Errorf("unexpected network call")
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(Config{ClientID: "id"}, discardLogger())

	var invalidErr *InvalidRequestError
	if !errors.As(err, &invalidErr) {
		t.Fatalf("expected InvalidRequestError, got %v", err)
	}
}

func TestAuthorizationURL(t *testing.T) {
	c := newTestClient(t, "", nil)

	rawURL, err := c.AuthorizationURL(nil)
	if err != nil {
		t.Fatalf("building authorization url: %v", err)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parsing authorization url: %v", err)
	}
	if got := u.Scheme + "://" + u.Host + u.Path; got != BaseURL+"/oauth2/authorize/" {
		t.Errorf("unexpected endpoint: %s", got)
	}

	q := u.Query()
	for _, param := range []string{"response_type", "client_id", "redirect_uri", "state"} {
		if len(q[param]) != 1 {
			t.Errorf("expected exactly one %s parameter, got %d", param, len(q[param]))
		}
	}
	if q.Get("response_type") != "code" {
		t.Errorf("response_type = %q, want code", q.Get("response_type"))
	}
	if q.Get("client_id") != "test_client_id" {
		t.Errorf("client_id = %q", q.Get("client_id"))
	}

	state := q.Get("state")
	if state == "" {
		t.Fatal("expected non-empty state")
	}
	if c.State() != state {
		t.Errorf("stored state %q does not match url state %q", c.State(), state)
	}

	// A second call overwrites the stored state.
	if _, err := c.AuthorizationURL(nil); err != nil {
		t.Fatalf("second authorization url: %v", err)
	}
	if c.State() == state {
		t.Error("expected a fresh state on the second call")
	}
}

func TestAuthorizationURL_CallerParams(t *testing.T) {
	c := newTestClient(t, "", nil)

	rawURL, err := c.AuthorizationURL(url.Values{
		"state": {"custom_state"},
		"scope": {"read"},
	})
	if err != nil {
		t.Fatalf("building authorization url: %v", err)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parsing authorization url: %v", err)
	}
	q := u.Query()

	if q.Get("state") != "custom_state" {
		t.Errorf("state = %q, want custom_state", q.Get("state"))
	}
	if q.Get("scope") != "read" {
		t.Errorf("scope = %q, want read", q.Get("scope"))
	}
	if c.State() != "custom_state" {
		t.Errorf("stored state = %q, want custom_state", c.State())
	}
}

func TestFetchToken_EmptyCode(t *testing.T) {
	tr := &countingTransport{}
	c, err := New(Config{
		ClientID:     "id",
		ClientSecret: "secret",
		HTTPClient:   &http.Client{Transport: tr},
	}, discardLogger())
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}

	_, err = c.FetchToken(context.Background(), "")

	var invalidErr *InvalidRequestError
	if !errors.As(err, &invalidErr) {
		t.Fatalf("expected InvalidRequestError, got %v", err)
	}
	if tr.calls != 0 {
		t.Errorf("expected no network calls, got %d", tr.calls)
	}
}

func TestFetchToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth2/token/" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "test_client_id" || pass != "test_client_secret" {
			t.Errorf("bad basic auth: %s:%s", user, pass)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "authorization_code" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.PostForm.Get("code"); got != "test_auth_code" {
			t.Errorf("code = %q", got)
		}
		if got := r.PostForm.Get("redirect_uri"); got != "http://localhost/callback" {
			t.Errorf("redirect_uri = %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"access_token": "test_access_token_12345",
			"refresh_token": "test_refresh_token_67890",
			"expires_in": 86400,
			"token_type": "bearer"
		}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)

	tok, err := c.FetchToken(context.Background(), "test_auth_code")
	if err != nil {
		t.Fatalf("fetching token: %v", err)
	}

	if tok.AccessToken != "test_access_token_12345" {
		t.Errorf("access token = %q", tok.AccessToken)
	}
	if tok.RefreshToken != "test_refresh_token_67890" {
		t.Errorf("refresh token = %q", tok.RefreshToken)
	}
	if tok.TokenType != "bearer" {
		t.Errorf("token type = %q", tok.TokenType)
	}

	wantExpiry := time.Now().Add(86400 * time.Second)
	if tok.Expiry.Before(wantExpiry.Add(-time.Minute)) || tok.Expiry.After(wantExpiry.Add(time.Minute)) {
		t.Errorf("expiry = %v, want about %v", tok.Expiry, wantExpiry)
	}

	if c.Token() != tok {
		t.Error("fetched token was not stored as current")
	}
}

func TestFetchToken_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": "invalid_grant"}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)

	_, err := c.FetchToken(context.Background(), "bad_code")

	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	if authErr.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", authErr.StatusCode)
	}
	if len(authErr.Body) == 0 {
		t.Error("expected error body to be captured")
	}
	if c.Token() != nil {
		t.Error("failed exchange must not store a token")
	}
}

func TestFetchToken_UnparseableBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not json at all")
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)

	_, err := c.FetchToken(context.Background(), "some_code")

	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
}

func TestFetchToken_ExpiresIn(t *testing.T) {
	tests := []struct {
		name       string
		expiresIn  string
		wantExpiry bool
	}{
		{"integer", `3600`, true},
		{"numeric string", `"3600"`, true},
		{"non-numeric string", `"soon"`, false},
		{"absent", ``, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body := `{"access_token": "tok", "token_type": "bearer"`
				if tc.expiresIn != "" {
					body += `, "expires_in": ` + tc.expiresIn
				}
				body += `}`
				fmt.Fprint(w, body)
			}))
			defer server.Close()

			c := newTestClient(t, server.URL, nil)

			tok, err := c.FetchToken(context.Background(), "code")
			if err != nil {
				t.Fatalf("fetching token: %v", err)
			}
			if tc.wantExpiry && tok.Expiry.IsZero() {
				t.Error("expected an expiry to be derived")
			}
			if !tc.wantExpiry && !tok.Expiry.IsZero() {
				t.Errorf("expected no expiry, got %v", tok.Expiry)
			}
		})
	}
}

func TestRefreshToken_NoTokenAvailable(t *testing.T) {
	tr := &countingTransport{}
	c, err := New(Config{
		ClientID:     "id",
		ClientSecret: "secret",
		HTTPClient:   &http.Client{Transport: tr},
	}, discardLogger())
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}

	_, err = c.RefreshToken(context.Background(), "")

	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	if tr.calls != 0 {
		t.Errorf("expected no network calls, got %d", tr.calls)
	}
}

func TestRefreshToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.PostForm.Get("refresh_token"); got != "stored_refresh" {
			t.Errorf("refresh_token = %q", got)
		}

		fmt.Fprint(w, `{"access_token": "new_access", "refresh_token": "new_refresh", "token_type": "bearer"}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, &oauth2.Token{
		AccessToken:  "old_access",
		RefreshToken: "stored_refresh",
	})

	tok, err := c.RefreshToken(context.Background(), "")
	if err != nil {
		t.Fatalf("refreshing token: %v", err)
	}
	if tok.AccessToken != "new_access" {
		t.Errorf("access token = %q", tok.AccessToken)
	}
	if c.Token() != tok {
		t.Error("refreshed token was not stored as current")
	}
}

func TestRefreshToken_ExplicitOverridesStored(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		if got := r.PostForm.Get("refresh_token"); got != "explicit_refresh" {
			t.Errorf("refresh_token = %q, want explicit_refresh", got)
		}
		fmt.Fprint(w, `{"access_token": "new_access", "token_type": "bearer"}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, &oauth2.Token{
		AccessToken:  "old_access",
		RefreshToken: "stored_refresh",
	})

	if _, err := c.RefreshToken(context.Background(), "explicit_refresh"); err != nil {
		t.Fatalf("refreshing token: %v", err)
	}
}

// A refresh response without a refresh token replaces the held token as-is;
// the previous refresh token is not carried forward.
func TestRefreshToken_NoCarryForward(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token": "new_access", "token_type": "bearer"}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, &oauth2.Token{
		AccessToken:  "old_access",
		RefreshToken: "stored_refresh",
	})

	tok, err := c.RefreshToken(context.Background(), "")
	if err != nil {
		t.Fatalf("refreshing token: %v", err)
	}
	if tok.RefreshToken != "" {
		t.Errorf("refresh token = %q, want empty (no carry-forward)", tok.RefreshToken)
	}
	if c.Token().RefreshToken != "" {
		t.Errorf("stored refresh token = %q, want empty", c.Token().RefreshToken)
	}
}

// apiServer is a token endpoint plus a domain endpoint on one server, with
// call counters for the replay-policy assertions.
type apiServer struct {
	*httptest.Server

	refreshCalls int
	domainCalls  int

	// domainStatus returns the status for the nth (1-based) domain call.
	domainStatus func(n int) int
	// refreshStatus is the status the token endpoint responds with.
	refreshStatus int

	lastAuthHeader string
}

func newAPIServer(t *testing.T) *apiServer {
	t.Helper()

	s := &apiServer{refreshStatus: http.StatusOK}
	mux := http.NewServeMux()

	mux.HandleFunc("/oauth2/token/", func(w http.ResponseWriter, r *http.Request) {
		s.refreshCalls++
		if s.refreshStatus != http.StatusOK {
			w.WriteHeader(s.refreshStatus)
			fmt.Fprint(w, `{"error": "invalid_grant"}`)
			return
		}
		fmt.Fprintf(w, `{"access_token": "refreshed_access_%d", "refresh_token": "refreshed_refresh", "token_type": "bearer"}`, s.refreshCalls)
	})

	mux.HandleFunc("/diff/", func(w http.ResponseWriter, r *http.Request) {
		s.domainCalls++
		s.lastAuthHeader = r.Header.Get("Authorization")
		status := http.StatusOK
		if s.domainStatus != nil {
			status = s.domainStatus(s.domainCalls)
		}
		w.WriteHeader(status)
		if status == http.StatusOK {
			fmt.Fprint(w, `{"ok": true}`)
		}
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func TestPost_NoTokenHeld(t *testing.T) {
	tr := &countingTransport{}
	c, err := New(Config{
		ClientID:     "id",
		ClientSecret: "secret",
		HTTPClient:   &http.Client{Transport: tr},
	}, discardLogger())
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}

	_, err = c.Post(context.Background(), "http://example.invalid/diff/", nil)

	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	if tr.calls != 0 {
		t.Errorf("expected no network calls, got %d", tr.calls)
	}
}

func TestPost_Success(t *testing.T) {
	s := newAPIServer(t)
	c := newTestClient(t, s.URL, &oauth2.Token{AccessToken: "valid_access", TokenType: "bearer"})

	resp, err := c.Post(context.Background(), s.URL+"/diff/", []byte(`{}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if s.domainCalls != 1 || s.refreshCalls != 0 {
		t.Errorf("domain calls = %d, refresh calls = %d; want 1, 0", s.domainCalls, s.refreshCalls)
	}
	if s.lastAuthHeader != "Bearer valid_access" {
		t.Errorf("authorization header = %q", s.lastAuthHeader)
	}
}

func TestPost_RefreshAndReplayOnce(t *testing.T) {
	s := newAPIServer(t)
	s.domainStatus = func(n int) int {
		if n == 1 {
			return http.StatusUnauthorized
		}
		return http.StatusOK
	}

	c := newTestClient(t, s.URL, &oauth2.Token{
		AccessToken:  "stale_access",
		RefreshToken: "stored_refresh",
		TokenType:    "bearer",
	})

	resp, err := c.Post(context.Background(), s.URL+"/diff/", []byte(`{}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200 after replay", resp.StatusCode)
	}
	if s.domainCalls != 2 {
		t.Errorf("domain calls = %d, want 2 (original + replay)", s.domainCalls)
	}
	if s.refreshCalls != 1 {
		t.Errorf("refresh calls = %d, want exactly 1", s.refreshCalls)
	}
	if s.lastAuthHeader != "Bearer refreshed_access_1" {
		t.Errorf("replay used authorization header %q", s.lastAuthHeader)
	}
	if c.Token().AccessToken != "refreshed_access_1" {
		t.Errorf("held token = %q, want the refreshed one", c.Token().AccessToken)
	}
}

func TestPost_ReplayStillUnauthorized(t *testing.T) {
	s := newAPIServer(t)
	s.domainStatus = func(int) int { return http.StatusUnauthorized }

	c := newTestClient(t, s.URL, &oauth2.Token{
		AccessToken:  "stale_access",
		RefreshToken: "stored_refresh",
		TokenType:    "bearer",
	})

	resp, err := c.Post(context.Background(), s.URL+"/diff/", []byte(`{}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	// The second 401 is surfaced, not retried again.
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
	if s.domainCalls != 2 {
		t.Errorf("domain calls = %d, want 2", s.domainCalls)
	}
	if s.refreshCalls != 1 {
		t.Errorf("refresh calls = %d, want exactly 1", s.refreshCalls)
	}
}

func TestPost_RefreshRejected(t *testing.T) {
	s := newAPIServer(t)
	s.domainStatus = func(int) int { return http.StatusUnauthorized }
	s.refreshStatus = http.StatusBadRequest

	c := newTestClient(t, s.URL, &oauth2.Token{
		AccessToken:  "stale_access",
		RefreshToken: "dead_refresh",
		TokenType:    "bearer",
	})

	_, err := c.Post(context.Background(), s.URL+"/diff/", []byte(`{}`))

	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	if s.domainCalls != 1 {
		t.Errorf("domain calls = %d, want 1 (no replay without a new token)", s.domainCalls)
	}
	if s.refreshCalls != 1 {
		t.Errorf("refresh calls = %d, want exactly 1", s.refreshCalls)
	}
}

func TestPost_TransportError(t *testing.T) {
	s := newAPIServer(t)
	target := s.URL + "/diff/"
	s.Close() // force a connection failure

	c := newTestClient(t, s.URL, &oauth2.Token{AccessToken: "valid_access", TokenType: "bearer"})

	_, err := c.Post(context.Background(), target, []byte(`{}`))

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if s.refreshCalls != 0 {
		t.Errorf("transport failures must not trigger refresh, got %d refresh calls", s.refreshCalls)
	}
}

func TestTokenJSONShape(t *testing.T) {
	var tj tokenJSON
	if err := json.Unmarshal([]byte(`{"access_token":"a","refresh_token":"r","token_type":"bearer","expires_in":60}`), &tj); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tj.AccessToken != "a" || tj.RefreshToken != "r" || tj.TokenType != "bearer" || tj.ExpiresIn != 60 {
		t.Errorf("unexpected token json: %+v", tj)
	}
}
