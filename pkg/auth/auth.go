// Package auth implements the ZenMoney OAuth2 authorization-code flow and
// authenticated request dispatch.
//
// The provider supports exactly one token endpoint, HTTP Basic client
// authentication (client_secret_basic), and the authorization_code and
// refresh_token grants. Refresh is strictly reactive: a request that comes
// back 401 triggers exactly one refresh and one replay, nothing more.
package auth

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// BaseURL is the ZenMoney OAuth2 provider base URL.
const BaseURL = "https://api.zenmoney.ru"

const (
	authorizePath = "/oauth2/authorize/"
	tokenPath     = "/oauth2/token/"
)

// maxBodySize bounds how much of a token-endpoint or domain response is
// read into memory.
const maxBodySize = 1 << 20

// Config holds the OAuth2 client identity and transport configuration.
type Config struct {
	// ClientID and ClientSecret identify the application to ZenMoney.
	// Both are required.
	ClientID     string
	ClientSecret string

	// RedirectURI must match the value registered with ZenMoney. It is
	// used for authorization-URL construction and code exchange.
	RedirectURI string

	// BaseURL overrides the provider base URL. Defaults to BaseURL.
	BaseURL string

	// HTTPClient is the transport used for every request. Defaults to
	// http.DefaultClient. Timeouts and cancellation are whatever this
	// client provides.
	HTTPClient *http.Client

	// Token seeds the client with a previously issued token, e.g. one
	// restored from a token file.
	Token *oauth2.Token
}

// Client owns the OAuth2 identity, the current token, and the HTTP
// transport. It is not safe for unsynchronized concurrent use: two calls
// that both observe a stale token and both refresh can invalidate each
// other's refresh token. Callers that share one credential set across
// goroutines must serialize access themselves.
type Client struct {
	conf     *oauth2.Config
	tokenURL string
	http     *http.Client
	logger   *slog.Logger

	token *oauth2.Token
	state string
}

// New creates an OAuth2 client for the ZenMoney provider.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, &InvalidRequestError{Reason: "client id and client secret are required"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	base := cfg.BaseURL
	if base == "" {
		base = BaseURL
	}
	base = strings.TrimRight(base, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:   base + authorizePath,
				TokenURL:  base + tokenPath,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		tokenURL: base + tokenPath,
		http:     httpClient,
		logger:   logger,
		token:    cfg.Token,
	}, nil
}

// Token returns the currently held token, or nil if none has been fetched
// or set.
func (c *Client) Token() *oauth2.Token {
	return c.token
}

// SetToken replaces the currently held token, e.g. with one restored from
// persistent storage.
func (c *Client) SetToken(tok *oauth2.Token) {
	c.token = tok
}

// State returns the anti-CSRF state generated by the most recent
// AuthorizationURL call.
func (c *Client) State() string {
	return c.state
}

// AuthorizationURL builds the provider's authorization endpoint URL with
// response_type=code, the client id, and the redirect URI. Extra query
// parameters such as scope may be supplied via extra. A fresh random state
// is generated and stored on the client unless extra carries one, in which
// case the supplied value is stored instead. Each call overwrites the
// previously stored state. No network call is made.
func (c *Client) AuthorizationURL(extra url.Values) (string, error) {
	state := extra.Get("state")
	if state == "" {
		var err error
		state, err = generateState()
		if err != nil {
			return "", fmt.Errorf("generating state: %w", err)
		}
	}

	opts := make([]oauth2.AuthCodeOption, 0, len(extra))
	for key, values := range extra {
		if key == "state" {
			continue
		}
		for _, value := range values {
			opts = append(opts, oauth2.SetAuthURLParam(key, value))
		}
	}

	c.state = state
	return c.conf.AuthCodeURL(state, opts...), nil
}

// FetchToken exchanges an authorization code for a token and stores the
// result as the current token.
func (c *Client) FetchToken(ctx context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, &InvalidRequestError{Reason: "authorization code is empty"}
	}

	form := url.Values{
		"grant_type": {"authorization_code"},
		"code":       {code},
	}
	if c.conf.RedirectURL != "" {
		form.Set("redirect_uri", c.conf.RedirectURL)
	}

	tok, err := c.retrieveToken(ctx, form)
	if err != nil {
		return nil, err
	}

	c.token = tok
	c.logger.Debug("fetched token via authorization code", "expires", tok.Expiry)
	return tok, nil
}

// RefreshToken obtains a new token using the supplied refresh token, or the
// one held in the current token when refreshToken is empty. The new token
// replaces the held one as returned by the provider: if the refresh
// response omits a refresh token, the previous one is not carried forward
// and must be persisted by the caller if still needed.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	rt := refreshToken
	if rt == "" && c.token != nil {
		rt = c.token.RefreshToken
	}
	if rt == "" {
		return nil, &AuthenticationError{Reason: "no refresh token available"}
	}

	tok, err := c.retrieveToken(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {rt},
	})
	if err != nil {
		return nil, err
	}

	c.token = tok
	c.logger.Debug("refreshed token", "expires", tok.Expiry, "rotated", tok.RefreshToken != rt)
	return tok, nil
}

// Post sends an authenticated POST with a JSON body. If the response is
// 401, the token is refreshed once and the request replayed once with the
// new token; the replay's response is returned whatever its status.
// Transport failures are never replayed. The caller owns the response body.
func (c *Client) Post(ctx context.Context, rawURL string, body []byte) (*http.Response, error) {
	tok := c.token
	if tok == nil || tok.AccessToken == "" {
		return nil, &AuthenticationError{Reason: "no access token held"}
	}

	resp, err := c.send(ctx, rawURL, body, tok)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	drain(resp)
	c.logger.Debug("access token rejected, refreshing", "url", rawURL)

	newTok, err := c.RefreshToken(ctx, "")
	if err != nil {
		return nil, err
	}
	return c.send(ctx, rawURL, body, newTok)
}

func (c *Client) send(ctx context.Context, rawURL string, body []byte, tok *oauth2.Token) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return nil, &InvalidRequestError{Reason: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	tok.SetAuthHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	return resp, nil
}

// retrieveToken issues a token-endpoint request with HTTP Basic client
// authentication and parses the response into a token.
func (c *Client) retrieveToken(ctx context.Context, form url.Values) (*oauth2.Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &InvalidRequestError{Reason: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// Credentials are form-encoded inside the Basic header per RFC 6749
	// section 2.3.1.
	req.SetBasicAuth(url.QueryEscape(c.conf.ClientID), url.QueryEscape(c.conf.ClientSecret))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &AuthenticationError{
			Reason:     "token endpoint rejected request",
			StatusCode: resp.StatusCode,
			Body:       body,
		}
	}

	var tj tokenJSON
	if err := json.Unmarshal(body, &tj); err != nil {
		return nil, &AuthenticationError{Reason: "unparseable token response", Err: err}
	}
	if tj.AccessToken == "" {
		return nil, &AuthenticationError{
			Reason:     "token response missing access token",
			StatusCode: resp.StatusCode,
			Body:       body,
		}
	}

	tok := &oauth2.Token{
		AccessToken:  tj.AccessToken,
		TokenType:    tj.TokenType,
		RefreshToken: tj.RefreshToken,
	}
	if tj.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(tj.ExpiresIn) * time.Second)
	}
	return tok, nil
}

// tokenJSON is the provider's token response shape.
type tokenJSON struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    expiresIn `json:"expires_in"`
}

// expiresIn accepts a number or a numeric string; anything else counts as
// absent rather than failing the whole token response.
type expiresIn int64

func (e *expiresIn) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch n := v.(type) {
	case float64:
		*e = expiresIn(n)
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			*e = 0
			return nil
		}
		*e = expiresIn(i)
	default:
		*e = 0
	}
	return nil
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
	resp.Body.Close()
}
