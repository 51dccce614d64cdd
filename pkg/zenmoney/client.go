// Package zenmoney exposes the two ZenMoney API operations, diff and
// suggest, over an authenticated OAuth2 client.
package zenmoney

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/sakost/zenmoney-api/pkg/auth"
	"github.com/sakost/zenmoney-api/pkg/models"
)

// APIBaseURL is the ZenMoney API base URL.
const APIBaseURL = "https://api.zenmoney.ru/v8"

const (
	diffPath    = "/diff/"
	suggestPath = "/suggest/"
)

// maxBodySize bounds how much of a response body is read into memory.
const maxBodySize = 16 << 20

// Client is the ZenMoney API client. Token attachment and the single
// refresh-and-replay on 401 are delegated to the wrapped auth client, so
// Client inherits its concurrency caveats: serialize access when sharing
// one credential set across goroutines.
type Client struct {
	auth    *auth.Client
	baseURL string
	logger  *slog.Logger
}

// Config holds the API client configuration.
type Config struct {
	// BaseURL overrides the API base URL. Defaults to APIBaseURL.
	BaseURL string
}

// New wraps an authenticated OAuth2 client.
func New(authClient *auth.Client, cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	base := cfg.BaseURL
	if base == "" {
		base = APIBaseURL
	}

	return &Client{
		auth:    authClient,
		baseURL: strings.TrimRight(base, "/"),
		logger:  logger,
	}
}

// NewWithToken builds the OAuth2 client and the API client in one call,
// seeding the OAuth2 client with an existing token. Intended for restored
// sessions where the authorization flow already happened.
func NewWithToken(clientID, clientSecret, redirectURI string, token *oauth2.Token, logger *slog.Logger) (*Client, error) {
	authClient, err := auth.New(auth.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURI:  redirectURI,
		Token:        token,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating oauth client: %w", err)
	}

	return New(authClient, Config{}, logger), nil
}

// Auth returns the wrapped OAuth2 client, e.g. to persist a token that was
// rotated during a call.
func (c *Client) Auth() *auth.Client {
	return c.auth
}

// GetDiff performs a full or incremental synchronization. A nil payload
// requests a full sync: serverTimestamp zero and currentClientTimestamp set
// to the current epoch seconds. The decoded response body is returned
// verbatim, without parsing into typed entities.
func (c *Client) GetDiff(ctx context.Context, payload *models.DiffObject) (map[string]any, error) {
	if payload == nil {
		payload = &models.DiffObject{
			ServerTimestamp:        0,
			CurrentClientTimestamp: time.Now().Unix(),
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding diff payload: %w", err)
	}

	c.logger.Debug("requesting diff", "server_timestamp", payload.ServerTimestamp)

	raw, err := c.post(ctx, c.baseURL+diffPath, body)
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding diff response: %w", err)
	}
	return result, nil
}

// Suggest asks the server to fill categorization fields (payee, merchant,
// tags) for a transaction-shaped payload. The payload may be a single
// object or a slice; it is forwarded unmodified, and the decoded response
// keeps whatever shape the server returned.
func (c *Client) Suggest(ctx context.Context, transaction any) (any, error) {
	body, err := json.Marshal(transaction)
	if err != nil {
		return nil, fmt.Errorf("encoding suggest payload: %w", err)
	}

	raw, err := c.post(ctx, c.baseURL+suggestPath, body)
	if err != nil {
		return nil, err
	}

	var result any
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding suggest response: %w", err)
	}
	return result, nil
}

// post dispatches through the auth client and surfaces any non-2xx status
// as an HTTPError carrying the response body.
func (c *Client) post(ctx context.Context, url string, body []byte) ([]byte, error) {
	resp, err := c.auth.Post(ctx, url, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &auth.TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &auth.HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       raw,
		}
	}
	return raw, nil
}
