// Package indexer provides an HTTP client for event indexers that expose
// 8004 reputation chains: paged per-asset event streams plus the stored
// chain heads used to cross-check replays.
package indexer

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/probitylabs/sealchain/pkg/repchain"
)

// ErrNotFound is returned when the indexer has no record for the requested
// asset or chain.
var ErrNotFound = errors.New("indexer: not found")

// DefaultPageSize is used when a caller passes a non-positive limit.
const DefaultPageSize = 500

// Client talks to an indexer's REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	userAgent  string
	limiter    *rate.Limiter
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client, overriding any auth transport
// installed by earlier options.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithAPIKey attaches the key to every request as X-API-Key.
func WithAPIKey(key string) Option {
	return func(c *Client) error {
		c.apiKey = key
		return nil
	}
}

// WithOAuth2 authenticates via the client-credentials flow against tokenURL.
// Tokens are fetched and refreshed automatically.
func WithOAuth2(clientID, clientSecret, tokenURL string, scopes ...string) Option {
	return func(c *Client) error {
		if clientID == "" || tokenURL == "" {
			return fmt.Errorf("indexer: oauth2 requires a client id and token url")
		}
		cfg := clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			Scopes:       scopes,
		}
		c.httpClient = cfg.Client(context.Background())
		c.httpClient.Timeout = 15 * time.Second
		return nil
	}
}

// WithRateLimit caps outgoing requests at rps with the given burst. Useful
// against indexers with strict quotas.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) error {
		if rps <= 0 || burst <= 0 {
			return fmt.Errorf("indexer: rate limit requires positive rps and burst")
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		return nil
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) error {
		c.userAgent = ua
		return nil
	}
}

// New creates a Client for the indexer at baseURL.
//
//	src, err := indexer.New("https://indexer.example.com",
//	    indexer.WithAPIKey(key),
//	    indexer.WithRateLimit(10, 20),
//	)
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("indexer: base url is required")
	}
	for len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		userAgent:  "sealchain-auditor",
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// FeedbackEvents returns the asset's feedback events starting at chain
// position fromCount, at most limit of them, in chain order.
func (c *Client) FeedbackEvents(ctx context.Context, asset []byte, fromCount uint64, limit int) ([]repchain.FeedbackEvent, error) {
	body, err := c.getEvents(ctx, asset, "feedback", fromCount, limit)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Events []FeedbackRecord `json:"events"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return DecodeFeedbackRecords(wrapper.Events)
}

// ResponseEvents returns the asset's response events starting at chain
// position fromCount, at most limit of them, in chain order.
func (c *Client) ResponseEvents(ctx context.Context, asset []byte, fromCount uint64, limit int) ([]repchain.ResponseEvent, error) {
	body, err := c.getEvents(ctx, asset, "responses", fromCount, limit)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Events []ResponseRecord `json:"events"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return DecodeResponseRecords(wrapper.Events)
}

// RevokeEvents returns the asset's revocation events starting at chain
// position fromCount, at most limit of them, in chain order.
func (c *Client) RevokeEvents(ctx context.Context, asset []byte, fromCount uint64, limit int) ([]repchain.RevokeEvent, error) {
	body, err := c.getEvents(ctx, asset, "revocations", fromCount, limit)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Events []RevokeRecord `json:"events"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return DecodeRevokeRecords(wrapper.Events)
}

// ChainHead fetches the stored tip of one of the asset's chains. Returns
// ErrNotFound when the indexer has never seen the chain.
func (c *Client) ChainHead(ctx context.Context, asset []byte, kind repchain.ChainKind) (*ChainHead, error) {
	url := fmt.Sprintf("%s/v1/assets/%s/chains/%s", c.baseURL, hex.EncodeToString(asset), kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var head ChainHead
	if err := json.Unmarshal(body, &head); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &head, nil
}

func (c *Client) getEvents(ctx context.Context, asset []byte, stream string, fromCount uint64, limit int) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	url := fmt.Sprintf("%s/v1/assets/%s/%s?from=%d&limit=%d",
		c.baseURL, hex.EncodeToString(asset), stream, fromCount, limit,
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	return c.do(req)
}

// do executes an HTTP request with rate limiting and auth headers applied.
func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<22)) // 4 MB limit
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, req.URL.Path)
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("unauthorized: %s", string(body))
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("indexer error %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
