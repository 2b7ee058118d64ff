// Package httpclient talks to the sidebar backend over HTTP. It implements
// the paginator and catalog contracts used by internal/sidebar plus the
// mutation calls made by sidebar.Actions.
package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/model"
)

// TokenSource returns the bearer token for a user.
type TokenSource func(userID string) (string, error)

// StaticToken uses token for every user.
func StaticToken(token string) TokenSource {
	return func(string) (string, error) { return token, nil }
}

// TokenMap looks the token up by user id; unknown users are unauthorized.
func TokenMap(tokens map[string]string) TokenSource {
	return func(userID string) (string, error) {
		if t, ok := tokens[userID]; ok {
			return t, nil
		}
		return "", fmt.Errorf("no token for user %q: %w", userID, model.ErrUnauthorized)
	}
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds every request. Defaults to 10s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// WithHTTPClient swaps the transport, e.g. for httptest servers.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = resty.NewWithClient(h).SetBaseURL(c.baseURL) }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// Client is a thin resty wrapper. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *resty.Client
	tokens  TokenSource
	log     zerolog.Logger
}

// New creates a client for the backend at baseURL.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    resty.New().SetBaseURL(baseURL),
		tokens:  tokens,
		log:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	c.http.
		SetHeader("Accept", "application/json").
		SetTimeout(orDefault(c.http.GetClient().Timeout, 10*time.Second))
	return c
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func (c *Client) request(ctx context.Context, userID string) (*resty.Request, error) {
	token, err := c.tokens(userID)
	if err != nil {
		return nil, err
	}
	return c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetError(&model.ErrorResponse{}), nil
}

// FetchPage returns one page of the user's threads, optionally scoped to a folder.
func (c *Client) FetchPage(ctx context.Context, userID string, p model.PageParams) (*model.Page, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	req, err := c.request(ctx, userID)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(p.Limit))
	if p.StartingAfter != nil {
		q.Set("startingAfter", *p.StartingAfter)
	}
	if p.EndingBefore != nil {
		q.Set("endingBefore", *p.EndingBefore)
	}
	path := "/api/threads"
	if p.FolderID != nil {
		path = "/api/folders/" + url.PathEscape(*p.FolderID) + "/threads"
	}

	var out model.Page
	start := time.Now()
	resp, err := req.SetQueryParamsFromValues(q).SetResult(&out).Get(path)
	if err := classify("fetch page", resp, err, model.ErrValidation); err != nil {
		return nil, err
	}
	c.log.Debug().
		Str("user_id", userID).
		Int("threads", len(out.Threads)).
		Bool("has_more", out.HasMore).
		Dur("elapsed", time.Since(start)).
		Msg("fetched page")
	if out.Threads == nil {
		out.Threads = []model.Thread{}
	}
	return &out, nil
}

// ListFolders returns every folder the user owns.
func (c *Client) ListFolders(ctx context.Context, userID string) ([]model.Folder, error) {
	req, err := c.request(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out model.FolderList
	resp, err := req.SetResult(&out).Get("/api/folders")
	if err := classify("list folders", resp, err, model.ErrValidation); err != nil {
		return nil, err
	}
	if out.Folders == nil {
		out.Folders = []model.Folder{}
	}
	return out.Folders, nil
}

// ListTags returns every tag the user owns.
func (c *Client) ListTags(ctx context.Context, userID string) ([]model.Tag, error) {
	req, err := c.request(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out model.TagList
	resp, err := req.SetResult(&out).Get("/api/tags")
	if err := classify("list tags", resp, err, model.ErrValidation); err != nil {
		return nil, err
	}
	if out.Tags == nil {
		out.Tags = []model.Tag{}
	}
	return out.Tags, nil
}

// HealthPing implements health.HealthPinger against GET /api/health.
func (c *Client) HealthPing(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/api/health")
	return classify("health", resp, err, model.ErrTransient)
}
