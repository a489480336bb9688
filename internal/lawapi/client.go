// Package lawapi is a client for the law.go.kr open API (DRF).
package lawapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hpungsan/semu/internal/config"
)

// Endpoints relative to the base URL.
const (
	SearchPath  = "lawSearch.do"
	ServicePath = "lawService.do"
)

// idKeys are the id fields of search items, one per target kind.
var idKeys = []string{"판례일련번호", "법령해석일련번호", "행정심판일련번호", "헌재결정일련번호"}

// Client issues paced requests against the law API.
type Client struct {
	baseURL string
	userID  string
	http    *http.Client
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithUserID sets the OC parameter instead of reading it from the environment.
func WithUserID(id string) Option {
	return func(c *Client) {
		c.userID = id
	}
}

// New creates a Client from configuration. The user id is read from the
// first non-empty variable of cfg.UserIDEnv.
func New(cfg config.LawAPIConfig, opts ...Option) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = config.DefaultConfig().LawAPI.RequestsPerSecond
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		userID:  ResolveUserID(cfg.UserIDEnv),
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolveUserID returns the value of the first set environment variable.
func ResolveUserID(envs []string) string {
	for _, name := range envs {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

// UserID returns the OC parameter sent with every request.
func (c *Client) UserID() string {
	return c.userID
}

// Search lists the items of target matching query on one result page.
// The items sit under the target key of the "{Target}Search" root.
func (c *Client) Search(ctx context.Context, target, query string, page int) ([]map[string]any, error) {
	params := url.Values{}
	params.Set("target", target)
	params.Set("query", query)
	params.Set("page", strconv.Itoa(max(page, 1)))

	doc, err := c.get(ctx, SearchPath, params)
	if err != nil {
		return nil, err
	}
	root, ok := doc[SearchRoot(target)].(map[string]any)
	if !ok {
		return []map[string]any{}, nil
	}

	var items []map[string]any
	switch v := root[target].(type) {
	case map[string]any:
		items = append(items, v)
	case []any:
		for _, e := range v {
			if m, ok := e.(map[string]any); ok {
				items = append(items, m)
			}
		}
	}
	if items == nil {
		items = []map[string]any{}
	}
	return items, nil
}

// Detail fetches one document. The result keeps the "{Target}Service" root.
func (c *Client) Detail(ctx context.Context, target, id string) (map[string]any, error) {
	params := url.Values{}
	params.Set("target", target)
	params.Set("ID", id)
	return c.get(ctx, ServicePath, params)
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (map[string]any, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params.Set("OC", c.userID)
	params.Set("type", "XML")
	reqURL := c.baseURL + "/" + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return nil, fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	doc, err := ParseXML(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// SearchRoot returns the root element of a search response, e.g. PrecSearch.
func SearchRoot(target string) string {
	if target == "" {
		return "Search"
	}
	return strings.ToUpper(target[:1]) + target[1:] + "Search"
}

// ItemID returns the document id of a search item.
func ItemID(item map[string]any) string {
	for _, k := range idKeys {
		if s, ok := item[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
