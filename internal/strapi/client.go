package strapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shacrom/mmorpg-news/internal/metrics"
)

// maxBodyBytes bounds how much of a CMS response is read into memory.
const maxBodyBytes = 10 * 1024 * 1024

type tokenKey struct{}

// ContextWithToken attaches a bearer token to ctx. Requests made with that
// context send it as Authorization: Bearer.
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

type Client struct {
	baseURL string
	version Version
	http    *http.Client
	metrics *metrics.CMS
}

func NewClient(baseURL string, version Version, httpClient *http.Client, m *metrics.CMS) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		version: version,
		http:    httpClient,
		metrics: m,
	}
}

func (c *Client) BaseURL() string  { return c.baseURL }
func (c *Client) Version() Version { return c.version }

// Get issues a GET against path with query and returns the raw body of a 2xx answer.
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("strapi: build url for %s: %w", path, err)
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("strapi: create request: %w", err)
	}

	return c.do(req, path)
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type loginResponse struct {
	JWT   string `json:"jwt"`
	Token string `json:"token"`
	Data  struct {
		Token string `json:"token"`
	} `json:"data"`
}

func (r loginResponse) token() string {
	switch {
	case r.JWT != "":
		return r.JWT
	case r.Token != "":
		return r.Token
	default:
		return r.Data.Token
	}
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, identifier, password string) (string, error) {
	body, err := json.Marshal(loginRequest{Identifier: identifier, Password: password})
	if err != nil {
		return "", fmt.Errorf("strapi: marshal login: %w", err)
	}

	path := c.version.LoginPath()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("strapi: create login request: %w", err)
	}

	raw, err := c.do(req, path)
	if err != nil {
		var terr *TransportError
		if errors.As(err, &terr) {
			c.metrics.ObserveLogin(metrics.OutcomeTransport)
		} else {
			c.metrics.ObserveLogin(metrics.OutcomeStatus)
		}
		return "", err
	}

	var out loginResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		c.metrics.ObserveLogin(metrics.OutcomeNoToken)
		return "", fmt.Errorf("%w: login: %v", ErrShapeMismatch, err)
	}

	token := out.token()
	if token == "" {
		c.metrics.ObserveLogin(metrics.OutcomeNoToken)
		return "", ErrNoToken
	}

	c.metrics.ObserveLogin(metrics.OutcomeOK)
	return token, nil
}

func (c *Client) do(req *http.Request, endpoint string) ([]byte, error) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token := TokenFromContext(req.Context()); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(endpoint, metrics.OutcomeTransport, time.Since(start))
		return nil, &TransportError{Op: req.Method + " " + endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.metrics.ObserveRequest(endpoint, metrics.OutcomeTransport, time.Since(start))
		return nil, &TransportError{Op: req.Method + " " + endpoint, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.ObserveRequest(endpoint, metrics.OutcomeStatus, time.Since(start))
		return nil, &UpstreamStatusError{
			Op:         req.Method + " " + endpoint,
			StatusCode: resp.StatusCode,
			Body:       excerpt(body),
		}
	}

	c.metrics.ObserveRequest(endpoint, metrics.OutcomeOK, time.Since(start))
	return body, nil
}

func excerpt(body []byte) string {
	const max = 256
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		cut := max
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		return s[:cut] + "..."
	}
	return s
}
