package eit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"golang.org/x/oauth2"
)

const (
	defaultAPIHost   = "https://api.layer.com"
	defaultAcceptHdr = "application/vnd.layer+json; version=1.0"

	defaultAppIDEnv    = "LAYER_APP_ID"
	defaultAPITokenEnv = "LAYER_API_TOKEN"
)

// layer:///apps/<environment>/<id>
var layerPrefix = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*:///[^/]+/[^/]+/([^/]+)$`)

// HTTPDoer is the transport used for platform API calls.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// ClientConfig describes a platform API client.
type ClientConfig struct {
	AppID    string
	APIToken string
	// BaseURL defaults to https://api.layer.com/apps/<app id>.
	BaseURL string
	// TokenSource supplies the Authorization header and defaults to a static
	// bearer token holding APIToken.
	TokenSource oauth2.TokenSource
	// HTTPClient defaults to a plain *http.Client.
	HTTPClient HTTPDoer
	// Builder backs GenerateIdentityToken and may be nil.
	Builder *TokenBuilder
	Logger  *slog.Logger
}

// ClientConfigFromEnv fills AppID and APIToken from LAYER_APP_ID and
// LAYER_API_TOKEN.
func ClientConfigFromEnv() ClientConfig {
	return ClientConfig{
		AppID:    os.Getenv(defaultAppIDEnv),
		APIToken: os.Getenv(defaultAPITokenEnv),
	}
}

// Client talks to the platform management API.
type Client struct {
	appID    string
	apiToken string
	baseURL  *url.URL
	tokens   oauth2.TokenSource
	http     HTTPDoer
	builder  *TokenBuilder
	logger   *slog.Logger
}

// NewClient constructs a Client. The application id may be given in its
// layer:/// URI form.
func NewClient(cfg ClientConfig) (*Client, error) {
	appID := StripLayerPrefix(strings.TrimSpace(cfg.AppID))
	if appID == "" {
		return nil, newError(ErrCodeInvalidConfig, errors.New("app id is required"))
	}

	rawBase := strings.TrimRight(cfg.BaseURL, "/")
	if rawBase == "" {
		rawBase = defaultAPIHost + "/apps/" + appID
	}
	baseURL, err := url.Parse(rawBase)
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, newError(ErrCodeInvalidConfig, fmt.Errorf("invalid base url %q", rawBase))
	}

	tokens := cfg.TokenSource
	if tokens == nil {
		tokens = oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.APIToken,
			TokenType:   "Bearer",
		})
	}
	tokens = oauth2.ReuseTokenSource(nil, tokens)

	doer := cfg.HTTPClient
	if doer == nil {
		doer = &http.Client{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		appID:    appID,
		apiToken: cfg.APIToken,
		baseURL:  baseURL,
		tokens:   tokens,
		http:     doer,
		builder:  cfg.Builder,
		logger:   logger,
	}, nil
}

// StripLayerPrefix returns the trailing identifier of a
// "scheme:///resource/environment/<id>" string, or s unchanged.
func StripLayerPrefix(s string) string {
	if m := layerPrefix.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

// AppID returns the application id with any layer:/// prefix removed.
func (c *Client) AppID() string { return c.appID }

// APIToken returns the configured platform API token.
func (c *Client) APIToken() string { return c.apiToken }

// BaseURL returns the URL relative request paths are resolved against.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// DefaultHeaders returns the headers sent with every API call. Authorization
// is omitted when the token source fails.
func (c *Client) DefaultHeaders() http.Header {
	h := make(http.Header)
	h.Set("Accept", defaultAcceptHdr)
	h.Set("Content-Type", "application/json")
	if tok, err := c.tokens.Token(); err == nil && tok.AccessToken != "" {
		h.Set("Authorization", tok.Type()+" "+tok.AccessToken)
	}
	return h
}

// GenerateIdentityToken issues an identity token through the configured builder.
func (c *Client) GenerateIdentityToken(ctx context.Context, req IdentityRequest) (string, error) {
	if c.builder == nil {
		return "", newError(ErrCodeInvalidConfig, errors.New("token builder is not configured"))
	}
	return c.builder.Build(ctx, req)
}

// Request performs an API call relative to the base URL. Absolute URLs must
// point at the base URL's host. body is JSON encoded when non-nil; headers,
// Authorization included, override the defaults. Responses with a status of
// 400 or above are returned as errors.
func (c *Client) Request(ctx context.Context, method, path string, body any, headers http.Header) (*http.Response, error) {
	target, err := c.resolve(path)
	if err != nil {
		return nil, newError(ErrCodeRequest, err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, newError(ErrCodeRequest, fmt.Errorf("encode body: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, newError(ErrCodeRequest, fmt.Errorf("create request: %w", err))
	}
	req.Header = mergeHeaders(c.DefaultHeaders(), headers)

	c.logger.Debug("platform request", slog.String("method", method), slog.String("url", req.URL.String()))
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, newError(ErrCodeRequest, fmt.Errorf("execute request: %w", err))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, newError(ErrCodeRequest, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg))))
	}
	return resp, nil
}

// resolve keeps the bearer token on the platform host.
func (c *Client) resolve(path string) (string, error) {
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		return c.BaseURL() + "/" + strings.TrimLeft(path, "/"), nil
	}
	u, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if !strings.EqualFold(u.Host, c.baseURL.Host) || u.Scheme != c.baseURL.Scheme {
		return "", fmt.Errorf("url %s is outside %s://%s", path, c.baseURL.Scheme, c.baseURL.Host)
	}
	return u.String(), nil
}

func mergeHeaders(base, override http.Header) http.Header {
	for k, vs := range override {
		base.Del(k)
		for _, v := range vs {
			base.Add(k, v)
		}
	}
	return base
}
