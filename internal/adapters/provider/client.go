// Package provider implements the read-side adapters of the supported
// advertising and analytics platforms. Every adapter authenticates with a
// stored credential, calls the vendor reporting API and returns the native
// payload untouched; failures are classified into the provider error kinds.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/okian/aecr/internal/domain/model"
	"github.com/okian/aecr/internal/domain/native"
)

const (
	defaultHTTPTimeout = 60 * time.Second
	maxErrorBody       = 64 << 10
)

// Adapter is the uniform contract of a platform integration. Adapters hold
// no mutable state and are safe for concurrent use.
type Adapter interface {
	Platform() model.Platform
	// FetchAccounts lists the ad accounts (or analytics properties) the
	// credential can read.
	FetchAccounts(ctx context.Context, cred model.Credential) ([]string, error)
	// FetchMetrics returns campaign-day rows for account over r.
	FetchMetrics(ctx context.Context, cred model.Credential, accountID string, r native.DateRange) (native.Batch, error)
}

// Option configures an adapter.
type Option func(*client)

// WithBaseURL points the adapter at another API host, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(c *client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient sets the HTTP client used for API and token calls.
func WithHTTPClient(h *http.Client) Option {
	return func(c *client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithOAuth enables the refresh-token grant against tokenURL. Without it an
// expired access token surfaces as ErrAuthExpired.
func WithOAuth(clientID, clientSecret, tokenURL string) Option {
	return func(c *client) {
		if clientID == "" || tokenURL == "" {
			return
		}
		c.clientID, c.clientSecret = clientID, clientSecret
		c.oauth = &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
		}
	}
}

// WithDeveloperToken sets the Google Ads developer token header.
func WithDeveloperToken(token string) Option {
	return func(c *client) { c.developerToken = token }
}

// WithClock overrides the clock used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *client) {
		if now != nil {
			c.now = now
		}
	}
}

// client is the HTTP plumbing shared by every adapter.
type client struct {
	platform       model.Platform
	baseURL        string
	http           *http.Client
	oauth          *oauth2.Config
	clientID       string
	clientSecret   string
	developerToken string
	now            func() time.Time

	// authorize sets the auth header for token; defaults to Bearer.
	authorize func(h http.Header, token string)
	// classifyBody maps a vendor error envelope to a kind. It returns nil
	// when the body is not recognized.
	classifyBody func(status int, body []byte) error
}

func newClient(p model.Platform, baseURL string, opts []Option) client {
	c := client{
		platform: p,
		baseURL:  baseURL,
		http:     &http.Client{Timeout: defaultHTTPTimeout},
		now:      time.Now,
		authorize: func(h http.Header, token string) {
			h.Set("Authorization", "Bearer "+token)
		},
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Platform implements Adapter.
func (c *client) Platform() model.Platform { return c.platform }

func (c *client) fail(kind error, account string, err error) *Error {
	return &Error{Kind: kind, Platform: c.platform, Account: account, Err: err}
}

// token returns a usable access token, refreshing it when expired and a
// refresh token is available.
func (c *client) token(ctx context.Context, cred model.Credential, account string) (string, error) {
	if cred.AccessToken != "" && !cred.Expired(c.now()) {
		return cred.AccessToken, nil
	}
	if cred.RefreshToken == "" || c.oauth == nil {
		return "", c.fail(ErrAuthExpired, account, errors.New("access token expired and no refresh grant available"))
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	tok, err := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode >= http.StatusInternalServerError {
			return "", c.fail(ErrProviderUnavailable, account, fmt.Errorf("token refresh: %w", err))
		}
		if !errors.As(err, &re) {
			if kind := transportKind(err); kind != nil {
				return "", c.fail(kind, account, fmt.Errorf("token refresh: %w", err))
			}
		}
		return "", c.fail(ErrAuthExpired, account, fmt.Errorf("token refresh: %w", err))
	}
	return tok.AccessToken, nil
}

func (c *client) endpoint(path string, q url.Values) string {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// call performs one request and decodes a 2xx JSON body into out.
func (c *client) call(ctx context.Context, account, method, rawURL, token string, header http.Header, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", c.platform, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, rd)
	if err != nil {
		return fmt.Errorf("build %s request: %w", c.platform, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	c.authorize(req.Header, token)

	resp, err := c.http.Do(req)
	if err != nil {
		kind := transportKind(err)
		if kind == nil {
			kind = ErrProviderUnavailable
		}
		return c.fail(kind, account, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return c.statusError(account, resp, raw)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if kind := transportKind(err); kind != nil {
			return c.fail(kind, account, err)
		}
		return c.fail(ErrSchemaChanged, account, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *client) statusError(account string, resp *http.Response, raw []byte) error {
	e := &Error{Platform: c.platform, Account: account, Status: resp.StatusCode}
	if c.classifyBody != nil {
		e.Kind = c.classifyBody(resp.StatusCode, raw)
	}
	if e.Kind == nil {
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			e.Kind = ErrAuthExpired
		case resp.StatusCode == http.StatusTooManyRequests:
			e.Kind = ErrRateLimited
		case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode >= http.StatusInternalServerError:
			e.Kind = ErrProviderUnavailable
		default:
			e.Kind = ErrSchemaChanged
		}
	}
	if e.Kind == ErrRateLimited {
		e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	}
	if len(raw) > 0 {
		e.Err = errors.New(strings.TrimSpace(string(raw)))
	}
	return e
}

// transportKind classifies network-level failures. Deadlines and
// cancellation count as unavailability; the caller's context tells the two
// apart.
func transportKind(err error) error {
	var ne net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrProviderUnavailable
	case errors.As(err, &ne):
		return ErrProviderUnavailable
	case errors.Is(err, io.ErrUnexpectedEOF):
		return ErrProviderUnavailable
	}
	return nil
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}

// Registry selects adapters by platform.
type Registry struct {
	adapters map[model.Platform]Adapter
}

// NewRegistry indexes adapters by their platform; later ones win.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[model.Platform]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Platform()] = a
	}
	return r
}

// Get returns the adapter for p.
func (r *Registry) Get(p model.Platform) (Adapter, error) {
	a, ok := r.adapters[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, p)
	}
	return a, nil
}

// Platforms lists the registered platforms in canonical order.
func (r *Registry) Platforms() []model.Platform {
	var out []model.Platform
	for _, p := range model.Platforms() {
		if _, ok := r.adapters[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// trimResource strips a resource-name prefix such as "customers/".
func trimResource(name, prefix string) string {
	return strings.TrimPrefix(name, prefix)
}
