// Package jobboard implements API clients for the supported job boards and
// normalizes their payloads into model.Listing.
package jobboard

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"

	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/resilience"
)

const (
	pageSize        = "25"
	maxResponseSize = 10 << 20
)

// Client fetches and normalizes jobs from one job board.
type Client interface {
	// FetchJobs runs a search and returns normalized listings.
	FetchJobs(ctx context.Context, req model.SearchRequest, accessToken string) ([]model.Listing, error)
	// GetJobDetails returns one listing, or nil with no error when the
	// board reports it does not exist.
	GetJobDetails(ctx context.Context, externalID, accessToken string) (*model.Listing, error)
	// ValidateToken reports whether accessToken is accepted. Auth rejections
	// return false with no error.
	ValidateToken(ctx context.Context, accessToken string) (bool, error)
	// ID returns the provider id.
	ID() string
	// DefaultRateLimit returns the board's request ceilings.
	DefaultRateLimit() resilience.WindowLimits
}

// Option configures a client.
type Option func(*base)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(b *base) {
		if u != "" {
			b.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(b *base) {
		b.http = hc
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(b *base) {
		if d > 0 {
			b.http.Timeout = d
		}
	}
}

// WithExecutor routes requests through e instead of a private executor.
func WithExecutor(e *resilience.Executor) Option {
	return func(b *base) {
		b.exec = e
	}
}

// WithRateLimit overrides the board's default ceilings. Applied only when
// the client builds its own executor.
func WithRateLimit(limits resilience.WindowLimits) Option {
	return func(b *base) {
		b.limits = b.limits.Override(limits)
	}
}

// base holds what every board client shares: transport, limiter and auth.
type base struct {
	id      string
	baseURL string
	http    *http.Client
	exec    *resilience.Executor
	limits  resilience.WindowLimits
	auth    func(r *http.Request, token string)
}

func newBase(id, defaultURL string, limits resilience.WindowLimits, opts []Option) base {
	b := base{
		id:      id,
		baseURL: defaultURL,
		limits:  limits,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		auth: bearerAuth,
	}
	for _, o := range opts {
		o(&b)
	}
	if b.exec == nil {
		b.exec = resilience.NewExecutor(id, b.limits)
	}
	return b
}

func bearerAuth(r *http.Request, token string) {
	r.Header.Set("Authorization", "Bearer "+token)
}

func (b *base) ID() string {
	return b.id
}

func (b *base) DefaultRateLimit() resilience.WindowLimits {
	return b.limits
}

// get issues an authenticated GET through the executor and returns the body
// of a 2xx response. Other statuses yield *APIError.
func (b *base) get(ctx context.Context, path string, query url.Values, token string) ([]byte, error) {
	u := b.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	return resilience.ExecuteVal(ctx, b.exec, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, eris.Wrapf(err, "jobboard: %s create request", b.id)
		}
		b.auth(req, token)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/json")

		resp, err := b.http.Do(req)
		if err != nil {
			return nil, eris.Wrapf(err, "jobboard: %s send request", b.id)
		}
		defer resp.Body.Close() //nolint:errcheck

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return nil, eris.Wrapf(err, "jobboard: %s read response", b.id)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := newAPIError(b.id, resp.StatusCode, body)
			apiErr.Wait = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
			return nil, apiErr
		}
		return body, nil
	})
}

// search fetches path and normalizes every element found at the first
// non-empty list path.
func (b *base) search(ctx context.Context, path string, query url.Values, token string, listPaths []string, normalize func(rawJob) model.Listing) ([]model.Listing, error) {
	body, err := b.get(ctx, path, query, token)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, eris.Errorf("jobboard: %s returned invalid json", b.id)
	}

	root := gjson.ParseBytes(body)
	var items []gjson.Result
	for _, p := range listPaths {
		if arr := root.Get(p); arr.IsArray() && len(arr.Array()) > 0 {
			items = arr.Array()
			break
		}
	}

	listings := make([]model.Listing, 0, len(items))
	for _, item := range items {
		listings = append(listings, normalize(rawJob{item}))
	}
	return listings, nil
}

// details fetches a single job and normalizes it. 404 yields (nil, nil).
func (b *base) details(ctx context.Context, path string, query url.Values, token string, normalize func(rawJob) model.Listing) (*model.Listing, error) {
	body, err := b.get(ctx, path, query, token)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, eris.Errorf("jobboard: %s returned invalid json", b.id)
	}

	l := normalize(rawJob{gjson.ParseBytes(body)})
	return &l, nil
}

// validate probes path. 401/403 yield (false, nil).
func (b *base) validate(ctx context.Context, path string, query url.Values, token string) (bool, error) {
	if _, err := b.get(ctx, path, query, token); err != nil {
		if IsAuthError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func jobPath(prefix, id string) string {
	return prefix + url.PathEscape(id)
}
