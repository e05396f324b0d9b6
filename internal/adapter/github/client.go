package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/swe-agent-orchestrator/internal/domain"
)

// Issue is the subset of the remote issue record the pipeline consumes.
type Issue struct {
	Number int      `json:"number"`
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	State  string   `json:"state"`
	Labels []string `json:"labels"`
}

// Repository is the subset of remote repository metadata the pipeline needs.
type Repository struct {
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
	Language      string `json:"language"`
	Description   string `json:"description"`
}

// Client talks to the code-hosting REST API. All requests go through the
// limiter first, then through an otelhttp transport, and transient failures
// are retried with exponential backoff.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *Limiter
	repos      *RepoCache
	logger     *slog.Logger
	maxRetries uint64
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithClientLogger sets the client logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the given API base URL. The limiter is
// constructed over the client's own quota probe, so the first real call
// primes the quota cache.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   30 * time.Second,
		},
		repos:      NewRepoCache(),
		logger:     slog.Default(),
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.limiter = NewLimiter(c)
	return c
}

// Limiter exposes the client's rate limiter for callers that want to stall
// ahead of a batch of requests.
func (c *Client) Limiter() *Limiter { return c.limiter }

var issueURLPattern = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)/issues/(\d+)`)

// ParseIssueURL extracts owner, repo, and issue number from a canonical
// issue URL.
func ParseIssueURL(rawURL string) (owner, repo string, number int, err error) {
	m := issueURLPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", "", 0, fmt.Errorf("op=github.ParseIssueURL: %w: %q is not an issue URL", domain.ErrInvalidArgument, rawURL)
	}
	number, err = strconv.Atoi(m[3])
	if err != nil {
		return "", "", 0, fmt.Errorf("op=github.ParseIssueURL: %w: issue number %q", domain.ErrInvalidArgument, m[3])
	}
	return m[1], m[2], number, nil
}

// GetIssue fetches a single issue.
func (c *Client) GetIssue(ctx context.Context, owner, repo string, number int) (Issue, error) {
	if err := c.limiter.WaitIfNeeded(ctx, 1); err != nil {
		return Issue{}, err
	}
	var raw struct {
		Number int    `json:"number"`
		Title  string `json:"title"`
		Body   string `json:"body"`
		State  string `json:"state"`
		Labels []struct {
			Name string `json:"name"`
		} `json:"labels"`
	}
	path := fmt.Sprintf("/repos/%s/%s/issues/%d", owner, repo, number)
	if err := c.getJSON(ctx, path, &raw); err != nil {
		return Issue{}, fmt.Errorf("op=github.GetIssue: %w", err)
	}
	issue := Issue{Number: raw.Number, Title: raw.Title, Body: raw.Body, State: raw.State}
	for _, l := range raw.Labels {
		issue.Labels = append(issue.Labels, l.Name)
	}
	return issue, nil
}

// GetRepository fetches repository metadata, serving repeat lookups from the
// in-process cache.
func (c *Client) GetRepository(ctx context.Context, owner, repo string) (Repository, error) {
	key := owner + "/" + repo
	if cached, ok := c.repos.Get(key); ok {
		return cached, nil
	}
	if err := c.limiter.WaitIfNeeded(ctx, 1); err != nil {
		return Repository{}, err
	}
	var r Repository
	if err := c.getJSON(ctx, "/repos/"+key, &r); err != nil {
		return Repository{}, fmt.Errorf("op=github.GetRepository: %w", err)
	}
	c.repos.Put(key, r)
	return r, nil
}

// Probe implements QuotaProbe against the /rate_limit endpoint. It bypasses
// the limiter on purpose; /rate_limit does not consume quota.
func (c *Client) Probe(ctx context.Context) (Quota, error) {
	var raw struct {
		Resources struct {
			Core struct {
				Limit     int   `json:"limit"`
				Remaining int   `json:"remaining"`
				Reset     int64 `json:"reset"`
			} `json:"core"`
		} `json:"resources"`
	}
	if err := c.getJSON(ctx, "/rate_limit", &raw); err != nil {
		return Quota{}, fmt.Errorf("op=github.Probe: %w", err)
	}
	core := raw.Resources.Core
	return Quota{
		Remaining: core.Remaining,
		Limit:     core.Limit,
		ResetAt:   time.Unix(core.Reset, 0),
	}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("%w: %w", domain.ErrConnection, err)
		}
		defer func() { _ = resp.Body.Close() }()

		if err := classifyStatus(resp); err != nil {
			if !domain.IsRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("%w: %w", domain.ErrParsing, err))
		}
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	if err := backoff.RetryNotify(op, bo, func(err error, next time.Duration) {
		c.logger.Warn("remote API call failed; retrying",
			slog.String("path", path),
			slog.Duration("next_in", next),
			slog.Any("error", err))
	}); err != nil {
		return err
	}
	return nil
}

func classifyStatus(resp *http.Response) error {
	if resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: status 401", domain.ErrAuthentication)
	case resp.StatusCode == http.StatusForbidden && strings.Contains(strings.ToLower(string(body)), "rate limit"):
		return fmt.Errorf("%w: status 403", domain.ErrRateLimited)
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status 403: %s", domain.ErrAuthentication, firstLine(body))
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: status 404", domain.ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status 429", domain.ErrRateLimited)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", domain.ErrConnection, resp.StatusCode)
	default:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, firstLine(body))
	}
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
