// Package release looks up published releases to tell users about updates.
package release

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v60/github"

	"github.com/cgast/envcheck/pkg/version"
)

// ErrNoRelease is returned when the repository has no published release.
var ErrNoRelease = errors.New("no published release")

// Option configures a Checker.
type Option func(*Checker) error

// WithToken authenticates API requests, raising rate limits.
func WithToken(token string) Option {
	return func(c *Checker) error {
		if token != "" {
			c.httpClient = &http.Client{Transport: &tokenTransport{token: token}}
		}
		return nil
	}
}

// WithBaseURL points the client at another API root, such as a test server.
func WithBaseURL(raw string) Option {
	return func(c *Checker) error {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse base url: %w", err)
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		c.baseURL = u
		return nil
	}
}

// Checker reads the latest release of one repository.
type Checker struct {
	owner, repo string
	httpClient  *http.Client
	baseURL     *url.URL
	client      *gh.Client
}

// NewChecker creates a checker for owner/repo.
func NewChecker(owner, repo string, opts ...Option) (*Checker, error) {
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("repository owner and name are required")
	}
	c := &Checker{owner: owner, repo: repo}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.client = gh.NewClient(c.httpClient)
	if c.baseURL != nil {
		c.client.BaseURL = c.baseURL
	}
	return c, nil
}

// Latest returns the tag of the newest release without a leading "v".
func (c *Checker) Latest(ctx context.Context) (string, error) {
	rel, _, err := c.client.Repositories.GetLatestRelease(ctx, c.owner, c.repo)
	if err != nil {
		var ghErr *gh.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("%s/%s: %w", c.owner, c.repo, ErrNoRelease)
		}
		return "", fmt.Errorf("latest release of %s/%s: %w", c.owner, c.repo, err)
	}
	tag := strings.TrimPrefix(rel.GetTagName(), "v")
	if tag == "" {
		return "", fmt.Errorf("%s/%s: %w", c.owner, c.repo, ErrNoRelease)
	}
	return tag, nil
}

// UpdateAvailable reports the latest release and whether it is newer
// than current.
func (c *Checker) UpdateAvailable(ctx context.Context, current string) (string, bool, error) {
	latest, err := c.Latest(ctx)
	if err != nil {
		return "", false, err
	}
	return latest, version.Compare(strings.TrimPrefix(current, "v"), latest) < 0, nil
}

// tokenTransport adds Bearer token auth to HTTP requests.
type tokenTransport struct {
	token string
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return http.DefaultTransport.RoundTrip(req)
}
