// Package scm submits pull requests through the SCM provider's REST API.
package scm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rzbill/stencil/pkg/log"
)

// ErrNoToken is returned when no API credential is configured. Callers
// treat it as a soft condition: the branch is pushed and the operator
// opens the pull request by hand.
var ErrNoToken = errors.New("no SCM API token configured")

const defaultTimeout = 30 * time.Second

// classicTokenRegex matches the older 40-hex personal access tokens that
// require the "token" authorization scheme.
var classicTokenRegex = regexp.MustCompile(`^[0-9a-f]{40}$`)

// Client talks to a GitHub-compatible pulls API.
type Client struct {
	apiBase string
	token   string
	http    *http.Client
	logger  log.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client. Used by tests.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		c.http = h
	}
}

// NewClient creates a PR client for the given API base URL, e.g.
// https://api.github.com or https://git.example.com/api/v3.
func NewClient(apiBase, token string, logger log.Logger, opts ...ClientOption) *Client {
	c := &Client{
		apiBase: strings.TrimRight(apiBase, "/"),
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logger.WithComponent("scm"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PullRequest is the creation payload.
type PullRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Head  string `json:"head"`
	Base  string `json:"base"`
}

type pullResponse struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
}

// CreatePR opens a pull request on the repository identified by its clone
// URL and returns the web URL of the new PR. An already-open PR for the
// same head and base is not an error; the existing PR's absence of a URL
// is signalled by the returned AlreadyExists flag.
func (c *Client) CreatePR(ctx context.Context, cloneURL string, pr PullRequest) (url string, alreadyExists bool, err error) {
	if c.token == "" {
		return "", false, ErrNoToken
	}

	owner, repo, err := ParseRepoPath(cloneURL)
	if err != nil {
		return "", false, err
	}

	payload, err := json.Marshal(pr)
	if err != nil {
		return "", false, fmt.Errorf("encode pull request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/pulls", c.apiBase, owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", false, fmt.Errorf("build pull request call: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.authHeader())

	c.logger.Info("Creating pull request",
		log.Str("repo", owner+"/"+repo),
		log.Str("head", pr.Head),
		log.Str("base", pr.Base))

	resp, err := c.http.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("pull request call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", false, fmt.Errorf("read pull request response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var out pullResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return "", false, fmt.Errorf("decode pull request response: %w", err)
		}
		return out.HTMLURL, false, nil

	case resp.StatusCode == http.StatusUnprocessableEntity && bytes.Contains(body, []byte("already exists")):
		c.logger.Info("Pull request already open", log.Str("repo", owner+"/"+repo), log.Str("head", pr.Head))
		return "", true, nil

	default:
		return "", false, fmt.Errorf("pull request API returned %d: %s", resp.StatusCode, compact(body))
	}
}

// authHeader picks the authorization scheme the credential shape requires.
func (c *Client) authHeader() string {
	if classicTokenRegex.MatchString(c.token) {
		return "token " + c.token
	}
	return "Bearer " + c.token
}

// ParseRepoPath extracts the owner and repository name from an HTTPS or
// SSH clone URL.
func ParseRepoPath(cloneURL string) (owner, repo string, err error) {
	trimmed := strings.TrimSuffix(strings.TrimRight(cloneURL, "/"), ".git")

	// SSH form: git@host:owner/repo
	if at := strings.Index(trimmed, "@"); at >= 0 && !strings.Contains(trimmed, "://") {
		if colon := strings.Index(trimmed, ":"); colon > at {
			trimmed = trimmed[colon+1:]
		}
	}

	parts := strings.Split(trimmed, "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("cannot derive owner/repo from clone URL %q", cloneURL)
	}
	owner, repo = parts[len(parts)-2], parts[len(parts)-1]
	if owner == "" || repo == "" || strings.Contains(owner, ":") {
		return "", "", fmt.Errorf("cannot derive owner/repo from clone URL %q", cloneURL)
	}
	return owner, repo, nil
}

// compact flattens a response body into a single log-friendly line.
func compact(body []byte) string {
	s := strings.Join(strings.Fields(string(body)), " ")
	if len(s) > 300 {
		s = s[:300] + "..."
	}
	return s
}
