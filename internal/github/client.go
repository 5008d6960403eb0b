// Package github is a minimal GitHub REST client for the repo poller. It
// knows how to list commits for a repository and repositories for an
// owner.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/offbyone-dev/offbyone/internal/httputil"
)

// DefaultBaseURL is the public GitHub API endpoint.
const DefaultBaseURL = "https://api.github.com"

// commitPage is the per-request page size when listing commits.
const commitPage = 30

// ErrNotARepo is returned by ParseRepoURL for URLs that are not GitHub
// repository URLs.
var ErrNotARepo = errors.New("not a github repository url")

// Commit is the slice of the GitHub commit object the bot relays.
type Commit struct {
	SHA     string
	Message string
	Author  string
	URL     string
}

// Client talks to the GitHub REST API.
type Client struct {
	httpc   httputil.HTTPClient
	token   string
	baseURL string
}

// NewClient creates a Client. A nil http client falls back to
// http.DefaultClient; an empty token sends unauthenticated requests.
func NewClient(httpc httputil.HTTPClient, token string) *Client {
	if httpc == nil {
		httpc = httputil.NewStandardClient(nil)
	}
	return &Client{httpc: httpc, token: token, baseURL: DefaultBaseURL}
}

// SetBaseURL overrides the API endpoint; used in tests.
func (c *Client) SetBaseURL(base string) {
	c.baseURL = strings.TrimSuffix(base, "/")
}

// ParseRepoURL extracts owner and repo from a GitHub repository URL.
func ParseRepoURL(raw string) (owner, repo string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrNotARepo, err)
	}
	if !strings.EqualFold(u.Host, "github.com") && !strings.EqualFold(u.Host, "www.github.com") {
		return "", "", fmt.Errorf("%w: host %q", ErrNotARepo, u.Host)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: path %q", ErrNotARepo, u.Path)
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

// commitJSON mirrors the fields of the GitHub list-commits response the
// client consumes.
type commitJSON struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Name string `json:"name"`
		} `json:"author"`
	} `json:"commit"`
	HTMLURL string `json:"html_url"`
}

// CommitsSince lists the commits on the default branch newer than
// lastSHA, oldest first. With an empty lastSHA only the latest commit is
// returned, letting a caller establish a cursor without replaying
// history. Commits older than one page are not recovered.
func (c *Client) CommitsSince(ctx context.Context, owner, repo, lastSHA string) ([]Commit, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/commits?per_page=%d", c.baseURL, owner, repo, commitPage)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build commits request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("commits request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("github returned %d for %s/%s: %s", resp.StatusCode, owner, repo, strings.TrimSpace(string(body)))
	}

	var page []commitJSON
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode commits response: %w", err)
	}
	if len(page) == 0 {
		return nil, nil
	}

	// The API returns newest first.
	var newest []commitJSON
	if lastSHA == "" {
		newest = page[:1]
	} else {
		for _, cj := range page {
			if cj.SHA == lastSHA {
				break
			}
			newest = append(newest, cj)
		}
	}

	// Reverse into chronological order.
	commits := make([]Commit, 0, len(newest))
	for i := len(newest) - 1; i >= 0; i-- {
		cj := newest[i]
		commits = append(commits, Commit{
			SHA:     cj.SHA,
			Message: firstLine(cj.Commit.Message),
			Author:  cj.Commit.Author.Name,
			URL:     cj.HTMLURL,
		})
	}
	return commits, nil
}

// Repo is the slice of the GitHub repository object the bot relays.
type Repo struct {
	Name        string
	FullName    string
	Description string
	URL         string
}

type repoJSON struct {
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	HTMLURL     string `json:"html_url"`
}

// ReposSince lists an owner's repositories created after lastName, oldest
// first. With an empty lastName only the newest repository is returned,
// letting a caller establish a cursor without replaying history.
func (c *Client) ReposSince(ctx context.Context, owner, lastName string) ([]Repo, error) {
	endpoint := fmt.Sprintf("%s/users/%s/repos?sort=created&direction=desc&per_page=%d", c.baseURL, owner, commitPage)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build repos request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("repos request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("github returned %d for %s: %s", resp.StatusCode, owner, strings.TrimSpace(string(body)))
	}

	var page []repoJSON
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode repos response: %w", err)
	}
	if len(page) == 0 {
		return nil, nil
	}

	// The API returns newest first.
	var newest []repoJSON
	if lastName == "" {
		newest = page[:1]
	} else {
		for _, rj := range page {
			if rj.Name == lastName {
				break
			}
			newest = append(newest, rj)
		}
	}

	repos := make([]Repo, 0, len(newest))
	for i := len(newest) - 1; i >= 0; i-- {
		rj := newest[i]
		repos = append(repos, Repo{
			Name:        rj.Name,
			FullName:    rj.FullName,
			Description: rj.Description,
			URL:         rj.HTMLURL,
		})
	}
	return repos, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}
