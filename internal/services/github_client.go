package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const githubAPIBase = "https://api.github.com"

// GitHubClient is the REST implementation of CommitAPI.
type GitHubClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewGitHubClient(token string) *GitHubClient {
	return &GitHubClient{
		baseURL: githubAPIBase,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// NewGitHubClientWithBaseURL exists for tests against a local server.
func NewGitHubClientWithBaseURL(token, baseURL string) *GitHubClient {
	c := NewGitHubClient(token)
	c.baseURL = baseURL
	return c
}

func (c *GitHubClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("github request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github API returned status %d for %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode github response: %w", err)
	}
	return nil
}

type ghCommitAuthor struct {
	Name string `json:"name"`
	Date string `json:"date"`
}

type ghCommit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string         `json:"message"`
		Author  ghCommitAuthor `json:"author"`
	} `json:"commit"`
	Author *struct {
		Login string `json:"login"`
	} `json:"author"`
	Stats struct {
		Additions int `json:"additions"`
		Deletions int `json:"deletions"`
		Total     int `json:"total"`
	} `json:"stats"`
	Files []struct {
		Filename  string `json:"filename"`
		Status    string `json:"status"`
		Additions int    `json:"additions"`
		Deletions int    `json:"deletions"`
		Changes   int    `json:"changes"`
		Patch     string `json:"patch"`
	} `json:"files"`
}

func (g ghCommit) toAPICommit() APICommit {
	commit := APICommit{
		SHA:        g.SHA,
		Message:    g.Commit.Message,
		AuthorName: g.Commit.Author.Name,
		Date:       g.Commit.Author.Date,
	}
	if g.Author != nil {
		commit.AuthorLogin = g.Author.Login
	}
	return commit
}

func (c *GitHubClient) ListCommits(ctx context.Context, owner, repo string, perPage int) ([]APICommit, error) {
	var raw []ghCommit
	path := fmt.Sprintf("/repos/%s/%s/commits?per_page=%d", owner, repo, perPage)
	if err := c.get(ctx, path, &raw); err != nil {
		return nil, err
	}

	commits := make([]APICommit, 0, len(raw))
	for _, g := range raw {
		commits = append(commits, g.toAPICommit())
	}
	return commits, nil
}

func (c *GitHubClient) GetCommit(ctx context.Context, owner, repo, sha string) (*APICommitDetail, error) {
	var raw ghCommit
	path := fmt.Sprintf("/repos/%s/%s/commits/%s", owner, repo, sha)
	if err := c.get(ctx, path, &raw); err != nil {
		return nil, err
	}

	detail := &APICommitDetail{
		APICommit: raw.toAPICommit(),
		Stats: APICommitStats{
			Additions: raw.Stats.Additions,
			Deletions: raw.Stats.Deletions,
			Total:     raw.Stats.Total,
		},
	}
	for _, f := range raw.Files {
		detail.Files = append(detail.Files, APICommitFile{
			Filename:  f.Filename,
			Status:    f.Status,
			Additions: f.Additions,
			Deletions: f.Deletions,
			Changes:   f.Changes,
			Patch:     f.Patch,
		})
	}
	return detail, nil
}

func (c *GitHubClient) GetRepository(ctx context.Context, owner, repo string) (*APIRepository, error) {
	var raw struct {
		FullName      string `json:"full_name"`
		Description   string `json:"description"`
		Language      string `json:"language"`
		DefaultBranch string `json:"default_branch"`
	}
	if err := c.get(ctx, fmt.Sprintf("/repos/%s/%s", owner, repo), &raw); err != nil {
		return nil, err
	}
	return &APIRepository{
		FullName:      raw.FullName,
		Description:   raw.Description,
		Language:      raw.Language,
		DefaultBranch: raw.DefaultBranch,
	}, nil
}

func (c *GitHubClient) ListLanguages(ctx context.Context, owner, repo string) (map[string]int, error) {
	languages := make(map[string]int)
	if err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/languages", owner, repo), &languages); err != nil {
		return nil, err
	}
	return languages, nil
}

func (c *GitHubClient) GetTree(ctx context.Context, owner, repo, ref string) ([]APITreeEntry, error) {
	var raw struct {
		Tree []struct {
			Path string `json:"path"`
			Type string `json:"type"`
			Size int    `json:"size"`
			SHA  string `json:"sha"`
		} `json:"tree"`
	}
	path := fmt.Sprintf("/repos/%s/%s/git/trees/%s?recursive=1", owner, repo, url.PathEscape(ref))
	if err := c.get(ctx, path, &raw); err != nil {
		return nil, err
	}

	entries := make([]APITreeEntry, 0, len(raw.Tree))
	for _, e := range raw.Tree {
		entries = append(entries, APITreeEntry{Path: e.Path, Type: e.Type, Size: e.Size, SHA: e.SHA})
	}
	return entries, nil
}

func (c *GitHubClient) GetFileContent(ctx context.Context, owner, repo, path string) (string, error) {
	var raw struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, path), &raw); err != nil {
		return "", err
	}
	if raw.Encoding != "base64" {
		return raw.Content, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(raw.Content)
	if err != nil {
		// The contents API wraps base64 at 60 columns.
		decoded, err = base64.StdEncoding.DecodeString(removeNewlines(raw.Content))
		if err != nil {
			return "", fmt.Errorf("failed to decode file content: %w", err)
		}
	}
	return string(decoded), nil
}

func removeNewlines(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\n' && s[i] != '\r' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
