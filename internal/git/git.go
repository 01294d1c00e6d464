package git

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"git.home.luguber.info/inful/deploybuilder/internal/logfields"
	"git.home.luguber.info/inful/deploybuilder/internal/retry"
)

// Source identifies a repository to build.
type Source struct {
	URL    string `json:"repository"`
	Branch string `json:"branch,omitempty"`
	// Token is sent as HTTP basic auth password when set.
	Token string `json:"-"`
}

// Client clones repositories into a workspace directory.
type Client struct {
	workspaceDir string
	depth        int
	policy       retry.Policy
	sleep        retry.SleepFunc
	clone        func(ctx context.Context, path string, opts *git.CloneOptions) (*git.Repository, error)
}

// NewClient creates a client cloning into workspaceDir with depth 1 and no retries.
func NewClient(workspaceDir string) *Client {
	return &Client{
		workspaceDir: workspaceDir,
		depth:        1,
		policy:       retry.New("", 0, 0, 0),
		sleep:        retry.Sleep,
		clone: func(ctx context.Context, path string, opts *git.CloneOptions) (*git.Repository, error) {
			return git.PlainCloneContext(ctx, path, false, opts)
		},
	}
}

// WithRetryPolicy sets the retry policy for transient clone failures (fluent helper).
func (c *Client) WithRetryPolicy(p retry.Policy) *Client {
	c.policy = p
	return c
}

// WithDepth sets the clone depth; zero clones full history (fluent helper).
func (c *Client) WithDepth(depth int) *Client {
	if depth >= 0 {
		c.depth = depth
	}
	return c
}

// Clone checks out src into workspaceDir/name, replacing anything already there.
func (c *Client) Clone(ctx context.Context, src Source, name string) (string, error) {
	if src.URL == "" {
		return "", classifyError(src.URL, fmt.Errorf("repository URL is required"))
	}
	repoPath := filepath.Join(c.workspaceDir, name)

	return c.withRetry(ctx, src.URL, func() (string, error) {
		return c.cloneOnce(ctx, src, repoPath)
	})
}

func (c *Client) cloneOnce(ctx context.Context, src Source, repoPath string) (string, error) {
	slog.Debug("Cloning repository", logfields.URL(src.URL), slog.String("branch", src.Branch), logfields.Path(repoPath))

	if err := os.RemoveAll(repoPath); err != nil {
		return "", fmt.Errorf("failed to remove existing directory: %w", err)
	}

	opts := &git.CloneOptions{
		URL:   src.URL,
		Depth: c.depth,
		Auth:  tokenAuth(src.Token),
	}
	if src.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(src.Branch)
		opts.SingleBranch = true
	}

	repository, err := c.clone(ctx, repoPath, opts)
	if err != nil {
		_ = os.RemoveAll(repoPath)
		return "", classifyError(src.URL, err)
	}

	if ref, err := repository.Head(); err == nil {
		slog.Info("Repository cloned successfully",
			logfields.URL(src.URL),
			slog.String("commit", ref.Hash().String()[:8]),
			logfields.Path(repoPath))
	} else {
		slog.Info("Repository cloned successfully", logfields.URL(src.URL), logfields.Path(repoPath))
	}
	return repoPath, nil
}

// StripMetadata removes the .git directory from a checkout so only the
// working tree remains.
func StripMetadata(checkout string) error {
	if err := os.RemoveAll(filepath.Join(checkout, git.GitDirName)); err != nil {
		return fmt.Errorf("failed to remove repository metadata: %w", err)
	}
	return nil
}

// RemoveExternalLinks deletes every symlink in checkout that resolves outside
// of it or to nothing, and returns the removed paths relative to checkout.
func RemoveExternalLinks(checkout string) ([]string, error) {
	root, err := resolve(checkout)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve checkout: %w", err)
	}

	var removed []string
	err = filepath.WalkDir(checkout, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		if target, err := resolve(path); err == nil && contains(root, target) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		rel, err := filepath.Rel(checkout, path)
		if err != nil {
			return err
		}
		removed = append(removed, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("failed to remove external links: %w", err)
	}
	return removed, nil
}

func resolve(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", err
	}
	return filepath.Abs(resolved)
}

func contains(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
