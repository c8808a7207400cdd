// Package gitclient fetches package sources at a declared revision, with
// bounded retry for transient network failures. Permanent failures (bad URL,
// unknown revision, auth) are surfaced immediately as typed errors.
package gitclient

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"git.home.luguber.info/inful/cxxpack/internal/config"
	"git.home.luguber.info/inful/cxxpack/internal/logfields"
	"git.home.luguber.info/inful/cxxpack/internal/retry"
)

type cloneFunc func(ctx context.Context, pkg config.Package, dir string) error

// Client handles source checkout operations.
type Client struct {
	policy retry.Policy
	clone  cloneFunc // overridable in tests
}

// New creates a client with the given retry policy.
func New(policy retry.Policy) *Client {
	c := &Client{policy: policy}
	c.clone = c.cloneOnce
	return c
}

// Clone fetches pkg's source at its declared revision into dir, removing any
// stale checkout first. It returns the number of attempts made (>= 1).
func (c *Client) Clone(ctx context.Context, pkg config.Package, dir string) (int, error) {
	var lastErr error
	for attempt := 0; attempt <= c.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("retrying clone", logfields.Package(pkg.EffectiveName()), logfields.Attempt(attempt))
			select {
			case <-ctx.Done():
				return attempt, ctx.Err()
			case <-time.After(c.policy.Delay(attempt)):
			}
		}
		err := c.clone(ctx, pkg, dir)
		if err == nil {
			return attempt + 1, nil
		}
		lastErr = err
		if IsPermanent(err) || ctx.Err() != nil {
			return attempt + 1, err
		}
	}
	return c.policy.MaxRetries + 1, fmt.Errorf("clone failed after %d attempts: %w", c.policy.MaxRetries+1, lastErr)
}

func (c *Client) cloneOnce(ctx context.Context, pkg config.Package, dir string) error {
	name := pkg.EffectiveName()
	slog.Debug("cloning package", logfields.Package(name), logfields.URL(pkg.URL), logfields.Revision(pkg.Revision), logfields.Path(dir))
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove existing directory: %w", err)
	}

	repo, err := plainClone(ctx, pkg, dir, plumbing.NewBranchReferenceName(pkg.Revision))
	if err != nil && isUnknownReference(err) {
		// Revision may be a tag rather than a branch.
		repo, err = plainClone(ctx, pkg, dir, plumbing.NewTagReferenceName(pkg.Revision))
	}
	if err != nil {
		return classifyCloneError(pkg.URL, pkg.Revision, err)
	}

	if pkg.Submodules {
		if err := updateSubmodules(repo); err != nil {
			return fmt.Errorf("failed to update submodules for %s: %w", name, err)
		}
	}

	if ref, herr := repo.Head(); herr == nil {
		slog.Info("package cloned", logfields.Package(name), logfields.Revision(pkg.Revision), slog.String("commit", ref.Hash().String()[:8]))
	} else {
		slog.Info("package cloned", logfields.Package(name), logfields.Revision(pkg.Revision))
	}
	return nil
}

func plainClone(ctx context.Context, pkg config.Package, dir string, ref plumbing.ReferenceName) (*git.Repository, error) {
	_ = os.RemoveAll(dir)
	return git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:           pkg.URL,
		ReferenceName: ref,
		SingleBranch:  true,
	})
}

func updateSubmodules(repo *git.Repository) error {
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	subs, err := wt.Submodules()
	if err != nil {
		return err
	}
	return subs.Update(&git.SubmoduleUpdateOptions{
		Init:              true,
		RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
	})
}

func isUnknownReference(err error) bool {
	if err == nil {
		return false
	}
	l := strings.ToLower(err.Error())
	return strings.Contains(l, "reference not found") || strings.Contains(l, "couldn't find remote ref")
}
