// Package worktree shells out to git to create and remove the detached
// worktrees that isolate a worker from the user's main checkout.
package worktree

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// IsGitRepo reports whether path is inside a git repository.
func IsGitRepo(path string) bool {
	cmd := exec.Command("git", "-C", path, "rev-parse", "--git-dir")
	return cmd.Run() == nil
}

// RepoRoot returns the repository's top-level directory, or "" if path is
// not inside a repository.
func RepoRoot(path string) string {
	out, err := exec.Command("git", "-C", path, "rev-parse", "--show-toplevel").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// RepoName returns the repository directory name, used for worktree naming.
func RepoName(root string) string {
	name := filepath.Base(root)
	if name == "/" || name == "." || name == "" {
		return "repo"
	}
	return name
}

// Exists reports whether path is a registered worktree of the repository
// rooted at root. Parses `git worktree list --porcelain`, which handles
// paths with spaces.
func Exists(root, path string) bool {
	out, err := exec.Command("git", "-C", root, "worktree", "list", "--porcelain").Output()
	if err != nil {
		return false
	}
	canonical, _ := filepath.EvalSymlinks(path)
	for _, line := range strings.Split(string(out), "\n") {
		listed, ok := strings.CutPrefix(line, "worktree ")
		if !ok {
			continue
		}
		if listed == path {
			return true
		}
		if canonical != "" {
			if listedCanon, err := filepath.EvalSymlinks(listed); err == nil && listedCanon == canonical {
				return true
			}
		}
	}
	return false
}

// Create adds a detached worktree at <parent-of-root>/<reponame>-wt-<id>
// and returns its path. An already-registered worktree at that path is
// reused, so resuming a prompt lands back in its original tree.
func Create(root string, promptID uint64) (string, error) {
	parent := filepath.Dir(root)
	path := filepath.Join(parent, fmt.Sprintf("%s-wt-%d", RepoName(root), promptID))

	if Exists(root, path) {
		return path, nil
	}

	out, err := exec.Command("git", "-C", root, "worktree", "add", "--detach", path, "HEAD").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git worktree add failed: %s", strings.TrimSpace(string(out)))
	}
	return path, nil
}

// Remove force-removes a worktree from the repository rooted at root.
func Remove(root, path string) error {
	out, err := exec.Command("git", "-C", root, "worktree", "remove", path, "--force").CombinedOutput()
	if err != nil {
		return fmt.Errorf("git worktree remove failed: %s", strings.TrimSpace(string(out)))
	}
	return nil
}

// RootFor locates the repository a worktree belongs to by scanning the
// worktree's parent directory for a sibling repository that registers it.
func RootFor(worktreePath string) string {
	parent := filepath.Dir(worktreePath)
	entries, err := filepath.Glob(filepath.Join(parent, "*"))
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if entry == worktreePath || !IsGitRepo(entry) {
			continue
		}
		if root := RepoRoot(entry); root != "" && Exists(root, worktreePath) {
			return root
		}
	}
	return ""
}
