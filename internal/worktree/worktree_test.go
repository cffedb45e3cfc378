package worktree

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestRepoNameExtractsDirname(t *testing.T) {
	if got := RepoName("/home/user/myrepo"); got != "myrepo" {
		t.Errorf("RepoName = %q", got)
	}
	if got := RepoName("/foo/bar"); got != "bar" {
		t.Errorf("RepoName = %q", got)
	}
}

func TestRepoNameFallbackForRoot(t *testing.T) {
	if got := RepoName("/"); got != "repo" {
		t.Errorf("RepoName(/) = %q, want repo", got)
	}
}

func TestIsGitRepoFalseForPlainDir(t *testing.T) {
	if IsGitRepo(t.TempDir()) {
		t.Error("temp dir misdetected as git repo")
	}
}

func TestRepoRootEmptyForNonRepo(t *testing.T) {
	if got := RepoRoot(t.TempDir()); got != "" {
		t.Errorf("RepoRoot = %q, want empty", got)
	}
}

// makeTempRepo creates a throwaway git repo with one commit, the minimum
// for worktrees to work.
func makeTempRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	repo := filepath.Join(t.TempDir(), "testrepo")
	if err := os.Mkdir(repo, 0755); err != nil {
		t.Fatal(err)
	}
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	run("-C", repo, "init")
	run("-C", repo, "config", "user.email", "test@test")
	run("-C", repo, "config", "user.name", "test")
	run("-C", repo, "commit", "--allow-empty", "-m", "init")
	return repo
}

func TestCreateThenReuse(t *testing.T) {
	repo := makeTempRepo(t)

	wt, err := Create(repo, 42)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if fi, err := os.Stat(wt); err != nil || !fi.IsDir() {
		t.Fatalf("worktree dir missing: %v", err)
	}
	if filepath.Base(wt) != "testrepo-wt-42" {
		t.Errorf("worktree name = %q", filepath.Base(wt))
	}

	wt2, err := Create(repo, 42)
	if err != nil {
		t.Fatalf("second create (reuse): %v", err)
	}
	if wt != wt2 {
		t.Errorf("reuse returned a different path: %q vs %q", wt, wt2)
	}
}

func TestExistsAfterCreation(t *testing.T) {
	repo := makeTempRepo(t)
	wt, err := Create(repo, 99)
	if err != nil {
		t.Fatal(err)
	}
	if !Exists(repo, wt) {
		t.Error("created worktree not reported as existing")
	}
}

func TestExistsFalseForPlainDir(t *testing.T) {
	repo := makeTempRepo(t)
	bogus := filepath.Join(filepath.Dir(repo), "not-a-worktree")
	if err := os.Mkdir(bogus, 0755); err != nil {
		t.Fatal(err)
	}
	if Exists(repo, bogus) {
		t.Error("plain dir reported as worktree")
	}
}

func TestRemoveWorktree(t *testing.T) {
	repo := makeTempRepo(t)
	wt, err := Create(repo, 7)
	if err != nil {
		t.Fatal(err)
	}
	if err := Remove(repo, wt); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if Exists(repo, wt) {
		t.Error("worktree still registered after removal")
	}
}

func TestRootForFindsSiblingRepo(t *testing.T) {
	repo := makeTempRepo(t)
	wt, err := Create(repo, 3)
	if err != nil {
		t.Fatal(err)
	}
	root := RootFor(wt)
	if root == "" {
		t.Fatal("RootFor found nothing")
	}
	canonRoot, _ := filepath.EvalSymlinks(root)
	canonRepo, _ := filepath.EvalSymlinks(repo)
	if canonRoot != canonRepo {
		t.Errorf("RootFor = %q, want %q", root, repo)
	}
}
