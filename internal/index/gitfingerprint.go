package index

import (
	"github.com/go-git/go-git/v5"

	"github.com/riftindex/riftindex/internal/store"
)

// GitFingerprint opens the nearest git repository above root (searching
// upward through parent directories for a .git) and
// summarizes its worktree/head/branch/dirty state. ok is false when root
// isn't inside a git worktree at all — callers should delete rather than
// write the metadata key in that case.
func GitFingerprint(root string) (fp *store.GitFingerprint, ok bool) {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, false
	}

	head, err := repo.Head()
	if err != nil {
		return nil, false
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, false
	}

	dirty := false
	if status, err := worktree.Status(); err == nil {
		dirty = !status.IsClean()
	}

	return &store.GitFingerprint{
		Worktree: worktree.Filesystem.Root(),
		Head:     head.Hash().String(),
		Branch:   head.Name().Short(),
		Dirty:    dirty,
	}, true
}
