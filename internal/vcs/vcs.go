// Package vcs keeps a book project under git.
package vcs

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"
)

var ErrNothingToCommit = errors.New("nothing to commit")

// Author signs commits made by folio.
type Author struct {
	Name  string
	Email string
}

// DefaultAuthor is used when no author is configured.
var DefaultAuthor = Author{Name: "folio", Email: "folio@localhost"}

// CommitInfo summarizes a commit.
type CommitInfo struct {
	Hash    string
	Subject string
	Author  string
	When    time.Time
}

// InitRepository opens the repository at path, creating it when absent.
func InitRepository(path string) (*git.Repository, bool, error) {
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, false, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, false, fmt.Errorf("failed to open repository: %w", err)
	}

	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, false, fmt.Errorf("failed to init repository: %w", err)
	}
	return repo, true, nil
}

// OpenRepository opens the repository containing path.
func OpenRepository(path string) (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}
	return repo, nil
}

// CommitPaths stages paths and commits them. Paths may be absolute or
// relative to the working tree root. ErrNothingToCommit is returned when
// none of them changed.
func CommitPaths(repo *git.Repository, paths []string, message string, author Author) (plumbing.Hash, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to get worktree: %w", err)
	}
	root := wt.Filesystem.Root()

	rels := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := relPath(root, p)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if _, err := wt.Add(rel); err != nil {
			return plumbing.ZeroHash, fmt.Errorf("failed to stage %s: %w", rel, err)
		}
		rels = append(rels, rel)
	}

	status, err := wt.Status()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to read status: %w", err)
	}
	staged := false
	for _, rel := range rels {
		if fs, ok := status[rel]; ok && fs.Staging != git.Unmodified && fs.Staging != git.Untracked {
			staged = true
			break
		}
	}
	if !staged {
		return plumbing.ZeroHash, ErrNothingToCommit
	}

	if author.Name == "" {
		author = DefaultAuthor
	}
	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author.Name,
			Email: author.Email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to commit: %w", err)
	}
	return hash, nil
}

// History returns up to limit commits reachable from HEAD, newest first.
// limit <= 0 returns all of them.
func History(repo *git.Repository, limit int) ([]CommitInfo, error) {
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("failed to get commit log: %w", err)
	}
	defer iter.Close()

	var commits []CommitInfo
	for {
		c, err := iter.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return commits, fmt.Errorf("failed to read commit log: %w", err)
		}
		commits = append(commits, CommitInfo{
			Hash:    c.Hash.String(),
			Subject: subject(c.Message),
			Author:  c.Author.Name,
			When:    c.Author.When,
		})
		if limit > 0 && len(commits) >= limit {
			break
		}
	}
	return commits, nil
}

func relPath(root, p string) (string, error) {
	if !filepath.IsAbs(p) {
		return filepath.ToSlash(filepath.Clean(p)), nil
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(absRoot, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside the repository", p)
	}
	return filepath.ToSlash(rel), nil
}

func subject(message string) string {
	line, _, _ := strings.Cut(message, "\n")
	return strings.TrimSpace(line)
}
