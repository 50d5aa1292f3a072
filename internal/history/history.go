// Package history keeps a git repository per owner and commits the persisted
// section list on every save.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"arp/api/internal/section"
)

const (
	branchName   = "main"
	sectionsFile = "sections.json"
)

var ErrNoHistory = errors.New("no history")

// Commit describes one recorded save.
type Commit struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type Service struct {
	baseDir string
	now     func() time.Time

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		now:     time.Now,
		locks:   map[string]*sync.Mutex{},
	}
}

// Record writes sections as sections.json and commits it on main. Saving an
// unchanged list is a no-op that returns the current head.
func (s *Service) Record(ownerID string, sections []section.Section, author, message string) (Commit, error) {
	lock := s.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.openOrInit(ownerID)
	if err != nil {
		return Commit{}, err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return Commit{}, fmt.Errorf("open worktree: %w", err)
	}

	if sections == nil {
		sections = []section.Section{}
	}
	payload, err := json.MarshalIndent(sections, "", "  ")
	if err != nil {
		return Commit{}, fmt.Errorf("marshal sections: %w", err)
	}
	root := worktree.Filesystem.Root()
	if err := os.WriteFile(filepath.Join(root, sectionsFile), append(payload, '\n'), 0o644); err != nil {
		return Commit{}, fmt.Errorf("write %s: %w", sectionsFile, err)
	}
	if _, err := worktree.Add(sectionsFile); err != nil {
		return Commit{}, fmt.Errorf("git add sections: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return Commit{}, fmt.Errorf("worktree status: %w", err)
	}
	if status.IsClean() {
		if head, err := repo.Head(); err == nil {
			obj, err := repo.CommitObject(head.Hash())
			if err != nil {
				return Commit{}, fmt.Errorf("read head commit: %w", err)
			}
			return toCommit(obj), nil
		}
	}

	if strings.TrimSpace(author) == "" {
		author = "ARP"
	}
	if strings.TrimSpace(message) == "" {
		message = fmt.Sprintf("Save %d sections", len(sections))
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@arp.local", sanitizeEmail(author)),
			When:  s.now(),
		},
	})
	if err != nil {
		return Commit{}, fmt.Errorf("commit sections: %w", err)
	}
	obj, err := repo.CommitObject(hash)
	if err != nil {
		return Commit{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommit(obj), nil
}

// List returns the newest limit commits of ownerID, newest first. A
// non-positive limit returns all of them.
func (s *Service) List(ownerID string, limit int) ([]Commit, error) {
	lock := s.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(ownerID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return []Commit{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branchName), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return []Commit{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve branch %s: %w", branchName, err)
	}

	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Commit, 0)
	err = iter.ForEach(func(obj *object.Commit) error {
		items = append(items, toCommit(obj))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// Load returns the section list recorded at hash, which may be abbreviated.
func (s *Service) Load(ownerID, hash string) ([]section.Section, error) {
	lock := s.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(ownerID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, ErrNoHistory
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return nil, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	obj, err := repo.CommitObject(*resolved)
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", hash, err)
	}
	file, err := obj.File(sectionsFile)
	if err != nil {
		return nil, fmt.Errorf("load %s from commit: %w", sectionsFile, err)
	}
	contents, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sectionsFile, err)
	}
	return section.NormalizeListJSON([]byte(contents)), nil
}

func (s *Service) openOrInit(ownerID string) (*git.Repository, error) {
	path := s.repoPath(ownerID)
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	// go-git initializes HEAD on master; point it at main before the first commit.
	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branchName))
	if err := repo.Storer.SetReference(head); err != nil {
		return nil, fmt.Errorf("set head: %w", err)
	}
	return repo, nil
}

func (s *Service) repoPath(ownerID string) string {
	return filepath.Join(s.baseDir, sanitizeDir(ownerID))
}

func (s *Service) ownerLock(ownerID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[ownerID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[ownerID] = lock
	return lock
}

func toCommit(obj *object.Commit) Commit {
	return Commit{
		Hash:      obj.Hash.String()[:7],
		Message:   strings.TrimSpace(obj.Message),
		Author:    obj.Author.Name,
		CreatedAt: obj.Author.When,
	}
}

func sanitizeDir(ownerID string) string {
	out := make([]rune, 0, len(ownerID))
	for _, r := range ownerID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "_"
	}
	return string(out)
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}
