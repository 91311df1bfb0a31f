package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultScratchDirName = "konoha-scratch"

// Scratch hands out per-invocation temporary paths under one root so that
// concurrent handlers never collide and every file can be removed afterwards.
type Scratch struct {
	rootPath string
	now      func() time.Time
}

// NewScratch resolves the scratch root and ensures the directory exists.
func NewScratch(dir string) (*Scratch, error) {
	resolved, err := ResolveRoot(dir)
	if err != nil {
		return nil, err
	}

	return &Scratch{rootPath: resolved, now: time.Now}, nil
}

// ResolveRoot normalizes the scratch path input and creates it when missing.
// An empty input selects a directory under the system temp dir.
func ResolveRoot(dir string) (string, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		trimmed = filepath.Join(os.TempDir(), defaultScratchDirName)
	}

	expanded, err := expandHome(trimmed)
	if err != nil {
		return "", err
	}

	absPath, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("resolve absolute scratch path: %w", err)
	}

	cleanPath := filepath.Clean(absPath)
	if err := os.MkdirAll(cleanPath, 0o755); err != nil {
		return "", fmt.Errorf("create scratch directory: %w", err)
	}

	resolved, err := filepath.EvalSymlinks(cleanPath)
	if err != nil {
		return "", NormalizeIOError(err, "resolve scratch root")
	}

	return filepath.Clean(resolved), nil
}

// Root returns the normalized absolute scratch root path.
func (s *Scratch) Root() string {
	if s == nil {
		return ""
	}

	return s.rootPath
}

// Entry is one reserved scratch path. Release removes it.
type Entry struct {
	Path    string
	scratch *Scratch
}

// File reserves a unique file path such as speech-1700000000000-1a2b3c4d.mp3.
// The file itself is not created.
func (s *Scratch) File(prefix string, ext string) (*Entry, error) {
	path, err := s.ResolvePath(s.uniqueName(prefix) + normalizeExt(ext))
	if err != nil {
		return nil, err
	}

	return &Entry{Path: path, scratch: s}, nil
}

// Dir creates a unique subdirectory for tools that pick their own file names.
func (s *Scratch) Dir(prefix string) (*Entry, error) {
	path, err := s.ResolvePath(s.uniqueName(prefix))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, NormalizeIOError(err, "create scratch subdirectory")
	}

	return &Entry{Path: path, scratch: s}, nil
}

// Join returns a path inside a Dir entry.
func (e *Entry) Join(name string) (string, error) {
	if e == nil || e.scratch == nil {
		return "", NewError(ErrorIO, "scratch entry is nil")
	}

	joined := filepath.Join(e.Path, name)
	if err := e.scratch.EnsureContained(joined); err != nil {
		return "", err
	}

	return joined, nil
}

// Release removes the entry. Missing files are not an error, so Release is
// safe to defer on every path.
func (e *Entry) Release() error {
	if e == nil || e.scratch == nil || e.Path == "" {
		return nil
	}
	if err := e.scratch.EnsureContained(e.Path); err != nil {
		return err
	}

	if err := os.RemoveAll(e.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return NormalizeIOError(err, "remove scratch entry")
	}

	return nil
}

// Sweep removes direct children of the root last modified before the cutoff.
// It returns how many entries were removed.
func (s *Scratch) Sweep(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(s.rootPath)
	if err != nil {
		return 0, NormalizeIOError(err, "list scratch directory")
	}

	cutoff := s.now().Add(-olderThan)
	removed := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.rootPath, entry.Name())); err != nil {
			return removed, NormalizeIOError(err, "sweep scratch directory")
		}
		removed++
	}

	return removed, nil
}

// ResolvePath validates and returns a canonical absolute path inside the root.
func (s *Scratch) ResolvePath(inputPath string) (string, error) {
	if s == nil {
		return "", NewError(ErrorIO, "scratch space is nil")
	}

	trimmed := strings.TrimSpace(inputPath)
	if trimmed == "" {
		return "", NewError(ErrorInvalidPath, "path must not be empty")
	}

	candidate := trimmed
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(s.rootPath, candidate)
	}

	absPath, err := filepath.Abs(candidate)
	if err != nil {
		return "", NewError(ErrorInvalidPath, "path could not be resolved")
	}

	effectivePath, err := canonicalPath(filepath.Clean(absPath))
	if err != nil {
		return "", err
	}

	if !isWithin(s.rootPath, effectivePath) {
		return "", NewError(ErrorOutsideWorkspace, "resolved path escapes scratch root")
	}

	return effectivePath, nil
}

// EnsureContained re-checks containment right before mutating operations.
func (s *Scratch) EnsureContained(path string) error {
	effectivePath, err := canonicalPath(path)
	if err != nil {
		return err
	}

	if !isWithin(s.rootPath, effectivePath) || effectivePath == s.rootPath {
		return NewError(ErrorOutsideWorkspace, "resolved path escapes scratch root")
	}

	return nil
}

func (s *Scratch) uniqueName(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "-./\\")
	if prefix == "" {
		prefix = "tmp"
	}

	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return prefix + "-" + strconv.FormatInt(s.now().UnixMilli(), 10) + "-" + id
}

func normalizeExt(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" || strings.HasPrefix(ext, ".") {
		return ext
	}

	return "." + ext
}

func canonicalPath(path string) (string, error) {
	evaluated, err := filepath.EvalSymlinks(path)
	if err == nil {
		return filepath.Clean(evaluated), nil
	}
	if !os.IsNotExist(err) {
		return "", NormalizeIOError(err, "resolve path")
	}

	parent, remainder, splitErr := nearestExistingParent(path)
	if splitErr != nil {
		return "", splitErr
	}

	evaluatedParent, evalErr := filepath.EvalSymlinks(parent)
	if evalErr != nil {
		return "", NormalizeIOError(evalErr, "resolve path")
	}

	return filepath.Clean(filepath.Join(evaluatedParent, remainder)), nil
}

func nearestExistingParent(path string) (string, string, error) {
	current := filepath.Clean(path)
	parts := make([]string, 0)

	for {
		if _, err := os.Lstat(current); err == nil {
			remainder := ""
			for i := len(parts) - 1; i >= 0; i-- {
				remainder = filepath.Join(remainder, parts[i])
			}
			return current, remainder, nil
		}

		base := filepath.Base(current)
		if base == "." || base == string(filepath.Separator) {
			break
		}
		parts = append(parts, base)

		next := filepath.Dir(current)
		if next == current {
			break
		}
		current = next
	}

	return "", "", NewError(ErrorInvalidPath, "path could not be resolved")
}

func expandHome(path string) (string, error) {
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return home, nil
	}

	prefix := "~" + string(filepath.Separator)
	if strings.HasPrefix(path, prefix) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, prefix)), nil
	}

	return path, nil
}

func isWithin(root string, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	if rel == ".." {
		return false
	}
	if strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}

	return !filepath.IsAbs(rel)
}
