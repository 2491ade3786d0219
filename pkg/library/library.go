// Package library is the in-memory source store the preprocessor resolves
// includes against. The compiler core never touches the disk; hosts fill the
// store with Write or LoadFrom.
package library

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// MaxSourceBytes caps a single library file.
const MaxSourceBytes = 1 << 20

// validName accepts slash-separated relative paths without "." or ".."
// segments.
var validName = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.\-]*(/[A-Za-z0-9_][A-Za-z0-9_.\-]*)*$`)

// Extensions LoadFrom picks up.
var Extensions = []string{".h", ".dsp", ".inc"}

var (
	ErrFileNotFound = errors.New("file not found")
	ErrInvalidPath  = errors.New("invalid library path")
	ErrTooLarge     = errors.New("library file too large")
)

type Entry struct {
	Source   string
	Modified time.Time
}

// Store holds library sources by slash-separated path plus the ordered list
// of directories include lookups fall back to.
type Store struct {
	mu          sync.RWMutex
	files       map[string]*Entry
	searchPaths []string
}

func NewStore() *Store {
	return &Store{files: make(map[string]*Entry)}
}

func clean(name string) (string, error) {
	name = strings.TrimPrefix(path.Clean(strings.ReplaceAll(name, "\\", "/")), "./")
	if !validName.MatchString(name) {
		return "", errors.Wrapf(ErrInvalidPath, "%q", name)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." || seg == "." {
			return "", errors.Wrapf(ErrInvalidPath, "%q", name)
		}
	}
	return name, nil
}

// Write stores source under name, replacing any previous version.
func (s *Store) Write(name, source string) error {
	name, err := clean(name)
	if err != nil {
		return err
	}
	if len(source) > MaxSourceBytes {
		return errors.Wrapf(ErrTooLarge, "%s is %d bytes", name, len(source))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = &Entry{Source: source, Modified: time.Now()}
	return nil
}

// Read returns the source stored under name.
func (s *Store) Read(name string) (string, error) {
	name, err := clean(name)
	if err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.files[name]
	if !ok {
		return "", errors.Wrap(ErrFileNotFound, name)
	}
	return e.Source, nil
}

// Modified returns when name was last written.
func (s *Store) Modified(name string) (time.Time, error) {
	name, err := clean(name)
	if err != nil {
		return time.Time{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.files[name]
	if !ok {
		return time.Time{}, errors.Wrap(ErrFileNotFound, name)
	}
	return e.Modified, nil
}

func (s *Store) Delete(name string) error {
	name, err := clean(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[name]; !ok {
		return errors.Wrap(ErrFileNotFound, name)
	}
	delete(s.files, name)
	return nil
}

// List returns every stored path, sorted.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.files))
	for k := range s.files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AddSearchPath appends dir to the include search list. Duplicates are
// ignored.
func (s *Store) AddSearchPath(dir string) error {
	dir = strings.Trim(path.Clean(strings.ReplaceAll(dir, "\\", "/")), "/")
	if dir != "." {
		if _, err := clean(dir); err != nil {
			return err
		}
	} else {
		dir = ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.searchPaths {
		if p == dir {
			return nil
		}
	}
	s.searchPaths = append(s.searchPaths, dir)
	return nil
}

func (s *Store) SearchPaths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.searchPaths...)
}

// Resolve finds the file an include of name made from fromDir refers to:
// fromDir first, then each search path in order.
func (s *Store) Resolve(name, fromDir string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dirs := append([]string{fromDir}, s.searchPaths...)
	for _, dir := range dirs {
		candidate, err := clean(path.Join(dir, name))
		if err != nil {
			continue
		}
		if _, ok := s.files[candidate]; ok {
			return candidate, nil
		}
	}
	return "", errors.Wrapf(ErrFileNotFound, "%s (searched %s)", name, strings.Join(quoted(dirs), ", "))
}

func quoted(dirs []string) []string {
	out := make([]string, len(dirs))
	for i, d := range dirs {
		if d == "" {
			d = "."
		}
		out[i] = `"` + d + `"`
	}
	return out
}

// LoadFrom copies every library file below the host directory root into the
// store, keyed by its path relative to root. A missing root is not an error.
func (s *Store) LoadFrom(root string) (int, error) {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return 0, nil
	}
	n := 0
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !hasLibraryExt(p) {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		raw, err := os.ReadFile(p)
		if err != nil {
			return errors.Wrapf(err, "loading %s", p)
		}
		if err := s.Write(filepath.ToSlash(rel), string(raw)); err != nil {
			// names the store can't hold are skipped
			if errors.Is(err, ErrInvalidPath) {
				return nil
			}
			return err
		}
		n++
		return nil
	})
	return n, err
}

func hasLibraryExt(p string) bool {
	ext := filepath.Ext(p)
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// HostPath makes relPath absolute and returns it with its directory.
func HostPath(relPath string) (fullPath string, parentDir string, err error) {
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}
	return fullPath, filepath.Dir(fullPath), nil
}
