// Package catalog keeps runs on disk as one <uid>.jsonl file of document
// envelopes per run, and follows that directory as files grow.
package catalog

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/zjrosen/skywidgets/internal/docs"
)

// Ext is the file extension of run files.
const Ext = ".jsonl"

// ErrInvalidUID is returned for uids that cannot name a file.
var ErrInvalidUID = errors.New("invalid run uid")

// FileStore appends documents to per-run files in Dir.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create catalog directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the catalog directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(runUID string) (string, error) {
	if runUID == "" || strings.ContainsAny(runUID, `/\`) || runUID == "." || runUID == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidUID, runUID)
	}
	return filepath.Join(s.dir, runUID+Ext), nil
}

// Append writes doc as one line of the run's file.
func (s *FileStore) Append(_ context.Context, runUID string, doc docs.Document) error {
	path, err := s.path(runUID)
	if err != nil {
		return err
	}
	line, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600) // #nosec G304 -- uid validated above
	if err != nil {
		return fmt.Errorf("open run file: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("append document: %w", err)
	}
	return f.Close()
}

// Documents reads a run's file. Unknown runs give nil.
func (s *FileStore) Documents(_ context.Context, runUID string) ([]docs.Document, error) {
	path, err := s.path(runUID)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path) // #nosec G304 -- uid validated above
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeLines(f)
}

// RunUIDs lists the runs in the catalog, sorted.
func (s *FileStore) RunUIDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var uids []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != Ext {
			continue
		}
		uids = append(uids, strings.TrimSuffix(e.Name(), Ext))
	}
	sort.Strings(uids)
	return uids, nil
}

// Close is a no-op; files are closed after every write.
func (s *FileStore) Close() error { return nil }

func decodeLines(f *os.File) ([]docs.Document, error) {
	var out []docs.Document
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for n := 1; sc.Scan(); n++ {
		if len(strings.TrimSpace(sc.Text())) == 0 {
			continue
		}
		var doc docs.Document
		if err := json.Unmarshal(sc.Bytes(), &doc); err != nil {
			return out, fmt.Errorf("%s line %d: %w", filepath.Base(f.Name()), n, err)
		}
		out = append(out, doc)
	}
	return out, sc.Err()
}
