package static

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zjrosen/skywidgets/internal/log"
)

// ErrSameDir is returned when source and target resolve to one directory.
var ErrSameDir = errors.New("source and target are the same directory")

// CopyTree replaces target with a copy of src, keeping file modes.
func CopyTree(src, target string) error {
	absSrc, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return err
	}
	if absSrc == absTarget {
		return ErrSameDir
	}
	if info, err := os.Stat(absSrc); err != nil {
		return fmt.Errorf("stat source: %w", err)
	} else if !info.IsDir() {
		return fmt.Errorf("source %s is not a directory", src)
	}

	if err := os.RemoveAll(absTarget); err != nil {
		return fmt.Errorf("remove old target: %w", err)
	}

	err = filepath.WalkDir(absSrc, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(absSrc, path)
		if err != nil {
			return err
		}
		dst := filepath.Join(absTarget, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		if d.IsDir() {
			return os.MkdirAll(dst, info.Mode().Perm()|0o700)
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		return copyFile(path, dst, info.Mode().Perm())
	})
	if err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, target, err)
	}
	log.Info(log.CatServer, "Copied web assets", "source", absSrc, "target", absTarget)
	return nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src) // #nosec G304 -- walking a caller-chosen tree
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode) // #nosec G304
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
