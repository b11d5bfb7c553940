package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Filesystem stores blobs as files below a root directory
type Filesystem struct {
	root string
}

// NewFilesystem creates the root directory when missing
func NewFilesystem(root string) (*Filesystem, error) {
	if root == "" {
		return nil, fmt.Errorf("filesystem blob store needs a root directory")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &Filesystem{root: root}, nil
}

// Driver returns DriverFilesystem
func (s *Filesystem) Driver() Driver { return DriverFilesystem }

// Root returns the directory blobs are written under
func (s *Filesystem) Root() string { return s.root }

// Put writes through a temporary file and renames it into place, replacing
// any previous object under the same key
func (s *Filesystem) Put(ctx context.Context, key string, r io.Reader, _ string) error {
	clean, err := sanitizeKey(key)
	if err != nil {
		return err
	}
	dataPath := filepath.Join(s.root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dataPath), ".tmp-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dataPath)
}

// sanitizeKey rejects keys that would escape the root
func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty key")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid absolute key %q", key)
	}
	for _, part := range strings.Split(filepath.ToSlash(key), "/") {
		if part == ".." {
			return "", fmt.Errorf("invalid key %q contains '..'", key)
		}
	}
	return filepath.ToSlash(filepath.Clean(key)), nil
}
