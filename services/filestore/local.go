package filestore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Subdirectories under the upload root, one per purpose.
const (
	SubdirLibrary = "library"
	SubdirLessons = "lessons"
	SubdirEssays  = "essays"
)

// LocalStore stores uploaded files on local disk under a base directory.
// Stored names are server generated (uuid + original extension) so
// uploads can never collide; the original name lives in table metadata.
type LocalStore struct {
	baseDir string
}

// NewLocalStore creates the upload directory tree and returns a store
func NewLocalStore(baseDir string) (*LocalStore, error) {
	for _, sub := range []string{SubdirLibrary, SubdirLessons, SubdirEssays} {
		if err := os.MkdirAll(filepath.Join(baseDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create upload directory: %w", err)
		}
	}
	return &LocalStore{baseDir: baseDir}, nil
}

// Ext returns the lower-cased extension of a file name, without the dot
func Ext(name string) string {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	return strings.ToLower(ext)
}

// ExtensionAllowed reports whether the file's extension is in the allow-list
func ExtensionAllowed(name string, allowed []string) bool {
	ext := Ext(name)
	if ext == "" {
		return false
	}
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}

// Save writes src into the given subdirectory under a generated name and
// returns the stored name and byte count. On write failure the partial
// file is removed.
func (s *LocalStore) Save(subdir, originalName string, src io.Reader) (string, int64, error) {
	storedName := uuid.New().String()
	if ext := Ext(originalName); ext != "" {
		storedName += "." + ext
	}

	path := filepath.Join(s.baseDir, subdir, storedName)
	dst, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create file: %w", err)
	}

	size, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("failed to write file: %w", err)
	}

	return storedName, size, nil
}

// Path returns the on-disk path of a stored file
func (s *LocalStore) Path(subdir, storedName string) string {
	return filepath.Join(s.baseDir, subdir, storedName)
}

// Exists reports whether a stored file is present on disk
func (s *LocalStore) Exists(subdir, storedName string) bool {
	_, err := os.Stat(s.Path(subdir, storedName))
	return err == nil
}

// Remove deletes a stored file; a missing file is not an error
func (s *LocalStore) Remove(subdir, storedName string) error {
	err := os.Remove(s.Path(subdir, storedName))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
