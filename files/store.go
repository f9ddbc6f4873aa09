// Package files stores uploaded archives on disk, keyed by their hash.
package files

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DiskStore keeps archives as <Dir>/<hash>.zip.
type DiskStore struct {
	Dir string
}

func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{Dir: dir}
}

func (s *DiskStore) path(hash string) string {
	return filepath.Join(s.Dir, hash+".zip")
}

// Exists reports whether the archive for hash is still present.
func (s *DiskStore) Exists(_ context.Context, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	_, err := os.Stat(s.path(hash))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check archive '%s': %w", hash, err)
	}
	return true, nil
}

// Put copies the archive at srcPath into the store and returns its hash and size.
func (s *DiskStore) Put(_ context.Context, srcPath string) (string, int64, error) {
	hash, err := HashFile(srcPath)
	if err != nil {
		return "", 0, err
	}

	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create store directory '%s': %w", s.Dir, err)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return "", 0, err
	}
	defer src.Close()

	dest := s.path(hash)
	out, err := os.Create(dest)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create file '%s': %w", dest, err)
	}
	defer out.Close()

	size, err := io.Copy(out, src)
	if err != nil {
		// Attempt to remove partially written file on error
		os.Remove(dest)
		return "", 0, fmt.Errorf("failed to write archive to '%s': %w", dest, err)
	}
	return hash, size, nil
}

// HashFile returns the hex sha1 of the file at filePath.
func HashFile(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha1.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}
