// Package filesystem implements storage.Store on the local filesystem so
// client storage survives restarts.
package filesystem

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/naazbooks/storefront/internal/storage"
)

// fileSuffix marks value files; temp files use fileSuffix + ".tmp".
const fileSuffix = ".json"

// FilesystemStorage stores each key as one file under baseDir.
type FilesystemStorage struct {
	mu         sync.RWMutex
	baseDir    string // Base directory for all storage operations
	absBaseDir string // Absolute path of baseDir for path validation
}

// NewFilesystemStorage creates a new FilesystemStorage with the given base directory.
func NewFilesystemStorage(baseDir string) (*FilesystemStorage, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, storage.NewStorageError("NewFilesystemStorage", baseDir, err)
	}

	absBaseDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, storage.NewStorageError("NewFilesystemStorage", baseDir, err)
	}

	return &FilesystemStorage{
		baseDir:    baseDir,
		absBaseDir: absBaseDir,
	}, nil
}

// pathFor maps a key to a file inside baseDir. Keys are base64url encoded so
// any key (including separators and "..") becomes a single safe filename.
func (fs *FilesystemStorage) pathFor(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("key cannot be empty")
	}

	name := base64.RawURLEncoding.EncodeToString([]byte(key)) + fileSuffix
	// Most filesystems cap names at 255 bytes
	if len(name) > 255 {
		return "", fmt.Errorf("key too long: %d bytes", len(key))
	}

	fullPath := filepath.Join(fs.baseDir, name)
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	if !strings.HasPrefix(absPath, fs.absBaseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path escape attempt: %s", key)
	}

	return fullPath, nil
}

// Get returns the value stored under key.
func (fs *FilesystemStorage) Get(ctx context.Context, key string) (string, bool, error) {
	path, err := fs.pathFor(key)
	if err != nil {
		return "", false, storage.NewStorageErrorWithMessage("Get", key, err, "key validation failed")
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, storage.NewStorageError("Get", key, err)
	}
	return string(data), true, nil
}

// Set stores value under key.
// Uses atomic write pattern (temp file then rename) for safety.
func (fs *FilesystemStorage) Set(ctx context.Context, key, value string) error {
	path, err := fs.pathFor(key)
	if err != nil {
		return storage.NewStorageErrorWithMessage("Set", key, err, "key validation failed")
	}
	tempPath := path + ".tmp"

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.WriteFile(tempPath, []byte(value), 0600); err != nil {
		os.Remove(tempPath)
		return storage.NewStorageError("Set", key, err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return storage.NewStorageError("Set", key, err)
	}

	slog.Debug("client storage value written", "key", key, "size", len(value))
	return nil
}

// Delete removes key.
func (fs *FilesystemStorage) Delete(ctx context.Context, key string) error {
	path, err := fs.pathFor(key)
	if err != nil {
		return storage.NewStorageErrorWithMessage("Delete", key, err, "key validation failed")
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			// Already deleted, not an error
			return nil
		}
		return storage.NewStorageError("Delete", key, err)
	}
	return nil
}

// List returns the keys with the given prefix in sorted order. Files that
// are not value files written by Set are skipped.
func (fs *FilesystemStorage) List(ctx context.Context, prefix string) ([]string, error) {
	fs.mu.RLock()
	entries, err := os.ReadDir(fs.baseDir)
	fs.mu.RUnlock()
	if err != nil {
		return nil, storage.NewStorageError("List", prefix, err)
	}

	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSuffix(name, fileSuffix))
		if err != nil {
			continue
		}
		if key := string(raw); strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
