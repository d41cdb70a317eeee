package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func init() {
	Register(KindFile, func(path string) (KV, error) { return OpenFile(path) })
}

// FileKV stores each blob as its own file under a data directory. Writes
// go through a temp file and rename so a crash mid-write never leaves a
// truncated blob behind. The layout is watcher-friendly: external tools
// can observe collection changes with a directory watch.
type FileKV struct {
	dir string
}

// OpenFile opens (creating if needed) a file-backed blob store rooted at
// the given directory.
func OpenFile(dir string) (*FileKV, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileKV{dir: dir}, nil
}

// Dir returns the data directory, for callers that want to watch it.
func (kv *FileKV) Dir() string {
	return kv.dir
}

// blobPath maps a key to its file. Keys are collection names and similar
// fixed identifiers; path separators are rejected rather than escaped.
func (kv *FileKV) blobPath(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(kv.dir, key+".json"), nil
}

// Get returns the blob stored under key, or found=false if absent.
func (kv *FileKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	path, err := kv.blobPath(key)
	if err != nil {
		return nil, false, err
	}

	blob, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read blob %s: %w", key, err)
	}
	return blob, true, nil
}

// Set overwrites the blob stored under key.
func (kv *FileKV) Set(_ context.Context, key string, blob []byte) error {
	path, err := kv.blobPath(key)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0644); err != nil {
		return fmt.Errorf("failed to write blob %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to commit blob %s: %w", key, err)
	}
	return nil
}

// Remove deletes the given keys. Absent keys are ignored.
func (kv *FileKV) Remove(_ context.Context, keys ...string) error {
	for _, key := range keys {
		path, err := kv.blobPath(key)
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove blob %s: %w", key, err)
		}
	}
	return nil
}

// Close is a no-op for the file backend.
func (kv *FileKV) Close() error {
	return nil
}
