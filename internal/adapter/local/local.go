package local

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/Ning0612/pkgyaml/internal/domain"
)

// Adapter implements the adapter.Adapter interface for local filesystem
type Adapter struct {
	root string
}

// New creates a new local filesystem adapter
// root must point to an existing directory
func New(root string) (*Adapter, error) {
	// Convert to absolute path
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, domain.ErrNotFile
	}

	return &Adapter{root: absRoot}, nil
}

// resolvePath resolves a path against root
// Relative paths may not escape root; absolute paths pass through cleaned
func (a *Adapter) resolvePath(path string) (string, error) {
	if path == "" || path == "." {
		return a.root, nil
	}

	path = filepath.Clean(filepath.FromSlash(path))
	if filepath.IsAbs(path) {
		return path, nil
	}

	fullPath := filepath.Join(a.root, path)

	// Use filepath.Rel to safely verify the path is within root
	rel, err := filepath.Rel(a.root, fullPath)
	if err != nil {
		return "", domain.ErrPermissionDenied
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", domain.ErrPermissionDenied
	}

	return fullPath, nil
}

// ReadFile returns the content of a file
func (a *Adapter) ReadFile(path string) ([]byte, error) {
	fullPath, err := a.resolvePath(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, a.mapError(err)
	}
	if info.IsDir() {
		return nil, domain.ErrNotFile
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, a.mapError(err)
	}
	return data, nil
}

// WriteFile creates or overwrites a file
func (a *Adapter) WriteFile(path string, data []byte) error {
	fullPath, err := a.resolvePath(path)
	if err != nil {
		return err
	}

	// Create parent directories
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return a.mapError(err)
	}

	mode := os.FileMode(0644)
	if info, err := os.Stat(fullPath); err == nil {
		if info.IsDir() {
			return domain.ErrNotFile
		}
		mode = info.Mode().Perm()
	}

	// Write to temp file first for atomic operation
	tempPath := fullPath + ".pkgyaml.tmp"
	if err := os.WriteFile(tempPath, data, mode); err != nil {
		os.Remove(tempPath)
		return a.mapError(err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, fullPath); err != nil {
		os.Remove(tempPath)
		return a.mapError(err)
	}

	return nil
}

// Stat returns metadata for a single path
func (a *Adapter) Stat(path string) (domain.FileInfo, error) {
	fullPath, err := a.resolvePath(path)
	if err != nil {
		return domain.FileInfo{}, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return domain.FileInfo{}, a.mapError(err)
	}

	return domain.FileInfo{
		Path:    filepath.ToSlash(path), // Normalize to forward slashes
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Exists checks if a path exists
func (a *Adapter) Exists(path string) (bool, error) {
	fullPath, err := a.resolvePath(path)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(fullPath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, a.mapError(err)
}

// Abs returns the absolute path for path
func (a *Adapter) Abs(path string) (string, error) {
	return a.resolvePath(path)
}

// Root returns the root path of this adapter
func (a *Adapter) Root() string {
	return a.root
}

// mapError converts OS errors to domain errors
func (a *Adapter) mapError(err error) error {
	if err == nil {
		return nil
	}

	if os.IsNotExist(err) {
		return domain.ErrNotFound
	}
	if os.IsPermission(err) {
		return domain.ErrPermissionDenied
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		if strings.Contains(pathErr.Err.Error(), "is a directory") {
			return domain.ErrNotFile
		}
	}

	return err
}
