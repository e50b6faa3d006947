package adapter

import "github.com/Ning0612/pkgyaml/internal/domain"

// Adapter defines file access for one project directory.
// Relative paths are resolved against the adapter's root; absolute paths
// (configured backup locations) are used as given.
type Adapter interface {
	// ReadFile returns the full content of a file
	// Returns domain.ErrNotFound if file doesn't exist
	// Returns domain.ErrNotFile if path is a directory
	ReadFile(path string) ([]byte, error)

	// WriteFile creates or atomically replaces a file
	// Parent directories are created automatically
	// Returns domain.ErrPermissionDenied if write not allowed
	WriteFile(path string, data []byte) error

	// Stat returns metadata for a single path
	// Returns domain.ErrNotFound if path doesn't exist
	Stat(path string) (domain.FileInfo, error)

	// Exists checks if a path exists
	Exists(path string) (bool, error)

	// Abs returns the absolute filesystem path for path
	Abs(path string) (string, error)
}
