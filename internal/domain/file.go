package domain

import "time"

// FileInfo represents metadata about a project file
type FileInfo struct {
	// Path is the relative path from the project root
	Path string

	// Size in bytes
	Size int64

	// ModTime is the last modification time
	ModTime time.Time
}
