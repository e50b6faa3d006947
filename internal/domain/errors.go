package domain

import "errors"

// Adapter errors - file access layer
var (
	// ErrNotFound indicates the requested file does not exist
	ErrNotFound = errors.New("resource not found")

	// ErrPermissionDenied indicates insufficient permissions or a path
	// escaping the project root
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFile indicates expected a file but got a directory
	ErrNotFile = errors.New("not a file")
)

// Document errors - parsing and patching
var (
	// ErrParse indicates a package file could not be decoded
	ErrParse = errors.New("parse error")

	// ErrNotObject indicates a document root that is not an object
	ErrNotObject = errors.New("document root is not an object")

	// ErrNotCollection indicates a path segment that does not address a
	// map or sequence
	ErrNotCollection = errors.New("path does not resolve to a collection")
)

// Sync errors - reconciliation layer
var (
	// ErrAskRequired indicates the pass needs an explicit strategy
	ErrAskRequired = errors.New("conflict requires an explicit strategy")

	// ErrWriteFailed indicates at least one file could not be written
	ErrWriteFailed = errors.New("write failed")
)

// Config errors - settings
var (
	// ErrConfigInvalid indicates a settings file or stanza is malformed
	ErrConfigInvalid = errors.New("invalid config")

	// ErrInvalidStrategy indicates an unknown conflict strategy name
	ErrInvalidStrategy = errors.New("invalid conflict strategy")
)
