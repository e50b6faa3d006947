// Package backup persists the last reconciled copies of both package files.
// Snapshots only serve as a merge base and are never treated as content.
package backup

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Ning0612/pkgyaml/internal/adapter"
	"github.com/Ning0612/pkgyaml/internal/logger"
	"github.com/Ning0612/pkgyaml/internal/tree"
	"github.com/Ning0612/pkgyaml/internal/yamldoc"
)

// DefaultTemplate places a dot-prefixed, tilde-suffixed copy next to each file
const DefaultTemplate = ".%s~"

// Snapshot holds the decoded backups; a missing or unreadable file leaves
// the matching Has flag false
type Snapshot struct {
	JSON    tree.Value
	HasJSON bool
	YAML    tree.Value
	HasYAML bool
}

// Store reads and writes backups through a project adapter
type Store struct {
	fs       adapter.Adapter
	template string
	log      logger.Logger
}

// NewStore creates a backup store. template understands %s (bare file
// name) and %S (absolute file path with "/" replaced by "%").
func NewStore(fs adapter.Adapter, template string, log logger.Logger) *Store {
	if template == "" {
		template = DefaultTemplate
	}
	if log == nil {
		log = &logger.NullLogger{}
	}
	return &Store{fs: fs, template: template, log: log}
}

// Path returns the absolute backup location for a project file name
func (s *Store) Path(filename string) (string, error) {
	root, err := s.fs.Abs("")
	if err != nil {
		return "", err
	}
	full := filepath.ToSlash(filepath.Join(root, filename))

	p := strings.ReplaceAll(s.template, "%s", filename)
	p = strings.ReplaceAll(p, "%S", strings.ReplaceAll(full, "/", "%"))
	p = filepath.FromSlash(p)

	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	return filepath.Clean(p), nil
}

// Load reads both backups; failures are logged and reported as absent
func (s *Store) Load(jsonName, yamlName string) Snapshot {
	var snap Snapshot
	snap.JSON, snap.HasJSON = s.load(jsonName, tree.DecodeJSON)
	snap.YAML, snap.HasYAML = s.load(yamlName, yamldoc.ParseValue)
	return snap
}

func (s *Store) load(filename string, parse func([]byte) (tree.Value, error)) (tree.Value, bool) {
	path, err := s.Path(filename)
	if err != nil {
		s.log.Debug("cannot resolve backup path", "file", filename, "error", err)
		return nil, false
	}
	data, err := s.fs.ReadFile(path)
	if err != nil {
		s.log.Debug("no backup", "path", path, "error", err)
		return nil, false
	}
	v, err := parse(data)
	if err != nil {
		s.log.Debug("unreadable backup", "path", path, "error", err)
		return nil, false
	}
	return v, true
}

// Save writes both backups. Both writes are attempted; the returned error
// joins every failure.
func (s *Store) Save(jsonName string, jsonData []byte, yamlName string, yamlData []byte) error {
	return errors.Join(
		s.save(jsonName, jsonData),
		s.save(yamlName, yamlData),
	)
}

func (s *Store) save(filename string, data []byte) error {
	path, err := s.Path(filename)
	if err != nil {
		return fmt.Errorf("backup path for %s: %w", filename, err)
	}
	if err := s.fs.WriteFile(path, data); err != nil {
		s.log.Warn("error writing backup", "file", filename, "path", path, "error", err)
		return fmt.Errorf("write backup %s: %w", path, err)
	}
	s.log.Debug("backup written", "file", filename, "path", path)
	return nil
}
