// Package project owns one directory's package.json and formatted package
// file and runs reconciliation passes over them.
package project

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Ning0612/pkgyaml/internal/adapter"
	"github.com/Ning0612/pkgyaml/internal/adapter/local"
	"github.com/Ning0612/pkgyaml/internal/backup"
	"github.com/Ning0612/pkgyaml/internal/config"
	"github.com/Ning0612/pkgyaml/internal/core/checksum"
	"github.com/Ning0612/pkgyaml/internal/core/conflict"
	"github.com/Ning0612/pkgyaml/internal/core/diff"
	"github.com/Ning0612/pkgyaml/internal/domain"
	"github.com/Ning0612/pkgyaml/internal/logger"
	"github.com/Ning0612/pkgyaml/internal/tree"
	"github.com/Ning0612/pkgyaml/internal/yamldoc"
)

// JSONName is the plain package file
const JSONName = "package.json"

// JSONIndent is the indentation package.json is written with
const JSONIndent = "    "

// Options configures Open. Zero values select the defaults.
type Options struct {
	// Settings already carrying process-level layers; project files and
	// stanzas are applied on top. Nil loads them with Loader.
	Settings *config.Settings
	Loader   *config.Loader
	FS       adapter.Adapter
	Resolver conflict.Resolver
	Log      logger.Logger
}

// Project is one package directory
type Project struct {
	root     string
	fs       adapter.Adapter
	settings *config.Settings
	resolver conflict.Resolver
	log      logger.Logger

	yamlExt    string // extension of the existing formatted file, if any
	jsonExists bool
	yamlExists bool

	json       tree.Value
	jsonLoaded bool
	doc        *yamldoc.Document

	jsonModified bool
	yamlModified bool
}

// Open inspects root, applies project settings and returns the project.
// Package file contents are loaded on first use.
func Open(root string, opts Options) (*Project, error) {
	log := opts.Log
	if log == nil {
		log = &logger.NullLogger{}
	}

	fs := opts.FS
	if fs == nil {
		l, err := local.New(root)
		if err != nil {
			return nil, fmt.Errorf("open project %s: %w", root, err)
		}
		fs = l
	}
	abs, err := fs.Abs("")
	if err != nil {
		return nil, fmt.Errorf("open project %s: %w", root, err)
	}

	p := &Project{
		root: abs,
		fs:   fs,
		log:  log.With("root", abs),
	}

	for _, ext := range []string{"yaml", "yml"} {
		ok, err := fs.Exists("package." + ext)
		if err != nil {
			return nil, fmt.Errorf("stat package.%s: %w", ext, err)
		}
		if ok {
			p.yamlExt = ext
			break
		}
	}

	loader := opts.Loader
	if loader == nil {
		loader = config.NewLoader(log)
	}
	p.settings = opts.Settings
	if p.settings == nil {
		p.settings = loader.Load()
	}
	yamlName := ""
	if p.yamlExt != "" {
		yamlName = p.YAMLName()
	}
	loader.LoadProject(p.settings, abs, yamlName)

	if p.jsonExists, err = fs.Exists(JSONName); err != nil {
		return nil, fmt.Errorf("stat %s: %w", JSONName, err)
	}
	if p.yamlExists, err = fs.Exists(p.YAMLName()); err != nil {
		return nil, fmt.Errorf("stat %s: %w", p.YAMLName(), err)
	}

	p.resolver = opts.Resolver
	if p.resolver == nil {
		p.resolver = conflict.NewDefaultResolver(p.log)
	}
	return p, nil
}

// Root returns the absolute project directory
func (p *Project) Root() string { return p.root }

// Settings returns the effective settings
func (p *Project) Settings() *config.Settings { return p.settings }

// YAMLName is package.yaml or package.yml: the existing file, else the
// configured default extension
func (p *Project) YAMLName() string {
	ext := p.yamlExt
	if ext == "" {
		ext = p.settings.DefaultExtension
	}
	return "package." + ext
}

// Fingerprint sums both package files as they are on disk
func (p *Project) Fingerprint(algo checksum.Algorithm) (checksum.Fingerprint, error) {
	return checksum.Files(p.fs, JSONName, p.YAMLName(), algo)
}

// JSONExists reports whether package.json was present at open
func (p *Project) JSONExists() bool { return p.jsonExists }

// YAMLExists reports whether the formatted file was present at open
func (p *Project) YAMLExists() bool { return p.yamlExists }

// JSON returns package.json content, an empty map when absent
func (p *Project) JSON() (tree.Value, error) {
	if p.jsonLoaded {
		return p.json, nil
	}
	if !p.jsonExists {
		p.json, p.jsonLoaded = tree.NewMap(), true
		return p.json, nil
	}

	data, err := p.fs.ReadFile(JSONName)
	if err != nil {
		p.log.Error("cannot load package.json", "error", err)
		return nil, fmt.Errorf("load %s: %w", JSONName, err)
	}
	v, err := tree.DecodeJSON(data)
	if err != nil {
		p.log.Error("cannot parse package.json", "error", err)
		return nil, fmt.Errorf("parse %s: %w: %v", JSONName, domain.ErrParse, err)
	}
	if _, ok := v.(*tree.Map); !ok {
		return nil, fmt.Errorf("parse %s: %w", JSONName, domain.ErrNotObject)
	}
	p.json, p.jsonLoaded = v, true
	return p.json, nil
}

// SetJSON replaces package.json content, marking it dirty when the
// content differs
func (p *Project) SetJSON(v tree.Value) {
	if !p.jsonLoaded || !tree.Equal(p.json, v) {
		p.jsonModified = true
	}
	p.json, p.jsonLoaded = v, true
}

// Document returns the formatted document, empty when absent
func (p *Project) Document() (*yamldoc.Document, error) {
	if p.doc != nil {
		return p.doc, nil
	}
	if !p.yamlExists {
		p.doc = yamldoc.New()
		return p.doc, nil
	}

	name := p.YAMLName()
	data, err := p.fs.ReadFile(name)
	if err != nil {
		p.log.Error("cannot load formatted file", "file", name, "error", err)
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	doc, err := yamldoc.Parse(data)
	if err != nil {
		p.log.Error("cannot parse formatted file", "file", name, "error", err)
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	if c := doc.Contents(); c != nil {
		if _, ok := c.(*tree.Map); !ok {
			return nil, fmt.Errorf("parse %s: %w", name, domain.ErrNotObject)
		}
	}
	p.doc = doc
	return p.doc, nil
}

// SetDocument replaces the formatted document; any different document
// marks it dirty
func (p *Project) SetDocument(doc *yamldoc.Document) {
	if p.doc != doc {
		p.yamlModified = true
	}
	p.doc = doc
}

// YAMLContents decodes the formatted document
func (p *Project) YAMLContents() (tree.Value, error) {
	doc, err := p.Document()
	if err != nil {
		return nil, err
	}
	return doc.Contents(), nil
}

// Modified reports the dirty flags
func (p *Project) Modified() (jsonModified, yamlModified bool) {
	return p.jsonModified, p.yamlModified
}

func (p *Project) backups() *backup.Store {
	return backup.NewStore(p.fs, p.settings.BackupPath, p.log)
}

// Sync runs one reconciliation pass. override, when set, replaces the
// configured strategy. Load and parse failures of either package file are
// returned as errors; write failures yield OutcomeFailed.
func (p *Project) Sync(override domain.ConflictStrategy) (domain.SyncResult, error) {
	strategy := override
	if strategy == "" {
		strategy = p.settings.Conflicts
	}
	result := domain.SyncResult{Requested: strategy}

	jsonV, err := p.JSON()
	if err != nil {
		return result, err
	}
	yamlV, err := p.YAMLContents()
	if err != nil {
		return result, err
	}

	in := conflict.Input{
		JSONExists:    p.jsonExists,
		YAMLExists:    p.yamlExists,
		JSON:          jsonV,
		YAML:          yamlV,
		Strategy:      strategy,
		WriteBackups:  p.settings.WriteBackups,
		TryMerge:      p.settings.TryMerge,
		TimestampFuzz: p.settings.TimestampFuzz,
		Backups: func() backup.Snapshot {
			return p.backups().Load(JSONName, p.YAMLName())
		},
	}
	if p.jsonExists && p.yamlExists {
		if in.JSONFile, err = p.fs.Stat(JSONName); err != nil {
			return result, fmt.Errorf("stat %s: %w", JSONName, err)
		}
		if in.YAMLFile, err = p.fs.Stat(p.YAMLName()); err != nil {
			return result, fmt.Errorf("stat %s: %w", p.YAMLName(), err)
		}
	}

	d := p.resolver.Resolve(in)
	result.Resolved = d.Strategy
	result.Merged = d.Merged()
	result.Reason = d.Reason

	if d.InSync {
		p.log.Debug("package files already in sync, writing backups")
		p.saveBackups()
		result.Outcome = domain.OutcomeSynced
		return result, nil
	}

	switch d.Strategy {
	case domain.ConflictUseJSON:
		p.log.Debug("patching formatted file from package.json", "file", p.YAMLName())
		p.patchYAML(diff.Diff(yamlV, jsonV))
	case domain.ConflictUseYAML:
		if d.Merged() {
			p.log.Debug("applying merged package.json changes", "changes", len(d.Merge))
			p.patchYAML(d.Merge)
			if yamlV, err = p.YAMLContents(); err != nil {
				return result, err
			}
		}
		p.log.Debug("patching package.json from formatted file", "file", p.YAMLName())
		p.patchJSON(diff.Diff(jsonV, yamlV))
	default:
		p.log.Debug("cannot sync, returning ask", "reason", d.Reason)
		result.Outcome = domain.OutcomeAsk
		return result, nil
	}

	if !tree.Equal(p.doc.Contents(), p.json) {
		p.log.Warn("formatted file edits do not reproduce package.json, nothing written", "file", p.YAMLName())
		result.Outcome = domain.OutcomeFailed
		result.Reason = "formatted file could not be patched to match package.json"
		return result, nil
	}

	p.saveBackups()
	if err := p.writePackageFiles(); err != nil {
		result.Outcome = domain.OutcomeFailed
		return result, nil
	}
	result.Outcome = domain.OutcomeSynced
	return result, nil
}

func (p *Project) patchYAML(ops []diff.Op) {
	if ops == nil {
		return
	}
	for _, err := range p.doc.Apply(ops) {
		p.log.Warn("skipping formatted file edit", "file", p.YAMLName(), "error", err)
	}
	p.yamlModified = true
}

func (p *Project) patchJSON(ops []diff.Op) {
	if ops == nil {
		return
	}
	p.json = diff.Apply(p.json, ops)
	p.jsonModified = true
}

func (p *Project) encodeJSON() ([]byte, error) {
	out, err := tree.EncodeJSON(p.json, JSONIndent)
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// saveBackups writes the backups; a failure never fails the pass
func (p *Project) saveBackups() {
	if err := p.writeBackups(); err != nil {
		p.log.Warn("backups not written, next pass may not detect single-sided changes", "error", err)
	}
}

// writeBackups snapshots the in-memory content of both files
func (p *Project) writeBackups() error {
	if !p.settings.WriteBackups {
		return nil
	}
	jsonData, err := p.encodeJSON()
	if err != nil {
		return fmt.Errorf("encode package.json backup: %w", err)
	}
	yamlData, err := p.doc.Bytes()
	if err != nil {
		return fmt.Errorf("encode formatted backup: %w", err)
	}
	return p.backups().Save(JSONName, jsonData, p.YAMLName(), yamlData)
}

// writePackageFiles writes each dirty file. Every write is attempted; the
// returned error joins the failures.
func (p *Project) writePackageFiles() error {
	var errs []error

	if p.yamlModified {
		name := p.YAMLName()
		data, err := p.doc.Bytes()
		if err == nil {
			err = p.fs.WriteFile(name, data)
		}
		if err != nil {
			p.log.Error("error writing formatted file", "file", name, "error", err)
			errs = append(errs, fmt.Errorf("%w: %s: %v", domain.ErrWriteFailed, name, err))
		} else {
			p.yamlModified = false
			p.yamlExists = true
			p.yamlExt = strings.TrimPrefix(name, "package.")
		}
	}

	if p.jsonModified {
		data, err := p.encodeJSON()
		if err == nil {
			err = p.fs.WriteFile(JSONName, data)
		}
		if err != nil {
			p.log.Error("error writing package.json", "error", err)
			errs = append(errs, fmt.Errorf("%w: %s: %v", domain.ErrWriteFailed, JSONName, err))
		} else {
			p.jsonModified = false
			p.jsonExists = true
		}
	}

	return errors.Join(errs...)
}
