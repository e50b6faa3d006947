// Package config holds the per-process settings and loads them from the
// layered settings files, the environment and package file stanzas.
package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/Ning0612/pkgyaml/internal/domain"
	"github.com/Ning0612/pkgyaml/internal/logger"
)

// Option names as they appear in settings files
const (
	OptDebug            = "debug"
	OptWriteBackups     = "writeBackups"
	OptBackupPath       = "backupPath"
	OptTimestampFuzz    = "timestampFuzz"
	OptConflicts        = "conflicts"
	OptTryMerge         = "tryMerge"
	OptDefaultExtension = "defaultExtension"
)

// Settings is the typed view of every option
type Settings struct {
	Debug            bool
	WriteBackups     bool
	BackupPath       string  // %s basename, %S full path with "/" as "%"
	TimestampFuzz    float64 // seconds
	Conflicts        domain.ConflictStrategy
	TryMerge         bool // only effective while backups are written
	DefaultExtension string

	locked map[string]bool
	log    logger.Logger
}

// Defaults returns settings with built-in defaults and nothing locked.
// log receives a level change whenever debug is applied; it may be nil.
func Defaults(log logger.Logger) *Settings {
	if log == nil {
		log = &logger.NullLogger{}
	}
	return &Settings{
		Debug:            false,
		WriteBackups:     true,
		BackupPath:       ".%s~",
		TimestampFuzz:    5,
		Conflicts:        domain.ConflictAsk,
		TryMerge:         true,
		DefaultExtension: "yaml",
		locked:           make(map[string]bool),
		log:              log,
	}
}

type kind int

const (
	kindBool kind = iota
	kindString
	kindNumber
)

func (k kind) String() string {
	switch k {
	case kindBool:
		return "bool"
	case kindString:
		return "string"
	default:
		return "number"
	}
}

type option struct {
	kind   kind
	valid  func(any) bool
	assign func(s *Settings, v any)
	get    func(s *Settings) any
}

// options is the fixed option table; names are matched case-insensitively
var options = map[string]option{
	OptDebug: {
		kind:   kindBool,
		assign: func(s *Settings, v any) { s.Debug = v.(bool) },
		get:    func(s *Settings) any { return s.Debug },
	},
	OptWriteBackups: {
		kind:   kindBool,
		assign: func(s *Settings, v any) { s.WriteBackups = v.(bool) },
		get:    func(s *Settings) any { return s.WriteBackups },
	},
	OptBackupPath: {
		kind:   kindString,
		valid:  func(v any) bool { return v.(string) != "" },
		assign: func(s *Settings, v any) { s.BackupPath = v.(string) },
		get:    func(s *Settings) any { return s.BackupPath },
	},
	OptTimestampFuzz: {
		kind:   kindNumber,
		valid:  func(v any) bool { return v.(float64) >= 0 },
		assign: func(s *Settings, v any) { s.TimestampFuzz = v.(float64) },
		get:    func(s *Settings) any { return s.TimestampFuzz },
	},
	OptConflicts: {
		kind:   kindString,
		valid:  func(v any) bool { return domain.ConflictStrategy(v.(string)).IsValid() },
		assign: func(s *Settings, v any) { s.Conflicts = domain.ConflictStrategy(v.(string)) },
		get:    func(s *Settings) any { return string(s.Conflicts) },
	},
	OptTryMerge: {
		kind:   kindBool,
		assign: func(s *Settings, v any) { s.TryMerge = v.(bool) },
		get:    func(s *Settings) any { return s.TryMerge },
	},
	OptDefaultExtension: {
		kind: kindString,
		valid: func(v any) bool {
			ext := v.(string)
			return ext == "yaml" || ext == "yml"
		},
		assign: func(s *Settings, v any) { s.DefaultExtension = v.(string) },
		get:    func(s *Settings) any { return s.DefaultExtension },
	},
}

// OptionNames lists every option in a stable order
func OptionNames() []string {
	names := make([]string, 0, len(options))
	for name := range options {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// canonical maps any spelling of an option name to its table key
func canonical(name string) (string, bool) {
	if _, ok := options[name]; ok {
		return name, true
	}
	for key := range options {
		if strings.EqualFold(key, name) {
			return key, true
		}
	}
	return "", false
}

// coerce converts raw to the option's kind and runs its validator
func coerce(opt option, raw any) (any, error) {
	var v any
	var err error
	switch opt.kind {
	case kindBool:
		if v, err = cast.ToBoolE(raw); err != nil {
			v, err = truthy(raw), nil
		}
	case kindNumber:
		v, err = cast.ToFloat64E(raw)
	case kindString:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", raw)
		}
		v = s
	}
	if err != nil {
		return nil, err
	}
	if opt.valid != nil && !opt.valid(v) {
		return nil, fmt.Errorf("value %v not allowed", v)
	}
	return v, nil
}

// truthy reads a value the way a package.json consumer would test it:
// only empty strings and null are false once cast has given up.
func truthy(raw any) bool {
	switch x := raw.(type) {
	case nil:
		return false
	case string:
		return x != ""
	}
	return true
}

// Update applies every valid, unlocked entry of values and returns the
// applied subset keyed by option name. Unknown names, locked options and
// values of the wrong kind are skipped.
func (s *Settings) Update(values map[string]any) map[string]any {
	applied := make(map[string]any)
	for raw, val := range values {
		name, ok := canonical(raw)
		if !ok {
			continue
		}
		if s.locked[name] {
			s.log.Debug("option locked, ignoring", "option", name, "value", val)
			continue
		}
		opt := options[name]
		v, err := coerce(opt, val)
		if err != nil {
			s.log.Debug("invalid option value", "option", name, "kind", opt.kind, "error", err)
			continue
		}
		opt.assign(s, v)
		applied[name] = v
	}
	if debug, ok := applied[OptDebug]; ok {
		if debug.(bool) {
			logger.SetLevel(s.log, logger.LevelDebug)
		} else {
			logger.SetLevel(s.log, logger.LevelWarn)
		}
	}
	return applied
}

// Lock makes later updates to names no-ops
func (s *Settings) Lock(names ...string) {
	for _, raw := range names {
		if name, ok := canonical(raw); ok {
			s.locked[name] = true
		}
	}
}

// UpdateAndLock applies values and locks whatever was applied
func (s *Settings) UpdateAndLock(values map[string]any) map[string]any {
	applied := s.Update(values)
	for name := range applied {
		s.locked[name] = true
	}
	return applied
}

// Locked reports whether name is locked
func (s *Settings) Locked(name string) bool {
	name, ok := canonical(name)
	return ok && s.locked[name]
}

// Values returns every option keyed by name
func (s *Settings) Values() map[string]any {
	out := make(map[string]any, len(options))
	for name, opt := range options {
		out[name] = opt.get(s)
	}
	return out
}

// ForceStrategy pins conflicts for the rest of the process. An earlier
// lock, such as PACKAGE_YAML_FORCE, keeps precedence.
func (s *Settings) ForceStrategy(strategy domain.ConflictStrategy) error {
	if !strategy.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidStrategy, strategy)
	}
	s.UpdateAndLock(map[string]any{OptConflicts: string(strategy)})
	if s.Conflicts != strategy {
		s.log.Warn("conflict strategy already locked", "requested", strategy, "locked", s.Conflicts)
	}
	return nil
}
