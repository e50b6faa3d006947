package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/Ning0612/pkgyaml/internal/domain"
	"github.com/Ning0612/pkgyaml/internal/logger"
)

// Stanza is the key holding settings inside a package file
const Stanza = "package-yaml"

// Environment variables read by LoadEnv
const (
	EnvDebug = "DEBUG_PACKAGE_YAML"
	EnvForce = "PACKAGE_YAML_FORCE"
)

// DefaultSystemDirs returns the global settings directories
func DefaultSystemDirs() []string {
	return []string{"/etc", "/usr/local/etc"}
}

// Loader layers settings sources in increasing precedence
type Loader struct {
	SystemDirs []string
	HomeDir    string // empty skips user files
	Log        logger.Logger
}

// NewLoader creates a loader for the default locations
func NewLoader(log logger.Logger) *Loader {
	if log == nil {
		log = &logger.NullLogger{}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		log.Debug("no home directory", "error", err)
		home = ""
	}
	return &Loader{
		SystemDirs: DefaultSystemDirs(),
		HomeDir:    home,
		Log:        log,
	}
}

func (l *Loader) diag() logger.Logger {
	if l.Log == nil {
		return &logger.NullLogger{}
	}
	return l.Log
}

// Load returns defaults overlaid with the environment, system files and
// user files. Project files are applied separately by LoadProject.
func (l *Loader) Load() *Settings {
	s := Defaults(l.Log)
	l.LoadEnv(s)
	for _, dir := range l.SystemDirs {
		l.LoadFile(s, filepath.Join(dir, "package-yaml.json"), "")
		l.LoadFile(s, filepath.Join(dir, "package-yaml.yaml"), "")
	}
	if l.HomeDir != "" {
		l.LoadFile(s, filepath.Join(l.HomeDir, ".package-yaml.json"), "")
		l.LoadFile(s, filepath.Join(l.HomeDir, ".package-yaml.yaml"), "")
	}
	return s
}

// LoadEnv applies and locks environment overrides
func (l *Loader) LoadEnv(s *Settings) {
	v := viper.New()
	_ = v.BindEnv(OptDebug, EnvDebug)
	_ = v.BindEnv("force", EnvForce)

	if v.GetString(OptDebug) != "" {
		s.UpdateAndLock(map[string]any{OptDebug: true})
	}
	if force := v.GetString("force"); force != "" {
		strategy := domain.ConflictStrategy("use-" + force)
		if !strategy.IsValid() {
			l.diag().Warn("ignoring invalid "+EnvForce, "value", force)
			return
		}
		s.UpdateAndLock(map[string]any{OptConflicts: string(strategy)})
	}
}

// LoadProject applies the project settings files, then the stanza of each
// package file. yamlName is resolved after the standalone files so that
// defaultExtension can pick it when no formatted file exists; pass "" for
// that behavior.
func (l *Loader) LoadProject(s *Settings, dir, yamlName string) {
	l.LoadFile(s, filepath.Join(dir, "package-yaml.json"), "")
	l.LoadFile(s, filepath.Join(dir, "package-yaml.yaml"), "")
	l.LoadFile(s, filepath.Join(dir, "package.json"), Stanza)
	if yamlName == "" {
		yamlName = "package." + s.DefaultExtension
	}
	l.LoadFile(s, filepath.Join(dir, yamlName), Stanza)
}

// LoadFile applies one settings file, or the stanza inside it when stanza
// is set. A missing file or stanza is silently ignored; unreadable or
// malformed input is logged and ignored. Returns the applied options.
func (l *Loader) LoadFile(s *Settings, path, stanza string) map[string]any {
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			l.diag().Error("error loading config file", "path", path, "error", err)
		}
		return nil
	}

	v, err := readConfig(path)
	if err != nil {
		l.diag().Error("error parsing config file", "path", path, "error", err)
		return nil
	}

	var raw any
	if stanza != "" {
		if !v.IsSet(stanza) {
			return nil
		}
		raw = v.Get(stanza)
		if raw == nil || raw == false {
			return nil
		}
	} else {
		raw = v.AllSettings()
	}

	values, ok := raw.(map[string]any)
	if !ok {
		if stanza != "" {
			l.diag().Error("invalid configuration stanza (should be an object)", "stanza", stanza, "path", path)
		} else {
			l.diag().Error("invalid configuration file (should be an object)", "path", path)
		}
		return nil
	}

	applied := s.Update(values)
	l.diag().Debug("config loaded", "path", path, "stanza", stanza, "applied", applied)
	return applied
}

// readConfig parses path by extension, retrying as the other format. The
// error reported is the one for the extension's own format.
func readConfig(path string) (*viper.Viper, error) {
	primary, fallback := "yaml", "json"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		primary, fallback = "json", "yaml"
	}

	v, err := readAs(path, primary)
	if err == nil {
		return v, nil
	}
	if v2, err2 := readAs(path, fallback); err2 == nil {
		return v2, nil
	}
	return nil, err
}

func readAs(path, configType string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(configType)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return v, nil
}
