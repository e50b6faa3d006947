// Package hook is the boundary a package manager calls around its own
// operations: Before reconciles drift, After carries the manager's
// package.json edits back into the formatted file.
package hook

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Ning0612/pkgyaml/internal/config"
	"github.com/Ning0612/pkgyaml/internal/core/checksum"
	"github.com/Ning0612/pkgyaml/internal/domain"
	"github.com/Ning0612/pkgyaml/internal/logger"
	"github.com/Ning0612/pkgyaml/internal/project"
	"github.com/Ning0612/pkgyaml/internal/state"
)

// CommandName is the name the sync command registers under
const CommandName = "package-yaml"

// Decision is the outcome of one hook pass
type Decision struct {
	domain.SyncResult
	PassID      string
	Root        string
	YAMLName    string // formatted file the pass worked on
	Phase       domain.Phase
	Skipped     bool // pre-pass not run because the host ran the sync command
	Fingerprint checksum.Fingerprint
}

// OK reports whether the host may continue
func (d Decision) OK() bool {
	return d.Skipped || d.SyncResult.OK()
}

// Recorder stores pass history
type Recorder interface {
	SavePass(record state.PassRecord) error
}

// Command is what a host registry invokes
type Command interface {
	Execute(args []string) error
	Usage() string
}

// Registry is implemented by hosts that accept extension commands
type Registry interface {
	Register(name string, cmd Command)
}

// Runner runs hook passes
type Runner struct {
	Loader   *config.Loader
	Log      logger.Logger
	Recorder Recorder // optional
}

// NewRunner creates a runner with the default settings loader
func NewRunner(log logger.Logger) *Runner {
	if log == nil {
		log = &logger.NullLogger{}
	}
	return &Runner{Loader: config.NewLoader(log), Log: log}
}

// Before runs a pre-pass for root with default settings locations
func Before(root string) (Decision, error) {
	return NewRunner(nil).Before(root)
}

// After runs a post-pass for root with default settings locations
func After(root string) (Decision, error) {
	return NewRunner(nil).After(root)
}

// Autoload registers the sync command with reg and runs the pre-pass
// unless command is the sync command
func Autoload(reg Registry, command, root string) (Decision, error) {
	return NewRunner(nil).Autoload(reg, command, root)
}

// Before reconciles with the configured strategy
func (r *Runner) Before(root string) (Decision, error) {
	return r.run(root, domain.PhaseBefore, "", "")
}

// After reconciles with package.json authoritative
func (r *Runner) After(root string) (Decision, error) {
	return r.run(root, domain.PhaseAfter, "", domain.ConflictUseJSON)
}

// Sync runs the explicit command. A non-empty strategy is locked for the
// pass so no settings source can replace it.
func (r *Runner) Sync(root string, strategy domain.ConflictStrategy) (Decision, error) {
	return r.run(root, domain.PhaseSync, strategy, "")
}

// Autoload registers the sync command and, unless the host is running that
// command itself, performs the pre-pass
func (r *Runner) Autoload(reg Registry, command, root string) (Decision, error) {
	reg.Register(CommandName, &SyncCommand{Runner: r, Root: root})

	if command == CommandName {
		r.Log.Debug("not automatically syncing because of package-yaml command")
		return Decision{Root: root, Phase: domain.PhaseBefore, Skipped: true}, nil
	}
	return r.Before(root)
}

func (r *Runner) run(root string, phase domain.Phase, pin, override domain.ConflictStrategy) (Decision, error) {
	start := time.Now()
	d := Decision{PassID: uuid.NewString(), Root: root, Phase: phase}
	log := r.Log.With("pass", d.PassID, "phase", phase)

	settings := r.Loader.Load()
	if pin != "" {
		if err := settings.ForceStrategy(pin); err != nil {
			return d, err
		}
	}

	p, err := project.Open(root, project.Options{
		Settings: settings,
		Loader:   r.Loader,
		Log:      log,
	})
	if err == nil {
		d.Root = p.Root()
		d.YAMLName = p.YAMLName()
		d.SyncResult, err = p.Sync(override)
	}
	if err != nil {
		log.Error("unexpected error", "root", root, "error", err)
	}
	if p != nil {
		fp, fpErr := p.Fingerprint(checksum.Default)
		if fpErr != nil {
			log.Debug("cannot fingerprint package files", "error", fpErr)
		}
		d.Fingerprint = fp
	}

	if r.Recorder != nil {
		rec := state.NewPassRecord(d.Root, phase, d.SyncResult, start, err)
		rec.PassID = d.PassID
		rec.JSONSum, rec.YAMLSum = d.Fingerprint.JSON, d.Fingerprint.YAML
		if recErr := r.Recorder.SavePass(rec); recErr != nil {
			log.Warn("cannot record history", "error", recErr)
		}
	}
	return d, err
}

// SyncCommand is the registered package-yaml command
type SyncCommand struct {
	Runner *Runner
	Root   string
}

// ErrNotSynced is returned by SyncCommand when the pass did not sync
var ErrNotSynced = errors.New("could not sync package.yaml and package.json")

// Execute runs a pass; args[0] may be use-yaml or use-json
func (c *SyncCommand) Execute(args []string) error {
	var strategy domain.ConflictStrategy
	if len(args) > 0 && strings.HasPrefix(args[0], "use-") {
		strategy = domain.ConflictStrategy(args[0])
	}
	d, err := c.Runner.Sync(c.Root, strategy)
	if err != nil {
		return err
	}
	if !d.OK() {
		return fmt.Errorf("%w (%s)", ErrNotSynced, d.Outcome)
	}
	return nil
}

// Usage lists the two explicit forms
func (c *SyncCommand) Usage() string {
	return CommandName + " use-yaml\n" + CommandName + " use-json"
}

// CommandGuidance tells the user how to resolve an ask from the command
func CommandGuidance() string {
	return "Could not sync package.yaml and package.json. Try executing one of:\n" +
		"  " + CommandName + " sync use-yaml\n" +
		"  " + CommandName + " sync use-json\n"
}

var safeArg = regexp.MustCompile(`^[a-zA-Z0-9_.,/-]+$`)

// HookGuidance tells the user how to rerun host command cmdline with a
// forced strategy. Arguments needing shell quoting are elided.
func HookGuidance(cmdline []string) string {
	shown := "[args...]"
	if len(cmdline) > 0 {
		ok := true
		for _, arg := range cmdline {
			if !safeArg.MatchString(arg) {
				ok = false
				break
			}
		}
		if ok {
			shown = strings.Join(cmdline, " ")
		}
	}
	return "Could not sync package.yaml and package.json. Try executing one of:\n" +
		"  " + config.EnvForce + "=yaml " + shown + "\n" +
		"  " + config.EnvForce + "=json " + shown + "\n" +
		"and then try this command again.\n"
}

// FindRoot walks up from start to the nearest directory holding a package
// file
func FindRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		for _, name := range []string{project.JSONName, "package.yaml", "package.yml"} {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no package file above %s: %w", start, domain.ErrNotFound)
		}
		dir = parent
	}
}
