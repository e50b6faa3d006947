package conflict

import (
	"math"

	"github.com/Ning0612/pkgyaml/internal/backup"
	"github.com/Ning0612/pkgyaml/internal/core/diff"
	"github.com/Ning0612/pkgyaml/internal/domain"
	"github.com/Ning0612/pkgyaml/internal/logger"
	"github.com/Ning0612/pkgyaml/internal/tree"
)

// Input is everything one decision needs
type Input struct {
	JSONExists bool
	YAMLExists bool

	JSON tree.Value // current package.json content
	YAML tree.Value // current formatted file content

	// Backups is called at most once, only when both files exist and
	// differ with backups enabled
	Backups func() backup.Snapshot

	// Stat results; only ModTime is used, for use-latest
	JSONFile domain.FileInfo
	YAMLFile domain.FileInfo

	Strategy      domain.ConflictStrategy
	WriteBackups  bool
	TryMerge      bool
	TimestampFuzz float64 // seconds
}

// Decision is the resolver's verdict
type Decision struct {
	// InSync means nothing needs patching; only backups are refreshed
	InSync bool

	// Strategy is ask, use-json or use-yaml once resolved
	Strategy domain.ConflictStrategy

	// Merge holds the package.json changes to replay into the formatted
	// document before use-yaml runs; non-nil only for a merge
	Merge []diff.Op

	Reason string
}

// Merged reports a successful three-way merge
func (d Decision) Merged() bool {
	return d.Merge != nil
}

// Resolver picks which side of a diverged pair wins
type Resolver interface {
	Resolve(in Input) Decision
}

// DefaultResolver decides from existence, backups and timestamps
type DefaultResolver struct {
	log logger.Logger
}

// NewDefaultResolver creates a new DefaultResolver
func NewDefaultResolver(log logger.Logger) *DefaultResolver {
	if log == nil {
		log = &logger.NullLogger{}
	}
	return &DefaultResolver{log: log}
}

// Resolve implements the Resolver interface
func (r *DefaultResolver) Resolve(in Input) Decision {
	if tree.Equal(in.JSON, in.YAML) {
		r.log.Debug("package files already in sync")
		return Decision{InSync: true, Reason: "already in sync"}
	}

	r.log.Debug("package files out of sync, trying to resolve")
	strategy := in.Strategy
	if !strategy.IsValid() {
		strategy = domain.ConflictAsk
	}
	d := Decision{Reason: "configured strategy"}

	switch {
	case !in.YAMLExists:
		strategy, d.Reason = domain.ConflictUseJSON, "formatted file does not exist"
	case !in.JSONExists:
		strategy, d.Reason = domain.ConflictUseYAML, "package.json does not exist"
	case in.WriteBackups:
		if s, merge, reason, ok := r.fromBackups(in); ok {
			strategy, d.Merge, d.Reason = s, merge, reason
		} else {
			d.Reason = reason
		}
	}
	r.log.Debug("strategy after backup check", "strategy", strategy, "reason", d.Reason)

	if strategy == domain.ConflictUseLatest {
		strategy, d.Reason = r.latest(in)
	}

	d.Strategy = strategy
	return d
}

// fromBackups compares both sides against the last synced snapshots. ok is
// false when the configured strategy has to decide.
func (r *DefaultResolver) fromBackups(in Input) (domain.ConflictStrategy, []diff.Op, string, bool) {
	var snap backup.Snapshot
	if in.Backups != nil {
		snap = in.Backups()
	}
	jsonBackup, yamlBackup := in.JSON, in.YAML
	if snap.HasJSON {
		jsonBackup = snap.JSON
	}
	if snap.HasYAML {
		yamlBackup = snap.YAML
	}

	switch {
	case tree.Equal(in.JSON, yamlBackup):
		return domain.ConflictUseYAML, nil, "only the formatted file changed", true
	case tree.Equal(in.YAML, jsonBackup):
		return domain.ConflictUseJSON, nil, "only package.json changed", true
	case !tree.Equal(jsonBackup, yamlBackup):
		return "", nil, "backups out of sync", false
	case !in.TryMerge:
		return "", nil, "both changed, merge disabled", false
	}

	r.log.Debug("both files changed, attempting merge")
	jsonDelta := diff.Diff(jsonBackup, in.JSON)
	yamlDelta := diff.Diff(yamlBackup, in.YAML)

	patchedJSON := diff.Apply(tree.Clone(in.JSON), yamlDelta)
	patchedYAML := diff.Apply(tree.Clone(in.YAML), jsonDelta)
	if !tree.Equal(patchedJSON, patchedYAML) {
		r.log.Debug("merge unsuccessful")
		return "", nil, "merge conflict", false
	}

	r.log.Debug("merge successful", "changes", len(jsonDelta))
	return domain.ConflictUseYAML, jsonDelta, "merged changes from both files", true
}

// latest demotes to ask when the mtimes are within the fuzz window
func (r *DefaultResolver) latest(in Input) (domain.ConflictStrategy, string) {
	delta := in.YAMLFile.ModTime.Sub(in.JSONFile.ModTime).Seconds()

	switch {
	case math.Abs(delta) <= in.TimestampFuzz:
		r.log.Debug("timestamp difference within fuzz, reverting to ask",
			"delta", math.Abs(delta), "fuzz", in.TimestampFuzz)
		return domain.ConflictAsk, "timestamps too close"
	case delta > 0:
		r.log.Debug("formatted file newer", "seconds", delta)
		return domain.ConflictUseYAML, "formatted file is newer"
	default:
		r.log.Debug("package.json newer", "seconds", -delta)
		return domain.ConflictUseJSON, "package.json is newer"
	}
}
