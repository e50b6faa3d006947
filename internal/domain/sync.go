package domain

// ConflictStrategy defines how a pass resolves two diverged package files
type ConflictStrategy string

const (
	// ConflictAsk stops the pass and requires an explicit strategy
	ConflictAsk ConflictStrategy = "ask"

	// ConflictUseJSON makes package.json authoritative
	ConflictUseJSON ConflictStrategy = "use-json"

	// ConflictUseYAML makes the formatted file authoritative
	ConflictUseYAML ConflictStrategy = "use-yaml"

	// ConflictUseLatest picks the file with the newer mtime
	ConflictUseLatest ConflictStrategy = "use-latest"
)

// Strategies lists every known strategy in documentation order
func Strategies() []ConflictStrategy {
	return []ConflictStrategy{ConflictAsk, ConflictUseJSON, ConflictUseYAML, ConflictUseLatest}
}

// IsValid checks if the conflict strategy is a known value
func (s ConflictStrategy) IsValid() bool {
	switch s {
	case ConflictAsk, ConflictUseJSON, ConflictUseYAML, ConflictUseLatest:
		return true
	}
	return false
}

// Outcome is the terminal state of one reconciliation pass
type Outcome string

const (
	// OutcomeSynced means both files are consistent on disk
	OutcomeSynced Outcome = "synced"

	// OutcomeFailed means a strategy was chosen but a write failed
	OutcomeFailed Outcome = "failed"

	// OutcomeAsk means no resolution could be made and nothing was written
	OutcomeAsk Outcome = "ask"
)

// Phase identifies which entry point started a pass
type Phase string

const (
	PhaseSync   Phase = "sync"
	PhaseBefore Phase = "before"
	PhaseAfter  Phase = "after"
)

// SyncResult summarises one reconciliation pass
type SyncResult struct {
	// Outcome is synced, failed or ask
	Outcome Outcome

	// Requested is the strategy the pass started with
	Requested ConflictStrategy

	// Resolved is the strategy actually applied (empty when already in sync)
	Resolved ConflictStrategy

	// Merged reports a successful three-way merge
	Merged bool

	// Reason explains why this resolution was chosen
	Reason string
}

// OK reports whether both files ended up consistent on disk
func (r SyncResult) OK() bool {
	return r.Outcome == OutcomeSynced
}
