package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Ning0612/pkgyaml/internal/domain"
)

// DBName is the history database file inside the data directory
const DBName = "package-yaml.db"

// Manager persists reconciliation history
type Manager struct {
	db *sql.DB
}

// PassRecord is one reconciliation pass
type PassRecord struct {
	ID        int64
	PassID    string // correlates the record with log lines
	Root      string
	Phase     domain.Phase
	Requested domain.ConflictStrategy
	Resolved  domain.ConflictStrategy
	Outcome   string // synced, failed, ask or error
	Merged    bool
	Reason    string
	StartTime time.Time
	EndTime   time.Time
	Error     string
	JSONSum   string // package.json fingerprint after the pass, "" if absent
	YAMLSum   string
}

// OutcomeError marks a pass that stopped on a load or parse error
const OutcomeError = "error"

// NewPassRecord builds a record from a pass result
func NewPassRecord(root string, phase domain.Phase, res domain.SyncResult, start time.Time, err error) PassRecord {
	rec := PassRecord{
		Root:      root,
		Phase:     phase,
		Requested: res.Requested,
		Resolved:  res.Resolved,
		Outcome:   string(res.Outcome),
		Merged:    res.Merged,
		Reason:    res.Reason,
		StartTime: start,
		EndTime:   time.Now(),
	}
	if err != nil {
		rec.Outcome = OutcomeError
		rec.Error = err.Error()
	}
	return rec
}

// NewManager opens or creates the history database in dataDir
func NewManager(dataDir string) (*Manager, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBName)
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Hooks of parallel package-manager runs may share one database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode and busy timeout: %w", err)
	}

	manager := &Manager{db: db}
	if err := manager.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return manager, nil
}

func (m *Manager) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS passes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pass_id TEXT NOT NULL DEFAULT '',
		root TEXT NOT NULL,
		phase TEXT NOT NULL,
		requested TEXT NOT NULL DEFAULT '',
		resolved TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL,
		merged INTEGER NOT NULL DEFAULT 0,
		reason TEXT NOT NULL DEFAULT '',
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		json_sum TEXT NOT NULL DEFAULT '',
		yaml_sum TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_passes_root_time ON passes(root, start_time DESC);
	CREATE INDEX IF NOT EXISTS idx_passes_outcome ON passes(outcome);
	`

	_, err := m.db.Exec(schema)
	return err
}

func validOutcome(outcome string) bool {
	switch domain.Outcome(outcome) {
	case domain.OutcomeSynced, domain.OutcomeFailed, domain.OutcomeAsk:
		return true
	}
	return outcome == OutcomeError
}

// SavePass records a pass
func (m *Manager) SavePass(record PassRecord) error {
	if !validOutcome(record.Outcome) {
		return fmt.Errorf("invalid outcome: %s (must be 'synced', 'failed', 'ask' or 'error')", record.Outcome)
	}
	if record.Root == "" {
		return fmt.Errorf("record root cannot be empty")
	}

	query := `
		INSERT INTO passes (pass_id, root, phase, requested, resolved, outcome, merged, reason, start_time, end_time, error, json_sum, yaml_sum)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := m.db.Exec(query,
		record.PassID,
		record.Root,
		string(record.Phase),
		string(record.Requested),
		string(record.Resolved),
		record.Outcome,
		record.Merged,
		record.Reason,
		record.StartTime,
		record.EndTime,
		record.Error,
		record.JSONSum,
		record.YAMLSum,
	)
	if err != nil {
		return fmt.Errorf("failed to save pass record: %w", err)
	}

	return nil
}

// GetHistory retrieves the latest passes for one project root
func (m *Manager) GetHistory(root string, limit int) ([]PassRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	query := `
		SELECT id, pass_id, root, phase, requested, resolved, outcome, merged, reason, start_time, end_time, error, json_sum, yaml_sum
		FROM passes
		WHERE root = ?
		ORDER BY start_time DESC, id DESC
		LIMIT ?
	`

	rows, err := m.db.Query(query, root, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return scanRecords(rows)
}

// GetLastSynced retrieves the last synced pass for a root, nil if none
func (m *Manager) GetLastSynced(root string) (*PassRecord, error) {
	query := `
		SELECT id, pass_id, root, phase, requested, resolved, outcome, merged, reason, start_time, end_time, error, json_sum, yaml_sum
		FROM passes
		WHERE root = ? AND outcome = 'synced'
		ORDER BY start_time DESC, id DESC
		LIMIT 1
	`

	rows, err := m.db.Query(query, root)
	if err != nil {
		return nil, fmt.Errorf("failed to query last synced: %w", err)
	}
	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// GetAllHistory retrieves the latest passes across every root
func (m *Manager) GetAllHistory(limit int) ([]PassRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	query := `
		SELECT id, pass_id, root, phase, requested, resolved, outcome, merged, reason, start_time, end_time, error, json_sum, yaml_sum
		FROM passes
		ORDER BY start_time DESC, id DESC
		LIMIT ?
	`

	rows, err := m.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query all history: %w", err)
	}
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]PassRecord, error) {
	defer rows.Close()

	var records []PassRecord
	for rows.Next() {
		var record PassRecord
		var phase, requested, resolved string
		err := rows.Scan(
			&record.ID,
			&record.PassID,
			&record.Root,
			&phase,
			&requested,
			&resolved,
			&record.Outcome,
			&record.Merged,
			&record.Reason,
			&record.StartTime,
			&record.EndTime,
			&record.Error,
			&record.JSONSum,
			&record.YAMLSum,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		record.Phase = domain.Phase(phase)
		record.Requested = domain.ConflictStrategy(requested)
		record.Resolved = domain.ConflictStrategy(resolved)
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
