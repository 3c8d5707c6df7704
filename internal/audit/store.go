package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"solguardian/types"
)

// Store records an append-only audit trail of analyses and tool runs.
// Auditing is never on the analysis critical path: every write failure is
// logged and swallowed.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the audit database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init audit schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		file_path TEXT NOT NULL,
		risk_level TEXT NOT NULL,
		risk_score INTEGER NOT NULL,
		indicator_count INTEGER NOT NULL,
		summary_json TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS tool_runs (
		id TEXT PRIMARY KEY,
		analysis_id TEXT NOT NULL,
		tool TEXT NOT NULL,
		available INTEGER NOT NULL,
		status TEXT NOT NULL,
		finding_count INTEGER NOT NULL,
		error TEXT,
		duration_ms INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (analysis_id) REFERENCES analyses(id)
	);
	CREATE INDEX IF NOT EXISTS idx_analyses_file ON analyses(file_path);
	CREATE INDEX IF NOT EXISTS idx_tool_runs_analysis ON tool_runs(analysis_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordAnalysis persists the rollup of one completed analysis plus its
// tool runs. Failures are logged, never returned.
func (s *Store) RecordAnalysis(report *types.AnalysisReport) {
	if s == nil {
		return
	}
	summaryJSON, err := json.Marshal(report.Summary)
	if err != nil {
		summaryJSON = []byte("{}")
	}
	_, err = s.db.Exec(
		`INSERT INTO analyses (id, file_path, risk_level, risk_score, indicator_count, summary_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.RequestID,
		report.Contract.FilePath,
		string(report.Risk.Level),
		report.Risk.Score,
		len(report.Contract.Indicators),
		string(summaryJSON),
		time.Now().UTC(),
	)
	if err != nil {
		log.Printf("⚠️  Audit write failed for analysis %s: %v", report.RequestID, err)
		return
	}
	for _, tr := range report.Tools {
		available := 0
		if tr.Available {
			available = 1
		}
		_, err := s.db.Exec(
			`INSERT INTO tool_runs (id, analysis_id, tool, available, status, finding_count, error, duration_ms, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(),
			report.RequestID,
			tr.Tool,
			available,
			string(tr.Status),
			len(tr.Findings),
			tr.Error,
			tr.Duration.Milliseconds(),
			time.Now().UTC(),
		)
		if err != nil {
			log.Printf("⚠️  Audit write failed for tool run %s/%s: %v", report.RequestID, tr.Tool, err)
		}
	}
}

// RecentAnalyses returns the newest audit rows, for the stats surface.
func (s *Store) RecentAnalyses(limit int) ([]map[string]interface{}, error) {
	rows, err := s.db.Query(
		`SELECT id, file_path, risk_level, risk_score, indicator_count, created_at
		 FROM analyses ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]interface{}
	for rows.Next() {
		var id, filePath, level string
		var score, indicators int
		var createdAt time.Time
		if err := rows.Scan(&id, &filePath, &level, &score, &indicators, &createdAt); err != nil {
			return nil, err
		}
		out = append(out, map[string]interface{}{
			"id":         id,
			"file_path":  filePath,
			"risk_level": level,
			"risk_score": score,
			"indicators": indicators,
			"created_at": createdAt,
		})
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}
