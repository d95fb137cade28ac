package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/gerbenv/internal/model"
)

// RunDB provides SQLite-based storage for conversion runs.
// It manages connection pooling and provides methods for CRUD operations.
//
// Design decision: We use a single database file for all projects rather
// than separate files per project. This simplifies cross-project queries
// and backup/restore operations.
type RunDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures RunDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a RunDB at the specified path.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*RunDB, error) {
	dbPath := filepath.Join(dbDir, "gerbenv.db")

	// Check if we should create the database or require it to exist
	if !opts.CreateIfNotExists {
		// Check if database file exists
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		// Ensure directory exists
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Build connection string
	// We use modernc.org/sqlite which uses a different connection string format.
	// When CreateIfNotExists is false, we use mode=rw to prevent creating new files.
	// When CreateIfNotExists is true, we use mode=rwc to allow creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	// SQLite doesn't benefit from multiple connections for writes,
	// but multiple readers can improve performance
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &RunDB{
		db:     db,
		dbPath: dbPath,
	}

	// Enable WAL mode if requested
	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	// Create tables
	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return rdb, nil
}

// Close closes the database connection.
func (rdb *RunDB) Close() error {
	return rdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (rdb *RunDB) createTables() error {
	schema := `
	-- Conversion runs store complete reports as JSON
	CREATE TABLE IF NOT EXISTS conversion_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project TEXT NOT NULL,
		job_path TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		report_json TEXT NOT NULL,
		severity_summary TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_project ON conversion_runs(project);
	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON conversion_runs(timestamp);

	-- Per-layer records allow layer-level queries without parsing JSON
	CREATE TABLE IF NOT EXISTS run_layers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES conversion_runs(id) ON DELETE CASCADE,
		path TEXT NOT NULL,
		category TEXT NOT NULL,
		side TEXT,
		polygons INTEGER DEFAULT 0,
		suppressed_draws INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_layers_run ON run_layers(run_id);
	CREATE INDEX IF NOT EXISTS idx_layers_category ON run_layers(category);
	`

	_, err := rdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveReport stores a complete conversion report and its layer records.
// Returns the run ID assigned by the database.
func (rdb *RunDB) SaveReport(ctx context.Context, report *model.Report) (int64, error) {
	// Serialize report to JSON
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	// Create severity summary
	summary := map[string]int{
		"critical": 0,
		"high":     0,
		"medium":   0,
		"low":      0,
		"info":     0,
	}
	if report.SimpleReport != nil {
		summary["critical"] = report.SimpleReport.CriticalCount
		summary["high"] = report.SimpleReport.HighCount
		summary["medium"] = report.SimpleReport.MediumCount
		summary["low"] = report.SimpleReport.LowCount
		summary["info"] = report.SimpleReport.InfoCount
	}
	summaryJSON, _ := json.Marshal(summary) //nolint:errcheck,errchkjson // summary is a simple map; Marshal won't fail

	query := `
	INSERT INTO conversion_runs (project, job_path, report_json, severity_summary)
	VALUES (?, ?, ?, ?)
	`

	result, err := rdb.db.ExecContext(ctx, query,
		report.Project,
		report.JobPath,
		string(reportJSON),
		string(summaryJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save conversion run: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	layerQuery := `
	INSERT INTO run_layers (run_id, path, category, side, polygons, suppressed_draws)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	for _, l := range report.Layers {
		if _, err := rdb.db.ExecContext(ctx, layerQuery,
			runID, l.Path, l.Category, l.Side, l.Polygons, l.SuppressedDraws,
		); err != nil {
			return 0, fmt.Errorf("failed to save layer record: %w", err)
		}
	}

	return runID, nil
}

// GetLatestReport retrieves the most recent conversion report for a project.
func (rdb *RunDB) GetLatestReport(ctx context.Context, project string) (*model.Report, error) {
	query := `
	SELECT report_json FROM conversion_runs
	WHERE project = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`

	var reportJSON string
	err := rdb.db.QueryRowContext(ctx, query, project).Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversion run: %w", err)
	}

	var report model.Report
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// GetReportByID retrieves a conversion report by its database ID.
func (rdb *RunDB) GetReportByID(ctx context.Context, id int64) (*model.Report, error) {
	query := `
	SELECT report_json FROM conversion_runs
	WHERE id = ?
	`

	var reportJSON string
	err := rdb.db.QueryRowContext(ctx, query, id).Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversion run: %w", err)
	}

	var report model.Report
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// ListProjects returns a list of all projects with at least one stored run.
func (rdb *RunDB) ListProjects(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT project FROM conversion_runs
	ORDER BY project
	`

	rows, err := rdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []string
	for rows.Next() {
		var project string
		if err := rows.Scan(&project); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}

	return projects, rows.Err()
}

// GetRunHistory retrieves all conversion reports for a project,
// newest first.
func (rdb *RunDB) GetRunHistory(ctx context.Context, project string) ([]*model.Report, error) {
	query := `
	SELECT report_json FROM conversion_runs
	WHERE project = ?
	ORDER BY timestamp DESC, id DESC
	`

	rows, err := rdb.db.QueryContext(ctx, query, project)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var reports []*model.Report
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		var report model.Report
		if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
			continue // Skip malformed reports
		}
		reports = append(reports, &report)
	}

	return reports, rows.Err()
}

// RunMetadata contains summary information about a conversion run.
// This is used for displaying run history without loading the full report.
type RunMetadata struct {
	// ID is the unique identifier of the run in the database.
	ID int64

	// Project is the converted project name.
	Project string

	// Timestamp is when the conversion was performed.
	Timestamp time.Time

	// SeveritySummary contains counts of findings by severity level.
	SeveritySummary map[string]int
}

// GetRunHistoryWithMetadata retrieves run metadata for a project.
// This is more efficient than GetRunHistory when only metadata is needed.
func (rdb *RunDB) GetRunHistoryWithMetadata(ctx context.Context, project string) ([]RunMetadata, error) {
	query := `
	SELECT id, project, timestamp, severity_summary
	FROM conversion_runs
	WHERE project = ?
	ORDER BY timestamp DESC, id DESC
	`

	rows, err := rdb.db.QueryContext(ctx, query, project)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var timestamp string
		var summaryJSON sql.NullString

		if err := rows.Scan(&meta.ID, &meta.Project, &timestamp, &summaryJSON); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		// Parse timestamp
		meta.Timestamp = parseTimestamp(timestamp)

		// Parse severity summary
		if summaryJSON.Valid && summaryJSON.String != "" {
			if err := json.Unmarshal([]byte(summaryJSON.String), &meta.SeveritySummary); err != nil {
				meta.SeveritySummary = make(map[string]int)
			}
		} else {
			meta.SeveritySummary = make(map[string]int)
		}

		results = append(results, meta)
	}

	return results, rows.Err()
}

// LayerRecord represents a stored per-layer row of a run.
type LayerRecord struct {
	ID              int64
	RunID           int64
	Path            string
	Category        string
	Side            string
	Polygons        int
	SuppressedDraws int
}

// GetRunLayers retrieves the layer records of a run in insertion order.
func (rdb *RunDB) GetRunLayers(ctx context.Context, runID int64) ([]LayerRecord, error) {
	query := `
	SELECT id, run_id, path, category, side, polygons, suppressed_draws
	FROM run_layers
	WHERE run_id = ?
	ORDER BY id
	`

	rows, err := rdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run layers: %w", err)
	}
	defer rows.Close()

	var results []LayerRecord
	for rows.Next() {
		var rec LayerRecord
		if err := rows.Scan(
			&rec.ID, &rec.RunID, &rec.Path, &rec.Category,
			&rec.Side, &rec.Polygons, &rec.SuppressedDraws,
		); err != nil {
			return nil, fmt.Errorf("failed to scan layer record: %w", err)
		}
		results = append(results, rec)
	}

	return results, rows.Err()
}

// RunDiff summarizes what changed between two stored runs.
type RunDiff struct {
	// OldID and NewID are the compared run IDs.
	OldID int64
	NewID int64

	// AddedLayers are layer paths present only in the new run.
	AddedLayers []string

	// RemovedLayers are layer paths present only in the old run.
	RemovedLayers []string

	// NewFindings are finding keys (type plus value) present only in
	// the new run.
	NewFindings []string

	// ResolvedFindings are finding keys present only in the old run.
	ResolvedFindings []string
}

// DiffRuns compares two stored runs and reports layer and finding
// changes. Both runs must exist.
func (rdb *RunDB) DiffRuns(ctx context.Context, oldID, newID int64) (*RunDiff, error) {
	oldReport, err := rdb.GetReportByID(ctx, oldID)
	if err != nil {
		return nil, err
	}
	if oldReport == nil {
		return nil, fmt.Errorf("run %d not found", oldID)
	}
	newReport, err := rdb.GetReportByID(ctx, newID)
	if err != nil {
		return nil, err
	}
	if newReport == nil {
		return nil, fmt.Errorf("run %d not found", newID)
	}

	diff := &RunDiff{OldID: oldID, NewID: newID}

	oldLayers := layerPathSet(oldReport)
	newLayers := layerPathSet(newReport)
	for _, l := range newReport.Layers {
		if !oldLayers[l.Path] {
			diff.AddedLayers = append(diff.AddedLayers, l.Path)
		}
	}
	for _, l := range oldReport.Layers {
		if !newLayers[l.Path] {
			diff.RemovedLayers = append(diff.RemovedLayers, l.Path)
		}
	}

	oldFindings := findingKeySet(oldReport)
	newFindings := findingKeySet(newReport)
	for key := range newFindings {
		if !oldFindings[key] {
			diff.NewFindings = append(diff.NewFindings, key)
		}
	}
	for key := range oldFindings {
		if !newFindings[key] {
			diff.ResolvedFindings = append(diff.ResolvedFindings, key)
		}
	}

	return diff, nil
}

// layerPathSet collects the layer paths of a report.
func layerPathSet(r *model.Report) map[string]bool {
	set := make(map[string]bool, len(r.Layers))
	for _, l := range r.Layers {
		set[l.Path] = true
	}
	return set
}

// findingKeySet collects type:value keys for the report's findings.
func findingKeySet(r *model.Report) map[string]bool {
	set := make(map[string]bool)
	if r.SimpleReport == nil {
		return set
	}
	for _, f := range r.SimpleReport.Findings {
		set[f.Type+":"+f.Value] = true
	}
	return set
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on configuration.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	// Return zero time if no format matches
	// This is a fallback to avoid breaking functionality for edge cases
	return time.Time{}
}
