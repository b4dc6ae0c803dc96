package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/pageloader/internal/model"
)

// DBFileName is the name of the history database file.
const DBFileName = "pageloader.db"

// HistoryDB stores the outcome of every load in SQLite.
// It is safe for concurrent use; writes are serialized by the single
// connection.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file; mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the path of the database file.
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS loads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		page_url TEXT NOT NULL,
		host TEXT NOT NULL,
		page_file TEXT,
		succeeded INTEGER NOT NULL,
		failed_phase TEXT,
		error TEXT,
		asset_count INTEGER NOT NULL DEFAULT 0,
		asset_bytes INTEGER NOT NULL DEFAULT 0,
		started_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_loads_page_url ON loads(page_url);
	CREATE INDEX IF NOT EXISTS idx_loads_host ON loads(host);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// LoadRecord is the summary of one stored load.
type LoadRecord struct {
	// ID is the unique identifier of the load in the database.
	ID int64 `json:"id"`

	// PageURL is the requested page URL.
	PageURL string `json:"pageUrl"`

	// PageFile is the saved page path; empty when the load failed.
	PageFile string `json:"pageFile,omitempty"`

	// Succeeded reports whether the page was saved.
	Succeeded bool `json:"succeeded"`

	// FailedPhase is the failed phase name, empty on success.
	FailedPhase string `json:"failedPhase,omitempty"`

	// Error is the failure message, empty on success.
	Error string `json:"error,omitempty"`

	// AssetCount is the number of distinct local assets.
	AssetCount int `json:"assetCount"`

	// AssetBytes is the total size of the downloaded assets.
	AssetBytes int64 `json:"assetBytes"`

	// StartedAt is when the load started.
	StartedAt time.Time `json:"startedAt"`

	// Duration is how long the load took.
	Duration time.Duration `json:"duration"`
}

// SaveLoadReport stores report and returns its ID.
func (hdb *HistoryDB) SaveLoadReport(ctx context.Context, report *model.LoadReport) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	var failedPhase string
	if report.FailedPhase != model.PhaseNone {
		failedPhase = report.FailedPhase.String()
	}

	query := `
	INSERT INTO loads (page_url, host, page_file, succeeded, failed_phase, error,
		asset_count, asset_bytes, started_at, duration_ms, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := hdb.db.ExecContext(ctx, query,
		report.PageURL,
		hostOf(report.PageURL),
		report.PageFile,
		report.Succeeded(),
		failedPhase,
		report.ErrorMessage,
		len(report.Assets),
		report.TotalAssetBytes(),
		report.StartedAt.UTC().Format(time.RFC3339Nano),
		report.Duration().Milliseconds(),
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save load report: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get load id: %w", err)
	}
	return id, nil
}

// ListLoads returns the most recent loads, newest first. When pageURL is
// not empty only loads of that URL are returned. A limit below 1 returns
// every matching load.
func (hdb *HistoryDB) ListLoads(ctx context.Context, pageURL string, limit int) ([]LoadRecord, error) {
	query := `
	SELECT id, page_url, page_file, succeeded, failed_phase, error,
		asset_count, asset_bytes, started_at, duration_ms
	FROM loads
	`
	args := make([]any, 0, 2)
	if pageURL != "" {
		query += " WHERE page_url = ?"
		args = append(args, pageURL)
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list loads: %w", err)
	}
	defer rows.Close()

	records := make([]LoadRecord, 0)
	for rows.Next() {
		var (
			rec         LoadRecord
			pageFile    sql.NullString
			failedPhase sql.NullString
			errMsg      sql.NullString
			startedAt   string
			durationMS  int64
		)
		if err := rows.Scan(
			&rec.ID, &rec.PageURL, &pageFile, &rec.Succeeded, &failedPhase, &errMsg,
			&rec.AssetCount, &rec.AssetBytes, &startedAt, &durationMS,
		); err != nil {
			return nil, fmt.Errorf("failed to scan load: %w", err)
		}

		rec.PageFile = pageFile.String
		rec.FailedPhase = failedPhase.String
		rec.Error = errMsg.String
		rec.StartedAt = parseTimestamp(startedAt)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}

	return records, rows.Err()
}

// GetLatest returns the most recent report stored for pageURL, or nil if
// the URL was never loaded.
func (hdb *HistoryDB) GetLatest(ctx context.Context, pageURL string) (*model.LoadReport, error) {
	query := `
	SELECT report_json FROM loads
	WHERE page_url = ?
	ORDER BY id DESC
	LIMIT 1
	`
	return hdb.getReport(ctx, query, pageURL)
}

// GetLoadReportByID returns the report stored under id, or nil.
func (hdb *HistoryDB) GetLoadReportByID(ctx context.Context, id int64) (*model.LoadReport, error) {
	query := `
	SELECT report_json FROM loads
	WHERE id = ?
	`
	return hdb.getReport(ctx, query, id)
}

// getReport decodes the report selected by query.
func (hdb *HistoryDB) getReport(ctx context.Context, query string, arg any) (*model.LoadReport, error) {
	var reportJSON string
	err := hdb.db.QueryRowContext(ctx, query, arg).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get load report: %w", err)
	}

	var report model.LoadReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// hostOf returns the host of rawURL, or rawURL itself when it cannot be parsed.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05", // SQLite default datetime format
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
