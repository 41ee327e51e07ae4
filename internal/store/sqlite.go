package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ironsheep/ocr-robustness/internal/detection"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS detection_results (
	id             TEXT PRIMARY KEY,
	image_id       TEXT NOT NULL,
	operation      TEXT NOT NULL,
	image_uri      TEXT NOT NULL,
	tokens         TEXT NOT NULL,
	ground_truth   TEXT,
	detected       INTEGER NOT NULL,
	tier           TEXT NOT NULL,
	execution_time REAL NOT NULL,
	updated_at     DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_detection_results_detected ON detection_results(detected);

CREATE TABLE IF NOT EXISTS preprocessing_metrics (
	id              TEXT PRIMARY KEY,
	run_id          TEXT NOT NULL,
	source_image_id TEXT NOT NULL,
	total_time      REAL NOT NULL,
	payload         TEXT NOT NULL,
	created_at      DATETIME NOT NULL
);
`

// SQLite is a RecordStore and PreprocessingStore backed by a SQLite file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the
// schema exists. Use ":memory:" for a throwaway database.
func OpenSQLite(path string) (*SQLite, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=30000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Put(ctx context.Context, rec *DetectionRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("detection record requires an id")
	}
	tokens, err := json.Marshal(rec.RawTokens)
	if err != nil {
		return fmt.Errorf("failed to encode tokens: %w", err)
	}
	var gt sql.NullString
	if rec.GroundTruth != nil {
		gt = sql.NullString{String: *rec.GroundTruth, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO detection_results
			(id, image_id, operation, image_uri, tokens, ground_truth, detected, tier, execution_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			image_id = excluded.image_id,
			operation = excluded.operation,
			image_uri = excluded.image_uri,
			tokens = excluded.tokens,
			ground_truth = excluded.ground_truth,
			detected = excluded.detected,
			tier = excluded.tier,
			execution_time = excluded.execution_time,
			updated_at = CURRENT_TIMESTAMP
	`, rec.ID, rec.SourceImageID, rec.OperationDescriptor, rec.ImageURI, string(tokens),
		gt, rec.Detected, string(rec.Tier), float64(rec.ExecutionTime))
	if err != nil {
		return fmt.Errorf("failed to upsert detection record %s: %w", rec.ID, err)
	}
	return nil
}

const detectionColumns = `id, image_id, operation, image_uri, tokens, ground_truth, detected, tier, execution_time`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDetection(row rowScanner) (*DetectionRecord, error) {
	var (
		rec    DetectionRecord
		tokens string
		gt     sql.NullString
		tier   string
		exec   float64
	)
	if err := row.Scan(&rec.ID, &rec.SourceImageID, &rec.OperationDescriptor, &rec.ImageURI,
		&tokens, &gt, &rec.Detected, &tier, &exec); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tokens), &rec.RawTokens); err != nil {
		return nil, fmt.Errorf("failed to decode tokens of %s: %w", rec.ID, err)
	}
	if gt.Valid {
		rec.GroundTruth = &gt.String
	}
	rec.Tier = detection.Tier(tier)
	rec.ExecutionTime = Seconds(exec)
	return &rec, nil
}

func (s *SQLite) Get(ctx context.Context, id string) (*DetectionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+detectionColumns+` FROM detection_results WHERE id = ?`, id)
	rec, err := scanDetection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("detection record %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read detection record %s: %w", id, err)
	}
	return rec, nil
}

func (s *SQLite) Scan(ctx context.Context) ([]*DetectionRecord, error) {
	return s.Filter(ctx, nil)
}

// Filter scans the table in ID order and applies pred in Go.
func (s *SQLite) Filter(ctx context.Context, pred Predicate) ([]*DetectionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+detectionColumns+` FROM detection_results ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to scan detection records: %w", err)
	}
	defer rows.Close()

	var out []*DetectionRecord
	for rows.Next() {
		rec, err := scanDetection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan detection records: %w", err)
		}
		if pred == nil || pred(rec) {
			out = append(out, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan detection records: %w", err)
	}
	return out, nil
}

func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM detection_results`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count detection records: %w", err)
	}
	return n, nil
}

// CountUndetected counts records with a negative verdict without loading
// them.
func (s *SQLite) CountUndetected(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM detection_results WHERE detected = 0`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count undetected records: %w", err)
	}
	return n, nil
}

func (s *SQLite) PutPreprocessing(ctx context.Context, rec *PreprocessingRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("preprocessing record requires an id")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode preprocessing record: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO preprocessing_metrics (id, run_id, source_image_id, total_time, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			run_id = excluded.run_id,
			source_image_id = excluded.source_image_id,
			total_time = excluded.total_time,
			payload = excluded.payload,
			created_at = excluded.created_at
	`, rec.ID, rec.RunID, rec.SourceImageID, float64(rec.TotalTime), string(payload),
		rec.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to upsert preprocessing record %s: %w", rec.ID, err)
	}
	return nil
}

func (s *SQLite) GetPreprocessing(ctx context.Context, id string) (*PreprocessingRecord, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM preprocessing_metrics WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("preprocessing record %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preprocessing record %s: %w", id, err)
	}
	var rec PreprocessingRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode preprocessing record %s: %w", id, err)
	}
	return &rec, nil
}

var (
	_ RecordStore        = (*SQLite)(nil)
	_ PreprocessingStore = (*SQLite)(nil)
)
