// Package repo is the relational source-of-truth repository for the
// similarity-scanning pipeline. It wraps database/sql against PostgreSQL
// (github.com/lib/pq) in production and SQLite
// (github.com/mattn/go-sqlite3) for local-dev DSNs, registering both
// drivers by blank import so callers never need their own.
package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chartlylabs/codesim/internal/model"
)

var (
	ErrInvalidInput = errors.New("repo: invalid input")
	ErrNotFound     = errors.New("repo: not found")
	ErrDB           = errors.New("repo: db error")
)

// Repo is the relational repository. All methods are safe for concurrent
// use; every mutation that can race across workers (the two latches, the
// per-file "set if null") is expressed as a single conditional statement on
// Postgres, and as one transaction on SQLite, so no distributed lock is
// needed.
type Repo struct {
	db     *sql.DB
	driver string // "postgres" or "sqlite3" — selects placeholder style, column types, and the per-driver statement paths
}

func New(db *sql.DB, driver string) *Repo {
	return &Repo{db: db, driver: driver}
}

// EnsureSchema creates the backing tables if absent. Idempotent.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	jsonType := "JSONB"
	if r.driver == "sqlite3" {
		jsonType = "TEXT"
	}
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS scans (
			scan_id     TEXT PRIMARY KEY,
			created_at  TIMESTAMP NOT NULL,
			status      TEXT NOT NULL,
			progress    INTEGER NOT NULL DEFAULT 0,
			params_json %s NOT NULL
		)`, jsonType),
		`CREATE TABLE IF NOT EXISTS files (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			scan_id       TEXT NOT NULL REFERENCES scans(scan_id) ON DELETE CASCADE,
			filename      TEXT NOT NULL,
			object_key    TEXT NOT NULL,
			checksum      TEXT NOT NULL,
			language      TEXT,
			size          BIGINT NOT NULL,
			created_at    TIMESTAMP NOT NULL,
			normalized_at TIMESTAMP
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS results (
			scan_id     TEXT NOT NULL,
			file_a_id   INTEGER NOT NULL,
			file_b_id   INTEGER NOT NULL,
			score       DOUBLE PRECISION NOT NULL,
			details_json %s NOT NULL,
			created_at  TIMESTAMP NOT NULL,
			PRIMARY KEY (scan_id, file_a_id, file_b_id)
		)`, jsonType),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS alerts (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			scan_id     TEXT,
			service     TEXT NOT NULL,
			error_code  TEXT NOT NULL,
			message     TEXT NOT NULL,
			payload_json %s NOT NULL,
			created_at  TIMESTAMP NOT NULL
		)`, jsonType),
	}
	if r.driver == "postgres" {
		stmts[1] = `CREATE TABLE IF NOT EXISTS files (
			id            BIGSERIAL PRIMARY KEY,
			scan_id       TEXT NOT NULL REFERENCES scans(scan_id) ON DELETE CASCADE,
			filename      TEXT NOT NULL,
			object_key    TEXT NOT NULL,
			checksum      TEXT NOT NULL,
			language      TEXT,
			size          BIGINT NOT NULL,
			created_at    TIMESTAMP NOT NULL,
			normalized_at TIMESTAMP
		)`
		stmts[3] = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS alerts (
			id          BIGSERIAL PRIMARY KEY,
			scan_id     TEXT,
			service     TEXT NOT NULL,
			error_code  TEXT NOT NULL,
			message     TEXT NOT NULL,
			payload_json %s NOT NULL,
			created_at  TIMESTAMP NOT NULL
		)`, jsonType)
	}
	for _, s := range stmts {
		if _, err := r.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("%w: ensure schema: %v", ErrDB, err)
		}
	}
	return nil
}

func (r *Repo) ph(n int) string {
	if r.driver == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// CreateScan persists a new Scan with status PENDING and progress 0.
func (r *Repo) CreateScan(ctx context.Context, scanID string, params map[string]any) error {
	if scanID == "" {
		return fmt.Errorf("%w: scan_id required", ErrInvalidInput)
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("%w: marshal params: %v", ErrInvalidInput, err)
	}
	q := fmt.Sprintf(`INSERT INTO scans(scan_id, created_at, status, progress, params_json) VALUES (%s, %s, %s, 0, %s)`,
		r.ph(1), r.ph(2), r.ph(3), r.ph(4))
	if _, err := r.db.ExecContext(ctx, q, scanID, time.Now().UTC(), string(model.ScanPending), string(raw)); err != nil {
		return fmt.Errorf("%w: create scan: %v", ErrDB, err)
	}
	return nil
}

// InsertFile persists a File row and returns its generated id.
func (r *Repo) InsertFile(ctx context.Context, f model.File) (int64, error) {
	q := fmt.Sprintf(`INSERT INTO files(scan_id, filename, object_key, checksum, language, size, created_at)
		VALUES (%s, %s, %s, %s, %s, %s, %s)`,
		r.ph(1), r.ph(2), r.ph(3), r.ph(4), r.ph(5), r.ph(6), r.ph(7))
	if r.driver == "postgres" {
		q += " RETURNING id"
		var id int64
		if err := r.db.QueryRowContext(ctx, q, f.ScanID, f.Filename, f.ObjectKey, f.Checksum, f.Language, f.Size, time.Now().UTC()).Scan(&id); err != nil {
			return 0, fmt.Errorf("%w: insert file: %v", ErrDB, err)
		}
		return id, nil
	}
	res, err := r.db.ExecContext(ctx, q, f.ScanID, f.Filename, f.ObjectKey, f.Checksum, f.Language, f.Size, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: insert file: %v", ErrDB, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: insert file: %v", ErrDB, err)
	}
	return id, nil
}

// GetScan loads a Scan by id.
func (r *Repo) GetScan(ctx context.Context, scanID string) (model.Scan, error) {
	q := fmt.Sprintf(`SELECT scan_id, created_at, status, progress, params_json FROM scans WHERE scan_id = %s`, r.ph(1))
	row := r.db.QueryRowContext(ctx, q, scanID)
	var s model.Scan
	var paramsRaw string
	var status string
	if err := row.Scan(&s.ScanID, &s.CreatedAt, &status, &s.Progress, &paramsRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Scan{}, ErrNotFound
		}
		return model.Scan{}, fmt.Errorf("%w: get scan: %v", ErrDB, err)
	}
	s.Status = model.ScanStatus(status)
	s.Params = map[string]any{}
	if paramsRaw != "" {
		if err := json.Unmarshal([]byte(paramsRaw), &s.Params); err != nil {
			return model.Scan{}, fmt.Errorf("%w: decode params: %v", ErrDB, err)
		}
	}
	return s, nil
}

// UpdateScanStatusProgress applies a COALESCE-style partial update: nil
// status/progress leave the existing value untouched, and paramsPatch is
// merged into params_json key by key at the top level (jsonb concatenation
// on Postgres). Keys absent from the patch are kept; a key present in the
// patch replaces the stored value whole, so nested objects are not merged.
// SQLite has no jsonb operator, so there we read-modify-write within this
// call; Postgres pushes the merge into the statement itself.
func (r *Repo) UpdateScanStatusProgress(ctx context.Context, scanID string, status *model.ScanStatus, progress *int, paramsPatch map[string]any) error {
	if paramsPatch == nil {
		paramsPatch = map[string]any{}
	}
	patchRaw, err := json.Marshal(paramsPatch)
	if err != nil {
		return fmt.Errorf("%w: marshal patch: %v", ErrInvalidInput, err)
	}

	var statusVal any
	if status != nil {
		statusVal = string(*status)
	}
	var progressVal any
	if progress != nil {
		progressVal = *progress
	}

	if r.driver == "postgres" {
		q := fmt.Sprintf(`UPDATE scans SET
			status = COALESCE(%s, status),
			progress = COALESCE(%s, progress),
			params_json = params_json || CAST(%s AS jsonb)
			WHERE scan_id = %s`, r.ph(1), r.ph(2), r.ph(3), r.ph(4))
		if _, err := r.db.ExecContext(ctx, q, statusVal, progressVal, string(patchRaw), scanID); err != nil {
			return fmt.Errorf("%w: update scan: %v", ErrDB, err)
		}
		return nil
	}
	return r.sqliteMergeParams(ctx, scanID, statusVal, progressVal, paramsPatch)
}

func (r *Repo) sqliteMergeParams(ctx context.Context, scanID string, statusVal, progressVal any, patch map[string]any) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrDB, err)
	}
	defer tx.Rollback()

	var paramsRaw string
	var curStatus string
	var curProgress int
	if err := tx.QueryRowContext(ctx, `SELECT status, progress, params_json FROM scans WHERE scan_id = ?`, scanID).Scan(&curStatus, &curProgress, &paramsRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: select scan: %v", ErrDB, err)
	}
	params := map[string]any{}
	if paramsRaw != "" {
		_ = json.Unmarshal([]byte(paramsRaw), &params)
	}
	for k, v := range patch {
		params[k] = v
	}
	mergedRaw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("%w: marshal merged params: %v", ErrDB, err)
	}
	status := curStatus
	if statusVal != nil {
		status = statusVal.(string)
	}
	progress := curProgress
	if progressVal != nil {
		progress = progressVal.(int)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE scans SET status = ?, progress = ?, params_json = ? WHERE scan_id = ?`,
		status, progress, string(mergedRaw), scanID); err != nil {
		return fmt.Errorf("%w: update scan: %v", ErrDB, err)
	}
	return tx.Commit()
}

// AppendScanLog appends one {time, message} entry to params.logs, capped at
// the last 200 entries. Multiple worker instances of the same role may call
// this concurrently for one scan, so the Postgres path folds the read,
// append and cap into a single statement and the SQLite path into one
// transaction, rather than a separate read-then-write round trip, which
// would let one caller's entry clobber another's.
func (r *Repo) AppendScanLog(ctx context.Context, scanID, message string) error {
	entry := map[string]any{"time": time.Now().UTC().Format("15:04:05"), "message": message}

	if r.driver == "postgres" {
		entryRaw, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("%w: marshal log entry: %v", ErrInvalidInput, err)
		}
		q := `UPDATE scans SET params_json = jsonb_set(
				params_json,
				'{logs}',
				(
					SELECT COALESCE(jsonb_agg(elem ORDER BY ord), '[]'::jsonb)
					FROM (
						SELECT elem, ord
						FROM jsonb_array_elements(
							COALESCE(params_json->'logs', '[]'::jsonb) || jsonb_build_array($1::jsonb)
						) WITH ORDINALITY AS t(elem, ord)
						ORDER BY ord DESC
						LIMIT 200
					) capped
				)
			)
			WHERE scan_id = $2`
		if _, err := r.db.ExecContext(ctx, q, string(entryRaw), scanID); err != nil {
			return fmt.Errorf("%w: append scan log: %v", ErrDB, err)
		}
		return nil
	}
	return r.sqliteAppendLog(ctx, scanID, entry)
}

// sqliteAppendLog mirrors sqliteMergeParams/sqliteTryLatch: SQLite has no
// jsonb_set to fold the read+append+write into one statement, so the
// transaction itself is the atomicity boundary instead.
func (r *Repo) sqliteAppendLog(ctx context.Context, scanID string, entry map[string]any) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrDB, err)
	}
	defer tx.Rollback()

	var paramsRaw string
	if err := tx.QueryRowContext(ctx, `SELECT params_json FROM scans WHERE scan_id = ?`, scanID).Scan(&paramsRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: select scan: %v", ErrDB, err)
	}
	params := map[string]any{}
	if paramsRaw != "" {
		_ = json.Unmarshal([]byte(paramsRaw), &params)
	}
	logs, _ := params["logs"].([]any)
	logs = append(logs, entry)
	const maxLogs = 200
	if len(logs) > maxLogs {
		logs = logs[len(logs)-maxLogs:]
	}
	params["logs"] = logs
	mergedRaw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("%w: marshal merged params: %v", ErrDB, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE scans SET params_json = ? WHERE scan_id = ?`, string(mergedRaw), scanID); err != nil {
		return fmt.Errorf("%w: update scan: %v", ErrDB, err)
	}
	return tx.Commit()
}

// MarkFileNormalized sets normalized_at exactly once ("set if null").
// Redelivery after a successful first mark is a no-op.
func (r *Repo) MarkFileNormalized(ctx context.Context, fileID int64) error {
	q := fmt.Sprintf(`UPDATE files SET normalized_at = %s WHERE id = %s AND normalized_at IS NULL`, r.ph(1), r.ph(2))
	if _, err := r.db.ExecContext(ctx, q, time.Now().UTC(), fileID); err != nil {
		return fmt.Errorf("%w: mark file normalized: %v", ErrDB, err)
	}
	return nil
}

// ListFilesForScan returns every File of scanID, ordered by id ascending.
func (r *Repo) ListFilesForScan(ctx context.Context, scanID string) ([]model.File, error) {
	q := fmt.Sprintf(`SELECT id, scan_id, filename, object_key, checksum, language, size, created_at, normalized_at
		FROM files WHERE scan_id = %s ORDER BY id ASC`, r.ph(1))
	rows, err := r.db.QueryContext(ctx, q, scanID)
	if err != nil {
		return nil, fmt.Errorf("%w: list files: %v", ErrDB, err)
	}
	defer rows.Close()
	var out []model.File
	for rows.Next() {
		var f model.File
		if err := rows.Scan(&f.FileID, &f.ScanID, &f.Filename, &f.ObjectKey, &f.Checksum, &f.Language, &f.Size, &f.CreatedAt, &f.NormalizedAt); err != nil {
			return nil, fmt.Errorf("%w: scan file row: %v", ErrDB, err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// CountFilesNormalized returns (total, normalized) for scanID.
func (r *Repo) CountFilesNormalized(ctx context.Context, scanID string) (total, normalized int, err error) {
	q := fmt.Sprintf(`SELECT COUNT(*), COUNT(normalized_at) FROM files WHERE scan_id = %s`, r.ph(1))
	if err := r.db.QueryRowContext(ctx, q, scanID).Scan(&total, &normalized); err != nil {
		return 0, 0, fmt.Errorf("%w: count files: %v", ErrDB, err)
	}
	return total, normalized, nil
}

// TryMarkPairsGenerated flips the pairs_generated single-shot latch and
// records total_pairs, atomically, only on the false→true transition.
// Returns true iff this call performed the transition.
func (r *Repo) TryMarkPairsGenerated(ctx context.Context, scanID string, totalPairs int) (bool, error) {
	if r.driver == "postgres" {
		q := `UPDATE scans SET params_json = params_json
			|| jsonb_build_object('pairs_generated', true)
			|| jsonb_build_object('total_pairs', $1::int)
			WHERE scan_id = $2
			AND COALESCE((params_json->>'pairs_generated')::boolean, false) = false
			RETURNING scan_id`
		var got string
		err := r.db.QueryRowContext(ctx, q, totalPairs, scanID).Scan(&got)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("%w: try mark pairs_generated: %v", ErrDB, err)
		}
		return true, nil
	}
	return r.sqliteTryLatch(ctx, scanID, "pairs_generated", map[string]any{"total_pairs": totalPairs})
}

// TryMarkDoneEmitted flips the done_emitted single-shot latch atomically.
func (r *Repo) TryMarkDoneEmitted(ctx context.Context, scanID string) (bool, error) {
	if r.driver == "postgres" {
		q := `UPDATE scans SET params_json = params_json || jsonb_build_object('done_emitted', true)
			WHERE scan_id = $1
			AND COALESCE((params_json->>'done_emitted')::boolean, false) = false
			RETURNING scan_id`
		var got string
		err := r.db.QueryRowContext(ctx, q, scanID).Scan(&got)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("%w: try mark done_emitted: %v", ErrDB, err)
		}
		return true, nil
	}
	return r.sqliteTryLatch(ctx, scanID, "done_emitted", nil)
}

// sqliteTryLatch emulates the single conditional UPDATE...RETURNING using a
// transaction, since SQLite lacks a jsonb type to branch on inline. The
// transaction itself is the atomicity boundary.
func (r *Repo) sqliteTryLatch(ctx context.Context, scanID, latchKey string, extra map[string]any) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%w: begin: %v", ErrDB, err)
	}
	defer tx.Rollback()

	var paramsRaw string
	if err := tx.QueryRowContext(ctx, `SELECT params_json FROM scans WHERE scan_id = ?`, scanID).Scan(&paramsRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("%w: select scan: %v", ErrDB, err)
	}
	params := map[string]any{}
	if paramsRaw != "" {
		_ = json.Unmarshal([]byte(paramsRaw), &params)
	}
	if already, _ := params[latchKey].(bool); already {
		return false, nil
	}
	params[latchKey] = true
	for k, v := range extra {
		params[k] = v
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return false, fmt.Errorf("%w: marshal params: %v", ErrDB, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE scans SET params_json = ? WHERE scan_id = ?`, string(raw), scanID); err != nil {
		return false, fmt.Errorf("%w: update scan: %v", ErrDB, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%w: commit: %v", ErrDB, err)
	}
	return true, nil
}

// UpsertResult inserts or replaces the score for one unordered file pair.
func (r *Repo) UpsertResult(ctx context.Context, res model.Result) error {
	detailsRaw, err := json.Marshal(res.Details)
	if err != nil {
		return fmt.Errorf("%w: marshal details: %v", ErrInvalidInput, err)
	}
	var q string
	if r.driver == "postgres" {
		q = `INSERT INTO results(scan_id, file_a_id, file_b_id, score, details_json, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (scan_id, file_a_id, file_b_id)
			DO UPDATE SET score = EXCLUDED.score, details_json = EXCLUDED.details_json`
	} else {
		q = `INSERT INTO results(scan_id, file_a_id, file_b_id, score, details_json, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (scan_id, file_a_id, file_b_id)
			DO UPDATE SET score = excluded.score, details_json = excluded.details_json`
	}
	if _, err := r.db.ExecContext(ctx, q, res.ScanID, res.FileAID, res.FileBID, res.Score, string(detailsRaw), time.Now().UTC()); err != nil {
		return fmt.Errorf("%w: upsert result: %v", ErrDB, err)
	}
	return nil
}

// CountResults returns the number of Result rows for scanID.
func (r *Repo) CountResults(ctx context.Context, scanID string) (int, error) {
	q := fmt.Sprintf(`SELECT COUNT(*) FROM results WHERE scan_id = %s`, r.ph(1))
	var n int
	if err := r.db.QueryRowContext(ctx, q, scanID).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count results: %v", ErrDB, err)
	}
	return n, nil
}

// GetTotalPairs returns params.total_pairs, or (0, false) if unset.
func (r *Repo) GetTotalPairs(ctx context.Context, scanID string) (int, bool, error) {
	scan, err := r.GetScan(ctx, scanID)
	if err != nil {
		return 0, false, err
	}
	v, ok := scan.Params["total_pairs"]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch n := v.(type) {
	case float64:
		return int(n), true, nil
	case json.Number:
		i, _ := n.Int64()
		return int(i), true, nil
	case int:
		return n, true, nil
	default:
		return 0, false, nil
	}
}

// InsertAlert appends an incident record.
func (r *Repo) InsertAlert(ctx context.Context, a model.Alert) error {
	payloadRaw, err := json.Marshal(a.Payload)
	if err != nil {
		return fmt.Errorf("%w: marshal payload: %v", ErrInvalidInput, err)
	}
	q := fmt.Sprintf(`INSERT INTO alerts(scan_id, service, error_code, message, payload_json, created_at)
		VALUES (%s, %s, %s, %s, %s, %s)`, r.ph(1), r.ph(2), r.ph(3), r.ph(4), r.ph(5), r.ph(6))
	if _, err := r.db.ExecContext(ctx, q, a.ScanID, a.Service, a.ErrorCode, a.Message, string(payloadRaw), time.Now().UTC()); err != nil {
		return fmt.Errorf("%w: insert alert: %v", ErrDB, err)
	}
	return nil
}

// ListAlerts returns the most recent alerts, optionally scoped to one scan.
func (r *Repo) ListAlerts(ctx context.Context, scanID *string, limit int) ([]model.Alert, error) {
	if limit <= 0 {
		limit = 200
	}
	var rows *sql.Rows
	var err error
	if scanID != nil {
		q := fmt.Sprintf(`SELECT id, scan_id, service, error_code, message, payload_json, created_at
			FROM alerts WHERE scan_id = %s ORDER BY created_at DESC LIMIT %s`, r.ph(1), r.ph(2))
		rows, err = r.db.QueryContext(ctx, q, *scanID, limit)
	} else {
		q := fmt.Sprintf(`SELECT id, scan_id, service, error_code, message, payload_json, created_at
			FROM alerts ORDER BY created_at DESC LIMIT %s`, r.ph(1))
		rows, err = r.db.QueryContext(ctx, q, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: list alerts: %v", ErrDB, err)
	}
	defer rows.Close()
	var out []model.Alert
	for rows.Next() {
		var a model.Alert
		var payloadRaw string
		if err := rows.Scan(&a.AlertID, &a.ScanID, &a.Service, &a.ErrorCode, &a.Message, &payloadRaw, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan alert row: %v", ErrDB, err)
		}
		if payloadRaw != "" {
			_ = json.Unmarshal([]byte(payloadRaw), &a.Payload)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListResultsPairsForScan returns result rows joined with filenames, ordered
// by score descending, for the results listing contract.
func (r *Repo) ListResultsPairsForScan(ctx context.Context, scanID string, limit int) ([]model.ResultView, error) {
	if limit <= 0 {
		limit = 5000
	}
	q := fmt.Sprintf(`SELECT r.file_a_id, r.file_b_id, r.score, r.details_json, fa.filename, fb.filename
		FROM results r
		JOIN files fa ON fa.id = r.file_a_id
		JOIN files fb ON fb.id = r.file_b_id
		WHERE r.scan_id = %s
		ORDER BY r.score DESC
		LIMIT %s`, r.ph(1), r.ph(2))
	rows, err := r.db.QueryContext(ctx, q, scanID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list results: %v", ErrDB, err)
	}
	defer rows.Close()
	var out []model.ResultView
	for rows.Next() {
		var v model.ResultView
		var detailsRaw string
		if err := rows.Scan(&v.FileAID, &v.FileBID, &v.Score, &detailsRaw, &v.FilenameA, &v.FilenameB); err != nil {
			return nil, fmt.Errorf("%w: scan result row: %v", ErrDB, err)
		}
		if detailsRaw != "" {
			_ = json.Unmarshal([]byte(detailsRaw), &v.Details)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListScansSummary returns the most recent scans with their file counts,
// computed on read to keep the schema minimal. Pair counts are not included.
func (r *Repo) ListScansSummary(ctx context.Context, limit int) ([]model.ScanSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	q := fmt.Sprintf(`SELECT s.scan_id, s.created_at, s.status, s.progress, COUNT(f.id)
		FROM scans s
		LEFT JOIN files f ON f.scan_id = s.scan_id
		GROUP BY s.scan_id, s.created_at, s.status, s.progress
		ORDER BY s.created_at DESC
		LIMIT %s`, r.ph(1))
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list scans: %v", ErrDB, err)
	}
	defer rows.Close()
	var out []model.ScanSummary
	for rows.Next() {
		var s model.ScanSummary
		var status string
		if err := rows.Scan(&s.ScanID, &s.CreatedAt, &status, &s.Progress, &s.FileCount); err != nil {
			return nil, fmt.Errorf("%w: scan summary row: %v", ErrDB, err)
		}
		s.Status = model.ScanStatus(status)
		out = append(out, s)
	}
	return out, rows.Err()
}
