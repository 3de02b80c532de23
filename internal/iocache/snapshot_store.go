package iocache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tallyhq/tally/internal/contract"
	"github.com/tallyhq/tally/schema"
)

// Table names for locally computed score runs.
const (
	snapshotsTable = "tally_leaderboard_snapshots"
	scoresTable    = "tally_contribution_scores"
)

// scoreColumns lists the columns of scoresTable in insert order.
const scoreColumns = `period_type, period_key, user_email, project_id, rule_id,
	lines_added, lines_removed, commit_count, files_changed,
	session_duration_hours, agent_requests, score_breakdown, total_score,
	member_rank, hook_adopted`

// SnapshotStoreImpl implements the SnapshotStore interface.
type SnapshotStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
}

var _ contract.SnapshotStore = &SnapshotStoreImpl{} // Compile-time check

// NewSnapshotStore creates a new SnapshotStore with the specified backend.
func NewSnapshotStore(backend schema.DatabaseBackend, connStr string) (contract.SnapshotStore, error) {
	if backend == schema.NoneBackend {
		// No-op store for disabled tracking
		return &SnapshotStoreImpl{backend: backend}, nil
	}

	db, err := openDB(backend, connStr, GetSnapshotDBFilePath())
	if err != nil {
		return nil, err
	}

	if err := createSnapshotTables(db, backend); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create snapshot tables: %w", err)
	}

	return &SnapshotStoreImpl{db: db, backend: backend}, nil
}

// createSnapshotTables applies the embedded up migrations. They are written
// with IF NOT EXISTS so a later migrate run stays a no-op.
func createSnapshotTables(db *sql.DB, backend schema.DatabaseBackend) error {
	stmts, err := upStatements(backend)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (ss *SnapshotStoreImpl) disabled() bool {
	return ss.backend == schema.NoneBackend || ss.db == nil
}

// SaveSnapshot upserts the leaderboard snapshot of a period.
func (ss *SnapshotStoreImpl) SaveSnapshot(rec schema.SnapshotRecord) error {
	if ss.disabled() {
		return nil
	}

	entries := rec.Entries
	if entries == nil {
		entries = []schema.SnapshotEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot entries: %w", err)
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	table := quoteTableName(snapshotsTable, ss.backend)
	var query string
	switch ss.backend {
	case schema.MySQLBackend:
		query = fmt.Sprintf(`INSERT INTO %s (period_type, period_key, rule_id, entries, created_at) VALUES (?, ?, ?, ?, ?) AS new
			ON DUPLICATE KEY UPDATE rule_id = new.rule_id, entries = new.entries, created_at = new.created_at`, table)
	case schema.PostgreSQLBackend:
		query = fmt.Sprintf(`INSERT INTO %s (period_type, period_key, rule_id, entries, created_at) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (period_type, period_key) DO UPDATE SET rule_id = EXCLUDED.rule_id, entries = EXCLUDED.entries, created_at = EXCLUDED.created_at`, table)
	default: // SQLite
		query = fmt.Sprintf(`INSERT OR REPLACE INTO %s (period_type, period_key, rule_id, entries, created_at) VALUES (?, ?, ?, ?, ?)`, table)
	}

	if _, err := ss.db.Exec(query, string(rec.PeriodType), string(rec.PeriodKey), rec.RuleID, string(data), createdAt.UnixMilli()); err != nil {
		return fmt.Errorf("failed to save snapshot %s %s: %w", rec.PeriodType, rec.PeriodKey, err)
	}
	return nil
}

// SaveScores replaces the score rows of a period in one transaction.
func (ss *SnapshotStoreImpl) SaveScores(pt schema.PeriodType, key schema.PeriodKey, records []schema.ScoreRecord) (err error) {
	if ss.disabled() {
		return nil
	}

	tx, err := ss.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	table := quoteTableName(scoresTable, ss.backend)
	del := fmt.Sprintf(`DELETE FROM %s WHERE period_type = %s AND period_key = %s`, table, bind(ss.backend, 1), bind(ss.backend, 2))
	if _, err = tx.Exec(del, string(pt), string(key)); err != nil {
		return fmt.Errorf("failed to clear scores of %s %s: %w", pt, key, err)
	}

	insert := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, table, scoreColumns, bindList(ss.backend, 15))
	stmt, err := tx.Prepare(insert)
	if err != nil {
		return fmt.Errorf("failed to prepare score insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		breakdown, mErr := json.Marshal(r.ScoreBreakdown)
		if mErr != nil {
			err = fmt.Errorf("failed to marshal score breakdown: %w", mErr)
			return err
		}
		var projectID int64
		if r.ProjectID != nil {
			projectID = *r.ProjectID
		}
		var rank any
		if r.Rank != nil {
			rank = *r.Rank
		}
		if _, err = stmt.Exec(
			string(pt), string(key), r.UserEmail, projectID, r.RuleID,
			r.LinesAdded, r.LinesRemoved, r.CommitCount, r.FilesChanged,
			r.SessionDurationHours, r.AgentRequests, string(breakdown), r.TotalScore,
			rank, r.HookAdopted,
		); err != nil {
			return fmt.Errorf("failed to insert score of %s: %w", r.UserEmail, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit scores: %w", err)
	}
	return nil
}

// GetSnapshot returns the snapshot of a period, or contract.ErrSnapshotNotFound.
func (ss *SnapshotStoreImpl) GetSnapshot(pt schema.PeriodType, key schema.PeriodKey) (schema.SnapshotRecord, error) {
	if ss.disabled() {
		return schema.SnapshotRecord{}, contract.ErrSnapshotNotFound
	}

	query := fmt.Sprintf(`SELECT period_type, period_key, rule_id, entries, created_at FROM %s WHERE period_type = %s AND period_key = %s`,
		quoteTableName(snapshotsTable, ss.backend), bind(ss.backend, 1), bind(ss.backend, 2))
	rec, err := scanSnapshot(ss.db.QueryRow(query, string(pt), string(key)))
	if errors.Is(err, sql.ErrNoRows) {
		return schema.SnapshotRecord{}, contract.ErrSnapshotNotFound
	}
	return rec, err
}

// ListSnapshots returns all snapshots, newest first.
func (ss *SnapshotStoreImpl) ListSnapshots() ([]schema.SnapshotRecord, error) {
	if ss.disabled() {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT period_type, period_key, rule_id, entries, created_at FROM %s ORDER BY created_at DESC, period_type, period_key DESC`,
		quoteTableName(snapshotsTable, ss.backend))
	rows, err := ss.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.SnapshotRecord
	for rows.Next() {
		rec, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return results, nil
}

// ListScores returns all score rows ordered by period and member.
func (ss *SnapshotStoreImpl) ListScores() ([]schema.ScoreRecord, error) {
	if ss.disabled() {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY period_type, period_key, user_email, project_id`,
		scoreColumns, quoteTableName(scoresTable, ss.backend))
	rows, err := ss.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.ScoreRecord
	for rows.Next() {
		var (
			r         schema.ScoreRecord
			pt, key   string
			projectID int64
			breakdown string
			rank      sql.NullInt32
		)
		if err := rows.Scan(&pt, &key, &r.UserEmail, &projectID, &r.RuleID,
			&r.LinesAdded, &r.LinesRemoved, &r.CommitCount, &r.FilesChanged,
			&r.SessionDurationHours, &r.AgentRequests, &breakdown, &r.TotalScore,
			&rank, &r.HookAdopted); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		r.PeriodType = schema.PeriodType(pt)
		r.PeriodKey = schema.PeriodKey(key)
		if projectID != 0 {
			r.ProjectID = &projectID
		}
		if rank.Valid {
			v := rank.Int32
			r.Rank = &v
		}
		if err := json.Unmarshal([]byte(breakdown), &r.ScoreBreakdown); err != nil {
			return nil, fmt.Errorf("failed to decode score breakdown: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scores: %w", err)
	}
	return results, nil
}

// GetStatus returns status information about the snapshot store.
func (ss *SnapshotStoreImpl) GetStatus() (schema.SnapshotStatus, error) {
	status := schema.SnapshotStatus{
		Backend:    string(ss.backend),
		Connected:  ss.db != nil,
		TableSizes: make(map[string]int64),
	}
	if ss.disabled() {
		return status, nil
	}

	for _, table := range []string{snapshotsTable, scoresTable} {
		var count int64
		row := ss.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteTableName(table, ss.backend)))
		if err := row.Scan(&count); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}
	status.TotalSnapshots = int(status.TableSizes[snapshotsTable])
	status.TotalScores = int(status.TableSizes[scoresTable])

	if status.TotalSnapshots > 0 {
		var key string
		var createdAt int64
		row := ss.db.QueryRow(fmt.Sprintf("SELECT period_key, created_at FROM %s ORDER BY created_at DESC LIMIT 1",
			quoteTableName(snapshotsTable, ss.backend)))
		if err := row.Scan(&key, &createdAt); err != nil {
			return status, fmt.Errorf("failed to get last snapshot: %w", err)
		}
		status.LastPeriodKey = schema.PeriodKey(key)
		status.LastCreatedAt = time.UnixMilli(createdAt)
	}

	return status, nil
}

// Close closes the underlying connection.
func (ss *SnapshotStoreImpl) Close() error {
	if ss.db != nil {
		return ss.db.Close()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (schema.SnapshotRecord, error) {
	var (
		rec       schema.SnapshotRecord
		pt, key   string
		entries   string
		createdAt int64
	)
	if err := row.Scan(&pt, &key, &rec.RuleID, &entries, &createdAt); err != nil {
		return rec, err
	}
	rec.PeriodType = schema.PeriodType(pt)
	rec.PeriodKey = schema.PeriodKey(key)
	rec.CreatedAt = time.UnixMilli(createdAt)
	if err := json.Unmarshal([]byte(entries), &rec.Entries); err != nil {
		return rec, fmt.Errorf("failed to decode snapshot entries: %w", err)
	}
	return rec, nil
}
