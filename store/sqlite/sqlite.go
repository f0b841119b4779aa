/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence interface the core consumes using SQLite.
  The same SQL applies to PostgreSQL with minor dialect differences.

INTERFACES IMPLEMENTED:
  timesheet.EntryStore:   Time entries (clock-in/out, status)
  timesheet.ProjectStore: Projects
  billing.PeriodStore:    Repeat period definitions
  billing.WindowStore:    Billing windows (atomic replacement)
  payroll.PersonStore:    User / repeat period associations

KEY TABLES:
  entries:               One row per clock-in; end_time NULL while open
  projects:              Billable flag and billing period reference
  repeat_periods:        interval + count + active
  billing_windows:       [date, end_date) rows per period
  person_repeat_periods: user -> period

ATOMIC WINDOW REPLACEMENT:
  UpdateWindows reads the period, computes the new windows and deletes and
  re-inserts them inside one SQL transaction. A failure anywhere rolls back,
  so readers never observe a partially regenerated sequence and concurrent
  regenerations cannot lose each other's writes.

TIME FORMAT:
  Timestamps are stored as UTC RFC3339 text and dates as YYYY-MM-DD, so
  string comparison in SQL matches chronological order.

USAGE:
  store, err := sqlite.New("./data/timepiece.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - timesheet/store.go, billing/windows.go, payroll/person.go: Interfaces
  - store/memory/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/timepiece/billing"
	"github.com/warp/timepiece/payroll"
	"github.com/warp/timepiece/timesheet"
)

const dateLayout = "2006-01-02"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS repeat_periods (
		id TEXT PRIMARY KEY,
		interval_unit TEXT NOT NULL CHECK (interval_unit IN ('week', 'month')),
		count INTEGER NOT NULL CHECK (count > 0),
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS billing_windows (
		id TEXT PRIMARY KEY,
		period_id TEXT NOT NULL REFERENCES repeat_periods(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		CHECK (end_date > date)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_windows_period_date
		ON billing_windows(period_id, date);

	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		billable INTEGER NOT NULL DEFAULT 0,
		billing_period_id TEXT REFERENCES repeat_periods(id) ON DELETE SET NULL
	);

	-- end_time NULL while the entry is open
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		project_id TEXT NOT NULL REFERENCES projects(id),
		activity_id TEXT,
		start_time TEXT NOT NULL,
		end_time TEXT,
		status TEXT NOT NULL,
		comments TEXT,
		CHECK (end_time IS NULL OR end_time >= start_time)
	);

	-- Hot path: payroll range queries per user
	CREATE INDEX IF NOT EXISTS idx_entries_user_start
		ON entries(user_id, start_time);
	CREATE INDEX IF NOT EXISTS idx_entries_user_status
		ON entries(user_id, status);

	CREATE TABLE IF NOT EXISTS person_repeat_periods (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		period_id TEXT REFERENCES repeat_periods(id) ON DELETE SET NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ENTRY STORE (timesheet.EntryStore interface)
// =============================================================================

func (s *Store) SaveEntry(ctx context.Context, e timesheet.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.End != nil && e.End.Before(e.Start) {
		return timesheet.ErrEndBeforeStart
	}

	var end sql.NullString
	if e.End != nil {
		end = sql.NullString{String: formatTime(*e.End), Valid: true}
	}

	query := `
		INSERT INTO entries (id, user_id, project_id, activity_id, start_time, end_time, status, comments)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			project_id = excluded.project_id,
			activity_id = excluded.activity_id,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			status = excluded.status,
			comments = excluded.comments
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.UserID, e.ProjectID, nullString(string(e.ActivityID)),
		formatTime(e.Start), end, e.Status, nullString(e.Comments),
	)
	if err != nil {
		return fmt.Errorf("failed to save entry: %w", err)
	}
	return nil
}

func (s *Store) GetEntry(ctx context.Context, id timesheet.EntryID) (timesheet.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := s.queryEntries(ctx, entrySelect+" WHERE id = ?", id)
	if err != nil {
		return timesheet.Entry{}, err
	}
	if len(entries) == 0 {
		return timesheet.Entry{}, timesheet.ErrEntryNotFound
	}
	return entries[0], nil
}

func (s *Store) FindEntries(ctx context.Context, f timesheet.EntryFilter) ([]timesheet.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.OnlyOpen {
		where = append(where, "end_time IS NULL")
	}
	if len(f.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, st := range f.Statuses {
			args = append(args, st)
		}
	}
	if len(f.ProjectIDs) > 0 {
		where = append(where, "project_id IN ("+placeholders(len(f.ProjectIDs))+")")
		for _, id := range f.ProjectIDs {
			args = append(args, id)
		}
	}
	if !f.From.IsZero() {
		where = append(where, "start_time >= ?")
		args = append(args, formatTime(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "start_time < ?")
		args = append(args, formatTime(f.To))
	}

	query := entrySelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	return s.queryEntries(ctx, query, args...)
}

const entrySelect = `
	SELECT id, user_id, project_id, activity_id, start_time, end_time, status, comments
	FROM entries`

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]timesheet.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []timesheet.Entry
	for rows.Next() {
		var (
			e                  timesheet.Entry
			activity, comments sql.NullString
			startTime          string
			endTime            sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.ProjectID, &activity,
			&startTime, &endTime, &e.Status, &comments); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.ActivityID = timesheet.ActivityID(activity.String)
		e.Comments = comments.String
		if e.Start, err = time.Parse(time.RFC3339, startTime); err != nil {
			return nil, fmt.Errorf("entry %s: bad start_time: %w", e.ID, err)
		}
		if endTime.Valid {
			end, err := time.Parse(time.RFC3339, endTime.String)
			if err != nil {
				return nil, fmt.Errorf("entry %s: bad end_time: %w", e.ID, err)
			}
			e.End = &end
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// PROJECT STORE (timesheet.ProjectStore interface)
// =============================================================================

func (s *Store) SaveProject(ctx context.Context, p timesheet.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO projects (id, name, billable, billing_period_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			billable = excluded.billable,
			billing_period_id = excluded.billing_period_id
	`
	_, err := s.db.ExecContext(ctx, query, p.ID, p.Name, p.Billable, nullString(p.BillingPeriodID))
	if err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}
	return nil
}

func (s *Store) GetProject(ctx context.Context, id timesheet.ProjectID) (timesheet.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		p      timesheet.Project
		period sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, billable, billing_period_id FROM projects WHERE id = ?", id,
	).Scan(&p.ID, &p.Name, &p.Billable, &period)
	if errors.Is(err, sql.ErrNoRows) {
		return timesheet.Project{}, timesheet.ErrProjectNotFound
	}
	if err != nil {
		return timesheet.Project{}, fmt.Errorf("failed to get project: %w", err)
	}
	p.BillingPeriodID = period.String
	return p, nil
}

// =============================================================================
// PERIOD STORE (billing.PeriodStore interface)
// =============================================================================

// SavePeriod validates then upserts the period.
func (s *Store) SavePeriod(ctx context.Context, p billing.RepeatPeriod) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO repeat_periods (id, interval_unit, count, active)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			interval_unit = excluded.interval_unit,
			count = excluded.count,
			active = excluded.active
	`
	_, err := s.db.ExecContext(ctx, query, p.ID, p.Interval, p.Count, p.Active)
	if err != nil {
		return fmt.Errorf("failed to save repeat period: %w", err)
	}
	return nil
}

func (s *Store) GetPeriod(ctx context.Context, id billing.PeriodID) (billing.RepeatPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryPeriod(ctx, s.db, id)
}

func (s *Store) ListPeriods(ctx context.Context) ([]billing.RepeatPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, interval_unit, count, active FROM repeat_periods ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list repeat periods: %w", err)
	}
	defer rows.Close()

	var periods []billing.RepeatPeriod
	for rows.Next() {
		var p billing.RepeatPeriod
		if err := rows.Scan(&p.ID, &p.Interval, &p.Count, &p.Active); err != nil {
			return nil, fmt.Errorf("failed to scan repeat period: %w", err)
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

// =============================================================================
// WINDOW STORE (billing.WindowStore interface)
// =============================================================================

func (s *Store) Windows(ctx context.Context, id billing.PeriodID) ([]billing.Window, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryWindows(ctx, s.db, id)
}

// UpdateWindows runs the read, fn and the delete/re-insert inside one
// transaction. Transactions begin IMMEDIATE (see New), so the write lock is
// taken before the read and other connections cannot slip a write in
// between.
func (s *Store) UpdateWindows(ctx context.Context, id billing.PeriodID, fn billing.WindowsFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	p, err := queryPeriod(ctx, sqlTx, id)
	if err != nil {
		return err
	}
	existing, err := queryWindows(ctx, sqlTx, id)
	if err != nil {
		return err
	}
	windows, err := fn(p, existing)
	if err != nil {
		return err
	}
	if billing.SameWindows(existing, windows) {
		return nil
	}

	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM billing_windows WHERE period_id = ?", id); err != nil {
		return fmt.Errorf("failed to clear windows: %w", err)
	}
	for _, w := range windows {
		_, err := sqlTx.ExecContext(ctx,
			"INSERT INTO billing_windows (id, period_id, date, end_date) VALUES (?, ?, ?, ?)",
			w.ID, id, w.Date.Format(dateLayout), w.EndDate.Format(dateLayout))
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("window %s conflicts with another window: %w", w, err)
			}
			return fmt.Errorf("failed to insert window %s: %w", w, err)
		}
	}

	return sqlTx.Commit()
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryPeriod(ctx context.Context, q queryer, id billing.PeriodID) (billing.RepeatPeriod, error) {
	var p billing.RepeatPeriod
	err := q.QueryRowContext(ctx,
		"SELECT id, interval_unit, count, active FROM repeat_periods WHERE id = ?", id,
	).Scan(&p.ID, &p.Interval, &p.Count, &p.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return billing.RepeatPeriod{}, billing.ErrPeriodNotFound
	}
	if err != nil {
		return billing.RepeatPeriod{}, fmt.Errorf("failed to get repeat period: %w", err)
	}
	return p, nil
}

func queryWindows(ctx context.Context, q queryer, id billing.PeriodID) ([]billing.Window, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, period_id, date, end_date FROM billing_windows WHERE period_id = ? ORDER BY date ASC", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query windows: %w", err)
	}
	defer rows.Close()

	var windows []billing.Window
	for rows.Next() {
		var (
			w             billing.Window
			date, endDate string
		)
		if err := rows.Scan(&w.ID, &w.PeriodID, &date, &endDate); err != nil {
			return nil, fmt.Errorf("failed to scan window: %w", err)
		}
		if w.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, fmt.Errorf("window %s: bad date: %w", w.ID, err)
		}
		if w.EndDate, err = time.Parse(dateLayout, endDate); err != nil {
			return nil, fmt.Errorf("window %s: bad end_date: %w", w.ID, err)
		}
		windows = append(windows, w)
	}
	return windows, rows.Err()
}

// =============================================================================
// PERSON STORE (payroll.PersonStore interface)
// =============================================================================

func (s *Store) SavePerson(ctx context.Context, p payroll.PersonRepeatPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO person_repeat_periods (id, user_id, period_id)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			period_id = excluded.period_id
	`
	_, err := s.db.ExecContext(ctx, query, p.ID, p.UserID, nullString(string(p.PeriodID)))
	if err != nil {
		return fmt.Errorf("failed to save person: %w", err)
	}
	return nil
}

func (s *Store) GetPerson(ctx context.Context, id string) (payroll.PersonRepeatPeriod, error) {
	people, err := s.queryPeople(ctx, "SELECT id, user_id, period_id FROM person_repeat_periods WHERE id = ?", id)
	if err != nil {
		return payroll.PersonRepeatPeriod{}, err
	}
	if len(people) == 0 {
		return payroll.PersonRepeatPeriod{}, payroll.ErrPersonNotFound
	}
	return people[0], nil
}

func (s *Store) ListPeople(ctx context.Context) ([]payroll.PersonRepeatPeriod, error) {
	return s.queryPeople(ctx, "SELECT id, user_id, period_id FROM person_repeat_periods ORDER BY id")
}

func (s *Store) queryPeople(ctx context.Context, query string, args ...any) ([]payroll.PersonRepeatPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query people: %w", err)
	}
	defer rows.Close()

	var people []payroll.PersonRepeatPeriod
	for rows.Next() {
		var (
			p      payroll.PersonRepeatPeriod
			period sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.UserID, &period); err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		p.PeriodID = billing.PeriodID(period.String)
		people = append(people, p)
	}
	return people, rows.Err()
}

// Helper functions

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
