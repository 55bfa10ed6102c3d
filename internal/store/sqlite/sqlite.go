// Package sqlite is the default store driver: a single-file database next
// to the binary, good for one shop counter.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"maintscan/internal/models"
	"maintscan/internal/store"
	"maintscan/internal/transition"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store implements store.Store on SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", path+sep+"_journal_mode=WAL&_busy_timeout=10000&_foreign_keys=1")
	if err != nil {
		return nil, err
	}

	// SQLite handles 1 writer + multiple readers with WAL mode.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	// Some drivers don't parse connection string params; set pragmas explicitly.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=10000"); err != nil {
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	tables := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS maintenance_records (
			maintenance_no TEXT PRIMARY KEY,
			item_name TEXT DEFAULT '',
			customer_name TEXT DEFAULT '',
			status TEXT NOT NULL CHECK(status IN (%s)),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`, statusCheckList()),
		`CREATE TABLE IF NOT EXISTS status_history (
			id TEXT PRIMARY KEY,
			maintenance_no TEXT NOT NULL,
			old_status TEXT DEFAULT '',
			new_status TEXT NOT NULL,
			note TEXT DEFAULT '',
			changed_by TEXT DEFAULT '',
			changed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (maintenance_no) REFERENCES maintenance_records(maintenance_no) ON DELETE RESTRICT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_status_history_no ON status_history(maintenance_no, changed_at)`,
	}
	for _, t := range tables {
		if _, err := s.db.Exec(t); err != nil {
			return fmt.Errorf("migration: %w", err)
		}
	}
	return nil
}

// statusCheckList renders the status enum as a quoted SQL list for the
// CHECK constraint.
func statusCheckList() string {
	quoted := make([]string, len(transition.AllStatuses))
	for i, st := range transition.AllStatuses {
		quoted[i] = "'" + string(st) + "'"
	}
	return strings.Join(quoted, ",")
}

func (s *Store) CreateRecord(ctx context.Context, rec models.MaintenanceRecord) (models.MaintenanceRecord, error) {
	if rec.Status == "" {
		rec.Status = string(transition.StatusAtCompany)
	}
	if !transition.Valid(transition.Status(rec.Status)) {
		return models.MaintenanceRecord{}, fmt.Errorf("unknown status %q", rec.Status)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO maintenance_records (maintenance_no, item_name, customer_name, status)
		VALUES (?, ?, ?, ?)`,
		rec.MaintenanceNo, rec.ItemName, rec.CustomerName, rec.Status)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return models.MaintenanceRecord{}, store.ErrExists
		}
		return models.MaintenanceRecord{}, err
	}
	return s.GetRecord(ctx, rec.MaintenanceNo)
}

func (s *Store) GetRecord(ctx context.Context, maintenanceNo string) (models.MaintenanceRecord, error) {
	var rec models.MaintenanceRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT maintenance_no, item_name, customer_name, status, created_at, updated_at
		FROM maintenance_records WHERE maintenance_no = ?`, maintenanceNo).
		Scan(&rec.MaintenanceNo, &rec.ItemName, &rec.CustomerName, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return models.MaintenanceRecord{}, store.ErrNotFound
	}
	if err != nil {
		return models.MaintenanceRecord{}, err
	}
	return rec, nil
}

func (s *Store) ListRecords(ctx context.Context, f store.ListFilter) ([]models.MaintenanceRecord, int, error) {
	where := "WHERE 1=1"
	var args []interface{}
	if f.Status != "" {
		where += " AND status = ?"
		args = append(args, f.Status)
	}
	if f.Search != "" {
		where += " AND (maintenance_no LIKE ? OR item_name LIKE ? OR customer_name LIKE ?)"
		term := "%" + f.Search + "%"
		args = append(args, term, term, term)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM maintenance_records "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT maintenance_no, item_name, customer_name, status, created_at, updated_at
		FROM maintenance_records ` + where + ` ORDER BY updated_at DESC, maintenance_no`
	if f.Limit > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, (page-1)*f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var recs []models.MaintenanceRecord
	for rows.Next() {
		var rec models.MaintenanceRecord
		if err := rows.Scan(&rec.MaintenanceNo, &rec.ItemName, &rec.CustomerName, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, 0, err
		}
		recs = append(recs, rec)
	}
	if recs == nil {
		recs = []models.MaintenanceRecord{}
	}
	return recs, total, rows.Err()
}

// UpdateStatus applies the guarded status change and appends the history
// row in one transaction. The WHERE status = old clause makes the write a
// no-op if the record moved underneath the caller.
func (s *Store) UpdateStatus(ctx context.Context, maintenanceNo string, upd store.StatusUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE maintenance_records
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE maintenance_no = ? AND status = ?`,
		upd.NewStatus, maintenanceNo, upd.OldStatus)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM maintenance_records WHERE maintenance_no = ?", maintenanceNo).
			Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return store.ErrNotFound
		}
		return store.ErrConflict
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO status_history (id, maintenance_no, old_status, new_status, note, changed_by)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), maintenanceNo, upd.OldStatus, upd.NewStatus, upd.Note, upd.ChangedBy)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) History(ctx context.Context, maintenanceNo string) ([]models.StatusHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, maintenance_no, old_status, new_status, note, changed_by, changed_at
		FROM status_history WHERE maintenance_no = ? ORDER BY changed_at DESC, id`, maintenanceNo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.StatusHistoryEntry
	for rows.Next() {
		var e models.StatusHistoryEntry
		if err := rows.Scan(&e.ID, &e.MaintenanceNo, &e.OldStatus, &e.NewStatus, &e.Note, &e.ChangedBy, &e.ChangedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if entries == nil {
		entries = []models.StatusHistoryEntry{}
	}
	return entries, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
