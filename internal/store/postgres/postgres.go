// Package postgres is the store driver for the shop's hosted Postgres
// database (the same schema the admin UI reads).
package postgres

import (
	"context"
	"errors"
	"fmt"

	"maintscan/internal/models"
	"maintscan/internal/store"
	"maintscan/internal/transition"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements store.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a pool for dsn and verifies the connection.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS maintenance_records (
			maintenance_no TEXT PRIMARY KEY,
			item_name TEXT NOT NULL DEFAULT '',
			customer_name TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS status_history (
			id UUID PRIMARY KEY,
			maintenance_no TEXT NOT NULL REFERENCES maintenance_records(maintenance_no),
			old_status TEXT NOT NULL DEFAULT '',
			new_status TEXT NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			changed_by TEXT NOT NULL DEFAULT '',
			changed_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_status_history_no ON status_history(maintenance_no, changed_at)`,
	}
	for _, t := range tables {
		if _, err := s.pool.Exec(ctx, t); err != nil {
			return fmt.Errorf("migration: %w", err)
		}
	}
	return nil
}

const recordColumns = `maintenance_no, item_name, customer_name, status,
	to_char(created_at, 'YYYY-MM-DD HH24:MI:SS'), to_char(updated_at, 'YYYY-MM-DD HH24:MI:SS')`

func (s *Store) CreateRecord(ctx context.Context, rec models.MaintenanceRecord) (models.MaintenanceRecord, error) {
	if rec.Status == "" {
		rec.Status = string(transition.StatusAtCompany)
	}
	if !transition.Valid(transition.Status(rec.Status)) {
		return models.MaintenanceRecord{}, fmt.Errorf("unknown status %q", rec.Status)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO maintenance_records (maintenance_no, item_name, customer_name, status)
		VALUES ($1, $2, $3, $4)`,
		rec.MaintenanceNo, rec.ItemName, rec.CustomerName, rec.Status)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.MaintenanceRecord{}, store.ErrExists
		}
		return models.MaintenanceRecord{}, err
	}
	return s.GetRecord(ctx, rec.MaintenanceNo)
}

func (s *Store) GetRecord(ctx context.Context, maintenanceNo string) (models.MaintenanceRecord, error) {
	var rec models.MaintenanceRecord
	err := s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM maintenance_records WHERE maintenance_no = $1`, maintenanceNo).
		Scan(&rec.MaintenanceNo, &rec.ItemName, &rec.CustomerName, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.MaintenanceRecord{}, store.ErrNotFound
	}
	if err != nil {
		return models.MaintenanceRecord{}, err
	}
	return rec, nil
}

func (s *Store) ListRecords(ctx context.Context, f store.ListFilter) ([]models.MaintenanceRecord, int, error) {
	where := "WHERE 1=1"
	var args []any
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		where += fmt.Sprintf(" AND (maintenance_no ILIKE $%d OR item_name ILIKE $%d OR customer_name ILIKE $%d)", n, n, n)
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM maintenance_records "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + recordColumns + ` FROM maintenance_records ` + where +
		` ORDER BY updated_at DESC, maintenance_no`
	if f.Limit > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		args = append(args, f.Limit, (page-1)*f.Limit)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
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

func (s *Store) UpdateStatus(ctx context.Context, maintenanceNo string, upd store.StatusUpdate) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE maintenance_records
		SET status = $1, updated_at = now()
		WHERE maintenance_no = $2 AND status = $3`,
		upd.NewStatus, maintenanceNo, upd.OldStatus)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists int
		if err := tx.QueryRow(ctx,
			"SELECT COUNT(*) FROM maintenance_records WHERE maintenance_no = $1", maintenanceNo).
			Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return store.ErrNotFound
		}
		return store.ErrConflict
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO status_history (id, maintenance_no, old_status, new_status, note, changed_by)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), maintenanceNo, upd.OldStatus, upd.NewStatus, upd.Note, upd.ChangedBy)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) History(ctx context.Context, maintenanceNo string) ([]models.StatusHistoryEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, maintenance_no, old_status, new_status, note, changed_by,
			to_char(changed_at, 'YYYY-MM-DD HH24:MI:SS')
		FROM status_history WHERE maintenance_no = $1 ORDER BY changed_at DESC, id`, maintenanceNo)
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
	s.pool.Close()
	return nil
}
