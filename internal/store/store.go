// Package store defines the persistence interface for maintenance records.
// Two drivers implement it: sqlite (default, single binary) and postgres
// (the shop's hosted database).
package store

import (
	"context"

	"maintscan/internal/models"
)

// StatusUpdate describes a validated status change. OldStatus guards the
// write: the update only applies while the record still holds OldStatus,
// and the status change plus the history append are one transaction.
type StatusUpdate struct {
	OldStatus string
	NewStatus string
	Note      string
	ChangedBy string
}

// ListFilter narrows and pages ListRecords.
type ListFilter struct {
	Status string
	Search string
	Page   int
	Limit  int
}

// Store is the persistence surface consumed by the scan engine and the API.
type Store interface {
	CreateRecord(ctx context.Context, rec models.MaintenanceRecord) (models.MaintenanceRecord, error)
	GetRecord(ctx context.Context, maintenanceNo string) (models.MaintenanceRecord, error)
	ListRecords(ctx context.Context, f ListFilter) ([]models.MaintenanceRecord, int, error)

	// UpdateStatus durably applies the status change and appends the
	// history note in one logical operation.
	UpdateStatus(ctx context.Context, maintenanceNo string, upd StatusUpdate) error
	History(ctx context.Context, maintenanceNo string) ([]models.StatusHistoryEntry, error)

	Close() error
}
