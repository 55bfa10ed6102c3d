// Package models holds the JSON-facing data structures shared across the
// API, store drivers, and the scan engine.
package models

import "time"

// APIResponse is the standard JSON envelope for all API responses.
type APIResponse struct {
	Data interface{} `json:"data"`
	Meta *Meta       `json:"meta,omitempty"`
}

// Meta contains pagination metadata.
type Meta struct {
	Total int `json:"total,omitempty"`
	Page  int `json:"page,omitempty"`
	Limit int `json:"limit,omitempty"`
}

// MaintenanceRecord is one customer item in the repair lifecycle. Created
// at intake, mutated only through validated transitions, never deleted.
type MaintenanceRecord struct {
	MaintenanceNo string `json:"maintenance_no"`
	ItemName      string `json:"item_name"`
	CustomerName  string `json:"customer_name"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// StatusHistoryEntry is one row of a record's append-only audit trail.
type StatusHistoryEntry struct {
	ID            string `json:"id"`
	MaintenanceNo string `json:"maintenance_no"`
	OldStatus     string `json:"old_status"`
	NewStatus     string `json:"new_status"`
	Note          string `json:"note"`
	ChangedBy     string `json:"changed_by"`
	ChangedAt     string `json:"changed_at"`
}

// ScanLogEntry is one scan attempt, success or failure. Ephemeral: lives
// in the session's capped in-memory log, never persisted.
type ScanLogEntry struct {
	ID            int64     `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	MaintenanceNo string    `json:"maintenance_no"`
	Success       bool      `json:"success"`
	Message       string    `json:"message"`
	ItemName      string    `json:"item_name,omitempty"`
	CustomerName  string    `json:"customer_name,omitempty"`
}

// TransitionInfo is the API shape of a catalog entry.
type TransitionInfo struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	AllowedFrom []string `json:"allowed_from"`
}
