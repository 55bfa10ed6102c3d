// Package scan drives the maintenance status transitions: one scanned code
// plus one selected transition becomes a validated, audited state change.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"maintscan/internal/events"
	"maintscan/internal/models"
	"maintscan/internal/scanner"
	"maintscan/internal/store"
	"maintscan/internal/transition"
)

// logCap bounds the in-memory scan log, newest first.
const logCap = 50

// RecordStore is the slice of the store the dispatcher needs.
type RecordStore interface {
	GetRecord(ctx context.Context, maintenanceNo string) (models.MaintenanceRecord, error)
	UpdateStatus(ctx context.Context, maintenanceNo string, upd store.StatusUpdate) error
}

// Session is one operator's scan workspace: the selected transition, the
// single-slot busy guard, and the capped scan log. Safe for concurrent use
// by the HTTP handlers and the WebSocket feed.
type Session struct {
	store  RecordStore
	events events.Publisher

	// notify receives every log entry as it is appended; the server wires
	// it to the WebSocket hub. May be nil.
	notify func(models.ScanLogEntry)

	// busy is the at-most-one-in-flight guard. Scans arriving while a
	// dispatch is running are dropped, not queued.
	busy atomic.Bool

	mu        sync.Mutex
	active    *transition.Definition
	log       []models.ScanLogEntry
	nextLogID int64
}

// NewSession creates a session with no transition selected.
func NewSession(st RecordStore, pub events.Publisher, notify func(models.ScanLogEntry)) *Session {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Session{store: st, events: pub, notify: notify}
}

// SelectTransition makes the transition with the given id active.
func (s *Session) SelectTransition(id string) error {
	def, ok := transition.ByID(id)
	if !ok {
		return fmt.Errorf("unknown transition %q", id)
	}
	s.mu.Lock()
	s.active = &def
	s.mu.Unlock()
	return nil
}

// ClearTransition deselects the active transition; subsequent scans route
// to the inquiry path.
func (s *Session) ClearTransition() {
	s.mu.Lock()
	s.active = nil
	s.mu.Unlock()
}

// ActiveTransition returns the current selection, if any.
func (s *Session) ActiveTransition() (transition.Definition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return transition.Definition{}, false
	}
	return *s.active, true
}

// Dispatch runs one scan through the active transition: normalize, fetch,
// validate, persist, log. Returns the appended log entry, or nil when the
// scan was dropped (no transition selected, empty code, or another scan in
// flight). Errors never escape; every failure becomes a failure log entry.
func (s *Session) Dispatch(ctx context.Context, code, actor string) *models.ScanLogEntry {
	active, ok := s.ActiveTransition()
	if !ok {
		return nil
	}
	finalCode := scanner.ExtractMaintenanceNo(scanner.Normalize(code))
	if finalCode == "" {
		return nil
	}

	if !s.busy.CompareAndSwap(false, true) {
		return nil
	}
	defer s.busy.Store(false)

	rec, err := s.store.GetRecord(ctx, finalCode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return s.fail(finalCode, nil, fmt.Sprintf("no record for %q", finalCode))
		}
		return s.fail(finalCode, nil, fmt.Sprintf("lookup failed: %v", err))
	}

	current := transition.Status(rec.Status)
	if !active.IsLegal(current) {
		err := &IllegalTransitionError{TransitionLabel: active.Label, CurrentStatus: current}
		return s.fail(finalCode, &rec, err.Error())
	}

	next, _ := active.Next(current)
	upd := store.StatusUpdate{
		OldStatus: rec.Status,
		NewStatus: string(next),
		Note:      fmt.Sprintf("%s (%s)", active.Label, active.ID),
		ChangedBy: actor,
	}
	if err := s.store.UpdateStatus(ctx, finalCode, upd); err != nil {
		perr := &PersistenceError{Err: err}
		return s.fail(finalCode, &rec, perr.Error())
	}

	now := time.Now()
	if err := s.events.PublishStatusChange(ctx, events.StatusChange{
		MaintenanceNo: rec.MaintenanceNo,
		ItemName:      rec.ItemName,
		CustomerName:  rec.CustomerName,
		OldStatus:     rec.Status,
		NewStatus:     string(next),
		TransitionID:  active.ID,
		Label:         active.Label,
		ChangedBy:     actor,
		ChangedAt:     now.UTC().Format(time.RFC3339),
	}); err != nil {
		// The status change is durable; a lost notification must not fail
		// the scan.
		log.Printf("scan: publish status change for %s: %v", rec.MaintenanceNo, err)
	}

	return s.append(models.ScanLogEntry{
		Timestamp:     now,
		MaintenanceNo: finalCode,
		Success:       true,
		Message:       fmt.Sprintf("%s: %s -> %s", active.Label, rec.Status, next),
		ItemName:      rec.ItemName,
		CustomerName:  rec.CustomerName,
	})
}

// Inquire is the read-only lookup path. It shares the normalizer with
// Dispatch but not the busy guard: an inquiry never waits on an in-flight
// dispatch.
func (s *Session) Inquire(ctx context.Context, code string) (models.MaintenanceRecord, error) {
	finalCode := scanner.ExtractMaintenanceNo(scanner.Normalize(code))
	if finalCode == "" {
		return models.MaintenanceRecord{}, store.ErrNotFound
	}
	return s.store.GetRecord(ctx, finalCode)
}

// Log returns the scan log, newest first.
func (s *Session) Log() []models.ScanLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ScanLogEntry, len(s.log))
	copy(out, s.log)
	return out
}

// ClearLog discards all log entries.
func (s *Session) ClearLog() {
	s.mu.Lock()
	s.log = nil
	s.mu.Unlock()
}

func (s *Session) fail(code string, rec *models.MaintenanceRecord, msg string) *models.ScanLogEntry {
	entry := models.ScanLogEntry{
		Timestamp:     time.Now(),
		MaintenanceNo: code,
		Success:       false,
		Message:       msg,
	}
	if rec != nil {
		entry.ItemName = rec.ItemName
		entry.CustomerName = rec.CustomerName
	}
	return s.append(entry)
}

// append prepends the entry to the capped log and notifies listeners.
func (s *Session) append(entry models.ScanLogEntry) *models.ScanLogEntry {
	s.mu.Lock()
	s.nextLogID++
	entry.ID = s.nextLogID
	s.log = append([]models.ScanLogEntry{entry}, s.log...)
	if len(s.log) > logCap {
		s.log = s.log[:logCap]
	}
	s.mu.Unlock()

	if s.notify != nil {
		s.notify(entry)
	}
	return &entry
}
