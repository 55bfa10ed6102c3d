package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"maintscan/internal/models"
	"maintscan/internal/store"
	"maintscan/internal/transition"
)

// fakeStore is an in-memory RecordStore with hooks for failure injection
// and call counting.
type fakeStore struct {
	mu        sync.Mutex
	recs      map[string]models.MaintenanceRecord
	fetches   int
	updates   int
	updateErr error
	getGate   chan struct{} // when set, GetRecord blocks until closed
}

func newFakeStore(recs ...models.MaintenanceRecord) *fakeStore {
	f := &fakeStore{recs: map[string]models.MaintenanceRecord{}}
	for _, r := range recs {
		f.recs[r.MaintenanceNo] = r
	}
	return f
}

func (f *fakeStore) GetRecord(ctx context.Context, no string) (models.MaintenanceRecord, error) {
	f.mu.Lock()
	f.fetches++
	gate := f.getGate
	rec, ok := f.recs[no]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if !ok {
		return models.MaintenanceRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, no string, upd store.StatusUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if f.updateErr != nil {
		return f.updateErr
	}
	rec, ok := f.recs[no]
	if !ok {
		return store.ErrNotFound
	}
	if rec.Status != upd.OldStatus {
		return store.ErrConflict
	}
	rec.Status = upd.NewStatus
	f.recs[no] = rec
	return nil
}

func (f *fakeStore) status(no string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recs[no].Status
}

func maintRecord() models.MaintenanceRecord {
	return models.MaintenanceRecord{
		MaintenanceNo: "MAINT-100",
		ItemName:      "مكيف سبليت",
		CustomerName:  "أحمد",
		Status:        string(transition.StatusInShop),
	}
}

func TestDispatchSuccess(t *testing.T) {
	fs := newFakeStore(maintRecord())
	s := NewSession(fs, nil, nil)
	if err := s.SelectTransition(transition.StoreToWarehouse); err != nil {
		t.Fatal(err)
	}

	entry := s.Dispatch(context.Background(), "MAINT-100", "counter-1")
	if entry == nil {
		t.Fatal("expected a log entry")
	}
	if !entry.Success {
		t.Fatalf("expected success, got failure: %s", entry.Message)
	}
	if got := fs.status("MAINT-100"); got != string(transition.StatusInWarehouse) {
		t.Errorf("status = %q, want in-warehouse", got)
	}
	if entry.ItemName != "مكيف سبليت" || entry.CustomerName != "أحمد" {
		t.Error("log entry missing display metadata")
	}
	if len(s.Log()) != 1 {
		t.Errorf("expected exactly one log entry, got %d", len(s.Log()))
	}
	if s.busy.Load() {
		t.Error("busy flag not released")
	}
}

func TestDispatchIllegalTransition(t *testing.T) {
	rec := maintRecord()
	fs := newFakeStore(rec)
	s := NewSession(fs, nil, nil)
	if err := s.SelectTransition(transition.DeliverToCustomer); err != nil {
		t.Fatal(err)
	}

	entry := s.Dispatch(context.Background(), "MAINT-100", "counter-1")
	if entry == nil {
		t.Fatal("expected a failure entry")
	}
	if entry.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(entry.Message, rec.Status) {
		t.Errorf("failure message must contain the literal current status, got %q", entry.Message)
	}
	if fs.updates != 0 {
		t.Errorf("no persistence call expected, got %d", fs.updates)
	}
	if got := fs.status("MAINT-100"); got != rec.Status {
		t.Errorf("status mutated to %q", got)
	}
	if len(s.Log()) != 1 {
		t.Errorf("expected exactly one failure entry, got %d", len(s.Log()))
	}
}

func TestDispatchNotFound(t *testing.T) {
	fs := newFakeStore()
	s := NewSession(fs, nil, nil)
	s.SelectTransition(transition.SendToCompany)

	entry := s.Dispatch(context.Background(), "NOPE-1", "counter-1")
	if entry == nil || entry.Success {
		t.Fatal("expected a failure entry")
	}
	if !strings.Contains(entry.Message, "NOPE-1") {
		t.Errorf("message should name the missing code: %q", entry.Message)
	}
}

func TestDispatchPersistenceFailure(t *testing.T) {
	fs := newFakeStore(maintRecord())
	fs.updateErr = errors.New("connection reset")
	s := NewSession(fs, nil, nil)
	s.SelectTransition(transition.StoreToWarehouse)

	entry := s.Dispatch(context.Background(), "MAINT-100", "counter-1")
	if entry == nil || entry.Success {
		t.Fatal("expected a failure entry")
	}
	if !strings.Contains(entry.Message, "status update failed") {
		t.Errorf("unexpected message %q", entry.Message)
	}
	if s.busy.Load() {
		t.Error("busy flag not released after failure")
	}
}

func TestDispatchNoopWithoutTransition(t *testing.T) {
	fs := newFakeStore(maintRecord())
	s := NewSession(fs, nil, nil)

	if entry := s.Dispatch(context.Background(), "MAINT-100", "counter-1"); entry != nil {
		t.Fatal("dispatch without a selected transition must be a no-op")
	}
	if fs.fetches != 0 {
		t.Error("no fetch expected")
	}
}

func TestDispatchNoopOnEmptyCode(t *testing.T) {
	fs := newFakeStore(maintRecord())
	s := NewSession(fs, nil, nil)
	s.SelectTransition(transition.StoreToWarehouse)

	if entry := s.Dispatch(context.Background(), "   ", "counter-1"); entry != nil {
		t.Fatal("empty code must be a no-op")
	}
	if fs.fetches != 0 {
		t.Error("no fetch expected")
	}
}

func TestDispatchDropsWhileBusy(t *testing.T) {
	fs := newFakeStore(maintRecord())
	fs.getGate = make(chan struct{})
	s := NewSession(fs, nil, nil)
	s.SelectTransition(transition.StoreToWarehouse)

	done := make(chan *models.ScanLogEntry, 1)
	go func() {
		done <- s.Dispatch(context.Background(), "MAINT-100", "counter-1")
	}()

	// Wait for the first dispatch to take the guard and park in GetRecord.
	deadline := time.Now().Add(time.Second)
	for !s.busy.Load() {
		if time.Now().After(deadline) {
			t.Fatal("first dispatch never started")
		}
		time.Sleep(time.Millisecond)
	}

	if entry := s.Dispatch(context.Background(), "MAINT-100", "counter-2"); entry != nil {
		t.Fatal("second scan must be dropped while one is in flight")
	}

	fs.mu.Lock()
	fetches := fs.fetches
	fs.mu.Unlock()
	if fetches != 1 {
		t.Fatalf("dropped scan must not fetch, got %d fetches", fetches)
	}

	close(fs.getGate)
	if entry := <-done; entry == nil || !entry.Success {
		t.Fatal("first dispatch should have completed successfully")
	}
	if n := len(s.Log()); n != 1 {
		t.Fatalf("dropped scan must leave no log entry, got %d", n)
	}
}

func TestDispatchURLEqualsBareCode(t *testing.T) {
	for _, code := range []string{"MAINT-100", "https://shop.example/maintenance/MAINT-100?ref=qr"} {
		fs := newFakeStore(maintRecord())
		s := NewSession(fs, nil, nil)
		s.SelectTransition(transition.StoreToWarehouse)

		entry := s.Dispatch(context.Background(), code, "counter-1")
		if entry == nil || !entry.Success {
			t.Fatalf("scan of %q failed", code)
		}
		if entry.MaintenanceNo != "MAINT-100" {
			t.Errorf("logged code %q, want MAINT-100", entry.MaintenanceNo)
		}
		if got := fs.status("MAINT-100"); got != string(transition.StatusInWarehouse) {
			t.Errorf("scan of %q: status = %q", code, got)
		}
	}
}

func TestLogCapped(t *testing.T) {
	fs := newFakeStore()
	s := NewSession(fs, nil, nil)
	s.SelectTransition(transition.SendToCompany)

	for i := 0; i < logCap+20; i++ {
		s.Dispatch(context.Background(), fmt.Sprintf("GHOST-%d", i), "counter-1")
	}
	entries := s.Log()
	if len(entries) != logCap {
		t.Fatalf("log holds %d entries, want %d", len(entries), logCap)
	}
	// newest first
	if entries[0].MaintenanceNo != fmt.Sprintf("GHOST-%d", logCap+19) {
		t.Errorf("newest entry is %s", entries[0].MaintenanceNo)
	}
	s.ClearLog()
	if len(s.Log()) != 0 {
		t.Error("ClearLog left entries behind")
	}
}

func TestInquire(t *testing.T) {
	fs := newFakeStore(maintRecord())
	s := NewSession(fs, nil, nil)

	rec, err := s.Inquire(context.Background(), " https://shop.example/maintenance/MAINT-100?x=1 ")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != string(transition.StatusInShop) {
		t.Errorf("status = %q", rec.Status)
	}

	_, err = s.Inquire(context.Background(), "MISSING-9")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestInquireNotBlockedByDispatch(t *testing.T) {
	fs := newFakeStore(maintRecord())
	fs.getGate = make(chan struct{})
	s := NewSession(fs, nil, nil)
	s.SelectTransition(transition.StoreToWarehouse)

	go s.Dispatch(context.Background(), "MAINT-100", "counter-1")
	deadline := time.Now().Add(time.Second)
	for !s.busy.Load() {
		if time.Now().After(deadline) {
			t.Fatal("dispatch never started")
		}
		time.Sleep(time.Millisecond)
	}

	// The inquiry must proceed even though the dispatcher holds the guard.
	// The fake gate blocks both, so unblock before asserting.
	close(fs.getGate)
	rec, err := s.Inquire(context.Background(), "MAINT-100")
	if err != nil {
		t.Fatal(err)
	}
	if rec.MaintenanceNo != "MAINT-100" {
		t.Errorf("got record %q", rec.MaintenanceNo)
	}
}

func TestNotifyReceivesEntries(t *testing.T) {
	fs := newFakeStore(maintRecord())
	var got []models.ScanLogEntry
	s := NewSession(fs, nil, func(e models.ScanLogEntry) { got = append(got, e) })
	s.SelectTransition(transition.StoreToWarehouse)

	s.Dispatch(context.Background(), "MAINT-100", "counter-1")
	if len(got) != 1 || !got[0].Success {
		t.Fatalf("notify saw %v", got)
	}
}
