package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"maintscan/internal/models"
	"maintscan/internal/store"
	"maintscan/internal/transition"

	ws "github.com/gorilla/websocket"
)

type memStore struct {
	mu   sync.Mutex
	recs map[string]models.MaintenanceRecord
}

func newMemStore(recs ...models.MaintenanceRecord) *memStore {
	m := &memStore{recs: map[string]models.MaintenanceRecord{}}
	for _, r := range recs {
		m.recs[r.MaintenanceNo] = r
	}
	return m
}

func (m *memStore) GetRecord(ctx context.Context, no string) (models.MaintenanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[no]
	if !ok {
		return models.MaintenanceRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (m *memStore) UpdateStatus(ctx context.Context, no string, upd store.StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[no]
	if !ok {
		return store.ErrNotFound
	}
	if rec.Status != upd.OldStatus {
		return store.ErrConflict
	}
	rec.Status = upd.NewStatus
	m.recs[no] = rec
	return nil
}

func (m *memStore) status(no string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recs[no].Status
}

func dialFeed(t *testing.T, st *memStore) (*ws.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Serve(Deps{Store: st}, w, r, "tester")
	}))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}
	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func readMsg(t *testing.T, conn *ws.Conn) serverMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return msg
}

func sendMsg(t *testing.T, conn *ws.Conn, msg clientMessage) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestFeedDecodeDispatch(t *testing.T) {
	st := newMemStore(models.MaintenanceRecord{
		MaintenanceNo: "MAINT-100",
		ItemName:      "مروحة سقف",
		Status:        string(transition.StatusInShop),
	})
	conn, done := dialFeed(t, st)
	defer done()

	sendMsg(t, conn, clientMessage{Type: "select_transition", ID: transition.StoreToWarehouse})
	if msg := readMsg(t, conn); msg.Type != "transition_selected" {
		t.Fatalf("expected transition_selected, got %+v", msg)
	}

	// a camera decode of the printed QR deep link
	sendMsg(t, conn, clientMessage{Type: "decode", Text: "https://shop.example/maintenance/MAINT-100?ref=qr"})
	msg := readMsg(t, conn)
	if msg.Type != "scan_result" || msg.Tone != "success" {
		t.Fatalf("expected success scan_result, got %+v", msg)
	}
	if msg.Entry == nil || !msg.Entry.Success {
		t.Fatalf("missing success entry: %+v", msg)
	}
	if got := st.status("MAINT-100"); got != string(transition.StatusInWarehouse) {
		t.Errorf("status = %q", got)
	}
}

func TestFeedDecodeRoutesToInquiryWithoutTransition(t *testing.T) {
	st := newMemStore(models.MaintenanceRecord{
		MaintenanceNo: "MAINT-7",
		ItemName:      "خلاط",
		CustomerName:  "منى",
		Status:        string(transition.StatusAtCompany),
	})
	conn, done := dialFeed(t, st)
	defer done()

	sendMsg(t, conn, clientMessage{Type: "decode", Text: "MAINT-7"})
	msg := readMsg(t, conn)
	if msg.Type != "inquiry_result" || msg.Tone != "success" {
		t.Fatalf("expected inquiry_result, got %+v", msg)
	}
	if msg.Record == nil || msg.Record.Status != string(transition.StatusAtCompany) {
		t.Fatalf("missing record: %+v", msg)
	}
	if got := st.status("MAINT-7"); got != string(transition.StatusAtCompany) {
		t.Error("inquiry must not mutate")
	}
}

func TestFeedInquiryNotFound(t *testing.T) {
	conn, done := dialFeed(t, newMemStore())
	defer done()

	sendMsg(t, conn, clientMessage{Type: "decode", Text: "GHOST-1"})
	msg := readMsg(t, conn)
	if msg.Type != "inquiry_result" || msg.Tone != "failure" {
		t.Fatalf("expected failure inquiry_result, got %+v", msg)
	}
	if !strings.Contains(msg.Message, "GHOST-1") {
		t.Errorf("message should name the code: %q", msg.Message)
	}
}

func TestFeedUnknownTransition(t *testing.T) {
	conn, done := dialFeed(t, newMemStore())
	defer done()

	sendMsg(t, conn, clientMessage{Type: "select_transition", ID: "teleport"})
	if msg := readMsg(t, conn); msg.Type != "error" {
		t.Fatalf("expected error, got %+v", msg)
	}
}

func TestFeedKeyboardPath(t *testing.T) {
	st := newMemStore(models.MaintenanceRecord{
		MaintenanceNo: "M10",
		Status:        string(transition.StatusCustomerShop),
	})
	conn, done := dialFeed(t, st)
	defer done()

	sendMsg(t, conn, clientMessage{Type: "select_transition", ID: transition.DeliverToCustomer})
	readMsg(t, conn)

	// scanner burst: M 1 0 Enter
	for _, k := range []clientMessage{
		{Type: "key", Code: "KeyM", Shift: true},
		{Type: "key", Code: "Digit1"},
		{Type: "key", Code: "Digit0"},
		{Type: "key", Code: "Enter"},
	} {
		sendMsg(t, conn, k)
	}

	msg := readMsg(t, conn)
	if msg.Type != "scan_result" || msg.Tone != "success" {
		t.Fatalf("expected success scan_result, got %+v", msg)
	}
	if got := st.status("M10"); got != string(transition.StatusDelivered) {
		t.Errorf("status = %q", got)
	}
}

func TestFeedMalformedMessage(t *testing.T) {
	conn, done := dialFeed(t, newMemStore())
	defer done()

	if err := conn.WriteMessage(ws.TextMessage, []byte("not json")); err != nil {
		t.Fatal(err)
	}
	if msg := readMsg(t, conn); msg.Type != "error" {
		t.Fatalf("expected error, got %+v", msg)
	}
}
