// Package feed runs the live scanner channel: one WebSocket connection per
// operator carrying camera decodes and raw scanner keystrokes, routed into
// the dispatch or inquiry path on the server.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"sync/atomic"

	"maintscan/internal/events"
	"maintscan/internal/models"
	"maintscan/internal/scan"
	"maintscan/internal/scanner"
	"maintscan/internal/store"
	"maintscan/internal/websocket"

	ws "github.com/gorilla/websocket"
)

// Deps are the collaborators a feed connection needs.
type Deps struct {
	Store  scan.RecordStore
	Events events.Publisher
	Hub    *websocket.Hub
}

// clientMessage is what the scanner page sends.
type clientMessage struct {
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`    // select_transition
	Code  string `json:"code,omitempty"`  // key
	Shift bool   `json:"shift,omitempty"` // key
	Text  string `json:"text,omitempty"`  // decode
}

// serverMessage is what the feed sends back. Tone tells the page which
// audible cue to play.
type serverMessage struct {
	Type    string                    `json:"type"`
	Tone    string                    `json:"tone,omitempty"`
	Entry   *models.ScanLogEntry      `json:"entry,omitempty"`
	Record  *models.MaintenanceRecord `json:"record,omitempty"`
	Message string                    `json:"message,omitempty"`
	ID      string                    `json:"id,omitempty"`
}

// conn is one operator's live scanner connection. Each connection owns its
// own scan session (its own transition selection, busy guard, and log).
type conn struct {
	sock    *ws.Conn
	writeMu sync.Mutex
	session *scan.Session
	buffer  *scanner.Buffer
	actor   string

	// processing suppresses overlapping decode handling: a decode arriving
	// while one is being processed is dropped, not queued.
	processing atomic.Bool
	closed     atomic.Bool
}

// Serve upgrades the request and runs the connection's read loop until the
// client goes away. Teardown is deterministic: once Serve returns, no
// buffer or decode callback touches the socket again.
func Serve(deps Deps, w http.ResponseWriter, r *http.Request, actor string) {
	sock, err := websocket.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("feed: upgrade error: %v", err)
		return
	}

	c := &conn{sock: sock, actor: actor}
	notify := func(entry models.ScanLogEntry) {
		if deps.Hub != nil {
			deps.Hub.BroadcastScan(entry)
		}
	}
	c.session = scan.NewSession(deps.Store, deps.Events, notify)
	c.buffer = scanner.NewBuffer(0, func(code string) {
		c.handleScan(r.Context(), code)
	})

	defer func() {
		c.closed.Store(true)
		c.buffer.Close()
		sock.Close()
		log.Printf("feed: scanner disconnected (%s)", actor)
	}()
	log.Printf("feed: scanner connected (%s)", actor)

	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			if !errors.Is(err, ws.ErrCloseSent) && !ws.IsCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
				log.Printf("feed: read error: %v", err)
			}
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.send(serverMessage{Type: "error", Message: "malformed message"})
			continue
		}
		c.handle(r.Context(), msg)
	}
}

func (c *conn) handle(ctx context.Context, msg clientMessage) {
	switch msg.Type {
	case "select_transition":
		if err := c.session.SelectTransition(msg.ID); err != nil {
			c.send(serverMessage{Type: "error", Message: err.Error()})
			return
		}
		c.send(serverMessage{Type: "transition_selected", ID: msg.ID})
	case "clear_transition":
		c.session.ClearTransition()
		c.send(serverMessage{Type: "transition_cleared"})
	case "key":
		c.buffer.Key(msg.Code, msg.Shift)
	case "flush":
		c.buffer.Flush()
	case "decode":
		c.handleScan(ctx, msg.Text)
	default:
		c.send(serverMessage{Type: "error", Message: "unknown message type " + msg.Type})
	}
}

// handleScan routes one completed scan. The route is decided here, at scan
// time: an active transition sends it to the dispatcher, otherwise it is
// an inquiry.
func (c *conn) handleScan(ctx context.Context, text string) {
	code := scanner.Normalize(text)
	if code == "" {
		return
	}
	if !c.processing.CompareAndSwap(false, true) {
		return
	}
	defer c.processing.Store(false)

	if _, active := c.session.ActiveTransition(); active {
		entry := c.session.Dispatch(ctx, code, c.actor)
		if entry == nil {
			// dropped by the session guard
			return
		}
		tone := "failure"
		if entry.Success {
			tone = "success"
		}
		c.send(serverMessage{Type: "scan_result", Tone: tone, Entry: entry})
		return
	}

	rec, err := c.session.Inquire(ctx, code)
	if err != nil {
		msg := "lookup failed"
		if errors.Is(err, store.ErrNotFound) {
			msg = "no record for " + code
		}
		c.send(serverMessage{Type: "inquiry_result", Tone: "failure", Message: msg})
		return
	}
	c.send(serverMessage{Type: "inquiry_result", Tone: "success", Record: &rec})
}

func (c *conn) send(msg serverMessage) {
	if c.closed.Load() {
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.sock.WriteJSON(msg); err != nil {
		log.Printf("feed: write error: %v", err)
	}
}
