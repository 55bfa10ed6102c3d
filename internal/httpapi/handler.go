// Package httpapi is the HTTP surface of the maintenance scan service: the
// REST API under /api/v1/ and the two WebSocket endpoints.
package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"maintscan/internal/auth"
	"maintscan/internal/events"
	"maintscan/internal/feed"
	"maintscan/internal/models"
	"maintscan/internal/response"
	"maintscan/internal/scan"
	"maintscan/internal/store"
	"maintscan/internal/transition"
	"maintscan/internal/websocket"
)

// Handler holds the service collaborators shared by every route.
type Handler struct {
	Store   store.Store
	Session *scan.Session
	Hub     *websocket.Hub
	Events  events.Publisher
	Keyring *auth.Keyring
}

// New builds a handler. Session is the shared counter session used by the
// REST scan routes; feed connections get their own.
func New(st store.Store, session *scan.Session, hub *websocket.Hub, pub events.Publisher, keyring *auth.Keyring) *Handler {
	if keyring == nil {
		keyring = auth.NewKeyring(nil)
	}
	return &Handler{Store: st, Session: session, Hub: hub, Events: pub, Keyring: keyring}
}

// Routes returns the fully wired root handler.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/", h.serveAPI)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.Serve(h.Hub, w, r)
	})
	mux.HandleFunc("/ws/scanner", func(w http.ResponseWriter, r *http.Request) {
		feed.Serve(feed.Deps{Store: h.Store, Events: h.Events, Hub: h.Hub}, w, r, actorFrom(r.Context()))
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		response.JSON(w, map[string]string{"status": "ok"})
	})

	return logging(h.requireKey(mux))
}

// serveAPI dispatches /api/v1/ requests with a simple path router.
func (h *Handler) serveAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/")
	path = strings.TrimSuffix(path, "/")
	parts := strings.Split(path, "/")

	switch {
	case path == "transitions" && r.Method == "GET":
		h.handleListTransitions(w, r)

	case path == "scan" && r.Method == "POST":
		h.handleScan(w, r)
	case path == "scan/transition" && r.Method == "GET":
		h.handleActiveTransition(w, r)
	case path == "scan/transition" && r.Method == "POST":
		h.handleSelectTransition(w, r)
	case path == "scan/transition" && r.Method == "DELETE":
		h.handleClearTransition(w, r)
	case path == "scan/log" && r.Method == "GET":
		h.handleScanLog(w, r)
	case path == "scan/log" && r.Method == "DELETE":
		h.handleClearScanLog(w, r)

	case path == "inquiry" && r.Method == "GET":
		h.handleInquiry(w, r)

	case path == "maintenance" && r.Method == "GET":
		h.handleListRecords(w, r)
	case path == "maintenance" && r.Method == "POST":
		h.handleCreateRecord(w, r)
	case path == "maintenance/export" && r.Method == "GET":
		h.handleExport(w, r)
	case len(parts) == 2 && parts[0] == "maintenance" && r.Method == "GET":
		h.handleGetRecord(w, r, parts[1])
	case len(parts) == 3 && parts[0] == "maintenance" && parts[2] == "history" && r.Method == "GET":
		h.handleHistory(w, r, parts[1])

	default:
		response.Err(w, "not found", 404)
	}
}

func (h *Handler) handleListTransitions(w http.ResponseWriter, r *http.Request) {
	defs := transition.Catalog()
	out := make([]models.TransitionInfo, 0, len(defs))
	for _, def := range defs {
		info := models.TransitionInfo{ID: def.ID, Label: def.Label}
		for _, s := range def.AllowedFrom {
			info.AllowedFrom = append(info.AllowedFrom, string(s))
		}
		out = append(out, info)
	}
	response.JSON(w, out)
}

func (h *Handler) handleSelectTransition(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID string `json:"id"`
	}
	if err := response.DecodeBody(r, &body); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}
	if err := h.Session.SelectTransition(body.ID); err != nil {
		response.Err(w, err.Error(), 400)
		return
	}
	response.JSON(w, map[string]string{"active": body.ID})
}

func (h *Handler) handleClearTransition(w http.ResponseWriter, r *http.Request) {
	h.Session.ClearTransition()
	response.JSON(w, map[string]string{"active": ""})
}

func (h *Handler) handleActiveTransition(w http.ResponseWriter, r *http.Request) {
	def, ok := h.Session.ActiveTransition()
	if !ok {
		response.JSON(w, map[string]string{"active": ""})
		return
	}
	response.JSON(w, map[string]string{"active": def.ID, "label": def.Label})
}

// handleScan runs one code through the shared session. A dropped scan (no
// transition selected, empty code, or one already in flight) is reported as
// such rather than failing the request.
func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if err := response.DecodeBody(r, &body); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}
	entry := h.Session.Dispatch(r.Context(), body.Code, actorFrom(r.Context()))
	if entry == nil {
		response.JSON(w, map[string]interface{}{"dropped": true})
		return
	}
	response.JSON(w, map[string]interface{}{"dropped": false, "entry": entry})
}

func (h *Handler) handleScanLog(w http.ResponseWriter, r *http.Request) {
	entries := h.Session.Log()
	if entries == nil {
		entries = []models.ScanLogEntry{}
	}
	response.JSON(w, entries)
}

func (h *Handler) handleClearScanLog(w http.ResponseWriter, r *http.Request) {
	h.Session.ClearLog()
	response.JSON(w, map[string]string{"status": "cleared"})
}

// handleInquiry is the read-only lookup; it accepts a bare maintenance
// number or a full printed QR link.
func (h *Handler) handleInquiry(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	rec, err := h.Session.Inquire(r.Context(), code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Err(w, "not found", 404)
			return
		}
		response.Err(w, err.Error(), 500)
		return
	}
	response.JSON(w, rec)
}

func (h *Handler) handleListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 || limit > 200 {
		limit = 50
	}
	filter := store.ListFilter{
		Status: q.Get("status"),
		Search: q.Get("search"),
		Page:   page,
		Limit:  limit,
	}
	recs, total, err := h.Store.ListRecords(r.Context(), filter)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if recs == nil {
		recs = []models.MaintenanceRecord{}
	}
	response.JSONMeta(w, recs, total, page, limit)
}

func (h *Handler) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var rec models.MaintenanceRecord
	if err := response.DecodeBody(r, &rec); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}
	rec.MaintenanceNo = strings.TrimSpace(rec.MaintenanceNo)
	if rec.MaintenanceNo == "" {
		response.Err(w, "maintenance_no is required", 400)
		return
	}
	created, err := h.Store.CreateRecord(r.Context(), rec)
	if err != nil {
		if errors.Is(err, store.ErrExists) {
			response.Err(w, "maintenance number already exists", 409)
			return
		}
		response.Err(w, err.Error(), 400)
		return
	}
	if h.Hub != nil {
		h.Hub.BroadcastRecord(created.MaintenanceNo, "created")
	}
	w.WriteHeader(201)
	response.JSON(w, created)
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request, no string) {
	rec, err := h.Store.GetRecord(r.Context(), no)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Err(w, "not found", 404)
			return
		}
		response.Err(w, err.Error(), 500)
		return
	}
	response.JSON(w, rec)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request, no string) {
	if _, err := h.Store.GetRecord(r.Context(), no); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Err(w, "not found", 404)
			return
		}
		response.Err(w, err.Error(), 500)
		return
	}
	hist, err := h.Store.History(r.Context(), no)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if hist == nil {
		hist = []models.StatusHistoryEntry{}
	}
	response.JSON(w, hist)
}
