package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/jusunglee/railboard/internal/catalog"
	"github.com/jusunglee/railboard/internal/models"
	"github.com/jusunglee/railboard/pkg/railboard"
)

const maxRenderWidth = 7680

// Handler handles HTTP requests
type Handler struct {
	client railboard.Client
}

// NewHandler creates a new HTTP handler
func NewHandler(client railboard.Client) *Handler {
	return &Handler{client: client}
}

// RegisterRoutes registers all routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/", h.handleIndex).Methods("GET")
	r.HandleFunc("/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/railways", h.handleRailways).Methods("GET")
	r.HandleFunc("/railways/{railway}", h.handleRailway).Methods("GET")
	r.HandleFunc("/render/{railway}", h.handleRender).Methods("GET")
	r.HandleFunc("/alerts", h.handleAlerts).Methods("GET")
	r.HandleFunc("/board", h.handleBoard).Methods("GET")
	r.HandleFunc("/board/group/{index}", h.handleSelectGroup).Methods("POST")
}

// Response wraps API responses
type Response struct {
	Data    interface{} `json:"data"`
	Updated string      `json:"updated,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) updated() string {
	if t := h.client.GetLastUpdate(); !t.IsZero() {
		return t.Format(time.RFC3339)
	}
	return ""
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"title":  "railboard",
		"readme": "Realtime train positions for Tokyo railways. See /railways and /render/{railway}",
	}
	h.writeJSON(w, response)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if h.client.GetLastUpdate().IsZero() {
		status = "starting"
	}
	h.writeJSON(w, map[string]string{
		"status":  status,
		"updated": h.updated(),
	})
}

func (h *Handler) handleRailways(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, Response{
		Data:    h.client.GetRailways(),
		Updated: h.updated(),
	})
}

func (h *Handler) handleRailway(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["railway"]

	line, err := h.client.GetLine(id)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	scene, err := h.client.GetScene(id, railboard.SceneOptions{})
	if err != nil {
		h.writeLookupError(w, err)
		return
	}

	h.writeJSON(w, models.LineResponse{
		Railway:    line.Railway.ID,
		Name:       line.Railway.Name,
		Color:      line.Railway.Color,
		Stations:   line.Snapshot.Stations,
		Placements: scene.Placements(),
		Unresolved: scene.Unresolved,
		LastUpdate: line.Snapshot.UpdatedAt,
		Error:      line.Snapshot.Error,
	})
}

func (h *Handler) handleRender(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["railway"]

	var opts railboard.SceneOptions
	if s := r.URL.Query().Get("width"); s != "" {
		width, err := strconv.ParseFloat(s, 64)
		if err != nil || width <= 0 || width > maxRenderWidth {
			h.writeError(w, "Invalid width parameter", http.StatusBadRequest)
			return
		}
		opts.Width = width
	}
	if s := r.URL.Query().Get("maxStationsPerRow"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			h.writeError(w, "Invalid maxStationsPerRow parameter", http.StatusBadRequest)
			return
		}
		opts.MaxStationsPerRow = n
	}

	scene, err := h.client.GetScene(id, opts)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}

	// render fully before writing so a failure can still become a 500
	var buf bytes.Buffer
	if err := scene.WriteSVG(&buf); err != nil {
		h.writeError(w, "Failed to render", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (h *Handler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, Response{
		Data:    h.client.GetServiceInfo(),
		Updated: h.updated(),
	})
}

func (h *Handler) handleBoard(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, Response{
		Data:    h.client.GetBoard(),
		Updated: h.updated(),
	})
}

func (h *Handler) handleSelectGroup(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		h.writeError(w, "Invalid group index", http.StatusBadRequest)
		return
	}

	sel, err := h.client.SelectBoardGroup(index)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusNotFound)
		return
	}
	h.writeJSON(w, Response{Data: sel})
}

func (h *Handler) writeLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrUnknownRailway):
		h.writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, railboard.ErrNoData):
		h.writeError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		h.writeError(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.writeError(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}
