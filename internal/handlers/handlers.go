package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/treyturner/ninjaone-e2e/internal/db"
	"github.com/treyturner/ninjaone-e2e/internal/models"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	DB      *db.DB
	Version string
	Commit  string
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// validate canonicalizes d in place and reports the first problem found.
func validate(d *models.Device) string {
	d.SystemName = strings.TrimSpace(d.SystemName)
	d.Type = models.CanonicalType(string(d.Type))
	d.HDDCapacity = models.Capacity(strings.TrimSpace(string(d.HDDCapacity)))

	if d.SystemName == "" || d.Type == "" || d.HDDCapacity == "" {
		return "system_name, type, and hdd_capacity are required"
	}
	if !models.ValidTypes[d.Type] {
		return "invalid type"
	}
	if _, err := strconv.ParseUint(string(d.HDDCapacity), 10, 64); err != nil {
		return "hdd_capacity must be a non-negative integer"
	}
	return ""
}

func decodeDevice(w http.ResponseWriter, r *http.Request) (*models.Device, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024)
	var req models.Device
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return nil, false
	}
	if msg := validate(&req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return nil, false
	}
	return &req, true
}

// Health handles GET /healthz. No auth required.
// Returns 503 if the database is unreachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.DB.Ping(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.Version,
		"commit":  h.Commit,
	})
}

// CreateDevice handles POST /devices.
func (h *Handler) CreateDevice(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeDevice(w, r)
	if !ok {
		return
	}
	req.ID = uuid.New().String()

	err := h.DB.Create(req)
	if errors.Is(err, db.ErrDuplicateName) {
		writeError(w, http.StatusConflict, "a device named "+strconv.Quote(req.SystemName)+" already exists")
		return
	}
	if err != nil {
		slog.Error("failed to create device", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create device")
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// ListDevices handles GET /devices with an optional ?type= filter.
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	var typ models.Type
	if q := r.URL.Query().Get("type"); q != "" {
		typ = models.CanonicalType(q)
		if !models.ValidTypes[typ] {
			writeError(w, http.StatusBadRequest, "invalid type")
			return
		}
	}

	devices, err := h.DB.List(typ)
	if err != nil {
		slog.Error("failed to list devices", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list devices")
		return
	}
	if devices == nil {
		devices = []*models.Device{}
	}
	writeJSON(w, http.StatusOK, devices)
}

// GetDevice handles GET /devices/{id}.
func (h *Handler) GetDevice(w http.ResponseWriter, r *http.Request) {
	device, err := h.DB.GetByID(r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get device")
		return
	}
	writeJSON(w, http.StatusOK, device)
}

// UpdateDevice handles PUT /devices/{id}. The path id wins over any id in the
// body.
func (h *Handler) UpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.DB.GetByID(id); errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "device not found")
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get device")
		return
	}

	req, ok := decodeDevice(w, r)
	if !ok {
		return
	}
	req.ID = id

	err := h.DB.Update(req)
	switch {
	case errors.Is(err, db.ErrDuplicateName):
		writeError(w, http.StatusConflict, "a device named "+strconv.Quote(req.SystemName)+" already exists")
		return
	case errors.Is(err, sql.ErrNoRows):
		writeError(w, http.StatusNotFound, "device not found")
		return
	case err != nil:
		slog.Error("failed to update device", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update device")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// DeleteDevice handles DELETE /devices/{id} and answers with the removed
// record, like the demo backend.
func (h *Handler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	device, err := h.DB.GetByID(id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get device")
		return
	}
	err = h.DB.Delete(id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}
	if err != nil {
		slog.Error("failed to delete device", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete device")
		return
	}
	writeJSON(w, http.StatusOK, device)
}
