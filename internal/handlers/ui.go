package handlers

import (
	"bytes"
	"database/sql"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/treyturner/ninjaone-e2e/internal/db"
	"github.com/treyturner/ninjaone-e2e/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	funcs = template.FuncMap{
		"capacity": models.FormatCapacity,
	}
	listTmpl = template.Must(template.New("list.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/list.html"))
	formTmpl = template.Must(template.New("form.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/form.html"))
)

type listPage struct {
	Title   string
	Devices []*models.Device
}

type formPage struct {
	Title  string
	Action string
	Error  string
	Device models.Device
	Types  []models.Type
}

func render(w http.ResponseWriter, status int, t *template.Template, data any) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		slog.Error("failed to render page", "template", t.Name(), "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func deviceFromForm(r *http.Request) models.Device {
	return models.Device{
		SystemName:  r.PostFormValue("system_name"),
		Type:        models.Type(r.PostFormValue("type")),
		HDDCapacity: models.Capacity(r.PostFormValue("hdd_capacity")),
	}
}

// ListPage handles GET / with the device list.
func (h *Handler) ListPage(w http.ResponseWriter, r *http.Request) {
	devices, err := h.DB.List("")
	if err != nil {
		slog.Error("failed to list devices", "error", err)
		http.Error(w, "failed to list devices", http.StatusInternalServerError)
		return
	}
	render(w, http.StatusOK, listTmpl, listPage{Title: "Devices", Devices: devices})
}

// AddForm handles GET /devices/add.
func (h *Handler) AddForm(w http.ResponseWriter, r *http.Request) {
	render(w, http.StatusOK, formTmpl, formPage{
		Title:  "Add device",
		Action: "/devices/add",
		Device: models.Device{Type: models.AllTypes[0]},
		Types:  models.AllTypes,
	})
}

// AddSubmit handles POST /devices/add. On success it redirects to the list.
func (h *Handler) AddSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024)
	dev := deviceFromForm(r)
	page := formPage{Title: "Add device", Action: "/devices/add", Types: models.AllTypes}

	if msg := validate(&dev); msg != "" {
		page.Error, page.Device = msg, dev
		render(w, http.StatusBadRequest, formTmpl, page)
		return
	}
	dev.ID = uuid.New().String()
	err := h.DB.Create(&dev)
	if errors.Is(err, db.ErrDuplicateName) {
		page.Error, page.Device = "A device named "+strconv.Quote(dev.SystemName)+" already exists.", dev
		render(w, http.StatusConflict, formTmpl, page)
		return
	}
	if err != nil {
		slog.Error("failed to create device", "error", err)
		http.Error(w, "failed to create device", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// EditForm handles GET /devices/edit/{id}.
func (h *Handler) EditForm(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	dev, err := h.DB.GetByID(id)
	if errors.Is(err, sql.ErrNoRows) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "failed to get device", http.StatusInternalServerError)
		return
	}
	render(w, http.StatusOK, formTmpl, formPage{
		Title:  "Edit device",
		Action: "/devices/edit/" + id,
		Device: *dev,
		Types:  models.AllTypes,
	})
}

// EditSubmit handles POST /devices/edit/{id}.
func (h *Handler) EditSubmit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024)
	dev := deviceFromForm(r)
	dev.ID = id
	page := formPage{Title: "Edit device", Action: "/devices/edit/" + id, Types: models.AllTypes}

	if msg := validate(&dev); msg != "" {
		page.Error, page.Device = msg, dev
		render(w, http.StatusBadRequest, formTmpl, page)
		return
	}
	err := h.DB.Update(&dev)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		http.NotFound(w, r)
		return
	case errors.Is(err, db.ErrDuplicateName):
		page.Error, page.Device = "A device named "+strconv.Quote(dev.SystemName)+" already exists.", dev
		render(w, http.StatusConflict, formTmpl, page)
		return
	case err != nil:
		slog.Error("failed to update device", "id", id, "error", err)
		http.Error(w, "failed to update device", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Remove handles POST /devices/{id}/remove.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := h.DB.Delete(id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		slog.Error("failed to delete device", "id", id, "error", err)
		http.Error(w, "failed to delete device", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
