package admin

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"pulse/internal/models"
	"pulse/internal/repo"
)

// DeviceStore — read-only доступ дашборда к реестру.
type DeviceStore interface {
	List(ctx context.Context, f repo.ListFilter) ([]models.Device, error)
	GetByUUID(ctx context.Context, id string) (*models.Device, error)
}

type Handler struct {
	store DeviceStore
	t     pageTemplates
}

// Attach вешает страницы дашборда под /admin.
func Attach(r *mux.Router, store DeviceStore) {
	h := &Handler{store: store, t: parseTemplates()}
	sub := r.PathPrefix("/admin").Subrouter()

	sub.HandleFunc("", h.redirect("/admin/devices")).Methods("GET")
	sub.HandleFunc("/", h.redirect("/admin/devices")).Methods("GET")
	sub.HandleFunc("/devices", h.DevicesList).Methods("GET")
	sub.HandleFunc("/devices/{uuid}", h.DeviceDetail).Methods("GET")

	// static (very small)
	sub.HandleFunc("/static/style.css", serveCSS).Methods("GET")
}

func (h *Handler) redirect(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, path, http.StatusFound)
	}
}

func (h *Handler) render(w http.ResponseWriter, page string, data any) {
	t, ok := h.t[page]
	if !ok {
		http.Error(w, "template not found: "+page, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(w, "layout", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// ---------- Pages ----------

func (h *Handler) DevicesList(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.List(r.Context(), repo.ListFilter{
		Category: r.URL.Query().Get("category"),
		Status:   r.URL.Query().Get("status"),
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		needle := strings.ToLower(q)
		filtered := rows[:0]
		for _, d := range rows {
			if strings.Contains(strings.ToLower(d.Name), needle) ||
				strings.Contains(strings.ToLower(d.Address), needle) ||
				strings.Contains(strings.ToLower(d.Location), needle) {
				filtered = append(filtered, d)
			}
		}
		rows = filtered
	}
	h.render(w, "devices_list.tmpl", map[string]any{
		"Title": "Devices",
		"Rows":  rows,
		"Query": r.URL.Query().Get("q"),
	})
}

func (h *Handler) DeviceDetail(w http.ResponseWriter, r *http.Request) {
	dev, err := h.store.GetByUUID(r.Context(), mux.Vars(r)["uuid"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if dev == nil {
		http.NotFound(w, r)
		return
	}
	h.render(w, "device_detail.tmpl", map[string]any{
		"Title": "Device " + dev.Address,
		"Dev":   dev,
	})
}
