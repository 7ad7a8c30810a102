package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"gorm.io/datatypes"

	"pulse/internal/models"
	"pulse/internal/monitor"
	"pulse/internal/repo"
)

// Devices — контракт реестра, который нужен обработчикам.
// Ему удовлетворяют repo.DeviceStore и repo.MemoryStore.
type Devices interface {
	Create(ctx context.Context, d *models.Device) error
	GetByUUID(ctx context.Context, id string) (*models.Device, error)
	List(ctx context.Context, f repo.ListFilter) ([]models.Device, error)
	UpdateConfig(ctx context.Context, id string, cfg repo.DeviceConfig) (*models.Device, error)
	Delete(ctx context.Context, id string) error
}

// Monitor — то, что обработчикам нужно от планировщика.
type Monitor interface {
	Track(id string)
	Forget(id string)
	TriggerNow(ctx context.Context, id string) (*models.Device, monitor.Outcome, error)
}

type Handler struct {
	store Devices
	mon   Monitor
}

func NewHandler(store Devices, mon Monitor) *Handler {
	return &Handler{store: store, mon: mon}
}

// CreateDevice — POST /api/v1/devices
func (h *Handler) CreateDevice(w http.ResponseWriter, r *http.Request) {
	var req DeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", err.Error(), nil)
		return
	}
	req.normalize()
	if problems := req.validate(true); len(problems) > 0 {
		models.WriteProblem(w, http.StatusUnprocessableEntity, "Validation Failed", "invalid device", map[string]any{
			"problems": problems,
		})
		return
	}

	d := models.Device{
		Address:             repo.NormalizeAddress(req.Address),
		Name:                req.Name,
		Category:            req.Category,
		Location:            req.Location,
		Metadata:            datatypes.JSON(req.Metadata),
		PollIntervalSeconds: req.PollIntervalSeconds,
		ProbeTimeoutMillis:  req.ProbeTimeoutMillis,
		MonitoringEnabled:   req.monitoringEnabled(),
		AlertOnOffline:      req.AlertOnOffline,
		AlertDestination:    req.AlertDestination,
	}
	if err := h.store.Create(r.Context(), &d); err != nil {
		if errors.Is(err, repo.ErrAddressTaken) {
			models.WriteProblem(w, http.StatusConflict, "Conflict", "address already registered", nil)
			return
		}
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
		return
	}
	if d.MonitoringEnabled {
		h.mon.Track(d.UUID)
	}
	models.WriteJSON(w, http.StatusCreated, toResponse(&d))
}

// ListDevices — GET /api/v1/devices?category=&status=
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	f := repo.ListFilter{
		Category: r.URL.Query().Get("category"),
		Status:   r.URL.Query().Get("status"),
	}
	rows, err := h.store.List(r.Context(), f)
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
		return
	}
	out := make([]DeviceResponse, 0, len(rows))
	for i := range rows {
		out = append(out, toResponse(&rows[i]))
	}
	models.WriteJSON(w, http.StatusOK, out)
}

// GetDevice — GET /api/v1/devices/{uuid}
func (h *Handler) GetDevice(w http.ResponseWriter, r *http.Request) {
	d, err := h.store.GetByUUID(r.Context(), mux.Vars(r)["uuid"])
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
		return
	}
	if d == nil {
		models.WriteProblem(w, http.StatusNotFound, "Not Found", "device not found", nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, toResponse(d))
}

// UpdateDevice — PUT /api/v1/devices/{uuid}
// Меняет только конфигурацию; статус и счётчики не трогает.
func (h *Handler) UpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["uuid"]
	var req DeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", err.Error(), nil)
		return
	}
	req.normalize()
	if problems := req.validate(false); len(problems) > 0 {
		models.WriteProblem(w, http.StatusUnprocessableEntity, "Validation Failed", "invalid device", map[string]any{
			"problems": problems,
		})
		return
	}

	d, err := h.store.UpdateConfig(r.Context(), id, repo.DeviceConfig{
		Name:                req.Name,
		Category:            req.Category,
		Location:            req.Location,
		Metadata:            datatypes.JSON(req.Metadata),
		PollIntervalSeconds: req.PollIntervalSeconds,
		ProbeTimeoutMillis:  req.ProbeTimeoutMillis,
		MonitoringEnabled:   req.monitoringEnabled(),
		AlertOnOffline:      req.AlertOnOffline,
		AlertDestination:    req.AlertDestination,
	})
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			models.WriteProblem(w, http.StatusNotFound, "Not Found", "device not found", nil)
			return
		}
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
		return
	}

	// планировщик подхватывает включение/выключение
	if d.MonitoringEnabled {
		h.mon.Track(d.UUID)
	} else {
		h.mon.Forget(d.UUID)
	}
	models.WriteJSON(w, http.StatusOK, toResponse(d))
}

// DeleteDevice — DELETE /api/v1/devices/{uuid}
func (h *Handler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["uuid"]
	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			models.WriteProblem(w, http.StatusNotFound, "Not Found", "device not found", nil)
			return
		}
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
		return
	}
	h.mon.Forget(id)
	w.WriteHeader(http.StatusNoContent)
}

// ProbeDevice — POST /api/v1/devices/{uuid}/probe
// Немедленная проверка вне расписания.
func (h *Handler) ProbeDevice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["uuid"]
	d, out, err := h.mon.TriggerNow(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, monitor.ErrUnknownDevice):
			models.WriteProblem(w, http.StatusNotFound, "Not Found", "device not found", nil)
		case errors.Is(err, monitor.ErrProbeInFlight):
			models.WriteProblem(w, http.StatusConflict, "Conflict", "probe already in flight", nil)
		default:
			models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
		}
		return
	}
	resp := ProbeResponse{Success: out.Success, Device: toResponse(d)}
	if out.Success {
		resp.LatencyMillis = out.Latency.Milliseconds()
	}
	models.WriteJSON(w, http.StatusOK, resp)
}
