package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"pulse/internal/models"
	"pulse/internal/monitor"
)

// MemoryStore — реестр устройств в памяти (режим без БД).
// Интерфейс тот же, что у DeviceStore; наружу отдаются копии записей.
type MemoryStore struct {
	mu        sync.RWMutex
	byUUID    map[string]*models.Device
	byAddress map[string]string // address → uuid
	threshold int
	nextID    uint
}

func NewMemoryStore(failureThreshold int) *MemoryStore {
	return &MemoryStore{
		byUUID:    make(map[string]*models.Device),
		byAddress: make(map[string]string),
		threshold: failureThreshold,
	}
}

func (s *MemoryStore) Create(_ context.Context, d *models.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	addr := NormalizeAddress(d.Address)
	if _, ok := s.byAddress[addr]; ok {
		return ErrAddressTaken
	}
	if d.UUID == "" {
		d.UUID = uuid.NewString()
	}
	s.nextID++
	d.ID = s.nextID
	d.Status = models.DeviceStatusUnknown
	d.ConsecutiveFailures = 0
	d.TotalUptimeSeconds = 0
	d.TotalDowntimeSeconds = 0
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	cp := *d
	s.byUUID[d.UUID] = &cp
	s.byAddress[addr] = d.UUID
	return nil
}

func (s *MemoryStore) GetByUUID(_ context.Context, id string) (*models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.byUUID[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (s *MemoryStore) List(_ context.Context, f ListFilter) ([]models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Device, 0, len(s.byUUID))
	for _, d := range s.byUUID {
		if f.Category != "" && d.Category != f.Category {
			continue
		}
		if f.Status != "" && string(d.Status) != f.Status {
			continue
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) ListEnabled(_ context.Context) ([]models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Device, 0, len(s.byUUID))
	for _, d := range s.byUUID {
		if d.MonitoringEnabled {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateConfig(_ context.Context, id string, cfg DeviceConfig) (*models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.byUUID[id]
	if !ok {
		return nil, ErrNotFound
	}
	d.Name = cfg.Name
	d.Category = cfg.Category
	d.Location = cfg.Location
	d.Metadata = cfg.Metadata
	d.PollIntervalSeconds = cfg.PollIntervalSeconds
	d.ProbeTimeoutMillis = cfg.ProbeTimeoutMillis
	d.MonitoringEnabled = cfg.MonitoringEnabled
	d.AlertOnOffline = cfg.AlertOnOffline
	d.AlertDestination = cfg.AlertDestination
	d.UpdatedAt = time.Now().UTC()

	cp := *d
	return &cp, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.byUUID[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byAddress, NormalizeAddress(d.Address))
	delete(s.byUUID, id)
	return nil
}

// ApplyProbeResult — как у DeviceStore: состояние и счётчики меняются
// под одним замком, читатели видят либо старую запись, либо новую.
func (s *MemoryStore) ApplyProbeResult(_ context.Context, id string, out monitor.Outcome) (*models.Device, *monitor.Transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.byUUID[id]
	if !ok {
		return nil, nil, ErrNotFound
	}
	tr := applyOutcome(d, out, s.threshold)
	d.UpdatedAt = time.Now().UTC()

	cp := *d
	return &cp, tr, nil
}
