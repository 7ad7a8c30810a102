package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"pulse/internal/models"
	"pulse/internal/monitor"
)

var (
	ErrNotFound     = errors.New("device not found")
	ErrAddressTaken = errors.New("device address already registered")
)

// ListFilter — необязательные фильтры выборки устройств.
type ListFilter struct {
	Category string
	Status   string
}

// DeviceConfig — конфигурационные поля, которые меняет оператор.
// Поля состояния мониторинга через него не проходят.
type DeviceConfig struct {
	Name                string
	Category            string
	Location            string
	Metadata            datatypes.JSON
	PollIntervalSeconds int
	ProbeTimeoutMillis  int
	MonitoringEnabled   bool
	AlertOnOffline      bool
	AlertDestination    string
}

// DeviceStore — реестр устройств поверх gorm.
type DeviceStore struct {
	db        *gorm.DB
	threshold int
}

func NewDeviceStore(db *gorm.DB, failureThreshold int) *DeviceStore {
	return &DeviceStore{db: db, threshold: failureThreshold}
}

// Create регистрирует устройство. Статус — unknown, счётчики — нули.
func (s *DeviceStore) Create(ctx context.Context, d *models.Device) error {
	if d.UUID == "" {
		d.UUID = uuid.NewString()
	}
	d.Status = models.DeviceStatusUnknown
	d.ConsecutiveFailures = 0
	d.TotalUptimeSeconds = 0
	d.TotalDowntimeSeconds = 0

	var existing models.Device
	err := s.db.WithContext(ctx).Where("address = ?", d.Address).First(&existing).Error
	if err == nil {
		return ErrAddressTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	// пред-проверку может обогнать параллельная регистрация: тогда
	// сработает уникальный индекс по address
	return translateDBError(s.db.WithContext(ctx).Create(d).Error)
}

// translateDBError переводит нарушения ограничений БД в ошибки реестра
// (gorm с TranslateError отдаёт их едиными sentinel-ошибками).
func translateDBError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAddressTaken
	}
	return err
}

func (s *DeviceStore) GetByUUID(ctx context.Context, id string) (*models.Device, error) {
	var d models.Device
	err := s.db.WithContext(ctx).Where("uuid = ?", id).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &d, err
}

func (s *DeviceStore) List(ctx context.Context, f ListFilter) ([]models.Device, error) {
	q := s.db.WithContext(ctx).Order("name asc, id asc")
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var rows []models.Device
	return rows, q.Find(&rows).Error
}

func (s *DeviceStore) ListEnabled(ctx context.Context) ([]models.Device, error) {
	var rows []models.Device
	return rows, s.db.WithContext(ctx).
		Where("monitoring_enabled = ?", true).
		Find(&rows).Error
}

// UpdateConfig обновляет только конфигурационные поля, чтобы не
// затереть состояние мониторинга, которое параллельно пишет планировщик.
func (s *DeviceStore) UpdateConfig(ctx context.Context, id string, cfg DeviceConfig) (*models.Device, error) {
	d, err := s.GetByUUID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrNotFound
	}
	err = s.db.WithContext(ctx).Model(&models.Device{}).
		Where("uuid = ?", id).
		Updates(map[string]any{
			"name":                  cfg.Name,
			"category":              cfg.Category,
			"location":              cfg.Location,
			"metadata":              cfg.Metadata,
			"poll_interval_seconds": cfg.PollIntervalSeconds,
			"probe_timeout_millis":  cfg.ProbeTimeoutMillis,
			"monitoring_enabled":    cfg.MonitoringEnabled,
			"alert_on_offline":      cfg.AlertOnOffline,
			"alert_destination":     cfg.AlertDestination,
		}).Error
	if err != nil {
		return nil, err
	}
	return s.GetByUUID(ctx, id)
}

func (s *DeviceStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("uuid = ?", id).Delete(&models.Device{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyProbeResult применяет результат проверки и пишет обратно только
// поля состояния мониторинга — одним UPDATE, так что читатели никогда
// не видят «полуобновлённую» запись. Порядок записи для одного
// устройства обеспечивает планировщик (одна проверка в полёте).
func (s *DeviceStore) ApplyProbeResult(ctx context.Context, id string, out monitor.Outcome) (*models.Device, *monitor.Transition, error) {
	d, err := s.GetByUUID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if d == nil {
		return nil, nil, ErrNotFound
	}

	tr := applyOutcome(d, out, s.threshold)
	err = s.db.WithContext(ctx).Model(&models.Device{}).
		Where("uuid = ?", id).
		Updates(map[string]any{
			"status":                 d.Status,
			"consecutive_failures":   d.ConsecutiveFailures,
			"last_probe_at":          d.LastProbeAt,
			"last_latency_millis":    d.LastLatencyMillis,
			"last_status_change_at":  d.LastStatusChangeAt,
			"total_uptime_seconds":   d.TotalUptimeSeconds,
			"total_downtime_seconds": d.TotalDowntimeSeconds,
		}).Error
	if err != nil {
		return nil, nil, err
	}
	return d, tr, nil
}

// applyOutcome прогоняет состояние через переходную функцию и
// раскладывает результат обратно в модель. Общий код обоих реестров.
func applyOutcome(d *models.Device, out monitor.Outcome, threshold int) *monitor.Transition {
	if out.At.IsZero() {
		out.At = time.Now().UTC()
	}
	next, tr := monitor.Evaluate(monitor.StateOf(d), out, threshold)

	d.Status = next.Status
	d.ConsecutiveFailures = next.ConsecutiveFailures
	d.TotalUptimeSeconds = next.TotalUptimeSeconds
	d.TotalDowntimeSeconds = next.TotalDowntimeSeconds

	at := out.At
	d.LastProbeAt = &at
	if out.Success {
		ms := out.Latency.Milliseconds()
		d.LastLatencyMillis = &ms
	} else {
		d.LastLatencyMillis = nil
	}
	if !next.LastStatusChangeAt.IsZero() {
		t := next.LastStatusChangeAt
		d.LastStatusChangeAt = &t
	}
	return tr
}

// NormalizeAddress — единый вид адреса как ключа реестра.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
