package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"pulse/internal/logs"
	"pulse/internal/models"
	"pulse/internal/probe"
)

var (
	ErrProbeInFlight = errors.New("probe already in flight")
	ErrUnknownDevice = errors.New("unknown device")
)

// Registry — то, что планировщику нужно от реестра устройств.
type Registry interface {
	ListEnabled(ctx context.Context) ([]models.Device, error)
	GetByUUID(ctx context.Context, id string) (*models.Device, error)
	ApplyProbeResult(ctx context.Context, id string, out Outcome) (*models.Device, *Transition, error)
}

// Scheduler гоняет проверки: одна горутина на включённое устройство,
// общий семафор ограничивает число одновременных проверок.
// Инвариант: для одного устройства не бывает двух проверок в полёте.
type Scheduler struct {
	reg        Registry
	prober     probe.Prober
	dispatcher *Dispatcher

	sem chan struct{}

	mu     sync.Mutex
	jobs   map[string]context.CancelFunc
	guards map[string]*atomic.Bool
	wg     sync.WaitGroup
	runCtx context.Context
	cancel context.CancelFunc

	// пауза перед повтором после ошибки чтения записи
	retryInterval time.Duration
}

func NewScheduler(reg Registry, prober probe.Prober, dispatcher *Dispatcher, maxConcurrent int) *Scheduler {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Scheduler{
		reg:           reg,
		prober:        prober,
		dispatcher:    dispatcher,
		sem:           make(chan struct{}, maxConcurrent),
		jobs:          make(map[string]context.CancelFunc),
		guards:        make(map[string]*atomic.Bool),
		retryInterval: 10 * time.Second,
	}
}

// Start запускает циклы для всех включённых устройств. Не блокирует.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.runCtx != nil {
		s.mu.Unlock()
		return errors.New("scheduler already started")
	}
	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	devices, err := s.reg.ListEnabled(ctx)
	if err != nil {
		return err
	}
	for i := range devices {
		s.Track(devices[i].UUID)
	}
	logs.L().Infof("monitor: scheduler started, %d device(s) tracked", len(devices))
	return nil
}

// Stop останавливает все циклы и ждёт их завершения.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Track начинает периодические проверки устройства. Идемпотентно.
func (s *Scheduler) Track(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runCtx == nil {
		return
	}
	if _, ok := s.jobs[id]; ok {
		return
	}
	ctx, cancel := context.WithCancel(s.runCtx)
	s.jobs[id] = cancel
	s.wg.Add(1)
	go s.runDevice(ctx, id)
}

// Forget снимает устройство с расписания (удаление или выключение).
func (s *Scheduler) Forget(id string) {
	s.mu.Lock()
	cancel, ok := s.jobs[id]
	if ok {
		delete(s.jobs, id)
	}
	// guard свободен — убираем сразу; занятый доберёт pruneGuard
	// по завершении проверки
	if g, gok := s.guards[id]; gok && !g.Load() {
		delete(s.guards, id)
	}
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// TriggerNow — ручная проверка вне расписания. Подчиняется тому же
// правилу «одна проверка в полёте»: занято — ErrProbeInFlight, без очереди.
func (s *Scheduler) TriggerNow(ctx context.Context, id string) (*models.Device, Outcome, error) {
	dev, err := s.reg.GetByUUID(ctx, id)
	if err != nil {
		return nil, Outcome{}, err
	}
	if dev == nil {
		return nil, Outcome{}, ErrUnknownDevice
	}

	g := s.guard(id)
	if !g.CompareAndSwap(false, true) {
		return nil, Outcome{}, ErrProbeInFlight
	}
	defer func() {
		g.Store(false)
		s.pruneGuard(id)
	}()

	return s.probeAndApply(ctx, dev)
}

// runDevice — цикл одного устройства: сон на интервал, свежее чтение
// записи, проверка. Интервал перечитывается каждый цикл, поэтому смена
// настроек подхватывается со следующего завершённого цикла.
func (s *Scheduler) runDevice(ctx context.Context, id string) {
	defer s.wg.Done()
	defer s.pruneGuard(id)

	// первый интервал берём из записи; реестр недоступен — ждём и читаем снова
	var interval time.Duration
	for {
		dev, err := s.reg.GetByUUID(ctx, id)
		if err != nil {
			logs.L().Warnf("monitor: read device %s: %v", id, err)
			if !s.sleep(ctx, s.retryInterval) {
				return
			}
			continue
		}
		if dev == nil || !dev.MonitoringEnabled {
			s.Forget(id)
			return
		}
		interval = pollInterval(dev)
		break
	}

	for {
		if !s.sleep(ctx, interval) {
			return
		}

		dev, err := s.reg.GetByUUID(ctx, id)
		if err != nil {
			// цикл опроса брошен; следующий тик повторит
			logs.L().Warnf("monitor: read device %s: %v", id, err)
			continue
		}
		if dev == nil || !dev.MonitoringEnabled {
			s.Forget(id)
			return
		}
		interval = pollInterval(dev)

		g := s.guard(id)
		if !g.CompareAndSwap(false, true) {
			// предыдущая проверка ещё не завершилась — тик пропускаем,
			// это не ошибка и не очередь
			logs.L().Debugf("monitor: probe of %s still in flight, tick skipped", dev.Address)
			continue
		}
		if _, _, err := s.probeAndApply(ctx, dev); err != nil && !errors.Is(err, context.Canceled) {
			logs.L().Warnf("monitor: apply probe result for %s: %v", dev.Address, err)
		}
		g.Store(false)
	}
}

// probeAndApply — одна проверка: семафор, проба, запись результата,
// уведомление о переходе. Вызывается только под guard-ом устройства.
func (s *Scheduler) probeAndApply(ctx context.Context, dev *models.Device) (*models.Device, Outcome, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, Outcome{}, ctx.Err()
	}
	timeout := probeTimeout(dev)
	res := s.prober.Probe(ctx, dev.Address, timeout)
	<-s.sem

	if res.Err != nil && !res.Success {
		logs.L().Debugf("monitor: probe %s: %v", dev.Address, res.Err)
	}

	out := Outcome{Success: res.Success, Latency: res.Latency, At: time.Now().UTC()}
	updated, tr, err := s.reg.ApplyProbeResult(ctx, dev.UUID, out)
	if err != nil {
		return nil, out, err
	}
	if tr != nil {
		s.dispatcher.HandleTransition(ctx, updated, tr)
	}
	return updated, out, nil
}

// pruneGuard убирает guard устройства, снятого с расписания, как
// только проверка не в полёте. Без этого map растёт при текучке устройств.
func (s *Scheduler) pruneGuard(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, tracked := s.jobs[id]; tracked {
		return
	}
	if g, ok := s.guards[id]; ok && !g.Load() {
		delete(s.guards, id)
	}
}

func (s *Scheduler) guard(id string) *atomic.Bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.guards[id]
	if !ok {
		g = &atomic.Bool{}
		s.guards[id] = g
	}
	return g
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func pollInterval(d *models.Device) time.Duration {
	if d == nil || d.PollIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(d.PollIntervalSeconds) * time.Second
}

func probeTimeout(d *models.Device) time.Duration {
	if d.ProbeTimeoutMillis <= 0 {
		return 5 * time.Second
	}
	return time.Duration(d.ProbeTimeoutMillis) * time.Millisecond
}
