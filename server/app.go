package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"pulse/config"
	"pulse/internal/admin"
	"pulse/internal/alert"
	"pulse/internal/api"
	"pulse/internal/db"
	"pulse/internal/health"
	"pulse/internal/logs"
	"pulse/internal/middleware"
	"pulse/internal/models"
	"pulse/internal/monitor"
	"pulse/internal/probe"
	"pulse/internal/repo"
)

// deviceStore — всё, что нужно API и планировщику от реестра.
// Удовлетворяют repo.DeviceStore и repo.MemoryStore.
type deviceStore interface {
	api.Devices
	monitor.Registry
}

type App struct {
	cfg        *config.Config
	db         *gorm.DB
	Router     *mux.Router
	httpServer *http.Server
	scheduler  *monitor.Scheduler

	ctx    context.Context
	cancel context.CancelFunc
}

func (a *App) Initialize(cfg *config.Config) {
	a.cfg = cfg

	/* 1) Логи */
	logs.Init(logs.Options{
		Level:  a.cfg.Logging.Level,
		Format: a.cfg.Logging.Format,
		File:   a.cfg.Logging.File,
	})

	/* 2) DB (опционально) */
	if drv := a.cfg.Database.Driver; drv != "" {
		d, err := db.Open(drv, a.cfg.Database.DSN)
		if err != nil {
			log.Fatalf("db open failed: %v", err)
		}
		a.db = d

		// доменная модель подсистемы — только устройство
		if err := a.db.AutoMigrate(&models.Device{}); err != nil {
			log.Fatalf("db migrate failed: %v", err)
		}
	}

	/* 3) Реестр устройств */
	var store deviceStore
	if a.db != nil {
		store = repo.NewDeviceStore(a.db, a.cfg.Monitor.FailureThreshold)
	} else {
		store = repo.NewMemoryStore(a.cfg.Monitor.FailureThreshold)
	}

	/* 4) Проверка доступности */
	var prober probe.Prober
	switch a.cfg.Monitor.Prober {
	case "icmp":
		prober = probe.NewICMPProber()
	case "tcp":
		prober = probe.NewTCPProber(a.cfg.Monitor.TCPPort)
	default: // auto
		prober = probe.NewFallbackProber(probe.NewICMPProber(), probe.NewTCPProber(a.cfg.Monitor.TCPPort))
	}

	/* 5) Канал уведомлений */
	var notifier alert.Notifier
	if a.cfg.Alerts.Mode == "webhook" {
		notifier = alert.NewWebhookNotifier(a.cfg.Alerts.WebhookURL,
			time.Duration(a.cfg.Alerts.TimeoutSeconds)*time.Second)
	} else {
		notifier = alert.LogNotifier{}
	}

	/* 6) Планировщик */
	a.scheduler = monitor.NewScheduler(store, prober,
		monitor.NewDispatcher(notifier), a.cfg.Monitor.MaxConcurrentProbes)

	/* 7) Router + middleware */
	a.Router = mux.NewRouter().StrictSlash(true)
	a.Router.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.LoggerMW,
	)

	/* 8) Health */
	if a.db != nil {
		health.RegisterRoutesWithDB(a.Router, a.db) // /healthz, /readyz
	} else {
		health.RegisterRoutes(a.Router) // только /healthz
	}

	/* 9) API + дашборд */
	api.RegisterRoutes(a.Router, api.NewHandler(store, a.scheduler), a.cfg.Auth.SharedSecret)
	admin.Attach(a.Router, store)

	/* (необязательно) вывести известные маршруты в лог при старте */
	_ = a.Router.Walk(func(rt *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, _ := rt.GetPathTemplate()
		methods, _ := rt.GetMethods()
		if len(methods) == 0 {
			methods = []string{"ANY"}
		}
		log.Printf("route: %-6v %s", methods, path)
		return nil
	})
}

func (a *App) Run() error {
	if a.Router == nil || a.cfg == nil {
		return fmt.Errorf("server not initialized")
	}

	bind := net.JoinHostPort(a.cfg.Server.Address, a.cfg.Server.HTTPPort)

	a.ctx, a.cancel = context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigs
		logs.Logger.Infof("shutdown signal: %s", s)
		a.cancel()
	}()

	if err := a.scheduler.Start(a.ctx); err != nil {
		return fmt.Errorf("scheduler start: %w", err)
	}

	// Жёсткие таймауты — это важно для production
	a.httpServer = &http.Server{
		Addr:              bind,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logs.Logger.Infof("HTTP listening on %s", bind)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logs.Logger.Fatalf("http server error: %v", err)
		}
	}()

	<-a.ctx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		logs.Logger.Errorf("http shutdown: %v", err)
	}
	a.scheduler.Stop()
	return nil
}
