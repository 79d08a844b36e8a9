package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"
	"gopkg.in/yaml.v3"

	"lease-radar/internal/api"
	"lease-radar/internal/catalog"
	"lease-radar/internal/fetcher"
	"lease-radar/internal/notifier"
	"lease-radar/internal/prober"
	"lease-radar/internal/scheduler"
	"lease-radar/internal/storage"
	"lease-radar/internal/subscription"
	"lease-radar/internal/viewer"
)

// AppConfig 应用配置。
type AppConfig struct {
	Fetcher      fetcher.Config       `yaml:"fetcher"`
	Catalog      catalog.Config       `yaml:"catalog"`
	Prober       prober.Config        `yaml:"prober"`
	Viewer       viewer.Config        `yaml:"viewer"`
	Scheduler    scheduler.Config     `yaml:"scheduler"`
	Email        notifier.EmailConfig `yaml:"email"`
	Subscription subscription.Config  `yaml:"subscription"`
	Server       ServerConfig         `yaml:"server"`
	Database     DatabaseConfig       `yaml:"database"`
}

type ServerConfig struct {
	Addr     string `yaml:"addr"`
	MaxConns int    `yaml:"max_conns"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Printf("load config error: %v", err)
		return
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = "leases.db"
	}

	store, err := storage.NewStore(dbPath)
	if err != nil {
		log.Printf("init store error: %v", err)
		return
	}
	defer store.Close()

	client := &http.Client{Timeout: 15 * time.Second}
	if cfg.Fetcher.BaseURL == "" {
		log.Printf("fetcher base_url required")
		return
	}
	fetch := fetcher.NewKVFetcher(cfg.Fetcher.BaseURL, cfg.Fetcher, client)

	cat := catalog.NewService(fetch, store, cfg.Catalog)
	probe := prober.New(cfg.Prober, client)
	view := viewer.NewManager(cat, probe, cfg.Viewer)

	notif := buildNotifier(store, cfg.Email)
	sched := scheduler.NewScheduler(cat, notif, cfg.Scheduler)
	subs := subscription.NewService(store, cfg.Subscription)

	handler := api.NewHandler(cat, view, sched, subs)

	addr := cfg.Server.Addr
	if addr == "" {
		addr = ":8080"
	}
	maxConns := cfg.Server.MaxConns
	if maxConns <= 0 {
		maxConns = 256
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Printf("listen error: %v", err)
		return
	}
	listener = netutil.LimitListener(listener, maxConns)

	srv := &http.Server{Handler: handler}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := sched.Start(ctx); err != nil && err != context.Canceled {
			log.Printf("scheduler stopped: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("listening on %s max_conns=%d", addr, maxConns)
	if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
		log.Printf("server error: %v", err)
	}
}

func loadConfig() (AppConfig, error) {
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return AppConfig{}, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// buildNotifier 根据邮件配置决定通知链：配置完整时按订阅过滤发邮件，
// 否则退回日志通知。
func buildNotifier(store *storage.Store, cfg notifier.EmailConfig) scheduler.Notifier {
	logNotif := notifier.NewLogNotifier(nil)
	if cfg.Host == "" || cfg.Port == 0 || cfg.From == "" {
		log.Printf("email notifier disabled: missing host/port/from")
		return logNotif
	}
	return notifier.NewSubscriptionNotifier(store, cfg, nil, logNotif)
}
