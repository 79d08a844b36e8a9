package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"lease-radar/internal/model"

	"golang.org/x/sync/errgroup"
)

// Config 定义上游 KV 存储抓取配置。
type Config struct {
	BaseURL   string `yaml:"base_url" json:"base_url"`
	AuthToken string `yaml:"auth_token" json:"auth_token"`
}

// SnapshotFetcher 抓取统一接口。
type SnapshotFetcher interface {
	Fetch(ctx context.Context) (model.RawSnapshot, error)
}

// KVFetcher 从 Firebase RTDB 风格的 REST 接口整体抓取 buildings 与 vacancies。
type KVFetcher struct {
	baseURL string
	token   string
	client  *http.Client
	now     func() time.Time
	logger  *log.Logger
}

// NewKVFetcher 创建抓取器，baseURL 形如 https://xxx.firebasedatabase.app。
func NewKVFetcher(baseURL string, cfg Config, client *http.Client) *KVFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &KVFetcher{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   cfg.AuthToken,
		client:  client,
		now:     time.Now,
		logger:  log.New(os.Stdout, "[fetcher] ", log.LstdFlags),
	}
}

// Fetch 并发抓取两份整体快照，任一失败则整体失败。
func (f *KVFetcher) Fetch(ctx context.Context) (model.RawSnapshot, error) {
	snap := model.RawSnapshot{FetchedAt: f.now()}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		body, err := f.getKey(ctx, "buildings")
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &snap.Buildings); err != nil {
			return fmt.Errorf("decode buildings: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		body, err := f.getKey(ctx, "vacancies")
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &snap.Vacancies); err != nil {
			return fmt.Errorf("decode vacancies: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return model.RawSnapshot{}, err
	}

	f.logf("fetch done buildings=%d vacancy_groups=%d", len(snap.Buildings), len(snap.Vacancies))
	return snap, nil
}

func (f *KVFetcher) getKey(ctx context.Context, key string) ([]byte, error) {
	keyURL, err := f.buildKeyURL(key)
	if err != nil {
		return nil, fmt.Errorf("build url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, keyURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get %s: %w", key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", key, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s body: %w", key, err)
	}
	return body, nil
}

func (f *KVFetcher) buildKeyURL(key string) (string, error) {
	base, err := url.Parse(f.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base: %w", err)
	}
	full, err := base.Parse(key + ".json")
	if err != nil {
		return "", fmt.Errorf("parse key path: %w", err)
	}
	if f.token != "" {
		q := full.Query()
		q.Set("auth", f.token)
		full.RawQuery = q.Encode()
	}
	return full.String(), nil
}

func (f *KVFetcher) logf(format string, args ...any) {
	if f.logger == nil {
		f.logger = log.New(os.Stdout, "[fetcher] ", log.LstdFlags)
	}
	f.logger.Printf(format, args...)
}
