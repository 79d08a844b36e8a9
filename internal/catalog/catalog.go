package catalog

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"lease-radar/internal/fetcher"
	"lease-radar/internal/model"
)

// Config 控制合并数据缓存。
type Config struct {
	CacheTTL string `yaml:"cache_ttl" json:"cache_ttl"`
}

// SnapshotStore 持久化最近一次抓取，重启后在缓存窗口内可直接复用。
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap model.RawSnapshot) error
	LatestSnapshot(ctx context.Context) (model.RawSnapshot, bool, error)
}

// Service 负责抓取、合并与时效缓存，是全系统唯一的数据入口。
// 缓存规则：populatedAt 距今不足 TTL 即有效，否则视为缺失并重新抓取合并。
type Service struct {
	fetcher fetcher.SnapshotFetcher
	snaps   SnapshotStore
	ttl     time.Duration
	now     func() time.Time
	logger  *log.Logger

	mu          sync.Mutex
	listings    []model.Listing
	populatedAt time.Time
}

// NewService 创建 Service，snaps 可为 nil（不持久化快照）。
func NewService(f fetcher.SnapshotFetcher, snaps SnapshotStore, cfg Config) *Service {
	ttl := 5 * time.Minute
	if cfg.CacheTTL != "" {
		if d, err := time.ParseDuration(cfg.CacheTTL); err == nil && d > 0 {
			ttl = d
		}
	}
	return &Service{
		fetcher: f,
		snaps:   snaps,
		ttl:     ttl,
		now:     time.Now,
		logger:  log.New(os.Stdout, "[catalog] ", log.LstdFlags),
	}
}

// Listings 返回合并后的完整记录列表，必要时触发抓取与合并。
func (s *Service) Listings(ctx context.Context) ([]model.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.populatedAt.IsZero() && s.now().Sub(s.populatedAt) < s.ttl {
		return s.listings, nil
	}
	if err := s.repopulate(ctx, true); err != nil {
		return nil, err
	}
	return s.listings, nil
}

// Refresh 忽略缓存时效强制抓取合并，返回相对上一份缓存新增的记录。
func (s *Service) Refresh(ctx context.Context) ([]model.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := make(map[string]struct{}, len(s.listings))
	for _, l := range s.listings {
		previous[l.ID] = struct{}{}
	}
	hadCache := !s.populatedAt.IsZero()

	if err := s.repopulate(ctx, false); err != nil {
		return nil, err
	}

	if !hadCache {
		return nil, nil
	}
	var fresh []model.Listing
	for _, l := range s.listings {
		if _, ok := previous[l.ID]; !ok {
			fresh = append(fresh, l)
		}
	}
	return fresh, nil
}

// repopulate 在持锁状态下重建缓存。allowStored 为真时优先复用仍在
// 时效内的持久化快照（冷启动路径）。
func (s *Service) repopulate(ctx context.Context, allowStored bool) error {
	if allowStored && s.populatedAt.IsZero() && s.snaps != nil {
		snap, ok, err := s.snaps.LatestSnapshot(ctx)
		if err != nil {
			s.logger.Printf("load stored snapshot: %v", err)
		} else if ok && s.now().Sub(snap.FetchedAt) < s.ttl {
			s.listings = Merge(snap)
			s.populatedAt = snap.FetchedAt
			s.logger.Printf("reused stored snapshot listings=%d age=%s", len(s.listings), s.now().Sub(snap.FetchedAt).Round(time.Second))
			return nil
		}
	}

	snap, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch snapshot: %w", err)
	}

	s.listings = Merge(snap)
	s.populatedAt = snap.FetchedAt

	if s.snaps != nil {
		if err := s.snaps.SaveSnapshot(ctx, snap); err != nil {
			s.logger.Printf("save snapshot: %v", err)
		}
	}

	s.logger.Printf("merged listings=%d", len(s.listings))
	return nil
}
