package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"lease-radar/internal/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Store 封装 SQLite 数据库访问，负责抓取快照与订阅的读写。
type Store struct {
	db *gorm.DB
}

// NewStore 创建 Store 并自动迁移数据表。
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.AutoMigrate(&model.Snapshot{}, &model.Subscription{}); err != nil {
		return nil, fmt.Errorf("auto migrate models: %w", err)
	}

	return &Store{db: db}, nil
}

// Close 关闭底层数据库连接。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	return nil
}

// SaveSnapshot 持久化一次抓取结果，只保留最近一条。
func (s *Store) SaveSnapshot(ctx context.Context, snap model.RawSnapshot) error {
	buildings, err := json.Marshal(snap.Buildings)
	if err != nil {
		return fmt.Errorf("marshal buildings: %w", err)
	}
	vacancies, err := json.Marshal(snap.Vacancies)
	if err != nil {
		return fmt.Errorf("marshal vacancies: %w", err)
	}

	row := model.Snapshot{
		Buildings: buildings,
		Vacancies: vacancies,
		FetchedAt: snap.FetchedAt,
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&model.Snapshot{}).Error; err != nil {
			return fmt.Errorf("clear snapshots: %w", err)
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("create snapshot: %w", err)
		}
		return nil
	})
}

// LatestSnapshot 返回最近一条持久化快照；不存在时第二个返回值为假。
func (s *Store) LatestSnapshot(ctx context.Context) (model.RawSnapshot, bool, error) {
	var row model.Snapshot
	err := s.db.WithContext(ctx).Order("fetched_at DESC").First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return model.RawSnapshot{}, false, nil
	}
	if err != nil {
		return model.RawSnapshot{}, false, fmt.Errorf("load snapshot: %w", err)
	}

	snap := model.RawSnapshot{FetchedAt: row.FetchedAt}
	if err := json.Unmarshal(row.Buildings, &snap.Buildings); err != nil {
		return model.RawSnapshot{}, false, fmt.Errorf("decode buildings: %w", err)
	}
	if err := json.Unmarshal(row.Vacancies, &snap.Vacancies); err != nil {
		return model.RawSnapshot{}, false, fmt.Errorf("decode vacancies: %w", err)
	}
	return snap, true, nil
}

// CreateSubscription 新增订阅。
func (s *Store) CreateSubscription(ctx context.Context, sub *model.Subscription) error {
	if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

// ListSubscriptions 返回所有订阅记录。
func (s *Store) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	var subs []model.Subscription
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}
