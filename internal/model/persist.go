package model

import (
	"time"

	"gorm.io/datatypes"
)

// Snapshot 持久化最近一次抓取的原始数据，用于重启后在缓存窗口内免重新抓取。
type Snapshot struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Buildings datatypes.JSON `json:"buildings"`
	Vacancies datatypes.JSON `json:"vacancies"`
	FetchedAt time.Time      `json:"fetched_at"`
	CreatedAt time.Time      `json:"created_at"`
}

// Subscription 表示一条新资料邮件订阅。
// Filters 为检索条件（buildingName/district/station/source 子串匹配）。
type Subscription struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	Email     string            `json:"email"`
	Channel   string            `json:"channel"`
	Filters   datatypes.JSONMap `json:"filters"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
