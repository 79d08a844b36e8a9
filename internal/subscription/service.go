package subscription

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"lease-radar/internal/model"

	"gorm.io/datatypes"
)

// Store 定义持久化接口。
type Store interface {
	CreateSubscription(ctx context.Context, sub *model.Subscription) error
}

// Config 控制可用渠道。
type Config struct {
	AllowedChannels []string `yaml:"allowed_channels" json:"allowed_channels"`
}

// Request 表示前端订阅请求。Filters 为检索条件子串。
type Request struct {
	Email        string `json:"email"`
	Channel      string `json:"channel"`
	BuildingName string `json:"buildingName"`
	District     string `json:"district"`
	Station      string `json:"station"`
	Source       string `json:"source"`
}

// Service 负责验证与写入订阅偏好。
type Service struct {
	store    Store
	channels map[string]struct{}
}

// NewService 创建订阅服务。
func NewService(store Store, cfg Config) *Service {
	channelMap := make(map[string]struct{})
	for _, ch := range cfg.AllowedChannels {
		if trimmed := strings.ToLower(strings.TrimSpace(ch)); trimmed != "" {
			channelMap[trimmed] = struct{}{}
		}
	}
	if len(channelMap) == 0 {
		channelMap["email"] = struct{}{}
	}
	return &Service{store: store, channels: channelMap}
}

// Create 校验请求并写入数据库。
func (s *Service) Create(ctx context.Context, req Request) (model.Subscription, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return model.Subscription{}, fmt.Errorf("email required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return model.Subscription{}, fmt.Errorf("invalid email: %w", err)
	}

	channel := strings.ToLower(strings.TrimSpace(req.Channel))
	if channel == "" {
		channel = "email"
	}
	if _, ok := s.channels[channel]; !ok {
		return model.Subscription{}, fmt.Errorf("unsupported channel %s", channel)
	}

	filters := datatypes.JSONMap{}
	for key, value := range map[string]string{
		"buildingName": req.BuildingName,
		"district":     req.District,
		"station":      req.Station,
		"source":       req.Source,
	} {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			filters[key] = trimmed
		}
	}

	sub := model.Subscription{
		Email:   email,
		Channel: channel,
		Filters: filters,
	}
	if err := s.store.CreateSubscription(ctx, &sub); err != nil {
		return model.Subscription{}, err
	}
	return sub, nil
}
