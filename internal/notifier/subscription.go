package notifier

import (
	"context"
	"fmt"
	"strings"

	"lease-radar/internal/model"
)

// SubscriptionStore 定义订阅读取接口。
type SubscriptionStore interface {
	ListSubscriptions(ctx context.Context) ([]model.Subscription, error)
}

// listingNotifier 提供统一通知接口。
type listingNotifier interface {
	Notify(ctx context.Context, listings []model.Listing) error
}

// SubscriptionNotifier 会按每条订阅的检索条件过滤后推送通知。
type SubscriptionNotifier struct {
	store    SubscriptionStore
	emailCfg EmailConfig
	sender   EmailSender
	fallback listingNotifier
}

// NewSubscriptionNotifier 创建实例。
func NewSubscriptionNotifier(store SubscriptionStore, cfg EmailConfig, sender EmailSender, fallback listingNotifier) *SubscriptionNotifier {
	return &SubscriptionNotifier{
		store:    store,
		emailCfg: cfg,
		sender:   sender,
		fallback: fallback,
	}
}

// Notify 根据订阅过滤并发送消息；无订阅时退回 fallback。
func (n *SubscriptionNotifier) Notify(ctx context.Context, listings []model.Listing) error {
	if len(listings) == 0 || n.store == nil {
		return nil
	}

	subs, err := n.store.ListSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}
	if len(subs) == 0 {
		if n.fallback != nil {
			return n.fallback.Notify(ctx, listings)
		}
		return nil
	}

	for _, sub := range subs {
		matches := filterBySubscription(sub, listings)
		if len(matches) == 0 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(sub.Channel)) {
		case "email", "":
			cfg := n.emailCfg
			cfg.To = []string{sub.Email}
			email := NewEmailNotifier(cfg, n.sender)
			if err := email.Notify(ctx, matches); err != nil {
				return err
			}
		default:
			continue
		}
	}

	return nil
}

func filterBySubscription(sub model.Subscription, listings []model.Listing) []model.Listing {
	if len(sub.Filters) == 0 {
		return listings
	}
	filtered := make([]model.Listing, 0, len(listings))
	for _, l := range listings {
		if listingMatches(l, sub.Filters) {
			filtered = append(filtered, l)
		}
	}
	return filtered
}

// listingMatches 按订阅条件做大小写不敏感子串匹配，条件之间 AND 关联。
func listingMatches(l model.Listing, filters map[string]any) bool {
	for key, raw := range filters {
		needle, ok := raw.(string)
		if !ok || strings.TrimSpace(needle) == "" {
			continue
		}
		var haystack string
		switch key {
		case "buildingName":
			haystack = l.BuildingName
		case "district":
			haystack = l.Address
		case "station":
			haystack = l.NearbyStation
		case "source":
			haystack = l.Source
		default:
			continue
		}
		if !strings.Contains(strings.ToLower(haystack), strings.ToLower(needle)) {
			return false
		}
	}
	return true
}
