package catalog

import (
	"context"
	"strings"

	"lease-radar/internal/model"
)

// Query 描述检索条件。文本条件为大小写不敏感子串匹配，全部 AND 关联；
// 面积边界含端点，0 表示该侧不限。空 Query 匹配全部记录——
// "必须至少填一个条件"的拦截属于 API 层，不在这里。
type Query struct {
	BuildingName string
	District     string
	Station      string
	AreaFrom     float64
	AreaTo       float64
	Source       string
}

// IsZero 返回是否未提供任何条件。
func (q Query) IsZero() bool {
	return q.BuildingName == "" && q.District == "" && q.Station == "" &&
		q.AreaFrom == 0 && q.AreaTo == 0 && q.Source == ""
}

// Search 过滤合并列表并保持原始顺序返回，零命中不算错误。
func (s *Service) Search(ctx context.Context, q Query) ([]model.Listing, error) {
	all, err := s.Listings(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]model.Listing, 0)
	for _, item := range all {
		if !matches(item, q) {
			continue
		}
		results = append(results, item)
	}
	return results, nil
}

func matches(item model.Listing, q Query) bool {
	if q.BuildingName != "" && !containsFold(item.BuildingName, q.BuildingName) {
		return false
	}
	if q.District != "" && !containsFold(item.Address, q.District) {
		return false
	}
	if q.Station != "" && !containsFold(item.NearbyStation, q.Station) {
		return false
	}
	if q.AreaFrom > 0 && item.ExclusiveArea < q.AreaFrom {
		return false
	}
	if q.AreaTo > 0 && item.ExclusiveArea > q.AreaTo {
		return false
	}
	if q.Source != "" && !containsFold(item.Source, q.Source) {
		return false
	}
	return true
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
