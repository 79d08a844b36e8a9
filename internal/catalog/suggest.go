package catalog

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"lease-radar/internal/model"
)

// suggestionLimit 是自动补全候选数上限。
const suggestionLimit = 10

// 地址分词的三类启发式模式：行政区（…구）、法定洞（…동）、路名（…로/…길）。
// 模式本身不精确，可能给出部分或重叠的词元，这是沿用的既定行为。
var (
	districtGuPattern   = regexp.MustCompile(`[가-힣]+구`)
	districtDongPattern = regexp.MustCompile(`[가-힣]+동`)
	districtRoadPattern = regexp.MustCompile(`[가-힣0-9]+(?:로|길)`)
	stationPattern      = regexp.MustCompile(`[가-힣A-Za-z0-9]+역`)
)

// BuildingSuggestion 是建筑名补全候选。
type BuildingSuggestion struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	BuildingID string `json:"buildingId"`
}

// SuggestBuildings 返回至多 10 个去重后的建筑名候选，按首次出现顺序。
// 空白查询返回空列表，不做全量扫描式补全。
func (s *Service) SuggestBuildings(ctx context.Context, query string) ([]BuildingSuggestion, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	all, err := s.Listings(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	suggestions := make([]BuildingSuggestion, 0, suggestionLimit)
	for _, item := range all {
		if item.BuildingName == "" || !containsFold(item.BuildingName, query) {
			continue
		}
		if _, ok := seen[item.BuildingName]; ok {
			continue
		}
		seen[item.BuildingName] = struct{}{}
		suggestions = append(suggestions, BuildingSuggestion{
			Name:       item.BuildingName,
			Address:    item.Address,
			BuildingID: item.BuildingID,
		})
		if len(suggestions) == suggestionLimit {
			break
		}
	}
	return suggestions, nil
}

// SuggestDistricts 从地址文本按三类模式抽取词元作为候选，排序后截断。
func (s *Service) SuggestDistricts(ctx context.Context, query string) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	all, err := s.Listings(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, item := range all {
		if item.Address == "" {
			continue
		}
		for _, pattern := range []*regexp.Regexp{districtGuPattern, districtDongPattern, districtRoadPattern} {
			token := pattern.FindString(item.Address)
			if token == "" || !containsFold(token, query) {
				continue
			}
			seen[token] = struct{}{}
		}
	}

	tokens := make([]string, 0, len(seen))
	for token := range seen {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	if len(tokens) > suggestionLimit {
		tokens = tokens[:suggestionLimit]
	}
	return tokens, nil
}

// SuggestStations 从邻近车站文本中抽取以"역"结尾的词元作为候选。
func (s *Service) SuggestStations(ctx context.Context, query string) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	all, err := s.Listings(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	stations := make([]string, 0, suggestionLimit)
	for _, item := range all {
		if item.NearbyStation == "" || !containsFold(item.NearbyStation, query) {
			continue
		}
		for _, token := range stationPattern.FindAllString(item.NearbyStation, -1) {
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			stations = append(stations, token)
		}
	}
	if len(stations) > suggestionLimit {
		stations = stations[:suggestionLimit]
	}
	return stations, nil
}

// Sources 返回排序后的出版商（source）列表。
func (s *Service) Sources(ctx context.Context) ([]string, error) {
	all, err := s.Listings(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, item := range all {
		if item.Source != "" {
			seen[item.Source] = struct{}{}
		}
	}
	sources := make([]string, 0, len(seen))
	for src := range seen {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	return sources, nil
}

// PublishMonth 表示最近发行年月。
type PublishMonth struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// String 输出 "YYYY.MM" 形式。
func (p PublishMonth) String() string {
	return fmt.Sprintf("%04d.%02d", p.Year, p.Month)
}

// LatestPublish 扫描全部记录返回最近的发行年月；无任何可解析日期时 ok 为假。
func (s *Service) LatestPublish(ctx context.Context) (PublishMonth, bool, error) {
	all, err := s.Listings(ctx)
	if err != nil {
		return PublishMonth{}, false, err
	}

	latest := model.PublishEpoch
	for _, item := range all {
		if item.PublishDate == "" {
			continue
		}
		if t := model.ParsePublishDate(item.PublishDate); t.After(latest) {
			latest = t
		}
	}
	if latest.Equal(model.PublishEpoch) {
		return PublishMonth{}, false, nil
	}
	return PublishMonth{Year: latest.Year(), Month: int(latest.Month())}, true, nil
}
