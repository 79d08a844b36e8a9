package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"lease-radar/internal/badge"
	"lease-radar/internal/catalog"
	"lease-radar/internal/model"
	"lease-radar/internal/subscription"
	"lease-radar/internal/viewer"
)

// Catalog 抽象数据目录接口。
type Catalog interface {
	Listings(ctx context.Context) ([]model.Listing, error)
	Search(ctx context.Context, q catalog.Query) ([]model.Listing, error)
	SuggestBuildings(ctx context.Context, query string) ([]catalog.BuildingSuggestion, error)
	SuggestDistricts(ctx context.Context, query string) ([]string, error)
	SuggestStations(ctx context.Context, query string) ([]string, error)
	Sources(ctx context.Context) ([]string, error)
	LatestPublish(ctx context.Context) (catalog.PublishMonth, bool, error)
}

// Viewer 抽象查看器会话接口。
type Viewer interface {
	Open(ctx context.Context, listingID string, scopeIDs []string) (viewer.State, error)
	Close(id string) error
	State(id string) (viewer.State, error)
	SwitchPage(ctx context.Context, id string, dir viewer.Direction) (viewer.State, error)
	SwitchArchive(ctx context.Context, id string, index int) (viewer.State, error)
	SwitchPublisher(ctx context.Context, id string, dir viewer.Direction) (viewer.State, error)
}

// Refresher 抽象手动刷新接口。
type Refresher interface {
	RunOnce(ctx context.Context) (int, error)
}

// SubscriptionService 处理订阅创建。
type SubscriptionService interface {
	Create(ctx context.Context, req subscription.Request) (model.Subscription, error)
}

// SourceInfo 是出版商及其徽章颜色。
type SourceInfo struct {
	Source string `json:"source"`
	Color  string `json:"color"`
}

// MetaResponse 暴露前端元数据。
type MetaResponse struct {
	LatestPublish string `json:"latest_publish"`
	HasData       bool   `json:"has_data"`
	ListingCount  int    `json:"listing_count"`
}

// Marker 是地图组件的渲染负载。
type Marker struct {
	Lat   float64    `json:"lat"`
	Lng   float64    `json:"lng"`
	Label string     `json:"label"`
	Info  MarkerInfo `json:"info"`
}

// MarkerInfo 是标记的信息窗内容。
type MarkerInfo struct {
	BuildingName  string  `json:"buildingName"`
	Floor         string  `json:"floor"`
	ExclusiveArea float64 `json:"exclusiveArea"`
	Address       string  `json:"address"`
	Source        string  `json:"source"`
	BadgeColor    string  `json:"badgeColor"`
}

// NewHandler 构造 HTTP 多路复用器。
func NewHandler(cat Catalog, view Viewer, refresher Refresher, subs SubscriptionService) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// 全量列表（"전체 보기"），分页返回。
	mux.HandleFunc("/api/listings", func(w http.ResponseWriter, r *http.Request) {
		all, err := cat.Listings(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writePage(w, r, all)
	})

	// 检索。没有任何有效条件时在这一层拒绝，不落到查询引擎。
	mux.HandleFunc("/api/search", func(w http.ResponseWriter, r *http.Request) {
		q, hasCriteria := parseQuery(r)
		if !hasCriteria {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "search criteria required"})
			return
		}
		results, err := cat.Search(r.Context(), q)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writePage(w, r, results)
	})

	mux.HandleFunc("/api/suggest/buildings", func(w http.ResponseWriter, r *http.Request) {
		items, err := cat.SuggestBuildings(r.Context(), r.URL.Query().Get("q"))
		writeSuggestions(w, items, err)
	})
	mux.HandleFunc("/api/suggest/districts", func(w http.ResponseWriter, r *http.Request) {
		items, err := cat.SuggestDistricts(r.Context(), r.URL.Query().Get("q"))
		writeSuggestions(w, items, err)
	})
	mux.HandleFunc("/api/suggest/stations", func(w http.ResponseWriter, r *http.Request) {
		items, err := cat.SuggestStations(r.Context(), r.URL.Query().Get("q"))
		writeSuggestions(w, items, err)
	})

	mux.HandleFunc("/api/sources", func(w http.ResponseWriter, r *http.Request) {
		sources, err := cat.Sources(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		infos := make([]SourceInfo, 0, len(sources))
		for _, src := range sources {
			infos = append(infos, SourceInfo{Source: src, Color: badge.Color(src)})
		}
		writeJSON(w, http.StatusOK, infos)
	})

	mux.HandleFunc("/api/meta", func(w http.ResponseWriter, r *http.Request) {
		all, err := cat.Listings(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		latest, ok, err := cat.LatestPublish(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		resp := MetaResponse{HasData: ok, ListingCount: len(all)}
		if ok {
			resp.LatestPublish = latest.String()
		}
		writeJSON(w, http.StatusOK, resp)
	})

	mux.HandleFunc("/api/refresh", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		created, err := refresher.RunOnce(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"created": created})
	})

	mux.HandleFunc("/api/map/markers", func(w http.ResponseWriter, r *http.Request) {
		ids := splitIDs(r.URL.Query().Get("ids"))
		if len(ids) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ids required"})
			return
		}
		all, err := cat.Listings(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		byID := make(map[string]model.Listing, len(all))
		for _, l := range all {
			byID[l.ID] = l
		}
		markers := make([]Marker, 0, len(ids))
		for _, id := range ids {
			l, ok := byID[id]
			if !ok || l.Coordinates == nil {
				continue
			}
			markers = append(markers, Marker{
				Lat:   l.Coordinates.Lat,
				Lng:   l.Coordinates.Lng,
				Label: l.BuildingName,
				Info: MarkerInfo{
					BuildingName:  l.BuildingName,
					Floor:         l.Floor,
					ExclusiveArea: l.ExclusiveArea,
					Address:       l.Address,
					Source:        l.Source,
					BadgeColor:    badge.Color(l.Source),
				},
			})
		}
		writeJSON(w, http.StatusOK, markers)
	})

	mux.HandleFunc("/api/viewer", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			ListingID string   `json:"listing_id"`
			ScopeIDs  []string `json:"scope_ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
			return
		}
		state, err := view.Open(r.Context(), req.ListingID, req.ScopeIDs)
		if err != nil {
			writeViewerError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, state)
	})

	mux.HandleFunc("/api/viewer/", func(w http.ResponseWriter, r *http.Request) {
		handleViewerSubroute(w, r, view)
	})

	webFS := http.FileServer(http.Dir("web"))
	mux.Handle("/static/", http.StripPrefix("/static/", webFS))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			webFS.ServeHTTP(w, r)
			return
		}
		path := filepath.Clean("web/index.html")
		data, err := os.ReadFile(path)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]string{"message": "lease radar api"})
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	})

	if subs != nil {
		mux.HandleFunc("/api/subscriptions", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			var req subscription.Request
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
				return
			}
			if _, err := subs.Create(r.Context(), req); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
		})
	}

	return mux
}

// handleViewerSubroute 解析 /api/viewer/{id}[/page|/archive|/publisher]。
func handleViewerSubroute(w http.ResponseWriter, r *http.Request, view Viewer) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/viewer/")
	parts := strings.SplitN(rest, "/", 2)
	id := parts[0]
	if id == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			state, err := view.State(id)
			if err != nil {
				writeViewerError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, state)
		case http.MethodDelete:
			if err := view.Close(id); err != nil {
				writeViewerError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	switch parts[1] {
	case "page":
		dir, ok := decodeDirection(w, r)
		if !ok {
			return
		}
		state, err := view.SwitchPage(r.Context(), id, dir)
		if err != nil {
			writeViewerError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	case "archive":
		var req struct {
			Index int `json:"index"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
			return
		}
		state, err := view.SwitchArchive(r.Context(), id, req.Index)
		if err != nil {
			writeViewerError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	case "publisher":
		dir, ok := decodeDirection(w, r)
		if !ok {
			return
		}
		state, err := view.SwitchPublisher(r.Context(), id, dir)
		if err != nil {
			writeViewerError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func decodeDirection(w http.ResponseWriter, r *http.Request) (viewer.Direction, bool) {
	var req struct {
		Direction string `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return 0, false
	}
	dir, err := viewer.ParseDirection(req.Direction)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return 0, false
	}
	return dir, true
}

func writeViewerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, viewer.ErrSessionNotFound), errors.Is(err, viewer.ErrListingNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, viewer.ErrNoPageImage):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

// parseQuery 解析检索参数，第二个返回值指示是否提供了任何有效条件。
func parseQuery(r *http.Request) (catalog.Query, bool) {
	values := r.URL.Query()
	q := catalog.Query{
		BuildingName: strings.TrimSpace(values.Get("buildingName")),
		District:     strings.TrimSpace(values.Get("district")),
		Station:      strings.TrimSpace(values.Get("station")),
		Source:       strings.TrimSpace(values.Get("source")),
	}
	if v, err := strconv.ParseFloat(values.Get("areaFrom"), 64); err == nil && v > 0 {
		q.AreaFrom = v
	}
	if v, err := strconv.ParseFloat(values.Get("areaTo"), 64); err == nil && v > 0 {
		q.AreaTo = v
	}
	return q, !q.IsZero()
}

func writePage(w http.ResponseWriter, r *http.Request, results []model.Listing) {
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			if v > 100 {
				v = 100
			}
			limit = v
		}
	}
	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	total := len(results)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	w.Header().Set("X-Page", strconv.Itoa(page))
	w.Header().Set("X-Limit", strconv.Itoa(limit))
	w.Header().Set("X-Has-More", strconv.FormatBool(end < total))
	w.Header().Set("X-Total", strconv.Itoa(total))
	writeJSON(w, http.StatusOK, results[start:end])
}

func writeSuggestions[T any](w http.ResponseWriter, items []T, err error) {
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if items == nil {
		items = []T{}
	}
	writeJSON(w, http.StatusOK, items)
}

func splitIDs(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
