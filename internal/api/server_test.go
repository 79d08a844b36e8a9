package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lease-radar/internal/catalog"
	"lease-radar/internal/model"
	"lease-radar/internal/subscription"
	"lease-radar/internal/viewer"
)

type stubCatalog struct {
	listings []model.Listing
	err      error
	lastQ    catalog.Query
}

func (c *stubCatalog) Listings(ctx context.Context) ([]model.Listing, error) {
	return c.listings, c.err
}

func (c *stubCatalog) Search(ctx context.Context, q catalog.Query) ([]model.Listing, error) {
	c.lastQ = q
	if c.err != nil {
		return nil, c.err
	}
	results := make([]model.Listing, 0)
	for _, l := range c.listings {
		if q.District != "" && !strings.Contains(l.Address, q.District) {
			continue
		}
		results = append(results, l)
	}
	return results, nil
}

func (c *stubCatalog) SuggestBuildings(ctx context.Context, query string) ([]catalog.BuildingSuggestion, error) {
	if query == "강남" {
		return []catalog.BuildingSuggestion{{Name: "강남타워", BuildingID: "b1"}}, nil
	}
	return nil, nil
}

func (c *stubCatalog) SuggestDistricts(ctx context.Context, query string) ([]string, error) {
	return nil, c.err
}

func (c *stubCatalog) SuggestStations(ctx context.Context, query string) ([]string, error) {
	return []string{"역삼역"}, nil
}

func (c *stubCatalog) Sources(ctx context.Context) ([]string, error) {
	return []string{"CBRE", "JLL"}, nil
}

func (c *stubCatalog) LatestPublish(ctx context.Context) (catalog.PublishMonth, bool, error) {
	if len(c.listings) == 0 {
		return catalog.PublishMonth{}, false, nil
	}
	return catalog.PublishMonth{Year: 2026, Month: 1}, true, nil
}

type stubViewer struct {
	state   viewer.State
	err     error
	closed  []string
	opened  []string
	scopeID [][]string
}

func (v *stubViewer) Open(ctx context.Context, listingID string, scopeIDs []string) (viewer.State, error) {
	v.opened = append(v.opened, listingID)
	v.scopeID = append(v.scopeID, scopeIDs)
	return v.state, v.err
}

func (v *stubViewer) Close(id string) error {
	v.closed = append(v.closed, id)
	return v.err
}

func (v *stubViewer) State(id string) (viewer.State, error) {
	return v.state, v.err
}

func (v *stubViewer) SwitchPage(ctx context.Context, id string, dir viewer.Direction) (viewer.State, error) {
	return v.state, v.err
}

func (v *stubViewer) SwitchArchive(ctx context.Context, id string, index int) (viewer.State, error) {
	return v.state, v.err
}

func (v *stubViewer) SwitchPublisher(ctx context.Context, id string, dir viewer.Direction) (viewer.State, error) {
	return v.state, v.err
}

type stubRefresher struct {
	created int
	err     error
}

func (r *stubRefresher) RunOnce(ctx context.Context) (int, error) {
	return r.created, r.err
}

type stubSubs struct {
	err error
}

func (s *stubSubs) Create(ctx context.Context, req subscription.Request) (model.Subscription, error) {
	return model.Subscription{ID: 1, Email: req.Email}, s.err
}

func testListings(n int) []model.Listing {
	out := make([]model.Listing, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.Listing{
			ID:           "b1_v" + string(rune('a'+i)),
			BuildingName: "강남타워",
			Address:      "서울 강남구 테헤란로 152",
			Coordinates:  &model.Coordinates{Lat: 37.5, Lng: 127.03},
			Source:       "JLL",
		})
	}
	return out
}

func newTestHandler(cat Catalog, view Viewer) http.Handler {
	if cat == nil {
		cat = &stubCatalog{listings: testListings(3)}
	}
	if view == nil {
		view = &stubViewer{state: viewer.State{ID: "sess-1"}}
	}
	return NewHandler(cat, view, &stubRefresher{created: 2}, &stubSubs{})
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, newTestHandler(nil, nil), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestSearchRequiresCriteria(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, newTestHandler(nil, nil), http.MethodGet, "/api/search", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "search criteria required") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}

	// 空白条件不算条件。
	rec = doRequest(t, newTestHandler(nil, nil), http.MethodGet, "/api/search?district=%20%20", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank criteria: status = %d, want 400", rec.Code)
	}
}

func TestSearchPassesParsedQuery(t *testing.T) {
	t.Parallel()

	cat := &stubCatalog{listings: testListings(1)}
	h := newTestHandler(cat, nil)

	rec := doRequest(t, h, http.MethodGet, "/api/search?district=%EA%B0%95%EB%82%A8%EA%B5%AC&areaFrom=50&areaTo=100", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if cat.lastQ.District != "강남구" || cat.lastQ.AreaFrom != 50 || cat.lastQ.AreaTo != 100 {
		t.Fatalf("unexpected parsed query: %+v", cat.lastQ)
	}
}

func TestListingsPagination(t *testing.T) {
	t.Parallel()

	cat := &stubCatalog{listings: testListings(25)}
	h := newTestHandler(cat, nil)

	rec := doRequest(t, h, http.MethodGet, "/api/listings", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("X-Total"); got != "25" {
		t.Fatalf("X-Total = %s, want 25", got)
	}
	if got := rec.Header().Get("X-Has-More"); got != "true" {
		t.Fatalf("X-Has-More = %s, want true", got)
	}
	var pageItems []model.Listing
	if err := json.Unmarshal(rec.Body.Bytes(), &pageItems); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(pageItems) != 20 {
		t.Fatalf("expected default limit 20, got %d", len(pageItems))
	}

	rec = doRequest(t, h, http.MethodGet, "/api/listings?page=2&limit=20", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &pageItems); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(pageItems) != 5 {
		t.Fatalf("expected 5 items on page 2, got %d", len(pageItems))
	}
	if got := rec.Header().Get("X-Has-More"); got != "false" {
		t.Fatalf("X-Has-More = %s, want false", got)
	}
}

func TestSuggestEndpoints(t *testing.T) {
	t.Parallel()

	h := newTestHandler(nil, nil)

	rec := doRequest(t, h, http.MethodGet, "/api/suggest/buildings?q=%EA%B0%95%EB%82%A8", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var buildings []catalog.BuildingSuggestion
	if err := json.Unmarshal(rec.Body.Bytes(), &buildings); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(buildings) != 1 || buildings[0].Name != "강남타워" {
		t.Fatalf("unexpected suggestions: %+v", buildings)
	}

	// 无候选时返回空数组而非 null。
	rec = doRequest(t, h, http.MethodGet, "/api/suggest/districts?q=x", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %s", rec.Body.String())
	}
}

func TestSourcesIncludeBadgeColors(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, newTestHandler(nil, nil), http.MethodGet, "/api/sources", "")
	var infos []SourceInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &infos); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 sources, got %+v", infos)
	}
	for _, info := range infos {
		if !strings.HasPrefix(info.Color, "#") {
			t.Fatalf("source %s missing badge color: %+v", info.Source, info)
		}
	}
}

func TestMeta(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, newTestHandler(nil, nil), http.MethodGet, "/api/meta", "")
	var meta MetaResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &meta); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !meta.HasData || meta.LatestPublish != "2026.01" || meta.ListingCount != 3 {
		t.Fatalf("unexpected meta: %+v", meta)
	}
}

func TestRefreshEndpoint(t *testing.T) {
	t.Parallel()

	h := newTestHandler(nil, nil)

	rec := doRequest(t, h, http.MethodPost, "/api/refresh", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"created":2`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}

	rec = doRequest(t, h, http.MethodGet, "/api/refresh", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET refresh: status = %d, want 405", rec.Code)
	}
}

func TestMapMarkers(t *testing.T) {
	t.Parallel()

	cat := &stubCatalog{listings: testListings(2)}
	h := newTestHandler(cat, nil)

	rec := doRequest(t, h, http.MethodGet, "/api/map/markers?ids=b1_va,missing", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var markers []Marker
	if err := json.Unmarshal(rec.Body.Bytes(), &markers); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(markers) != 1 || markers[0].Label != "강남타워" || markers[0].Info.BadgeColor == "" {
		t.Fatalf("unexpected markers: %+v", markers)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/map/markers", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing ids: status = %d, want 400", rec.Code)
	}
}

func TestViewerOpenAndState(t *testing.T) {
	t.Parallel()

	view := &stubViewer{state: viewer.State{ID: "sess-1", DisplayPage: 1}}
	h := newTestHandler(nil, view)

	rec := doRequest(t, h, http.MethodPost, "/api/viewer", `{"listing_id":"b1_v1","scope_ids":["b1_v1","b2_v1"]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if len(view.opened) != 1 || view.opened[0] != "b1_v1" {
		t.Fatalf("unexpected open calls: %+v", view.opened)
	}
	if len(view.scopeID[0]) != 2 {
		t.Fatalf("scope ids not forwarded: %+v", view.scopeID)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/viewer/sess-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("state: status = %d, want 200", rec.Code)
	}

	rec = doRequest(t, h, http.MethodDelete, "/api/viewer/sess-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("close: status = %d, want 200", rec.Code)
	}
	if len(view.closed) != 1 || view.closed[0] != "sess-1" {
		t.Fatalf("unexpected close calls: %+v", view.closed)
	}
}

func TestViewerErrorsMapToStatusCodes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want int
	}{
		{viewer.ErrListingNotFound, http.StatusNotFound},
		{viewer.ErrSessionNotFound, http.StatusNotFound},
		{viewer.ErrNoPageImage, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		h := newTestHandler(nil, &stubViewer{err: c.err})
		rec := doRequest(t, h, http.MethodPost, "/api/viewer", `{"listing_id":"x"}`)
		if rec.Code != c.want {
			t.Fatalf("error %v: status = %d, want %d", c.err, rec.Code, c.want)
		}
	}
}

func TestViewerNavigationRoutes(t *testing.T) {
	t.Parallel()

	view := &stubViewer{state: viewer.State{ID: "sess-1", DisplayPage: 2}}
	h := newTestHandler(nil, view)

	rec := doRequest(t, h, http.MethodPost, "/api/viewer/sess-1/page", `{"direction":"next"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("page: status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, h, http.MethodPost, "/api/viewer/sess-1/page", `{"direction":"sideways"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad direction: status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/viewer/sess-1/archive", `{"index":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("archive: status = %d, want 200", rec.Code)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/viewer/sess-1/publisher", `{"direction":"prev"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("publisher: status = %d, want 200", rec.Code)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/viewer/sess-1/unknown", `{}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown subroute: status = %d, want 404", rec.Code)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/viewer/sess-1/page", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET page: status = %d, want 405", rec.Code)
	}
}

func TestSubscriptionEndpoint(t *testing.T) {
	t.Parallel()

	h := newTestHandler(nil, nil)

	rec := doRequest(t, h, http.MethodPost, "/api/subscriptions", `{"email":"tenant@example.com","district":"강남구"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, h, http.MethodPost, "/api/subscriptions", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad payload: status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/subscriptions", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET: status = %d, want 405", rec.Code)
	}
}
