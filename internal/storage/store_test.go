package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/datatypes"

	"lease-radar/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	fetchedAt := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	snap := model.RawSnapshot{
		Buildings: map[string]model.Building{
			"b1": {Address: "서울 강남구 테헤란로 123", NearbyStation: "역삼역"},
		},
		Vacancies: map[string]json.RawMessage{
			"b1": json.RawMessage(`{"v1":{"buildingName":"테헤란타워"}}`),
		},
		FetchedAt: fetchedAt,
	}

	if err := store.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	got, ok, err := store.LatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("LatestSnapshot failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a stored snapshot")
	}
	if !got.FetchedAt.Equal(fetchedAt) {
		t.Fatalf("fetchedAt = %v, want %v", got.FetchedAt, fetchedAt)
	}
	if got.Buildings["b1"].Address != "서울 강남구 테헤란로 123" {
		t.Fatalf("unexpected buildings: %+v", got.Buildings)
	}
	var group map[string]model.Vacancy
	if err := json.Unmarshal(got.Vacancies["b1"], &group); err != nil {
		t.Fatalf("decode vacancies: %v", err)
	}
	if group["v1"].BuildingName != "테헤란타워" {
		t.Fatalf("unexpected vacancies: %+v", group)
	}
}

func TestSaveSnapshotKeepsOnlyLatest(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		snap := model.RawSnapshot{
			Buildings: map[string]model.Building{},
			Vacancies: map[string]json.RawMessage{},
			FetchedAt: time.Date(2026, 1, 10+i, 9, 0, 0, 0, time.UTC),
		}
		if err := store.SaveSnapshot(ctx, snap); err != nil {
			t.Fatalf("SaveSnapshot %d failed: %v", i, err)
		}
	}

	got, ok, err := store.LatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("LatestSnapshot failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a stored snapshot")
	}
	if got.FetchedAt.Day() != 12 {
		t.Fatalf("expected the last snapshot to win, got %v", got.FetchedAt)
	}

	var count int64
	if err := store.db.Model(&model.Snapshot{}).Count(&count).Error; err != nil {
		t.Fatalf("count snapshots: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 stored row, got %d", count)
	}
}

func TestLatestSnapshotEmpty(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	_, ok, err := store.LatestSnapshot(context.Background())
	if err != nil {
		t.Fatalf("LatestSnapshot failed: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false on an empty store")
	}
}

func TestSubscriptions(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	sub := &model.Subscription{
		Email:   "tenant@example.com",
		Channel: "email",
		Filters: datatypes.JSONMap{"district": "강남구"},
	}
	if err := store.CreateSubscription(ctx, sub); err != nil {
		t.Fatalf("CreateSubscription failed: %v", err)
	}
	if sub.ID == 0 {
		t.Fatal("expected an assigned subscription ID")
	}

	subs, err := store.ListSubscriptions(ctx)
	if err != nil {
		t.Fatalf("ListSubscriptions failed: %v", err)
	}
	if len(subs) != 1 || subs[0].Email != "tenant@example.com" {
		t.Fatalf("unexpected subscriptions: %+v", subs)
	}
	if subs[0].Filters["district"] != "강남구" {
		t.Fatalf("unexpected filters: %+v", subs[0].Filters)
	}
}
