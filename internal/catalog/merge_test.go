package catalog

import (
	"encoding/json"
	"testing"

	"lease-radar/internal/model"
)

func rawVacancies(t *testing.T, groups map[string]map[string]model.Vacancy) map[string]json.RawMessage {
	t.Helper()
	out := make(map[string]json.RawMessage, len(groups))
	for id, group := range groups {
		data, err := json.Marshal(group)
		if err != nil {
			t.Fatalf("marshal group %s: %v", id, err)
		}
		out[id] = data
	}
	return out
}

func TestMergeDenormalizesBuildingFields(t *testing.T) {
	t.Parallel()

	raw := model.RawSnapshot{
		Buildings: map[string]model.Building{
			"b1": {Address: "서울 강남구 테헤란로 123", NearbyStation: "역삼역 도보 3분", Region: "강남"},
		},
		Vacancies: rawVacancies(t, map[string]map[string]model.Vacancy{
			"b1": {
				"v1": {BuildingName: "테헤란타워", Floor: "5F", ExclusiveArea: 84.2, Source: "JLL", PublishDate: "26.01"},
			},
		}),
	}

	got := Merge(raw)
	if len(got) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(got))
	}
	l := got[0]
	if l.ID != "b1_v1" || l.BuildingID != "b1" || l.VacancyKey != "v1" {
		t.Fatalf("unexpected identity: %+v", l)
	}
	if l.Address != "서울 강남구 테헤란로 123" || l.NearbyStation != "역삼역 도보 3분" {
		t.Fatalf("building fields not denormalized: %+v", l)
	}
	if l.PageNum != 1 {
		t.Fatalf("missing pageNum should default to 1, got %d", l.PageNum)
	}
}

func TestMergeSkipsSchemaAndInvalidEntries(t *testing.T) {
	t.Parallel()

	vacancies := rawVacancies(t, map[string]map[string]model.Vacancy{
		"b1": {
			"v1": {BuildingName: "본관"},
			"v2": {BuildingName: ""}, // 无建筑名，过滤
		},
		"_schema": {
			"v1": {BuildingName: "스키마"},
		},
	})
	vacancies["b2"] = json.RawMessage(`"not an object"`)
	vacancies["b3"] = json.RawMessage(`{"v1": {"buildingName": "별관"}, "v2": 42}`)

	got := Merge(model.RawSnapshot{Vacancies: vacancies})

	if len(got) != 2 {
		t.Fatalf("expected 2 listings, got %d: %+v", len(got), got)
	}
	if got[0].ID != "b1_v1" || got[1].ID != "b3_v1" {
		t.Fatalf("unexpected listings: %v, %v", got[0].ID, got[1].ID)
	}
}

func TestMergeMissingBuildingFallsBackToZeroValues(t *testing.T) {
	t.Parallel()

	raw := model.RawSnapshot{
		Buildings: map[string]model.Building{},
		Vacancies: rawVacancies(t, map[string]map[string]model.Vacancy{
			"unknown": {"v1": {BuildingName: "고아빌딩", PageNum: 3}},
		}),
	}

	got := Merge(raw)
	if len(got) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(got))
	}
	if got[0].Address != "" || got[0].NearbyStation != "" || got[0].Coordinates != nil {
		t.Fatalf("expected zero building fields, got %+v", got[0])
	}
	if got[0].PageNum != 3 {
		t.Fatalf("explicit pageNum must survive, got %d", got[0].PageNum)
	}
}

func TestMergeIsDeterministic(t *testing.T) {
	t.Parallel()

	raw := model.RawSnapshot{
		Vacancies: rawVacancies(t, map[string]map[string]model.Vacancy{
			"b2": {"v2": {BuildingName: "B동"}, "v1": {BuildingName: "B동"}},
			"b1": {"v1": {BuildingName: "A동"}},
		}),
	}

	first := Merge(raw)
	for i := 0; i < 20; i++ {
		again := Merge(raw)
		for j := range first {
			if first[j].ID != again[j].ID {
				t.Fatalf("merge order not stable: run %d got %v", i, again)
			}
		}
	}
	if first[0].ID != "b1_v1" || first[1].ID != "b2_v1" || first[2].ID != "b2_v2" {
		t.Fatalf("unexpected order: %+v", first)
	}
}
