package catalog

import (
	"encoding/json"
	"sort"

	"lease-radar/internal/model"
)

// schemaKey 是 vacancies 外层映射中的保留伪条目，合并时跳过。
const schemaKey = "_schema"

// Merge 将两份原始映射合并为扁平的展示记录列表。纯函数。
// 规则：
//   - 跳过外层保留键 _schema；
//   - 跳过无法解码或 buildingName 为空的内层条目；
//   - buildingId 找不到建筑信息时降级为零值字段，不报错；
//   - Go 的 map 迭代无序，这里对内外层键排序以保证输出确定。
func Merge(raw model.RawSnapshot) []model.Listing {
	buildingIDs := make([]string, 0, len(raw.Vacancies))
	for id := range raw.Vacancies {
		if id == schemaKey {
			continue
		}
		buildingIDs = append(buildingIDs, id)
	}
	sort.Strings(buildingIDs)

	merged := make([]model.Listing, 0, len(buildingIDs))
	for _, buildingID := range buildingIDs {
		var group map[string]json.RawMessage
		if err := json.Unmarshal(raw.Vacancies[buildingID], &group); err != nil {
			continue // 整组结构不规范，跳过
		}

		keys := make([]string, 0, len(group))
		for k := range group {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		building := raw.Buildings[buildingID]

		for _, vacancyKey := range keys {
			var v model.Vacancy
			if err := json.Unmarshal(group[vacancyKey], &v); err != nil {
				continue
			}
			if v.BuildingName == "" {
				continue
			}
			if v.PageNum <= 0 {
				v.PageNum = 1
			}

			merged = append(merged, model.Listing{
				ID:         buildingID + "_" + vacancyKey,
				BuildingID: buildingID,
				VacancyKey: vacancyKey,

				BuildingName:  v.BuildingName,
				Floor:         v.Floor,
				ExclusiveArea: v.ExclusiveArea,
				RentArea:      v.RentArea,
				Source:        v.Source,
				PageImageURL:  v.PageImageURL,
				PageNum:       v.PageNum,
				DocumentID:    v.DocumentID,
				MoveInDate:    v.MoveInDate,
				PublishDate:   v.PublishDate,
				DepositPy:     v.DepositPy,
				RentPy:        v.RentPy,
				MaintenancePy: v.MaintenancePy,

				Address:          building.Address,
				NearbyStation:    building.NearbyStation,
				Coordinates:      building.Coordinates,
				Region:           building.Region,
				CompletionYear:   building.CompletionYear,
				TotalFloors:      building.TotalFloors,
				TypicalFloorArea: building.TypicalFloorArea,
			})
		}
	}
	return merged
}
