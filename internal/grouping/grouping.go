// Package grouping 计算查看器需要的三个派生视图：同文档页、
// 同出版商过刊、同建筑竞品出版商。全部为纯函数，遵守统一的
// 排序约定：发行日期倒序，日期相同时保持输入中先出现者在前。
package grouping

import (
	"sort"

	"lease-radar/internal/model"
)

// DocumentPages 返回与焦点记录同属一份扫描文档的所有带图页，
// 按页码升序，重复页码只保留先出现的一条。
func DocumentPages(all []model.Listing, focal model.Listing) []model.Listing {
	if focal.DocumentID == "" {
		return nil
	}

	seen := make(map[int]struct{})
	pages := make([]model.Listing, 0)
	for _, item := range all {
		if item.DocumentID != focal.DocumentID || !item.HasPageImage() {
			continue
		}
		if _, ok := seen[item.PageNum]; ok {
			continue
		}
		seen[item.PageNum] = struct{}{}
		pages = append(pages, item)
	}

	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].PageNum < pages[j].PageNum
	})
	return pages
}

// ArchiveIssues 返回同一 (source, buildingName) 的历史期刊，
// 按 (publishDate, documentId) 去重（先出现者保留），发行日期倒序。
func ArchiveIssues(all []model.Listing, focal model.Listing) []model.Listing {
	if focal.Source == "" || focal.BuildingName == "" {
		return nil
	}

	seen := make(map[string]struct{})
	issues := make([]model.Listing, 0)
	for _, item := range all {
		if item.Source != focal.Source || item.BuildingName != focal.BuildingName || !item.HasPageImage() {
			continue
		}
		key := item.PublishDate + "_" + item.DocumentID
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		issues = append(issues, item)
	}

	sortByPublishDateDesc(issues)
	return issues
}

// CompetingPublishers 在给定范围（通常是当前检索结果集，而非全量数据）内
// 返回同一建筑各出版商的最新一条记录，发行日期倒序。焦点记录自己的
// 出版商也包含在内，游标由此能表达"当前正在自家资料上"。
func CompetingPublishers(scope []model.Listing, focal model.Listing) []model.Listing {
	if focal.BuildingName == "" {
		return nil
	}

	index := make(map[string]int)
	latest := make([]model.Listing, 0)
	for _, item := range scope {
		if item.BuildingName != focal.BuildingName || !item.HasPageImage() {
			continue
		}
		i, ok := index[item.Source]
		if !ok {
			index[item.Source] = len(latest)
			latest = append(latest, item)
			continue
		}
		// 仅在严格更新时替换；日期相同保留先出现的一条。
		if model.ParsePublishDate(item.PublishDate).After(model.ParsePublishDate(latest[i].PublishDate)) {
			latest[i] = item
		}
	}

	sortByPublishDateDesc(latest)
	return latest
}

// sortByPublishDateDesc 发行日期倒序稳定排序，无法解析的日期排在最后。
func sortByPublishDateDesc(items []model.Listing) {
	sort.SliceStable(items, func(i, j int) bool {
		return model.ParsePublishDate(items[i].PublishDate).After(model.ParsePublishDate(items[j].PublishDate))
	})
}
