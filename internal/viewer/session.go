package viewer

import (
	"sync"
	"sync/atomic"
	"time"

	"lease-radar/internal/badge"
	"lease-radar/internal/grouping"
	"lease-radar/internal/model"
)

// PagingMode 标记会话当前的翻页方式。
type PagingMode string

const (
	// PagingStructural 表示存在结构化的同文档页数据，翻页在其中移动。
	PagingStructural PagingMode = "structural"
	// PagingProbed 表示缺少结构化页数据，翻页靠改写 URL 探测相邻页。
	PagingProbed PagingMode = "probed"
)

// Session 是一次查看器会话的全部状态：焦点记录与三个导航轴。
// 会话是临时的，关闭即销毁，不做任何持久化。
type Session struct {
	id string

	mu      sync.Mutex
	probing atomic.Bool // 页探测进行中，期间新的翻页请求直接丢弃

	focal      model.Listing
	scope      []model.Listing // 打开时的检索结果集，竞品出版商只在其中找
	pages      []model.Listing
	archive    []model.Listing
	publishers []model.Listing

	publisherIdx int
	displayPage  int
	displayURL   string
	mode         PagingMode

	lastActive time.Time
}

// PageRef 是文档页摘要。
type PageRef struct {
	ListingID string `json:"listingId"`
	PageNum   int    `json:"pageNum"`
}

// IssueRef 是过刊摘要，顺序即 archive 列表顺序。
type IssueRef struct {
	PublishDate string `json:"publishDate"`
	DocumentID  string `json:"documentId"`
	Source      string `json:"source"`
}

// PublisherRef 是竞品出版商摘要。
type PublisherRef struct {
	Source      string `json:"source"`
	PublishDate string `json:"publishDate"`
	ListingID   string `json:"listingId"`
	BadgeColor  string `json:"badgeColor"`
}

// State 是会话状态的对外快照。
type State struct {
	ID             string         `json:"id"`
	Focal          model.Listing  `json:"focal"`
	BadgeColor     string         `json:"badgeColor"`
	DisplayURL     string         `json:"displayUrl"`
	DisplayPage    int            `json:"displayPage"`
	PagingMode     PagingMode     `json:"pagingMode"`
	Pages          []PageRef      `json:"pages"`
	Archive        []IssueRef     `json:"archive"`
	ArchiveIndex   int            `json:"archiveIndex"`
	Publishers     []PublisherRef `json:"publishers"`
	PublisherIndex int            `json:"publisherIndex"`
}

// snapshot 在持锁状态下构造对外快照。
func (s *Session) snapshot() State {
	st := State{
		ID:             s.id,
		Focal:          s.focal,
		BadgeColor:     badge.Color(s.focal.Source),
		DisplayURL:     s.displayURL,
		DisplayPage:    s.displayPage,
		PagingMode:     s.mode,
		ArchiveIndex:   -1,
		PublisherIndex: s.publisherIdx,
	}
	for _, p := range s.pages {
		st.Pages = append(st.Pages, PageRef{ListingID: p.ID, PageNum: p.PageNum})
	}
	for i, a := range s.archive {
		st.Archive = append(st.Archive, IssueRef{PublishDate: a.PublishDate, DocumentID: a.DocumentID, Source: a.Source})
		if st.ArchiveIndex == -1 && (a.DocumentID == s.focal.DocumentID || a.PublishDate == s.focal.PublishDate) {
			st.ArchiveIndex = i
		}
	}
	for _, p := range s.publishers {
		st.Publishers = append(st.Publishers, PublisherRef{
			Source:      p.Source,
			PublishDate: p.PublishDate,
			ListingID:   p.ID,
			BadgeColor:  badge.Color(p.Source),
		})
	}
	return st
}

// pagingMode 根据结构化页数据推导翻页方式：多于一页才算结构化可翻。
func pagingMode(pages []model.Listing) PagingMode {
	if len(pages) > 1 {
		return PagingStructural
	}
	return PagingProbed
}

// recompute 围绕当前焦点记录整体重建三个派生视图与展示游标。
// 文档页与过刊在全量数据上计算，竞品出版商只在会话范围内计算。
// 调用方需持有 s.mu（Open 时会话尚未发布，无需持锁）。
func (s *Session) recompute(all []model.Listing) {
	s.pages = grouping.DocumentPages(all, s.focal)
	s.archive = grouping.ArchiveIssues(all, s.focal)
	s.publishers = grouping.CompetingPublishers(s.scope, s.focal)

	s.publisherIdx = 0
	for i, p := range s.publishers {
		if p.Source == s.focal.Source {
			s.publisherIdx = i
			break
		}
	}

	s.mode = pagingMode(s.pages)
	s.displayPage = s.focal.PageNum
	s.displayURL = s.focal.PageImageURL
}

// switchStructuralPage 在结构化文档页内夹紧移动，边界处为无操作。
// 当前位置由展示页码与页列表匹配得出。调用方需持有 s.mu。
func (s *Session) switchStructuralPage(dir Direction) {
	if len(s.pages) < 2 {
		return
	}

	current := 0
	for i, p := range s.pages {
		if p.PageNum == s.displayPage {
			current = i
			break
		}
	}

	next := current + int(dir)
	if next < 0 || next >= len(s.pages) {
		return
	}

	page := s.pages[next]
	s.displayPage = page.PageNum
	s.displayURL = page.PageImageURL
	s.focal.PageNum = page.PageNum
	s.focal.PageImageURL = page.PageImageURL
}
