package viewer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"lease-radar/internal/grouping"
	"lease-radar/internal/model"
	"lease-radar/internal/prober"
)

// 查看器操作的可预期失败。
var (
	ErrSessionNotFound = errors.New("viewer session not found")
	ErrListingNotFound = errors.New("listing not found")
	ErrNoPageImage     = errors.New("listing has no page image")
)

// Direction 表示翻页/换出版商方向。
type Direction int

const (
	Prev Direction = -1
	Next Direction = 1
)

// ParseDirection 解析请求里的方向字面量。
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "prev":
		return Prev, nil
	case "next":
		return Next, nil
	default:
		return 0, fmt.Errorf("invalid direction %q", s)
	}
}

// ListingProvider 提供合并后的完整记录列表。
type ListingProvider interface {
	Listings(ctx context.Context) ([]model.Listing, error)
}

// PageProber 提供相邻页存在性探测。
type PageProber interface {
	Exists(ctx context.Context, url string) (bool, error)
	FindAdjacent(ctx context.Context, url string, direction int) (prober.Result, bool, error)
}

// Config 控制会话回收。
type Config struct {
	IdleTTL string `yaml:"idle_ttl" json:"idle_ttl"`
}

// Manager 持有全部查看器会话并实现三轴导航状态机。
type Manager struct {
	provider ListingProvider
	prober   PageProber
	idleTTL  time.Duration
	now      func() time.Time
	logger   *log.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager 创建 Manager。
func NewManager(provider ListingProvider, p PageProber, cfg Config) *Manager {
	idle := 30 * time.Minute
	if cfg.IdleTTL != "" {
		if d, err := time.ParseDuration(cfg.IdleTTL); err == nil && d > 0 {
			idle = d
		}
	}
	return &Manager{
		provider: provider,
		prober:   p,
		idleTTL:  idle,
		now:      time.Now,
		logger:   log.New(os.Stdout, "[viewer] ", log.LstdFlags),
		sessions: make(map[string]*Session),
	}
}

// Open 打开一条记录的查看器会话。scopeIDs 是调用方当前检索结果集的
// 记录 ID（按显示顺序）；竞品出版商只在这个范围内寻找。为空时退化为
// 全量数据范围。记录无页图时拒绝打开。
func (m *Manager) Open(ctx context.Context, listingID string, scopeIDs []string) (State, error) {
	all, err := m.provider.Listings(ctx)
	if err != nil {
		return State{}, err
	}

	byID := make(map[string]model.Listing, len(all))
	for _, l := range all {
		byID[l.ID] = l
	}

	focal, ok := byID[listingID]
	if !ok {
		return State{}, ErrListingNotFound
	}
	if !focal.HasPageImage() {
		return State{}, ErrNoPageImage
	}

	scope := all
	if len(scopeIDs) > 0 {
		scope = make([]model.Listing, 0, len(scopeIDs))
		for _, id := range scopeIDs {
			if l, ok := byID[id]; ok {
				scope = append(scope, l)
			}
		}
	}

	sess := &Session{
		id:          uuid.NewString(),
		focal:       focal,
		scope:       scope,
		displayPage: focal.PageNum,
		displayURL:  focal.PageImageURL,
		lastActive:  m.now(),
	}
	sess.recompute(all)

	m.mu.Lock()
	m.pruneIdle()
	m.sessions[sess.id] = sess
	m.mu.Unlock()

	m.logger.Printf("open session=%s listing=%s pages=%d archive=%d publishers=%d",
		sess.id, focal.ID, len(sess.pages), len(sess.archive), len(sess.publishers))

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.snapshot(), nil
}

// Close 关闭会话，丢弃全部会话态；对检索与选择状态无影响。
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

// State 返回会话当前快照。
func (m *Manager) State(id string) (State, error) {
	sess, err := m.lookup(id)
	if err != nil {
		return State{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.snapshot(), nil
}

// SwitchPage 按方向切换文档页。结构化模式下在同文档页里夹紧移动；
// 探测模式下改写当前 URL 探测相邻页，已有探测在途时本次请求直接丢弃
// （不排队）。两种模式下到边界/未找到都保持视图不变。
func (m *Manager) SwitchPage(ctx context.Context, id string, dir Direction) (State, error) {
	sess, err := m.lookup(id)
	if err != nil {
		return State{}, err
	}

	sess.mu.Lock()
	mode := sess.mode
	if mode == PagingStructural {
		defer sess.mu.Unlock()
		sess.switchStructuralPage(dir)
		return sess.snapshot(), nil
	}
	currentURL := sess.displayURL
	sess.mu.Unlock()

	// 探测路径：busy 标志串行化，在途期间的请求是显式的无操作。
	if !sess.probing.CompareAndSwap(false, true) {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		return sess.snapshot(), nil
	}
	defer sess.probing.Store(false)

	newURL, steps, found := m.probeAdjacent(ctx, currentURL, dir)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if found && sess.displayURL == currentURL {
		sess.displayURL = newURL
		sess.displayPage += steps * int(dir)
		sess.focal.PageImageURL = newURL
	}
	return sess.snapshot(), nil
}

// probeAdjacent 先试紧邻页，未命中再带上限向外扫描。探测错误按未找到
// 处理，只记日志。
func (m *Manager) probeAdjacent(ctx context.Context, currentURL string, dir Direction) (string, int, bool) {
	candidate, ok := prober.AdjacentURL(currentURL, int(dir))
	if !ok {
		return "", 0, false
	}

	exists, err := m.prober.Exists(ctx, candidate)
	if err != nil {
		m.logger.Printf("probe adjacent: %v", err)
		return "", 0, false
	}
	if exists {
		return candidate, 1, true
	}

	res, found, err := m.prober.FindAdjacent(ctx, currentURL, int(dir))
	if err != nil {
		m.logger.Printf("probe scan: %v", err)
		return "", 0, false
	}
	if !found {
		return "", 0, false
	}
	return res.URL, res.Steps, true
}

// SwitchArchive 切换到指定过刊：用过刊条目替换焦点记录的展示字段，
// 然后整体重算三个派生视图，保证三个游标与当前展示一致。
func (m *Manager) SwitchArchive(ctx context.Context, id string, index int) (State, error) {
	sess, err := m.lookup(id)
	if err != nil {
		return State{}, err
	}
	all, err := m.provider.Listings(ctx)
	if err != nil {
		return State{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if index < 0 || index >= len(sess.archive) {
		return State{}, fmt.Errorf("archive index %d out of range", index)
	}

	issue := sess.archive[index]
	// 展示字段替换为过刊条目，身份字段（建筑名、楼层、出版商）保留。
	sess.focal.PageImageURL = issue.PageImageURL
	sess.focal.PublishDate = issue.PublishDate
	sess.focal.DocumentID = issue.DocumentID
	sess.focal.PageNum = issue.PageNum

	sess.recompute(all)
	return sess.snapshot(), nil
}

// SwitchPublisher 在竞品出版商列表内夹紧移动游标，把焦点换成目标
// 出版商的记录，并为新的 (source, buildingName) 重算过刊与文档页。
// 出版商列表本身保持不变。
func (m *Manager) SwitchPublisher(ctx context.Context, id string, dir Direction) (State, error) {
	sess, err := m.lookup(id)
	if err != nil {
		return State{}, err
	}
	all, err := m.provider.Listings(ctx)
	if err != nil {
		return State{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if len(sess.publishers) == 0 {
		return sess.snapshot(), nil
	}
	next := sess.publisherIdx + int(dir)
	if next < 0 || next >= len(sess.publishers) {
		return sess.snapshot(), nil
	}

	sess.publisherIdx = next
	sess.focal = sess.publishers[next]
	sess.pages = grouping.DocumentPages(all, sess.focal)
	sess.archive = grouping.ArchiveIssues(all, sess.focal)
	sess.mode = pagingMode(sess.pages)
	sess.displayPage = sess.focal.PageNum
	sess.displayURL = sess.focal.PageImageURL
	return sess.snapshot(), nil
}

func (m *Manager) lookup(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneIdle()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.lastActive = m.now()
	return sess, nil
}

// pruneIdle 回收闲置超时的会话，调用方需持有 m.mu。
func (m *Manager) pruneIdle() {
	cutoff := m.now().Add(-m.idleTTL)
	for id, sess := range m.sessions {
		if sess.lastActive.Before(cutoff) {
			delete(m.sessions, id)
		}
	}
}
