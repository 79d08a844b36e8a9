// Package prober 在缺少结构化页数据时，通过改写图片 URL 中的页码
// 做尽力而为的相邻页探测。探测只保证"确认可达"，不保证页一定存在。
package prober

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"regexp"
	"strconv"
)

// defaultMaxAttempts 是连续未命中的探测上限。
const defaultMaxAttempts = 20

var pagePattern = regexp.MustCompile(`page_(\d+)\.jpg`)

// Config 控制探测行为。
type Config struct {
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
}

// Result 表示一次成功的相邻页探测。
type Result struct {
	URL string
	// Steps 是实际消耗的页码步进数，中间页缺失时可能大于 1。
	Steps int
}

// Prober 通过 HEAD 请求确认图片资源是否可达。
type Prober struct {
	client      *http.Client
	maxAttempts int
	logger      *log.Logger
}

// New 创建 Prober。
func New(cfg Config, client *http.Client) *Prober {
	if client == nil {
		client = http.DefaultClient
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	return &Prober{
		client:      client,
		maxAttempts: attempts,
		logger:      log.New(os.Stdout, "[prober] ", log.LstdFlags),
	}
}

// AdjacentURL 将 URL 中的页码按 offset 平移，返回新 URL。
// URL 不符合 page_NNN.jpg 模式或页码会降到 1 以下时 ok 为假。
func AdjacentURL(rawURL string, offset int) (string, bool) {
	m := pagePattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	current, err := strconv.Atoi(m[1])
	if err != nil {
		return "", false
	}
	next := current + offset
	if next < 1 {
		return "", false
	}
	return pagePattern.ReplaceAllString(rawURL, fmt.Sprintf("page_%03d.jpg", next)), true
}

// Exists 用 HEAD 请求确认单个图片资源可达。
func (p *Prober) Exists(ctx context.Context, rawURL string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false, fmt.Errorf("new request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("head %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// FindAdjacent 从当前 URL 沿 direction（±1）逐页探测，返回第一个可达页
// 与消耗的步进数。连续 maxAttempts 次未命中、或页码越过下界时 ok 为假。
// URL 不符合模式时同样返回 ok 为假，不算错误。
func (p *Prober) FindAdjacent(ctx context.Context, rawURL string, direction int) (Result, bool, error) {
	testURL := rawURL
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		next, ok := AdjacentURL(testURL, direction)
		if !ok {
			return Result{}, false, nil
		}
		testURL = next

		exists, err := p.Exists(ctx, testURL)
		if err != nil {
			return Result{}, false, err
		}
		if exists {
			p.logger.Printf("found adjacent page after %d attempts url=%s", attempt, testURL)
			return Result{URL: testURL, Steps: attempt}, true, nil
		}
	}
	p.logger.Printf("no adjacent page within %d attempts from %s", p.maxAttempts, rawURL)
	return Result{}, false, nil
}
