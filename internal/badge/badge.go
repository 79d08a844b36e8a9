// Package badge 为出版商徽章提供确定性的配色：同一出版商名在
// 会话内（乃至进程间）永远得到同一颜色。
package badge

import "sync"

// palette 是固定的 20 色徽章调色板。
var palette = []string{
	"#0d6efd",
	"#198754",
	"#dc3545",
	"#fd7e14",
	"#6f42c1",
	"#20c997",
	"#e83e8c",
	"#005a2b",
	"#6610f2",
	"#d63384",
	"#0dcaf0",
	"#ffc107",
	"#6c757d",
	"#0a58ca",
	"#ab2e3c",
	"#087990",
	"#aa6e2e",
	"#5c636a",
	"#3d8bfd",
	"#479f76",
}

var (
	mu    sync.Mutex
	cache = make(map[string]string)
)

// Color 返回出版商名对应的颜色，空名固定取调色板首色。
func Color(source string) string {
	if source == "" {
		return palette[0]
	}

	mu.Lock()
	defer mu.Unlock()
	if c, ok := cache[source]; ok {
		return c
	}
	c := palette[hashString(source)%len(palette)]
	cache[source] = c
	return c
}

// hashString 是 31 进制移位字符串散列，按 32 位截断后取绝对值。
func hashString(s string) int {
	var hash int32
	for _, r := range s {
		hash = hash<<5 - hash + int32(r)
	}
	h := int(hash)
	if h < 0 {
		h = -h
	}
	return h
}
