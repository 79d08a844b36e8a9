package model

import (
	"regexp"
	"strconv"
	"time"
)

// PublishEpoch 是发行日期无法解析时的哨兵值，倒序排序时永远排在最后。
var PublishEpoch = time.Unix(0, 0).UTC()

var publishDatePattern = regexp.MustCompile(`(\d{2,4})\.(\d{2})`)

// ParsePublishDate 解析 "YY.MM" 或 "YYYY.MM" 形式的发行日期。
// 两位年份按 2000+YY 处理；无法解析时返回 PublishEpoch，从不报错。
// 系统内所有"最新优先"比较都必须经由本函数。
func ParsePublishDate(s string) time.Time {
	m := publishDatePattern.FindStringSubmatch(s)
	if m == nil {
		return PublishEpoch
	}

	year, err := strconv.Atoi(m[1])
	if err != nil {
		return PublishEpoch
	}
	month, err := strconv.Atoi(m[2])
	if err != nil || month < 1 || month > 12 {
		return PublishEpoch
	}
	if year < 100 {
		year += 2000
	}

	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
}
