package model

import (
	"sort"
	"testing"
	"time"
)

func TestParsePublishDate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in    string
		year  int
		month time.Month
	}{
		{"26.01", 2026, time.January},
		{"2026.01", 2026, time.January},
		{"25.12", 2025, time.December},
		{"2024.06", 2024, time.June},
	}
	for _, c := range cases {
		got := ParsePublishDate(c.in)
		if got.Year() != c.year || got.Month() != c.month {
			t.Fatalf("ParsePublishDate(%q) = %v, want %d-%d", c.in, got, c.year, c.month)
		}
	}
}

func TestParsePublishDateSentinel(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "garbage", "2026", "26.1", "26.13"} {
		if got := ParsePublishDate(in); !got.Equal(PublishEpoch) {
			t.Fatalf("ParsePublishDate(%q) = %v, want epoch sentinel", in, got)
		}
	}
}

func TestUnparseableSortsLastDescending(t *testing.T) {
	t.Parallel()

	dates := []string{"garbage", "25.06", "", "26.01"}
	sort.SliceStable(dates, func(i, j int) bool {
		return ParsePublishDate(dates[i]).After(ParsePublishDate(dates[j]))
	})

	if dates[0] != "26.01" || dates[1] != "25.06" {
		t.Fatalf("unexpected order: %v", dates)
	}
	// 哨兵日期必须排在所有可解析日期之后。
	if dates[2] != "garbage" || dates[3] != "" {
		t.Fatalf("sentinel dates should keep input order at the tail: %v", dates)
	}
}
