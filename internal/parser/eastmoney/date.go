package eastmoney

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/realtime-nav-crawler/internal/crawler"
)

// NormalizeDate converts upstream date spellings (2025-01-02, 2025/1/2,
// 2025.01.02, 20250102, 2025年1月2日) to YYYY-MM-DD.
func NormalizeDate(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	parts := strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case '-', '/', '.', '年', '月', '日', ' ':
			return true
		}
		return false
	})
	if len(parts) == 1 && len(parts[0]) == 8 {
		compact := parts[0]
		parts = []string{compact[:4], compact[4:6], compact[6:]}
	}
	if len(parts) != 3 {
		return "", fmt.Errorf("unrecognized date %q", raw)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) != 4 {
		return "", fmt.Errorf("unrecognized year in %q", raw)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", fmt.Errorf("unrecognized month in %q", raw)
	}
	day, err := strconv.Atoi(parts[2])
	if err != nil {
		return "", fmt.Errorf("unrecognized day in %q", raw)
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return "", fmt.Errorf("invalid calendar date %q", raw)
	}
	return t.Format(crawler.DateLayout), nil
}
