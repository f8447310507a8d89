package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// 解析截止时间：支持 "+N"（N 天后）与绝对日期 "2006-01-02"
func ParseDueDate(spec string, now time.Time) (time.Time, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return time.Time{}, fmt.Errorf("empty due date spec")
	}
	if strings.HasPrefix(spec, "+") {
		days, err := strconv.Atoi(spec[1:])
		if err != nil || days < 0 {
			return time.Time{}, fmt.Errorf("invalid relative due date: %s", spec)
		}
		return now.AddDate(0, 0, days), nil
	}
	t, err := time.Parse("2006-01-02", spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid due date: %s", spec)
	}
	return t, nil
}

// 相差的整天数（向下取整）
func DaysBetween(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Hours() / 24)
}

// 时间格式化
func FormatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
