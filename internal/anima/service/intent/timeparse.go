package intent

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

const timeLayout = time.RFC3339

// defaultDuration applies when an expression names a start but no end.
const defaultDuration = 2 * time.Hour

var weekdayWords = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday,
	"friday": time.Friday, "saturday": time.Saturday,
	"周日": time.Sunday, "周一": time.Monday, "周二": time.Tuesday,
	"周三": time.Wednesday, "周四": time.Thursday, "周五": time.Friday, "周六": time.Saturday,
	"星期天": time.Sunday, "星期日": time.Sunday, "星期一": time.Monday, "星期二": time.Tuesday,
	"星期三": time.Wednesday, "星期四": time.Thursday, "星期五": time.Friday, "星期六": time.Saturday,
}

// bandHours gives each time-of-day word a representative start hour.
var bandHours = map[string]int{
	"dawn": 6, "凌晨": 6, "清晨": 6,
	"morning": 9, "早上": 9, "上午": 9,
	"noon": 12, "中午": 12,
	"afternoon": 15, "下午": 15,
	"evening": 19, "晚上": 19, "傍晚": 19,
	"night": 22, "深夜": 22, "夜里": 22,
}

// Match order is fixed with the longest word first, so compound words
// ("afternoon") win over their substrings ("noon").
var (
	weekdayOrder = orderedWords(weekdayWords)
	bandOrder    = orderedWords(bandHours)
)

func orderedWords[V any](m map[string]V) []string {
	words := make([]string, 0, len(m))
	for w := range m {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if len(words[i]) != len(words[j]) {
			return len(words[i]) > len(words[j])
		}
		return words[i] < words[j]
	})
	return words
}

var (
	hourCN = regexp.MustCompile(`(\d{1,2})\s*[点时]`)
	hourEN = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(am|pm|:00|o'clock)\b`)
)

// ResolveTimeExpression deterministically maps a natural-language time
// expression to a concrete interval. Supported pieces: today / tomorrow /
// day after tomorrow / next week (Chinese or English), an optional weekday,
// an optional time-of-day band or explicit hour. The end is start plus two
// hours. Returns ok=false when no date or time piece is recognised.
func ResolveTimeExpression(expr string, now time.Time) (time.Time, time.Time, bool) {
	lower := strings.ToLower(strings.TrimSpace(expr))
	if lower == "" {
		return time.Time{}, time.Time{}, false
	}

	day := now
	matched := false
	switch {
	case strings.Contains(lower, "后天") || strings.Contains(lower, "day after tomorrow"):
		day = now.AddDate(0, 0, 2)
		matched = true
	case strings.Contains(lower, "明天") || strings.Contains(lower, "tomorrow"):
		day = now.AddDate(0, 0, 1)
		matched = true
	case strings.Contains(lower, "今天") || strings.Contains(lower, "今晚") || strings.Contains(lower, "today") || strings.Contains(lower, "tonight"):
		matched = true
	case strings.Contains(lower, "下周") || strings.Contains(lower, "下星期") || strings.Contains(lower, "next week"):
		// Jump to next Monday, then a weekday word below may shift within it.
		offset := (int(time.Monday) - int(now.Weekday()) + 7) % 7
		if offset == 0 {
			offset = 7
		}
		day = now.AddDate(0, 0, offset)
		matched = true
	}

	for _, word := range weekdayOrder {
		if strings.Contains(lower, word) {
			wd := weekdayWords[word]
			offset := (int(wd) - int(day.Weekday()) + 7) % 7
			if offset == 0 && !matched {
				offset = 7
			}
			day = day.AddDate(0, 0, offset)
			matched = true
			break
		}
	}

	hour, hourOK := resolveHour(lower)
	if !matched && !hourOK {
		return time.Time{}, time.Time{}, false
	}
	if !hourOK {
		hour = 9
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, now.Location())
	return start, start.Add(defaultDuration), true
}

func resolveHour(lower string) (int, bool) {
	band := -1
	for _, word := range bandOrder {
		if strings.Contains(lower, word) {
			band = bandHours[word]
			break
		}
	}

	if m := hourCN.FindStringSubmatch(lower); m != nil {
		h, _ := strconv.Atoi(m[1])
		return adjustMeridiem(h, band, lower), true
	}
	if m := hourEN.FindStringSubmatch(lower); m != nil {
		h, _ := strconv.Atoi(m[1])
		return adjustMeridiem(h, band, lower), true
	}
	if band >= 0 {
		return band, true
	}
	return 0, false
}

// adjustMeridiem shifts ambiguous 12h clock values using the band word or
// an explicit am/pm suffix.
func adjustMeridiem(h, band int, lower string) int {
	if h >= 13 {
		return h % 24
	}
	if strings.Contains(lower, "pm") && h < 12 {
		return h + 12
	}
	if strings.Contains(lower, "am") {
		return h % 12
	}
	if band >= 12 && h < 12 {
		return h + 12
	}
	return h
}
