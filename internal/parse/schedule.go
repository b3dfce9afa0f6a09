package parse

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	// Accepts "9:05", "09:05" and "0905"; minutes are always two digits.
	timeOfDayRe = regexp.MustCompile(`^\s*(\d{1,2}):?(\d{2})\s*$`)
	canonicalRe = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)
)

// TimeOfDay normalises a wall-clock time into zero-padded 24-hour "HH:MM".
func TimeOfDay(raw string) (string, error) {
	m := timeOfDayRe.FindStringSubmatch(raw)
	if m == nil {
		return "", fmt.Errorf("invalid time of day %q: want HH:MM", raw)
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	if h > 23 || min > 59 {
		return "", fmt.Errorf("invalid time of day %q: out of range", raw)
	}
	return fmt.Sprintf("%02d:%02d", h, min), nil
}

// IsTimeOfDay reports whether s is already in canonical "HH:MM" form.
func IsTimeOfDay(s string) bool {
	return canonicalRe.MatchString(s)
}

// Weekdays validates a weekday set (0=Sunday..6=Saturday) and returns it
// sorted with duplicates removed. An empty set is an error.
func Weekdays(days []int) ([]int, error) {
	if len(days) == 0 {
		return nil, fmt.Errorf("at least one weekday is required")
	}
	seen := make(map[int]struct{}, len(days))
	out := make([]int, 0, len(days))
	for _, d := range days {
		if d < 0 || d > 6 {
			return nil, fmt.Errorf("invalid weekday %d: want 0-6", d)
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Ints(out)
	return out, nil
}

var dayNames = map[string]int{
	"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
}

// WeekdayNames parses a comma separated list such as "mon-fri,sun".
func WeekdayNames(raw string) ([]int, error) {
	var days []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		from, to, isRange := strings.Cut(part, "-")
		start, ok := dayNames[from]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", from)
		}
		if !isRange {
			days = append(days, start)
			continue
		}
		end, ok := dayNames[to]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", to)
		}
		for d := start; ; d = (d + 1) % 7 {
			days = append(days, d)
			if d == end {
				break
			}
		}
	}
	return Weekdays(days)
}
