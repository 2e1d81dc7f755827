package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/booking-concierge/internal/schedule"
)

var relativeDays = map[string]int{
	"today": 0, "aujourd'hui": 0, "aujourd’hui": 0, "aujourdhui": 0, "hoy": 0,
	"tomorrow": 1, "demain": 1, "mañana": 1, "manana": 1,
	"day after tomorrow": 2, "the day after tomorrow": 2,
	"après-demain": 2, "apres-demain": 2, "après demain": 2, "apres demain": 2,
	"pasado mañana": 2, "pasado manana": 2,
}

var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January, "janvier": time.January, "enero": time.January,
	"february": time.February, "feb": time.February, "février": time.February, "fevrier": time.February, "febrero": time.February,
	"march": time.March, "mar": time.March, "mars": time.March, "marzo": time.March,
	"april": time.April, "apr": time.April, "avril": time.April, "abril": time.April,
	"may": time.May, "mai": time.May, "mayo": time.May,
	"june": time.June, "jun": time.June, "juin": time.June, "junio": time.June,
	"july": time.July, "jul": time.July, "juillet": time.July, "julio": time.July,
	"august": time.August, "aug": time.August, "août": time.August, "aout": time.August, "agosto": time.August,
	"september": time.September, "sep": time.September, "sept": time.September, "septembre": time.September, "septiembre": time.September,
	"october": time.October, "oct": time.October, "octobre": time.October, "octubre": time.October,
	"november": time.November, "nov": time.November, "novembre": time.November, "noviembre": time.November,
	"december": time.December, "dec": time.December, "décembre": time.December, "decembre": time.December, "diciembre": time.December,
}

var (
	dayMonthRe   = regexp.MustCompile(`^(\d{1,2})(?:er|st|nd|rd|th)?\s+(?:de\s+)?(\p{L}+)\.?(?:\s+(?:de\s+)?(\d{4}))?$`)
	monthDayRe   = regexp.MustCompile(`^(\p{L}+)\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?$`)
	numericDayRe = regexp.MustCompile(`^(\d{1,2})[/.](\d{1,2})(?:[/.](\d{2}|\d{4}))?$`)
	leadingWords = []string{"on ", "the ", "le ", "el ", "for ", "pour "}
)

// ResolveDate turns an extracted date into a calendar date relative to today.
// It accepts ISO dates, relative words, weekday names (next occurrence,
// today included) and day-month phrases. Partial dates take today's year.
func ResolveDate(raw string, today time.Time) (time.Time, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimRight(s, ".!?")
	for _, w := range leadingWords {
		s = strings.TrimPrefix(s, w)
	}
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return time.Time{}, false
	}
	today = schedule.DateOf(today, nil)

	if d, err := schedule.ParseDate(s); err == nil {
		return d, true
	}
	if offset, ok := relativeDays[s]; ok {
		return today.AddDate(0, 0, offset), true
	}
	if wd, ok := schedule.ParseWeekday(strings.TrimPrefix(strings.TrimPrefix(s, "next "), "prochain ")); ok {
		delta := (int(wd) - int(today.Weekday()) + 7) % 7
		return today.AddDate(0, 0, delta), true
	}
	if m := dayMonthRe.FindStringSubmatch(s); m != nil {
		if month, ok := monthNames[m[2]]; ok {
			return buildDate(today, m[1], month, m[3])
		}
	}
	if m := monthDayRe.FindStringSubmatch(s); m != nil {
		if month, ok := monthNames[m[1]]; ok {
			return buildDate(today, m[2], month, m[3])
		}
	}
	if m := numericDayRe.FindStringSubmatch(s); m != nil {
		month, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 {
			return time.Time{}, false
		}
		return buildDate(today, m[1], time.Month(month), m[3])
	}
	return time.Time{}, false
}

func buildDate(today time.Time, dayStr string, month time.Month, yearStr string) (time.Time, bool) {
	day, err := strconv.Atoi(dayStr)
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, false
	}
	year := today.Year()
	if yearStr != "" {
		year, _ = strconv.Atoi(yearStr)
		if len(yearStr) == 2 {
			year += 2000
		}
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day {
		return time.Time{}, false // 31/02
	}
	return d, true
}
