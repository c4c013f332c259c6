package news

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Locale holds the wording used for publication dates.
type Locale struct {
	Name     string
	relative func(count int64, unit string) string
	units    [3][2]string // minute, hour, day; singular then plural
	months   [12]string
	longDate func(day int, month string, year int) string
}

var Spanish = Locale{
	Name: "es",
	relative: func(count int64, unit string) string {
		return fmt.Sprintf("Hace %d %s", count, unit)
	},
	units: [3][2]string{{"minuto", "minutos"}, {"hora", "horas"}, {"día", "días"}},
	months: [12]string{
		"enero", "febrero", "marzo", "abril", "mayo", "junio",
		"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
	},
	longDate: func(day int, month string, year int) string {
		return fmt.Sprintf("%d de %s de %d", day, month, year)
	},
}

var English = Locale{
	Name: "en",
	relative: func(count int64, unit string) string {
		return fmt.Sprintf("%d %s ago", count, unit)
	},
	units: [3][2]string{{"minute", "minutes"}, {"hour", "hours"}, {"day", "days"}},
	months: [12]string{
		"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December",
	},
	longDate: func(day int, month string, year int) string {
		return fmt.Sprintf("%s %d, %d", month, day, year)
	},
}

// LocaleByName falls back to Spanish, the site's default language.
func LocaleByName(name string) Locale {
	if strings.EqualFold(strings.TrimSpace(name), English.Name) {
		return English
	}
	return Spanish
}

// FormatPublishedDate renders ts relative to now: minutes under an hour,
// hours under a day, days under a week, otherwise the long date in now's
// location. Input that does not parse as an ISO 8601 timestamp is returned
// unchanged.
func FormatPublishedDate(ts string, now time.Time, loc Locale) string {
	published, ok := parseTimestamp(ts, now.Location())
	if !ok {
		return ts
	}

	minutes := int64(math.Floor(float64(now.Sub(published)) / float64(time.Minute)))
	hours := floorDiv(minutes, 60)
	days := floorDiv(hours, 24)

	switch {
	case minutes < 60:
		return loc.relative(minutes, loc.unit(0, minutes))
	case hours < 24:
		return loc.relative(hours, loc.unit(1, hours))
	case days < 7:
		return loc.relative(days, loc.unit(2, days))
	}

	local := published.In(now.Location())
	return loc.longDate(local.Day(), loc.months[local.Month()-1], local.Year())
}

// Date-only values are UTC; date-times without an offset are read in local.
var timestampLayouts = []struct {
	layout string
	local  bool
}{
	{time.RFC3339, false},
	{"2006-01-02T15:04:05-0700", false},
	{"2006-01-02T15:04:05", true},
	{time.DateOnly, false},
}

func parseTimestamp(ts string, local *time.Location) (time.Time, bool) {
	for _, l := range timestampLayouts {
		in := time.UTC
		if l.local {
			in = local
		}
		if t, err := time.ParseInLocation(l.layout, ts, in); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (l Locale) unit(idx int, count int64) string {
	if count == 1 {
		return l.units[idx][0]
	}
	return l.units[idx][1]
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
