package jsonpath

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/itchyny/timefmt-go"
)

// DateTimeType identifies the concrete SQL datetime type of a parsed value.
type DateTimeType int

const (
	Date DateTimeType = iota
	Time
	TimeTz
	Timestamp
	TimestampTz
)

func (t DateTimeType) String() string {
	switch t {
	case Date:
		return "date"
	case Time:
		return "time"
	case TimeTz:
		return "timetz"
	case Timestamp:
		return "timestamp"
	default:
		return "timestamptz"
	}
}

// DateTime is a parsed datetime item.  For Date, Time, and Timestamp the
// time holds the wall-clock reading in UTC.  For TimestampTz it holds the
// absolute instant, with the source offset retained for rendering.  For
// TimeTz it holds the wall clock, with the offset alongside.
type DateTime struct {
	Type      DateTimeType
	Offset    int // seconds east of UTC, for TimeTz and TimestampTz
	Precision int // fractional-second digits, -1 when unspecified
	t         time.Time
}

// Time returns the underlying time value.
func (dt *DateTime) Time() time.Time { return dt.t }

// String renders the value in the ISO form used for JSON output.
func (dt *DateTime) String() string {
	switch dt.Type {
	case Date:
		return timefmt.Format(dt.t, "%Y-%m-%d")
	case Time:
		return timefmt.Format(dt.t, "%H:%M:%S") + fracText(dt.t)
	case TimeTz:
		return timefmt.Format(dt.t, "%H:%M:%S") + fracText(dt.t) + offsetText(dt.Offset)
	case Timestamp:
		return timefmt.Format(dt.t, "%Y-%m-%dT%H:%M:%S") + fracText(dt.t)
	default:
		wall := dt.t.In(time.FixedZone("", dt.Offset))
		return timefmt.Format(wall, "%Y-%m-%dT%H:%M:%S") + fracText(wall) + offsetText(dt.Offset)
	}
}

func fracText(t time.Time) string {
	us := t.Nanosecond() / 1000
	if us == 0 {
		return ""
	}
	s := fmt.Sprintf(".%06d", us)
	return strings.TrimRight(s, "0")
}

func offsetText(off int) string {
	sign := "+"
	if off < 0 {
		sign = "-"
		off = -off
	}
	h, rem := off/3600, off%3600
	m, s := rem/60, rem%60
	switch {
	case s != 0:
		return fmt.Sprintf("%s%02d:%02d:%02d", sign, h, m, s)
	case m != 0:
		return fmt.Sprintf("%s%02d:%02d", sign, h, m)
	default:
		return fmt.Sprintf("%s%02d", sign, h)
	}
}

// isoFormat is one entry of the ISO parsing cascade.  The layout covers the
// date/time body; fractional seconds and timezone offsets are split off the
// input text before the body is parsed.
type isoFormat struct {
	layout string
	typ    DateTimeType
	frac   bool
	tz     bool
}

// The cascade order follows the SQL/JSON standard enumeration for date,
// timetz, time, timestamptz, and timestamp, with the "T" variants accepted
// for timestamps because JSON encoders emit them.
var isoFormats = []isoFormat{
	{"%Y-%m-%d", Date, false, false},
	{"%H:%M:%S", TimeTz, true, true},
	{"%H:%M:%S", TimeTz, false, true},
	{"%H:%M:%S", Time, true, false},
	{"%H:%M:%S", Time, false, false},
	{"%Y-%m-%d %H:%M:%S", TimestampTz, true, true},
	{"%Y-%m-%d %H:%M:%S", TimestampTz, false, true},
	{"%Y-%m-%dT%H:%M:%S", TimestampTz, true, true},
	{"%Y-%m-%dT%H:%M:%S", TimestampTz, false, true},
	{"%Y-%m-%d %H:%M:%S", Timestamp, true, false},
	{"%Y-%m-%d %H:%M:%S", Timestamp, false, false},
	{"%Y-%m-%dT%H:%M:%S", Timestamp, true, false},
	{"%Y-%m-%dT%H:%M:%S", Timestamp, false, false},
}

// parseDateTimeText tries the ISO cascade in order; the first fitting
// format wins.
func parseDateTimeText(text string) (*DateTime, bool) {
	for _, f := range isoFormats {
		if dt, ok := parseWithISOFormat(text, f); ok {
			return dt, true
		}
	}
	return nil, false
}

func parseWithISOFormat(text string, f isoFormat) (*DateTime, bool) {
	body := strings.TrimSpace(text)
	offset := 0
	if f.tz {
		var ok bool
		body, offset, ok = splitOffset(body)
		if !ok {
			return nil, false
		}
	}
	var ns int
	if f.frac {
		var ok bool
		body, ns, ok = splitFraction(body)
		if !ok {
			return nil, false
		}
	}
	if want := layoutLen(f.layout); want >= 0 && len(body) != want {
		return nil, false
	}
	t, err := timefmt.Parse(body, f.layout)
	if err != nil {
		return nil, false
	}
	if f.typ == Time || f.typ == TimeTz {
		// Anchor clock values on a common date so comparisons see only
		// the time of day.
		t = time.Date(0, 1, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	}
	t = t.Add(time.Duration(ns))
	dt := &DateTime{Type: f.typ, Offset: offset, Precision: -1, t: t}
	if f.typ == TimestampTz {
		// Normalize to the absolute instant.
		dt.t = t.Add(-time.Duration(offset) * time.Second)
	}
	return dt, true
}

// layoutLen returns the exact input length a fixed-width layout consumes,
// or -1 when the layout contains a variable-width directive.  The length
// check keeps a lenient parse of a prefix from hijacking a later format in
// the cascade.
func layoutLen(layout string) int {
	n := 0
	for i := 0; i < len(layout); i++ {
		if layout[i] != '%' {
			n++
			continue
		}
		i++
		if i >= len(layout) {
			return -1
		}
		switch layout[i] {
		case 'Y':
			n += 4
		case 'y', 'm', 'd', 'H', 'I', 'M', 'S', 'p':
			n += 2
		case '%':
			n++
		default:
			return -1
		}
	}
	return n
}

// splitOffset strips a trailing timezone offset: Z, ±hh, ±hh:mm, ±hhmm, or
// ±hh:mm:ss.
func splitOffset(s string) (string, int, bool) {
	if strings.HasSuffix(s, "Z") || strings.HasSuffix(s, "z") {
		return s[:len(s)-1], 0, true
	}
	i := strings.LastIndexAny(s, "+-")
	if i <= 0 {
		return "", 0, false
	}
	// Don't mistake the date separator for a sign.
	if c := s[i-1]; c != ':' && (c < '0' || c > '9') {
		return "", 0, false
	}
	body, off := s[:i], s[i:]
	sign := 1
	if off[0] == '-' {
		sign = -1
	}
	digits := strings.ReplaceAll(off[1:], ":", "")
	var h, m, sec int
	switch len(digits) {
	case 2:
		h = atoi2(digits)
	case 4:
		h, m = atoi2(digits), atoi2(digits[2:])
	case 6:
		h, m, sec = atoi2(digits), atoi2(digits[2:]), atoi2(digits[4:])
	default:
		return "", 0, false
	}
	if h < 0 || m < 0 || sec < 0 || h > 15 || m > 59 || sec > 59 {
		return "", 0, false
	}
	return body, sign * (h*3600 + m*60 + sec), true
}

func atoi2(s string) int {
	if len(s) < 2 || s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return -1
	}
	return int(s[0]-'0')*10 + int(s[1]-'0')
}

// splitFraction strips a trailing ".digits" fraction and returns it in
// nanoseconds.
func splitFraction(s string) (string, int, bool) {
	i := strings.LastIndexByte(s, '.')
	if i < 0 {
		return "", 0, false
	}
	digits := s[i+1:]
	if len(digits) == 0 || len(digits) > 9 {
		return "", 0, false
	}
	ns := 0
	for _, c := range digits {
		if c < '0' || c > '9' {
			return "", 0, false
		}
		ns = ns*10 + int(c-'0')
	}
	for j := len(digits); j < 9; j++ {
		ns *= 10
	}
	return s[:i], ns, true
}

// errIncompatibleCast reports a datetime produced by parsing that cannot be
// cast to the method's target type; the caller renders it as a format error
// naming the method and input text.
var errIncompatibleCast = errors.New("incompatible datetime cast")

// referenceDate anchors the timezone offset attached when casting a plain
// time to a time with time zone.
var referenceDate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

func locationOffset(loc *time.Location, at time.Time) int {
	_, off := at.In(loc).Zone()
	return off
}

// castTo converts a parsed datetime to the target type per the cast matrix.
// Casts crossing the timezone boundary require useTz and fail hard
// otherwise; incompatible pairs return errIncompatibleCast.
func (dt *DateTime) castTo(target DateTimeType, useTz bool, loc *time.Location) (*DateTime, error) {
	if dt.Type == target {
		return dt, nil
	}
	out := &DateTime{Type: target, Precision: -1}
	switch dt.Type {
	case Date:
		switch target {
		case Timestamp:
			out.t = dt.t
		case TimestampTz:
			if !useTz {
				return nil, &timezoneCastError{"date", "timestamptz"}
			}
			local := time.Date(dt.t.Year(), dt.t.Month(), dt.t.Day(), 0, 0, 0, 0, loc)
			out.t = local.UTC()
			_, off := local.Zone()
			out.Offset = off
		default:
			return nil, errIncompatibleCast
		}
	case Time:
		switch target {
		case TimeTz:
			if !useTz {
				return nil, &timezoneCastError{"time", "timetz"}
			}
			out.t = dt.t
			out.Offset = locationOffset(loc, referenceDate)
		default:
			return nil, errIncompatibleCast
		}
	case TimeTz:
		switch target {
		case Time:
			if !useTz {
				return nil, &timezoneCastError{"timetz", "time"}
			}
			out.t = dt.t
		default:
			return nil, errIncompatibleCast
		}
	case Timestamp:
		switch target {
		case Date:
			out.t = truncateToDate(dt.t)
		case Time:
			out.t = truncateToTime(dt.t)
		case TimestampTz:
			if !useTz {
				return nil, &timezoneCastError{"timestamp", "timestamptz"}
			}
			local := time.Date(dt.t.Year(), dt.t.Month(), dt.t.Day(),
				dt.t.Hour(), dt.t.Minute(), dt.t.Second(), dt.t.Nanosecond(), loc)
			out.t = local.UTC()
			_, off := local.Zone()
			out.Offset = off
		default:
			return nil, errIncompatibleCast
		}
	default: // TimestampTz
		wall := dt.t.In(loc)
		switch target {
		case Date:
			if !useTz {
				return nil, &timezoneCastError{"timestamptz", "date"}
			}
			out.t = time.Date(wall.Year(), wall.Month(), wall.Day(), 0, 0, 0, 0, time.UTC)
		case Time:
			if !useTz {
				return nil, &timezoneCastError{"timestamptz", "time"}
			}
			out.t = time.Date(0, 1, 1, wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(), time.UTC)
		case TimeTz:
			out.t = time.Date(0, 1, 1, wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(), time.UTC)
			_, off := wall.Zone()
			out.Offset = off
		case Timestamp:
			if !useTz {
				return nil, &timezoneCastError{"timestamptz", "timestamp"}
			}
			out.t = time.Date(wall.Year(), wall.Month(), wall.Day(),
				wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(), time.UTC)
		default:
			return nil, errIncompatibleCast
		}
	}
	return out, nil
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToTime(t time.Time) time.Time {
	return time.Date(0, 1, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// checkTimePrecision validates and clamps a user-supplied fractional-second
// precision the way SQL typmod checks do: negative is an error, above six is
// reduced to six.
func checkTimePrecision(p int, method string) (int, error) {
	if p < 0 {
		return 0, &precisionRangeError{"time precision", method}
	}
	if p > 6 {
		return 6, nil
	}
	return p, nil
}

// withPrecision rounds fractional seconds half-up to p digits.
func (dt *DateTime) withPrecision(p int) *DateTime {
	unit := time.Second
	for i := 0; i < p; i++ {
		unit /= 10
	}
	out := *dt
	out.t = dt.t.Round(unit)
	out.Precision = p
	return &out
}

// utcClock normalizes a time-with-zone to the UTC clock for comparison.
func (dt *DateTime) utcClock() time.Time {
	return dt.t.Add(-time.Duration(dt.Offset) * time.Second)
}

// compareDateTime compares two datetime items of possibly different types.
// Incomparable pairs set castErr.  A comparison that requires a timezone
// cast with useTz disabled is a hard error even when errors are otherwise
// suppressed.
func compareDateTime(a, b *DateTime, useTz bool, loc *time.Location) (cmp int, castErr bool, err error) {
	if a.Type == b.Type {
		switch a.Type {
		case TimeTz:
			if c := a.utcClock().Compare(b.utcClock()); c != 0 {
				return c, false, nil
			}
			// Same instant, distinct zones: order east of UTC first.
			return compareInts(-a.Offset, -b.Offset), false, nil
		default:
			return a.t.Compare(b.t), false, nil
		}
	}
	first, second := a, b
	flip := 1
	if a.Type > b.Type {
		first, second, flip = b, a, -1
	}
	switch {
	case first.Type == Date && second.Type == Timestamp:
		return flip * first.t.Compare(second.t), false, nil
	case first.Type == Date && second.Type == TimestampTz:
		if !useTz {
			return 0, false, &timezoneCastError{"date", "timestamptz"}
		}
		ts, _ := first.castTo(TimestampTz, useTz, loc)
		return flip * ts.t.Compare(second.t), false, nil
	case first.Type == Time && second.Type == TimeTz:
		if !useTz {
			return 0, false, &timezoneCastError{"time", "timetz"}
		}
		tz, _ := first.castTo(TimeTz, useTz, loc)
		c, _, _ := compareDateTime(tz, second, useTz, loc)
		return flip * c, false, nil
	case first.Type == Timestamp && second.Type == TimestampTz:
		if !useTz {
			return 0, false, &timezoneCastError{"timestamp", "timestamptz"}
		}
		ts, _ := first.castTo(TimestampTz, useTz, loc)
		return flip * ts.t.Compare(second.t), false, nil
	default:
		return 0, true, nil
	}
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Template parsing for the .datetime(template) method follows.  The
// template language is the SQL to_timestamp one; the supported directives
// are the ones that survive distillation to strftime, with fractional
// seconds and timezone offsets handled as trailing components.

type templateFormat struct {
	layout   string
	typ      DateTimeType
	frac     bool
	tz       bool
}

var templateTokens = []struct {
	token  string
	layout string
	date   bool
	clock  bool
}{
	{"YYYY", "%Y", true, false},
	{"MM", "%m", true, false},
	{"DD", "%d", true, false},
	{"HH24", "%H", false, true},
	{"HH12", "%I", false, true},
	{"HH", "%I", false, true},
	{"MI", "%M", false, true},
	{"SS", "%S", false, true},
	{"AM", "%p", false, true},
	{"PM", "%p", false, true},
	{"A.M.", "%p", false, true},
	{"P.M.", "%p", false, true},
}

// compileTemplate converts a SQL datetime template into a parse plan, or
// fails for directives without an equivalent.
func compileTemplate(tmpl string) (templateFormat, bool) {
	var out strings.Builder
	var f templateFormat
	var date, clock bool
	src := tmpl
	for len(src) > 0 {
		upper := strings.ToUpper(src)
		// Fractional seconds and timezone directives must trail.
		if rest, ok := trailingOnly(upper, "US", "MS", "FF1", "FF2", "FF3", "FF4", "FF5", "FF6"); ok {
			f.frac = true
			src = src[len(src)-len(rest):]
			continue
		}
		if rest, ok := trailingOnly(upper, "TZH:TZM", "TZHTZM", "TZH", "TZ", "OF"); ok {
			f.tz = true
			src = src[len(src)-len(rest):]
			continue
		}
		if src[0] == '"' {
			end := strings.IndexByte(src[1:], '"')
			if end < 0 {
				return f, false
			}
			out.WriteString(escapePercent(src[1 : 1+end]))
			src = src[end+2:]
			continue
		}
		matched := false
		for _, t := range templateTokens {
			if strings.HasPrefix(upper, t.token) {
				out.WriteString(t.layout)
				date = date || t.date
				clock = clock || t.clock
				src = src[len(t.token):]
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		c := src[0]
		if isTemplateLetter(c) {
			return f, false // unknown directive
		}
		if c == '.' {
			// The dot introducing a trailing fraction is consumed with it.
			if _, ok := trailingOnly(strings.ToUpper(src[1:]),
				"US", "MS", "FF1", "FF2", "FF3", "FF4", "FF5", "FF6"); ok {
				src = src[1:]
				continue
			}
		}
		out.WriteString(escapePercent(src[:1]))
		src = src[1:]
	}
	switch {
	case date && clock && f.tz:
		f.typ = TimestampTz
	case date && clock:
		f.typ = Timestamp
	case clock && f.tz:
		f.typ = TimeTz
	case clock:
		f.typ = Time
	case date:
		f.typ = Date
	default:
		return f, false
	}
	if f.tz && f.typ == Date {
		return f, false
	}
	f.layout = out.String()
	return f, true
}

// trailingOnly matches a directive only when nothing but fraction or tz
// directives and separators follow it.
func trailingOnly(upper string, tokens ...string) (rest string, ok bool) {
	for _, tok := range tokens {
		if strings.HasPrefix(upper, tok) && allTrailingHandled(upper[len(tok):]) {
			return upper[len(tok):], true
		}
	}
	return "", false
}

func allTrailingHandled(s string) bool {
	for _, tok := range []string{"TZH:TZM", "TZHTZM", "TZH", "TZ", "OF", "US", "MS",
		"FF1", "FF2", "FF3", "FF4", "FF5", "FF6"} {
		s = strings.ReplaceAll(s, tok, "")
	}
	for _, c := range s {
		if isTemplateLetter(byte(c)) || c >= '0' && c <= '9' {
			return false
		}
	}
	return true
}

func isTemplateLetter(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z'
}

func escapePercent(s string) string {
	return strings.ReplaceAll(s, "%", "%%")
}

// parseDateTimeTemplate parses text according to a SQL datetime template.
func parseDateTimeTemplate(text, tmpl string) (*DateTime, bool) {
	f, ok := compileTemplate(tmpl)
	if !ok {
		return nil, false
	}
	return parseWithISOFormat(text, isoFormat{f.layout, f.typ, f.frac, f.tz})
}
