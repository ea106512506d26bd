package rdtime

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// ErrMalformedTimestamp indicates that a timestamp string could not be parsed.
var ErrMalformedTimestamp = errors.New("malformed timestamp")

const (
	secondsPerDay = 24 * 60 * 60

	layoutLocal   = "2006-01-02T15:04:05"
	layoutDisplay = "2006-01-02 15:04:05"
)

// now is replaced in tests.
var now = time.Now

// Timestamp is a point in time as recorded by the backup engine. It keeps
// the wall clock of the machine that wrote it together with that machine's
// UTC offset. Ordering and equality only look at the absolute instant.
type Timestamp struct {
	local  int64 // wall clock fields read as UTC
	offset int   // seconds east of UTC
}

// FromUnix returns the Timestamp for the given epoch seconds, recorded in UTC.
func FromUnix(seconds int64) Timestamp {
	return Timestamp{local: seconds}
}

// MidnightUTC returns today's midnight UTC shifted by daysFromToday days.
func MidnightUTC(daysFromToday int) Timestamp {
	sec := now().Unix()
	sec -= sec % secondsPerDay
	return Timestamp{local: sec + int64(daysFromToday)*secondsPerDay}
}

// Parse decodes text of the form 2014-11-02T17:23:41-05:00 or
// 2014-11-02T22:23:41Z.
func Parse(text string) (Timestamp, error) {
	malformed := fmt.Errorf("%w: %q", ErrMalformedTimestamp, text)
	if len(text) < len(layoutLocal)+1 {
		return Timestamp{}, malformed
	}
	date, tzd := text[:len(layoutLocal)], text[len(layoutLocal):]

	// Layout separators, then every other byte must be a digit.
	for i := 0; i < len(date); i++ {
		switch i {
		case 4, 7:
			if date[i] != '-' {
				return Timestamp{}, malformed
			}
		case 10:
			if date[i] != 'T' {
				return Timestamp{}, malformed
			}
		case 13, 16:
			if date[i] != ':' {
				return Timestamp{}, malformed
			}
		default:
			if date[i] < '0' || date[i] > '9' {
				return Timestamp{}, malformed
			}
		}
	}
	year := atoi(date[0:4])
	month := atoi(date[5:7])
	day := atoi(date[8:10])
	hour := atoi(date[11:13])
	minute := atoi(date[14:16])
	second := atoi(date[17:19])
	switch {
	case year < 1900 || year > 2099,
		month < 1 || month > 12,
		day < 1 || day > 31,
		hour > 23,
		minute > 59,
		second > 61: // leap seconds
		return Timestamp{}, malformed
	}

	offset, ok := parseOffset(tzd)
	if !ok {
		return Timestamp{}, malformed
	}

	// time.Date normalises overflowing days and seconds the same way timegm does.
	local := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC).Unix()
	return Timestamp{local: local, offset: offset}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level fixtures.
func MustParse(text string) Timestamp {
	t, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return t
}

func parseOffset(tzd string) (int, bool) {
	if tzd == "Z" {
		return 0, true
	}
	if len(tzd) != 6 || tzd[3] != ':' {
		return 0, false
	}
	var sign int
	switch tzd[0] {
	case '+':
		sign = 1
	case '-':
		sign = -1
	default:
		return 0, false
	}
	for _, i := range []int{1, 2, 4, 5} {
		if tzd[i] < '0' || tzd[i] > '9' {
			return 0, false
		}
	}
	hours, minutes := atoi(tzd[1:3]), atoi(tzd[4:6])
	if hours > 23 || minutes > 59 {
		return 0, false
	}
	return sign * 60 * (60*hours + minutes), true
}

// atoi converts a string already checked to hold only digits.
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// Seconds returns the absolute instant in seconds since the epoch.
func (t Timestamp) Seconds() int64 {
	return t.local - int64(t.offset)
}

// Offset returns the recorded UTC offset in seconds.
func (t Timestamp) Offset() int {
	return t.offset
}

// Key identifies the instant; two timestamps with the same Key are equal.
// It is also the value carried by restore requests.
func (t Timestamp) Key() int64 {
	return t.Seconds()
}

// Time returns the instant as a time.Time in the recorded zone.
func (t Timestamp) Time() time.Time {
	return time.Unix(t.Seconds(), 0).In(time.FixedZone("", t.offset))
}

// Compare returns -1, 0 or +1 depending on whether t is before, equal to or
// after u.
func (t Timestamp) Compare(u Timestamp) int {
	switch a, b := t.Seconds(), u.Seconds(); {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (t Timestamp) Equal(u Timestamp) bool  { return t.Seconds() == u.Seconds() }
func (t Timestamp) Before(u Timestamp) bool { return t.Seconds() < u.Seconds() }
func (t Timestamp) After(u Timestamp) bool  { return t.Seconds() > u.Seconds() }

// LocalDaysSinceEpoch returns the number of whole days of the recorded wall
// clock, rounded down for dates before 1970.
func (t Timestamp) LocalDaysSinceEpoch() int64 {
	days := t.local / secondsPerDay
	if t.local%secondsPerDay < 0 {
		days--
	}
	return days
}

// WithTime returns a Timestamp on the same local day at the given clock time.
func (t Timestamp) WithTime(hour, minute, second int) Timestamp {
	y, m, d := time.Unix(t.local, 0).UTC().Date()
	local := time.Date(y, m, d, hour, minute, second, 0, time.UTC).Unix()
	return Timestamp{local: local, offset: t.offset}
}

// TimezoneString returns Z or the offset as +HH:MM / -HH:MM.
func (t Timestamp) TimezoneString() string {
	if t.offset == 0 {
		return "Z"
	}
	sign := '+'
	abs := t.offset
	if abs < 0 {
		sign = '-'
		abs = -abs
	}
	return fmt.Sprintf("%c%02d:%02d", sign, abs/3600, abs%3600/60)
}

// DisplayString formats the recorded wall clock for people.
func (t Timestamp) DisplayString() string {
	return time.Unix(t.local, 0).UTC().Format(layoutDisplay)
}

// String returns the encoding read by Parse.
func (t Timestamp) String() string {
	return time.Unix(t.local, 0).UTC().Format(layoutLocal) + t.TimezoneString()
}

// MarshalText implements encoding.TextMarshaler.
func (t Timestamp) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Timestamp) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Sort orders timestamps by absolute instant, in place.
func Sort(ts []Timestamp) {
	sort.SliceStable(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
}

// Dedup sorts ts and drops entries that denote the same instant as their
// predecessor. The returned slice shares ts' backing array.
func Dedup(ts []Timestamp) []Timestamp {
	Sort(ts)
	out := ts[:0]
	for i, t := range ts {
		if i > 0 && t.Equal(out[len(out)-1]) {
			continue
		}
		out = append(out, t)
	}
	return out
}
