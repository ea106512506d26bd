package rdtime

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		text    string
		seconds int64
		offset  int
	}{
		{"2014-11-02T17:23:41-05:00", 1414967021, -5 * 3600},
		{"2014-11-02T22:23:41Z", 1414967021, 0},
		{"2014-11-03T03:53:41+05:30", 1414967021, 5*3600 + 30*60},
		{"1900-01-01T00:00:00Z", -2208988800, 0},
		{"2014-11-05T16:04:30-05:00", 1415221470, -5 * 3600},
	}
	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			ts, err := Parse(tc.text)
			require.NoError(t, err)
			assert.Equal(t, tc.seconds, ts.Seconds())
			assert.Equal(t, tc.offset, ts.Offset())
		})
	}
}

func TestParse_Rejects(t *testing.T) {
	bad := []string{
		"",
		"2014-11-02",
		"2014-11-02T17:23:41",
		"2014-11-02 17:23:41Z",
		"2014/11/02T17:23:41Z",
		"2014-11-02T17:23:41z",
		"2014-11-02T17:23:41+5:00",
		"2014-11-02T17:23:41-0500",
		"2014-11-02T17:23:41-05:00:00",
		"2014-11-02T17:23:41*05:00",
		"2014-11-02T17:23:41+24:00",
		"2014-11-02T17:23:41+05:60",
		"1899-12-31T23:59:59Z",
		"2100-01-01T00:00:00Z",
		"2014-00-02T17:23:41Z",
		"2014-13-02T17:23:41Z",
		"2014-11-00T17:23:41Z",
		"2014-11-32T17:23:41Z",
		"2014-11-02T24:00:00Z",
		"2014-11-02T17:60:41Z",
		"2014-11-02T17:23:62Z",
		"2014-1a-02T17:23:41Z",
	}
	for _, text := range bad {
		t.Run(text, func(t *testing.T) {
			_, err := Parse(text)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedTimestamp))
			assert.Contains(t, err.Error(), text)
		})
	}
}

func TestParse_LeapSecondAndDayOverflow(t *testing.T) {
	leap := MustParse("2014-11-02T23:59:60Z")
	assert.Equal(t, MustParse("2014-11-03T00:00:00Z").Seconds(), leap.Seconds())

	feb := MustParse("2015-02-31T00:00:00Z")
	assert.Equal(t, MustParse("2015-03-03T00:00:00Z").Seconds(), feb.Seconds())
}

func TestString_RoundTrip(t *testing.T) {
	for _, text := range []string{
		"2014-11-02T17:23:41-05:00",
		"2014-11-02T22:23:41Z",
		"2014-11-03T03:53:41+05:30",
		"2099-12-31T23:59:59-23:59",
	} {
		ts := MustParse(text)
		assert.Equal(t, text, ts.String())

		again, err := Parse(ts.String())
		require.NoError(t, err)
		assert.Equal(t, ts.Seconds(), again.Seconds())
		assert.Equal(t, ts.Offset(), again.Offset())
	}
}

func TestCompare_IgnoresOffset(t *testing.T) {
	est := MustParse("2014-11-02T17:23:41-05:00")
	utc := MustParse("2014-11-02T22:23:41Z")
	later := MustParse("2014-11-02T17:23:42-05:00")

	assert.Equal(t, 0, est.Compare(utc))
	assert.True(t, est.Equal(utc))
	assert.Equal(t, est.Key(), utc.Key())
	assert.NotEqual(t, est.String(), utc.String())

	assert.Equal(t, -1, est.Compare(later))
	assert.Equal(t, 1, later.Compare(utc))
	assert.True(t, est.Before(later))
	assert.True(t, later.After(utc))

	set := map[int64]Timestamp{est.Key(): est}
	_, ok := set[utc.Key()]
	assert.True(t, ok)
}

func TestFromUnix(t *testing.T) {
	ts := FromUnix(1414967021)
	assert.Equal(t, 0, ts.Offset())
	assert.Equal(t, "2014-11-02T22:23:41Z", ts.String())
	assert.True(t, ts.Equal(MustParse("2014-11-02T17:23:41-05:00")))
}

func TestMidnightUTC(t *testing.T) {
	orig := now
	t.Cleanup(func() { now = orig })
	now = func() time.Time { return time.Date(2014, 11, 5, 16, 4, 30, 0, time.UTC) }

	assert.Equal(t, "2014-11-05T00:00:00Z", MidnightUTC(0).String())
	assert.Equal(t, "2014-11-04T00:00:00Z", MidnightUTC(-1).String())
	assert.Equal(t, "2014-11-12T00:00:00Z", MidnightUTC(7).String())
	assert.Equal(t, 0, MidnightUTC(3).Offset())
}

func TestDisplayAndLocalFields(t *testing.T) {
	ts := MustParse("2014-11-02T17:23:41-05:00")

	assert.Equal(t, "2014-11-02 17:23:41", ts.DisplayString())
	assert.Equal(t, "-05:00", ts.TimezoneString())
	assert.Equal(t, int64(16376), ts.LocalDaysSinceEpoch())
	assert.Equal(t, "2014-11-02T00:00:00-05:00", ts.WithTime(0, 0, 0).String())
	assert.Equal(t, 17, ts.Time().Hour())
}

func TestLocalDaysSinceEpoch_Before1970(t *testing.T) {
	assert.Equal(t, int64(-1), MustParse("1969-12-31T23:00:00Z").LocalDaysSinceEpoch())
	assert.Equal(t, int64(-1), MustParse("1969-12-31T00:00:01+02:00").LocalDaysSinceEpoch())
	assert.Equal(t, int64(-25567), MustParse("1900-01-01T00:00:00Z").LocalDaysSinceEpoch())
	assert.Equal(t, int64(-25567), MustParse("1900-01-01T12:30:00-05:00").LocalDaysSinceEpoch())
	assert.Equal(t, int64(0), MustParse("1970-01-01T00:00:00Z").LocalDaysSinceEpoch())
}

func TestMarshalText(t *testing.T) {
	type doc struct {
		At Timestamp `json:"at"`
	}
	in := doc{At: MustParse("2014-11-02T17:23:41-05:00")}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"at":"2014-11-02T17:23:41-05:00"}`, string(data))

	var out doc
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in.At, out.At)

	err = json.Unmarshal([]byte(`{"at":"yesterday"}`), &out)
	assert.ErrorIs(t, err, ErrMalformedTimestamp)
}

func TestDedup(t *testing.T) {
	ts := []Timestamp{
		FromUnix(30),
		MustParse("1970-01-01T00:00:10Z"),
		FromUnix(20),
		MustParse("1969-12-31T19:00:10-05:00"),
		FromUnix(30),
	}
	got := Dedup(ts)

	require.Len(t, got, 3)
	assert.Equal(t, int64(10), got[0].Seconds())
	assert.Equal(t, int64(20), got[1].Seconds())
	assert.Equal(t, int64(30), got[2].Seconds())
}
