package statistics

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kebairia/rdhist/internal/increment"
	"github.com/kebairia/rdhist/internal/rdtime"
)

const specialName = "<F!chïer> (@vec) {càraçt#èrë} $épêcial"

var fixture = strings.Join([]string{
	"# Format of each line in file statistics file:",
	"# Filename Changed SourceSize MirrorSize IncrementSize",
	". 1 4096 4096 NA",
	"Fichier @ <root> 1 6 6 NA",
	specialName + " 1 286 143 0",
	"gone 0 NA 12 12",
	`back\\slash\nnewline 0 3 3 0`,
	"sub/My;032file 1 10 20 0",
	"",
}, "\n")

func gzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestLookup_PlainAndGzip(t *testing.T) {
	for name, data := range map[string][]byte{
		"plain": []byte(fixture),
		"gzip":  gzipped(t, fixture),
	} {
		t.Run(name, func(t *testing.T) {
			s, err := Lookup(bytes.NewReader(data), increment.Quoter{}, []byte(specialName))
			require.NoError(t, err)
			assert.Equal(t, int64(143), s.Mirror)
			assert.Equal(t, int64(286), s.Source)
		})
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		path   string
		mirror int64
		source int64
	}{
		{"", 4096, 4096},
		{"Fichier @ <root>", 6, 6},
		{"back\\slash\nnewline", 3, 3},
		{"sub/My;032file", 20, 10},
	}
	for _, tc := range tests {
		s, err := Lookup(strings.NewReader(fixture), increment.Quoter{}, []byte(tc.path))
		require.NoError(t, err, tc.path)
		assert.Equal(t, Sizes{Mirror: tc.mirror, Source: tc.source}, s, tc.path)
	}
}

func TestLookup_QuotedPath(t *testing.T) {
	q, err := increment.NewQuoter(" ")
	require.NoError(t, err)

	s, err := Lookup(strings.NewReader(fixture), q, []byte("sub/My file"))
	require.NoError(t, err)
	assert.Equal(t, Sizes{Mirror: 20, Source: 10}, s)
}

func TestLookup_Errors(t *testing.T) {
	_, err := Lookup(strings.NewReader(fixture), increment.Quoter{}, []byte("nope"))
	assert.ErrorIs(t, err, ErrPathNotInStatistics)

	_, err = Lookup(strings.NewReader(fixture), increment.Quoter{}, []byte("gone"))
	assert.ErrorIs(t, err, ErrMalformedStatisticsLine)

	for _, line := range []string{"x 1 -5 3 0", "x 1 5 3.5 0", "x 1 5 0x10 0"} {
		_, err = Lookup(strings.NewReader(line), increment.Quoter{}, []byte("x"))
		assert.ErrorIs(t, err, ErrMalformedStatisticsLine, line)
	}

	_, err = Lookup(strings.NewReader("short 1 2\nx 1 2 3 4"), increment.Quoter{}, []byte("x"))
	assert.ErrorIs(t, err, ErrMalformedStatisticsLine)

	_, err = Lookup(strings.NewReader("\x1f\x8bnot really gzip"), increment.Quoter{}, []byte("x"))
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	for name, data := range map[string][]byte{
		"plain": []byte(fixture),
		"gzip":  gzipped(t, fixture),
	} {
		t.Run(name, func(t *testing.T) {
			table, err := Parse(bytes.NewReader(data), increment.Quoter{})
			require.NoError(t, err)

			assert.Len(t, table.Entries, 5)
			assert.Equal(t, 1, table.Skipped)

			s, err := table.Sizes([]byte(specialName))
			require.NoError(t, err)
			assert.Equal(t, Sizes{Mirror: 143, Source: 286}, s)

			s, err = table.Sizes([]byte("back\\slash\nnewline"))
			require.NoError(t, err)
			assert.Equal(t, int64(3), s.Mirror)

			s, err = table.Sizes(nil)
			require.NoError(t, err)
			assert.Equal(t, int64(4096), s.Mirror)

			_, err = table.Sizes([]byte("gone"))
			assert.ErrorIs(t, err, ErrMalformedStatisticsLine)

			_, err = table.Sizes([]byte("nope"))
			assert.ErrorIs(t, err, ErrPathNotInStatistics)
		})
	}
}

func TestParse_AgreesWithLookup(t *testing.T) {
	table, err := Parse(strings.NewReader(fixture), increment.Quoter{})
	require.NoError(t, err)

	for _, path := range []string{"", "gone", "nope", specialName} {
		want, wantErr := Lookup(strings.NewReader(fixture), increment.Quoter{}, []byte(path))
		got, gotErr := table.Sizes([]byte(path))
		assert.Equal(t, want, got, path)
		for _, sentinel := range []error{ErrMalformedStatisticsLine, ErrPathNotInStatistics} {
			assert.Equal(t, errors.Is(wantErr, sentinel), errors.Is(gotErr, sentinel), path)
		}
	}
}

func TestRootPath_NotQuoted(t *testing.T) {
	q, err := increment.NewQuoter("^a-z")
	require.NoError(t, err)
	data := ". 1 4096 2048 NA\nfile 1 5 5 0\n"

	s, err := Lookup(strings.NewReader(data), q, nil)
	require.NoError(t, err)
	assert.Equal(t, Sizes{Mirror: 2048, Source: 4096}, s)

	table, err := Parse(strings.NewReader(data), q)
	require.NoError(t, err)
	assert.Equal(t, 0, table.Skipped)
	s, err = table.Sizes(nil)
	require.NoError(t, err)
	assert.Equal(t, Sizes{Mirror: 2048, Source: 4096}, s)
}

func TestParse_UnquotesPaths(t *testing.T) {
	q, err := increment.NewQuoter(" ")
	require.NoError(t, err)

	table, err := Parse(strings.NewReader(fixture), q)
	require.NoError(t, err)

	s, err := table.Sizes([]byte("sub/My file"))
	require.NoError(t, err)
	assert.Equal(t, int64(20), s.Mirror)
}

type fakeSource struct {
	files  map[int64][]byte
	opened int
	closed int
}

func (f *fakeSource) OpenStatistics(session rdtime.Timestamp) (io.ReadCloser, error) {
	data, ok := f.files[session.Key()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoStatistics, session)
	}
	f.opened++
	return &trackingCloser{Reader: bytes.NewReader(data), src: f}, nil
}

func (f *fakeSource) Quoter() increment.Quoter { return increment.Quoter{} }

type trackingCloser struct {
	io.Reader
	src *fakeSource
}

func (c *trackingCloser) Close() error {
	c.src.closed++
	return nil
}

func TestReader(t *testing.T) {
	session := rdtime.MustParse("2014-11-05T16:05:07-05:00")
	src := &fakeSource{files: map[int64][]byte{session.Key(): gzipped(t, fixture)}}
	r := NewReader(src)

	s, err := r.SizesAt(rdtime.MustParse("2014-11-05T21:05:07Z"), []byte(specialName))
	require.NoError(t, err)
	assert.Equal(t, Sizes{Mirror: 143, Source: 286}, s)

	table, err := r.TableAt(session)
	require.NoError(t, err)
	assert.True(t, table.Session.Equal(session))
	assert.Len(t, table.Entries, 5)

	_, err = r.SizesAt(session, []byte("nope"))
	assert.ErrorIs(t, err, ErrPathNotInStatistics)

	_, err = r.SizesAt(rdtime.FromUnix(0), []byte(specialName))
	assert.ErrorIs(t, err, ErrNoStatistics)

	assert.Equal(t, 3, src.opened)
	assert.Equal(t, src.opened, src.closed)
}
