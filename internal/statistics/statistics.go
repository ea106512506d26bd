package statistics

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/klauspost/compress/gzip"

	"github.com/kebairia/rdhist/internal/increment"
	"github.com/kebairia/rdhist/internal/rdtime"
)

var (
	// ErrPathNotInStatistics indicates that the table has no line for the path.
	ErrPathNotInStatistics = errors.New("path not in statistics")
	// ErrMalformedStatisticsLine indicates a line whose fields cannot be read.
	ErrMalformedStatisticsLine = errors.New("malformed statistics line")
	// ErrNoStatistics indicates that no statistics file exists for a session.
	ErrNoStatistics = errors.New("no statistics for session")
)

// Prefix is the base name of per-session statistics files:
// file_statistics.<timestamp>.data[.gz].
const Prefix = "file_statistics"

// Field positions after the path:
// Filename Changed SourceSize MirrorSize IncrementSize
const (
	fieldChanged = iota
	fieldSourceSize
	fieldMirrorSize
	fieldIncrementSize
	numFields
)

// rootPath is how the table names the repository root.
var rootPath = []byte(".")

// Sizes are the sizes recorded for one path at one session.
type Sizes struct {
	Mirror int64 `json:"mirror_size"`
	Source int64 `json:"source_size"`
}

// Table is a parsed statistics file.
type Table struct {
	Session rdtime.Timestamp
	Entries map[string]Sizes // keyed by unquoted path
	Skipped int              // lines with unreadable sizes or paths

	malformed map[string]error
}

// Sizes returns the sizes recorded for path. A path whose line has
// unreadable sizes fails with ErrMalformedStatisticsLine, as in Lookup.
func (t *Table) Sizes(path []byte) (Sizes, error) {
	if len(path) == 0 {
		path = rootPath
	}
	if err, ok := t.malformed[string(path)]; ok {
		return Sizes{}, err
	}
	s, ok := t.Entries[string(path)]
	if !ok {
		return Sizes{}, fmt.Errorf("%w: %q at %s", ErrPathNotInStatistics, path, t.Session)
	}
	return s, nil
}

// Lookup scans r for path and returns its sizes. r may be gzip-compressed.
func Lookup(r io.Reader, q increment.Quoter, path []byte) (Sizes, error) {
	if len(path) == 0 {
		path = rootPath
	}
	key := rootPath
	if !bytes.Equal(path, rootPath) {
		key = escapePath(q.QuotePath(path))
	}

	var found *Sizes
	err := scan(r, func(n int, name []byte, fields [numFields][]byte) error {
		if !bytes.Equal(name, key) {
			return nil
		}
		s, err := sizes(fields)
		if err != nil {
			return fmt.Errorf("%w: line %d: %v", ErrMalformedStatisticsLine, n, err)
		}
		found = &s
		return errStop
	})
	if err != nil {
		return Sizes{}, err
	}
	if found == nil {
		return Sizes{}, fmt.Errorf("%w: %q", ErrPathNotInStatistics, path)
	}
	return *found, nil
}

// Parse reads the whole table. Lines with unreadable sizes, such as the NA
// written for files absent from the source, or unreadable paths are counted
// in Skipped.
func Parse(r io.Reader, q increment.Quoter) (*Table, error) {
	t := &Table{
		Entries:   make(map[string]Sizes),
		malformed: make(map[string]error),
	}
	err := scan(r, func(n int, name []byte, fields [numFields][]byte) error {
		path := rootPath
		if !bytes.Equal(name, rootPath) {
			var err error
			if path, err = q.UnquotePath(unescapePath(name)); err != nil {
				t.Skipped++
				return nil
			}
		}
		s, err := sizes(fields)
		if err != nil {
			t.Skipped++
			t.malformed[string(path)] = fmt.Errorf("%w: line %d: %v", ErrMalformedStatisticsLine, n, err)
			delete(t.Entries, string(path))
			return nil
		}
		delete(t.malformed, string(path))
		t.Entries[string(path)] = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

var errStop = errors.New("stop")

// scan calls fn for every data line of r until fn returns an error.
func scan(r io.Reader, fn func(n int, name []byte, fields [numFields][]byte) error) error {
	br, err := decompress(r)
	if err != nil {
		return err
	}
	for n := 1; ; n++ {
		line, err := br.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read statistics: %w", err)
		}
		eof := err != nil

		line = bytes.TrimRight(line, "\r\n")
		if len(line) > 0 && line[0] != '#' {
			name, fields, ok := split(line)
			if !ok {
				return fmt.Errorf("%w: line %d: expected %d fields after the path", ErrMalformedStatisticsLine, n, numFields)
			}
			if err := fn(n, name, fields); err != nil {
				if errors.Is(err, errStop) {
					return nil
				}
				return err
			}
		}
		if eof {
			return nil
		}
	}
}

// decompress returns a reader over the plain table, inflating it when it
// starts with the gzip magic.
func decompress(r io.Reader) (*bufio.Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil || magic[0] != 0x1f || magic[1] != 0x8b {
		// Too short to be gzip, or plain text.
		return br, nil
	}
	zr, err := gzip.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("open gzip statistics: %w", err)
	}
	return bufio.NewReader(zr), nil
}

// split cuts the trailing fields off a line. The path may contain spaces.
func split(line []byte) ([]byte, [numFields][]byte, bool) {
	var fields [numFields][]byte
	rest := line
	for i := numFields - 1; i >= 0; i-- {
		sp := bytes.LastIndexByte(rest, ' ')
		if sp < 0 {
			return nil, fields, false
		}
		fields[i] = rest[sp+1:]
		rest = rest[:sp]
	}
	if len(rest) == 0 {
		return nil, fields, false
	}
	return rest, fields, true
}

func sizes(fields [numFields][]byte) (Sizes, error) {
	mirror, err := size(fields[fieldMirrorSize])
	if err != nil {
		return Sizes{}, fmt.Errorf("mirror size: %w", err)
	}
	source, err := size(fields[fieldSourceSize])
	if err != nil {
		return Sizes{}, fmt.Errorf("source size: %w", err)
	}
	return Sizes{Mirror: mirror, Source: source}, nil
}

func size(field []byte) (int64, error) {
	v, err := strconv.ParseInt(string(field), 10, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("negative size %d", v)
	}
	return v, nil
}

// escapePath writes newlines as \n and backslashes as \\, the way the
// statistics file stores paths.
func escapePath(path []byte) []byte {
	out := make([]byte, 0, len(path))
	for _, c := range path {
		switch c {
		case '\\':
			out = append(out, '\\', '\\')
		case '\n':
			out = append(out, '\\', 'n')
		default:
			out = append(out, c)
		}
	}
	return out
}

func unescapePath(path []byte) []byte {
	out := make([]byte, 0, len(path))
	for i := 0; i < len(path); i++ {
		if path[i] == '\\' && i+1 < len(path) {
			switch path[i+1] {
			case '\\':
				out = append(out, '\\')
				i++
				continue
			case 'n':
				out = append(out, '\n')
				i++
				continue
			}
		}
		out = append(out, path[i])
	}
	return out
}
