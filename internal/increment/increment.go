package increment

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/kebairia/rdhist/internal/rdtime"
)

// ErrUnrecognizedIncrementName indicates a directory entry that is not an
// increment. Scanners skip such entries.
var ErrUnrecognizedIncrementName = errors.New("unrecognized increment name")

// Kind tells what an increment records about the previous state of its entry.
type Kind int

const (
	Diff     Kind = iota // reverse delta against the next version
	Snapshot             // full copy of the previous version
	Missing              // the entry did not exist
	Dir                  // the entry was a directory
)

func (k Kind) String() string {
	switch k {
	case Diff:
		return "diff"
	case Snapshot:
		return "snapshot"
	case Missing:
		return "missing"
	case Dir:
		return "dir"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Longest first so "diff.gz" wins over "gz".
var suffixes = []struct {
	suffix     string
	kind       Kind
	compressed bool
}{
	{"snapshot.gz", Snapshot, true},
	{"snapshot", Snapshot, false},
	{"missing", Missing, false},
	{"diff.gz", Diff, true},
	{"data.gz", Snapshot, true},
	{"diff", Diff, false},
	{"data", Snapshot, false},
	{"dir", Dir, false},
}

// Increment is one decoded increment file name.
type Increment struct {
	Name       []byte // unquoted base name
	Time       rdtime.Timestamp
	Kind       Kind
	Compressed bool
	Suffix     string // as found on disk, e.g. "diff.gz"
	TimeText   string // as found on disk; Time.String() when empty
}

// Decode parses name with no quoting in effect.
func Decode(name []byte) (Increment, error) {
	return Quoter{}.Decode(name)
}

// Decode parses an on-disk increment name such as
// "my_file.txt.2014-11-02T17:23:41-05:00.diff.gz". Only the base name is
// quoted; the timestamp and suffix are stored as is.
func (q Quoter) Decode(name []byte) (Increment, error) {
	for _, s := range suffixes {
		rest, ok := bytes.CutSuffix(name, []byte("."+s.suffix))
		if !ok {
			continue
		}
		dot := bytes.LastIndexByte(rest, '.')
		if dot <= 0 {
			break
		}
		text := string(rest[dot+1:])
		ts, err := rdtime.Parse(text)
		if err != nil {
			return Increment{}, fmt.Errorf("%w: %q: %w", ErrUnrecognizedIncrementName, name, err)
		}
		base, err := q.Unquote(rest[:dot])
		if err != nil {
			return Increment{}, fmt.Errorf("%w: %q: %w", ErrUnrecognizedIncrementName, name, err)
		}
		return Increment{
			Name:       base,
			Time:       ts,
			Kind:       s.kind,
			Compressed: s.compressed,
			Suffix:     s.suffix,
			TimeText:   text,
		}, nil
	}
	return Increment{}, fmt.Errorf("%w: %q", ErrUnrecognizedIncrementName, name)
}

// Encode returns the on-disk name of inc.
func Encode(inc Increment) []byte {
	return Quoter{}.Encode(inc)
}

// Encode returns the on-disk name of inc, quoted.
func (q Quoter) Encode(inc Increment) []byte {
	suffix := inc.Suffix
	if suffix == "" {
		suffix = inc.Kind.String()
		if inc.Compressed {
			suffix += ".gz"
		}
	}
	text := inc.TimeText
	if text == "" {
		text = inc.Time.String()
	}
	out := q.Quote(inc.Name)
	out = append(out, '.')
	out = append(out, text...)
	out = append(out, '.')
	return append(out, suffix...)
}

// IsMissing reports whether the increment marks the entry as absent.
func (inc Increment) IsMissing() bool {
	return inc.Kind == Missing
}
