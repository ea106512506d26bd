package increment

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrBadQuoting indicates an escape sequence that the quoting scheme never produces.
var ErrBadQuoting = errors.New("bad quoting")

// QuotingChar introduces an escaped byte: ';' followed by three decimal digits.
const QuotingChar = ';'

// Quoter applies the repository's filename quoting. Bytes in the quoted set,
// and the quoting char itself, are stored on disk as ";NNN". A zero Quoter
// quotes nothing and treats ';' as an ordinary byte.
type Quoter struct {
	enabled bool
	set     [256]bool
}

// NewQuoter builds a Quoter from the body of a regular-expression character
// class, as stored in rdiff-backup-data/chars_to_quote: "A-Z:" or
// "^a-z0-9_ -." for instance. An empty class disables quoting.
func NewQuoter(class string) (Quoter, error) {
	var q Quoter
	if class == "" {
		return q, nil
	}

	negate := false
	if class[0] == '^' {
		negate = true
		class = class[1:]
	}
	if class == "" {
		return Quoter{}, fmt.Errorf("empty negated character class")
	}

	var members [256]bool
	for i := 0; i < len(class); {
		lo, n, err := classByte(class, i)
		if err != nil {
			return Quoter{}, err
		}
		i += n
		hi := lo
		// A '-' between two members is a range; leading or trailing it is literal.
		if i+1 < len(class) && class[i] == '-' {
			hi, n, err = classByte(class, i+1)
			if err != nil {
				return Quoter{}, err
			}
			if hi < lo {
				return Quoter{}, fmt.Errorf("invalid range %q-%q in character class", lo, hi)
			}
			i += 1 + n
		}
		for c := int(lo); c <= int(hi); c++ {
			members[c] = true
		}
	}

	q.enabled = true
	for c := range members {
		q.set[c] = members[c] != negate
	}
	q.set[QuotingChar] = true
	return q, nil
}

func classByte(class string, i int) (byte, int, error) {
	if class[i] != '\\' {
		return class[i], 1, nil
	}
	if i+1 >= len(class) {
		return 0, 0, fmt.Errorf("trailing backslash in character class")
	}
	return class[i+1], 2, nil
}

// Enabled reports whether any byte is quoted.
func (q Quoter) Enabled() bool {
	return q.enabled
}

// Quote escapes every byte of the quoted set.
func (q Quoter) Quote(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if q.enabled && q.set[c] {
			out = append(out, QuotingChar, '0'+c/100, '0'+c/10%10, '0'+c%10)
			continue
		}
		out = append(out, c)
	}
	return out
}

// Unquote reverses Quote. It only accepts what Quote produces: an escape for
// a byte outside the quoted set, or a raw byte inside it, is an error.
func (q Quoter) Unquote(b []byte) ([]byte, error) {
	if !q.enabled {
		return append([]byte(nil), b...), nil
	}
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] != QuotingChar {
			if q.set[b[i]] {
				return nil, fmt.Errorf("%w: unescaped %q in %q", ErrBadQuoting, b[i], b)
			}
			out = append(out, b[i])
			continue
		}
		if len(b)-i < 4 {
			return nil, fmt.Errorf("%w: truncated escape in %q", ErrBadQuoting, b)
		}
		v := 0
		for _, d := range b[i+1 : i+4] {
			if d < '0' || d > '9' {
				return nil, fmt.Errorf("%w: invalid escape in %q", ErrBadQuoting, b)
			}
			v = v*10 + int(d-'0')
		}
		if v > 255 || !q.set[v] {
			return nil, fmt.Errorf("%w: unexpected escape %q in %q", ErrBadQuoting, b[i:i+4], b)
		}
		out = append(out, byte(v))
		i += 3
	}
	return out, nil
}

// QuotePath quotes each '/'-separated component of path.
func (q Quoter) QuotePath(path []byte) []byte {
	parts := bytes.Split(path, []byte{'/'})
	for i, p := range parts {
		parts[i] = q.Quote(p)
	}
	return bytes.Join(parts, []byte{'/'})
}

// UnquotePath reverses QuotePath.
func (q Quoter) UnquotePath(path []byte) ([]byte, error) {
	parts := bytes.Split(path, []byte{'/'})
	for i, p := range parts {
		u, err := q.Unquote(p)
		if err != nil {
			return nil, err
		}
		parts[i] = u
	}
	return bytes.Join(parts, []byte{'/'}), nil
}
