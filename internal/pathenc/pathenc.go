// Package pathenc turns raw path bytes into text for display. Nothing else
// in the module decodes paths.
package pathenc

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// DefaultEncoding is used when a repository does not name one.
const DefaultEncoding = "utf-8"

// Decoder renders paths stored in one charset.
type Decoder struct {
	name string
	enc  encoding.Encoding // nil for UTF-8
}

// New returns a Decoder for a charset name such as "utf-8", "latin1" or
// "windows-1252".
func New(name string) (*Decoder, error) {
	if name == "" {
		name = DefaultEncoding
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	canonical, _ := htmlindex.Name(enc)
	d := &Decoder{name: canonical}
	if canonical != "utf-8" {
		d.enc = enc
	}
	return d, nil
}

// Name returns the canonical charset name.
func (d *Decoder) Name() string {
	return d.name
}

// Text decodes path. Bytes that are invalid in the charset become U+FFFD.
func (d *Decoder) Text(path []byte) string {
	if d.enc == nil {
		return strings.ToValidUTF8(string(path), string(utf8.RuneError))
	}
	out, err := d.enc.NewDecoder().Bytes(path)
	if err != nil {
		return strings.ToValidUTF8(string(path), string(utf8.RuneError))
	}
	return string(out)
}
