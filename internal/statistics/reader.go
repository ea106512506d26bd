package statistics

import (
	"fmt"
	"io"

	"github.com/kebairia/rdhist/internal/increment"
	"github.com/kebairia/rdhist/internal/rdtime"
)

// Source opens the statistics file of a session. Implementations return an
// error matching ErrNoStatistics when the session has none.
type Source interface {
	OpenStatistics(session rdtime.Timestamp) (io.ReadCloser, error)
	Quoter() increment.Quoter
}

// Reader resolves sizes through a Source. Every call opens and closes the
// file; nothing is cached.
type Reader struct {
	src Source
}

// NewReader returns a Reader over src.
func NewReader(src Source) *Reader {
	return &Reader{src: src}
}

// SizesAt scans the statistics of session for path.
func (r *Reader) SizesAt(session rdtime.Timestamp, path []byte) (Sizes, error) {
	f, err := r.src.OpenStatistics(session)
	if err != nil {
		return Sizes{}, err
	}
	defer f.Close()

	s, err := Lookup(f, r.src.Quoter(), path)
	if err != nil {
		return Sizes{}, fmt.Errorf("statistics %s: %w", session, err)
	}
	return s, nil
}

// TableAt parses the whole statistics file of session, for callers that
// look up many paths.
func (r *Reader) TableAt(session rdtime.Timestamp) (*Table, error) {
	f, err := r.src.OpenStatistics(session)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := Parse(f, r.src.Quoter())
	if err != nil {
		return nil, fmt.Errorf("statistics %s: %w", session, err)
	}
	t.Session = session
	return t, nil
}
