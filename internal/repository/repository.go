package repository

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/kebairia/rdhist/internal/history"
	"github.com/kebairia/rdhist/internal/increment"
	"github.com/kebairia/rdhist/internal/logger"
	"github.com/kebairia/rdhist/internal/rdtime"
	"github.com/kebairia/rdhist/internal/statistics"
)

// ErrNotRepository indicates a directory without rdiff-backup metadata.
var ErrNotRepository = errors.New("not a backup repository")

const (
	DataDir          = "rdiff-backup-data"
	IncrementsDir    = "increments"
	CharsToQuoteFile = "chars_to_quote"
)

// Files whose timestamps mark a completed backup session.
var sessionMarkers = map[string]bool{
	"mirror_metadata":    true,
	"session_statistics": true,
	"current_mirror":     true,
}

// Source is what the history and statistics layers need from a repository.
type Source interface {
	// Sessions returns every backup session, oldest first, without duplicates.
	Sessions() ([]rdtime.Timestamp, error)
	// Entry returns the mirror state and increments of path.
	Entry(path []byte) (history.Entry, error)
	// OpenStatistics opens the statistics file of session.
	OpenStatistics(session rdtime.Timestamp) (io.ReadCloser, error)
	Quoter() increment.Quoter
}

// Browser lists the entries of a directory, live and deleted.
type Browser interface {
	Children(dir []byte) ([]history.Entry, error)
}

// Option lets you override default settings on an FS.
type Option func(*FS)

// WithLogger sets the logger used to report skipped files.
func WithLogger(log logger.Logger) Option {
	return func(r *FS) {
		if log != nil {
			r.log = log
		}
	}
}

// WithCharsToQuote overrides the quoting read from the repository.
func WithCharsToQuote(class string) Option {
	return func(r *FS) {
		r.charsToQuote = &class
	}
}

// FS is a repository stored on an afero filesystem.
type FS struct {
	fs           afero.Fs
	root         string
	quoter       increment.Quoter
	charsToQuote *string
	log          logger.Logger
}

// Ensure FS satisfies Source and Browser.
var (
	_ Source  = (*FS)(nil)
	_ Browser = (*FS)(nil)
)

// Open checks that root holds a repository and reads its quoting settings.
func Open(fsys afero.Fs, root string, opts ...Option) (*FS, error) {
	r := &FS{
		fs:   fsys,
		root: filepath.Clean(root),
		log:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	isDir, err := afero.IsDir(fsys, r.dataPath())
	if err != nil || !isDir {
		return nil, fmt.Errorf("%w: %s", ErrNotRepository, r.root)
	}

	class := ""
	if r.charsToQuote != nil {
		class = *r.charsToQuote
	} else {
		data, err := afero.ReadFile(fsys, r.dataPath(CharsToQuoteFile))
		switch {
		case err == nil:
			class = strings.TrimRight(string(data), "\r\n")
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("read %s: %w", CharsToQuoteFile, err)
		}
	}
	if r.quoter, err = increment.NewQuoter(class); err != nil {
		return nil, fmt.Errorf("%s %q: %w", CharsToQuoteFile, class, err)
	}
	return r, nil
}

// Root returns the repository directory.
func (r *FS) Root() string {
	return r.root
}

func (r *FS) Quoter() increment.Quoter {
	return r.quoter
}

func (r *FS) dataPath(elem ...string) string {
	return filepath.Join(append([]string{r.root, DataDir}, elem...)...)
}

// metadata decodes the names of the files directly under rdiff-backup-data.
func (r *FS) metadata() ([]increment.Increment, []string, error) {
	infos, err := afero.ReadDir(r.fs, r.dataPath())
	if err != nil {
		return nil, nil, fmt.Errorf("list %s: %w", DataDir, err)
	}
	var (
		incs  []increment.Increment
		names []string
	)
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		inc, err := increment.Decode([]byte(info.Name()))
		if err != nil {
			// Logs, chars_to_quote and friends live here too.
			r.log.Debug("skipping metadata file", "name", info.Name())
			continue
		}
		incs = append(incs, inc)
		names = append(names, info.Name())
	}
	return incs, names, nil
}

func (r *FS) Sessions() ([]rdtime.Timestamp, error) {
	incs, _, err := r.metadata()
	if err != nil {
		return nil, err
	}
	var sessions []rdtime.Timestamp
	for _, inc := range incs {
		if sessionMarkers[string(inc.Name)] {
			sessions = append(sessions, inc.Time)
		}
	}
	return rdtime.Dedup(sessions), nil
}

func (r *FS) OpenStatistics(session rdtime.Timestamp) (io.ReadCloser, error) {
	incs, names, err := r.metadata()
	if err != nil {
		return nil, err
	}
	for i, inc := range incs {
		if string(inc.Name) == statistics.Prefix && inc.Time.Equal(session) {
			f, err := r.fs.Open(r.dataPath(names[i]))
			if err != nil {
				return nil, fmt.Errorf("open statistics: %w", err)
			}
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", statistics.ErrNoStatistics, session)
}

// split cleans a '/'-separated path relative to the root and returns its
// parent and base name. The root is returned as two empty slices.
func split(path []byte) (parent, base []byte) {
	path = bytes.Trim(path, "/")
	if len(path) == 0 || bytes.Equal(path, []byte(".")) {
		return nil, nil
	}
	if i := bytes.LastIndexByte(path, '/'); i >= 0 {
		return path[:i], path[i+1:]
	}
	return nil, path
}

// mirrorPath returns the on-disk location of an unquoted relative path.
func (r *FS) mirrorPath(path []byte) string {
	return filepath.Join(r.root, filepath.FromSlash(string(r.quoter.QuotePath(path))))
}

func (r *FS) incrementsPath(dir []byte) string {
	return filepath.Join(r.dataPath(IncrementsDir), filepath.FromSlash(string(r.quoter.QuotePath(dir))))
}

func (r *FS) Entry(path []byte) (history.Entry, error) {
	parent, base := split(path)
	if base == nil {
		return history.Entry{Path: []byte{}, Exists: true, Root: true}, nil
	}
	rel := base
	if len(parent) > 0 {
		rel = bytes.Join([][]byte{parent, base}, []byte{'/'})
	}

	exists, err := afero.Exists(r.fs, r.mirrorPath(rel))
	if err != nil {
		return history.Entry{}, fmt.Errorf("stat mirror of %q: %w", rel, err)
	}
	entry := history.Entry{Path: rel, Exists: exists}

	incs, err := r.increments(parent)
	if err != nil {
		return history.Entry{}, err
	}
	for _, inc := range incs {
		if bytes.Equal(inc.Name, base) {
			entry.Increments = append(entry.Increments, inc)
		}
	}
	return entry, nil
}

// increments decodes the increment files stored for the children of dir.
func (r *FS) increments(dir []byte) ([]increment.Increment, error) {
	infos, err := afero.ReadDir(r.fs, r.incrementsPath(dir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list increments of %q: %w", dir, err)
	}

	var incs []increment.Increment
	for _, info := range infos {
		// Increments of a directory's children live in a directory of the same name.
		if info.IsDir() {
			continue
		}
		inc, err := r.quoter.Decode([]byte(info.Name()))
		if err != nil {
			r.log.Warn("skipping unrecognized increment",
				"dir", string(dir),
				"name", info.Name(),
				"error", err.Error(),
			)
			continue
		}
		incs = append(incs, inc)
	}
	return incs, nil
}

// Children returns the entries of dir: the live ones from the mirror and the
// deleted ones known only from their increments, sorted by name.
func (r *FS) Children(dir []byte) ([]history.Entry, error) {
	parent, base := split(dir)
	var rel []byte
	if base != nil {
		rel = base
		if len(parent) > 0 {
			rel = bytes.Join([][]byte{parent, base}, []byte{'/'})
		}
	}

	byName := make(map[string]*history.Entry)
	child := func(name []byte) *history.Entry {
		e, ok := byName[string(name)]
		if !ok {
			path := append([]byte(nil), name...)
			if len(rel) > 0 {
				path = bytes.Join([][]byte{rel, name}, []byte{'/'})
			}
			e = &history.Entry{Path: path}
			byName[string(name)] = e
		}
		return e
	}

	infos, err := afero.ReadDir(r.fs, r.mirrorPath(rel))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("list mirror of %q: %w", rel, err)
	}
	for _, info := range infos {
		if len(rel) == 0 && info.Name() == DataDir {
			continue
		}
		name, err := r.quoter.Unquote([]byte(info.Name()))
		if err != nil {
			r.log.Warn("skipping badly quoted mirror entry", "dir", string(rel), "name", info.Name())
			continue
		}
		child(name).Exists = true
	}

	incs, err := r.increments(rel)
	if err != nil {
		return nil, err
	}
	for _, inc := range incs {
		e := child(inc.Name)
		e.Increments = append(e.Increments, inc)
	}

	out := make([]history.Entry, 0, len(byName))
	for _, e := range byName {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].Path, out[j].Path) < 0 })
	return out, nil
}
