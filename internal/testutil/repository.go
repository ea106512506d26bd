package testutil

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
)

// RepoBuilder lays out a backup repository on an in-memory filesystem.
type RepoBuilder struct {
	t    testing.TB
	Fs   afero.Fs
	Root string
}

// NewRepoBuilder creates an empty repository at root.
func NewRepoBuilder(t testing.TB, root string) *RepoBuilder {
	t.Helper()
	b := &RepoBuilder{t: t, Fs: afero.NewMemMapFs(), Root: root}
	if err := b.Fs.MkdirAll(b.data(), 0o755); err != nil {
		t.Fatalf("create repository: %v", err)
	}
	return b
}

// NewDiskRepoBuilder creates an empty repository in a temporary directory
// of the real filesystem.
func NewDiskRepoBuilder(t testing.TB) *RepoBuilder {
	t.Helper()
	b := &RepoBuilder{t: t, Fs: afero.NewOsFs(), Root: t.TempDir()}
	if err := b.Fs.MkdirAll(b.data(), 0o755); err != nil {
		t.Fatalf("create repository: %v", err)
	}
	return b
}

func (b *RepoBuilder) data(elem ...string) string {
	return filepath.Join(append([]string{b.Root, "rdiff-backup-data"}, elem...)...)
}

func (b *RepoBuilder) write(path string, data []byte) {
	b.t.Helper()
	if err := b.Fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		b.t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := afero.WriteFile(b.Fs, path, data, 0o644); err != nil {
		b.t.Fatalf("write %s: %v", path, err)
	}
}

// Sessions records completed backup sessions.
func (b *RepoBuilder) Sessions(timestamps ...string) *RepoBuilder {
	b.t.Helper()
	for _, ts := range timestamps {
		b.write(b.data("mirror_metadata."+ts+".snapshot.gz"), nil)
		b.write(b.data("session_statistics."+ts+".data"), nil)
	}
	return b
}

// Mirror writes a live file; path is as stored on disk.
func (b *RepoBuilder) Mirror(path, content string) *RepoBuilder {
	b.t.Helper()
	b.write(filepath.Join(b.Root, filepath.FromSlash(path)), []byte(content))
	return b
}

// Increments writes empty increment files under the increments of dir.
func (b *RepoBuilder) Increments(dir string, names ...string) *RepoBuilder {
	b.t.Helper()
	for _, name := range names {
		b.write(filepath.Join(b.data("increments"), filepath.FromSlash(dir), name), nil)
	}
	return b
}

// Statistics writes the statistics file of a session, gzip-compressed when
// compress is set.
func (b *RepoBuilder) Statistics(ts string, compress bool, lines ...string) *RepoBuilder {
	b.t.Helper()
	content := []byte(strings.Join(lines, "\n") + "\n")
	name := "file_statistics." + ts + ".data"
	if compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(content); err != nil {
			b.t.Fatalf("gzip: %v", err)
		}
		if err := zw.Close(); err != nil {
			b.t.Fatalf("gzip: %v", err)
		}
		content = buf.Bytes()
		name += ".gz"
	}
	b.write(b.data(name), content)
	return b
}

// CharsToQuote writes the repository's quoting class.
func (b *RepoBuilder) CharsToQuote(class string) *RepoBuilder {
	b.t.Helper()
	b.write(b.data("chars_to_quote"), []byte(class+"\n"))
	return b
}
