package operations

import (
	"fmt"

	"github.com/kebairia/rdhist/internal/history"
	"github.com/kebairia/rdhist/internal/repository"
)

// List returns the history of every entry of dir, deleted ones included.
func (om *OperationManager) List(repo *Repository, dir []byte) ([]EntryReport, error) {
	browser, ok := repo.Source.(repository.Browser)
	if !ok {
		return nil, fmt.Errorf("repository %q cannot list directories", repo.Name)
	}
	sessions, err := om.Sessions(repo)
	if err != nil {
		return nil, err
	}
	children, err := browser.Children(dir)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", repo.Decoder.Text(dir), err)
	}

	log := om.log.With("repository", repo.Name)
	out := make([]EntryReport, len(children))
	for i, entry := range children {
		h := history.Build(entry, sessions, log)
		out[i] = EntryReport{
			Path:         repo.Decoder.Text(entry.Path),
			Exists:       entry.Exists,
			ChangeDates:  versions(h.ChangeDates),
			RestoreDates: versions(h.RestoreDates),
		}
	}
	return out, nil
}
