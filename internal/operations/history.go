package operations

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kebairia/rdhist/internal/history"
	"github.com/kebairia/rdhist/internal/rdtime"
)

// History computes the change and restore dates of one path.
func (om *OperationManager) History(repo *Repository, path []byte) (history.Entry, history.History, error) {
	sessions, err := om.Sessions(repo)
	if err != nil {
		return history.Entry{}, history.History{}, err
	}
	return om.history(repo, sessions, path)
}

func (om *OperationManager) history(
	repo *Repository,
	sessions []rdtime.Timestamp,
	path []byte,
) (history.Entry, history.History, error) {
	entry, err := repo.Source.Entry(path)
	if err != nil {
		return history.Entry{}, history.History{}, fmt.Errorf("read %q: %w", repo.Decoder.Text(path), err)
	}
	log := om.log.With("repository", repo.Name)
	return entry, history.Build(entry, sessions, log), nil
}

// HistoryAll computes the history of every path in parallel, at most
// scan.workers at a time. The report keeps the order of paths; paths that
// failed carry their error and are also returned joined.
func (om *OperationManager) HistoryAll(repo *Repository, paths [][]byte) (*Report, error) {
	start := time.Now()
	report := &Report{
		Repository:  repo.Name,
		OperationID: om.opID,
		GeneratedAt: start.UTC(),
		Entries:     make([]EntryReport, len(paths)),
	}

	// Sessions are listed once so every path sees the same snapshot.
	sessions, err := om.Sessions(repo)
	if err != nil {
		return nil, err
	}

	workers := om.cfg.Scan.Workers
	if workers < 1 {
		workers = 1
	}
	var (
		wg   sync.WaitGroup
		sem  = make(chan struct{}, workers)
		errs = make(chan error, len(paths)) // buffered to avoid deadlock
	)

	for i, path := range paths {
		wg.Add(1)
		go func(i int, path []byte) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			display := repo.Decoder.Text(path)
			report.Entries[i].Path = display

			if err := om.ctx.Err(); err != nil {
				report.Entries[i].Error = err.Error()
				errs <- fmt.Errorf("history of %q: %w", display, err)
				return
			}

			entry, h, err := om.history(repo, sessions, path)
			if err != nil {
				om.log.Error("history failed",
					"repository", repo.Name,
					"path", display,
					"error", err.Error(),
				)
				report.Entries[i].Error = err.Error()
				errs <- err
				return
			}
			report.Entries[i].Exists = entry.Exists
			report.Entries[i].ChangeDates = versions(h.ChangeDates)
			report.Entries[i].RestoreDates = versions(h.RestoreDates)
		}(i, path)
	}

	wg.Wait()
	close(errs)

	var all []error
	for err := range errs {
		all = append(all, err)
	}
	om.log.Info("history computed",
		"repository", repo.Name,
		"paths", len(paths),
		"failed", len(all),
		"duration", time.Since(start),
	)
	return report, errors.Join(all...)
}
