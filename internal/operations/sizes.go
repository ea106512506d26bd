package operations

import (
	"errors"
	"fmt"

	"github.com/kebairia/rdhist/internal/rdtime"
	"github.com/kebairia/rdhist/internal/statistics"
)

// SizesAt returns the sizes of path recorded at session.
func (om *OperationManager) SizesAt(repo *Repository, session rdtime.Timestamp, path []byte) (statistics.Sizes, error) {
	s, err := repo.Stats.SizesAt(session, path)
	if err != nil {
		return statistics.Sizes{}, fmt.Errorf("sizes of %q: %w", repo.Decoder.Text(path), err)
	}
	return s, nil
}

// SizeHistory returns every change date of path with the sizes recorded at
// that session. Sizes that the statistics do not provide are left unknown.
func (om *OperationManager) SizeHistory(repo *Repository, path []byte) ([]Version, error) {
	_, h, err := om.History(repo, path)
	if err != nil {
		return nil, err
	}

	out := make([]Version, 0, len(h.ChangeDates))
	for _, date := range h.ChangeDates {
		v := newVersion(date)
		s, err := repo.Stats.SizesAt(date, path)
		switch {
		case err == nil:
			mirror, source := s.Mirror, s.Source
			v.Sizes = &SizeReport{Mirror: &mirror, Source: &source}
		case unknownSize(err):
			om.log.Debug("size unknown",
				"repository", repo.Name,
				"path", repo.Decoder.Text(path),
				"date", date.String(),
				"reason", err.Error(),
			)
			v.Sizes = &SizeReport{}
		default:
			return nil, fmt.Errorf("sizes of %q at %s: %w", repo.Decoder.Text(path), date, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// unknownSize reports whether err only means the statistics lack the value.
func unknownSize(err error) bool {
	return errors.Is(err, statistics.ErrPathNotInStatistics) ||
		errors.Is(err, statistics.ErrMalformedStatisticsLine) ||
		errors.Is(err, statistics.ErrNoStatistics)
}
