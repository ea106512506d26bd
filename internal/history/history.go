package history

import (
	"sort"

	"github.com/kebairia/rdhist/internal/increment"
	"github.com/kebairia/rdhist/internal/logger"
	"github.com/kebairia/rdhist/internal/rdtime"
)

// Entry is everything the repository knows about one path.
type Entry struct {
	Path       []byte
	Exists     bool // a live mirror of the path exists
	Root       bool // the path is the repository root
	Increments []increment.Increment
}

// History lists, oldest first, the sessions at which an entry changed and
// the sessions it can be restored from.
type History struct {
	ChangeDates  []rdtime.Timestamp
	RestoreDates []rdtime.Timestamp
}

// Build maps the increments of entry onto sessions, which must be sorted
// and free of duplicates. Increments newer than every session are dropped
// with a warning.
func Build(entry Entry, sessions []rdtime.Timestamp, log logger.Logger) History {
	if len(sessions) == 0 {
		return History{ChangeDates: []rdtime.Timestamp{}, RestoreDates: []rdtime.Timestamp{}}
	}
	if entry.Root {
		return History{
			ChangeDates:  append([]rdtime.Timestamp(nil), sessions...),
			RestoreDates: append([]rdtime.Timestamp(nil), sessions...),
		}
	}

	changes := make(map[int64]rdtime.Timestamp, len(entry.Increments)+1)
	restores := make(map[int64]rdtime.Timestamp, len(entry.Increments)+1)

	for _, inc := range entry.Increments {
		session, ok := sessionOf(inc, sessions)
		if !ok {
			log.Warn("increment is newer than every backup session, ignoring",
				"path", string(entry.Path),
				"increment", inc.Time.String(),
				"kind", inc.Kind.String(),
				"last_session", sessions[len(sessions)-1].String(),
			)
			continue
		}
		changes[session.Key()] = session
		// Nothing to restore from a point where the entry did not exist.
		if !inc.IsMissing() {
			restores[session.Key()] = session
		}
	}

	if entry.Exists {
		last := sessions[len(sessions)-1]
		changes[last.Key()] = last
		restores[last.Key()] = last
	}

	return History{
		ChangeDates:  sorted(changes),
		RestoreDates: sorted(restores),
	}
}

// sessionOf returns the session at which inc became part of the history.
// An increment stores the state before a session, so it surfaces at the
// first session not older than its own timestamp. A missing marker surfaces
// at the first session after it.
func sessionOf(inc increment.Increment, sessions []rdtime.Timestamp) (rdtime.Timestamp, bool) {
	at := inc.Time.Seconds()
	i := sort.Search(len(sessions), func(i int) bool {
		if inc.IsMissing() {
			return sessions[i].Seconds() > at
		}
		return sessions[i].Seconds() >= at
	})
	if i == len(sessions) {
		return rdtime.Timestamp{}, false
	}
	return sessions[i], true
}

func sorted(set map[int64]rdtime.Timestamp) []rdtime.Timestamp {
	out := make([]rdtime.Timestamp, 0, len(set))
	for _, ts := range set {
		out = append(out, ts)
	}
	rdtime.Sort(out)
	return out
}
