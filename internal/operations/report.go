package operations

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/kebairia/rdhist/internal/rdtime"
)

// Report is the JSON document printed by `rdhist history --json`.
type Report struct {
	Repository  string        `json:"repository"`
	OperationID string        `json:"operation_id"`
	GeneratedAt time.Time     `json:"generated_at"`
	Entries     []EntryReport `json:"entries"`
}

// EntryReport holds the history of one path.
type EntryReport struct {
	Path         string    `json:"path"`
	Exists       bool      `json:"exists"`
	ChangeDates  []Version `json:"change_dates"`
	RestoreDates []Version `json:"restore_dates"`
	Error        string    `json:"error,omitempty"`
}

// Version is one session date of an entry.
type Version struct {
	Date    rdtime.Timestamp `json:"date"`
	Epoch   int64            `json:"epoch"` // value of the date= parameter of restore requests
	Display string           `json:"display"`
	Sizes   *SizeReport      `json:"sizes,omitempty"`
}

// SizeReport holds sizes; a nil field means unknown.
type SizeReport struct {
	Mirror *int64 `json:"mirror_size"`
	Source *int64 `json:"source_size"`
}

func newVersion(ts rdtime.Timestamp) Version {
	return Version{Date: ts, Epoch: ts.Key(), Display: ts.DisplayString()}
}

func versions(ts []rdtime.Timestamp) []Version {
	out := make([]Version, len(ts))
	for i, t := range ts {
		out[i] = newVersion(t)
	}
	return out
}

// Write encodes the report as indented JSON.
func (r *Report) Write(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(r); err != nil {
		return fmt.Errorf("encode report JSON: %w", err)
	}
	return nil
}

// Load decodes a report previously written by Write.
func (r *Report) Load(rd io.Reader) error {
	if err := json.NewDecoder(rd).Decode(r); err != nil {
		return fmt.Errorf("decode report JSON: %w", err)
	}
	return nil
}
