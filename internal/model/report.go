package model

import (
	"sort"
	"strings"
	"time"
)

// Status is the lifecycle position of a Report.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusVerified Status = "Verified"
	StatusResolved Status = "Resolved"
	StatusDeclined Status = "Declined"
)

// transitions is the whole state graph. Resolved and Declined are terminal.
var transitions = map[Status][]Status{
	StatusPending:  {StatusVerified, StatusDeclined},
	StatusVerified: {StatusResolved},
	StatusResolved: nil,
	StatusDeclined: nil,
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// NextStatuses lists the statuses reachable from s in one step.
func (s Status) NextStatuses() []Status {
	next := transitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// ReportFile is one media attachment. It belongs to exactly one Report.
type ReportFile struct {
	Name string `json:"name"`
	Type string `json:"type"` // MIME type, e.g. "image/jpeg"
	URL  string `json:"url"`  // data URL or externally addressable link
}

func (f ReportFile) IsImage() bool {
	return strings.HasPrefix(f.Type, "image")
}

// Report is a submitted infrastructure issue.
//
// User is the owner's username: a weak reference, the user record may be
// read or updated independently.
type Report struct {
	ID          string       `json:"id"`
	User        string       `json:"user"`
	Category    string       `json:"category"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Location    string       `json:"location"` // free text or a map link
	Date        time.Time    `json:"date"`
	Status      Status       `json:"status"`
	Files       []ReportFile `json:"files"`
	Thumbnail   string       `json:"thumbnail"`
}

func (r *Report) IsOwnedBy(username string) bool {
	return r.User == username
}

// Clone returns a deep copy, attachments included.
func (r Report) Clone() Report {
	if r.Files != nil {
		files := make([]ReportFile, len(r.Files))
		copy(files, r.Files)
		r.Files = files
	}
	return r
}

// SortReportsByRecency orders newest first. Equal dates fall back to ID,
// which is time-ordered.
func SortReportsByRecency(reports []Report) {
	sort.SliceStable(reports, func(i, j int) bool {
		if !reports[i].Date.Equal(reports[j].Date) {
			return reports[i].Date.After(reports[j].Date)
		}
		return reports[i].ID > reports[j].ID
	})
}
