package sweep

import (
	"time"

	"github.com/yairfalse/tagsweep/pkg/resource"
)

// KindReport counts what happened to one kind in one region.
type KindReport struct {
	Kind      resource.Kind `json:"kind"`
	Listed    int           `json:"listed"`
	Written   int           `json:"written"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	TagErrors int           `json:"tag_errors"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"` // enumeration failure
	Cancelled bool          `json:"cancelled,omitempty"`
}

// Enumerated reports whether the kind was listed successfully.
func (k KindReport) Enumerated() bool {
	return k.Error == ""
}

// RegionReport is the outcome of one region.
type RegionReport struct {
	Region   string        `json:"region"`
	Kinds    []KindReport  `json:"kinds"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"` // inventory could not be built
}

// Failed reports whether the region failed outright: its inventory could not
// be built, or no kind could be enumerated.
func (r RegionReport) Failed() bool {
	if r.Error != "" {
		return true
	}
	if len(r.Kinds) == 0 {
		return false
	}
	for _, k := range r.Kinds {
		if k.Enumerated() {
			return false
		}
	}
	return true
}

// Report is the outcome of one sweep.
type Report struct {
	ID         string         `json:"id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Regions    []RegionReport `json:"regions"`
}

// Totals sums the per-kind counters of every region.
type Totals struct {
	Listed    int `json:"listed"`
	Written   int `json:"written"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	TagErrors int `json:"tag_errors"`
	KindErrs  int `json:"kind_errors"`
}

// Totals aggregates the report.
func (r *Report) Totals() Totals {
	var t Totals
	for _, region := range r.Regions {
		for _, k := range region.Kinds {
			t.Listed += k.Listed
			t.Written += k.Written
			t.Skipped += k.Skipped
			t.Failed += k.Failed
			t.TagErrors += k.TagErrors
			if !k.Enumerated() {
				t.KindErrs++
			}
		}
	}
	return t
}

// FailedRegions returns the regions that failed outright, in sweep order.
func (r *Report) FailedRegions() []string {
	var failed []string
	for _, region := range r.Regions {
		if region.Failed() {
			failed = append(failed, region.Region)
		}
	}
	return failed
}
