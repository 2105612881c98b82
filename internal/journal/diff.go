package journal

import (
	"cmp"
	"fmt"
	"slices"
)

// ChangeType classifies an ownership difference between two runs.
type ChangeType string

const (
	ChangeAdded        ChangeType = "added"
	ChangeRemoved      ChangeType = "removed"
	ChangeOwnerChanged ChangeType = "owner_changed"
)

// Change is one resource whose ownership differs between two runs.
type Change struct {
	Type         ChangeType
	ResourceType string
	ResourceID   string
	Previous     string // owner in the older run, empty when added
	Current      string // owner in the newer run, empty when removed
}

// ComputeDiff compares the observations of two runs by resource identity
// (resource type and ID). A resource written under several owners in one run
// keeps the lexically smallest alias. Changes are ordered by identity.
func ComputeDiff(prev, curr []Observation) []Change {
	before := indexObservations(prev)
	after := indexObservations(curr)

	changes := make([]Change, 0)
	for key, p := range before {
		c, ok := after[key]
		switch {
		case !ok:
			changes = append(changes, Change{
				Type:         ChangeRemoved,
				ResourceType: p.Record.ResourceType,
				ResourceID:   p.Record.ResourceID,
				Previous:     p.Record.OwnerName,
			})
		case c.Record.Alias != p.Record.Alias:
			changes = append(changes, Change{
				Type:         ChangeOwnerChanged,
				ResourceType: c.Record.ResourceType,
				ResourceID:   c.Record.ResourceID,
				Previous:     p.Record.OwnerName,
				Current:      c.Record.OwnerName,
			})
		}
	}

	for key, c := range after {
		if _, ok := before[key]; !ok {
			changes = append(changes, Change{
				Type:         ChangeAdded,
				ResourceType: c.Record.ResourceType,
				ResourceID:   c.Record.ResourceID,
				Current:      c.Record.OwnerName,
			})
		}
	}

	slices.SortFunc(changes, func(a, b Change) int {
		return cmp.Or(
			cmp.Compare(a.ResourceType, b.ResourceType),
			cmp.Compare(a.ResourceID, b.ResourceID),
		)
	})
	return changes
}

// DiffRuns loads the observations of runs from and to and compares them.
func (j *Journal) DiffRuns(from, to int64) ([]Change, error) {
	prev, err := j.Observations(from)
	if err != nil {
		return nil, fmt.Errorf("load run %d: %w", from, err)
	}
	curr, err := j.Observations(to)
	if err != nil {
		return nil, fmt.Errorf("load run %d: %w", to, err)
	}
	return ComputeDiff(prev, curr), nil
}

func indexObservations(obs []Observation) map[string]Observation {
	m := make(map[string]Observation, len(obs))
	for _, o := range obs {
		key := identityKey(o.Record)
		if existing, ok := m[key]; ok && existing.Record.Alias <= o.Record.Alias {
			continue
		}
		m[key] = o
	}
	return m
}
