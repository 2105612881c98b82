package journal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeObs(records ...string) []Observation {
	// records are alias, owner, id triples
	var out []Observation
	for i := 0; i+2 < len(records); i += 3 {
		out = append(out, Observation{Record: rec(records[i], records[i+1], records[i+2])})
	}
	return out
}

func TestComputeDiff_NoChanges(t *testing.T) {
	run := makeObs("acme", "Acme", "i-1", "globex", "Globex", "i-2")

	diffs := ComputeDiff(run, run)
	require.NotNil(t, diffs)
	assert.Empty(t, diffs)
}

func TestComputeDiff(t *testing.T) {
	prev := makeObs(
		"acme", "Acme", "i-1",
		"globex", "Globex", "i-2",
		"initech", "Initech", "i-3",
	)
	curr := makeObs(
		"acme", "ACME", "i-1",
		"hooli", "Hooli", "i-2",
		"acme", "Acme", "i-4",
	)

	diffs := ComputeDiff(prev, curr)

	require.Len(t, diffs, 3)
	assert.Equal(t, Change{Type: ChangeOwnerChanged, ResourceType: "vm", ResourceID: "i-2", Previous: "Globex", Current: "Hooli"}, diffs[0])
	assert.Equal(t, Change{Type: ChangeRemoved, ResourceType: "vm", ResourceID: "i-3", Previous: "Initech"}, diffs[1])
	assert.Equal(t, Change{Type: ChangeAdded, ResourceType: "vm", ResourceID: "i-4", Current: "Acme"}, diffs[2])
}

func TestComputeDiff_DuplicateIdentityKeepsSmallestAlias(t *testing.T) {
	prev := makeObs("acme", "Acme", "i-1")
	curr := makeObs("zeta", "Zeta", "i-1", "acme", "Acme", "i-1")

	assert.Empty(t, ComputeDiff(prev, curr))
}

func TestJournal_DiffRuns(t *testing.T) {
	j, _ := openTestJournal(t)
	defer func() { _ = j.Close() }()
	ctx := context.Background()
	up := j.Track(&memStore{})

	require.NoError(t, up.Upsert(ctx, rec("acme", "Acme", "i-1")))
	first, err := j.Record(ctx, testReport("us-east-1", 1))
	require.NoError(t, err)

	require.NoError(t, up.Upsert(ctx, rec("globex", "Globex", "i-1")))
	second, err := j.Record(ctx, testReport("us-east-1", 1))
	require.NoError(t, err)

	diffs, err := j.DiffRuns(first, second)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Equal(t, ChangeOwnerChanged, diffs[0].Type)
	assert.Equal(t, "Acme", diffs[0].Previous)
	assert.Equal(t, "Globex", diffs[0].Current)
}
