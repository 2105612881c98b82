package sweep

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/yairfalse/tagsweep/pkg/resource"
)

// Upserter persists one record atomically against the identity constraint.
type Upserter interface {
	Upsert(ctx context.Context, r resource.Record) error
}

// Outcome is the result of handling one resource.
type Outcome int

const (
	// OutcomeWritten means the record was inserted or updated.
	OutcomeWritten Outcome = iota
	// OutcomeSkipped means the resource was dropped by policy.
	OutcomeSkipped
	// OutcomeFailed means the store rejected the write.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWritten:
		return "written"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// Skip reasons logged by the writer.
const (
	ReasonDeniedOwner = "invalid customer name"
	ReasonDeniedAlias = "invalid customer alias"
)

// Writer gates records through the owner deny-list and upserts the rest.
type Writer struct {
	store     Upserter
	denyOwner map[string]bool
	denyAlias map[string]bool
	log       zerolog.Logger
}

// NewWriter creates a writer. UnknownOwner and the empty name are always
// denied in addition to denyOwners.
func NewWriter(store Upserter, denyOwners []string, log zerolog.Logger) *Writer {
	w := &Writer{
		store:     store,
		denyOwner: map[string]bool{"": true, resource.UnknownOwner: true},
		denyAlias: map[string]bool{"": true, resource.NormalizeAlias(resource.UnknownOwner): true},
		log:       log,
	}
	for _, name := range denyOwners {
		w.denyOwner[name] = true
		w.denyAlias[resource.NormalizeAlias(name)] = true
	}
	return w
}

// Write records that owner owns resourceID of the given kind. Denied owners
// are logged and skipped. A store failure is returned as a *RecoverableError.
func (w *Writer) Write(ctx context.Context, owner, resourceID string, kind resource.Kind) (Outcome, error) {
	if w.denyOwner[owner] {
		w.logSkip(ctx, resourceID, kind, owner, ReasonDeniedOwner)
		return OutcomeSkipped, nil
	}

	alias := resource.NormalizeAlias(owner)
	if w.denyAlias[alias] {
		w.logSkip(ctx, resourceID, kind, owner, ReasonDeniedAlias)
		return OutcomeSkipped, nil
	}

	rec := resource.Record{
		Alias:        alias,
		OwnerName:    owner,
		ResourceType: kind.RecordType(),
		ResourceID:   resourceID,
	}
	if err := w.store.Upsert(ctx, rec); err != nil {
		return OutcomeFailed, &RecoverableError{Stage: StageWrite, Kind: kind, Locator: resourceID, Err: err}
	}

	w.log.Info().
		Ctx(ctx).
		Str("resource_type", rec.ResourceType).
		Str("resource_id", resourceID).
		Str("customer", owner).
		Msg("inserted/updated resource")
	return OutcomeWritten, nil
}

func (w *Writer) logSkip(ctx context.Context, resourceID string, kind resource.Kind, owner, reason string) {
	w.log.Info().
		Ctx(ctx).
		Str("resource_type", kind.RecordType()).
		Str("resource_id", resourceID).
		Str("customer", owner).
		Str("reason", reason).
		Msg("skipping insertion")
}
