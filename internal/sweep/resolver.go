package sweep

import (
	"context"

	"github.com/yairfalse/tagsweep/internal/plugin"
	"github.com/yairfalse/tagsweep/pkg/resource"
)

// Resolution is the ownership outcome for one resource.
type Resolution struct {
	Owner  string
	Tagged bool // the ownership tag was present
	Skip   bool // the kind drops untagged resources
	Tags   []resource.Tag
}

// Resolver looks up a resource's tags and picks the ownership tag.
type Resolver struct {
	tagKey string
}

// NewResolver creates a resolver selecting tagKey.
func NewResolver(tagKey string) *Resolver {
	return &Resolver{tagKey: tagKey}
}

// Resolve fetches the tags of loc through src. A failed lookup is treated as
// an empty tag set; the failure is returned as a *RecoverableError alongside
// a usable Resolution.
func (r *Resolver) Resolve(ctx context.Context, src plugin.Source, loc resource.Locator) (Resolution, error) {
	kind := src.Kind()

	var recoverable error
	tags, err := src.Tags(ctx, loc)
	if err != nil {
		recoverable = &RecoverableError{Stage: StageTags, Kind: kind, Locator: loc.Raw, Err: err}
		tags = nil
	}

	return r.Select(kind, tags), recoverable
}

// Select picks the owner from tags according to the kind's untagged policy.
func (r *Resolver) Select(kind resource.Kind, tags []resource.Tag) Resolution {
	res := Resolution{Tags: tags}

	owner, ok := resource.OwnerFromTags(tags, r.tagKey)
	switch {
	case kind.SkipUntagged() && (!ok || owner == ""):
		res.Skip = true
	case !ok:
		res.Owner = resource.UnknownOwner
	default:
		res.Owner = owner
		res.Tagged = true
	}
	return res
}
