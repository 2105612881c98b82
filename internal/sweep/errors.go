package sweep

import (
	"errors"
	"fmt"

	"github.com/yairfalse/tagsweep/pkg/resource"
)

// ErrRegionFailed is returned by Sweeper.Run when at least one region could
// not be swept at all.
var ErrRegionFailed = errors.New("region sweep failed")

// Stage names the pipeline step a recoverable error came from.
type Stage string

const (
	// StageTags is a tag lookup failure; the resource continues with no tags.
	StageTags Stage = "tags"
	// StageWrite is a store write failure; the resource is not recorded.
	StageWrite Stage = "write"
)

// RecoverableError is a per-resource failure that is logged and counted but
// never stops the sweep.
type RecoverableError struct {
	Stage   Stage
	Kind    resource.Kind
	Locator string
	Err     error
}

func (e *RecoverableError) Error() string {
	return fmt.Sprintf("%s %s %s: %v", e.Stage, e.Kind, e.Locator, e.Err)
}

func (e *RecoverableError) Unwrap() error {
	return e.Err
}

// AsRecoverable returns the RecoverableError carried by err, if any.
func AsRecoverable(err error) (*RecoverableError, bool) {
	var re *RecoverableError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
