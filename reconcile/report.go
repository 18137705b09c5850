package reconcile

import (
	"github.com/tim-schneider/nexsync/diffengine"
	"github.com/tim-schneider/nexsync/resource"
)

// ItemResult records the outcome for one desired or remote item. A zero
// Action with a non-nil Err means the item never reached the diff stage,
// typically because normalization rejected it. Desired carries the
// canonical document for creates and updates so reports can show it.
type ItemResult struct {
	NaturalKey   string
	Action       diffengine.Action
	ChangedPaths []string
	Desired      resource.Doc
	Err          error
}

// Summary counts item outcomes for one resource type.
type Summary struct {
	Created   int
	Updated   int
	Deleted   int
	Unchanged int
	Failed    int
}

// TypeResult is the reconciliation outcome for one resource type. Err is
// set when the whole type failed before any item work, for example when
// the remote LIST call failed. Skipped types carry a human-readable
// reason and no items.
type TypeResult struct {
	ResourceType string
	Skipped      bool
	SkipReason   string
	Err          error
	Items        []ItemResult
}

// Summary tallies the item outcomes. In a dry run the counts describe the
// actions that would have been taken.
func (t TypeResult) Summary() Summary {
	var s Summary
	for _, item := range t.Items {
		if item.Err != nil {
			s.Failed++
			continue
		}
		switch item.Action {
		case diffengine.ActionCreate:
			s.Created++
		case diffengine.ActionUpdate:
			s.Updated++
		case diffengine.ActionDelete:
			s.Deleted++
		case diffengine.ActionUnchanged:
			s.Unchanged++
		}
	}
	return s
}

// Failed reports whether the type failed as a whole or any of its items
// failed.
func (t TypeResult) Failed() bool {
	if t.Err != nil {
		return true
	}
	for _, item := range t.Items {
		if item.Err != nil {
			return true
		}
	}
	return false
}

// Report is the full outcome of one reconciliation run, one entry per
// resource type in execution order.
type Report struct {
	DryRun bool
	Types  []TypeResult
}

// Failed reports whether any resource type or item failed.
func (r *Report) Failed() bool {
	for _, t := range r.Types {
		if t.Failed() {
			return true
		}
	}
	return false
}

// PendingDeletes counts the delete records across all types. Callers use
// it to decide whether to ask for confirmation before a destructive run.
func (r *Report) PendingDeletes() int {
	count := 0
	for _, t := range r.Types {
		count += t.Summary().Deleted
	}
	return count
}
