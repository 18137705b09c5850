package diffengine

import (
	"fmt"
	"sort"

	"github.com/tim-schneider/nexsync/resource"
)

type Action string

const (
	ActionCreate    Action = "create"
	ActionUpdate    Action = "update"
	ActionDelete    Action = "delete"
	ActionUnchanged Action = "unchanged"
)

// ChangeRecord classifies one item of a resource collection. Updates carry
// the full desired document because the API is called with a complete
// replacement, never a partial patch; ChangedPaths exist for reporting
// only.
type ChangeRecord struct {
	Action       Action
	NaturalKey   string
	Desired      resource.Doc
	ChangedPaths []string
}

// CompareOptions tunes document equality. KeepEmpty exempts dotted paths
// from empty-value pruning; Suppress removes dotted paths from both sides
// before comparison (server-computed attributes, write-only secrets).
// Suppression never touches the document an update sends.
type CompareOptions struct {
	KeepEmpty map[string]struct{}
	Suppress  []string
}

func (o CompareOptions) compareForm(doc resource.Doc) resource.Value {
	if len(o.Suppress) == 0 {
		return resource.PruneEmpty(doc, o.KeepEmpty)
	}
	stripped := resource.DeepCopy(doc).(resource.Doc)
	for _, path := range o.Suppress {
		resource.DeletePath(stripped, path)
	}
	return resource.PruneEmpty(stripped, o.KeepEmpty)
}

// FilterReadOnly drops remote items the server flags as system-managed.
// They are excluded before diffing so they can never classify as update or
// delete. An empty field name disables the filter.
func FilterReadOnly(remote []resource.Doc, readOnlyField string) []resource.Doc {
	if readOnlyField == "" {
		return remote
	}
	kept := make([]resource.Doc, 0, len(remote))
	for _, item := range remote {
		if flagged, _ := item[readOnlyField].(bool); flagged {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}

// Collection diffs the canonical desired set against the observed remote
// set by natural key. Desired items are classified in input order; deletes
// follow, sorted by natural key. Equality is deep and structural over
// pruned documents (keepEmpty exempts paths from pruning), so absent and
// empty attributes compare equal. A natural-key rename is a delete plus a
// create; the API exposes no stable identifier to do better.
func Collection(desired []resource.Doc, remote []resource.Doc, naturalKeyField string, opts CompareOptions) []ChangeRecord {
	remoteByKey := make(map[string]resource.Doc, len(remote))
	for _, item := range remote {
		remoteByKey[keyOf(item, naturalKeyField)] = item
	}

	records := make([]ChangeRecord, 0, len(desired)+len(remote))
	matched := make(map[string]struct{}, len(desired))

	for _, item := range desired {
		key := keyOf(item, naturalKeyField)
		matched[key] = struct{}{}

		remoteItem, exists := remoteByKey[key]
		if !exists {
			records = append(records, ChangeRecord{Action: ActionCreate, NaturalKey: key, Desired: item})
			continue
		}

		desiredPruned := opts.compareForm(item)
		remotePruned := opts.compareForm(remoteItem)
		if resource.Equal(desiredPruned, remotePruned) {
			records = append(records, ChangeRecord{Action: ActionUnchanged, NaturalKey: key})
			continue
		}

		records = append(records, ChangeRecord{
			Action:       ActionUpdate,
			NaturalKey:   key,
			Desired:      item,
			ChangedPaths: resource.ChangedPaths(desiredPruned, remotePruned),
		})
	}

	deletes := make([]string, 0)
	for key := range remoteByKey {
		if _, keep := matched[key]; !keep {
			deletes = append(deletes, key)
		}
	}
	sort.Strings(deletes)
	for _, key := range deletes {
		records = append(records, ChangeRecord{Action: ActionDelete, NaturalKey: key})
	}

	return records
}

// Singleton compares the one document a singleton resource type holds.
// Singletons are never created or deleted, only updated in place.
func Singleton(name string, desired resource.Doc, remote resource.Doc, opts CompareOptions) ChangeRecord {
	desiredPruned := opts.compareForm(desired)
	remotePruned := opts.compareForm(remote)
	if resource.Equal(desiredPruned, remotePruned) {
		return ChangeRecord{Action: ActionUnchanged, NaturalKey: name}
	}
	return ChangeRecord{
		Action:       ActionUpdate,
		NaturalKey:   name,
		Desired:      desired,
		ChangedPaths: resource.ChangedPaths(desiredPruned, remotePruned),
	}
}

func keyOf(doc resource.Doc, naturalKeyField string) string {
	value, found := resource.GetPath(doc, naturalKeyField)
	if !found {
		return ""
	}
	if key, isString := value.(string); isString {
		return key
	}
	return fmt.Sprintf("%v", value)
}
