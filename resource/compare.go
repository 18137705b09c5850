package resource

import (
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Equal is deep structural equality over canonical documents. Callers must
// canonicalize both sides first; attribute order never matters because
// canonical documents are plain maps.
func Equal(left Value, right Value) bool {
	return reflect.DeepEqual(left, right)
}

// ChangedPaths lists the JSON pointers at which two canonical documents
// differ. The pointers are reported for observability only; updates always
// send the full desired document.
func ChangedPaths(desired Value, remote Value) []string {
	pointers := make([]string, 0)
	collectChangedPaths(&pointers, "", desired, remote)
	return pointers
}

func collectChangedPaths(pointers *[]string, pointer string, desired any, remote any) {
	if reflect.DeepEqual(desired, remote) {
		return
	}

	desiredObject, desiredIsObject := desired.(map[string]any)
	remoteObject, remoteIsObject := remote.(map[string]any)
	if desiredIsObject && remoteIsObject {
		keys := make([]string, 0, len(desiredObject)+len(remoteObject))
		seen := make(map[string]struct{}, len(desiredObject)+len(remoteObject))
		for key := range desiredObject {
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
		for key := range remoteObject {
			if _, found := seen[key]; found {
				continue
			}
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			nextPointer := pointer + "/" + escapePointerToken(key)
			desiredValue, desiredFound := desiredObject[key]
			remoteValue, remoteFound := remoteObject[key]

			switch {
			case !desiredFound || !remoteFound:
				*pointers = append(*pointers, nextPointer)
			default:
				collectChangedPaths(pointers, nextPointer, desiredValue, remoteValue)
			}
		}
		return
	}

	desiredArray, desiredIsArray := desired.([]any)
	remoteArray, remoteIsArray := remote.([]any)
	if desiredIsArray && remoteIsArray {
		maxLength := max(len(desiredArray), len(remoteArray))
		for idx := range maxLength {
			nextPointer := pointer + "/" + strconv.Itoa(idx)

			switch {
			case idx >= len(desiredArray) || idx >= len(remoteArray):
				*pointers = append(*pointers, nextPointer)
			default:
				collectChangedPaths(pointers, nextPointer, desiredArray[idx], remoteArray[idx])
			}
		}
		return
	}

	*pointers = append(*pointers, pointer)
}

func escapePointerToken(value string) string {
	escaped := strings.ReplaceAll(value, "~", "~0")
	return strings.ReplaceAll(escaped, "/", "~1")
}

// PruneEmpty removes null, empty-string, empty-list and empty-object
// attributes from a document, recursively, except attributes whose dotted
// path appears in keep. The Nexus API omits unset attributes in its
// responses, so pruning both sides before comparison keeps absent and empty
// equivalent.
func PruneEmpty(value Value, keep map[string]struct{}) Value {
	return pruneEmptyValue(value, "", keep)
}

func pruneEmptyValue(value any, path string, keep map[string]struct{}) any {
	object, isObject := value.(map[string]any)
	if !isObject {
		return value
	}

	out := make(map[string]any, len(object))
	for key, item := range object {
		childPath := key
		if path != "" {
			childPath = path + "." + key
		}
		pruned := pruneEmptyValue(item, childPath, keep)
		if _, keepIt := keep[childPath]; !keepIt && isEmptyValue(pruned) {
			continue
		}
		out[key] = pruned
	}
	return out
}

func isEmptyValue(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return typed == ""
	case []any:
		return len(typed) == 0
	case map[string]any:
		return len(typed) == 0
	default:
		return false
	}
}
