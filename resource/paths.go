package resource

import "strings"

// Dotted paths address nested attributes the way the Nexus API documents
// them, e.g. "storage.blobStoreName" or "httpClient.authentication.type".

func SplitPath(path string) []string {
	trimmed := strings.Trim(path, ".")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, ".")
}

// GetPath walks a document along a dotted path. The second return reports
// whether every segment was present.
func GetPath(doc Value, path string) (Value, bool) {
	current := doc
	for _, segment := range SplitPath(path) {
		object, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		next, found := object[segment]
		if !found {
			return nil, false
		}
		current = next
	}
	return current, true
}

// SetPath writes value into doc at a dotted path, creating intermediate
// objects as needed. Existing non-object intermediates are replaced.
func SetPath(doc Doc, path string, value Value) {
	segments := SplitPath(path)
	if len(segments) == 0 {
		return
	}

	current := doc
	for _, segment := range segments[:len(segments)-1] {
		next, found := current[segment]
		object, isObject := next.(map[string]any)
		if !found || !isObject {
			object = map[string]any{}
			current[segment] = object
		}
		current = object
	}
	current[segments[len(segments)-1]] = value
}

// HasPath reports whether every segment of the dotted path resolves.
func HasPath(doc Value, path string) bool {
	_, found := GetPath(doc, path)
	return found
}

// DeletePath removes the attribute at a dotted path when present. Empty
// intermediate objects left behind are kept; pruning is a comparison
// concern, not a mutation concern.
func DeletePath(doc Doc, path string) {
	segments := SplitPath(path)
	if len(segments) == 0 {
		return
	}

	current := doc
	for _, segment := range segments[:len(segments)-1] {
		next, found := current[segment]
		object, isObject := next.(map[string]any)
		if !found || !isObject {
			return
		}
		current = object
	}
	delete(current, segments[len(segments)-1])
}
