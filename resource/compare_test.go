package resource

import (
	"reflect"
	"testing"
)

func TestChangedPathsUsesJSONPointers(t *testing.T) {
	t.Parallel()

	pointers := ChangedPaths(
		map[string]any{
			"a/b": map[string]any{"~name": "old"},
			"roles": []any{
				map[string]any{"id": "nx-admin"},
			},
		},
		map[string]any{
			"a/b": map[string]any{"~name": "new"},
			"roles": []any{
				map[string]any{"id": "nx-anonymous"},
			},
		},
	)

	expected := []string{"/a~1b/~0name", "/roles/0/id"}
	if !reflect.DeepEqual(pointers, expected) {
		t.Fatalf("expected pointers %#v, got %#v", expected, pointers)
	}
}

func TestChangedPathsRootReplace(t *testing.T) {
	t.Parallel()

	pointers := ChangedPaths(map[string]any{"id": "42"}, nil)
	if len(pointers) != 1 || pointers[0] != "" {
		t.Fatalf("expected single empty pointer for root replace, got %#v", pointers)
	}
}

func TestPruneEmptyDropsEmptyAttributesRecursively(t *testing.T) {
	t.Parallel()

	pruned := PruneEmpty(map[string]any{
		"name":          "alice",
		"emailAddress":  "",
		"externalRoles": []any{},
		"status":        "active",
		"attributes":    map[string]any{"note": nil},
		"readOnly":      false,
	}, nil)

	expected := map[string]any{
		"name":     "alice",
		"status":   "active",
		"readOnly": false,
	}
	if !reflect.DeepEqual(pruned, expected) {
		t.Fatalf("expected %#v, got %#v", expected, pruned)
	}
}

func TestPruneEmptyHonorsKeepPaths(t *testing.T) {
	t.Parallel()

	keep := map[string]struct{}{"roles": {}}
	pruned := PruneEmpty(map[string]any{"roles": []any{}, "note": ""}, keep)

	expected := map[string]any{"roles": []any{}}
	if !reflect.DeepEqual(pruned, expected) {
		t.Fatalf("expected %#v, got %#v", expected, pruned)
	}
}
