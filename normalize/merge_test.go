package normalize

import (
	"reflect"
	"testing"

	"github.com/tim-schneider/nexsync/resource"
)

func TestMergeLayersPrecedence(t *testing.T) {
	t.Parallel()

	global := resource.Doc{
		"storage": map[string]any{"blobStoreName": "default", "strictContentTypeValidation": true},
		"online":  true,
	}
	byType := resource.Doc{
		"storage": map[string]any{"writePolicy": "ALLOW_ONCE"},
	}
	byFormat := resource.Doc{
		"storage": map[string]any{"blobStoreName": "maven-store"},
	}
	item := resource.Doc{
		"name":    "lib-releases",
		"storage": map[string]any{"writePolicy": "DENY"},
	}

	merged := MergeLayers(global, byType, byFormat, item)

	expected := resource.Doc{
		"name":   "lib-releases",
		"online": true,
		"storage": map[string]any{
			"blobStoreName":               "maven-store",
			"strictContentTypeValidation": true,
			"writePolicy":                 "DENY",
		},
	}
	if !reflect.DeepEqual(merged, expected) {
		t.Fatalf("expected %#v, got %#v", expected, merged)
	}
}

func TestMergeLayersReplacesListsWholesale(t *testing.T) {
	t.Parallel()

	lower := resource.Doc{"cleanup": map[string]any{"policyNames": []any{"weekly", "monthly"}}}
	higher := resource.Doc{"cleanup": map[string]any{"policyNames": []any{"daily"}}}

	merged := MergeLayers(lower, higher)

	value, _ := resource.GetPath(merged, "cleanup.policyNames")
	if !reflect.DeepEqual(value, []any{"daily"}) {
		t.Fatalf("expected list replacement, got %#v", value)
	}
}

func TestMergeLayersTreatsMissingLayersAsEmpty(t *testing.T) {
	t.Parallel()

	merged := MergeLayers(nil, resource.Doc{"name": "x"}, nil)
	if !reflect.DeepEqual(merged, resource.Doc{"name": "x"}) {
		t.Fatalf("expected nil layers to be skipped, got %#v", merged)
	}
}

func TestMergeLayersDoesNotMutateInputs(t *testing.T) {
	t.Parallel()

	lower := resource.Doc{"storage": map[string]any{"blobStoreName": "default"}}
	merged := MergeLayers(lower)
	resource.SetPath(merged, "storage.blobStoreName", "changed")

	value, _ := resource.GetPath(lower, "storage.blobStoreName")
	if value != "default" {
		t.Fatalf("expected input layer untouched, got %#v", lower)
	}
}
