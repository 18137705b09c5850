package schema

import (
	"testing"

	"github.com/tim-schneider/nexsync/faults"
)

func TestRegistryGetUnknownSchema(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.RegisterType(ResourceType{Name: "widget", NaturalKeyField: "name"})
	registry.Register("widget", DialectCanonical, Schema{RequiredFields: []string{"name"}})

	if _, err := registry.Get("widget", DialectCanonical); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := registry.Get("widget", DialectLegacy)
	if !IsUnknownSchemaError(err) {
		t.Fatalf("expected an unknown schema error, got %v", err)
	}
	if !faults.IsCategory(err, faults.SchemaError) {
		t.Fatalf("expected a SchemaError fault, got %v", err)
	}
}

func TestRegistryTypeUnknown(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry().Type("widget")
	if !faults.IsCategory(err, faults.SchemaError) {
		t.Fatalf("expected a SchemaError fault, got %v", err)
	}
}

func TestCatalogCoversDeclaredTypes(t *testing.T) {
	t.Parallel()

	catalog := NewCatalog()
	for _, name := range catalog.TypeNames() {
		rt, err := catalog.Type(name)
		if err != nil {
			t.Fatalf("type %q not resolvable: %v", name, err)
		}
		if !rt.Singleton && rt.NaturalKeyField == "" {
			t.Fatalf("collection type %q lacks a natural key field", name)
		}
		if rt.EndpointPath == "" {
			t.Fatalf("type %q lacks an endpoint path", name)
		}

		_, canonicalErr := catalog.Get(name, DialectCanonical)
		_, legacyErr := catalog.Get(name, DialectLegacy)
		if canonicalErr != nil && legacyErr != nil {
			t.Fatalf("type %q has no schema in either dialect", name)
		}

		if _, err := OrderTypes([]string{name}); err != nil {
			t.Fatalf("type %q has no reconciliation order: %v", name, err)
		}
	}
}
