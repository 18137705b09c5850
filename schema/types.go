package schema

import "github.com/tim-schneider/nexsync/resource"

// Dialect names an input key-shape convention. Canonical is the shape the
// Nexus REST API accepts; Legacy is the flat key convention carried over
// from older inventories. A document may mix both; the normalizer resolves
// keys per entry.
type Dialect string

const (
	DialectCanonical Dialect = "canonical"
	DialectLegacy    Dialect = "legacy"
)

// ResourceType identifies one configuration domain of the repository
// manager, such as a repository flavor or the user collection.
type ResourceType struct {
	Name string

	// NaturalKeyField correlates desired and remote items. The API exposes
	// no stable opaque identifier, so renames are delete-plus-create.
	NaturalKeyField string

	// EndpointPath is the collection endpoint relative to the server base
	// URL. Item operations append "/" + natural key.
	EndpointPath string

	// ListPath overrides EndpointPath for LIST when the API reads from a
	// different endpoint (repository settings, privileges).
	ListPath string

	// ListJQ extracts and filters the item array from the LIST payload.
	// Empty means the payload is the array itself (or an "items" wrapper).
	ListJQ string

	// ReadOnlyField flags system-managed remote items that must never be
	// updated or deleted. Empty disables the filter.
	ReadOnlyField string

	// SuppressCompare lists dotted paths removed from both sides before
	// diffing: attributes the server computes (url, blob counts) or never
	// echoes back (passwords). Drift on these cannot be detected.
	SuppressCompare []string

	// Singleton types hold exactly one document; reconciliation degrades to
	// compare-and-PUT with no create or delete classification.
	Singleton bool

	// SingletonListAttribute names the document attribute a singleton
	// endpoint exchanges as a bare JSON array (the active-realms endpoint).
	// The gateway wraps GET payloads under it and unwraps PUT bodies.
	SingletonListAttribute string

	SupportsGroupVariant bool
	RequiresProFeature   bool

	// MinServerVersion is a semver constraint the reported server version
	// must satisfy, e.g. ">= 3.29.0". Empty means no constraint.
	MinServerVersion string
}

// ConvertFunc rewrites a value carried by a legacy key into its canonical
// representation, e.g. second counts into day counts.
type ConvertFunc func(resource.Value) (resource.Value, error)

// FieldMapping routes one legacy key to a canonical dotted path, optionally
// converting the value on the way.
type FieldMapping struct {
	Path    string
	Convert ConvertFunc
}

// FinalizeFunc runs after mapping and defaulting, for cross-attribute rules
// that a flat field map cannot express (authentication type inference,
// LDAP group type inference). It may mutate the document in place.
type FinalizeFunc func(doc resource.Doc) error

// Schema describes how raw documents of one (resource type, dialect) pair
// become canonical. Schemas are immutable after registration.
type Schema struct {
	// FieldMap translates legacy keys. Keys absent from the map pass
	// through unchanged, keeping the engine forward-compatible with new
	// API attributes.
	FieldMap map[string]FieldMapping

	// DefaultValues is merged at lowest precedence for canonical paths the
	// input never populated.
	DefaultValues resource.Doc

	// RequiredFields are dotted canonical paths that must resolve after
	// normalization and defaulting.
	RequiredFields []string

	// KeepEmpty lists dotted paths exempt from empty-value pruning before
	// comparison.
	KeepEmpty []string

	Finalize FinalizeFunc
}

// KeepEmptySet returns KeepEmpty as a lookup set for resource.PruneEmpty.
func (s Schema) KeepEmptySet() map[string]struct{} {
	if len(s.KeepEmpty) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(s.KeepEmpty))
	for _, path := range s.KeepEmpty {
		set[path] = struct{}{}
	}
	return set
}
