package schema

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tim-schneider/nexsync/faults"
)

// UnknownSchemaError marks a (resource type, dialect) lookup with no
// registered schema. It is fatal for that resource type's pipeline only.
type UnknownSchemaError struct {
	ResourceType string
	Dialect      Dialect
	err          error
}

func (e *UnknownSchemaError) Error() string {
	if e == nil || e.err == nil {
		return "<nil>"
	}
	return e.err.Error()
}

func (e *UnknownSchemaError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

func NewUnknownSchemaError(resourceType string, dialect Dialect) error {
	return &UnknownSchemaError{
		ResourceType: resourceType,
		Dialect:      dialect,
		err: faults.NewTypedError(
			faults.SchemaError,
			fmt.Sprintf("no schema registered for resource type %q dialect %q", resourceType, dialect),
			nil,
		),
	}
}

func IsUnknownSchemaError(err error) bool {
	var target *UnknownSchemaError
	return errors.As(err, &target)
}

type schemaKey struct {
	resourceType string
	dialect      Dialect
}

// Registry holds the resource types and their per-dialect schemas. It is
// populated once at startup and read-only afterwards.
type Registry struct {
	types   map[string]ResourceType
	schemas map[schemaKey]Schema
}

func NewRegistry() *Registry {
	return &Registry{
		types:   map[string]ResourceType{},
		schemas: map[schemaKey]Schema{},
	}
}

// RegisterType adds a resource type definition. Re-registering a name
// replaces the previous definition; the built-in catalog never does.
func (r *Registry) RegisterType(rt ResourceType) {
	r.types[rt.Name] = rt
}

// Register adds the schema for a (resource type, dialect) pair.
func (r *Registry) Register(resourceType string, dialect Dialect, sch Schema) {
	r.schemas[schemaKey{resourceType: resourceType, dialect: dialect}] = sch
}

// Type returns the resource type definition by name.
func (r *Registry) Type(name string) (ResourceType, error) {
	rt, found := r.types[name]
	if !found {
		return ResourceType{}, faults.NewTypedError(
			faults.SchemaError,
			fmt.Sprintf("unknown resource type %q", name),
			nil,
		)
	}
	return rt, nil
}

// Get returns the schema registered for the pair, or UnknownSchemaError.
func (r *Registry) Get(resourceType string, dialect Dialect) (Schema, error) {
	sch, found := r.schemas[schemaKey{resourceType: resourceType, dialect: dialect}]
	if !found {
		return Schema{}, NewUnknownSchemaError(resourceType, dialect)
	}
	return sch, nil
}

// TypeNames lists every registered resource type, sorted by name.
func (r *Registry) TypeNames() []string {
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
