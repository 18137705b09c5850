package normalize

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tim-schneider/nexsync/faults"
	"github.com/tim-schneider/nexsync/resource"
	"github.com/tim-schneider/nexsync/schema"
)

// NormalizationError marks one item that could not be made canonical: a
// required canonical field is still missing after mapping and defaulting.
// It is fatal for that single item only.
type NormalizationError struct {
	ResourceType string
	NaturalKey   string
	MissingPath  string
	err          error
}

func (e *NormalizationError) Error() string {
	if e == nil || e.err == nil {
		return "<nil>"
	}
	return e.err.Error()
}

func (e *NormalizationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

func newNormalizationError(resourceType string, naturalKey string, missingPath string) error {
	return &NormalizationError{
		ResourceType: resourceType,
		NaturalKey:   naturalKey,
		MissingPath:  missingPath,
		err: faults.NewTypedError(
			faults.ValidationError,
			fmt.Sprintf("resource type %q item %q is missing required field %q", resourceType, naturalKey, missingPath),
			nil,
		),
	}
}

func IsNormalizationError(err error) bool {
	var target *NormalizationError
	return errors.As(err, &target)
}

// Item normalizes one merged raw document into canonical form.
//
// Top-level keys are visited in sorted order. A key that roots one or more
// field-map source paths is translated through the map (converting values
// where the mapping says so); nested keys under that root which no mapping
// consumes stay under their original root. Every other key passes through
// unchanged, which keeps the engine forward-compatible with API attributes
// the schema does not know yet.
// When one logical attribute arrives in both dialects, the later key in
// sorted order wins (last write wins); callers should not spell the same
// attribute twice.
func Item(merged resource.Doc, sch schema.Schema, rt schema.ResourceType) (resource.Doc, error) {
	out := resource.Doc{}

	sourcesByRoot := fieldMapSourcesByRoot(sch.FieldMap)

	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		sources, isMapped := sourcesByRoot[key]
		if !isMapped {
			out[key] = resource.DeepCopy(merged[key])
			continue
		}
		leftover := resource.DeepCopy(merged[key])
		rootConsumed := false
		for _, source := range sources {
			value, found := resource.GetPath(merged, source)
			if !found {
				continue
			}
			mapping := sch.FieldMap[source]
			if mapping.Convert != nil {
				converted, err := mapping.Convert(value)
				if err != nil {
					return nil, err
				}
				value = converted
			}
			resource.SetPath(out, mapping.Path, resource.DeepCopy(value))
			if source == key {
				rootConsumed = true
			} else if nested, isDoc := leftover.(map[string]any); isDoc {
				resource.DeletePath(nested, strings.TrimPrefix(source, key+"."))
			}
		}
		if rootConsumed {
			continue
		}
		// Nested keys the field map does not know pass through under
		// their original root, same as unmapped top-level keys.
		if nested, isDoc := leftover.(map[string]any); isDoc {
			pruneEmptyMaps(nested)
			if len(nested) == 0 {
				continue
			}
		}
		out[key] = leftover
	}

	applyDefaults(out, sch.DefaultValues, "")

	if sch.Finalize != nil {
		if err := sch.Finalize(out); err != nil {
			return nil, err
		}
	}

	naturalKey := naturalKeyOf(out, rt)
	for _, required := range sch.RequiredFields {
		if !resource.HasPath(out, required) {
			return nil, newNormalizationError(rt.Name, naturalKey, required)
		}
	}

	canonical, err := resource.Canonicalize(out)
	if err != nil {
		return nil, err
	}
	return canonical.(resource.Doc), nil
}

// fieldMapSourcesByRoot groups field-map source paths by their first
// segment, sorted, so the normalizer applies mappings deterministically
// and knows which top-level keys are consumed by translation.
func fieldMapSourcesByRoot(fieldMap map[string]schema.FieldMapping) map[string][]string {
	if len(fieldMap) == 0 {
		return nil
	}
	byRoot := make(map[string][]string, len(fieldMap))
	for source := range fieldMap {
		root := source
		if idx := strings.IndexByte(source, '.'); idx >= 0 {
			root = source[:idx]
		}
		byRoot[root] = append(byRoot[root], source)
	}
	for root := range byRoot {
		sort.Strings(byRoot[root])
	}
	return byRoot
}

// pruneEmptyMaps drops nested objects that lost all entries to field-map
// translation, so a fully consumed root does not reappear as an empty map.
func pruneEmptyMaps(doc map[string]any) {
	for key, value := range doc {
		child, isDoc := value.(map[string]any)
		if !isDoc {
			continue
		}
		pruneEmptyMaps(child)
		if len(child) == 0 {
			delete(doc, key)
		}
	}
}

// applyDefaults writes schema defaults for canonical paths the input never
// populated. Object defaults recurse so user-specified siblings survive;
// scalar and list defaults apply only when the full path is absent.
func applyDefaults(out resource.Doc, defaults resource.Doc, prefix string) {
	for key, defaultValue := range defaults {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		defaultObject, defaultIsObject := defaultValue.(map[string]any)
		if defaultIsObject {
			if existing, found := resource.GetPath(out, path); found {
				if _, existingIsObject := existing.(map[string]any); !existingIsObject {
					continue
				}
			}
			applyDefaults(out, defaultObject, path)
			continue
		}

		if !resource.HasPath(out, path) {
			resource.SetPath(out, path, resource.DeepCopy(defaultValue))
		}
	}
}

func naturalKeyOf(doc resource.Doc, rt schema.ResourceType) string {
	if rt.NaturalKeyField == "" {
		return rt.Name
	}
	value, found := resource.GetPath(doc, rt.NaturalKeyField)
	if !found {
		return ""
	}
	key, _ := value.(string)
	return key
}

// NaturalKey extracts the item's natural key per the resource type
// definition. Singleton types report their type name.
func NaturalKey(doc resource.Doc, rt schema.ResourceType) string {
	return naturalKeyOf(doc, rt)
}
