package normalize

import "github.com/tim-schneider/nexsync/resource"

// MergeLayers deep-merges default layers lowest-to-highest precedence
// (Global, Type, Format, Item). Nested objects merge key by key so
// unrelated sibling attributes from lower layers survive; scalars and
// lists are replaced wholesale by the higher layer, so a list override
// (e.g. cleanup policy names) is exact. Nil layers count as empty. Inputs
// are never mutated.
func MergeLayers(layers ...resource.Value) resource.Doc {
	merged := resource.Doc{}
	for _, layer := range layers {
		object, isObject := layer.(map[string]any)
		if !isObject {
			continue
		}
		mergeInto(merged, object)
	}
	return merged
}

func mergeInto(dst resource.Doc, src map[string]any) {
	for key, srcValue := range src {
		srcObject, srcIsObject := srcValue.(map[string]any)
		if !srcIsObject {
			dst[key] = resource.DeepCopy(srcValue)
			continue
		}

		dstObject, dstIsObject := dst[key].(map[string]any)
		if !dstIsObject {
			dstObject = resource.Doc{}
			dst[key] = dstObject
		}
		mergeInto(dstObject, srcObject)
	}
}
