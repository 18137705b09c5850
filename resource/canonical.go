package resource

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/tim-schneider/nexsync/faults"
)

// Canonicalize rewrites a document into its comparable form: all integer
// kinds widen to int64, json.Number collapses to int64 or float64, map keys
// are visited in sorted order so nested construction stays deterministic.
// Inputs decoded from YAML or JSON land here before any diffing.
func Canonicalize(value Value) (Value, error) {
	switch typed := value.(type) {
	case nil, bool, string:
		return typed, nil
	case float32:
		return canonicalFloat(float64(typed))
	case float64:
		return canonicalFloat(typed)
	case int:
		return int64(typed), nil
	case int8:
		return int64(typed), nil
	case int16:
		return int64(typed), nil
	case int32:
		return int64(typed), nil
	case int64:
		return typed, nil
	case uint:
		return canonicalUint(uint64(typed))
	case uint8:
		return canonicalUint(uint64(typed))
	case uint16:
		return canonicalUint(uint64(typed))
	case uint32:
		return canonicalUint(uint64(typed))
	case uint64:
		return canonicalUint(typed)
	case json.Number:
		return canonicalNumber(typed)
	case []any:
		return canonicalSlice(typed)
	case map[string]any:
		return canonicalMap(typed)
	case map[any]any:
		return canonicalUntypedMap(typed)
	}

	return nil, faults.NewTypedError(
		faults.ValidationError,
		fmt.Sprintf("unsupported document value type %T", value),
		nil,
	)
}

func canonicalFloat(value float64) (Value, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, faults.NewTypedError(faults.ValidationError, "document contains non-finite float", nil)
	}
	if value == math.Trunc(value) && math.Abs(value) < float64(math.MaxInt64) {
		return int64(value), nil
	}
	return value, nil
}

func canonicalUint(value uint64) (int64, error) {
	if value > math.MaxInt64 {
		return 0, faults.NewTypedError(faults.ValidationError, "document contains integer out of range", nil)
	}
	return int64(value), nil
}

func canonicalNumber(value json.Number) (Value, error) {
	if asInt, err := value.Int64(); err == nil {
		return asInt, nil
	}
	asFloat, err := value.Float64()
	if err != nil {
		return nil, faults.NewTypedError(faults.ValidationError, "document contains invalid number", err)
	}
	return canonicalFloat(asFloat)
}

func canonicalSlice(values []any) ([]any, error) {
	out := make([]any, len(values))
	for idx, item := range values {
		converted, err := Canonicalize(item)
		if err != nil {
			return nil, err
		}
		out[idx] = converted
	}
	return out, nil
}

func canonicalMap(values map[string]any) (map[string]any, error) {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(values))
	for _, key := range keys {
		converted, err := Canonicalize(values[key])
		if err != nil {
			return nil, err
		}
		out[key] = converted
	}
	return out, nil
}

// YAML v3 decodes into map[string]any for string keys, but documents that
// went through older decoders may still carry any-keyed maps.
func canonicalUntypedMap(values map[any]any) (map[string]any, error) {
	converted := make(map[string]any, len(values))
	for key, item := range values {
		stringKey, ok := key.(string)
		if !ok {
			return nil, faults.NewTypedError(faults.ValidationError, "document map keys must be strings", nil)
		}
		converted[stringKey] = item
	}
	return canonicalMap(converted)
}
