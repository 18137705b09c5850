package resource

// DeepCopy returns a structurally independent copy of a document fragment.
// Scalars are returned as-is.
func DeepCopy(value Value) Value {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = DeepCopy(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for idx, item := range typed {
			out[idx] = DeepCopy(item)
		}
		return out
	default:
		return typed
	}
}
