package resource

// Value is one JSON-like configuration document or fragment: nested
// map[string]any / []any trees with scalar leaves.
type Value = any

// Doc is a top-level document. API payloads and desired-state items are
// always objects at the root.
type Doc = map[string]any
