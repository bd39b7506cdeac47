package domain

import (
	"dario.cat/mergo"
)

// MergePayloads returns a copy of current with results merged over it. Keys
// in results win; slices are concatenated.
func MergePayloads(current, results map[string]interface{}) (map[string]interface{}, error) {
	merged := deepCopyMap(current)
	if merged == nil {
		merged = make(map[string]interface{})
	}
	if len(results) == 0 {
		return merged, nil
	}

	if err := mergo.Merge(&merged, deepCopyMap(results),
		mergo.WithOverride,
		mergo.WithAppendSlice); err != nil {
		return nil, NewInternalError("failed to merge result payload", err, WithComponent("domain.MergePayloads"))
	}
	return merged, nil
}

func deepCopyMap(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return nil
	}
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = deepCopyValue(v)
	}
	return dst
}

func deepCopyValue(v interface{}) interface{} {
	switch typed := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(typed)
	case Row:
		return Row(deepCopyMap(typed))
	case []interface{}:
		out := make([]interface{}, len(typed))
		for i, item := range typed {
			out[i] = deepCopyValue(item)
		}
		return out
	case []string:
		return append([]string(nil), typed...)
	default:
		return v
	}
}
