package cli

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

func decodeYAML(data []byte) (any, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}
	return fixMapKeyToString(v), nil
}

// Workaround for non-string YAML mapping keys.
func fixMapKeyToString(v any) any {
	switch v := v.(type) {
	case map[any]any:
		w := make(map[string]any, len(v))
		for k, u := range v {
			w[fmt.Sprint(k)] = fixMapKeyToString(u)
		}
		return w

	case map[string]any:
		w := make(map[string]any, len(v))
		for k, u := range v {
			w[k] = fixMapKeyToString(u)
		}
		return w

	case []any:
		for i, u := range v {
			v[i] = fixMapKeyToString(u)
		}
		return v

	default:
		return v
	}
}
