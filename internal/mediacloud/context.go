package mediacloud

import (
	"encoding/json"
	"strconv"
)

// resourceContext tolerates the shapes the provider uses for structured
// context: a flat object, or one nested under "custom", with values that
// may arrive as strings, booleans, or numbers. Everything is normalized
// to strings ("true"/"false" for booleans).
type resourceContext map[string]string

func (c *resourceContext) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		// Anything that is not an object carries no usable context.
		*c = nil
		return nil
	}

	// The provider nests per-asset values under "custom" in some
	// responses; unwrap when present.
	if custom, ok := raw["custom"]; ok {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(custom, &nested); err == nil {
			raw = nested
		}
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = normalizeContextValue(v)
	}
	*c = out
	return nil
}

func (c resourceContext) flatten() map[string]string {
	if len(c) == 0 {
		return nil
	}
	return map[string]string(c)
}

func normalizeContextValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return string(raw)
}
