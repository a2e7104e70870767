package simplecms

// CloneData deep-copies a data map so no value is shared between items.
func CloneData(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CloneData(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}

// CloneFields deep-copies a field list.
func CloneFields(fields []ContentField) []ContentField {
	if fields == nil {
		return nil
	}
	out := make([]ContentField, len(fields))
	for i, f := range fields {
		c := f
		if f.Validation != nil {
			v := *f.Validation
			if f.Validation.Min != nil {
				n := *f.Validation.Min
				v.Min = &n
			}
			if f.Validation.Max != nil {
				n := *f.Validation.Max
				v.Max = &n
			}
			v.Enum = append([]string(nil), f.Validation.Enum...)
			c.Validation = &v
		}
		c.Options = append([]FieldOption(nil), f.Options...)
		c.DefaultValue = cloneValue(f.DefaultValue)
		out[i] = c
	}
	return out
}

// String returns a pointer to s, for partial update requests.
func String(s string) *string {
	return &s
}

// Bool returns a pointer to b, for partial update requests.
func Bool(b bool) *bool {
	return &b
}

// Int returns a pointer to n.
func Int(n int) *int {
	return &n
}
