package simplecms

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// CanonicalTimeFormat is how date and datetime values are stored.
const CanonicalTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// coerceFunc validates one present value and returns its normalized form.
// The error text completes the sentence "Field '<name>' ...".
type coerceFunc func(field ContentField, value any) (any, error)

var (
	fieldTypeRegistry map[FieldType]coerceFunc

	fieldTypeOrder = []FieldType{
		FieldTypeText, FieldTypeRichText, FieldTypeNumber, FieldTypeBoolean,
		FieldTypeDate, FieldTypeDateTime, FieldTypeEmail, FieldTypeURL,
		FieldTypeSlug, FieldTypeJSON, FieldTypeReference, FieldTypeMedia,
		FieldTypeSelect, FieldTypeMultiSelect, FieldTypeArray,
	}

	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	dateLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
)

func init() {
	// filled here because coerceArray looks entries up again
	fieldTypeRegistry = map[FieldType]coerceFunc{
		FieldTypeText:        passThrough,
		FieldTypeRichText:    passThrough,
		FieldTypeReference:   passThrough,
		FieldTypeMedia:       passThrough,
		FieldTypeNumber:      coerceNumber,
		FieldTypeBoolean:     coerceBoolean,
		FieldTypeDate:        coerceDate,
		FieldTypeDateTime:    coerceDate,
		FieldTypeEmail:       coerceEmail,
		FieldTypeURL:         coerceURL,
		FieldTypeSlug:        coerceSlug,
		FieldTypeJSON:        coerceJSON,
		FieldTypeSelect:      coerceSelect,
		FieldTypeMultiSelect: coerceMultiSelect,
		FieldTypeArray:       coerceArray,
	}
}

// FieldTypes lists every registered field type in declaration order.
func FieldTypes() []FieldType {
	return append([]FieldType(nil), fieldTypeOrder...)
}

// IsValid reports whether t is a registered field type.
func (t FieldType) IsValid() bool {
	_, ok := fieldTypeRegistry[t]
	return ok
}

// CoerceValue runs the registered coercion for field's type on a present value.
func CoerceValue(field ContentField, value any) (any, error) {
	coerce, ok := fieldTypeRegistry[field.Type]
	if !ok {
		return nil, fmt.Errorf("has unknown type '%s'", field.Type)
	}
	return coerce(field, value)
}

func passThrough(_ ContentField, v any) (any, error) {
	return cloneValue(v), nil
}

func coerceNumber(_ ContentField, v any) (any, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil, errors.New("must be a number")
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil, errors.New("must be a number")
		}
		f = parsed
	default:
		return nil, errors.New("must be a number")
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, errors.New("must be a number")
	}
	return f, nil
}

// coerceBoolean never rejects: known words parse, anything else is judged by
// truthiness (empty text, zero and NaN are false).
func coerceBoolean(_ ContentField, v any) (any, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case float64:
		return b != 0 && !math.IsNaN(b), nil
	case float32:
		return b != 0 && !math.IsNaN(float64(b)), nil
	case int:
		return b != 0, nil
	case int64:
		return b != 0, nil
	case int32:
		return b != 0, nil
	case json.Number:
		if f, err := b.Float64(); err == nil {
			return f != 0 && !math.IsNaN(f), nil
		}
		return b != "", nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "yes", "on":
			return true, nil
		case "false", "0", "no", "off":
			return false, nil
		}
		return b != "", nil
	case nil:
		return false, nil
	}
	return true, nil
}

func coerceDate(_ ContentField, v any) (any, error) {
	var t time.Time
	switch val := v.(type) {
	case time.Time:
		t = val
	case float64:
		t = time.UnixMilli(int64(val))
	case string:
		s := strings.TrimSpace(val)
		parsed := false
		for _, layout := range dateLayouts {
			if pt, err := time.Parse(layout, s); err == nil {
				t, parsed = pt, true
				break
			}
		}
		if !parsed {
			return nil, errors.New("must be a valid date")
		}
	default:
		return nil, errors.New("must be a valid date")
	}
	return t.UTC().Format(CanonicalTimeFormat), nil
}

func coerceEmail(_ ContentField, v any) (any, error) {
	s, ok := v.(string)
	if !ok || !emailPattern.MatchString(s) {
		return nil, errors.New("must be a valid email")
	}
	return s, nil
}

func coerceURL(_ ContentField, v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, errors.New("must be a valid URL")
	}
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || !u.IsAbs() || (u.Host == "" && u.Opaque == "") {
		return nil, errors.New("must be a valid URL")
	}
	return s, nil
}

func coerceSlug(_ ContentField, v any) (any, error) {
	return Slugify(slugSource(v)), nil
}

func coerceJSON(_ ContentField, v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return cloneValue(v), nil
	}
	var parsed any
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		return nil, errors.New("must be valid JSON")
	}
	return parsed, nil
}

func coerceSelect(f ContentField, v any) (any, error) {
	s, ok := v.(string)
	if !ok || !hasOption(f, s) {
		return nil, fmt.Errorf("must be one of %s", optionList(f))
	}
	return s, nil
}

func coerceMultiSelect(f ContentField, v any) (any, error) {
	list, ok := asList(v)
	if !ok {
		return nil, errors.New("must be a list")
	}
	out := make([]any, 0, len(list))
	for _, e := range list {
		s, ok := e.(string)
		if !ok || !hasOption(f, s) {
			return nil, fmt.Errorf("has invalid option %v, must be one of %s", e, optionList(f))
		}
		out = append(out, s)
	}
	return out, nil
}

func coerceArray(f ContentField, v any) (any, error) {
	list, ok := asList(v)
	if !ok {
		return nil, errors.New("must be a list")
	}
	coerce, typed := fieldTypeRegistry[f.ArrayOf]
	if f.ArrayOf == FieldTypeArray {
		typed = false
	}
	element := ContentField{
		Name:        f.Name,
		Type:        f.ArrayOf,
		ReferenceTo: f.ArrayReferenceTo,
		Options:     f.Options,
	}
	out := make([]any, len(list))
	for i, e := range list {
		if !typed {
			out[i] = cloneValue(e)
			continue
		}
		c, err := coerce(element, e)
		if err != nil {
			return nil, fmt.Errorf("item %d %w", i, err)
		}
		out[i] = c
	}
	return out, nil
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func hasOption(f ContentField, value string) bool {
	for _, o := range f.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

func optionList(f ContentField) string {
	values := make([]string, len(f.Options))
	for i, o := range f.Options {
		values[i] = o.Value
	}
	return "[" + strings.Join(values, ", ") + "]"
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
