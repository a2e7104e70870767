package simplecms

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"
)

// UnknownFieldPolicy controls payload keys that no field of the model declares.
type UnknownFieldPolicy int

const (
	// RejectUnknownFields reports every undeclared key as a validation error.
	RejectUnknownFields UnknownFieldPolicy = iota
	// IgnoreUnknownFields drops undeclared keys from the normalized data.
	IgnoreUnknownFields
)

var patternCache sync.Map // pattern -> *regexp.Regexp

func compilePattern(p string) (*regexp.Regexp, error) {
	if re, ok := patternCache.Load(p); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(p)
	if err != nil {
		return nil, err
	}
	patternCache.Store(p, re)
	return re, nil
}

// ValidateModelDefinition checks a field list and settings for internal
// consistency. All problems are reported in one *ValidationError.
func ValidateModelDefinition(fields []ContentField, settings ModelSettings) error {
	var msgs []string
	if len(fields) == 0 {
		msgs = append(msgs, "Model must define at least one field")
	}

	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		if strings.TrimSpace(f.Name) == "" {
			msgs = append(msgs, fmt.Sprintf("Field #%d must have a name", i+1))
			continue
		}
		if seen[f.Name] {
			msgs = append(msgs, fmt.Sprintf("Duplicate field name: %s", f.Name))
		}
		seen[f.Name] = true

		if !f.Type.IsValid() {
			msgs = append(msgs, fmt.Sprintf("Field '%s' has unknown type '%s'", f.Name, f.Type))
			continue
		}

		switch f.Type {
		case FieldTypeReference:
			if f.ReferenceTo == "" {
				msgs = append(msgs, fmt.Sprintf("Reference field '%s' must specify referenceTo", f.Name))
			}
		case FieldTypeSelect, FieldTypeMultiSelect:
			if len(f.Options) == 0 {
				msgs = append(msgs, fmt.Sprintf("Select field '%s' must have options", f.Name))
			}
		case FieldTypeArray:
			if f.ArrayOf != "" && (!f.ArrayOf.IsValid() || f.ArrayOf == FieldTypeArray) {
				msgs = append(msgs, fmt.Sprintf("Array field '%s' has unsupported arrayOf type '%s'", f.Name, f.ArrayOf))
			}
			if f.ArrayOf == FieldTypeReference && f.ArrayReferenceTo == "" {
				msgs = append(msgs, fmt.Sprintf("Array field '%s' must specify arrayReferenceTo", f.Name))
			}
		}

		msgs = append(msgs, checkRules(f)...)

		if f.DefaultValue != nil {
			if _, err := CoerceValue(f, f.DefaultValue); err != nil {
				msgs = append(msgs, fmt.Sprintf("Field '%s' default value %s", f.Name, err))
			}
		}
	}

	if settings.SlugField != "" && !seen[settings.SlugField] {
		msgs = append(msgs, fmt.Sprintf("Slug field '%s' is not defined in model", settings.SlugField))
	}
	return newValidationError(msgs)
}

func checkRules(f ContentField) []string {
	v := f.Validation
	if v == nil {
		return nil
	}
	var msgs []string
	if v.Min != nil && *v.Min < 0 {
		msgs = append(msgs, fmt.Sprintf("Field '%s' has negative min", f.Name))
	}
	if v.Min != nil && v.Max != nil && *v.Min > *v.Max {
		msgs = append(msgs, fmt.Sprintf("Field '%s' has min greater than max", f.Name))
	}
	if v.Pattern != "" {
		if _, err := compilePattern(v.Pattern); err != nil {
			msgs = append(msgs, fmt.Sprintf("Field '%s' has invalid pattern: %v", f.Name, err))
		}
	}
	return msgs
}

// NormalizeData validates data against the fields of model and returns the
// coerced map. The result has exactly one key per model field. Fields are
// checked in declaration order and every violation is collected.
func NormalizeData(model *ContentModel, data map[string]any, policy UnknownFieldPolicy) (map[string]any, error) {
	out := make(map[string]any, len(model.Fields))
	var msgs []string

	for _, f := range model.Fields {
		v, present := data[f.Name]
		if !present || v == nil || (f.Required() && v == "") {
			if f.Required() {
				msgs = append(msgs, fmt.Sprintf("Field '%s' is required", f.Name))
				continue
			}
			out[f.Name] = cloneValue(f.DefaultValue)
			continue
		}

		coerced, err := CoerceValue(f, v)
		if err != nil {
			msgs = append(msgs, fmt.Sprintf("Field '%s' %s", f.Name, err))
			continue
		}
		msgs = append(msgs, checkConstraints(f, coerced)...)
		out[f.Name] = coerced
	}

	if policy == RejectUnknownFields {
		var unknown []string
		for k := range data {
			if _, ok := model.Field(k); !ok {
				unknown = append(unknown, k)
			}
		}
		sort.Strings(unknown)
		for _, k := range unknown {
			msgs = append(msgs, fmt.Sprintf("Field '%s' is not defined in model '%s'", k, model.Slug))
		}
	}

	if err := newValidationError(msgs); err != nil {
		return nil, err
	}
	return out, nil
}

func checkConstraints(f ContentField, v any) []string {
	rules := f.Validation
	if rules == nil {
		return nil
	}

	var msgs []string
	n := textLength(v)
	if rules.Min != nil && n < *rules.Min {
		msgs = append(msgs, fmt.Sprintf("Field '%s' must be at least %d characters", f.Name, *rules.Min))
	}
	if rules.Max != nil && n > *rules.Max {
		msgs = append(msgs, fmt.Sprintf("Field '%s' must be at most %d characters", f.Name, *rules.Max))
	}

	s, scalar := scalarText(v)
	if rules.Pattern != "" && scalar {
		if re, err := compilePattern(rules.Pattern); err == nil && !re.MatchString(s) {
			msgs = append(msgs, fmt.Sprintf("Field '%s' does not match pattern", f.Name))
		}
	}
	if len(rules.Enum) > 0 && scalar && !containsString(rules.Enum, s) {
		msgs = append(msgs, fmt.Sprintf("Field '%s' must be one of [%s]", f.Name, strings.Join(rules.Enum, ", ")))
	}
	return msgs
}

// textLength measures a coerced value: runes for text, elements for lists,
// and the length of the rendered form for everything else.
func textLength(v any) int {
	switch val := v.(type) {
	case nil:
		return 0
	case string:
		return utf8.RuneCountInString(val)
	case []any:
		return len(val)
	}
	if s, ok := scalarText(v); ok {
		return utf8.RuneCountInString(s)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return utf8.RuneCount(b)
}

func scalarText(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case float64:
		return formatNumber(val), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		return "", false
	}
}

func containsString(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}
