package command

import (
	"fmt"
	"strings"
)

// Payload is the raw command input as decoded from the wire.
type Payload map[string]any

// ValidateInput checks a payload against the definition's field descriptors
// and returns a normalized copy. Unknown keys are dropped.
func ValidateInput(def Definition, raw Payload) (Payload, error) {
	out := make(Payload, len(def.Fields))
	for _, f := range def.Fields {
		v, present := raw[f.Name]
		if !present || v == nil {
			if f.Required {
				return nil, fmt.Errorf("%w: %s is required", ErrInvalidInput, f.Name)
			}
			continue
		}
		switch f.Type {
		case FieldText, FieldTextarea:
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s must be a string", ErrInvalidInput, f.Name)
			}
			s = strings.TrimSpace(s)
			if s == "" && f.Required {
				return nil, fmt.Errorf("%w: %s is required", ErrInvalidInput, f.Name)
			}
			out[f.Name] = s
		case FieldNumber:
			n, ok := toFloat(v)
			if !ok {
				return nil, fmt.Errorf("%w: %s must be a number", ErrInvalidInput, f.Name)
			}
			if f.Min != nil && n < *f.Min {
				return nil, fmt.Errorf("%w: %s must be >= %v", ErrInvalidInput, f.Name, *f.Min)
			}
			if f.Max != nil && n > *f.Max {
				return nil, fmt.Errorf("%w: %s must be <= %v", ErrInvalidInput, f.Name, *f.Max)
			}
			out[f.Name] = n
		case FieldSelect:
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s must be a string", ErrInvalidInput, f.Name)
			}
			if !validOption(f.Options, s) {
				return nil, fmt.Errorf("%w: %s has no option %q", ErrInvalidInput, f.Name, s)
			}
			out[f.Name] = s
		case FieldMulti:
			items, ok := toStringSlice(v)
			if !ok {
				return nil, fmt.Errorf("%w: %s must be a list of strings", ErrInvalidInput, f.Name)
			}
			if len(items) == 0 && f.Required {
				return nil, fmt.Errorf("%w: %s is required", ErrInvalidInput, f.Name)
			}
			out[f.Name] = items
		default:
			return nil, fmt.Errorf("%w: %s has unsupported field type", ErrInvalidInput, f.Name)
		}
	}
	return out, nil
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

func toStringSlice(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func validOption(opts []Option, value string) bool {
	for _, o := range opts {
		if o.Value == value {
			return true
		}
	}
	return false
}
