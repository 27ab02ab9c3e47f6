package command

import (
	"errors"
	"fmt"
	"strings"

	"wardenhq.org/internal/rbac"
)

var (
	ErrNotFound     = errors.New("command: not found")
	ErrInvalidInput = errors.New("command: invalid input")
)

// RiskLevel classifies how strictly a command is gated.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// ParseRiskLevel normalizes a stored risk value.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch RiskLevel(strings.ToUpper(strings.TrimSpace(s))) {
	case RiskLow:
		return RiskLow, nil
	case RiskMedium:
		return RiskMedium, nil
	case RiskHigh:
		return RiskHigh, nil
	case RiskCritical:
		return RiskCritical, nil
	default:
		return "", fmt.Errorf("command: unknown risk level %q", s)
	}
}

// FieldType enumerates the supported input field kinds.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldNumber   FieldType = "number"
	FieldSelect   FieldType = "select"
	FieldMulti    FieldType = "multi"
)

// Option is one selectable value for a select field.
type Option struct {
	Value string
	Label string
}

// Field describes one input of a command payload.
type Field struct {
	Name     string
	Label    string
	Type     FieldType
	Required bool
	Min      *float64
	Max      *float64
	Options  []Option
}

// Definition is an immutable command description compiled into the process
// at startup. Identity is the ID.
type Definition struct {
	ID                 string
	Name               string
	Description        string
	RequiredPermission rbac.Permission
	Risk               RiskLevel
	Fields             []Field
}

// Registry is a total, order-independent mapping from command id to its
// definition. Constructed once and passed explicitly; never mutated.
type Registry struct {
	defs map[string]Definition
}

// NewRegistry builds a registry from definitions. Duplicate ids are a
// programming error.
func NewRegistry(defs []Definition) (*Registry, error) {
	m := make(map[string]Definition, len(defs))
	for _, d := range defs {
		if strings.TrimSpace(d.ID) == "" {
			return nil, errors.New("command: definition without id")
		}
		if _, dup := m[d.ID]; dup {
			return nil, fmt.Errorf("command: duplicate definition %q", d.ID)
		}
		m[d.ID] = d
	}
	return &Registry{defs: m}, nil
}

// Resolve returns the definition for id or ErrNotFound.
func (r *Registry) Resolve(id string) (Definition, error) {
	d, ok := r.defs[id]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return d, nil
}

// IDs returns all registered command ids.
func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.defs))
	for id := range r.defs {
		out = append(out, id)
	}
	return out
}
