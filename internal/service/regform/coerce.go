package regform

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ignite/conference-hub/internal/domain"
	"github.com/ignite/conference-hub/internal/pkg/email"
)

// Config holds the tunables of the resolution engine.
type Config struct {
	// RejectDisabledChoices refuses submissions selecting a disabled choice.
	RejectDisabledChoices bool `yaml:"reject_disabled_choices"`
	// MaxChoiceQuantity caps the quantity of a single choice. Zero means no cap.
	MaxChoiceQuantity int `yaml:"max_choice_quantity"`
}

type kindCoercer struct {
	coerce func(c *Coercer, f domain.FieldDefinition, raw any) (any, error)
	// empty is the kind's default when the field has none configured.
	empty func() any
}

var kindCoercers = map[domain.InputKind]kindCoercer{
	domain.KindBool:         {coerce: coerceBool, empty: func() any { return nil }},
	domain.KindCheckbox:     {coerce: coerceBool, empty: func() any { return false }},
	domain.KindText:         {coerce: coerceText, empty: func() any { return "" }},
	domain.KindTextarea:     {coerce: coerceText, empty: func() any { return "" }},
	domain.KindEmail:        {coerce: coerceEmail, empty: func() any { return "" }},
	domain.KindNumber:       {coerce: coerceNumber, empty: func() any { return nil }},
	domain.KindSingleChoice: {coerce: coerceSingleChoice, empty: func() any { return map[string]int{} }},
	domain.KindMultiChoice:  {coerce: coerceMultiChoice, empty: func() any { return map[string]int{} }},
}

// Coercer converts raw submitted input into the canonical stored form.
type Coercer struct {
	cfg Config
}

// NewCoercer creates a coercer with the given configuration.
func NewCoercer(cfg Config) *Coercer {
	return &Coercer{cfg: cfg}
}

// Coerce converts raw into the canonical value for field. A nil raw value
// yields the field's default.
func (c *Coercer) Coerce(field domain.FieldDefinition, raw any) (any, error) {
	kc, ok := kindCoercers[field.InputKind]
	if !ok {
		return nil, invalid(field, fmt.Sprintf("unsupported input type %q", field.InputKind))
	}
	if raw == nil {
		return c.DefaultFor(field), nil
	}
	return kc.coerce(c, field, raw)
}

// DefaultFor returns the value a field gets when nothing was submitted.
func (c *Coercer) DefaultFor(field domain.FieldDefinition) any {
	kc, ok := kindCoercers[field.InputKind]
	if !ok {
		return nil
	}
	if field.DefaultValue != nil {
		if v, err := kc.coerce(c, field, field.DefaultValue); err == nil {
			return v
		}
	}
	return kc.empty()
}

func invalid(f domain.FieldDefinition, reason string) *ValidationError {
	return &ValidationError{FieldID: f.ID, Title: f.Title, Reason: reason}
}

func coerceBool(_ *Coercer, f domain.FieldDefinition, raw any) (any, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "y", "on", "1":
			return true, nil
		case "false", "no", "n", "off", "0":
			return false, nil
		case "":
			// an unanswered yes/no question stays unset; an unticked checkbox is false
			if f.InputKind == domain.KindBool {
				return nil, nil
			}
			return false, nil
		}
	default:
		if n, ok := toFloat(raw); ok {
			return n != 0, nil
		}
	}
	return nil, invalid(f, fmt.Sprintf("not a yes/no value: %v", raw))
}

func coerceText(_ *Coercer, f domain.FieldDefinition, raw any) (any, error) {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v), nil
	case json.Number:
		return v.String(), nil
	}
	return nil, invalid(f, fmt.Sprintf("expected text, got %T", raw))
}

func coerceEmail(c *Coercer, f domain.FieldDefinition, raw any) (any, error) {
	v, err := coerceText(c, f, raw)
	if err != nil {
		return nil, err
	}
	addr := email.Normalize(v.(string))
	if addr != "" && !email.IsValid(addr) {
		return nil, invalid(f, "invalid email address")
	}
	return addr, nil
}

func coerceNumber(_ *Coercer, f domain.FieldDefinition, raw any) (any, error) {
	if n, ok := toFloat(raw); ok {
		return n, nil
	}
	if s, ok := raw.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		n, err := strconv.ParseFloat(s, 64)
		if err == nil {
			return n, nil
		}
	}
	return nil, invalid(f, fmt.Sprintf("not a number: %v", raw))
}

func coerceMultiChoice(c *Coercer, f domain.FieldDefinition, raw any) (any, error) {
	entries, err := choiceEntries(f, raw)
	if err != nil {
		return nil, err
	}
	return c.checkChoices(f, entries)
}

func coerceSingleChoice(c *Coercer, f domain.FieldDefinition, raw any) (any, error) {
	if id, ok := raw.(string); ok {
		id = strings.TrimSpace(id)
		if id == "" {
			return map[string]int{}, nil
		}
		return c.checkChoices(f, map[string]any{id: 1})
	}
	entries, err := choiceEntries(f, raw)
	if err != nil {
		return nil, err
	}
	out, err := c.checkChoices(f, entries)
	if err != nil {
		return nil, err
	}
	if len(out) > 1 {
		return nil, invalid(f, "only one choice may be selected")
	}
	return out, nil
}

// choiceEntries accepts the mapping shapes JSON decoding and Go callers produce.
func choiceEntries(f domain.FieldDefinition, raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case map[string]any:
		return v, nil
	case map[string]int:
		out := make(map[string]any, len(v))
		for k, n := range v {
			out[k] = n
		}
		return out, nil
	case map[string]float64:
		out := make(map[string]any, len(v))
		for k, n := range v {
			out[k] = n
		}
		return out, nil
	case map[string]int64:
		out := make(map[string]any, len(v))
		for k, n := range v {
			out[k] = n
		}
		return out, nil
	}
	return nil, invalid(f, fmt.Sprintf("expected a choice mapping, got %T", raw))
}

func (c *Coercer) checkChoices(f domain.FieldDefinition, entries map[string]any) (map[string]int, error) {
	out := make(map[string]int, len(entries))
	for id, rawQty := range entries {
		choice, ok := f.ChoiceByID(id)
		if !ok {
			return nil, invalid(f, fmt.Sprintf("unknown choice %q", id))
		}
		qty, ok := toQuantity(rawQty)
		if !ok {
			return nil, invalid(f, fmt.Sprintf("invalid quantity for choice %q", id))
		}
		if qty == 0 {
			continue
		}
		if c.cfg.RejectDisabledChoices && !choice.IsEnabled {
			return nil, invalid(f, fmt.Sprintf("choice %q is not available", id))
		}
		if c.cfg.MaxChoiceQuantity > 0 && qty > c.cfg.MaxChoiceQuantity {
			return nil, invalid(f, fmt.Sprintf("quantity for choice %q exceeds %d", id, c.cfg.MaxChoiceQuantity))
		}
		out[id] = qty
	}
	return out, nil
}
