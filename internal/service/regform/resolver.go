package regform

import (
	"sort"

	"github.com/ignite/conference-hub/internal/domain"
)

// Action selects between a first submission and a later modification.
type Action int

const (
	ActionCreate Action = iota
	ActionModify
)

func (a Action) String() string {
	if a == ActionModify {
		return "modify"
	}
	return "create"
}

// Mode describes who submits and why.
type Mode struct {
	Action     Action
	Management bool
}

// Resolver runs resolution passes over a form's fields.
type Resolver struct {
	coercer    *Coercer
	visibility VisibilityEvaluator
}

// NewResolver creates a resolver with the given configuration.
func NewResolver(cfg Config) *Resolver {
	return &Resolver{coercer: NewCoercer(cfg)}
}

// Coercer exposes the resolver's coercer.
func (r *Resolver) Coercer() *Coercer { return r.coercer }

// Resolve evaluates fields in order against raw and, when modifying, the
// currently stored values. Fields must be in the form's static order. The
// first coercion failure aborts the pass.
func (r *Resolver) Resolve(fields []domain.FieldDefinition, raw map[string]any, mode Mode, existing map[string]domain.SubmissionValue) (*domain.ResolvedRegistration, error) {
	if mode.Action == ActionCreate {
		existing = nil
	}
	out := &domain.ResolvedRegistration{Diff: make(map[string]domain.FieldChange)}
	resolved := make(map[string]any, len(fields))
	known := make(map[string]bool, len(fields))

	for _, f := range fields {
		known[f.ID] = true
		old, hadOld := existing[f.ID]

		if !f.IsActive() {
			// disabled or deleted fields keep whatever they had
			if hadOld {
				out.Values = append(out.Values, old)
			}
			continue
		}

		if !r.visibility.IsVisible(f, resolved) {
			if hadOld {
				out.Removed = append(out.Removed, f.ID)
				out.Diff[f.ID] = domain.FieldChange{Old: old.Data, OldPresent: true}
			}
			continue
		}

		rawValue, submitted := raw[f.ID]
		var value any
		switch {
		case f.IsManagerOnly && !mode.Management:
			if hadOld {
				value = old.Data
			} else {
				value = r.coercer.DefaultFor(f)
			}
		case submitted:
			v, err := r.coercer.Coerce(f, rawValue)
			if err != nil {
				return nil, err
			}
			value = v
		case hadOld:
			value = old.Data
		default:
			value = r.coercer.DefaultFor(f)
		}

		resolved[f.ID] = value
		out.Values = append(out.Values, domain.SubmissionValue{FieldID: f.ID, Data: value})
		if mode.Action == ActionModify && (!hadOld || !Equal(old.Data, value)) {
			out.Diff[f.ID] = domain.FieldChange{Old: old.Data, New: value, OldPresent: hadOld, NewPresent: true}
		}
	}

	// values of fields no longer part of the definition are kept as they are
	var orphans []string
	for id := range existing {
		if !known[id] {
			orphans = append(orphans, id)
		}
	}
	sort.Strings(orphans)
	for _, id := range orphans {
		out.Values = append(out.Values, existing[id])
	}
	return out, nil
}

// CheckRequired verifies that every applicable required field holds a value.
// Management submissions may leave required fields empty.
func (r *Resolver) CheckRequired(fields []domain.FieldDefinition, resolved *domain.ResolvedRegistration, mode Mode) error {
	if mode.Management {
		return nil
	}
	for _, f := range fields {
		if !f.IsActive() || !f.IsRequired {
			continue
		}
		v, ok := resolved.Lookup(f.ID)
		if !ok {
			// hidden by its condition
			continue
		}
		if f.IsManagerOnly {
			continue
		}
		empty := isEmpty(v.Data)
		if f.InputKind == domain.KindBool {
			empty = v.Data == nil
		}
		if empty {
			return invalid(f, "this field is required")
		}
	}
	return nil
}
