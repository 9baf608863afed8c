package regform

import (
	"fmt"

	"github.com/ignite/conference-hub/internal/domain"
)

// VisibilityEvaluator decides whether a conditional field applies to the
// current submission.
type VisibilityEvaluator struct{}

// IsVisible reports whether field is visible given the values resolved so far
// in the current pass. A field whose condition references a field with no
// resolved value is hidden.
func (VisibilityEvaluator) IsVisible(field domain.FieldDefinition, resolved map[string]any) bool {
	if !field.IsConditional() {
		return true
	}
	value, ok := resolved[field.ShowIfFieldID]
	if !ok || value == nil {
		return false
	}
	return matchesAny(value, field.ShowIfFieldValues)
}

func matchesAny(value any, allowed []any) bool {
	if choices, ok := choiceKeys(value); ok {
		for _, id := range choices {
			for _, want := range allowed {
				if fmt.Sprint(want) == id {
					return true
				}
			}
		}
		return false
	}
	for _, want := range allowed {
		if Equal(value, want) {
			return true
		}
	}
	return false
}

// choiceKeys returns the selected choice ids of a choice mapping.
func choiceKeys(value any) ([]string, bool) {
	m, ok := normalize(value).(map[string]float64)
	if !ok {
		return nil, false
	}
	ids := make([]string, 0, len(m))
	for id, qty := range m {
		if qty > 0 {
			ids = append(ids, id)
		}
	}
	return ids, true
}
