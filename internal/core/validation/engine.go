// Package validation evaluates declarative per-field rules against request
// values. Rules are plain values; an Engine runs every rule and collects all
// violations in registration order instead of stopping at the first one.
package validation

import "github.com/99minutos/user-registry/internal/core/domain"

// Rule checks one field of a subject of type T.
type Rule[T any] struct {
	Field   string
	Message string
	Valid   func(T) bool
}

// Engine holds an ordered, immutable rule set for one input type.
type Engine[T any] struct {
	rules []Rule[T]
}

func NewEngine[T any](rules ...Rule[T]) *Engine[T] {
	return &Engine[T]{rules: append([]Rule[T](nil), rules...)}
}

// With returns a new Engine with extra rules appended after the existing ones.
func (e *Engine[T]) With(rules ...Rule[T]) *Engine[T] {
	merged := make([]Rule[T], 0, len(e.rules)+len(rules))
	merged = append(merged, e.rules...)
	merged = append(merged, rules...)
	return &Engine[T]{rules: merged}
}

// Validate runs every rule against subject. The result is empty, never nil,
// when subject is valid.
func (e *Engine[T]) Validate(subject T) []domain.Violation {
	violations := []domain.Violation{}
	for _, r := range e.rules {
		if !r.Valid(subject) {
			violations = append(violations, domain.Violation{Field: r.Field, Message: r.Message})
		}
	}
	return violations
}

// Len reports how many rules the engine evaluates.
func (e *Engine[T]) Len() int { return len(e.rules) }

// Field binds constraints on a single string field of T into rules, keeping
// the constraint order.
func Field[T any](name string, get func(T) string, constraints ...Constraint) []Rule[T] {
	rules := make([]Rule[T], 0, len(constraints))
	for _, c := range constraints {
		valid := c.Valid
		rules = append(rules, Rule[T]{
			Field:   name,
			Message: c.Message,
			Valid:   func(subject T) bool { return valid(get(subject)) },
		})
	}
	return rules
}
