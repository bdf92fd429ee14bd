package rules

import (
	"fmt"
	"strings"
	"time"
)

// Message is the normalized projection a rule is evaluated against.
// Built once per fetched message, never mutated.
type Message struct {
	ID          string
	From        string
	To          string
	Subject     string
	BodySnippet string
	Labels      []string
	ReceivedAt  time.Time
}

// HasLabel reports label membership by case-insensitive name.
func (m *Message) HasLabel(name string) bool {
	for _, l := range m.Labels {
		if strings.EqualFold(l, name) {
			return true
		}
	}
	return false
}

// UnsupportedConditionError reports a field/operator pairing the evaluator
// cannot decide. The engine skips the whole rule and records why, rather
// than guessing a match result.
type UnsupportedConditionError struct {
	Field    Field
	Operator Operator
}

func (e *UnsupportedConditionError) Error() string {
	return fmt.Sprintf("unsupported condition: field %q with operator %q", e.Field, e.Operator)
}

// Evaluate reports whether the message satisfies one condition. All string
// comparisons are case-insensitive. Label conditions test set membership.
// No side effects, no I/O.
func Evaluate(cond Condition, msg *Message) (bool, error) {
	switch cond.Field {
	case FieldFrom:
		return evalString(cond, msg.From)
	case FieldTo:
		return evalString(cond, msg.To)
	case FieldSubject:
		return evalString(cond, msg.Subject)
	case FieldBodySnippet:
		return evalString(cond, msg.BodySnippet)
	case FieldLabel:
		switch cond.Operator {
		case OpContains, OpEquals:
			return msg.HasLabel(cond.Value), nil
		case OpNotContains, OpNotEquals:
			return !msg.HasLabel(cond.Value), nil
		}
	case FieldDate:
		when, err := ParseDate(cond.Value)
		if err != nil {
			return false, err
		}
		switch cond.Operator {
		case OpBefore:
			return msg.ReceivedAt.Before(when), nil
		case OpAfter:
			return msg.ReceivedAt.After(when), nil
		}
	}
	return false, &UnsupportedConditionError{Field: cond.Field, Operator: cond.Operator}
}

func evalString(cond Condition, field string) (bool, error) {
	f := strings.ToLower(field)
	v := strings.ToLower(cond.Value)
	switch cond.Operator {
	case OpContains:
		return strings.Contains(f, v), nil
	case OpNotContains:
		return !strings.Contains(f, v), nil
	case OpEquals:
		return f == v, nil
	case OpNotEquals:
		return f != v, nil
	case OpStartsWith:
		return strings.HasPrefix(f, v), nil
	case OpEndsWith:
		return strings.HasSuffix(f, v), nil
	}
	return false, &UnsupportedConditionError{Field: cond.Field, Operator: cond.Operator}
}

// EvaluateRule reports whether the message satisfies the rule under its
// conjunction. AND short-circuits on the first false condition, OR on the
// first true one. Callers filter out disabled rules; this function does
// not consult IsEnabled.
func EvaluateRule(r *Rule, msg *Message) (bool, error) {
	if len(r.Conditions) == 0 {
		return false, nil
	}
	or := r.Conjunction == ConjunctionOr
	for _, cond := range r.Conditions {
		ok, err := Evaluate(cond, msg)
		if err != nil {
			return false, err
		}
		if or && ok {
			return true, nil
		}
		if !or && !ok {
			return false, nil
		}
	}
	return !or, nil
}

// Supported reports whether every condition of the rule is decidable by
// the evaluator. The run loop calls this before planning so that a rule
// with an undecidable condition is skipped up front, not after a partial
// evaluation that short-circuiting might otherwise hide.
func Supported(r *Rule) error {
	var probe Message
	for _, cond := range r.Conditions {
		if _, err := Evaluate(cond, &probe); err != nil {
			return err
		}
	}
	return nil
}
