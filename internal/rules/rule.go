// Package rules defines the mailbox rule model and its JSON file store.
// A rule pairs declarative conditions with the actions to take on
// matching messages; the engine package turns rules into transport calls.
package rules

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Field names the message attribute a condition inspects.
type Field string

const (
	FieldFrom        Field = "from"
	FieldTo          Field = "to"
	FieldSubject     Field = "subject"
	FieldBodySnippet Field = "body_snippet"
	FieldLabel       Field = "label"
	FieldDate        Field = "date"
)

func (f Field) known() bool {
	switch f {
	case FieldFrom, FieldTo, FieldSubject, FieldBodySnippet, FieldLabel, FieldDate:
		return true
	}
	return false
}

// Operator compares a message field against the condition value.
type Operator string

const (
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpStartsWith  Operator = "starts_with"
	OpEndsWith    Operator = "ends_with"
	OpBefore      Operator = "before"
	OpAfter       Operator = "after"
)

func (o Operator) known() bool {
	switch o {
	case OpContains, OpNotContains, OpEquals, OpNotEquals,
		OpStartsWith, OpEndsWith, OpBefore, OpAfter:
		return true
	}
	return false
}

// Conjunction joins a rule's conditions.
type Conjunction string

const (
	ConjunctionAnd Conjunction = "AND"
	ConjunctionOr  Conjunction = "OR"
)

// ActionType identifies what a matched rule does to a message.
type ActionType string

const (
	ActionAddLabel    ActionType = "add_label"
	ActionRemoveLabel ActionType = "remove_label"
	ActionTrash       ActionType = "trash"
	ActionDelete      ActionType = "delete"
	ActionMarkRead    ActionType = "mark_read"
	ActionMarkUnread  ActionType = "mark_unread"
)

// Condition is one predicate over a message field. Immutable once loaded.
type Condition struct {
	Field    Field    `json:"field"`
	Operator Operator `json:"operator"`
	Value    string   `json:"value"`
}

// Action is one effect a matching rule requests. LabelName is set exactly
// when Type is add_label or remove_label.
type Action struct {
	Type      ActionType `json:"type"`
	LabelName string     `json:"label_name,omitempty"`
}

// Rule is a persisted mailbox rule.
type Rule struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	IsEnabled   bool        `json:"is_enabled"`
	Conditions  []Condition `json:"conditions"`
	Conjunction Conjunction `json:"condition_conjunction"`
	Actions     []Action    `json:"actions"`
}

// UnmarshalJSON decodes a rule with is_enabled defaulting to true, so a
// hand-written rule that never mentions the flag runs instead of being
// silently skipped.
func (r *Rule) UnmarshalJSON(data []byte) error {
	type plain Rule
	aux := plain{IsEnabled: true}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Rule(aux)
	return nil
}

// ValidationError reports a malformed rule. Invalid rules are excluded
// from runs and surfaced to the user, never silently matched.
type ValidationError struct {
	RuleID   string
	RuleName string
	Reason   string
}

func (e *ValidationError) Error() string {
	name := e.RuleName
	if name == "" {
		name = e.RuleID
	}
	if name == "" {
		return "invalid rule: " + e.Reason
	}
	return fmt.Sprintf("invalid rule %q: %s", name, e.Reason)
}

// Validate checks the rule against the storage schema: known enum values,
// at least one condition and one action, label_name present exactly for
// label actions, and parseable date values. An empty conjunction is
// treated as AND. Field/operator pairings the evaluator cannot decide
// are a run-time concern, not a schema one.
func (r *Rule) Validate() error {
	fail := func(format string, args ...any) error {
		return &ValidationError{
			RuleID:   r.ID,
			RuleName: r.Name,
			Reason:   fmt.Sprintf(format, args...),
		}
	}

	if strings.TrimSpace(r.Name) == "" {
		return fail("name is required")
	}
	switch r.Conjunction {
	case ConjunctionAnd, ConjunctionOr, "":
	default:
		return fail("unknown condition_conjunction %q (want AND or OR)", r.Conjunction)
	}
	if len(r.Conditions) == 0 {
		return fail("at least one condition is required")
	}
	if len(r.Actions) == 0 {
		return fail("at least one action is required")
	}

	for i, c := range r.Conditions {
		if !c.Field.known() {
			return fail("condition %d: unknown field %q", i+1, c.Field)
		}
		if !c.Operator.known() {
			return fail("condition %d: unknown operator %q", i+1, c.Operator)
		}
		if strings.TrimSpace(c.Value) == "" {
			return fail("condition %d: value is required", i+1)
		}
		if c.Field == FieldDate {
			if _, err := ParseDate(c.Value); err != nil {
				return fail("condition %d: %v", i+1, err)
			}
		}
	}

	for i, a := range r.Actions {
		switch a.Type {
		case ActionAddLabel, ActionRemoveLabel:
			if strings.TrimSpace(a.LabelName) == "" {
				return fail("action %d: label_name is required for %s", i+1, a.Type)
			}
		case ActionTrash, ActionDelete, ActionMarkRead, ActionMarkUnread:
			if a.LabelName != "" {
				return fail("action %d: label_name is not allowed for %s", i+1, a.Type)
			}
		default:
			return fail("action %d: unknown action type %q", i+1, a.Type)
		}
	}
	return nil
}
