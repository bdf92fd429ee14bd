package rules

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func validRule() Rule {
	return Rule{
		ID:          "rule-1",
		Name:        "archive-newsletters",
		Description: "Label and archive newsletter mail",
		IsEnabled:   true,
		Conjunction: ConjunctionAnd,
		Conditions: []Condition{
			{Field: FieldFrom, Operator: OpContains, Value: "newsletter@"},
		},
		Actions: []Action{
			{Type: ActionAddLabel, LabelName: "Newsletters"},
			{Type: ActionMarkRead},
		},
	}
}

func TestRuleValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Rule)
		wantErr string // empty means valid
	}{
		{
			name:   "Valid",
			mutate: func(r *Rule) {},
		},
		{
			name:   "EmptyConjunctionMeansAnd",
			mutate: func(r *Rule) { r.Conjunction = "" },
		},
		{
			name:    "MissingName",
			mutate:  func(r *Rule) { r.Name = "  " },
			wantErr: "name is required",
		},
		{
			name:    "NoConditions",
			mutate:  func(r *Rule) { r.Conditions = nil },
			wantErr: "at least one condition",
		},
		{
			name:    "NoActions",
			mutate:  func(r *Rule) { r.Actions = nil },
			wantErr: "at least one action",
		},
		{
			name:    "BadConjunction",
			mutate:  func(r *Rule) { r.Conjunction = "XOR" },
			wantErr: "condition_conjunction",
		},
		{
			name:    "UnknownField",
			mutate:  func(r *Rule) { r.Conditions[0].Field = "cc" },
			wantErr: "unknown field",
		},
		{
			name:    "UnknownOperator",
			mutate:  func(r *Rule) { r.Conditions[0].Operator = "regex" },
			wantErr: "unknown operator",
		},
		{
			name:    "EmptyConditionValue",
			mutate:  func(r *Rule) { r.Conditions[0].Value = "" },
			wantErr: "value is required",
		},
		{
			name: "BadDateValue",
			mutate: func(r *Rule) {
				r.Conditions[0] = Condition{Field: FieldDate, Operator: OpBefore, Value: "someday"}
			},
			wantErr: "unrecognized date",
		},
		{
			name: "DateWithRelativeValue",
			mutate: func(r *Rule) {
				r.Conditions[0] = Condition{Field: FieldDate, Operator: OpAfter, Value: "30d"}
			},
		},
		{
			name: "AddLabelWithoutName",
			mutate: func(r *Rule) {
				r.Actions = []Action{{Type: ActionAddLabel}}
			},
			wantErr: "label_name is required",
		},
		{
			name: "RemoveLabelWithBlankName",
			mutate: func(r *Rule) {
				r.Actions = []Action{{Type: ActionRemoveLabel, LabelName: "   "}}
			},
			wantErr: "label_name is required",
		},
		{
			name: "TrashWithLabelName",
			mutate: func(r *Rule) {
				r.Actions = []Action{{Type: ActionTrash, LabelName: "Junk"}}
			},
			wantErr: "label_name is not allowed",
		},
		{
			name: "UnknownActionType",
			mutate: func(r *Rule) {
				r.Actions = []Action{{Type: "archive"}}
			},
			wantErr: "unknown action type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRule()
			tt.mutate(&r)
			err := r.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Validate() error type = %T, want *ValidationError", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{RuleName: "my-rule", Reason: "no actions"}
	if got := err.Error(); !strings.Contains(got, "my-rule") {
		t.Errorf("Error() = %q, want rule name included", got)
	}

	anon := &ValidationError{Reason: "no actions"}
	if got := anon.Error(); !strings.Contains(got, "no actions") {
		t.Errorf("Error() = %q, want reason included", got)
	}
}

func TestRuleUnmarshal_EnabledByDefault(t *testing.T) {
	tests := []struct {
		name string
		json string
		want bool
	}{
		{
			name: "flag omitted",
			json: `{"name": "r", "conditions": [], "actions": []}`,
			want: true,
		},
		{
			name: "explicitly disabled",
			json: `{"name": "r", "is_enabled": false, "conditions": [], "actions": []}`,
			want: false,
		},
		{
			name: "explicitly enabled",
			json: `{"name": "r", "is_enabled": true, "conditions": [], "actions": []}`,
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Rule
			if err := json.Unmarshal([]byte(tt.json), &r); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if r.IsEnabled != tt.want {
				t.Errorf("IsEnabled = %v, want %v", r.IsEnabled, tt.want)
			}
		})
	}
}
