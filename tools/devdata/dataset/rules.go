// Package dataset builds expendable mailreeve fixtures for development.
package dataset

import (
	"fmt"
	"os"

	"github.com/mailreeve/mailreeve/internal/rules"
)

// DemoRules returns a rule set exercising every shape the engine
// handles: fully server-translatable rules, conditions needing
// client-side confirmation, OR conjunctions, every action type, and a
// disabled rule. Destructive actions ship disabled or behind long date
// windows so a careless live run against a real mailbox stays cheap.
func DemoRules() []rules.Rule {
	return []rules.Rule{
		{
			Name:        "Newsletter cleanup",
			Description: "Trash promotional mail older than a week",
			IsEnabled:   true,
			Conditions: []rules.Condition{
				{Field: rules.FieldFrom, Operator: rules.OpContains, Value: "newsletter@"},
				{Field: rules.FieldDate, Operator: rules.OpBefore, Value: "7d"},
			},
			Conjunction: rules.ConjunctionAnd,
			Actions:     []rules.Action{{Type: rules.ActionTrash}},
		},
		{
			Name:        "Receipt filing",
			Description: "Label purchase mail and clear it from unread",
			IsEnabled:   true,
			Conditions: []rules.Condition{
				{Field: rules.FieldSubject, Operator: rules.OpContains, Value: "receipt"},
				{Field: rules.FieldSubject, Operator: rules.OpContains, Value: "invoice"},
			},
			Conjunction: rules.ConjunctionOr,
			Actions: []rules.Action{
				{Type: rules.ActionAddLabel, LabelName: "Receipts"},
				{Type: rules.ActionMarkRead},
			},
		},
		{
			Name:        "Archive stale promos",
			Description: "Promotions older than a month leave the inbox",
			IsEnabled:   true,
			Conditions: []rules.Condition{
				{Field: rules.FieldLabel, Operator: rules.OpEquals, Value: "Promotions"},
				{Field: rules.FieldDate, Operator: rules.OpBefore, Value: "1m"},
			},
			Conjunction: rules.ConjunctionAnd,
			Actions: []rules.Action{
				{Type: rules.ActionRemoveLabel, LabelName: "INBOX"},
				{Type: rules.ActionMarkRead},
			},
		},
		{
			Name:        "Mute green builds",
			Description: "CI mail is read on arrival unless something failed",
			IsEnabled:   true,
			Conditions: []rules.Condition{
				{Field: rules.FieldFrom, Operator: rules.OpStartsWith, Value: "builds@"},
				{Field: rules.FieldSubject, Operator: rules.OpNotContains, Value: "failed"},
			},
			Conjunction: rules.ConjunctionAnd,
			Actions:     []rules.Action{{Type: rules.ActionMarkRead}},
		},
		{
			Name:        "Expired cart reminders",
			Description: "Abandoned-cart nags older than two weeks",
			IsEnabled:   true,
			Conditions: []rules.Condition{
				{Field: rules.FieldBodySnippet, Operator: rules.OpContains, Value: "your cart"},
				{Field: rules.FieldDate, Operator: rules.OpBefore, Value: "2w"},
			},
			Conjunction: rules.ConjunctionAnd,
			Actions:     []rules.Action{{Type: rules.ActionTrash}},
		},
		{
			Name:        "Purge ancient bounces",
			Description: "Permanently delete year-old delivery failures. Disabled: enable deliberately, delete skips the trash.",
			IsEnabled:   false,
			Conditions: []rules.Condition{
				{Field: rules.FieldFrom, Operator: rules.OpEquals, Value: "mailer-daemon@googlemail.com"},
				{Field: rules.FieldDate, Operator: rules.OpBefore, Value: "1y"},
			},
			Conjunction: rules.ConjunctionAnd,
			Actions:     []rules.Action{{Type: rules.ActionDelete}},
		},
	}
}

// Seed writes the demo rules to path through the real store, so every
// rule is validated and given an id exactly as user-added rules are.
// An existing file is an error unless overwrite is set.
func Seed(path string, overwrite bool) (int, error) {
	if _, err := os.Stat(path); err == nil && !overwrite {
		return 0, fmt.Errorf("%s already exists (use --force to replace it)", path)
	}
	if overwrite {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return 0, fmt.Errorf("remove %s: %w", path, err)
		}
	}

	store := rules.NewStore(path)
	demo := DemoRules()
	for _, r := range demo {
		if _, err := store.Add(r); err != nil {
			return 0, fmt.Errorf("seed rule %q: %w", r.Name, err)
		}
	}
	return len(demo), nil
}
