// Package output renders run summaries, rules and labels for humans.
// JSON output is plain encoding/json on the underlying structs and
// lives with the commands; everything styled is here.
package output

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/mailreeve/mailreeve/internal/engine"
	"github.com/mailreeve/mailreeve/internal/gmail"
	"github.com/mailreeve/mailreeve/internal/rules"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	dimStyle      = lipgloss.NewStyle().Faint(true)
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	enabledStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

const maxLabelNameWidth = 40

// RenderSummary formats one run's summary.
func RenderSummary(s *engine.RunSummary) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Rule Application Summary"))
	b.WriteByte('\n')
	if s.DryRun {
		b.WriteString(warnStyle.Render("Dry Run: Yes"))
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "Total Emails Scanned: %d\n", s.Scanned)
	fmt.Fprintf(&b, "Emails Matching Any Rule: %d\n", s.Matched)
	if s.BudgetExhausted {
		b.WriteString(warnStyle.Render("Scan limit reached; unscanned emails may also match."))
		b.WriteByte('\n')
	}

	if len(s.ActionCounts) > 0 {
		heading := "Actions taken:"
		if s.DryRun {
			heading = "Actions planned:"
		}
		b.WriteString(headerStyle.Render(heading) + "\n")
		for _, key := range s.ActionKeys() {
			fmt.Fprintf(&b, "  %s: %d email(s)\n", key, s.ActionCounts[key])
		}
	}

	if len(s.MatchedPerRule) > 0 {
		b.WriteString(headerStyle.Render("Matches per rule:") + "\n")
		ids := make([]string, 0, len(s.MatchedPerRule))
		for id := range s.MatchedPerRule {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(&b, "  %s: %d\n", id, s.MatchedPerRule[id])
		}
	}

	if len(s.Errors) > 0 {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Errors (%d):", len(s.Errors))) + "\n")
		for _, e := range s.Errors {
			b.WriteString("  " + formatRunError(e) + "\n")
		}
	}

	if s.Elapsed > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("Completed in %s.", s.Elapsed.Round(time.Millisecond))))
		b.WriteByte('\n')
	}
	return b.String()
}

func formatRunError(e engine.RunError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", e.Kind)
	if e.RuleID != "" {
		fmt.Fprintf(&b, " rule %s", e.RuleID)
	}
	if e.Action != "" {
		fmt.Fprintf(&b, " action %s", e.Action)
	}
	if n := len(e.MessageIDs); n > 0 {
		fmt.Fprintf(&b, " (%d message(s))", n)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

// RenderRules formats the rule list, one block per rule in file order.
func RenderRules(all []rules.Rule) string {
	if len(all) == 0 {
		return dimStyle.Render("No rules configured yet.") + "\n"
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Configured Rules:"))
	b.WriteByte('\n')
	for i := range all {
		r := &all[i]
		state := enabledStyle.Render("Enabled")
		if !r.IsEnabled {
			state = disabledStyle.Render("Disabled")
		}
		fmt.Fprintf(&b, "\n--- Rule %d (%s) ---\n", i+1, state)
		fmt.Fprintf(&b, " ID: %s\n", r.ID)
		fmt.Fprintf(&b, " Name: %s\n", r.Name)
		if r.Description != "" {
			fmt.Fprintf(&b, " Description: %s\n", r.Description)
		}
		conj := r.Conjunction
		if conj == "" {
			conj = rules.ConjunctionAnd
		}
		fmt.Fprintf(&b, " Condition Logic: %s\n", conj)
		b.WriteString(" Conditions:\n")
		for _, c := range r.Conditions {
			fmt.Fprintf(&b, " - Field: %s, Operator: %s, Value: '%s'\n", c.Field, c.Operator, c.Value)
		}
		b.WriteString(" Actions:\n")
		for _, a := range r.Actions {
			if a.LabelName != "" {
				fmt.Fprintf(&b, " - Type: %s, Label: %s\n", a.Type, a.LabelName)
			} else {
				fmt.Fprintf(&b, " - Type: %s\n", a.Type)
			}
		}
	}
	return b.String()
}

// RenderLabels formats an aligned table of mailbox labels, system
// labels first. Column widths are display widths, so CJK label names
// keep the table straight.
func RenderLabels(labels []*gmail.Label) string {
	if len(labels) == 0 {
		return dimStyle.Render("No labels found.") + "\n"
	}

	sorted := append([]*gmail.Label(nil), labels...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Type != sorted[j].Type {
			return sorted[i].Type == "system"
		}
		return strings.ToLower(sorted[i].Name) < strings.ToLower(sorted[j].Name)
	})

	nameWidth := runewidth.StringWidth("NAME")
	for _, l := range sorted {
		if w := runewidth.StringWidth(l.Name); w > nameWidth {
			nameWidth = w
		}
	}
	if nameWidth > maxLabelNameWidth {
		nameWidth = maxLabelNameWidth
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(pad("NAME", nameWidth)+"  "+pad("TYPE", 6)+"  ID") + "\n")
	for _, l := range sorted {
		name := runewidth.Truncate(l.Name, nameWidth, "…")
		b.WriteString(pad(name, nameWidth) + "  " + pad(l.Type, 6) + "  " + l.ID + "\n")
	}
	return b.String()
}

func pad(s string, w int) string {
	return runewidth.FillRight(s, w)
}
