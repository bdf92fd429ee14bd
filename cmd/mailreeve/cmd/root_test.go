package cmd

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"github.com/mailreeve/mailreeve/internal/rules"
)

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"human", false},
		{"json", false},
		{"yaml", true},
		{"JSON", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			err := validateFormat(tt.format)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"single", "a", []string{"a"}},
		{"multiple", "a,b,c", []string{"a", "b", "c"}},
		{"trims whitespace", " a , b ", []string{"a", "b"}},
		{"drops empty entries", "a,,b,", []string{"a", "b"}},
		{"empty input", "", nil},
		{"only commas", ",,", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitList(tt.input)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("splitList(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

// The example printed by "rules add" must stay a valid rule as the
// schema evolves, or the help output teaches users a shape the store
// rejects.
func TestExampleRuleJSONIsValid(t *testing.T) {
	var r rules.Rule
	if err := json.Unmarshal([]byte(exampleRuleJSON), &r); err != nil {
		t.Fatalf("example rule does not parse: %v", err)
	}
	if err := r.Validate(); err != nil {
		t.Errorf("example rule does not validate: %v", err)
	}
	if !r.IsEnabled {
		t.Errorf("example rule should be enabled")
	}
}

func TestConfirmYesFlagSkipsPrompt(t *testing.T) {
	// With yes set, confirm must not touch stdin.
	if !confirm("destroy everything?", true) {
		t.Errorf("confirm(_, true) = false, want true")
	}
}

func TestCommandTree(t *testing.T) {
	wantRoot := []string{"labels", "login", "mcp", "quickstart", "rules"}
	for _, name := range wantRoot {
		if !hasSubcommand(t, rootCmd.Commands(), name) {
			t.Errorf("root command is missing %q", name)
		}
	}

	wantRules := []string{"add", "apply", "delete", "list"}
	for _, name := range wantRules {
		if !hasSubcommand(t, rulesCmd.Commands(), name) {
			t.Errorf("rules command is missing %q", name)
		}
	}
}

func hasSubcommand(t *testing.T, cmds []*cobra.Command, name string) bool {
	t.Helper()
	for _, c := range cmds {
		if c.Name() == name {
			return true
		}
	}
	return false
}
