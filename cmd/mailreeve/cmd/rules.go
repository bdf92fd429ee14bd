package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mailreeve/mailreeve/internal/output"
	"github.com/mailreeve/mailreeve/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage mailbox rules",
}

var rulesListFormat string

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(rulesListFormat); err != nil {
			return err
		}
		all, _, err := newStore().Load()
		if err != nil {
			return err
		}
		if rulesListFormat == "json" {
			if all == nil {
				all = []rules.Rule{}
			}
			return printJSON(all)
		}
		fmt.Print(output.RenderRules(all))
		return nil
	},
}

var (
	addRuleFile string
	addRuleJSON string
)

var rulesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a rule from JSON",
	Long: `Add a rule defined as JSON, either inline or from a file.

Example:
  mailreeve rules add --json '{"name": "Trash promos",
    "conditions": [{"field": "from", "operator": "contains", "value": "promo@"}],
    "actions": [{"type": "trash"}]}'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		switch {
		case addRuleFile != "" && addRuleJSON != "":
			return errors.New("pass --file or --json, not both")
		case addRuleFile != "":
			var err error
			data, err = os.ReadFile(addRuleFile)
			if err != nil {
				return fmt.Errorf("read rule file: %w", err)
			}
		case addRuleJSON != "":
			data = []byte(addRuleJSON)
		default:
			fmt.Println("Example JSON structure for a rule:")
			fmt.Println(exampleRuleJSON)
			return errors.New("pass --file or --json to define the rule")
		}

		var r rules.Rule
		if err := json.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("parse rule JSON: %w", err)
		}
		stored, err := newStore().Add(r)
		if err != nil {
			return err
		}
		fmt.Printf("Rule '%s' (ID: %s) added successfully.\n", stored.Name, stored.ID)
		return nil
	},
}

const exampleRuleJSON = `{
  "name": "Sample Rule Name",
  "description": "Optional description",
  "is_enabled": true,
  "conditions": [
    {"field": "from", "operator": "contains", "value": "newsletter@example.com"}
  ],
  "condition_conjunction": "AND",
  "actions": [{"type": "trash"}]
}`

var (
	deleteRuleKey string
	deleteRuleYes bool
)

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a rule by id or name",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !confirm(fmt.Sprintf("Are you sure you want to delete the rule '%s'?", deleteRuleKey), deleteRuleYes) {
			fmt.Println("Rule deletion aborted by user.")
			return nil
		}
		removed, err := newStore().Delete(deleteRuleKey)
		if err != nil {
			return err
		}
		fmt.Printf("Rule '%s' deleted successfully.\n", removed.Name)
		return nil
	},
}

func init() {
	rulesListCmd.Flags().StringVar(&rulesListFormat, "output-format", "human", "output format: human or json")

	rulesAddCmd.Flags().StringVar(&addRuleFile, "file", "", "path to a JSON file defining the rule")
	rulesAddCmd.Flags().StringVar(&addRuleJSON, "json", "", "the rule as inline JSON")

	rulesDeleteCmd.Flags().StringVar(&deleteRuleKey, "id", "", "id or name of the rule to delete")
	rulesDeleteCmd.Flags().BoolVarP(&deleteRuleYes, "yes", "y", false, "skip the confirmation prompt")
	_ = rulesDeleteCmd.MarkFlagRequired("id")

	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesAddCmd)
	rulesCmd.AddCommand(rulesDeleteCmd)
	rootCmd.AddCommand(rulesCmd)
}
