package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mailreeve/mailreeve/internal/fileutil"
	"github.com/mailreeve/mailreeve/tools/devdata/dataset"
)

var seedForce bool

var seedRulesCmd = &cobra.Command{
	Use:   "seed-rules",
	Short: "Write a demo rules.json into the mailreeve home",
	Long:  "Writes a demo rule set covering every condition and action shape mailreeve supports, so rules list, apply --dry-run and the MCP tools have something real to chew on. An existing rules.json is left alone unless --force is given.",
	RunE:  runSeedRules,
}

func init() {
	seedRulesCmd.Flags().BoolVar(&seedForce, "force", false, "replace an existing rules.json")
	rootCmd.AddCommand(seedRulesCmd)
}

func runSeedRules(cmd *cobra.Command, args []string) error {
	home := homeDir()
	if err := fileutil.SecureMkdirAll(home, 0700); err != nil {
		return fmt.Errorf("create %s: %w", home, err)
	}

	path := filepath.Join(home, "rules.json")
	n, err := dataset.Seed(path, seedForce)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "devdata: wrote %d rules to %s\n", n, path)
	return nil
}
