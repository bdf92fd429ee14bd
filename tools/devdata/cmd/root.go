package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mailreeve/mailreeve/internal/config"
)

var homeFlag string

var rootCmd = &cobra.Command{
	Use:   "devdata",
	Short: "Manage mailreeve dev fixtures",
	Long:  "devdata seeds expendable mailreeve fixtures, so development runs against realistic rule files instead of a hand-maintained setup. Point it at a scratch home with --home or MAILREEVE_HOME to keep your real one untouched.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&homeFlag, "home", "", "override the mailreeve home directory (default: ~/.mailreeve or $MAILREEVE_HOME)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// homeDir returns the mailreeve home being seeded.
func homeDir() string {
	if homeFlag != "" {
		return homeFlag
	}
	return config.Home()
}
