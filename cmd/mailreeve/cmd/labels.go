package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mailreeve/mailreeve/internal/gmail"
	"github.com/mailreeve/mailreeve/internal/output"
)

var labelsFormat string

var labelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "List mailbox labels",
	Long: `List the labels in the mailbox, system labels first.

Rule actions name labels by display name; this shows what those names
resolve to.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(labelsFormat); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client, err := newClient(ctx)
		if err != nil {
			return err
		}
		defer client.Close()

		labels, err := client.ListLabels(ctx)
		if err != nil {
			return err
		}

		if labelsFormat == "json" {
			if labels == nil {
				labels = []*gmail.Label{}
			}
			return printJSON(labels)
		}
		fmt.Print(output.RenderLabels(labels))
		return nil
	},
}

func init() {
	labelsCmd.Flags().StringVar(&labelsFormat, "output-format", "human", "output format: human or json")
	rootCmd.AddCommand(labelsCmd)
}
