package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mailreeve/mailreeve/internal/engine"
	"github.com/mailreeve/mailreeve/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve rule tools to MCP clients over stdio",
	Long: `Serve mailreeve's rule tools to MCP clients over stdio.

An assistant connected to this server can list, add and delete rules,
list labels, and apply rules. Apply defaults to a dry run; the client
must pass dry_run=false to modify the mailbox.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client, err := newClient(ctx)
		if err != nil {
			return err
		}
		defer client.Close()

		eng := engine.New(client).
			WithLogger(slog.Default()).
			WithMaxBatch(cfg.Gmail.MaxBatch)

		return mcp.Serve(ctx, newStore(), client, eng)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
