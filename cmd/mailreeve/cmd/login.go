package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mailreeve/mailreeve/internal/fileutil"
	"github.com/mailreeve/mailreeve/internal/gmail"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize mailreeve against the Gmail account",
	Long: `Run the OAuth browser flow and cache the token.

Needs the OAuth client secret file from the Google Cloud console at the
configured credentials path (default ~/.mailreeve/credentials.json).
The quickstart command walks through getting one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		creds, err := gmail.LoadCredentials(cfg.Gmail.Credentials)
		if err != nil {
			return err
		}
		if err := fileutil.SecureMkdirAll(filepath.Dir(cfg.Gmail.Token), 0700); err != nil {
			return fmt.Errorf("create token directory: %w", err)
		}
		if err := gmail.Login(ctx, creds, cfg.Gmail.Token, os.Stdout); err != nil {
			return err
		}
		fmt.Printf("Logged in. Token saved to %s.\n", cfg.Gmail.Token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
