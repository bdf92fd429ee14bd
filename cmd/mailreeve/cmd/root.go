// Package cmd wires the mailreeve CLI: configuration, logging and the
// cobra command tree.
package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/mailreeve/mailreeve/internal/config"
	"github.com/mailreeve/mailreeve/internal/gmail"
	"github.com/mailreeve/mailreeve/internal/rules"
)

var (
	cfgPath  string
	logLevel string
	plain    bool

	// cfg is loaded by the root PersistentPreRunE before any command runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "mailreeve",
	Short: "Rule-driven Gmail mailbox cleanup",
	Long: `mailreeve applies declarative rules to a Gmail mailbox: label, archive,
trash or delete mail matching the conditions you configure.

Configuration lives in ~/.mailreeve/config.toml and rules in
~/.mailreeve/rules.json by default. Run "mailreeve quickstart" for a
guided setup.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		cfg = &loaded
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		level, err := config.ParseLevel(cfg.Log.Level)
		if err != nil {
			return err
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		if plain {
			lipgloss.SetColorProfile(termenv.Ascii)
		}
		return nil
	},
}

// Execute runs the CLI. Errors are printed here, once, so RunE
// implementations just return them.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default $MAILREEVE_HOME/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&plain, "plain", false, "disable colors and interactive progress")
}

// newStore opens the configured rule file.
func newStore() *rules.Store {
	return rules.NewStore(cfg.Rules.Path).WithLogger(slog.Default())
}

// newClient builds an authenticated Gmail transport from the configured
// credential and token paths.
func newClient(ctx context.Context) (*gmail.Client, error) {
	creds, err := gmail.LoadCredentials(cfg.Gmail.Credentials)
	if err != nil {
		return nil, err
	}
	ts, err := gmail.TokenSource(ctx, creds, cfg.Gmail.Token)
	if errors.Is(err, gmail.ErrNoToken) {
		return nil, errors.New("not logged in yet, run: mailreeve login")
	}
	if err != nil {
		return nil, err
	}
	client, err := gmail.NewClient(ctx, ts)
	if err != nil {
		return nil, err
	}
	return client.
		WithLogger(slog.Default()).
		WithQPS(cfg.Gmail.QPS).
		WithDetailConcurrency(cfg.Gmail.DetailConcurrency), nil
}

// interactive reports whether stdout gets styled, animated output. The
// lipgloss profile already folds in TTY detection and --plain.
func interactive() bool {
	return lipgloss.ColorProfile() != termenv.Ascii
}

// confirm prompts for a yes/no answer on stdin unless yes is set.
// Anything but an explicit yes declines.
func confirm(prompt string, yes bool) bool {
	if yes {
		return true
	}
	fmt.Printf("%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func validateFormat(format string) error {
	if format != "human" && format != "json" {
		return fmt.Errorf("invalid output format %q: must be human or json", format)
	}
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// splitList splits a comma-separated flag value, trimming whitespace and
// dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
