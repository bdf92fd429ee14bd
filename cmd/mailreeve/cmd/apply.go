package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mailreeve/mailreeve/internal/engine"
	"github.com/mailreeve/mailreeve/internal/output"
	"github.com/mailreeve/mailreeve/internal/rules"
	"github.com/mailreeve/mailreeve/internal/tui"
)

var (
	applyQuery      string
	applyRuleIDs    string
	applyScanLimit  int
	applyDateAfter  string
	applyDateBefore string
	applyDryRun     bool
	applyYes        bool
	applyFormat     string
)

var rulesApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply rules to the mailbox",
	Long: `Apply the configured rules to the mailbox, in rule file order.

Each rule's conditions are pushed into a server-side search where Gmail
syntax can express them; the rest are confirmed client-side. Matched
messages get every action their matching rules request, merged so each
message is modified at most a handful of times.

With --dry-run nothing is modified and the summary reports what would
have happened. Without it, a confirmation prompt guards the run unless
--yes is passed.`,
	RunE: runApply,
}

func init() {
	rulesApplyCmd.Flags().StringVarP(&applyQuery, "query", "q", "", "Gmail search expression ANDed into every rule's scan")
	rulesApplyCmd.Flags().StringVar(&applyRuleIDs, "rule-ids", "", "comma-separated rule ids or names to run (default all)")
	rulesApplyCmd.Flags().IntVar(&applyScanLimit, "scan-limit", 0, "max candidates fetched across all rules combined (0 = unbounded)")
	rulesApplyCmd.Flags().StringVar(&applyDateAfter, "date-after", "", "only messages after this date (2024-05-01 or a relative age like 7d)")
	rulesApplyCmd.Flags().StringVar(&applyDateBefore, "date-before", "", "only messages before this date")
	rulesApplyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "report what would happen without modifying anything")
	rulesApplyCmd.Flags().BoolVarP(&applyYes, "yes", "y", false, "skip the confirmation prompt")
	rulesApplyCmd.Flags().StringVar(&applyFormat, "output-format", "human", "output format: human or json")
	rulesCmd.AddCommand(rulesApplyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	if err := validateFormat(applyFormat); err != nil {
		return err
	}

	opts := engine.Options{
		Query:        applyQuery,
		ScanLimit:    applyScanLimit,
		DryRun:       applyDryRun,
		PageSize:     cfg.Gmail.PageSize,
		DetailFormat: cfg.Gmail.DetailFormat,
	}
	if applyRuleIDs != "" {
		opts.RuleKeys = splitList(applyRuleIDs)
	}
	if applyDateAfter != "" {
		t, err := rules.ParseDate(applyDateAfter)
		if err != nil {
			return fmt.Errorf("--date-after: %w", err)
		}
		opts.DateAfter = t
	}
	if applyDateBefore != "" {
		t, err := rules.ParseDate(applyDateBefore)
		if err != nil {
			return fmt.Errorf("--date-before: %w", err)
		}
		opts.DateBefore = t
	}

	if !applyDryRun && !confirm("Are you sure you want to apply rules and potentially modify emails?", applyYes) {
		fmt.Println("Action aborted by user.")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	all, _, err := newStore().Load()
	if err != nil {
		return err
	}

	client, err := newClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	eng := engine.New(client).
		WithLogger(slog.Default()).
		WithMaxBatch(cfg.Gmail.MaxBatch)

	var summary *engine.RunSummary
	if applyFormat == "human" && interactive() {
		summary, err = runWithView(ctx, eng, all, opts)
	} else {
		eng.WithProgress(logProgress{})
		summary, err = eng.Run(ctx, all, opts)
	}
	if err != nil {
		return err
	}

	if applyFormat == "json" {
		return printJSON(summary)
	}
	fmt.Print(output.RenderSummary(summary))
	return nil
}

// runWithView runs the engine behind the live progress display. The view
// owns the terminal until the run finishes or the user interrupts it.
func runWithView(ctx context.Context, eng *engine.Engine, all []rules.Rule, opts engine.Options) (*engine.RunSummary, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	view := tui.NewRunView(opts.RuleKeys, cancel)
	eng.WithProgress(view)

	var (
		summary *engine.RunSummary
		runErr  error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		summary, runErr = eng.Run(runCtx, all, opts)
		view.Finish()
	}()

	if err := view.Run(); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("progress display: %w", err)
	}
	<-done
	return summary, runErr
}

// logProgress narrates run milestones through slog for non-interactive
// sessions.
type logProgress struct{}

func (logProgress) OnScanStart(ruleCount int) {
	slog.Info("scanning rules", "rules", ruleCount)
}

func (logProgress) OnRuleScanned(rule *rules.Rule, scanned, matched int) {
	slog.Info("rule scanned", "rule", rule.Name, "scanned", scanned, "matched", matched)
}

func (logProgress) OnExecuteStart(total int) {
	slog.Info("applying actions", "total", total)
}

func (logProgress) OnProgress(processed, succeeded, failed int) {
	slog.Info("progress", "processed", processed, "succeeded", succeeded, "failed", failed)
}

func (logProgress) OnComplete(*engine.RunSummary) {}
