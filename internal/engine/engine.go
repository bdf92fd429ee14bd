package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mailreeve/mailreeve/internal/gmail"
	"github.com/mailreeve/mailreeve/internal/rules"
)

// Detail fetch formats. Metadata is the default: headers plus the
// server snippet, one cheap call per batch. Raw downloads full MIME and
// matches snippet conditions against real body text.
const (
	DetailFormatMetadata = "metadata"
	DetailFormatRaw      = "raw"
)

// Options configure one run.
type Options struct {
	// RuleKeys optionally narrows the run to the rules with these ids or
	// names. Empty means all rules.
	RuleKeys []string

	// Query is a server search expression ANDed into every rule's scan.
	Query string

	// DateAfter and DateBefore bound the scan by receive date. Zero
	// values mean unbounded.
	DateAfter  time.Time
	DateBefore time.Time

	// ScanLimit caps candidates fetched across all rules combined.
	// Zero means unbounded.
	ScanLimit int

	// DryRun plans and reports without mutating anything.
	DryRun bool

	// PageSize caps each list call. Zero picks the default.
	PageSize int

	// DetailFormat selects how details are fetched for rules that need
	// client-side confirmation. Empty means metadata.
	DetailFormat string
}

// Engine applies mailbox rules over a transport.
type Engine struct {
	api      gmail.API
	resolver *gmail.Resolver
	logger   *slog.Logger
	progress Progress
	maxBatch int
}

// New creates an engine on the given transport.
func New(api gmail.API) *Engine {
	return &Engine{
		api:      api,
		resolver: gmail.NewResolver(api),
		logger:   slog.Default(),
		progress: NullProgress{},
		maxBatch: gmail.MaxBatchSize,
	}
}

// WithLogger sets the logger and returns the engine for chaining.
func (e *Engine) WithLogger(logger *slog.Logger) *Engine {
	e.logger = logger
	return e
}

// WithProgress sets the progress sink and returns the engine for chaining.
func (e *Engine) WithProgress(p Progress) *Engine {
	e.progress = p
	return e
}

// WithMaxBatch overrides the mutation chunk size, mainly for tests.
func (e *Engine) WithMaxBatch(n int) *Engine {
	e.maxBatch = n
	return e
}

// Run applies the enabled rules among all, in the order given, and
// returns the summary. Invalid rules and rules with undecidable
// conditions are excluded and reported; fetch and execution failures
// are isolated per rule or per chunk. Only authentication failures and
// context cancellation abort the run, and an aborted run returns no
// summary because partial numbers would be misleading.
func (e *Engine) Run(ctx context.Context, all []rules.Rule, opts Options) (*RunSummary, error) {
	summary := newRunSummary(opts.DryRun)

	selected, err := rules.Filter(all, opts.RuleKeys)
	if err != nil {
		return nil, err
	}

	plans := make([]MatchPlan, 0, len(selected))
	for i := range selected {
		r := &selected[i]
		if !r.IsEnabled {
			e.logger.Debug("skipping disabled rule", "rule", r.Name)
			continue
		}
		if err := r.Validate(); err != nil {
			summary.recordError(RunError{Kind: ErrorRuleValidation, RuleID: r.ID, Message: err.Error()})
			e.logger.Warn("excluding invalid rule", "rule", r.Name, "error", err)
			continue
		}
		if err := rules.Supported(r); err != nil {
			summary.recordError(RunError{Kind: ErrorUnsupportedCondition, RuleID: r.ID, Message: err.Error()})
			e.logger.Warn("skipping rule with unsupported condition", "rule", r.Name, "error", err)
			continue
		}
		plans = append(plans, Plan(r))
	}
	summary.State = StatePlanned
	e.logger.Info("run planned",
		"rules", len(plans),
		"dry_run", opts.DryRun,
		"scan_limit", opts.ScanLimit)

	budget := NewScanBudget(opts.ScanLimit)
	fetcher := NewFetcher(e.api, budget, opts.PageSize).WithLogger(e.logger)
	cache := newDetailCache()

	e.progress.OnScanStart(len(plans))

	var matches []Match
	for i := range plans {
		plan := &plans[i]
		if err := ctx.Err(); err != nil {
			return e.abort(summary, err)
		}

		query := composeQuery(opts.Query, opts.DateAfter, opts.DateBefore, plan.Query)
		cands, exhausted, err := fetcher.Fetch(ctx, query)
		if exhausted {
			summary.BudgetExhausted = true
		}
		if err != nil {
			if gmail.IsAuthError(err) || ctx.Err() != nil {
				return e.abort(summary, err)
			}
			// Keep whatever pages arrived before the failure.
			summary.recordError(RunError{Kind: ErrorCandidateFetch, RuleID: plan.Rule.ID, Message: err.Error()})
			e.logger.Warn("candidate fetch failed", "rule", plan.Rule.Name, "error", err)
		}
		summary.Scanned += len(cands)

		var matched int
		if !plan.NeedsDetail {
			// The query is exactly equivalent to the rule; trust the
			// server's result set.
			for _, c := range cands {
				matches = append(matches, Match{Rule: plan.Rule, MessageID: c.ID})
			}
			matched = len(cands)
		} else {
			confirmed, err := e.confirm(ctx, plan.Rule, cands, cache, opts.DetailFormat, summary)
			if err != nil {
				return e.abort(summary, err)
			}
			for _, id := range confirmed {
				matches = append(matches, Match{Rule: plan.Rule, MessageID: id})
			}
			matched = len(confirmed)
		}
		summary.MatchedPerRule[plan.Rule.ID] = matched
		e.progress.OnRuleScanned(plan.Rule, len(cands), matched)
	}
	summary.State = StateFetched

	pending := Aggregate(matches)
	summary.Matched = pending.Len()
	summary.State = StateAggregated
	e.logger.Info("actions aggregated", "messages", pending.Len())

	executor := NewExecutor(e.api, e.resolver).
		WithMaxBatch(e.maxBatch).
		WithLogger(e.logger).
		WithProgress(e.progress)
	if err := executor.Execute(ctx, pending, opts.DryRun, summary); err != nil {
		return e.abort(summary, err)
	}

	if opts.DryRun {
		summary.State = StateDryReported
	} else {
		summary.State = StateExecuted
	}
	summary.Elapsed = time.Since(summary.StartedAt)
	e.progress.OnComplete(summary)
	e.logger.Info("run complete",
		"state", summary.State,
		"scanned", summary.Scanned,
		"matched", summary.Matched,
		"actions", summary.TotalActions(),
		"errors", len(summary.Errors))
	return summary, nil
}

func (e *Engine) abort(summary *RunSummary, err error) (*RunSummary, error) {
	summary.State = StateAborted
	e.logger.Error("run aborted", "error", err)
	return nil, fmt.Errorf("run aborted: %w", err)
}

// confirm fetches details for the candidates and keeps the ones the
// rule actually matches. A message whose details cannot be fetched is
// skipped with a recorded error rather than acted on unverified.
func (e *Engine) confirm(ctx context.Context, r *rules.Rule, cands []Candidate, cache *detailCache, format string, summary *RunSummary) ([]string, error) {
	missing := make([]string, 0, len(cands))
	for _, c := range cands {
		if _, ok := cache.messages[c.ID]; !ok && !cache.failed[c.ID] {
			missing = append(missing, c.ID)
		}
	}
	if len(missing) > 0 {
		var err error
		if format == DetailFormatRaw {
			err = e.fetchRawDetails(ctx, missing, cache, summary, r.ID)
		} else {
			err = e.fetchMetaDetails(ctx, missing, cache, summary, r.ID)
		}
		if err != nil {
			return nil, err
		}
	}

	var confirmed []string
	for _, c := range cands {
		msg, ok := cache.messages[c.ID]
		if !ok {
			continue
		}
		match, err := rules.EvaluateRule(r, msg)
		if err != nil {
			// Planning pre-checks conditions, so this means a pairing
			// turned out undecidable anyway. Drop the rule, keep the run.
			summary.recordError(RunError{Kind: ErrorUnsupportedCondition, RuleID: r.ID, Message: err.Error()})
			e.logger.Warn("rule dropped mid-scan", "rule", r.Name, "error", err)
			return nil, nil
		}
		if match {
			confirmed = append(confirmed, c.ID)
		}
	}
	return confirmed, nil
}

func (e *Engine) fetchMetaDetails(ctx context.Context, ids []string, cache *detailCache, summary *RunSummary, ruleID string) error {
	results, err := e.api.GetMetadataBatch(ctx, ids)
	if err != nil {
		return err
	}
	for i, res := range results {
		id := ids[i]
		if res.Err != nil {
			cache.failed[id] = true
			if gmail.IsNotFound(res.Err) {
				// Deleted between list and fetch; normal mailbox churn.
				e.logger.Debug("message vanished before detail fetch", "id", id)
				continue
			}
			summary.recordError(RunError{
				Kind:       ErrorDetailFetch,
				RuleID:     ruleID,
				MessageIDs: []string{id},
				Message:    res.Err.Error(),
			})
			continue
		}
		labels := e.resolver.Names(ctx, res.Meta.LabelIDs)
		cache.messages[id] = metaToMessage(res.Meta, labels)
	}
	return nil
}

func (e *Engine) fetchRawDetails(ctx context.Context, ids []string, cache *detailCache, summary *RunSummary, ruleID string) error {
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw, err := e.api.GetMessageRaw(ctx, id)
		if err != nil {
			if gmail.IsAuthError(err) {
				return err
			}
			cache.failed[id] = true
			if gmail.IsNotFound(err) {
				e.logger.Debug("message vanished before detail fetch", "id", id)
				continue
			}
			summary.recordError(RunError{
				Kind:       ErrorDetailFetch,
				RuleID:     ruleID,
				MessageIDs: []string{id},
				Message:    err.Error(),
			})
			continue
		}
		labels := e.resolver.Names(ctx, raw.LabelIDs)
		msg, perr := rawToMessage(raw, labels)
		if perr != nil {
			cache.failed[id] = true
			summary.recordError(RunError{
				Kind:       ErrorDetailFetch,
				RuleID:     ruleID,
				MessageIDs: []string{id},
				Message:    perr.Error(),
			})
			continue
		}
		cache.messages[id] = msg
	}
	return nil
}
