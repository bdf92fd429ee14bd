package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mailreeve/mailreeve/internal/gmail"
)

// Action keys as they appear in summaries and error reports. Label
// actions carry the label name, e.g. "add_label:Receipts".
const (
	actionMarkRead   = "mark_read"
	actionMarkUnread = "mark_unread"
	actionTrash      = "trash"
	actionDelete     = "delete"

	actionAddPrefix    = "add_label:"
	actionRemovePrefix = "remove_label:"
)

// actionRank orders dispatch: label and read-state changes run first,
// then trash, then permanent deletion last so nothing tries to modify a
// message that is already gone.
func actionRank(key string) int {
	switch {
	case strings.HasPrefix(key, actionAddPrefix):
		return 0
	case strings.HasPrefix(key, actionRemovePrefix):
		return 1
	case key == actionMarkRead:
		return 2
	case key == actionMarkUnread:
		return 3
	case key == actionTrash:
		return 4
	case key == actionDelete:
		return 5
	}
	return 6
}

// bucket groups the messages that need one identical mutation.
type bucket struct {
	key       string
	labelName string // set for add_label/remove_label buckets until resolved
	isAdd     bool
	add       []string // label ids to add
	remove    []string // label ids to remove
	del       bool     // permanent delete instead of a label change
	ids       []string // message ids in plan order
}

// Executor turns a pending action plan into batched transport calls.
type Executor struct {
	api      gmail.API
	resolver *gmail.Resolver
	maxBatch int
	logger   *slog.Logger
	progress Progress
}

// NewExecutor returns an executor with the transport's maximum batch
// size.
func NewExecutor(api gmail.API, resolver *gmail.Resolver) *Executor {
	return &Executor{
		api:      api,
		resolver: resolver,
		maxBatch: gmail.MaxBatchSize,
		logger:   slog.Default(),
		progress: NullProgress{},
	}
}

// WithMaxBatch overrides the chunk size, mainly for tests. Values out
// of range are clamped.
func (e *Executor) WithMaxBatch(n int) *Executor {
	if n < 1 {
		n = 1
	}
	if n > gmail.MaxBatchSize {
		n = gmail.MaxBatchSize
	}
	e.maxBatch = n
	return e
}

// WithLogger sets the logger and returns the executor for chaining.
func (e *Executor) WithLogger(logger *slog.Logger) *Executor {
	e.logger = logger
	return e
}

// WithProgress sets the progress sink and returns the executor for chaining.
func (e *Executor) WithProgress(p Progress) *Executor {
	e.progress = p
	return e
}

// Execute applies the pending plan, recording counts and failures in
// summary. With dryRun set no mutation is issued but the counts come
// out identical to a live run against the same plan. A chunk failure is
// recorded and the remaining chunks still run; only authentication
// failures and context cancellation abort.
func (e *Executor) Execute(ctx context.Context, pending *PendingActions, dryRun bool, summary *RunSummary) error {
	buckets := e.buildBuckets(ctx, pending, summary)

	total := 0
	for _, b := range buckets {
		total += len(b.ids)
	}
	e.progress.OnExecuteStart(total)

	processed, succeeded, failed := 0, 0, 0
	for _, b := range buckets {
		for start := 0; start < len(b.ids); start += e.maxBatch {
			end := min(start+e.maxBatch, len(b.ids))
			chunk := b.ids[start:end]

			if dryRun {
				summary.addActions(b.key, len(chunk))
				processed += len(chunk)
				succeeded += len(chunk)
				e.progress.OnProgress(processed, succeeded, failed)
				continue
			}

			ok, err := e.applyChunk(ctx, b, chunk, summary)
			processed += len(chunk)
			succeeded += ok
			failed += len(chunk) - ok
			e.progress.OnProgress(processed, succeeded, failed)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// buildBuckets groups the plan by identical mutation and resolves label
// names to ids. A label that fails to resolve drops its whole bucket
// with a recorded error; the other buckets still run.
func (e *Executor) buildBuckets(ctx context.Context, pending *PendingActions, summary *RunSummary) []*bucket {
	byKey := make(map[string]*bucket)
	get := func(key string) *bucket {
		b, ok := byKey[key]
		if !ok {
			b = &bucket{key: key}
			byKey[key] = b
		}
		return b
	}

	for _, ma := range pending.Messages() {
		for _, name := range ma.AddLabels {
			b := get(actionAddPrefix + name)
			b.labelName = name
			b.isAdd = true
			b.ids = append(b.ids, ma.MessageID)
		}
		for _, name := range ma.RemoveLabels {
			b := get(actionRemovePrefix + name)
			b.labelName = name
			b.ids = append(b.ids, ma.MessageID)
		}
		if ma.MarkRead {
			b := get(actionMarkRead)
			b.remove = []string{gmail.LabelUnread}
			b.ids = append(b.ids, ma.MessageID)
		}
		if ma.MarkUnread {
			b := get(actionMarkUnread)
			b.add = []string{gmail.LabelUnread}
			b.ids = append(b.ids, ma.MessageID)
		}
		if ma.Trash {
			b := get(actionTrash)
			b.add = []string{gmail.LabelTrash}
			b.remove = []string{gmail.LabelInbox, gmail.LabelUnread}
			b.ids = append(b.ids, ma.MessageID)
		}
		if ma.Delete {
			b := get(actionDelete)
			b.del = true
			b.ids = append(b.ids, ma.MessageID)
		}
	}

	buckets := make([]*bucket, 0, len(byKey))
	for _, b := range byKey {
		if b.labelName != "" {
			id, err := e.resolver.ID(ctx, b.labelName)
			if err != nil {
				summary.recordError(RunError{
					Kind:       ErrorLabelResolution,
					Action:     b.key,
					MessageIDs: b.ids,
					Message:    err.Error(),
				})
				e.logger.Warn("label resolution failed", "label", b.labelName, "messages", len(b.ids))
				continue
			}
			if b.isAdd {
				b.add = []string{id}
			} else {
				b.remove = []string{id}
			}
		}
		buckets = append(buckets, b)
	}

	sort.Slice(buckets, func(i, j int) bool {
		ri, rj := actionRank(buckets[i].key), actionRank(buckets[j].key)
		if ri != rj {
			return ri < rj
		}
		return buckets[i].key < buckets[j].key
	})
	return buckets
}

// applyChunk issues one batch call, falling back to per-message calls
// when the batch fails so one poisoned id cannot sink the whole chunk.
// It returns how many messages succeeded.
func (e *Executor) applyChunk(ctx context.Context, b *bucket, chunk []string, summary *RunSummary) (int, error) {
	var err error
	if b.del {
		err = e.api.BatchDeleteMessages(ctx, chunk)
	} else {
		err = e.api.BatchModifyMessages(ctx, chunk, b.add, b.remove)
	}
	if err == nil {
		summary.addActions(b.key, len(chunk))
		return len(chunk), nil
	}
	if gmail.IsAuthError(err) {
		return 0, err
	}

	e.logger.Warn("batch call failed, retrying messages individually",
		"action", b.key, "size", len(chunk), "error", err)

	succeeded := 0
	var failedIDs []string
	var lastErr error
	for _, id := range chunk {
		if cerr := ctx.Err(); cerr != nil {
			summary.addActions(b.key, succeeded)
			return succeeded, cerr
		}
		var ierr error
		if b.del {
			ierr = e.api.DeleteMessage(ctx, id)
		} else {
			ierr = e.api.ModifyMessage(ctx, id, b.add, b.remove)
		}
		if ierr != nil {
			if gmail.IsAuthError(ierr) {
				summary.addActions(b.key, succeeded)
				return succeeded, ierr
			}
			// A message gone between planning and execution already has
			// the outcome the action wanted.
			if gmail.IsNotFound(ierr) {
				e.logger.Debug("message already gone", "action", b.key, "id", id)
				succeeded++
				continue
			}
			failedIDs = append(failedIDs, id)
			lastErr = ierr
			continue
		}
		succeeded++
	}

	summary.addActions(b.key, succeeded)
	if len(failedIDs) > 0 {
		summary.recordError(RunError{
			Kind:       ErrorBatchExecution,
			Action:     b.key,
			MessageIDs: failedIDs,
			Message:    fmt.Sprintf("%d of %d messages failed: %v", len(failedIDs), len(chunk), lastErr),
		})
	}
	return succeeded, nil
}
