package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/mailreeve/mailreeve/internal/gmail"
	"github.com/mailreeve/mailreeve/internal/mime"
	"github.com/mailreeve/mailreeve/internal/rules"
)

// defaultPageSize is the list page size when the caller does not set one.
const defaultPageSize = 100

// snippetPreviewLimit caps the body preview used as the snippet when
// details are fetched in raw format. Server snippets run shorter; this
// errs toward matching more of the body.
const snippetPreviewLimit = 400

// Candidate is one message stub returned by the server-side search.
type Candidate struct {
	ID       string
	ThreadID string
}

// Fetcher pages candidate stubs from the server under the run's shared
// scan budget.
type Fetcher struct {
	api      gmail.API
	budget   *ScanBudget
	pageSize int
	logger   *slog.Logger
}

// NewFetcher returns a fetcher drawing on budget. pageSize caps each
// list call and falls back to a default when zero or negative.
func NewFetcher(api gmail.API, budget *ScanBudget, pageSize int) *Fetcher {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Fetcher{
		api:      api,
		budget:   budget,
		pageSize: pageSize,
		logger:   slog.Default(),
	}
}

// WithLogger sets the logger and returns the fetcher for chaining.
func (f *Fetcher) WithLogger(logger *slog.Logger) *Fetcher {
	f.logger = logger
	return f
}

// Fetch returns candidates for query. It stops at the end of results or
// when the budget runs out, whichever comes first; the second return
// reports whether the budget cut the scan short. Candidates already
// fetched are returned even when the final page errors, so the caller
// can keep partial results.
func (f *Fetcher) Fetch(ctx context.Context, query string) ([]Candidate, bool, error) {
	var out []Candidate
	pageToken := ""
	for {
		grant := f.budget.Grant(f.pageSize)
		if grant == 0 {
			f.logger.Debug("scan budget exhausted", "query", query, "fetched", len(out))
			return out, true, nil
		}

		resp, err := f.api.ListMessages(ctx, query, int64(grant), pageToken)
		if err != nil {
			f.budget.Refund(grant)
			return out, false, err
		}

		got := len(resp.Messages)
		if got > grant {
			// The server ignored maxResults; trim to keep the budget exact.
			resp.Messages = resp.Messages[:grant]
			got = grant
		}
		f.budget.Refund(grant - got)

		for _, m := range resp.Messages {
			out = append(out, Candidate{ID: m.ID, ThreadID: m.ThreadID})
		}

		if resp.NextPageToken == "" {
			return out, false, nil
		}
		pageToken = resp.NextPageToken
	}
}

// detailCache memoizes detail fetches within one run, so a message
// matched by several rules is converted once and fetch failures are not
// retried per rule.
type detailCache struct {
	messages map[string]*rules.Message
	failed   map[string]bool
}

func newDetailCache() *detailCache {
	return &detailCache{
		messages: make(map[string]*rules.Message),
		failed:   make(map[string]bool),
	}
}

// metaToMessage projects metadata-format details onto the evaluator's
// message shape. labels are resolved display names, not raw ids.
func metaToMessage(meta *gmail.MessageMeta, labels []string) *rules.Message {
	return &rules.Message{
		ID:          meta.ID,
		From:        meta.From,
		To:          meta.To,
		Subject:     meta.Subject,
		BodySnippet: mime.DecodeSnippet(meta.Snippet),
		Labels:      labels,
		ReceivedAt:  time.UnixMilli(meta.InternalDate).UTC(),
	}
}

// rawToMessage parses a raw-format message and projects it onto the
// evaluator's shape. The parsed body stands in for the snippet, so
// snippet conditions match against real body text.
func rawToMessage(raw *gmail.RawMessage, labels []string) (*rules.Message, error) {
	parsed, err := mime.Parse(raw.Raw)
	if err != nil {
		return nil, err
	}
	msg := &rules.Message{
		ID:          raw.ID,
		From:        mime.FormatAddressList(parsed.From),
		To:          mime.FormatAddressList(parsed.To),
		Subject:     parsed.Subject,
		BodySnippet: parsed.Preview(snippetPreviewLimit),
		Labels:      labels,
		ReceivedAt:  time.UnixMilli(raw.InternalDate).UTC(),
	}
	if raw.InternalDate == 0 {
		msg.ReceivedAt = parsed.Date
	}
	return msg, nil
}
