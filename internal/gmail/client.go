package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	// defaultDetailConcurrency bounds parallel metadata fetches. The rate
	// limiter is the real throttle; this just caps in-flight requests.
	defaultDetailConcurrency = 4

	maxRetries     = 5
	baseBackoff    = time.Second
	maxBackoff     = 30 * time.Second
	defaultHoldOff = 5 * time.Second
)

// Client talks to the Gmail API for a single account. All calls go through
// a shared token bucket, and quota errors throttle the bucket before the
// call is retried.
type Client struct {
	svc     *gmailv1.Service
	user    string
	limiter *RateLimiter
	logger  *slog.Logger

	detailConcurrency int
}

// NewClient builds a client for the authenticated user.
func NewClient(ctx context.Context, ts oauth2.TokenSource) (*Client, error) {
	svc, err := gmailv1.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return &Client{
		svc:               svc,
		user:              "me",
		limiter:           NewRateLimiter(maxQPS),
		logger:            slog.Default(),
		detailConcurrency: defaultDetailConcurrency,
	}, nil
}

// WithLogger sets the logger for API diagnostics.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// WithQPS rebuilds the rate limiter for the given request rate.
func (c *Client) WithQPS(qps float64) *Client {
	c.limiter = NewRateLimiter(qps)
	return c
}

// WithDetailConcurrency sets how many metadata fetches run in parallel.
func (c *Client) WithDetailConcurrency(n int) *Client {
	if n > 0 {
		c.detailConcurrency = n
	}
	return c
}

// Close releases client resources. The underlying HTTP transport has
// nothing to tear down, but callers treat the API like any other handle.
func (c *Client) Close() error {
	return nil
}

// do runs one API call with rate limiting and retry. Rate-limit responses
// throttle the shared bucket and retry after the server's hold-off; 5xx
// responses retry with exponential backoff. Everything else returns
// immediately as a typed error.
func (c *Client) do(ctx context.Context, op Operation, path string, fn func() error) error {
	backoff := baseBackoff
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Acquire(ctx, op); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		mapped := mapError(err, path)

		var rl *RateLimitError
		if errors.As(mapped, &rl) {
			if attempt >= maxRetries {
				return mapped
			}
			hold := rl.RetryAfter
			if hold <= 0 {
				hold = defaultHoldOff
			}
			c.logger.Warn("rate limited, backing off",
				"op", op.String(), "path", path, "hold", hold, "attempt", attempt+1)
			c.limiter.Throttle(hold)
			continue
		}

		var apiErr *APIError
		if errors.As(mapped, &apiErr) && apiErr.StatusCode >= 500 {
			if attempt >= maxRetries {
				return mapped
			}
			c.logger.Warn("server error, retrying",
				"op", op.String(), "path", path, "status", apiErr.StatusCode, "backoff", backoff)
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		return mapped
	}
}

// GetProfile returns the authenticated user's profile.
func (c *Client) GetProfile(ctx context.Context) (*Profile, error) {
	var resp *gmailv1.Profile
	err := c.do(ctx, OpProfile, "users/me/profile", func() error {
		var err error
		resp, err = c.svc.Users.GetProfile(c.user).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Profile{
		EmailAddress:  resp.EmailAddress,
		MessagesTotal: resp.MessagesTotal,
		ThreadsTotal:  resp.ThreadsTotal,
	}, nil
}

// ListLabels returns all labels for the account.
func (c *Client) ListLabels(ctx context.Context) ([]*Label, error) {
	var resp *gmailv1.ListLabelsResponse
	err := c.do(ctx, OpLabelsList, "users/me/labels", func() error {
		var err error
		resp, err = c.svc.Users.Labels.List(c.user).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	labels := make([]*Label, 0, len(resp.Labels))
	for _, l := range resp.Labels {
		labels = append(labels, &Label{ID: l.Id, Name: l.Name, Type: l.Type})
	}
	return labels, nil
}

// ListMessages returns one page of message stubs matching the query.
func (c *Client) ListMessages(ctx context.Context, query string, maxResults int64, pageToken string) (*MessageListResponse, error) {
	var resp *gmailv1.ListMessagesResponse
	err := c.do(ctx, OpMessagesList, "users/me/messages", func() error {
		call := c.svc.Users.Messages.List(c.user).Context(ctx)
		if query != "" {
			call = call.Q(query)
		}
		if maxResults > 0 {
			call = call.MaxResults(maxResults)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		var err error
		resp, err = call.Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	out := &MessageListResponse{
		NextPageToken:      resp.NextPageToken,
		ResultSizeEstimate: int64(resp.ResultSizeEstimate),
		Messages:           make([]MessageID, 0, len(resp.Messages)),
	}
	for _, m := range resp.Messages {
		out.Messages = append(out.Messages, MessageID{ID: m.Id, ThreadID: m.ThreadId})
	}
	return out, nil
}

// GetMessageMetadata fetches headers, labels and snippet for one message.
func (c *Client) GetMessageMetadata(ctx context.Context, messageID string) (*MessageMeta, error) {
	path := "users/me/messages/" + messageID
	var resp *gmailv1.Message
	err := c.do(ctx, OpMessagesGet, path, func() error {
		var err error
		resp, err = c.svc.Users.Messages.Get(c.user, messageID).
			Format("metadata").
			MetadataHeaders("From", "To", "Subject").
			Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	meta := &MessageMeta{
		ID:           resp.Id,
		ThreadID:     resp.ThreadId,
		LabelIDs:     resp.LabelIds,
		Snippet:      resp.Snippet,
		InternalDate: resp.InternalDate,
	}
	if resp.Payload != nil {
		for _, h := range resp.Payload.Headers {
			switch strings.ToLower(h.Name) {
			case "from":
				meta.From = h.Value
			case "to":
				meta.To = h.Value
			case "subject":
				meta.Subject = h.Value
			}
		}
	}
	return meta, nil
}

// GetMetadataBatch fetches metadata for several messages in parallel.
// Per-message failures land in the matching result slot; an auth failure
// or context cancellation aborts the whole batch.
func (c *Client) GetMetadataBatch(ctx context.Context, messageIDs []string) ([]MetaResult, error) {
	results := make([]MetaResult, len(messageIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.detailConcurrency)
	for i, id := range messageIDs {
		g.Go(func() error {
			meta, err := c.GetMessageMetadata(gctx, id)
			if err != nil {
				if IsAuthError(err) || errors.Is(err, context.Canceled) {
					return err
				}
				results[i] = MetaResult{Err: err}
				return nil
			}
			results[i] = MetaResult{Meta: meta}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// GetMessageRaw fetches one message with its raw MIME content decoded.
func (c *Client) GetMessageRaw(ctx context.Context, messageID string) (*RawMessage, error) {
	path := "users/me/messages/" + messageID
	var resp *gmailv1.Message
	err := c.do(ctx, OpMessagesGetRaw, path, func() error {
		var err error
		resp, err = c.svc.Users.Messages.Get(c.user, messageID).
			Format("raw").
			Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	raw, err := decodeBase64URL(resp.Raw)
	if err != nil {
		return nil, fmt.Errorf("decode message %s: %w", messageID, err)
	}
	return &RawMessage{
		ID:           resp.Id,
		ThreadID:     resp.ThreadId,
		LabelIDs:     resp.LabelIds,
		Snippet:      resp.Snippet,
		InternalDate: resp.InternalDate,
		SizeEstimate: resp.SizeEstimate,
		Raw:          raw,
	}, nil
}

// ModifyMessage adds and removes labels on one message. A missing message
// counts as success so that re-running a plan stays idempotent.
func (c *Client) ModifyMessage(ctx context.Context, messageID string, addLabelIDs, removeLabelIDs []string) error {
	if len(addLabelIDs) == 0 && len(removeLabelIDs) == 0 {
		return nil
	}
	path := "users/me/messages/" + messageID + "/modify"
	err := c.do(ctx, OpMessagesModify, path, func() error {
		req := &gmailv1.ModifyMessageRequest{
			AddLabelIds:    addLabelIDs,
			RemoveLabelIds: removeLabelIDs,
		}
		_, err := c.svc.Users.Messages.Modify(c.user, messageID, req).Context(ctx).Do()
		return err
	})
	if IsNotFound(err) {
		return nil
	}
	return err
}

// BatchModifyMessages adds and removes labels on up to MaxBatchSize messages.
func (c *Client) BatchModifyMessages(ctx context.Context, messageIDs, addLabelIDs, removeLabelIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if len(messageIDs) > MaxBatchSize {
		return fmt.Errorf("batch modify: %d ids exceeds limit of %d", len(messageIDs), MaxBatchSize)
	}
	return c.do(ctx, OpMessagesBatchModify, "users/me/messages/batchModify", func() error {
		req := &gmailv1.BatchModifyMessagesRequest{
			Ids:            messageIDs,
			AddLabelIds:    addLabelIDs,
			RemoveLabelIds: removeLabelIDs,
		}
		return c.svc.Users.Messages.BatchModify(c.user, req).Context(ctx).Do()
	})
}

// DeleteMessage permanently deletes a message. A missing message counts
// as success.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	path := "users/me/messages/" + messageID
	err := c.do(ctx, OpMessagesDelete, path, func() error {
		return c.svc.Users.Messages.Delete(c.user, messageID).Context(ctx).Do()
	})
	if IsNotFound(err) {
		return nil
	}
	return err
}

// BatchDeleteMessages permanently deletes up to MaxBatchSize messages.
func (c *Client) BatchDeleteMessages(ctx context.Context, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if len(messageIDs) > MaxBatchSize {
		return fmt.Errorf("batch delete: %d ids exceeds limit of %d", len(messageIDs), MaxBatchSize)
	}
	return c.do(ctx, OpMessagesBatchDelete, "users/me/messages/batchDelete", func() error {
		req := &gmailv1.BatchDeleteMessagesRequest{Ids: messageIDs}
		return c.svc.Users.Messages.BatchDelete(c.user, req).Context(ctx).Do()
	})
}

// mapError converts a transport error into this package's typed errors.
func mapError(err error, path string) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return fmt.Errorf("%s: %w", path, err)
	}
	switch {
	case gerr.Code == http.StatusNotFound:
		return &NotFoundError{Path: path}
	case gerr.Code == http.StatusUnauthorized:
		return &AuthError{StatusCode: gerr.Code, Reason: errorReason(gerr)}
	case gerr.Code == http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: retryAfter(gerr.Header)}
	case gerr.Code == http.StatusForbidden && isRateLimitError([]byte(gerr.Body)):
		return &RateLimitError{RetryAfter: retryAfter(gerr.Header)}
	case gerr.Code == http.StatusForbidden:
		return &AuthError{StatusCode: gerr.Code, Reason: errorReason(gerr)}
	default:
		return &APIError{StatusCode: gerr.Code, Message: gerr.Message}
	}
}

func errorReason(gerr *googleapi.Error) string {
	if len(gerr.Errors) > 0 && gerr.Errors[0].Reason != "" {
		return gerr.Errors[0].Reason
	}
	return gerr.Message
}

// rateLimitMarkers are the strings Gmail quota errors carry in their bodies.
// The body is scanned rather than parsed: quota responses are not always
// well-formed JSON.
var rateLimitMarkers = []string{
	"rateLimitExceeded",
	"userRateLimitExceeded",
	"RATE_LIMIT_EXCEEDED",
	"quotaExceeded",
	"Quota exceeded",
}

func isRateLimitError(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	s := string(body)
	for _, marker := range rateLimitMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// retryAfter reads a Retry-After header given in seconds. Zero means the
// server did not say.
func retryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// decodeBase64URL handles both padded and unpadded base64url, which Gmail
// mixes depending on the endpoint.
func decodeBase64URL(s string) ([]byte, error) {
	if b, err := base64.URLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}
