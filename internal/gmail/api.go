// Package gmail provides a Gmail API client with rate limiting and retry logic.
package gmail

import "context"

// MaxBatchSize is the Gmail limit on message ids per batchModify or
// batchDelete call. The engine chunks its mutations to this size.
const MaxBatchSize = 1000

// API defines the transport surface the rule engine drives.
// This interface enables mocking for tests without hitting the real API.
type API interface {
	// GetProfile returns the authenticated user's profile.
	GetProfile(ctx context.Context) (*Profile, error)

	// ListLabels returns all labels for the account.
	ListLabels(ctx context.Context) ([]*Label, error)

	// ListMessages returns message stubs matching the query. maxResults caps
	// the page size (the server may return fewer). Use pageToken for
	// pagination; the response carries the next token if more results exist.
	ListMessages(ctx context.Context, query string, maxResults int64, pageToken string) (*MessageListResponse, error)

	// GetMessageMetadata fetches headers, labels and snippet for one message.
	GetMessageMetadata(ctx context.Context, messageID string) (*MessageMeta, error)

	// GetMetadataBatch fetches metadata for several messages in parallel with
	// rate limiting. Results keep the order of the input IDs; a failed fetch
	// carries its error in the corresponding slot.
	GetMetadataBatch(ctx context.Context, messageIDs []string) ([]MetaResult, error)

	// GetMessageRaw fetches a single message with raw MIME data.
	GetMessageRaw(ctx context.Context, messageID string) (*RawMessage, error)

	// ModifyMessage adds and removes labels on one message.
	ModifyMessage(ctx context.Context, messageID string, addLabelIDs, removeLabelIDs []string) error

	// BatchModifyMessages adds and removes labels on up to MaxBatchSize messages.
	BatchModifyMessages(ctx context.Context, messageIDs, addLabelIDs, removeLabelIDs []string) error

	// DeleteMessage permanently deletes a message.
	DeleteMessage(ctx context.Context, messageID string) error

	// BatchDeleteMessages permanently deletes up to MaxBatchSize messages.
	BatchDeleteMessages(ctx context.Context, messageIDs []string) error

	// Close releases any resources held by the client.
	Close() error
}

// Profile represents a Gmail user profile.
type Profile struct {
	EmailAddress  string
	MessagesTotal int64
	ThreadsTotal  int64
}

// Label represents a Gmail label.
type Label struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"` // "system" or "user"
}

// MessageListResponse contains a page of message stubs.
type MessageListResponse struct {
	Messages           []MessageID
	NextPageToken      string
	ResultSizeEstimate int64
}

// MessageID represents a message reference from list operations.
type MessageID struct {
	ID       string
	ThreadID string
}

// MessageMeta is the metadata-format projection of a message: headers,
// labels and snippet, enough to evaluate rule conditions without
// downloading the body.
type MessageMeta struct {
	ID           string
	ThreadID     string
	LabelIDs     []string
	Snippet      string
	InternalDate int64 // Unix milliseconds
	From         string
	To           string
	Subject      string
}

// RawMessage contains the raw MIME data for a message.
type RawMessage struct {
	ID           string
	ThreadID     string
	LabelIDs     []string
	Snippet      string
	InternalDate int64 // Unix milliseconds
	SizeEstimate int64
	Raw          []byte // Decoded from base64url
}

// MetaResult pairs a metadata fetch with its outcome for batch calls.
type MetaResult struct {
	Meta *MessageMeta
	Err  error
}
