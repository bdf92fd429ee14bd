package gmail

import (
	"context"
	"strconv"
	"sync"
)

// MockAPI is an in-memory API implementation for tests. Call records are
// exported so tests in other packages can assert on them, and the error
// maps let tests inject failures per message or per operation. Mutations
// are applied to the stored messages, so a second pass over the same
// mock observes the first pass's effects.
type MockAPI struct {
	mu sync.Mutex

	Profile      *Profile
	Labels       []*Label
	Messages     map[string]*MessageMeta
	RawMessages  map[string]*RawMessage
	QueryResults map[string][]string // query -> matching IDs, in list order
	AllIDs       []string            // results for the empty query

	// Error injection.
	ProfileErr     error
	LabelsErr      error
	ListErr        error
	MetadataErrors map[string]error
	ModifyErrors   map[string]error
	DeleteErrors   map[string]error
	BatchModifyErr error
	BatchDeleteErr error

	// Hooks run before the corresponding call is recorded. Tests use them
	// to mutate mock state mid-run.
	BeforeList        func(query, pageToken string)
	BeforeBatchModify func(ids []string)

	// Call records.
	CallSequence     []string
	ListCalls        []ListCall
	MetadataCalls    []string
	BatchMetaCalls   [][]string
	RawCalls         []string
	ModifyCalls      []ModifyCall
	BatchModifyCalls []BatchModifyCall
	DeleteCalls      []string
	BatchDeleteCalls [][]string

	transient map[string]*transientFailure
}

// ListCall records one ListMessages invocation.
type ListCall struct {
	Query      string
	MaxResults int64
	PageToken  string
}

// ModifyCall records one ModifyMessage invocation.
type ModifyCall struct {
	ID     string
	Add    []string
	Remove []string
}

// BatchModifyCall records one BatchModifyMessages invocation.
type BatchModifyCall struct {
	IDs    []string
	Add    []string
	Remove []string
}

type transientFailure struct {
	remaining int
	err       error
}

// NewMockAPI creates an empty mock.
func NewMockAPI() *MockAPI {
	return &MockAPI{
		Profile:        &Profile{EmailAddress: "test@example.com"},
		Messages:       make(map[string]*MessageMeta),
		RawMessages:    make(map[string]*RawMessage),
		QueryResults:   make(map[string][]string),
		MetadataErrors: make(map[string]error),
		ModifyErrors:   make(map[string]error),
		DeleteErrors:   make(map[string]error),
		transient:      make(map[string]*transientFailure),
	}
}

// AddMessage stores a message and appends its ID to the all-messages list.
func (m *MockAPI) AddMessage(meta *MessageMeta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages[meta.ID] = meta
	m.AllIDs = append(m.AllIDs, meta.ID)
}

// SetQueryResults sets the IDs a query returns, in order.
func (m *MockAPI) SetQueryResults(query string, ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QueryResults[query] = ids
}

// SetLabels replaces the account's label list.
func (m *MockAPI) SetLabels(labels ...*Label) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Labels = labels
}

// SetTransientFailure makes the next count calls of op fail with err.
// Op names match CallSequence entries, e.g. "messages.list".
func (m *MockAPI) SetTransientFailure(op string, count int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transient[op] = &transientFailure{remaining: count, err: err}
}

// Reset clears call records but keeps messages, labels and queries.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallSequence = nil
	m.ListCalls = nil
	m.MetadataCalls = nil
	m.BatchMetaCalls = nil
	m.RawCalls = nil
	m.ModifyCalls = nil
	m.BatchModifyCalls = nil
	m.DeleteCalls = nil
	m.BatchDeleteCalls = nil
}

// record appends op to the call sequence and consumes a pending transient
// failure if one is set. Must be called with the mutex held.
func (m *MockAPI) record(op string) error {
	m.CallSequence = append(m.CallSequence, op)
	if tf, ok := m.transient[op]; ok && tf.remaining > 0 {
		tf.remaining--
		return tf.err
	}
	return nil
}

func (m *MockAPI) GetProfile(ctx context.Context) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("users.getProfile"); err != nil {
		return nil, err
	}
	if m.ProfileErr != nil {
		return nil, m.ProfileErr
	}
	return m.Profile, nil
}

func (m *MockAPI) ListLabels(ctx context.Context) ([]*Label, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("labels.list"); err != nil {
		return nil, err
	}
	if m.LabelsErr != nil {
		return nil, m.LabelsErr
	}
	return m.Labels, nil
}

func (m *MockAPI) ListMessages(ctx context.Context, query string, maxResults int64, pageToken string) (*MessageListResponse, error) {
	m.mu.Lock()
	if m.BeforeList != nil {
		hook := m.BeforeList
		m.mu.Unlock()
		hook(query, pageToken)
		m.mu.Lock()
	}
	defer m.mu.Unlock()

	m.ListCalls = append(m.ListCalls, ListCall{Query: query, MaxResults: maxResults, PageToken: pageToken})
	if err := m.record("messages.list"); err != nil {
		return nil, err
	}
	if m.ListErr != nil {
		return nil, m.ListErr
	}

	ids := m.AllIDs
	if query != "" {
		ids = m.QueryResults[query]
	}

	offset := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil {
			return nil, &APIError{StatusCode: 400, Message: "invalid page token"}
		}
		offset = n
	}
	if offset > len(ids) {
		offset = len(ids)
	}
	if maxResults <= 0 {
		maxResults = 100
	}
	end := offset + int(maxResults)
	if end > len(ids) {
		end = len(ids)
	}

	resp := &MessageListResponse{ResultSizeEstimate: int64(len(ids))}
	for _, id := range ids[offset:end] {
		stub := MessageID{ID: id, ThreadID: id}
		if meta, ok := m.Messages[id]; ok && meta.ThreadID != "" {
			stub.ThreadID = meta.ThreadID
		}
		resp.Messages = append(resp.Messages, stub)
	}
	if end < len(ids) {
		resp.NextPageToken = strconv.Itoa(end)
	}
	return resp, nil
}

func (m *MockAPI) GetMessageMetadata(ctx context.Context, messageID string) (*MessageMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getMetadataLocked(messageID)
}

func (m *MockAPI) getMetadataLocked(messageID string) (*MessageMeta, error) {
	m.MetadataCalls = append(m.MetadataCalls, messageID)
	if err := m.record("messages.get"); err != nil {
		return nil, err
	}
	if err, ok := m.MetadataErrors[messageID]; ok {
		return nil, err
	}
	meta, ok := m.Messages[messageID]
	if !ok {
		return nil, &NotFoundError{Path: "users/me/messages/" + messageID}
	}
	cp := *meta
	cp.LabelIDs = append([]string(nil), meta.LabelIDs...)
	return &cp, nil
}

func (m *MockAPI) GetMetadataBatch(ctx context.Context, messageIDs []string) ([]MetaResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.BatchMetaCalls = append(m.BatchMetaCalls, append([]string(nil), messageIDs...))
	results := make([]MetaResult, len(messageIDs))
	for i, id := range messageIDs {
		meta, err := m.getMetadataLocked(id)
		if err != nil {
			if IsAuthError(err) {
				return nil, err
			}
			results[i] = MetaResult{Err: err}
			continue
		}
		results[i] = MetaResult{Meta: meta}
	}
	return results, nil
}

func (m *MockAPI) GetMessageRaw(ctx context.Context, messageID string) (*RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RawCalls = append(m.RawCalls, messageID)
	if err := m.record("messages.get"); err != nil {
		return nil, err
	}
	raw, ok := m.RawMessages[messageID]
	if !ok {
		return nil, &NotFoundError{Path: "users/me/messages/" + messageID}
	}
	return raw, nil
}

func (m *MockAPI) ModifyMessage(ctx context.Context, messageID string, addLabelIDs, removeLabelIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ModifyCalls = append(m.ModifyCalls, ModifyCall{
		ID:     messageID,
		Add:    append([]string(nil), addLabelIDs...),
		Remove: append([]string(nil), removeLabelIDs...),
	})
	if err := m.record("messages.modify"); err != nil {
		return err
	}
	if err, ok := m.ModifyErrors[messageID]; ok {
		return err
	}
	m.applyLabelsLocked(messageID, addLabelIDs, removeLabelIDs)
	return nil
}

func (m *MockAPI) BatchModifyMessages(ctx context.Context, messageIDs, addLabelIDs, removeLabelIDs []string) error {
	m.mu.Lock()
	if m.BeforeBatchModify != nil {
		hook := m.BeforeBatchModify
		m.mu.Unlock()
		hook(messageIDs)
		m.mu.Lock()
	}
	defer m.mu.Unlock()

	m.BatchModifyCalls = append(m.BatchModifyCalls, BatchModifyCall{
		IDs:    append([]string(nil), messageIDs...),
		Add:    append([]string(nil), addLabelIDs...),
		Remove: append([]string(nil), removeLabelIDs...),
	})
	if err := m.record("messages.batchModify"); err != nil {
		return err
	}
	if m.BatchModifyErr != nil {
		return m.BatchModifyErr
	}
	for _, id := range messageIDs {
		m.applyLabelsLocked(id, addLabelIDs, removeLabelIDs)
	}
	return nil
}

func (m *MockAPI) DeleteMessage(ctx context.Context, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteCalls = append(m.DeleteCalls, messageID)
	if err := m.record("messages.delete"); err != nil {
		return err
	}
	if err, ok := m.DeleteErrors[messageID]; ok {
		return err
	}
	delete(m.Messages, messageID)
	return nil
}

func (m *MockAPI) BatchDeleteMessages(ctx context.Context, messageIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.BatchDeleteCalls = append(m.BatchDeleteCalls, append([]string(nil), messageIDs...))
	if err := m.record("messages.batchDelete"); err != nil {
		return err
	}
	if m.BatchDeleteErr != nil {
		return m.BatchDeleteErr
	}
	for _, id := range messageIDs {
		delete(m.Messages, id)
	}
	return nil
}

func (m *MockAPI) Close() error {
	return nil
}

func (m *MockAPI) applyLabelsLocked(messageID string, add, remove []string) {
	meta, ok := m.Messages[messageID]
	if !ok {
		return
	}
	labels := make([]string, 0, len(meta.LabelIDs)+len(add))
	for _, l := range meta.LabelIDs {
		removed := false
		for _, r := range remove {
			if l == r {
				removed = true
				break
			}
		}
		if !removed {
			labels = append(labels, l)
		}
	}
	for _, a := range add {
		present := false
		for _, l := range labels {
			if l == a {
				present = true
				break
			}
		}
		if !present {
			labels = append(labels, a)
		}
	}
	meta.LabelIDs = labels
}
