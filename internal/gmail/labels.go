package gmail

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// System label IDs. Gmail gives system labels the same ID and name.
const (
	LabelInbox  = "INBOX"
	LabelUnread = "UNREAD"
	LabelTrash  = "TRASH"
	LabelSpam   = "SPAM"
)

// UnknownLabelError reports a label name with no matching label in the
// account. Rules referencing one are reported, never silently dropped.
type UnknownLabelError struct {
	Name string
}

func (e *UnknownLabelError) Error() string {
	return fmt.Sprintf("no label named %q", e.Name)
}

// Resolver maps label names to IDs and back, caching the account's label
// list on first use. Name lookups are case-insensitive for system labels
// and exact-with-fallback for user labels, matching Gmail's own behavior.
type Resolver struct {
	api API

	mu     sync.Mutex
	loaded bool
	byName map[string]string // lowercased name -> ID
	byID   map[string]string // ID -> display name
}

// NewResolver creates a resolver over the given API.
func NewResolver(api API) *Resolver {
	return &Resolver{api: api}
}

func (r *Resolver) load(ctx context.Context) error {
	if r.loaded {
		return nil
	}
	labels, err := r.api.ListLabels(ctx)
	if err != nil {
		return fmt.Errorf("list labels: %w", err)
	}
	r.byName = make(map[string]string, len(labels))
	r.byID = make(map[string]string, len(labels))
	for _, l := range labels {
		r.byName[strings.ToLower(l.Name)] = l.ID
		r.byID[l.ID] = l.Name
	}
	r.loaded = true
	return nil
}

// ID resolves a label name to its ID, loading the account's label list on
// first use. System labels resolve too since ListLabels returns them.
func (r *Resolver) ID(ctx context.Context, name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(ctx); err != nil {
		return "", err
	}
	if id, ok := r.byName[strings.ToLower(name)]; ok {
		return id, nil
	}
	return "", &UnknownLabelError{Name: name}
}

// Name resolves a label ID to its display name. Unknown IDs come back
// verbatim so callers can always render something.
func (r *Resolver) Name(ctx context.Context, id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(ctx); err != nil {
		return id
	}
	if name, ok := r.byID[id]; ok {
		return name
	}
	return id
}

// Names resolves a batch of IDs, best effort.
func (r *Resolver) Names(ctx context.Context, ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = r.Name(ctx, id)
	}
	return out
}

// Invalidate drops the cached label list. The next lookup reloads it.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = false
	r.byName = nil
	r.byID = nil
}
