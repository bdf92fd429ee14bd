package engine

import (
	"strings"

	"github.com/mailreeve/mailreeve/internal/rules"
)

// Match pairs a rule with a message it matched.
type Match struct {
	Rule      *rules.Rule
	MessageID string
}

// MessageActions is the resolved action set for one message after all
// matching rules have been merged. Trash is already folded away when
// Delete is set, since deletion subsumes it. Label and mark actions may
// coexist with either.
type MessageActions struct {
	MessageID    string
	AddLabels    []string
	RemoveLabels []string
	MarkRead     bool
	MarkUnread   bool
	Trash        bool
	Delete       bool
}

// messageState accumulates raw action requests for one message while
// matches are folded in.
type messageState struct {
	addLabels    []string
	removeLabels []string
	markRead     bool
	markUnread   bool
	trash        bool
	delete       bool
}

// PendingActions is the merged, deduplicated action plan for a run.
// Messages keep first-match order, which makes runs reproducible and
// dry-run output stable.
type PendingActions struct {
	order []string
	byMsg map[string]*messageState
}

// Aggregate folds matches, in the order given, into one action plan.
// Conflicts resolve the same way no matter the fold order: a label
// removal beats an addition of the same label, mark read beats mark
// unread, and delete beats trash.
func Aggregate(matches []Match) *PendingActions {
	p := &PendingActions{byMsg: make(map[string]*messageState)}
	for _, m := range matches {
		p.apply(m.MessageID, m.Rule.Actions)
	}
	return p
}

func (p *PendingActions) apply(messageID string, actions []rules.Action) {
	st, ok := p.byMsg[messageID]
	if !ok {
		st = &messageState{}
		p.byMsg[messageID] = st
		p.order = append(p.order, messageID)
	}
	for _, a := range actions {
		switch a.Type {
		case rules.ActionAddLabel:
			st.addLabels = appendLabel(st.addLabels, a.LabelName)
		case rules.ActionRemoveLabel:
			st.removeLabels = appendLabel(st.removeLabels, a.LabelName)
		case rules.ActionMarkRead:
			st.markRead = true
		case rules.ActionMarkUnread:
			st.markUnread = true
		case rules.ActionTrash:
			st.trash = true
		case rules.ActionDelete:
			st.delete = true
		}
	}
}

// appendLabel adds name unless an equivalent entry is already present.
// Label names compare case-insensitively, matching how the server
// resolves them.
func appendLabel(labels []string, name string) []string {
	for _, l := range labels {
		if strings.EqualFold(l, name) {
			return labels
		}
	}
	return append(labels, name)
}

func containsLabel(labels []string, name string) bool {
	for _, l := range labels {
		if strings.EqualFold(l, name) {
			return true
		}
	}
	return false
}

// Len returns the number of distinct messages with pending actions.
func (p *PendingActions) Len() int {
	return len(p.order)
}

// Messages returns the resolved per-message action sets in first-match
// order.
func (p *PendingActions) Messages() []MessageActions {
	out := make([]MessageActions, 0, len(p.order))
	for _, id := range p.order {
		st := p.byMsg[id]
		ma := MessageActions{
			MessageID:  id,
			MarkRead:   st.markRead,
			MarkUnread: st.markUnread,
			Trash:      st.trash,
			Delete:     st.delete,
		}
		// A removal of a label wins over adding the same label, whichever
		// order the rules requested them in.
		for _, name := range st.addLabels {
			if !containsLabel(st.removeLabels, name) {
				ma.AddLabels = append(ma.AddLabels, name)
			}
		}
		ma.RemoveLabels = append(ma.RemoveLabels, st.removeLabels...)
		// Read state is a single toggle; marking read wins.
		if ma.MarkRead {
			ma.MarkUnread = false
		}
		// Deletion subsumes trash.
		if ma.Delete {
			ma.Trash = false
		}
		out = append(out, ma)
	}
	return out
}
