package engine

import (
	"strings"
	"time"

	"github.com/mailreeve/mailreeve/internal/rules"
)

// Translation is the server-side search derived from a rule's
// conditions. Full reports whether the query is exactly equivalent to
// the rule; when it is not, the query only narrows the candidate set
// and every candidate still needs client-side confirmation.
type Translation struct {
	Query string
	Full  bool
}

// Translate converts a rule into a search query fragment.
//
// AND rules translate partially: the translatable conditions form a
// superset pre-filter and the rest are checked client-side. OR rules
// are all or nothing, because a server query missing one branch would
// silently drop that branch's matches.
func Translate(r *rules.Rule) Translation {
	or := r.Conjunction == rules.ConjunctionOr
	terms := make([]string, 0, len(r.Conditions))
	full := true
	for _, cond := range r.Conditions {
		term, ok := translateCondition(cond)
		if !ok {
			if or {
				return Translation{}
			}
			full = false
			continue
		}
		terms = append(terms, term)
	}
	if len(terms) == 0 {
		return Translation{}
	}
	if or && len(terms) > 1 {
		return Translation{Query: "(" + strings.Join(terms, " OR ") + ")", Full: true}
	}
	return Translation{Query: strings.Join(terms, " "), Full: full}
}

// translateCondition maps one condition to a search term. Server search
// has no term for snippet content, no date operators tied to internal
// receive time with hour precision, and no prefix or suffix matching,
// so those report false.
func translateCondition(cond rules.Condition) (string, bool) {
	var key string
	switch cond.Field {
	case rules.FieldFrom:
		key = "from"
	case rules.FieldTo:
		key = "to"
	case rules.FieldSubject:
		key = "subject"
	case rules.FieldLabel:
		key = "label"
	default:
		return "", false
	}

	value := cond.Value
	if strings.ContainsAny(value, " \t") {
		value = `"` + value + `"`
	}

	switch cond.Operator {
	case rules.OpContains, rules.OpEquals:
		return key + ":" + value, true
	case rules.OpNotContains, rules.OpNotEquals:
		return "-" + key + ":" + value, true
	default:
		return "", false
	}
}

// composeQuery joins the global filter, the date range and a rule's
// fragment into one query. Terms combine with implicit AND.
func composeQuery(global string, after, before time.Time, fragment string) string {
	parts := make([]string, 0, 4)
	if global = strings.TrimSpace(global); global != "" {
		parts = append(parts, global)
	}
	if !after.IsZero() {
		parts = append(parts, "after:"+after.Format("2006/01/02"))
	}
	if !before.IsZero() {
		parts = append(parts, "before:"+before.Format("2006/01/02"))
	}
	if fragment != "" {
		parts = append(parts, fragment)
	}
	return strings.Join(parts, " ")
}
