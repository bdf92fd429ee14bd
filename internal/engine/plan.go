package engine

import "github.com/mailreeve/mailreeve/internal/rules"

// MatchPlan describes how one rule's matches are found. When the rule's
// conditions translate fully to a server query, the server result set
// is trusted as-is. Otherwise every candidate's details are fetched and
// the rule is re-evaluated client-side before any action is planned.
type MatchPlan struct {
	Rule        *rules.Rule
	Query       string
	NeedsDetail bool
}

// Plan builds the match plan for one rule.
func Plan(r *rules.Rule) MatchPlan {
	tr := Translate(r)
	return MatchPlan{
		Rule:        r,
		Query:       tr.Query,
		NeedsDetail: !tr.Full,
	}
}
