package engine

import "github.com/mailreeve/mailreeve/internal/rules"

// Progress receives run lifecycle events. Implementations must return
// quickly; the engine calls them inline from the run goroutine.
type Progress interface {
	// OnScanStart fires once with the number of rules about to be scanned.
	OnScanStart(ruleCount int)

	// OnRuleScanned fires after one rule's candidates have been fetched
	// and confirmed.
	OnRuleScanned(rule *rules.Rule, scanned, matched int)

	// OnExecuteStart fires once with the total number of message actions
	// about to be applied (or tallied, in dry run).
	OnExecuteStart(total int)

	// OnProgress fires after each executed chunk with cumulative counts.
	OnProgress(processed, succeeded, failed int)

	// OnComplete fires when the run reaches a terminal state.
	OnComplete(summary *RunSummary)
}

// NullProgress ignores all events.
type NullProgress struct{}

func (NullProgress) OnScanStart(int)                     {}
func (NullProgress) OnRuleScanned(*rules.Rule, int, int) {}
func (NullProgress) OnExecuteStart(int)                  {}
func (NullProgress) OnProgress(int, int, int)            {}
func (NullProgress) OnComplete(*RunSummary)              {}
