package engine

import "sync"

// ScanBudget caps how many candidates a run may fetch across all rules
// combined. A limit of zero or less means unbounded. The fetcher grants
// itself capacity before each page and refunds whatever the server did
// not fill, so the cap holds exactly even when pages come back short.
type ScanBudget struct {
	mu        sync.Mutex
	limit     int
	remaining int
}

// NewScanBudget returns a budget allowing limit candidates in total.
func NewScanBudget(limit int) *ScanBudget {
	return &ScanBudget{limit: limit, remaining: limit}
}

// Unbounded reports whether the budget enforces no cap.
func (b *ScanBudget) Unbounded() bool {
	return b.limit <= 0
}

// Grant reserves up to n candidates and returns how many were granted.
// Zero means the budget is spent and scanning must stop.
func (b *ScanBudget) Grant(n int) int {
	if b.limit <= 0 || n <= 0 {
		return n
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if n > b.remaining {
		n = b.remaining
	}
	b.remaining -= n
	return n
}

// Refund returns unused grants, e.g. when a page held fewer results
// than requested.
func (b *ScanBudget) Refund(n int) {
	if b.limit <= 0 || n <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remaining += n
	if b.remaining > b.limit {
		b.remaining = b.limit
	}
}

// Remaining returns how many candidates may still be fetched, or -1
// when unbounded.
func (b *ScanBudget) Remaining() int {
	if b.limit <= 0 {
		return -1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}
