package engine

import "testing"

func TestScanBudget_GrantAndRefund(t *testing.T) {
	b := NewScanBudget(5)

	if got := b.Grant(3); got != 3 {
		t.Errorf("Grant(3) = %d, want 3", got)
	}
	if got := b.Grant(3); got != 2 {
		t.Errorf("Grant(3) with 2 remaining = %d, want 2", got)
	}
	if got := b.Grant(1); got != 0 {
		t.Errorf("Grant(1) when spent = %d, want 0", got)
	}

	// A short page hands capacity back.
	b.Refund(2)
	if got := b.Grant(3); got != 2 {
		t.Errorf("Grant(3) after Refund(2) = %d, want 2", got)
	}
}

func TestScanBudget_RefundNeverExceedsLimit(t *testing.T) {
	b := NewScanBudget(5)
	b.Grant(5)
	b.Refund(100)
	if got := b.Grant(100); got != 5 {
		t.Errorf("Grant(100) after over-refund = %d, want 5", got)
	}
}

func TestScanBudget_Unbounded(t *testing.T) {
	b := NewScanBudget(0)
	if !b.Unbounded() {
		t.Error("NewScanBudget(0).Unbounded() = false, want true")
	}
	if got := b.Grant(1000); got != 1000 {
		t.Errorf("Grant(1000) unbounded = %d, want 1000", got)
	}
	if got := b.Remaining(); got != -1 {
		t.Errorf("Remaining() unbounded = %d, want -1", got)
	}
}

func TestScanBudget_Remaining(t *testing.T) {
	b := NewScanBudget(10)
	b.Grant(4)
	if got := b.Remaining(); got != 6 {
		t.Errorf("Remaining() = %d, want 6", got)
	}
}
