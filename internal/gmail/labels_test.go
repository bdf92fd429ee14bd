package gmail

import (
	"context"
	"errors"
	"testing"
)

func newTestResolver() (*Resolver, *MockAPI) {
	mock := NewMockAPI()
	mock.SetLabels(
		&Label{ID: "INBOX", Name: "INBOX", Type: "system"},
		&Label{ID: "UNREAD", Name: "UNREAD", Type: "system"},
		&Label{ID: "TRASH", Name: "TRASH", Type: "system"},
		&Label{ID: "Label_7", Name: "Receipts", Type: "user"},
		&Label{ID: "Label_12", Name: "Newsletters/Tech", Type: "user"},
	)
	return NewResolver(mock), mock
}

func TestResolverID(t *testing.T) {
	r, _ := newTestResolver()
	ctx := context.Background()

	tests := []struct {
		name  string
		label string
		want  string
	}{
		{"SystemLabel", "INBOX", "INBOX"},
		{"SystemLabelLowercase", "inbox", "INBOX"},
		{"UserLabel", "Receipts", "Label_7"},
		{"UserLabelCaseInsensitive", "receipts", "Label_7"},
		{"NestedLabel", "Newsletters/Tech", "Label_12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ID(ctx, tt.label)
			if err != nil {
				t.Fatalf("ID(%q) error = %v", tt.label, err)
			}
			if got != tt.want {
				t.Errorf("ID(%q) = %q, want %q", tt.label, got, tt.want)
			}
		})
	}
}

func TestResolverID_Unknown(t *testing.T) {
	r, _ := newTestResolver()

	_, err := r.ID(context.Background(), "NoSuchLabel")
	var unknown *UnknownLabelError
	if !errors.As(err, &unknown) {
		t.Fatalf("ID() error = %v, want *UnknownLabelError", err)
	}
	if unknown.Name != "NoSuchLabel" {
		t.Errorf("UnknownLabelError.Name = %q, want %q", unknown.Name, "NoSuchLabel")
	}
}

func TestResolverName(t *testing.T) {
	r, _ := newTestResolver()
	ctx := context.Background()

	if got := r.Name(ctx, "Label_7"); got != "Receipts" {
		t.Errorf("Name(Label_7) = %q, want %q", got, "Receipts")
	}
	// Unknown IDs come back verbatim.
	if got := r.Name(ctx, "Label_99"); got != "Label_99" {
		t.Errorf("Name(Label_99) = %q, want %q", got, "Label_99")
	}
}

func TestResolverCachesLabelList(t *testing.T) {
	r, mock := newTestResolver()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := r.ID(ctx, "Receipts"); err != nil {
			t.Fatalf("ID() error = %v", err)
		}
	}
	r.Name(ctx, "Label_7")

	calls := 0
	for _, op := range mock.CallSequence {
		if op == "labels.list" {
			calls++
		}
	}
	if calls != 1 {
		t.Errorf("labels.list called %d times, want 1", calls)
	}
}

func TestResolverInvalidate(t *testing.T) {
	r, mock := newTestResolver()
	ctx := context.Background()

	if _, err := r.ID(ctx, "Receipts"); err != nil {
		t.Fatalf("ID() error = %v", err)
	}

	mock.SetLabels(&Label{ID: "Label_8", Name: "Travel", Type: "user"})
	r.Invalidate()

	if _, err := r.ID(ctx, "Receipts"); err == nil {
		t.Error("ID(Receipts) after invalidate should fail, label is gone")
	}
	got, err := r.ID(ctx, "Travel")
	if err != nil {
		t.Fatalf("ID(Travel) error = %v", err)
	}
	if got != "Label_8" {
		t.Errorf("ID(Travel) = %q, want %q", got, "Label_8")
	}
}

func TestResolverListError(t *testing.T) {
	mock := NewMockAPI()
	mock.LabelsErr = &APIError{StatusCode: 500, Message: "backend error"}
	r := NewResolver(mock)

	if _, err := r.ID(context.Background(), "Receipts"); err == nil {
		t.Error("ID() should propagate label list errors")
	}
}
