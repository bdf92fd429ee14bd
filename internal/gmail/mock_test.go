package gmail

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func seedMock(n int) *MockAPI {
	mock := NewMockAPI()
	for i := 0; i < n; i++ {
		mock.AddMessage(&MessageMeta{
			ID:       msgID(i),
			LabelIDs: []string{"INBOX", "UNREAD"},
		})
	}
	return mock
}

func msgID(i int) string {
	return "msg" + string(rune('a'+i/26)) + string(rune('a'+i%26))
}

func TestMockListMessagesPagination(t *testing.T) {
	mock := seedMock(7)
	ctx := context.Background()

	var ids []string
	token := ""
	pages := 0
	for {
		resp, err := mock.ListMessages(ctx, "", 3, token)
		if err != nil {
			t.Fatalf("ListMessages() error = %v", err)
		}
		pages++
		for _, m := range resp.Messages {
			ids = append(ids, m.ID)
		}
		if resp.NextPageToken == "" {
			break
		}
		token = resp.NextPageToken
	}

	if pages != 3 {
		t.Errorf("pages = %d, want 3", pages)
	}
	want := []string{msgID(0), msgID(1), msgID(2), msgID(3), msgID(4), msgID(5), msgID(6)}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("collected IDs mismatch (-want +got):\n%s", diff)
	}
}

func TestMockQueryResults(t *testing.T) {
	mock := seedMock(4)
	mock.SetQueryResults(`from:billing@example.com`, msgID(1), msgID(3))

	resp, err := mock.ListMessages(context.Background(), `from:billing@example.com`, 10, "")
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(resp.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(resp.Messages))
	}
	if resp.Messages[0].ID != msgID(1) || resp.Messages[1].ID != msgID(3) {
		t.Errorf("query results = %v, want [%s %s]", resp.Messages, msgID(1), msgID(3))
	}
}

func TestMockAppliesModifications(t *testing.T) {
	mock := seedMock(2)
	ctx := context.Background()

	err := mock.BatchModifyMessages(ctx, []string{msgID(0)}, []string{"Label_1"}, []string{"UNREAD"})
	if err != nil {
		t.Fatalf("BatchModifyMessages() error = %v", err)
	}

	meta, err := mock.GetMessageMetadata(ctx, msgID(0))
	if err != nil {
		t.Fatalf("GetMessageMetadata() error = %v", err)
	}
	want := []string{"INBOX", "Label_1"}
	if diff := cmp.Diff(want, meta.LabelIDs); diff != "" {
		t.Errorf("labels after modify (-want +got):\n%s", diff)
	}
}

func TestMockDeleteRemovesMessage(t *testing.T) {
	mock := seedMock(2)
	ctx := context.Background()

	if err := mock.BatchDeleteMessages(ctx, []string{msgID(1)}); err != nil {
		t.Fatalf("BatchDeleteMessages() error = %v", err)
	}

	_, err := mock.GetMessageMetadata(ctx, msgID(1))
	if !IsNotFound(err) {
		t.Errorf("GetMessageMetadata() after delete error = %v, want not found", err)
	}
}

func TestMockTransientFailure(t *testing.T) {
	mock := seedMock(1)
	ctx := context.Background()
	mock.SetTransientFailure("messages.list", 2, &RateLimitError{})

	for i := 0; i < 2; i++ {
		if _, err := mock.ListMessages(ctx, "", 10, ""); !IsRateLimited(err) {
			t.Fatalf("call %d: error = %v, want rate limited", i, err)
		}
	}
	if _, err := mock.ListMessages(ctx, "", 10, ""); err != nil {
		t.Errorf("call after failures exhausted: error = %v", err)
	}
}

func TestMockMetadataBatchSlotErrors(t *testing.T) {
	mock := seedMock(3)
	mock.MetadataErrors[msgID(1)] = &APIError{StatusCode: 500, Message: "backend error"}

	results, err := mock.GetMetadataBatch(context.Background(), []string{msgID(0), msgID(1), msgID(2)})
	if err != nil {
		t.Fatalf("GetMetadataBatch() error = %v", err)
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Errorf("healthy slots should have no error: %v, %v", results[0].Err, results[2].Err)
	}
	if results[1].Err == nil {
		t.Error("slot 1 should carry the injected error")
	}
	if results[0].Meta.ID != msgID(0) || results[2].Meta.ID != msgID(2) {
		t.Error("results out of order")
	}
}

func TestMockMetadataBatchAuthAborts(t *testing.T) {
	mock := seedMock(2)
	mock.MetadataErrors[msgID(0)] = &AuthError{StatusCode: 401, Reason: "token expired"}

	_, err := mock.GetMetadataBatch(context.Background(), []string{msgID(0), msgID(1)})
	if !IsAuthError(err) {
		t.Errorf("GetMetadataBatch() error = %v, want auth error", err)
	}
}
