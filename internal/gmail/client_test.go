package gmail

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"google.golang.org/api/googleapi"
)

func TestIsRateLimitError(t *testing.T) {
	tests := []struct {
		name string
		body []byte
		want bool
	}{
		{
			name: "RateLimitExceeded",
			body: []byte(`{
				"error": {
					"code": 403,
					"message": "Quota exceeded for quota metric 'Queries'",
					"errors": [{"reason": "rateLimitExceeded"}]
				}
			}`),
			want: true,
		},
		{
			name: "RateLimitExceededUpperCase",
			body: []byte(`{
				"error": {
					"code": 403,
					"details": [{"reason": "RATE_LIMIT_EXCEEDED"}]
				}
			}`),
			want: true,
		},
		{
			name: "QuotaExceeded",
			body: []byte(`{
				"error": {
					"code": 403,
					"message": "Quota exceeded for quota metric 'Queries'"
				}
			}`),
			want: true,
		},
		{
			name: "UserRateLimitExceeded",
			body: []byte(`{
				"error": {
					"code": 403,
					"errors": [{"reason": "userRateLimitExceeded"}]
				}
			}`),
			want: true,
		},
		{
			name: "PermissionDenied",
			body: []byte(`{
				"error": {
					"code": 403,
					"message": "The caller does not have permission",
					"errors": [{"reason": "forbidden"}]
				}
			}`),
			want: false,
		},
		{
			name: "EmptyBody",
			body: []byte{},
			want: false,
		},
		{
			name: "InvalidJSON",
			body: []byte("not valid json but contains rateLimitExceeded"),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRateLimitError(tt.body); got != tt.want {
				t.Errorf("isRateLimitError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMapError(t *testing.T) {
	quotaBody := `{"error": {"code": 403, "errors": [{"reason": "rateLimitExceeded"}]}}`

	tests := []struct {
		name  string
		err   error
		check func(t *testing.T, got error)
	}{
		{
			name: "NotFound",
			err:  &googleapi.Error{Code: http.StatusNotFound},
			check: func(t *testing.T, got error) {
				t.Helper()
				var nf *NotFoundError
				if !errors.As(got, &nf) {
					t.Fatalf("mapError() = %v, want *NotFoundError", got)
				}
				if nf.Path != "users/me/messages/abc" {
					t.Errorf("NotFoundError.Path = %q, want %q", nf.Path, "users/me/messages/abc")
				}
			},
		},
		{
			name: "Unauthorized",
			err:  &googleapi.Error{Code: http.StatusUnauthorized, Message: "Invalid Credentials"},
			check: func(t *testing.T, got error) {
				t.Helper()
				if !IsAuthError(got) {
					t.Errorf("mapError() = %v, want auth error", got)
				}
			},
		},
		{
			name: "ForbiddenQuota",
			err:  &googleapi.Error{Code: http.StatusForbidden, Body: quotaBody},
			check: func(t *testing.T, got error) {
				t.Helper()
				if !IsRateLimited(got) {
					t.Errorf("mapError() = %v, want rate limit error", got)
				}
			},
		},
		{
			name: "ForbiddenPermission",
			err: &googleapi.Error{
				Code:   http.StatusForbidden,
				Body:   `{"error": {"code": 403, "errors": [{"reason": "forbidden"}]}}`,
				Errors: []googleapi.ErrorItem{{Reason: "forbidden"}},
			},
			check: func(t *testing.T, got error) {
				t.Helper()
				if !IsAuthError(got) {
					t.Fatalf("mapError() = %v, want auth error", got)
				}
				if IsRateLimited(got) {
					t.Error("permission error should not count as rate limited")
				}
			},
		},
		{
			name: "TooManyRequests",
			err: &googleapi.Error{
				Code:   http.StatusTooManyRequests,
				Header: http.Header{"Retry-After": []string{"7"}},
			},
			check: func(t *testing.T, got error) {
				t.Helper()
				var rl *RateLimitError
				if !errors.As(got, &rl) {
					t.Fatalf("mapError() = %v, want *RateLimitError", got)
				}
				if rl.RetryAfter != 7*time.Second {
					t.Errorf("RetryAfter = %v, want 7s", rl.RetryAfter)
				}
			},
		},
		{
			name: "ServerError",
			err:  &googleapi.Error{Code: http.StatusInternalServerError, Message: "backend error"},
			check: func(t *testing.T, got error) {
				t.Helper()
				var apiErr *APIError
				if !errors.As(got, &apiErr) {
					t.Fatalf("mapError() = %v, want *APIError", got)
				}
				if apiErr.StatusCode != http.StatusInternalServerError {
					t.Errorf("StatusCode = %d, want 500", apiErr.StatusCode)
				}
			},
		},
		{
			name: "NonAPIError",
			err:  fmt.Errorf("connection refused"),
			check: func(t *testing.T, got error) {
				t.Helper()
				if got == nil {
					t.Fatal("mapError() = nil, want wrapped error")
				}
				if IsAuthError(got) || IsRateLimited(got) || IsNotFound(got) {
					t.Errorf("mapError() = %v, should not match any typed error", got)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err, "users/me/messages/abc")
			tt.check(t, got)
		})
	}
}

func TestMapError_Nil(t *testing.T) {
	if got := mapError(nil, "users/me/messages/abc"); got != nil {
		t.Errorf("mapError(nil) = %v, want nil", got)
	}
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"Missing", "", 0},
		{"Seconds", "3", 3 * time.Second},
		{"Negative", "-1", 0},
		{"Garbage", "soon", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.value != "" {
				h.Set("Retry-After", tt.value)
			}
			if got := retryAfter(h); got != tt.want {
				t.Errorf("retryAfter(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestDecodeBase64URL(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
		want    string
	}{
		{"Padded", "aGVsbG8=", "hello"},
		{"Unpadded", "aGVsbG8", "hello"},
		{"URLSafeChars", "Pz8-Pg==", "??>>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeBase64URL(tt.encoded)
			if err != nil {
				t.Fatalf("decodeBase64URL(%q) error = %v", tt.encoded, err)
			}
			if string(got) != tt.want {
				t.Errorf("decodeBase64URL(%q) = %q, want %q", tt.encoded, got, tt.want)
			}
		})
	}

	if _, err := decodeBase64URL("!!!not base64!!!"); err == nil {
		t.Error("decodeBase64URL() with invalid input should fail")
	}
}
