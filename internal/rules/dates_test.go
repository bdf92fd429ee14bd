package rules

import (
	"testing"
	"time"
)

func TestParseDate_Absolute(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Time
	}{
		{"ISO", "2024-05-01", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"Slashes", "2024/05/01", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"USOrder", "05/01/2024", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"Whitespace", "  2024-05-01  ", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.value)
			if err != nil {
				t.Fatalf("ParseDate(%q) error = %v", tt.value, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestParseDate_Relative(t *testing.T) {
	tests := []struct {
		name  string
		value string
		back  func(time.Time) time.Time
	}{
		{"Days", "7d", func(now time.Time) time.Time { return now.AddDate(0, 0, -7) }},
		{"Weeks", "2w", func(now time.Time) time.Time { return now.AddDate(0, 0, -14) }},
		{"Months", "1m", func(now time.Time) time.Time { return now.AddDate(0, -1, 0) }},
		{"Years", "1y", func(now time.Time) time.Time { return now.AddDate(-1, 0, 0) }},
		{"UppercaseUnit", "7D", func(now time.Time) time.Time { return now.AddDate(0, 0, -7) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.value)
			if err != nil {
				t.Fatalf("ParseDate(%q) error = %v", tt.value, err)
			}
			want := tt.back(time.Now().UTC())
			if diff := want.Sub(got); diff < -time.Minute || diff > time.Minute {
				t.Errorf("ParseDate(%q) = %v, want about %v", tt.value, got, want)
			}
		})
	}
}

func TestParseDate_Invalid(t *testing.T) {
	for _, value := range []string{"", "someday", "7x", "d7", "2024-13-45", "-3d"} {
		if _, err := ParseDate(value); err == nil {
			t.Errorf("ParseDate(%q) = nil error, want failure", value)
		}
	}
}
