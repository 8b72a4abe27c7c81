package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		totalXP int
		want    int
	}{
		{0, 1},
		{999, 1},
		{1000, 2},
		{2500, 3},
		{-5, 1},
	}

	for _, tt := range tests {
		if got := Level(tt.totalXP); got != tt.want {
			t.Errorf("Level(%d) = %d, want %d", tt.totalXP, got, tt.want)
		}
	}
}

func TestDateOf(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skipf("zoneinfo unavailable: %v", err)
	}

	// 2024-03-10 20:00 UTC is already 2024-03-11 in Tokyo
	instant := time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)

	if got := DateOf(instant).String(); got != "2024-03-10" {
		t.Errorf("DateOf(UTC) = %s, want 2024-03-10", got)
	}
	if got := DateOf(instant.In(tokyo)).String(); got != "2024-03-11" {
		t.Errorf("DateOf(Tokyo) = %s, want 2024-03-11", got)
	}
}

func TestDateArithmetic(t *testing.T) {
	d := NewDate(2024, time.February, 28)

	tests := []struct {
		name string
		got  Date
		want string
	}{
		{name: "leap day", got: d.AddDays(1), want: "2024-02-29"},
		{name: "month rollover", got: d.AddDays(2), want: "2024-03-01"},
		{name: "yesterday", got: d.AddDays(-1), want: "2024-02-27"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got.String() != tt.want {
				t.Errorf("got %s, want %s", tt.got, tt.want)
			}
		})
	}

	if days := d.AddDays(30).DaysSince(d); days != 30 {
		t.Errorf("DaysSince = %d, want 30", days)
	}
}

func TestDateJSON(t *testing.T) {
	var stats UserGoalStats
	if err := json.Unmarshal([]byte(`{"lastPracticeDate":"2024-05-01"}`), &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !stats.LastPracticeDate.Equal(NewDate(2024, time.May, 1)) {
		t.Errorf("unexpected date %s", stats.LastPracticeDate)
	}

	data, err := json.Marshal(StreakState{})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"currentStreak":0,"bestStreak":0,"lastPracticeDate":null}`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}
}

func TestPracticeStatusAdvance(t *testing.T) {
	tests := []struct {
		from, next, want PracticeStatus
	}{
		{PracticeActive, PracticeAttempted, PracticeAttempted},
		{PracticeAttempted, PracticeCompleted, PracticeCompleted},
		{PracticeCompleted, PracticeAttempted, PracticeCompleted},
		{PracticeAttempted, PracticeActive, PracticeAttempted},
	}

	for _, tt := range tests {
		if got := tt.from.Advance(tt.next); got != tt.want {
			t.Errorf("%s.Advance(%s) = %s, want %s", tt.from, tt.next, got, tt.want)
		}
	}
}

func TestParseRole(t *testing.T) {
	for _, valid := range []string{"child", "parent", "therapist"} {
		if _, err := ParseRole(valid); err != nil {
			t.Errorf("ParseRole(%q) unexpected error: %v", valid, err)
		}
	}
	if _, err := ParseRole("admin"); err == nil {
		t.Error("ParseRole(admin) expected error")
	}
}
