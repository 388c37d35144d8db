package domain

import (
	"fmt"
	"testing"
)

func TestLeaderboardSortsByScoreDescending(t *testing.T) {
	entries := Leaderboard([]Participant{
		{ID: "p1", Name: "Alice", Score: 50},
		{ID: "p2", Name: "Bob", Score: 150},
		{ID: "p3", Name: "Cara", Score: 100},
	})
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	want := []string{"Bob", "Cara", "Alice"}
	for i, name := range want {
		if entries[i].Name != name {
			t.Fatalf("position %d: got %s, want %s", i, entries[i].Name, name)
		}
	}
}

func TestLeaderboardTiesKeepJoinOrder(t *testing.T) {
	entries := Leaderboard([]Participant{
		{ID: "p1", Name: "First", Score: 100},
		{ID: "p2", Name: "Second", Score: 100},
		{ID: "p3", Name: "Third", Score: 100},
	})
	want := []string{"First", "Second", "Third"}
	for i, name := range want {
		if entries[i].Name != name {
			t.Fatalf("position %d: got %s, want %s", i, entries[i].Name, name)
		}
	}
}

func TestLeaderboardCapsAtFive(t *testing.T) {
	participants := make([]Participant, 8)
	for i := range participants {
		participants[i] = Participant{
			ID:    fmt.Sprintf("p%d", i),
			Name:  fmt.Sprintf("Player %d", i),
			Score: i * 10,
		}
	}
	entries := Leaderboard(participants)
	if len(entries) != LeaderboardSize {
		t.Fatalf("expected %d entries, got %d", LeaderboardSize, len(entries))
	}
	if entries[0].Score != 70 {
		t.Fatalf("expected top score 70, got %d", entries[0].Score)
	}
}

func TestLeaderboardEmpty(t *testing.T) {
	if entries := Leaderboard(nil); len(entries) != 0 {
		t.Fatalf("expected empty leaderboard, got %v", entries)
	}
}

func TestNewJoinCode(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		code := NewJoinCode()
		if len(code) != 6 {
			t.Fatalf("expected 6-char code, got %q", code)
		}
		for _, ch := range code {
			if (ch < 'A' || ch > 'Z') && (ch < '0' || ch > '9') {
				t.Fatalf("unexpected character %q in code %q", ch, code)
			}
		}
		seen[code] = struct{}{}
	}
	if len(seen) < 2 {
		t.Fatalf("expected varied codes, got %d distinct", len(seen))
	}
}
