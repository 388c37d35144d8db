package domain

import "sort"

// LeaderboardSize caps broadcast leaderboards; full standings stay readable
// from the session document.
const LeaderboardSize = 5

// LeaderboardEntry is a broadcast-friendly view of a participant's standing.
type LeaderboardEntry struct {
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
	Score         int    `json:"score"`
}

// Leaderboard ranks participants by score descending. The sort is stable, so
// ties keep join order. At most LeaderboardSize entries are returned.
func Leaderboard(participants []Participant) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, len(participants))
	for i, p := range participants {
		entries[i] = LeaderboardEntry{
			ParticipantID: p.ID,
			Name:          p.Name,
			Score:         p.Score,
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	if len(entries) > LeaderboardSize {
		entries = entries[:LeaderboardSize]
	}
	return entries
}
