package leaderboard

import ws "github.com/gokatarajesh/literacy-games/pkg/http/ws"

func toWSEntries(entries []Entry) []ws.LeaderboardEntry {
	result := make([]ws.LeaderboardEntry, len(entries))
	for i, e := range entries {
		result[i] = ws.LeaderboardEntry{
			Rank:        i + 1,
			PlayerID:    e.PlayerID.String(),
			DisplayName: e.DisplayName,
			Score:       e.Score,
			Games:       e.Games,
			BestScore:   e.BestScore,
		}
	}
	return result
}
