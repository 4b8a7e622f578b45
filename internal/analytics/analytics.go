package analytics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"marrow-bot/internal/memory"
)

// DailyStats summarizes one UTC day of the trigger log.
type DailyStats struct {
	Date               string                     `json:"date"`
	TotalReplies       int                        `json:"total_replies"`
	UniqueParticipants int                        `json:"unique_participants"`
	ByCategory         map[memory.Category]int    `json:"by_category"`
	Participants       map[string]ParticipantStat `json:"participants"`
}

// ParticipantStat counts replies to one participant.
type ParticipantStat struct {
	Participant string                  `json:"participant"`
	Replies     int                     `json:"replies"`
	ByCategory  map[memory.Category]int `json:"by_category"`
}

// AnalyzeDaily counts the triggers logged on targetDate's calendar day.
func AnalyzeDaily(triggers []memory.Trigger, targetDate time.Time) *DailyStats {
	startOfDay := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, targetDate.Location())
	endOfDay := startOfDay.AddDate(0, 0, 1)

	stats := &DailyStats{
		Date:         startOfDay.Format("2006-01-02"),
		ByCategory:   make(map[memory.Category]int),
		Participants: make(map[string]ParticipantStat),
	}

	for _, t := range triggers {
		if t.Time.Before(startOfDay) || !t.Time.Before(endOfDay) {
			continue
		}
		stats.TotalReplies++
		stats.ByCategory[t.Category]++

		ps, ok := stats.Participants[t.Participant]
		if !ok {
			ps = ParticipantStat{Participant: t.Participant, ByCategory: make(map[memory.Category]int)}
		}
		ps.Replies++
		ps.ByCategory[t.Category]++
		stats.Participants[t.Participant] = ps
	}

	stats.UniqueParticipants = len(stats.Participants)
	return stats
}

// Summary renders the stats as plain text, busiest participants first.
func (ds *DailyStats) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Activity for %s\n", ds.Date)
	fmt.Fprintf(&b, "- replies: %d\n", ds.TotalReplies)
	fmt.Fprintf(&b, "- participants: %d\n", ds.UniqueParticipants)
	fmt.Fprintf(&b, "- %s: %d\n", memory.CategoryRule, ds.ByCategory[memory.CategoryRule])
	fmt.Fprintf(&b, "- %s: %d\n", memory.CategoryGenerated, ds.ByCategory[memory.CategoryGenerated])

	ps := make([]ParticipantStat, 0, len(ds.Participants))
	for _, p := range ds.Participants {
		ps = append(ps, p)
	}
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Replies != ps[j].Replies {
			return ps[i].Replies > ps[j].Replies
		}
		return ps[i].Participant < ps[j].Participant
	})
	for _, p := range ps {
		fmt.Fprintf(&b, "  %s: %d replies (%d generated)\n", p.Participant, p.Replies, p.ByCategory[memory.CategoryGenerated])
	}
	return b.String()
}

// ToJSON serializes the stats for detailed inspection.
func (ds *DailyStats) ToJSON() (string, error) {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
