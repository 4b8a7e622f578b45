package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"marrow-bot/internal/analytics"
	"marrow-bot/internal/ledger"
	"marrow-bot/internal/memory"
	"marrow-bot/internal/persona"
	"marrow-bot/internal/storage"
)

const defaultTriggerLimit = 20

type ParticipantParams struct {
	Username string `json:"username" mcp:"participant username"`
}

type ListLurkersParams struct{}

type RecentTriggersParams struct {
	Username string `json:"username,omitempty" mcp:"only replies to this participant"`
	Limit    int    `json:"limit,omitempty" mcp:"maximum number of entries (default 20)"`
}

type DailyStatsParams struct {
	Date string `json:"date,omitempty" mcp:"day as YYYY-MM-DD, UTC (default today)"`
}

type participantView struct {
	Username string        `json:"username"`
	Record   ledger.Record `json:"record"`
	Lurking  bool          `json:"lurking"`
	Note     string        `json:"note,omitempty"`
	Replies  int           `json:"replies"`
}

// LedgerServer answers read-only questions about the bot's stored state.
// Every call reloads the documents so it sees what the running bot wrote.
type LedgerServer struct {
	store storage.Store
	now   func() time.Time
}

func (s *LedgerServer) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}

func (s *LedgerServer) GetParticipant(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[ParticipantParams]) (*mcp.CallToolResultFor[any], error) {
	name := ledger.Normalize(params.Arguments.Username)
	if name == "" {
		return errorResult("username is required"), nil
	}
	l, err := ledger.Open(s.store)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	rec, ok := l.Get(name)
	if !ok {
		return errorResult(fmt.Sprintf("no record for %s", name)), nil
	}
	notes, err := persona.OpenNotes(s.store)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	mem, err := memory.Open(s.store)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return jsonResult(participantView{
		Username: name,
		Record:   rec,
		Lurking:  rec.Lurking(),
		Note:     notes.Note(name),
		Replies:  len(mem.Interactions(name)),
	})
}

func (s *LedgerServer) ListLurkers(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[ListLurkersParams]) (*mcp.CallToolResultFor[any], error) {
	l, err := ledger.Open(s.store)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	records := l.Snapshot()
	lines := make([]string, 0)
	for _, name := range l.Lurkers() {
		lines = append(lines, fmt.Sprintf("%s (%d visits, last seen %s)", name, records[name].VisitCount, records[name].LastSeen.Format(time.RFC3339)))
	}
	if len(lines) == 0 {
		return textResult("No lurkers."), nil
	}
	return textResult(strings.Join(lines, "\n")), nil
}

func (s *LedgerServer) RecentTriggers(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[RecentTriggersParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments
	limit := args.Limit
	if limit <= 0 {
		limit = defaultTriggerLimit
	}
	who := ledger.Normalize(args.Username)

	mem, err := memory.Open(s.store)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	all := mem.Triggers()
	out := make([]memory.Trigger, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		if who != "" && all[i].Participant != who {
			continue
		}
		out = append(out, all[i])
	}
	return jsonResult(out)
}

func (s *LedgerServer) DailyStats(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[DailyStatsParams]) (*mcp.CallToolResultFor[any], error) {
	day := s.clock()
	if d := params.Arguments.Date; d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			return errorResult(fmt.Sprintf("invalid date %q, want YYYY-MM-DD", d)), nil
		}
		day = parsed
	}
	mem, err := memory.Open(s.store)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	stats := analytics.AnalyzeDaily(mem.Triggers(), day)
	detail, err := stats.ToJSON()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: stats.Summary()},
			&mcp.TextContent{Text: detail},
		},
	}, nil
}

func textResult(text string) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(text string) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func jsonResult(v any) (*mcp.CallToolResultFor[any], error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return textResult(string(data)), nil
}
