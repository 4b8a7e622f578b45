package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marrow-bot/internal/ambient"
	"marrow-bot/internal/ledger"
	"marrow-bot/internal/llm"
	"marrow-bot/internal/memory"
	"marrow-bot/internal/persona"
	"marrow-bot/internal/responder"
	"marrow-bot/internal/storage"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeSender) Send(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

type fakeLLM struct {
	calls int
	resp  llm.Response
}

func (f *fakeLLM) Generate(context.Context, []llm.Message) (llm.Response, error) {
	f.calls++
	return f.resp, nil
}

type harness struct {
	bot      *Bot
	out      *fakeSender
	llm      *fakeLLM
	ledger   *ledger.Ledger
	notes    *persona.Notes
	memory   *memory.Memory
	activity *ambient.Activity
	now      time.Time
}

var t0 = time.Date(2026, 10, 1, 20, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := storage.NewMemoryStore()
	profile, err := persona.LoadProfile("")
	require.NoError(t, err)
	l, err := ledger.Open(st)
	require.NoError(t, err)
	notes, err := persona.OpenNotes(st)
	require.NoError(t, err)
	mem, err := memory.Open(st)
	require.NoError(t, err)

	h := &harness{
		out:      &fakeSender{},
		llm:      &fakeLLM{resp: llm.Response{Content: "I know where you sit."}},
		ledger:   l,
		notes:    notes,
		memory:   mem,
		activity: ambient.NewActivity(t0.Add(-time.Hour)),
		now:      t0,
	}
	h.bot = New(Deps{
		Handle:   "EnaMarrow",
		Ledger:   l,
		Notes:    notes,
		Engine:   responder.New(profile, notes, mem, h.llm, time.Second, zerolog.Nop()),
		Activity: h.activity,
		Out:      h.out,
		Now:      func() time.Time { return h.now },
		Log:      zerolog.Nop(),
	})
	return h
}

func TestFirstMessageFromStranger_Welcomes(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.bot.HandleMessage(context.Background(), "Stranger", "hello?"))

	require.Len(t, h.out.sent, 1)
	assert.Equal(t, "Welcome, stranger... let’s see how long your voice lasts.", h.out.sent[0])
	rec, ok := h.ledger.Get("stranger")
	require.True(t, ok)
	assert.Equal(t, 1, rec.VisitCount)
	assert.True(t, rec.HasSpoken)
	assert.Equal(t, t0, h.activity.Last())
}

func TestNovaScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.bot.HandleJoin(ctx, "nova"))
	rec, _ := h.ledger.Get("nova")
	assert.Equal(t, 1, rec.VisitCount)

	require.NoError(t, h.bot.HandleMessage(ctx, "nova", "hi all"))
	require.Len(t, h.out.sent, 1)
	assert.True(t, strings.HasPrefix(h.out.sent[0], "Welcome, nova"))
	triggers := h.memory.Triggers()
	require.Len(t, triggers, 1)
	assert.Equal(t, memory.CategoryRule, triggers[0].Category)

	h.now = t0.Add(24 * time.Hour)
	require.NoError(t, h.bot.HandleJoin(ctx, "nova"))
	rec, _ = h.ledger.Get("nova")
	assert.Equal(t, 2, rec.VisitCount)

	require.NoError(t, h.bot.HandleMessage(ctx, "nova", "anyone here?"))
	require.Len(t, h.out.sent, 2)
	assert.Equal(t, "nova returns... still silent. Still watched.", h.out.sent[1])
	assert.Zero(t, h.llm.calls, "the still-silent line is not backend-delegated")

	// once talking again, nova is answered by the backend
	require.NoError(t, h.bot.HandleMessage(ctx, "nova", "what are you"))
	require.Len(t, h.out.sent, 3)
	assert.Equal(t, "I know where you sit.", h.out.sent[2])
	assert.Equal(t, 1, h.llm.calls)
	assert.Equal(t, memory.CategoryGenerated, h.memory.Triggers()[2].Category)
}

func TestRedelivery_IsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.bot.HandleMessage(ctx, "kai", "hello there"))
	require.NoError(t, h.bot.HandleMessage(ctx, "kai", "hello there"))
	require.NoError(t, h.bot.HandleMessage(ctx, "KAI", " Hello There "))

	assert.Len(t, h.out.sent, 1)
	assert.Len(t, h.memory.Triggers(), 1)
	assert.Equal(t, "Observed: 'hello there'\nObserved: 'Hello There'", h.notes.Note("kai"))
	rec, _ := h.ledger.Get("kai")
	assert.Len(t, rec.Messages, 3, "the ledger keeps every message")
}

func TestGG_AlwaysTaunts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_ = h.bot.HandleJoin(ctx, "vex")
	_ = h.bot.HandleJoin(ctx, "vex")
	_ = h.bot.HandleJoin(ctx, "vex")
	require.NoError(t, h.bot.HandleMessage(ctx, "vex", "warming up"))
	require.NoError(t, h.bot.HandleMessage(ctx, "vex", "gg everyone"))

	require.Len(t, h.out.sent, 2)
	assert.Contains(t, h.out.sent[1], "vex... funny how praise feels like bait")
	assert.Zero(t, h.llm.calls)
}

func TestOwnMessagesIgnored(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.bot.HandleMessage(context.Background(), "enamarrow", "I see you"))
	require.NoError(t, h.bot.HandleJoin(context.Background(), "EnaMarrow"))

	assert.Empty(t, h.out.sent)
	assert.Zero(t, h.ledger.Len())
	assert.Equal(t, t0, h.activity.Last(), "own messages still count as activity")
}
