package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marrow-bot/internal/storage"
)

type failingStore struct{ *storage.MemoryStore }

func (failingStore) Write(string, []byte) error { return errors.New("disk full") }

var t0 = time.Date(2026, 10, 1, 20, 0, 0, 0, time.UTC)

func TestOnMessage_CreatesRecordOnFirstSighting(t *testing.T) {
	l, err := Open(storage.NewMemoryStore())
	require.NoError(t, err)

	r, err := l.OnMessage("Nova", "hi all", t0)
	require.NoError(t, err)
	assert.Equal(t, 1, r.VisitCount)
	assert.True(t, r.HasSpoken)
	assert.Equal(t, []string{"hi all"}, r.Messages)
	assert.Equal(t, t0, r.FirstSeen)
	assert.Equal(t, t0, r.LastSeen)

	got, ok := l.Get("  NOVA ")
	require.True(t, ok, "lookups are case-insensitive")
	assert.Equal(t, r, got)
}

func TestOnJoin_CountsVisits(t *testing.T) {
	l, err := Open(storage.NewMemoryStore())
	require.NoError(t, err)

	r, err := l.OnJoin("nova", t0)
	require.NoError(t, err)
	assert.Equal(t, 1, r.VisitCount)
	assert.False(t, r.HasSpoken)
	assert.Empty(t, r.Messages)

	later := t0.Add(time.Hour)
	r, err = l.OnJoin("nova", later)
	require.NoError(t, err)
	assert.Equal(t, 2, r.VisitCount)
	assert.Equal(t, t0, r.FirstSeen)
	assert.Equal(t, later, r.LastSeen)
	assert.True(t, r.Lurking())
	assert.False(t, r.SilentReturn(), "no message yet this visit")
}

func TestSilentReturn_FirstWordsAfterRejoin(t *testing.T) {
	l, err := Open(storage.NewMemoryStore())
	require.NoError(t, err)
	_, _ = l.OnJoin("nova", t0)
	r, _ := l.OnMessage("nova", "hi all", t0)
	assert.False(t, r.SilentReturn())

	_, _ = l.OnJoin("nova", t0.Add(time.Hour))
	r, _ = l.OnMessage("nova", "back", t0.Add(time.Hour))
	assert.True(t, r.SilentReturn())
	assert.False(t, r.Lurking(), "has spoken in an earlier visit")

	r, _ = l.OnMessage("nova", "still here", t0.Add(time.Hour))
	assert.False(t, r.SilentReturn())
}

func TestLedger_PersistsAndReloads(t *testing.T) {
	st := storage.NewMemoryStore()
	l, err := Open(st)
	require.NoError(t, err)
	_, err = l.OnJoin("kai", t0)
	require.NoError(t, err)
	_, err = l.OnMessage("kai", "first", t0)
	require.NoError(t, err)
	_, err = l.OnMessage("kai", "second", t0)
	require.NoError(t, err)

	reopened, err := Open(st)
	require.NoError(t, err)
	r, ok := reopened.Get("kai")
	require.True(t, ok)
	assert.Equal(t, []string{"first", "second"}, r.Messages)
	assert.Equal(t, 1, r.VisitCount)
}

func TestLurkers_OnlyReturningSilent(t *testing.T) {
	l, err := Open(storage.NewMemoryStore())
	require.NoError(t, err)
	for _, name := range []string{"zed", "amy", "bob"} {
		_, _ = l.OnJoin(name, t0)
		_, _ = l.OnJoin(name, t0)
	}
	_, _ = l.OnJoin("newbie", t0)
	_, _ = l.OnMessage("bob", "hello", t0)

	assert.Equal(t, []string{"amy", "zed"}, l.Lurkers())
}

func TestGet_ReturnsCopy(t *testing.T) {
	l, err := Open(storage.NewMemoryStore())
	require.NoError(t, err)
	_, _ = l.OnMessage("nova", "a", t0)

	r, _ := l.Get("nova")
	r.Messages[0] = "mutated"
	r2, _ := l.Get("nova")
	assert.Equal(t, "a", r2.Messages[0])
}

func TestOnMessage_SurfacesPersistError(t *testing.T) {
	l, err := Open(failingStore{storage.NewMemoryStore()})
	require.NoError(t, err)

	r, err := l.OnMessage("nova", "hi", t0)
	require.Error(t, err)
	assert.True(t, r.HasSpoken, "in-memory state still reflects the message")
}
