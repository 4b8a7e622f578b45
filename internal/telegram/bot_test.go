package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

type fakeAPI struct {
	sent    []tgbotapi.MessageConfig
	members int
	err     error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) GetChatMembersCount(tgbotapi.ChatMemberCountConfig) (int, error) {
	return f.members, f.err
}

type fakeSource struct {
	ch      chan tgbotapi.Update
	stopped bool
}

func (f *fakeSource) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel { return f.ch }
func (f *fakeSource) StopReceivingUpdates()                                       { f.stopped = true }

type event struct{ kind, who, text string }

type recorder struct {
	events []event
	err    error
}

func (r *recorder) HandleMessage(_ context.Context, who, text string) error {
	r.events = append(r.events, event{"msg", who, text})
	return r.err
}

func (r *recorder) HandleJoin(_ context.Context, who string) error {
	r.events = append(r.events, event{"join", who, ""})
	return r.err
}

func TestChannel_Send(t *testing.T) {
	api := &fakeAPI{}
	c := &Channel{api: api, chatID: 7}
	if err := c.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(api.sent) != 1 || api.sent[0].Text != "hello" || api.sent[0].ChatID != 7 {
		t.Fatalf("unexpected sent: %+v", api.sent)
	}

	api.err = errors.New("boom")
	if err := c.Send(context.Background(), "again"); err == nil {
		t.Fatal("expected error")
	}
}

func TestChannel_OccupancyCountsBot(t *testing.T) {
	c := &Channel{api: &fakeAPI{members: 4}, chatID: 7}
	n, err := c.Occupancy(context.Background())
	if err != nil || n != 4 {
		t.Fatalf("got %d, %v", n, err)
	}

	// one human plus the bot is not an empty channel
	c = &Channel{api: &fakeAPI{members: 2}, chatID: 7}
	if n, _ := c.Occupancy(context.Background()); n != 2 {
		t.Fatalf("got %d, want 2", n)
	}
}

func newTestListener(h Handler) *Listener {
	return &Listener{chatID: 100, self: 1, handler: h, log: zerolog.Nop()}
}

func TestDispatch_FiltersAndMaps(t *testing.T) {
	rec := &recorder{}
	l := newTestListener(rec)
	ctx := context.Background()

	// other chat
	l.dispatch(ctx, tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: 5}, From: &tgbotapi.User{ID: 2, UserName: "nova"}, Text: "hi",
	}})
	// own message
	l.dispatch(ctx, tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: 100}, From: &tgbotapi.User{ID: 1, UserName: "EnaMarrow"}, Text: "watching",
	}})
	// join of nova and the bot itself
	l.dispatch(ctx, tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: 100}, From: &tgbotapi.User{ID: 2, UserName: "nova"},
		NewChatMembers: []tgbotapi.User{{ID: 2, UserName: "nova"}, {ID: 1, UserName: "EnaMarrow"}},
	}})
	// message from a user without a username
	l.dispatch(ctx, tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: 100}, From: &tgbotapi.User{ID: 3, FirstName: "Kai"}, Text: "hello",
	}})

	want := []event{{"join", "nova", ""}, {"msg", "Kai", "hello"}}
	if len(rec.events) != len(want) {
		t.Fatalf("events: %+v", rec.events)
	}
	for i := range want {
		if rec.events[i] != want[i] {
			t.Fatalf("event %d: got %+v want %+v", i, rec.events[i], want[i])
		}
	}
}

func TestDispatch_HandlerErrorDoesNotStop(t *testing.T) {
	rec := &recorder{err: errors.New("disk full")}
	l := newTestListener(rec)
	msg := &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 100}, From: &tgbotapi.User{ID: 2, UserName: "nova"}, Text: "hi"}
	l.dispatch(context.Background(), tgbotapi.Update{Message: msg})
	l.dispatch(context.Background(), tgbotapi.Update{Message: msg})
	if len(rec.events) != 2 {
		t.Fatalf("expected both messages delivered, got %d", len(rec.events))
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	rec := &recorder{}
	src := &fakeSource{ch: make(chan tgbotapi.Update, 1)}
	l := newTestListener(rec)
	l.src = src

	src.ch <- tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: 100}, From: &tgbotapi.User{ID: 2, UserName: "nova"}, Text: "hi",
	}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("update was not dispatched")
		case <-time.After(10 * time.Millisecond):
		}
		if len(src.ch) == 0 {
			break
		}
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if !src.stopped {
		t.Fatal("updates were not stopped")
	}
	if len(rec.events) != 1 {
		t.Fatalf("events: %+v", rec.events)
	}
}
