// Package bot wires the inbound message path: every message updates the
// participant ledger and persona notes, then goes to the responder.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"marrow-bot/internal/ambient"
	"marrow-bot/internal/chat"
	"marrow-bot/internal/ledger"
	"marrow-bot/internal/persona"
	"marrow-bot/internal/responder"
)

type Bot struct {
	handle   string
	ledger   *ledger.Ledger
	notes    *persona.Notes
	engine   *responder.Engine
	activity *ambient.Activity
	out      chat.Sender
	now      func() time.Time
	log      zerolog.Logger
}

// Deps are the collaborators a Bot needs.
type Deps struct {
	Handle   string
	Ledger   *ledger.Ledger
	Notes    *persona.Notes
	Engine   *responder.Engine
	Activity *ambient.Activity
	Out      chat.Sender
	Now      func() time.Time
	Log      zerolog.Logger
}

func New(d Deps) *Bot {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Bot{
		handle:   ledger.Normalize(d.Handle),
		ledger:   d.Ledger,
		notes:    d.Notes,
		engine:   d.Engine,
		activity: d.Activity,
		out:      d.Out,
		now:      now,
		log:      d.Log,
	}
}

// HandleMessage processes one chat message from participant.
func (b *Bot) HandleMessage(ctx context.Context, participant, text string) error {
	now := b.now().UTC()
	b.activity.Touch(now)

	name := ledger.Normalize(participant)
	if name == "" || name == b.handle {
		return nil
	}
	content := strings.TrimSpace(text)
	b.log.Debug().Str("participant", name).Str("text", content).Msg("incoming message")

	rec, err := b.ledger.OnMessage(name, content, now)
	if err != nil {
		return fmt.Errorf("update ledger: %w", err)
	}
	if _, err := b.notes.RecordObservation(name, content); err != nil {
		return fmt.Errorf("update persona notes: %w", err)
	}

	_, _, err = b.engine.Handle(ctx, b.out, responder.Input{Participant: name, Text: content, Record: rec}, now)
	return err
}

// HandleJoin processes a participant joining the channel.
func (b *Bot) HandleJoin(ctx context.Context, participant string) error {
	name := ledger.Normalize(participant)
	if name == "" || name == b.handle {
		return nil
	}
	rec, err := b.ledger.OnJoin(name, b.now().UTC())
	if err != nil {
		return fmt.Errorf("update ledger: %w", err)
	}
	b.log.Info().Str("participant", name).Int("visit_count", rec.VisitCount).Msg("participant joined")
	return nil
}
