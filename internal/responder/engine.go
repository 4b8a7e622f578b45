// Package responder decides how the persona answers a chat message.
//
// Rules are tried in order and the first match wins:
//
//  1. a message already answered for this participant is ignored;
//  2. taunt triggers ("gg", "w stream") get the taunt;
//  3. a first visit gets the welcome;
//  4. a returning participant's first words since rejoining get the
//     still-silent line;
//  5. everything else goes to the generative backend.
//
// Independently of the rule, messages mentioning a promo keyword get the
// vault promo sent ahead of the reply.
package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"marrow-bot/internal/chat"
	"marrow-bot/internal/ledger"
	"marrow-bot/internal/llm"
	"marrow-bot/internal/memory"
	"marrow-bot/internal/metrics"
	"marrow-bot/internal/persona"
)

// Rule identifies which decision rule produced a reply.
type Rule string

const (
	RuleTaunt       Rule = "taunt"
	RuleWelcome     Rule = "welcome"
	RuleStillSilent Rule = "still_silent"
	RuleGenerated   Rule = "generated"
)

// Category maps the rule onto the trigger-log category.
func (r Rule) Category() memory.Category {
	if r == RuleGenerated {
		return memory.CategoryGenerated
	}
	return memory.CategoryRule
}

// Input is one inbound message together with the sender's ledger record
// as it stands after the message was recorded.
type Input struct {
	Participant string
	Text        string
	Record      ledger.Record
}

// Reply is what the persona will say.
type Reply struct {
	Text     string
	Rule     Rule
	Category memory.Category
	// Promo is sent before Text when non-empty.
	Promo string
	// Trigger is the normalized message the reply answers.
	Trigger string
}

// NormalizeMessage is the form messages are matched and logged in.
func NormalizeMessage(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

type Engine struct {
	profile *persona.Profile
	notes   *persona.Notes
	memory  *memory.Memory
	llm     llm.Client
	timeout time.Duration
	log     zerolog.Logger
}

func New(profile *persona.Profile, notes *persona.Notes, mem *memory.Memory, client llm.Client, timeout time.Duration, log zerolog.Logger) *Engine {
	return &Engine{
		profile: profile,
		notes:   notes,
		memory:  mem,
		llm:     client,
		timeout: timeout,
		log:     log,
	}
}

// Decide picks the reply for in. It returns false when the persona stays
// silent: the message was handled before, or the backend failed.
func (e *Engine) Decide(ctx context.Context, in Input) (Reply, bool) {
	name := ledger.Normalize(in.Participant)
	msg := NormalizeMessage(in.Text)

	if e.memory.AlreadyHandled(name, msg) {
		e.log.Debug().Str("participant", name).Str("message", msg).Msg("already handled, skipping")
		return Reply{}, false
	}

	var reply Reply
	switch {
	case e.profile.IsTaunt(msg):
		reply = Reply{Text: e.profile.Say(persona.PhraseTaunt, name), Rule: RuleTaunt}
	case in.Record.FirstVisit():
		reply = Reply{Text: e.profile.Say(persona.PhraseWelcome, name), Rule: RuleWelcome}
	case in.Record.SilentReturn():
		reply = Reply{Text: e.profile.Say(persona.PhraseStillSilent, name), Rule: RuleStillSilent}
	default:
		text, err := e.generate(ctx, name, msg)
		if err != nil {
			metrics.LLMFailuresTotal.Inc()
			e.log.Error().Err(err).Str("participant", name).Msg("error generating reply")
			return Reply{}, false
		}
		reply = Reply{Text: text, Rule: RuleGenerated}
	}

	reply.Category = reply.Rule.Category()
	reply.Trigger = msg
	if e.profile.WantsPromo(msg) {
		reply.Promo = e.profile.Say(persona.PhraseVault, name)
	}
	return reply, true
}

func (e *Engine) generate(ctx context.Context, name, msg string) (string, error) {
	data := persona.PromptData{
		Name:         name,
		Note:         e.notes.Note(name),
		PastTriggers: e.memory.CountPastTriggers(name),
		Message:      msg,
	}
	if last, ok := e.memory.LastInteraction(name); ok {
		data.LastThought = last.Response
	}
	prompt, err := e.profile.RenderPrompt(data)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	resp, err := e.llm.Generate(ctx, []llm.Message{{Role: llm.RoleSystem, Content: prompt}})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", errors.New("backend returned an empty completion")
	}
	e.log.Info().
		Str("participant", name).
		Str("model", resp.Model).
		Int("total_tokens", resp.TotalTokens).
		Msg("generated reply")
	return text, nil
}

// Handle decides, sends and records the reply to in. A failed promo send
// is logged and skipped; a failed reply send is returned and nothing is
// recorded, so the message can be answered on re-delivery.
func (e *Engine) Handle(ctx context.Context, out chat.Sender, in Input, now time.Time) (Reply, bool, error) {
	reply, ok := e.Decide(ctx, in)
	if !ok {
		return Reply{}, false, nil
	}
	name := ledger.Normalize(in.Participant)

	if reply.Promo != "" {
		if err := out.Send(ctx, reply.Promo); err != nil {
			e.log.Warn().Err(err).Str("participant", name).Msg("failed to send promo")
		}
	}
	if err := out.Send(ctx, reply.Text); err != nil {
		return reply, false, fmt.Errorf("send reply: %w", err)
	}
	metrics.RepliesTotal.WithLabelValues(string(reply.Category), string(reply.Rule)).Inc()
	e.log.Info().
		Str("participant", name).
		Str("rule", string(reply.Rule)).
		Str("category", string(reply.Category)).
		Msg("replied")

	if err := e.memory.RecordInteraction(name, reply.Trigger, reply.Text, now); err != nil {
		return reply, true, err
	}
	if err := e.memory.RecordTrigger(name, reply.Trigger, reply.Category, reply.Text, now); err != nil {
		return reply, true, err
	}
	return reply, true, nil
}
