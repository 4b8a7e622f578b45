// Package memory keeps what the bot has already said: a per-participant
// log of generated replies and a flat, chronological log of every trigger
// it answered. The flat log doubles as the re-delivery guard.
package memory

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"marrow-bot/internal/ledger"
	"marrow-bot/internal/storage"
)

// Category classifies how a reply was produced.
type Category string

const (
	CategoryGenerated Category = "openai-backed"
	CategoryRule      Category = "rule-based"
)

// Interaction is one entry in a participant's creep log.
type Interaction struct {
	Time     time.Time `json:"time"`
	Trigger  string    `json:"trigger"`
	Response string    `json:"response"`
}

// Trigger is one entry in the flat trigger log.
type Trigger struct {
	ID          string    `json:"id"`
	Participant string    `json:"username"`
	Message     string    `json:"message"`
	Category    Category  `json:"type"`
	Response    string    `json:"response"`
	Time        time.Time `json:"time"`
}

type triggerKey struct {
	participant string
	message     string
}

// Memory holds both logs. Each log is persisted to its own document.
type Memory struct {
	mu       sync.Mutex
	store    storage.Store
	creep    map[string][]Interaction
	triggers []Trigger
	seen     map[triggerKey]struct{}
	counts   map[string]int
	newID    func() string
}

func Open(store storage.Store) (*Memory, error) {
	creep, err := storage.Load(store, storage.CreepLog, map[string][]Interaction{})
	if err != nil {
		return nil, fmt.Errorf("load creep log: %w", err)
	}
	triggers, err := storage.Load(store, storage.TriggerLog, []Trigger{})
	if err != nil {
		return nil, fmt.Errorf("load trigger log: %w", err)
	}
	if creep == nil {
		creep = map[string][]Interaction{}
	}
	if triggers == nil {
		triggers = []Trigger{}
	}
	m := &Memory{
		store:    store,
		creep:    creep,
		triggers: triggers,
		seen:     make(map[triggerKey]struct{}, len(triggers)),
		counts:   make(map[string]int),
		newID:    uuid.NewString,
	}
	for _, t := range triggers {
		m.index(t)
	}
	return m, nil
}

func (m *Memory) index(t Trigger) {
	m.seen[triggerKey{t.Participant, t.Message}] = struct{}{}
	m.counts[t.Participant]++
}

// RecordInteraction appends a reply to the participant's creep log.
func (m *Memory) RecordInteraction(participant, trigger, response string, now time.Time) error {
	key := ledger.Normalize(participant)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creep[key] = append(m.creep[key], Interaction{Time: now, Trigger: trigger, Response: response})
	if err := storage.Save(m.store, storage.CreepLog, m.creep); err != nil {
		return fmt.Errorf("persist creep log: %w", err)
	}
	return nil
}

// RecordTrigger appends an entry to the flat trigger log. message must
// already be normalized.
func (m *Memory) RecordTrigger(participant, message string, category Category, response string, now time.Time) error {
	t := Trigger{
		Participant: ledger.Normalize(participant),
		Message:     message,
		Category:    category,
		Response:    response,
		Time:        now,
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.newID()
	m.triggers = append(m.triggers, t)
	m.index(t)
	if err := storage.Save(m.store, storage.TriggerLog, m.triggers); err != nil {
		return fmt.Errorf("persist trigger log: %w", err)
	}
	return nil
}

// AlreadyHandled reports whether this exact normalized message from the
// participant was answered before.
func (m *Memory) AlreadyHandled(participant, message string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.seen[triggerKey{ledger.Normalize(participant), message}]
	return ok
}

// CountPastTriggers is the number of trigger-log entries for participant.
func (m *Memory) CountPastTriggers(participant string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[ledger.Normalize(participant)]
}

// LastInteraction returns the most recent creep-log entry for participant.
func (m *Memory) LastInteraction(participant string) (Interaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	log := m.creep[ledger.Normalize(participant)]
	if len(log) == 0 {
		return Interaction{}, false
	}
	return log[len(log)-1], true
}

// Interactions returns a copy of the participant's creep log, oldest first.
func (m *Memory) Interactions(participant string) []Interaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Interaction(nil), m.creep[ledger.Normalize(participant)]...)
}

// Triggers returns a copy of the flat trigger log, oldest first.
func (m *Memory) Triggers() []Trigger {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Trigger(nil), m.triggers...)
}
