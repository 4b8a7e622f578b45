// Package ledger tracks every participant the bot has seen: when they were
// first and last seen, what they said, and how many times they have joined.
package ledger

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"marrow-bot/internal/storage"
)

// Record is the persisted history of one participant.
type Record struct {
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
	Messages   []string  `json:"messages"`
	HasSpoken  bool      `json:"has_spoken"`
	VisitCount int       `json:"visit_count"`
	// VisitMessages counts messages since the latest join.
	VisitMessages int `json:"visit_messages"`
}

// FirstVisit reports whether the participant is on their first visit.
func (r Record) FirstVisit() bool { return r.VisitCount == 1 }

// SilentReturn reports whether a returning participant's latest message is
// their first since joining again.
func (r Record) SilentReturn() bool { return r.VisitCount > 1 && r.VisitMessages == 1 }

// Lurking reports whether the participant came back but never said anything.
func (r Record) Lurking() bool { return r.VisitCount > 1 && !r.HasSpoken }

func (r Record) clone() Record {
	r.Messages = append([]string(nil), r.Messages...)
	return r
}

// Normalize maps a chat handle to its ledger key.
func Normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Ledger is the participant collection, persisted whole after each change.
type Ledger struct {
	mu      sync.Mutex
	store   storage.Store
	records map[string]*Record
}

// Open loads the ledger from store, starting empty if nothing was saved yet.
func Open(store storage.Store) (*Ledger, error) {
	records, err := storage.Load(store, storage.Viewers, map[string]*Record{})
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	if records == nil {
		records = map[string]*Record{}
	}
	for k, r := range records {
		if r == nil {
			delete(records, k)
			continue
		}
		if r.VisitCount < 1 {
			r.VisitCount = 1
		}
	}
	return &Ledger{store: store, records: records}, nil
}

func newRecord(now time.Time) *Record {
	return &Record{FirstSeen: now, LastSeen: now, Messages: []string{}, VisitCount: 1}
}

// OnMessage records that participant said text at now and returns the
// updated record.
func (l *Ledger) OnMessage(participant, text string, now time.Time) (Record, error) {
	key := Normalize(participant)
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.records[key]
	if !ok {
		r = newRecord(now)
		l.records[key] = r
	}
	r.LastSeen = now
	r.HasSpoken = true
	r.Messages = append(r.Messages, text)
	r.VisitMessages++
	if err := l.persistLocked(); err != nil {
		return r.clone(), err
	}
	return r.clone(), nil
}

// OnJoin records a join event. Returning participants get their visit
// count bumped; new ones start at one visit with no history.
func (l *Ledger) OnJoin(participant string, now time.Time) (Record, error) {
	key := Normalize(participant)
	l.mu.Lock()
	defer l.mu.Unlock()

	if r, ok := l.records[key]; ok {
		r.LastSeen = now
		r.VisitCount++
		r.VisitMessages = 0
	} else {
		l.records[key] = newRecord(now)
	}
	r := l.records[key]
	if err := l.persistLocked(); err != nil {
		return r.clone(), err
	}
	return r.clone(), nil
}

func (l *Ledger) persistLocked() error {
	if err := storage.Save(l.store, storage.Viewers, l.records); err != nil {
		return fmt.Errorf("persist ledger: %w", err)
	}
	return nil
}

// Get returns a copy of the participant's record.
func (l *Ledger) Get(participant string) (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.records[Normalize(participant)]
	if !ok {
		return Record{}, false
	}
	return r.clone(), true
}

// Lurkers lists participants that returned without ever speaking, sorted.
func (l *Ledger) Lurkers() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for name, r := range l.records {
		if r.Lurking() {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a copy of every record keyed by participant.
func (l *Ledger) Snapshot() map[string]Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]Record, len(l.records))
	for name, r := range l.records {
		out[name] = r.clone()
	}
	return out
}

// Len is the number of known participants.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
