package persona

import (
	"fmt"
	"strings"
	"sync"

	"marrow-bot/internal/ledger"
	"marrow-bot/internal/storage"
)

// Notes holds the free-text observations kept on each participant.
type Notes struct {
	mu    sync.Mutex
	store storage.Store
	notes map[string]string
}

func OpenNotes(store storage.Store) (*Notes, error) {
	notes, err := storage.Load(store, storage.PersonaLog, map[string]string{})
	if err != nil {
		return nil, fmt.Errorf("load persona notes: %w", err)
	}
	if notes == nil {
		notes = map[string]string{}
	}
	return &Notes{store: store, notes: notes}, nil
}

// Observation formats a message as a note line.
func Observation(text string) string {
	return fmt.Sprintf("Observed: '%s'", text)
}

// RecordObservation appends text to the participant's note unless the same
// observation is already somewhere in it. It reports whether the note changed.
func (n *Notes) RecordObservation(participant, text string) (bool, error) {
	key := ledger.Normalize(participant)
	obs := Observation(text)

	n.mu.Lock()
	defer n.mu.Unlock()
	note := n.notes[key]
	if strings.Contains(note, obs) {
		return false, nil
	}
	if note != "" {
		note += "\n" + obs
	} else {
		note = obs
	}
	n.notes[key] = note
	if err := storage.Save(n.store, storage.PersonaLog, n.notes); err != nil {
		return true, fmt.Errorf("persist persona notes: %w", err)
	}
	return true, nil
}

// Note returns everything observed about the participant.
func (n *Notes) Note(participant string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.notes[ledger.Normalize(participant)]
}
