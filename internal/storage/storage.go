package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Store.Read when no document exists under a name.
var ErrNotFound = errors.New("document not found")

// Document names used by the bot.
const (
	Viewers    = "viewers"
	PersonaLog = "persona_log"
	CreepLog   = "creep_log"
	AdTimer    = "ad_timer"
	TriggerLog = "trigger_log"
)

// Store abstracts durable storage of named documents.
// Write replaces the whole document; there are no partial updates and no
// transactions spanning several names.
// Implementations must be safe for concurrent use.
type Store interface {
	Read(name string) ([]byte, error)
	Write(name string, data []byte) error
}

// Load decodes the document stored under name, or returns def when the
// document is absent or empty.
func Load[T any](s Store, name string, def T) (T, error) {
	data, err := s.Read(name)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("read %s: %w", name, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return def, nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return def, fmt.Errorf("decode %s: %w", name, err)
	}
	return v, nil
}

// Save encodes v as indented JSON and overwrites the document under name.
func Save(s Store, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	data = append(data, '\n')
	if err := s.Write(name, data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
