package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_RoundTrip(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "db", "marrow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.Read(PersonaLog)
	require.ErrorIs(t, err, ErrNotFound)

	notes, err := Load(s, PersonaLog, map[string]string{})
	require.NoError(t, err)
	assert.Empty(t, notes)

	require.NoError(t, Save(s, PersonaLog, map[string]string{"nova": "Observed: 'hi'"}))
	require.NoError(t, Save(s, PersonaLog, map[string]string{"nova": "Observed: 'hi'\nObserved: 'yo'"}))

	notes, err = Load(s, PersonaLog, map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, "Observed: 'hi'\nObserved: 'yo'", notes["nova"])
}
