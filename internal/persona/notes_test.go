package persona

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marrow-bot/internal/storage"
)

func TestRecordObservation_AppendsAndDedups(t *testing.T) {
	st := storage.NewMemoryStore()
	n, err := OpenNotes(st)
	require.NoError(t, err)

	changed, err := n.RecordObservation("Nova", "hi all")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "Observed: 'hi all'", n.Note("nova"))

	_, err = n.RecordObservation("nova", "what is this")
	require.NoError(t, err)

	// identical observation later on is suppressed even with others in between
	changed, err = n.RecordObservation("nova", "hi all")
	require.NoError(t, err)
	assert.False(t, changed)

	note := n.Note("nova")
	assert.Equal(t, "Observed: 'hi all'\nObserved: 'what is this'", note)
	assert.Equal(t, 1, strings.Count(note, "Observed: 'hi all'"))

	reopened, err := OpenNotes(st)
	require.NoError(t, err)
	assert.Equal(t, note, reopened.Note("nova"))
}

func TestRecordObservation_RepeatedMessagesNeverDuplicate(t *testing.T) {
	n, err := OpenNotes(storage.NewMemoryStore())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := n.RecordObservation("kai", "boo")
		require.NoError(t, err)
	}
	assert.Equal(t, "Observed: 'boo'", n.Note("kai"))
}
