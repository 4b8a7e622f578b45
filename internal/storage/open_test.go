package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_SelectsDriver(t *testing.T) {
	dir := t.TempDir()

	s, closeFn, err := Open("file", dir, "")
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)
	require.NoError(t, closeFn())

	s, closeFn, err = Open("sqlite", dir, filepath.Join(dir, "db", "marrow.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, closeFn())

	_, _, err = Open("redis", dir, "")
	assert.Error(t, err)
}
