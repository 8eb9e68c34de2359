package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/FantasyEROperations/server/internal/infra/storage"
)

func TestWriteSaveTable(t *testing.T) {
	var buf bytes.Buffer
	records := []storage.SessionRecord{
		{SessionID: "s-2", SavedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), Score: 450, CuredPatients: 3, GameTime: 61, Location: "sqlite:s-2"},
		{SessionID: "s-1", GameOver: true, Reason: "collapse", Location: "saves/game_1.json"},
	}

	require.NoError(t, writeSaveTable(&buf, records))

	out := buf.String()
	assert.Contains(t, out, "SESSION")
	assert.Contains(t, out, "2026-03-01 10:00:00")
	assert.Contains(t, out, "450")
	assert.Contains(t, out, "game over (collapse)")
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "dev\n", buf.String())
}

func TestSavesList_FileBackend(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ER_STORAGE_BACKEND", "file")
	t.Setenv("ER_STORAGE_SAVE_DIR", dir)
	t.Setenv("ER_STORAGE_SQLITE_PATH", dir+"/er.db")

	var buf bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"saves", "list", "--json"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "[]\n", buf.String())
}
