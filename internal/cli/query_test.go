package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadow-hq/shadowlogs/internal/api"
)

type eventListResponse struct {
	Status string `json:"status"`
	Data   struct {
		Events []api.RPCLog `json:"events"`
	} `json:"data"`
}

func decodeEvents(t *testing.T, out string) []api.RPCLog {
	t.Helper()
	var resp eventListResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status)
	return resp.Data.Events
}

func TestQuery_LiveOnly(t *testing.T) {
	db := seedDB(t)

	out, _, err := execute(t, "query", "--db", db, "--format", "json")
	require.NoError(t, err)

	evs := decodeEvents(t, out)
	require.Len(t, evs, 1)
	assert.Equal(t, addrA, evs[0].Address)
	assert.Equal(t, hash10, evs[0].BlockHash)
	assert.False(t, evs[0].Removed)
}

func TestQuery_IncludeRemoved(t *testing.T) {
	db := seedDB(t)

	out, _, err := execute(t, "query", "--db", db, "--include-removed", "--format", "json")
	require.NoError(t, err)

	evs := decodeEvents(t, out)
	require.Len(t, evs, 3)
	assert.False(t, evs[0].Removed)
	assert.True(t, evs[1].Removed)
	assert.True(t, evs[2].Removed)
}

func TestQuery_Filters(t *testing.T) {
	db := seedDB(t)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"address", []string{"--address", addrB.Hex()}, 1},
		{"topic0", []string{"--topic", topicY.Hex()}, 1},
		{"topic1 wildcard first", []string{"--topic", "", "--topic", topicY.Hex()}, 1},
		{"from", []string{"--from", "11"}, 2},
		{"to", []string{"--to", "10"}, 1},
		{"from zero", []string{"--from", "0"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"query", "--db", db, "--include-removed", "--format", "json"}, tt.args...)
			out, _, err := execute(t, args...)
			require.NoError(t, err)
			assert.Len(t, decodeEvents(t, out), tt.want)
		})
	}
}

func TestQuery_InvalidFilter(t *testing.T) {
	db := seedDB(t)

	tests := []struct {
		name string
		args []string
	}{
		{"bad address", []string{"--address", "0x1234"}},
		{"short topic", []string{"--topic", "0x01"}},
		{"too many topics", []string{"--topic", "", "--topic", "", "--topic", "", "--topic", "", "--topic", ""}},
		{"inverted range", []string{"--from", "12", "--to", "10"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"query", "--db", db}, tt.args...)
			out, _, err := execute(t, args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "Error [E_INVALID_FLAG]")
		})
	}
}

func TestQuery_Text(t *testing.T) {
	db := seedDB(t)

	out, _, err := execute(t, "query", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "BLOCK")
	assert.Contains(t, out, addrA.Hex())
	assert.Contains(t, out, topicX.Hex())
	assert.Contains(t, out, "0x2a")
}

func TestQuery_TextEmpty(t *testing.T) {
	db := seedDB(t)

	out, _, err := execute(t, "query", "--db", db, "--address", "0x00000000000000000000000000000000000000cc")
	require.NoError(t, err)
	assert.Contains(t, out, "No events found.")
}

func TestQuery_MissingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db")

	_, _, err := execute(t, "query", "--db", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.NoFileExists(t, path)
}
