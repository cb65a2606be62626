package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/shadow-hq/shadowlogs/internal/events"
	"github.com/shadow-hq/shadowlogs/internal/store"
)

var (
	addrA  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	addrB  = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	topicX = common.HexToHash("0x01")
	topicY = common.HexToHash("0x02")

	hash10 = common.HexToHash("0x10")
	hash11 = common.HexToHash("0x11")
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd := NewRootCommand()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// seedDB writes one event in block 10 and two in block 11, invalidates
// block 11 and saves a checkpoint at block 11.
func seedDB(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "shadow.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	_, err = st.Append(ctx, hash10, 10, []events.Event{{
		Address:         addrA,
		Topics:          []common.Hash{topicX},
		Data:            []byte{0x2a},
		BlockHash:       hash10,
		BlockNumber:     10,
		TransactionHash: common.HexToHash("0xf1"),
	}})
	require.NoError(t, err)

	_, err = st.Append(ctx, hash11, 11, []events.Event{
		{
			Address:         addrB,
			Topics:          []common.Hash{topicX, topicY},
			BlockHash:       hash11,
			BlockNumber:     11,
			TransactionHash: common.HexToHash("0xf2"),
		},
		{
			Address:             addrA,
			Topics:              []common.Hash{topicY},
			BlockHash:           hash11,
			BlockNumber:         11,
			TransactionHash:     common.HexToHash("0xf2"),
			LogIndex:            1,
			TransactionLogIndex: 1,
		},
	})
	require.NoError(t, err)

	_, err = st.Invalidate(ctx, hash11)
	require.NoError(t, err)

	require.NoError(t, st.SaveCheckpoint(ctx, store.Checkpoint{
		NotificationID: "n-2",
		BlockNumber:    11,
		BlockHash:      hash11,
	}))
	return path
}
