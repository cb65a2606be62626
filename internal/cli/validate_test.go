package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidate_Valid(t *testing.T) {
	path := writeFile(t, "shadow.json", `{
  "0x00000000000000000000000000000000000000bb": "0x6001600055",
  "0x00000000000000000000000000000000000000aa": "00"
}`)

	out, _, err := execute(t, "validate", path, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)

	require.Len(t, resp.Data.Overrides, 2)
	assert.Equal(t, addrA.Hex(), resp.Data.Overrides[0].Address)
	assert.Equal(t, crypto.Keccak256Hash([]byte{0x00}).Hex(), resp.Data.Overrides[0].CodeHash)
	assert.Equal(t, 1, resp.Data.Overrides[0].Size)
	assert.Equal(t, addrB.Hex(), resp.Data.Overrides[1].Address)
	assert.Equal(t, 5, resp.Data.Overrides[1].Size)
}

func TestValidate_YAMLText(t *testing.T) {
	path := writeFile(t, "shadow.yaml", `"0x00000000000000000000000000000000000000cc": "0x00"`+"\n")

	out, _, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "1 override(s) valid")
	assert.Contains(t, out, common.HexToAddress("0xcc").Hex())
	assert.Contains(t, out, "1 bytes")
}

func TestValidate_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad address", `{"0x1234": "0x00"}`},
		{"bad bytecode", `{"0x00000000000000000000000000000000000000aa": "0xzz"}`},
		{"not a mapping", `[1, 2]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "shadow.json", tt.content)

			out, _, err := execute(t, "validate", path)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.Contains(t, out, "Error [E_CONTRACTS]")
		})
	}
}

func TestValidate_MissingFile(t *testing.T) {
	_, _, err := execute(t, "validate", filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
