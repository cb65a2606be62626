package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	counterAddr = "0x00000000000000000000000000000000000000c0"
	senderAddr  = "0x00000000000000000000000000000000000000a1"
)

func TestLoadScenario_Valid(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/counter_reorg.yaml")
	require.NoError(t, err)

	assert.Equal(t, "counter_reorg", scenario.Name)
	require.Len(t, scenario.Steps, 5)
	assert.Equal(t, StepCommit, scenario.Steps[0].Kind())
	assert.Equal(t, StepReorg, scenario.Steps[2].Kind())
	assert.Equal(t, StepQuery, scenario.Steps[3].Kind())
	assert.Equal(t, []string{"a2"}, scenario.Steps[2].Revert)
	assert.Equal(t, "a1", scenario.Steps[2].Commit[0].Parent)
	require.NotNil(t, scenario.Steps[3].Query.ExpectCount)
	assert.Equal(t, 5, *scenario.Steps[3].Query.ExpectCount)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typo.yaml")
	data := `
name: typo
description: "misspelled key"
step:
  - revert: [a1]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Validation(t *testing.T) {
	commit := `
  - commit:
      - label: a1
        number: 1
        txs:
          - {from: "` + senderAddr + `", to: "` + counterAddr + `"}
`
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: d\nsteps:" + commit,
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: n\nsteps:" + commit,
			wantErr: "description is required",
		},
		{
			name:    "no steps",
			yaml:    "name: n\ndescription: d\nsteps: []\n",
			wantErr: "steps list is required",
		},
		{
			name:    "empty step",
			yaml:    "name: n\ndescription: d\nsteps:\n  - {}\n",
			wantErr: "one of commit, revert or query is required",
		},
		{
			name:    "revert of unknown block",
			yaml:    "name: n\ndescription: d\nsteps:\n  - revert: [ghost]\n",
			wantErr: `unknown block "ghost"`,
		},
		{
			name:    "duplicate label",
			yaml:    "name: n\ndescription: d\nsteps:" + commit + strings.TrimPrefix(commit, "\n"),
			wantErr: `duplicate label "a1"`,
		},
		{
			name: "unknown parent",
			yaml: `name: n
description: d
steps:
  - commit:
      - {label: b2, number: 2, parent: a1}
`,
			wantErr: `unknown parent "a1"`,
		},
		{
			name: "bad sender",
			yaml: `name: n
description: d
steps:
  - commit:
      - label: a1
        number: 1
        txs:
          - {from: "alice", to: "` + counterAddr + `"}
`,
			wantErr: `invalid from address "alice"`,
		},
		{
			name: "bad calldata",
			yaml: `name: n
description: d
steps:
  - commit:
      - label: a1
        number: 1
        txs:
          - {from: "` + senderAddr + `", to: "` + counterAddr + `", data: "0xabc"}
`,
			wantErr: "data:",
		},
		{
			name: "unknown error code",
			yaml: "name: n\ndescription: d\nsteps:" + strings.TrimSuffix(commit, "\n") + "\n    expect_error: BOOM\n",
			wantErr: `unknown code "BOOM"`,
		},
		{
			name: "query without expectations",
			yaml: `name: n
description: d
steps:
  - query:
      filter: {}
`,
			wantErr: "at least one of expect_count",
		},
		{
			name: "query with too many topics",
			yaml: `name: n
description: d
steps:
  - query:
      filter:
        topics: [null, null, null, null, "0x01"]
      expect_count: 0
`,
			wantErr: "at most 4 topics",
		},
		{
			name: "query combined with commit",
			yaml: "name: n\ndescription: d\nsteps:" + strings.TrimSuffix(commit, "\n") + "\n    query: {filter: {}, expect_count: 0}\n",
			wantErr: "query cannot be combined",
		},
		{
			name: "bad account",
			yaml: `name: n
description: d
accounts:
  "` + counterAddr + `":
    balance: "lots"
steps:
  - revert: []
`,
			wantErr: "balance",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseScenario_BlockReference(t *testing.T) {
	data := `name: restore
description: d
steps:
  - commit:
      - {label: a1, number: 1}
  - revert: [a1]
  - commit:
      - label: a1
`
	scenario, err := ParseScenario([]byte(data))
	require.NoError(t, err)
	assert.True(t, scenario.Steps[2].Commit[0].isReference())
	assert.False(t, scenario.Steps[0].Commit[0].isReference())
}

func TestFilterSpec_ToFilter(t *testing.T) {
	topic := "0x01"
	from := uint64(2)
	to := uint64(5)

	f, err := FilterSpec{
		Addresses:      []string{counterAddr},
		Topics:         []*string{nil, &topic},
		FromBlock:      &from,
		ToBlock:        &to,
		IncludeRemoved: true,
	}.toFilter()
	require.NoError(t, err)

	require.Len(t, f.Addresses, 1)
	assert.Equal(t, counterAddr, strings.ToLower(f.Addresses[0].Hex()))
	assert.Nil(t, f.Topics[0])
	require.NotNil(t, f.Topics[1])
	assert.Equal(t, "0x0000000000000000000000000000000000000000000000000000000000000001", f.Topics[1].Hex())
	assert.Equal(t, uint64(2), *f.FromBlock)
	assert.True(t, f.IncludeRemoved)

	_, err = FilterSpec{FromBlock: &to, ToBlock: &from}.toFilter()
	assert.Error(t, err)
}
