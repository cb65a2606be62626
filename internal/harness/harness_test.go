package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadow-hq/shadowlogs/internal/contracts"
)

// counterCode increments slot 0 and logs the new value under topic 0x01.
const counterCode = "0x600054600101806000556000527f000000000000000000000000000000000000000000000000000000000000000160206000a100"

func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Len(t, result.Trace, len(scenario.Steps))
		})
	}
}

func TestRunWithGolden(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/counter_reorg.yaml")
	require.NoError(t, err)

	require.NoError(t, RunWithGolden(t, scenario))
}

func TestRun_Trace(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/revert_and_restore.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	first := result.Trace[0]
	assert.Equal(t, StepCommit, first.Type)
	assert.Equal(t, "notification-1", first.Notification)
	assert.Equal(t, []string{"a1"}, first.Committed)
	require.Len(t, first.Events, 2)
	assert.Equal(t, uint(0), first.Events[0].LogIndex)
	assert.Equal(t, uint(1), first.Events[1].LogIndex)
	assert.Equal(t, uint(1), first.Events[1].Tx)
	assert.Equal(t, "0x0000000000000000000000000000000000000000000000000000000000000002", first.Events[1].Data)

	revert := result.Trace[1]
	assert.Equal(t, StepRevert, revert.Type)
	assert.Equal(t, "notification-2", revert.Notification)
	assert.Equal(t, []string{"a1"}, revert.Reverted)
	assert.Empty(t, revert.Events)

	removed := result.Trace[3]
	require.Len(t, removed.Events, 2)
	assert.True(t, removed.Events[0].Removed)

	restored := result.Trace[4]
	require.Len(t, restored.Events, 2)
	assert.False(t, restored.Events[0].Removed)
}

func TestRun_ReportsUnmetExpectations(t *testing.T) {
	scenario, err := ParseScenario([]byte(`name: wrong_count
description: "expects one event too many"
contracts:
  "` + counterAddr + `": "` + counterCode + `"
steps:
  - commit:
      - label: a1
        number: 1
        txs:
          - {from: "` + senderAddr + `", to: "` + counterAddr + `"}
  - query:
      filter: {}
      expect_count: 2
      expect_blocks: [a1, a1]
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "expect_count")
	assert.Contains(t, result.Errors[1], "expect_blocks")
}

func TestRun_UnexpectedProcessingError(t *testing.T) {
	scenario, err := ParseScenario([]byte(`name: unexpected_failure
description: "storage fails but the step does not expect it"
contracts:
  "` + counterAddr + `": "` + counterCode + `"
accounts:
  "` + counterAddr + `":
    code: "0x00"
    fail_storage: "boom"
steps:
  - commit:
      - label: a1
        number: 1
        txs:
          - {from: "` + senderAddr + `", to: "` + counterAddr + `"}
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "STATE_ACCESS")
	assert.Equal(t, "STATE_ACCESS", result.Trace[0].Error)
}

func TestRun_ExpectedErrorThatDoesNotHappen(t *testing.T) {
	scenario, err := ParseScenario([]byte(`name: missing_failure
description: "expects a failure that never comes"
contracts:
  "` + counterAddr + `": "` + counterCode + `"
steps:
  - commit:
      - label: a1
        number: 1
        txs:
          - {from: "` + senderAddr + `", to: "` + counterAddr + `"}
    expect_error: STORAGE
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "notification succeeded")
}

func TestRun_InvalidContracts(t *testing.T) {
	scenario, err := ParseScenario([]byte(`name: bad_contracts
description: "override bytecode is not hex"
contracts:
  "` + counterAddr + `": "0xzz"
steps:
  - commit:
      - {label: a1, number: 1}
`))
	require.NoError(t, err)

	_, err = Run(scenario)
	require.Error(t, err)
	assert.True(t, contracts.IsConfigError(err))
}
