// Package harness replays chain scenarios through the real dispatcher.
//
// A scenario declares override bytecode, the canonical accounts the blocks
// execute against, and a list of steps. Commit and revert steps become
// notifications processed by engine.Process; query steps read the event
// store and check the result.
//
// # Scenario Format
//
//	name: reorg_replaces_branch
//	description: "Events of a reverted block disappear from queries"
//	contracts:
//	  "0x00000000000000000000000000000000000000c0": "0x600054..."
//	accounts:
//	  "0x00000000000000000000000000000000000000c0":
//	    code: "0x00"
//	    storage: {"0x00": "0x29"}
//	steps:
//	  - commit:
//	      - label: a1
//	        number: 1
//	        txs:
//	          - {from: "0x...a1", to: "0x...c0"}
//	  - revert: [a1]
//	  - query:
//	      filter: {addresses: ["0x...c0"]}
//	      expect_count: 0
//
// A block's parent is the block labelled by its parent field, or else the
// most recently built block one height below it. Labels also name blocks in
// traces, so golden snapshots never depend on block hashes.
//
// Shadowed contracts missing from accounts are deployed with a one-byte STOP
// body, and transaction senders missing from accounts are funded with one
// ether.
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory SQLite store, sequential notification ids
// and a stepping wall clock, so traces are identical across runs.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/reorg.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness
