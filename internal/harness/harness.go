package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	"github.com/shadow-hq/shadowlogs/internal/chain"
	"github.com/shadow-hq/shadowlogs/internal/contracts"
	"github.com/shadow-hq/shadowlogs/internal/engine"
	"github.com/shadow-hq/shadowlogs/internal/events"
	"github.com/shadow-hq/shadowlogs/internal/execution"
	"github.com/shadow-hq/shadowlogs/internal/store"
	"github.com/shadow-hq/shadowlogs/internal/testutil"
)

// senderBalance funds transaction senders the scenario does not declare.
var senderBalance = uint256.NewInt(1_000_000_000_000_000_000)

// Harness holds the per-run state of one scenario.
type Harness struct {
	store  *store.Store
	state  *testutil.ChainState
	engine *engine.Engine
	logger *slog.Logger

	blocks map[string]chain.CommittedBlock
	labels map[common.Hash]string
	tips   map[uint64]common.Hash
	nonces map[common.Address]uint64
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with sequential
// notification ids. The returned error reports setup failures; unmet
// expectations are recorded in the result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:", store.WithClock(testutil.NewStepClock().Now))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	reg, err := registry(scenario.Contracts)
	if err != nil {
		return nil, err
	}

	chainState, err := seedState(scenario, reg)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var execOpts []execution.Option
	if scenario.AllEvents {
		execOpts = append(execOpts, execution.WithAllEvents())
	}
	execOpts = append(execOpts, execution.WithLogger(logger))
	ex := execution.New(params.MergedTestChainConfig, reg, execOpts...)

	eng, err := engine.New(st, ex,
		engine.WithIDGenerator(testutil.NewSequentialIDs("notification")),
		engine.WithLogger(logger),
		engine.WithRetryBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	h := &Harness{
		store:  st,
		state:  chainState,
		engine: eng,
		logger: logger,
		blocks: make(map[string]chain.CommittedBlock),
		labels: make(map[common.Hash]string),
		tips:   make(map[uint64]common.Hash),
		nonces: make(map[common.Address]uint64),
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		var err error
		if step.Kind() == StepQuery {
			err = h.executeQuery(ctx, i, step.Query, result)
		} else {
			err = h.executeNotification(ctx, i, step, result)
		}
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	return result, nil
}

// registry builds the override registry through the same decoder the
// contracts file uses. JSON is accepted there as a subset of YAML.
func registry(overrides map[string]string) (*contracts.Registry, error) {
	if len(overrides) == 0 {
		return contracts.New(nil), nil
	}
	data, err := json.Marshal(overrides)
	if err != nil {
		return nil, fmt.Errorf("encode contracts: %w", err)
	}
	reg, err := contracts.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("contracts: %w", err)
	}
	return reg, nil
}

func seedState(s *Scenario, reg *contracts.Registry) (*testutil.ChainState, error) {
	st := testutil.NewChainState()
	declared := make(map[common.Address]bool, len(s.Accounts))

	for key, spec := range s.Accounts {
		addr := common.HexToAddress(key)
		declared[addr] = true

		acct := testutil.Account{Nonce: spec.Nonce, Storage: make(map[common.Hash]common.Hash)}
		if spec.Balance != "" {
			v, err := parseAmount(spec.Balance)
			if err != nil {
				return nil, fmt.Errorf("accounts[%s]: %w", key, err)
			}
			bal, overflow := uint256.FromBig(v)
			if overflow {
				return nil, fmt.Errorf("accounts[%s]: balance overflows 256 bits", key)
			}
			acct.Balance = bal
		}
		if spec.Code != "" {
			code, err := hexutil.Decode(spec.Code)
			if err != nil {
				return nil, fmt.Errorf("accounts[%s]: code: %w", key, err)
			}
			acct.Code = code
		}
		for slot, value := range spec.Storage {
			k, err := parseWord(slot)
			if err != nil {
				return nil, fmt.Errorf("accounts[%s]: storage slot: %w", key, err)
			}
			v, err := parseWord(value)
			if err != nil {
				return nil, fmt.Errorf("accounts[%s]: storage value: %w", key, err)
			}
			acct.Storage[k] = v
		}
		st.SetAccount(addr, acct)

		if spec.FailStorage != "" {
			st.FailStorage(addr, errors.New(spec.FailStorage))
		}
	}

	// Overrides only apply to accounts that exist canonically.
	for _, addr := range reg.Addresses() {
		if !declared[addr] {
			st.SetAccount(addr, testutil.Account{Code: []byte{0x00}})
			declared[addr] = true
		}
	}

	for _, step := range s.Steps {
		for _, b := range step.Commit {
			for _, tx := range b.Txs {
				from := common.HexToAddress(tx.From)
				if !declared[from] {
					st.Fund(from, senderBalance)
					declared[from] = true
				}
			}
		}
	}

	return st, nil
}

// executeNotification builds and processes one notification. A processing
// failure is checked against the step's expect_error.
func (h *Harness) executeNotification(ctx context.Context, index int, step Step, result *Result) error {
	n := &chain.Notification{}
	trace := TraceEvent{Step: index, Events: []EventView{}}

	for _, label := range step.Revert {
		b, ok := h.blocks[label]
		if !ok {
			return fmt.Errorf("revert: unknown block %q", label)
		}
		n.Reverted = append(n.Reverted, chain.RevertedBlock{Hash: b.Hash(), Number: b.Number()})
		trace.Reverted = append(trace.Reverted, label)
	}

	for _, spec := range step.Commit {
		b, err := h.build(spec)
		if err != nil {
			return fmt.Errorf("block %s: %w", spec.Label, err)
		}
		n.Committed = append(n.Committed, b)
		trace.Committed = append(trace.Committed, spec.Label)
	}

	err := h.engine.Process(ctx, n)
	trace.Type = n.Kind().String()
	trace.Notification = n.ID
	if code, ok := engine.ErrorCode(err); ok {
		trace.Error = string(code)
	} else if err != nil {
		trace.Error = err.Error()
	}

	switch {
	case step.ExpectError == "" && err != nil:
		result.AddError(fmt.Sprintf("step %d: %v", index, err))
	case step.ExpectError != "" && err == nil:
		result.AddError(fmt.Sprintf("step %d: expected %s, notification succeeded", index, step.ExpectError))
	case step.ExpectError != "" && trace.Error != step.ExpectError:
		result.AddError(fmt.Sprintf("step %d: expected %s, got %v", index, step.ExpectError, err))
	}

	for _, b := range n.Committed {
		evs, err := h.store.BlockEvents(ctx, b.Hash())
		if err != nil {
			return err
		}
		trace.Events = append(trace.Events, h.views(evs)...)
	}

	h.logger.Info("notification step completed",
		"step", index,
		"id", n.ID,
		"kind", trace.Type,
		"error", trace.Error,
	)

	result.Trace = append(result.Trace, trace)
	return nil
}

// build turns a block spec into a committed block and records its label.
func (h *Harness) build(spec BlockSpec) (chain.CommittedBlock, error) {
	if b, ok := h.blocks[spec.Label]; ok && spec.isReference() {
		h.tips[b.Number()] = b.Hash()
		return b, nil
	}

	var parent common.Hash
	switch {
	case spec.Parent != "":
		p, ok := h.blocks[spec.Parent]
		if !ok {
			return chain.CommittedBlock{}, fmt.Errorf("unknown parent %q", spec.Parent)
		}
		parent = p.Hash()
	case spec.Number > 0:
		parent = h.tips[spec.Number-1]
	}

	timestamp := spec.Time
	if timestamp == 0 {
		timestamp = spec.Number * 12
	}

	calls := make([]testutil.Call, 0, len(spec.Txs))
	for _, tx := range spec.Txs {
		from := common.HexToAddress(tx.From)
		call := testutil.Call{
			From:  from,
			To:    common.HexToAddress(tx.To),
			Gas:   tx.Gas,
			Nonce: h.nonces[from],
		}
		h.nonces[from]++
		if tx.Data != "" {
			data, err := hexutil.Decode(tx.Data)
			if err != nil {
				return chain.CommittedBlock{}, fmt.Errorf("data: %w", err)
			}
			call.Data = data
		}
		if tx.Value != "" {
			v, err := parseAmount(tx.Value)
			if err != nil {
				return chain.CommittedBlock{}, err
			}
			call.Value = v
		}
		calls = append(calls, call)
	}

	b := testutil.Committed(h.state, testutil.BlockSpec{
		Number:     spec.Number,
		ParentHash: parent,
		Time:       timestamp,
		Salt:       []byte(spec.Label),
		Calls:      calls,
	})

	h.blocks[spec.Label] = b
	h.labels[b.Hash()] = spec.Label
	h.tips[spec.Number] = b.Hash()
	return b, nil
}

func (h *Harness) executeQuery(ctx context.Context, index int, q *QueryStep, result *Result) error {
	filter, err := q.Filter.toFilter()
	if err != nil {
		return err
	}

	evs, err := h.store.Query(ctx, filter)
	if err != nil {
		return err
	}

	trace := TraceEvent{Step: index, Type: StepQuery, Events: h.views(evs)}
	for _, failure := range evaluateQuery(index, q, trace.Events) {
		result.AddError(failure.Error())
	}

	result.Trace = append(result.Trace, trace)
	return nil
}

func (h *Harness) views(evs []events.Event) []EventView {
	out := make([]EventView, 0, len(evs))
	for _, ev := range evs {
		label, ok := h.labels[ev.BlockHash]
		if !ok {
			label = ev.BlockHash.Hex()
		}
		topics := make([]string, len(ev.Topics))
		for i, t := range ev.Topics {
			topics[i] = t.Hex()
		}
		out = append(out, EventView{
			Block:      label,
			Number:     ev.BlockNumber,
			Tx:         ev.TransactionIndex,
			LogIndex:   ev.LogIndex,
			TxLogIndex: ev.TransactionLogIndex,
			Address:    strings.ToLower(ev.Address.Hex()),
			Topics:     topics,
			Data:       hexutil.Encode(ev.Data),
			Removed:    ev.Removed,
		})
	}
	return out
}
