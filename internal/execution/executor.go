package execution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/params"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shadow-hq/shadowlogs/internal/chain"
	"github.com/shadow-hq/shadowlogs/internal/contracts"
	"github.com/shadow-hq/shadowlogs/internal/events"
	"github.com/shadow-hq/shadowlogs/internal/overlay"
)

// TxStatus is the shadow outcome of one transaction.
type TxStatus int

const (
	// TxSucceeded means the transaction ran to completion; its logs are kept.
	TxSucceeded TxStatus = iota
	// TxReverted means execution reverted or ran out of gas.
	TxReverted
	// TxInvalid means the transaction could not be applied at all under the
	// shadow state, for example because the sender can no longer pay.
	TxInvalid
)

func (s TxStatus) String() string {
	switch s {
	case TxSucceeded:
		return "succeeded"
	case TxReverted:
		return "reverted"
	case TxInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// TxOutcome records how a single transaction fared under shadow execution.
type TxOutcome struct {
	TxHash  common.Hash
	Index   int
	Status  TxStatus
	GasUsed uint64

	// Err is the revert reason or the rejection; nil on success.
	Err error
}

// BlockResult is the output of re-executing one block.
type BlockResult struct {
	BlockHash   common.Hash
	BlockNumber uint64
	Receipts    []TxOutcome

	// Events are in execution order with dense LogIndex values.
	Events []events.Event
}

// Failed counts receipts that did not succeed.
func (r *BlockResult) Failed() int {
	n := 0
	for _, rc := range r.Receipts {
		if rc.Status != TxSucceeded {
			n++
		}
	}
	return n
}

// Executor re-executes blocks against the overlay state.
//
// Thread-safety: an Executor holds no per-block state and may execute
// several blocks concurrently; the dispatcher does not.
type Executor struct {
	config    *params.ChainConfig
	registry  *contracts.Registry
	allEvents bool
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Option configures an Executor.
type Option func(*Executor)

// WithAllEvents keeps events from every address, not only shadowed ones.
func WithAllEvents() Option {
	return func(e *Executor) {
		e.allEvents = true
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithTracer sets the tracer. Default: the global otel provider.
func WithTracer(t trace.Tracer) Option {
	return func(e *Executor) {
		e.tracer = t
	}
}

// New creates an Executor for the given chain rules and overrides.
func New(config *params.ChainConfig, reg *contracts.Registry, opts ...Option) *Executor {
	e := &Executor{
		config:   config,
		registry: reg,
		logger:   slog.Default(),
		tracer:   otel.Tracer("github.com/shadow-hq/shadowlogs/internal/execution"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecuteBlock runs every transaction of b in order on a fresh overlay
// state and collects the logs of the ones that succeed.
//
// Returns a *StateAccessError if the state provider fails at any point, and
// an error wrapping ErrInvalidBlock if b is malformed. No partial result is
// returned with an error.
func (e *Executor) ExecuteBlock(ctx context.Context, b chain.CommittedBlock) (result *BlockResult, err error) {
	if b.Block == nil || b.State == nil {
		return nil, fmt.Errorf("%w: missing block or state", ErrInvalidBlock)
	}

	var (
		header    = b.Block.Header()
		txs       = b.Block.Transactions()
		blockHash = b.Block.Hash()
		number    = b.Block.NumberU64()
	)
	if len(b.Senders) != len(txs) {
		return nil, fmt.Errorf("%w: block %d has %d transactions but %d senders",
			ErrInvalidBlock, number, len(txs), len(b.Senders))
	}

	ctx, span := e.tracer.Start(ctx, "execution.ExecuteBlock", trace.WithAttributes(
		attribute.Int64("block.number", int64(number)),
		attribute.String("block.hash", blockHash.Hex()),
		attribute.Int("block.transactions", len(txs)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	accessErr := func(txIndex int, cause error) error {
		return &StateAccessError{BlockHash: blockHash, BlockNumber: number, TxIndex: txIndex, Err: cause}
	}

	statedb, err := state.New(b.PreStateRoot, overlay.NewDatabase(b.State, e.registry))
	if err != nil {
		return nil, accessErr(-1, fmt.Errorf("open state: %w", err))
	}

	hashes := newAncestorHashes(ctx, header, b.Hashes)
	evm := vm.NewEVM(newBlockContext(header, hashes), statedb, e.config, vm.Config{NoBaseFee: true})

	if err := e.systemCalls(header, evm); err != nil {
		return nil, accessErr(-1, err)
	}
	if err := statedb.Error(); err != nil {
		return nil, accessErr(-1, err)
	}

	start := time.Now()
	result = &BlockResult{
		BlockHash:   blockHash,
		BlockNumber: number,
		Receipts:    make([]TxOutcome, 0, len(txs)),
		Events:      []events.Event{},
	}

	var logIndex uint
	for i, tx := range txs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		outcome := TxOutcome{TxHash: tx.Hash(), Index: i}
		statedb.SetTxContext(tx.Hash(), i)

		snapshot := statedb.Snapshot()
		gp := new(core.GasPool).AddGas(tx.Gas())
		res, applyErr := core.ApplyMessage(evm, newMessage(tx, b.Senders[i]), gp)

		if err := statedb.Error(); err != nil {
			return nil, accessErr(i, err)
		}
		if err := hashes.err(); err != nil {
			return nil, accessErr(i, fmt.Errorf("resolve block hash: %w", err))
		}

		switch {
		case applyErr != nil:
			statedb.RevertToSnapshot(snapshot)
			outcome.Status = TxInvalid
			outcome.Err = applyErr
			e.logger.Debug("shadow transaction invalid",
				"block", number, "tx", tx.Hash(), "index", i, "error", applyErr)

		case res.Failed():
			statedb.Finalise(true)
			outcome.Status = TxReverted
			outcome.GasUsed = res.UsedGas
			outcome.Err = res.Err
			e.logger.Debug("shadow transaction reverted",
				"block", number, "tx", tx.Hash(), "index", i, "error", res.Err)

		default:
			statedb.Finalise(true)
			outcome.Status = TxSucceeded
			outcome.GasUsed = res.UsedGas

			logs := statedb.GetLogs(tx.Hash(), number, blockHash, header.Time)
			for txLogIndex, l := range logs {
				if e.allEvents || e.registry.Contains(l.Address) {
					result.Events = append(result.Events, events.FromLog(l, header.Time, logIndex, uint(txLogIndex)))
				}
				logIndex++
			}
		}

		result.Receipts = append(result.Receipts, outcome)
	}

	span.SetAttributes(
		attribute.Int("shadow.events", len(result.Events)),
		attribute.Int("shadow.failed_transactions", result.Failed()),
	)
	e.logger.Debug("block executed",
		"block", number,
		"hash", blockHash,
		"transactions", len(txs),
		"events", len(result.Events),
		"failed", result.Failed(),
		"duration", time.Since(start))

	return result, nil
}

// systemCalls applies the pre-transaction system contract updates so the
// shadow state starts where canonical processing does. A panic inside the
// EVM here means the underlying state is unusable.
func (e *Executor) systemCalls(header *types.Header, evm *vm.EVM) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("system call: %v", r)
		}
	}()

	if root := header.ParentBeaconRoot; root != nil {
		core.ProcessBeaconBlockRoot(*root, evm)
	}
	if e.config.IsPrague(header.Number, header.Time) {
		core.ProcessParentBlockHash(header.ParentHash, evm)
	}
	return nil
}
