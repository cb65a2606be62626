package api

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/shadow-hq/shadowlogs/internal/events"
)

// Namespace is the JSON-RPC namespace the API is registered under.
const Namespace = "shadow"

// EventReader queries stored events. Implemented by *store.Store.
type EventReader interface {
	Query(ctx context.Context, f events.Filter) ([]events.Event, error)
}

// BlockResolver resolves the block references a request may carry.
type BlockResolver interface {
	// LatestBlock returns the number "latest" refers to.
	LatestBlock(ctx context.Context) (uint64, error)
}

// RPCLog is one shadow_getLogs result entry.
type RPCLog struct {
	Address          common.Address  `json:"address"`
	BlockHash        common.Hash     `json:"blockHash"`
	BlockNumber      hexutil.Uint64  `json:"blockNumber"`
	Data             hexutil.Bytes   `json:"data"`
	LogIndex         string          `json:"logIndex"`
	Removed          bool            `json:"removed"`
	Topics           [4]*common.Hash `json:"topics"`
	TransactionHash  common.Hash     `json:"transactionHash"`
	TransactionIndex string          `json:"transactionIndex"`
}

// NewRPCLog converts a stored event.
func NewRPCLog(e events.Event) *RPCLog {
	l := &RPCLog{
		Address:          e.Address,
		BlockHash:        e.BlockHash,
		BlockNumber:      hexutil.Uint64(e.BlockNumber),
		Data:             hexutil.Bytes(e.Data),
		LogIndex:         strconv.FormatUint(uint64(e.LogIndex), 10),
		Removed:          e.Removed,
		TransactionHash:  e.TransactionHash,
		TransactionIndex: strconv.FormatUint(uint64(e.TransactionIndex), 10),
	}
	if l.Data == nil {
		l.Data = hexutil.Bytes{}
	}
	for i := range l.Topics {
		l.Topics[i] = e.Topic(i)
	}
	return l
}

// API implements the shadow namespace.
type API struct {
	events EventReader
	blocks BlockResolver
	logger *slog.Logger
}

// NewAPI creates the service. A nil logger means slog.Default().
func NewAPI(ev EventReader, blocks BlockResolver, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{events: ev, blocks: blocks, logger: logger}
}

// APIs returns the RPC services to register.
func APIs(api *API) []rpc.API {
	return []rpc.API{
		{
			Namespace: Namespace,
			Service:   api,
		},
	}
}

// GetLogs returns the live shadow events matching params, ordered by block
// number, transaction index and log index.
func (api *API) GetLogs(ctx context.Context, params GetLogsParams) ([]*RPCLog, error) {
	filter, err := api.filter(ctx, params)
	if err != nil {
		return nil, err
	}

	evs, err := api.events.Query(ctx, filter)
	if err != nil {
		api.logger.Error("shadow_getLogs query failed", "error", err)
		return nil, errInternal
	}

	out := make([]*RPCLog, 0, len(evs))
	for _, e := range evs {
		out = append(out, NewRPCLog(e))
	}
	return out, nil
}

// filter validates params into a store filter. A block hash selects that
// block's rows directly, so an unknown or reverted hash matches nothing.
func (api *API) filter(ctx context.Context, params GetLogsParams) (f events.Filter, err error) {
	if f.Addresses, err = parseAddresses(params.Address); err != nil {
		return f, err
	}
	if f.Topics, err = parseTopics(params.Topics); err != nil {
		return f, err
	}

	if params.BlockHash != nil {
		if params.FromBlock != nil || params.ToBlock != nil {
			return f, errBlockHashWithRange
		}
		hash, err := parseHash(*params.BlockHash)
		if err != nil {
			return f, invalidParams("invalid block hash %q", *params.BlockHash)
		}
		f.BlockHash = &hash
		return f, nil
	}

	// With one end missing, it defaults to latest.
	from, to := blockRef{latest: true}, blockRef{latest: true}
	if params.FromBlock != nil {
		if from, err = parseBlock(*params.FromBlock); err != nil {
			return f, err
		}
	}
	if params.ToBlock != nil {
		if to, err = parseBlock(*params.ToBlock); err != nil {
			return f, err
		}
	}

	var latest uint64
	if from.latest || to.latest {
		if latest, err = api.blocks.LatestBlock(ctx); err != nil {
			api.logger.Error("resolve latest block failed", "error", err)
			return f, errInternal
		}
	}
	fromN, toN := from.number, to.number
	if from.latest {
		fromN = latest
	}
	if to.latest {
		toN = latest
	}
	f.FromBlock, f.ToBlock = &fromN, &toN

	if err := f.Validate(); err != nil {
		return f, invalidParams("invalid block range: %v", err)
	}
	return f, nil
}
