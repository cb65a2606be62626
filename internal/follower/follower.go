package follower

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/shadow-hq/shadowlogs/internal/chain"
	"github.com/shadow-hq/shadowlogs/internal/engine"
	"github.com/shadow-hq/shadowlogs/internal/store"
)

// ErrReorgTooDeep is returned when the node's chain shares no block with the
// follower's window.
var ErrReorgTooDeep = errors.New("reorg deeper than the follower window")

// Defaults for Config.
const (
	DefaultPollInterval  = 2 * time.Second
	DefaultWindow        = 128
	DefaultMaxBatch      = 32
	DefaultCodeCacheSize = 4096
)

// Config controls how the follower tracks the node.
type Config struct {
	// ChainID is the expected chain. Run fails if the node reports another
	// one. Nil accepts whatever the node reports.
	ChainID *big.Int

	// PollInterval is the delay between head polls.
	PollInterval time.Duration

	// Confirmations keeps the follower this many blocks behind the head.
	Confirmations uint64

	// Window is how many recent canonical blocks are remembered for fork
	// detection.
	Window int

	// MaxBatch caps the committed blocks in one notification while catching
	// up.
	MaxBatch int

	// CodeCacheSize is the number of contract codes cached by hash.
	CodeCacheSize int
}

func (c *Config) setDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.MaxBatch <= 0 {
		c.MaxBatch = DefaultMaxBatch
	}
	if c.CodeCacheSize <= 0 {
		c.CodeCacheSize = DefaultCodeCacheSize
	}
}

// CheckpointReader reads the last acknowledged notification.
// Implemented by *store.Store.
type CheckpointReader interface {
	Checkpoint(ctx context.Context) (store.Checkpoint, bool, error)
}

// Follower produces notifications from a JSON-RPC node. It implements
// chain.Feed.
//
// Thread-safety model: Run must be called from exactly one goroutine. Head
// is safe from any goroutine.
type Follower struct {
	client      Client
	cfg         Config
	checkpoints CheckpointReader
	hashes      *HashReader
	codes       *CodeCache
	window      *window
	signer      types.Signer
	logger      *slog.Logger
	newBackOff  func() backoff.BackOff

	head    atomic.Uint64
	hasHead atomic.Bool
}

// Option configures a Follower.
type Option func(*Follower)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(f *Follower) {
		f.logger = l
	}
}

// WithRetryBackOff sets the redelivery schedule for failed notifications.
// Default: unbounded exponential backoff.
func WithRetryBackOff(newBackOff func() backoff.BackOff) Option {
	return func(f *Follower) {
		f.newBackOff = newBackOff
	}
}

// New creates a follower. checkpoints may be nil, in which case following
// starts at the current head.
func New(client Client, cfg Config, checkpoints CheckpointReader, opts ...Option) (*Follower, error) {
	cfg.setDefaults()

	codes, err := NewCodeCache(cfg.CodeCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create code cache: %w", err)
	}

	f := &Follower{
		client:      client,
		cfg:         cfg,
		checkpoints: checkpoints,
		hashes:      NewHashReader(client),
		codes:       codes,
		window:      newWindow(cfg.Window),
		logger:      slog.Default(),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 0
			return b
		},
	}
	if cfg.ChainID != nil {
		f.signer = types.LatestSignerForChainID(cfg.ChainID)
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Head returns the highest block the follower has had acknowledged.
func (f *Follower) Head() (uint64, bool) {
	return f.head.Load(), f.hasHead.Load()
}

// Run follows the node until ctx is cancelled, sending each notification on
// out and waiting for its acknowledgement before moving on. Transient RPC
// failures are logged and retried on the next poll. It returns an error for
// a chain id mismatch, a reorg deeper than the window, or a notification
// that failed with a non-retryable error.
func (f *Follower) Run(ctx context.Context, out chan<- *chain.Delivery) error {
	if err := f.checkChainID(ctx); err != nil {
		return err
	}
	if err := f.resume(ctx, out); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	f.logger.Info("follower starting",
		"poll_interval", f.cfg.PollInterval,
		"confirmations", f.cfg.Confirmations,
	)

	ticker := time.NewTicker(f.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := f.poll(ctx, out); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			f.logger.Info("follower stopping")
			return nil
		case <-ticker.C:
		}
	}
}

func (f *Follower) checkChainID(ctx context.Context) error {
	id, err := f.client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("fetch chain id: %w", err)
	}
	if f.cfg.ChainID != nil && f.cfg.ChainID.Cmp(id) != 0 {
		return fmt.Errorf("node is on chain %s, configured for %s", id, f.cfg.ChainID)
	}
	if f.signer == nil {
		f.signer = types.LatestSignerForChainID(id)
	}
	return nil
}

// resume seeds the window from the stored checkpoint. A checkpoint that is
// no longer canonical is reverted before anything else is delivered.
func (f *Follower) resume(ctx context.Context, out chan<- *chain.Delivery) error {
	if f.checkpoints == nil {
		return nil
	}
	cp, ok, err := f.checkpoints.Checkpoint(ctx)
	if err != nil {
		return fmt.Errorf("read checkpoint: %w", err)
	}
	if !ok || cp.BlockHash == (common.Hash{}) {
		return nil
	}

	header, err := f.client.HeaderByNumber(ctx, new(big.Int).SetUint64(cp.BlockNumber))
	switch {
	case err == nil && header.Hash() == cp.BlockHash:
		f.window.reset(cp.BlockNumber, cp.BlockHash)
		f.setHead(cp.BlockNumber)
		f.logger.Info("resuming from checkpoint", "block", cp.BlockNumber, "hash", cp.BlockHash)
		return nil
	case err != nil && !errors.Is(err, ethereum.NotFound):
		return fmt.Errorf("fetch checkpoint block %d: %w", cp.BlockNumber, err)
	}

	f.logger.Warn("checkpoint block is no longer canonical", "block", cp.BlockNumber, "hash", cp.BlockHash)
	n := &chain.Notification{
		Reverted: []chain.RevertedBlock{{Hash: cp.BlockHash, Number: cp.BlockNumber}},
	}
	return f.deliver(ctx, out, n)
}

// poll delivers notifications until the window has caught up with the
// node. RPC failures end the poll without an error.
func (f *Follower) poll(ctx context.Context, out chan<- *chain.Delivery) error {
	for {
		n, err := f.next(ctx)
		switch {
		case errors.Is(err, ErrReorgTooDeep):
			return err
		case err != nil:
			f.logger.Warn("poll failed", "error", err)
			return nil
		case n == nil:
			return nil
		}

		if err := f.deliver(ctx, out, n); err != nil {
			return err
		}
		f.advance(n)
	}
}

// next builds the notification that moves the window to the node's current
// target block, or returns nil when there is nothing new.
func (f *Follower) next(ctx context.Context) (*chain.Notification, error) {
	head, err := f.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch head: %w", err)
	}
	if head.Number.Uint64() < f.cfg.Confirmations {
		return nil, nil
	}
	target := head.Number.Uint64() - f.cfg.Confirmations

	tip, ok := f.window.tip()
	if !ok {
		header, err := f.headerAt(ctx, target)
		if err != nil {
			return nil, err
		}
		f.window.reset(target, header.Hash())
		f.setHead(target)
		f.logger.Info("following from head", "block", target, "hash", header.Hash())
		return nil, nil
	}

	if limit := tip.number + uint64(f.cfg.MaxBatch); target > limit {
		target = limit
	}
	header, err := f.headerAt(ctx, target)
	if err != nil {
		return nil, err
	}
	if hash, ok := f.window.hash(target); ok && hash == header.Hash() {
		return nil, nil
	}

	// Walk the node's chain back to the newest block the window agrees on.
	var branch []*types.Header
	for cur := header; ; {
		number := cur.Number.Uint64()
		if hash, ok := f.window.hash(number); ok && hash == cur.Hash() {
			break
		}
		if number <= f.window.lowest() {
			return nil, fmt.Errorf("%w: block %d (%d blocks)", ErrReorgTooDeep, target, f.window.len())
		}
		branch = append(branch, cur)

		parent, err := f.client.HeaderByHash(ctx, cur.ParentHash)
		if err != nil {
			return nil, fmt.Errorf("fetch header %s: %w", cur.ParentHash.Hex(), err)
		}
		cur = parent
	}
	fork := branch[len(branch)-1].Number.Uint64() - 1

	n := &chain.Notification{}
	for _, e := range f.window.above(fork) {
		n.Reverted = append(n.Reverted, chain.RevertedBlock{Hash: e.hash, Number: e.number})
	}
	for i := len(branch) - 1; i >= 0; i-- {
		b, err := f.committed(ctx, branch[i])
		if err != nil {
			return nil, err
		}
		n.Committed = append(n.Committed, b)
	}
	return n, nil
}

func (f *Follower) headerAt(ctx context.Context, number uint64) (*types.Header, error) {
	header, err := f.client.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return nil, fmt.Errorf("fetch header %d: %w", number, err)
	}
	return header, nil
}

func (f *Follower) committed(ctx context.Context, header *types.Header) (chain.CommittedBlock, error) {
	block, err := f.client.BlockByHash(ctx, header.Hash())
	if err != nil {
		return chain.CommittedBlock{}, fmt.Errorf("fetch block %d: %w", header.Number, err)
	}

	senders := make([]common.Address, len(block.Transactions()))
	for i, tx := range block.Transactions() {
		from, err := types.Sender(f.signer, tx)
		if err != nil {
			return chain.CommittedBlock{}, fmt.Errorf("recover sender of tx %d in block %d: %w", i, block.NumberU64(), err)
		}
		senders[i] = from
	}

	parent := block.NumberU64()
	if parent > 0 {
		parent--
	}
	return chain.CommittedBlock{
		Block:        block,
		Senders:      senders,
		State:        NewRemoteState(ctx, f.client, parent, f.codes),
		PreStateRoot: types.EmptyRootHash,
		Hashes:       f.hashes,
	}, nil
}

// advance moves the window past an acknowledged notification.
func (f *Follower) advance(n *chain.Notification) {
	if len(n.Committed) > 0 {
		f.window.truncate(n.Committed[0].Number() - 1)
		for _, b := range n.Committed {
			f.window.push(b.Number(), b.Hash())
		}
	} else if len(n.Reverted) > 0 {
		number, _ := n.Tip()
		f.window.truncate(number)
	}
	if tip, ok := f.window.tip(); ok {
		f.setHead(tip.number)
	}
}

func (f *Follower) setHead(number uint64) {
	f.head.Store(number)
	f.hasHead.Store(true)
}

// deliver sends n and waits for its acknowledgement, redelivering while the
// failure is retryable.
func (f *Follower) deliver(ctx context.Context, out chan<- *chain.Delivery, n *chain.Notification) error {
	operation := func() error {
		done := make(chan error, 1)
		d := &chain.Delivery{Notification: n, Ack: func(err error) { done <- err }}

		select {
		case out <- d:
		case <-ctx.Done():
			return backoff.Permanent(ctx.Err())
		}

		select {
		case err := <-done:
			if err != nil && !engine.IsRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		case <-ctx.Done():
			return backoff.Permanent(ctx.Err())
		}
	}
	notify := func(err error, wait time.Duration) {
		f.logger.Warn("notification failed, redelivering",
			"id", n.ID,
			"kind", n.Kind(),
			"wait", wait,
			"error", err,
		)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(f.newBackOff(), ctx), notify); err != nil {
		return fmt.Errorf("deliver notification %s: %w", n.ID, err)
	}
	return nil
}
