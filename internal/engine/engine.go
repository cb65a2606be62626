package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/shadow-hq/shadowlogs/internal/chain"
	"github.com/shadow-hq/shadowlogs/internal/events"
	"github.com/shadow-hq/shadowlogs/internal/execution"
	"github.com/shadow-hq/shadowlogs/internal/store"
)

// BlockExecutor re-executes one committed block. Implemented by
// *execution.Executor.
type BlockExecutor interface {
	ExecuteBlock(ctx context.Context, b chain.CommittedBlock) (*execution.BlockResult, error)
}

// Store is the persistence the engine drives. Implemented by *store.Store.
type Store interface {
	Append(ctx context.Context, blockHash common.Hash, blockNumber uint64, evs []events.Event) (store.AppendResult, error)
	Invalidate(ctx context.Context, blockHash common.Hash) (int, error)
	SaveCheckpoint(ctx context.Context, cp store.Checkpoint) error
	Checkpoint(ctx context.Context) (store.Checkpoint, bool, error)
}

// DefaultInvalidateRetries is how many times a failed invalidation is
// retried before the notification fails.
const DefaultInvalidateRetries = 5

// Engine is the notification dispatcher.
//
// Thread-safety model:
//   - Enqueue(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Process(): must not run concurrently with Run or itself
//
// Within one notification, reverted blocks are invalidated concurrently and
// committed blocks are executed and appended one at a time, in order.
type Engine struct {
	store    Store
	executor BlockExecutor
	queue    *deliveryQueue
	ids      IDGenerator
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *metrics

	registerer        prometheus.Registerer
	invalidateRetries int
	newBackOff        func() backoff.BackOff
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithIDGenerator sets the notification id generator.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithTracer sets the tracer. Default: the global otel provider.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// WithRegisterer registers the engine's collectors on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(e *Engine) {
		e.registerer = reg
	}
}

// WithInvalidateRetries sets how many times a failed invalidation is retried.
//
// Default: DefaultInvalidateRetries
func WithInvalidateRetries(n int) Option {
	return func(e *Engine) {
		e.invalidateRetries = n
	}
}

// WithRetryBackOff sets the backoff schedule for invalidation retries.
// Default: exponential backoff starting at 500ms.
func WithRetryBackOff(newBackOff func() backoff.BackOff) Option {
	return func(e *Engine) {
		e.newBackOff = newBackOff
	}
}

// New creates an Engine that executes blocks with ex and persists to st.
func New(st Store, ex BlockExecutor, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:             st,
		executor:          ex,
		queue:             newDeliveryQueue(),
		ids:               UUIDv7Generator{},
		logger:            slog.Default(),
		tracer:            otel.Tracer("github.com/shadow-hq/shadowlogs/internal/engine"),
		invalidateRetries: DefaultInvalidateRetries,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}

	for _, opt := range opts {
		opt(e)
	}

	m, err := newMetrics(e.registerer)
	if err != nil {
		return nil, fmt.Errorf("register engine metrics: %w", err)
	}
	e.metrics = m

	return e, nil
}

// Enqueue submits a delivery for processing by the Run loop.
// Thread-safe: may be called from any goroutine.
//
// Returns false if the engine has been stopped.
func (e *Engine) Enqueue(d *chain.Delivery) bool {
	return e.queue.Enqueue(d)
}

// Pending returns the number of deliveries waiting for the Run loop.
func (e *Engine) Pending() int {
	return e.queue.Len()
}

// Checkpoint returns the last acknowledged notification, as persisted.
func (e *Engine) Checkpoint(ctx context.Context) (store.Checkpoint, bool, error) {
	return e.store.Checkpoint(ctx)
}

// Run starts the single-consumer delivery loop.
// Blocks until context is cancelled or Stop() is called.
//
// Each delivery is processed to completion and then acknowledged exactly
// once, with nil or the *ProcessingError that stopped it. Deliveries still
// queued when Run returns are never acknowledged; the host redelivers them.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting")

	for {
		d, ok := e.queue.TryDequeue()
		if ok {
			e.handle(ctx, d)
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes when the queue is closed; a
			// coalesced signal for an already dequeued item is ignored.
			if e.queue.Closed() && e.queue.Len() == 0 {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue, which causes Run to return once it is drained.
func (e *Engine) Stop() {
	e.queue.Close()
}

// Follow runs feed, the Run loop, and the glue between them until ctx is
// cancelled or the feed fails.
func (e *Engine) Follow(ctx context.Context, feed chain.Feed) error {
	g, gctx := errgroup.WithContext(ctx)
	deliveries := make(chan *chain.Delivery)

	g.Go(func() error {
		return feed.Run(gctx, deliveries)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case d := <-deliveries:
				if !e.Enqueue(d) {
					return errors.New("engine stopped")
				}
			}
		}
	})
	g.Go(func() error {
		return e.Run(gctx)
	})

	err := g.Wait()
	if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (e *Engine) handle(ctx context.Context, d *chain.Delivery) {
	if d == nil {
		return
	}
	err := e.Process(ctx, d.Notification)
	if err != nil {
		e.logger.Error("notification failed", "error", err)
	}
	if d.Ack != nil {
		d.Ack(err)
	}
}

// Process handles one notification synchronously: reverted blocks first,
// then committed blocks in order, then the checkpoint.
//
// Returns nil or a *ProcessingError. On error the checkpoint is unchanged.
// Processing the same notification again is safe.
func (e *Engine) Process(ctx context.Context, n *chain.Notification) (err error) {
	if n == nil {
		return &ProcessingError{Code: ErrCodeInvalidNotification, Err: errors.New("nil notification")}
	}
	if n.ID == "" {
		n.ID = e.ids.Generate()
	}

	ctx, span := e.tracer.Start(ctx, "engine.ProcessNotification", trace.WithAttributes(
		attribute.String("notification.id", n.ID),
		attribute.String("notification.kind", n.Kind().String()),
		attribute.Int("notification.reverted", len(n.Reverted)),
		attribute.Int("notification.committed", len(n.Committed)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := validate(n); err != nil {
		return err
	}

	e.logger.Debug("processing notification",
		"id", n.ID,
		"kind", n.Kind(),
		"reverted", len(n.Reverted),
		"committed", len(n.Committed),
	)

	if err := e.invalidateAll(ctx, n); err != nil {
		return err
	}

	for _, b := range n.Committed {
		if err := e.commit(ctx, n.ID, b); err != nil {
			return err
		}
	}

	number, hash := n.Tip()
	cp := store.Checkpoint{NotificationID: n.ID, BlockNumber: number, BlockHash: hash}
	if err := e.store.SaveCheckpoint(ctx, cp); err != nil {
		return &ProcessingError{Code: ErrCodeStorage, NotificationID: n.ID, Err: err}
	}
	e.metrics.lastAcknowledged.Set(float64(number))

	e.logger.Info("notification processed",
		"id", n.ID,
		"kind", n.Kind(),
		"tip", number,
	)
	return nil
}

func validate(n *chain.Notification) error {
	if len(n.Reverted) == 0 && len(n.Committed) == 0 {
		return &ProcessingError{Code: ErrCodeInvalidNotification, NotificationID: n.ID, Err: errors.New("empty notification")}
	}
	for i, b := range n.Committed {
		if b.Block == nil {
			return &ProcessingError{
				Code:           ErrCodeInvalidNotification,
				NotificationID: n.ID,
				Err:            fmt.Errorf("committed block %d has no body", i),
			}
		}
	}
	return nil
}

// invalidateAll invalidates every reverted block concurrently and waits for
// all of them. Each invalidation is retried with backoff before giving up.
func (e *Engine) invalidateAll(ctx context.Context, n *chain.Notification) error {
	if len(n.Reverted) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range n.Reverted {
		g.Go(func() error {
			return e.invalidate(gctx, n.ID, r)
		})
	}
	return g.Wait()
}

func (e *Engine) invalidate(ctx context.Context, notificationID string, r chain.RevertedBlock) error {
	var affected int
	operation := func() error {
		n, err := e.store.Invalidate(ctx, r.Hash)
		if err != nil {
			return err
		}
		affected = n
		return nil
	}
	notify := func(err error, wait time.Duration) {
		e.metrics.invalidateRetries.Inc()
		e.logger.Warn("invalidation failed, retrying",
			"block", r.Number,
			"hash", r.Hash,
			"wait", wait,
			"error", err,
		)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(e.newBackOff(), uint64(max(e.invalidateRetries, 0))),
		ctx,
	)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return &ProcessingError{
			Code:           ErrCodeStorage,
			NotificationID: notificationID,
			BlockHash:      r.Hash,
			BlockNumber:    r.Number,
			Err:            fmt.Errorf("invalidate: %w", err),
		}
	}

	e.metrics.blocksInvalidated.Inc()
	e.logger.Info("block invalidated",
		"block", r.Number,
		"hash", r.Hash,
		"events", affected,
	)
	return nil
}

func (e *Engine) commit(ctx context.Context, notificationID string, b chain.CommittedBlock) error {
	fail := func(code ProcessingErrorCode, err error) error {
		e.metrics.blocksFailed.Inc()
		return &ProcessingError{
			Code:           code,
			NotificationID: notificationID,
			BlockHash:      b.Hash(),
			BlockNumber:    b.Number(),
			Err:            err,
		}
	}

	start := time.Now()
	res, err := e.executor.ExecuteBlock(ctx, b)
	if err != nil {
		switch {
		case execution.IsStateAccessError(err):
			return fail(ErrCodeStateAccess, err)
		case errors.Is(err, execution.ErrInvalidBlock):
			return fail(ErrCodeInvalidNotification, err)
		default:
			return fail(ErrCodeExecution, err)
		}
	}
	e.metrics.executionSeconds.Observe(time.Since(start).Seconds())

	for _, rc := range res.Receipts {
		switch rc.Status {
		case execution.TxReverted:
			e.metrics.transactionsFailed.WithLabelValues(reasonReverted).Inc()
		case execution.TxInvalid:
			e.metrics.transactionsFailed.WithLabelValues(reasonInvalid).Inc()
		}
	}

	appended, err := e.store.Append(ctx, res.BlockHash, res.BlockNumber, res.Events)
	if err != nil {
		return fail(ErrCodeStorage, err)
	}

	e.metrics.blocksProcessed.Inc()
	e.metrics.eventsAppended.Add(float64(appended.Changed()))
	e.logger.Info("block processed",
		"block", res.BlockNumber,
		"hash", res.BlockHash,
		"transactions", len(res.Receipts),
		"failed_transactions", res.Failed(),
		"events", len(res.Events),
		"inserted", appended.Inserted,
		"restored", appended.Restored,
	)
	return nil
}
