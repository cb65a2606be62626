package store

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/shadow-hq/shadowlogs/internal/events"
)

// AppendResult reports what an Append changed.
type AppendResult struct {
	// Inserted counts rows written for the first time.
	Inserted int

	// Restored counts rows of a previously invalidated block that became
	// live again because the same block hash was committed once more.
	Restored int
}

// Changed reports whether any row became live.
func (r AppendResult) Changed() int {
	return r.Inserted + r.Restored
}

// Append persists the events of one executed block atomically.
//
// Uses ON CONFLICT(block_hash, log_index) for idempotency: a redelivered
// live block changes nothing, while a block hash that was invalidated and
// is now canonical again has its rows un-flagged.
//
// Every event must carry blockHash and blockNumber; a mismatch aborts the
// whole append.
func (s *Store) Append(ctx context.Context, blockHash common.Hash, blockNumber uint64, evs []events.Event) (AppendResult, error) {
	var res AppendResult

	for i, ev := range evs {
		if ev.BlockHash != blockHash || ev.BlockNumber != blockNumber {
			return res, fmt.Errorf("append block %d (%s): event %d belongs to block %d (%s)",
				blockNumber, blockHash.Hex(), i, ev.BlockNumber, ev.BlockHash.Hex())
		}
		if len(ev.Topics) > events.MaxTopics {
			return res, fmt.Errorf("append block %d: event %d has %d topics", blockNumber, i, len(ev.Topics))
		}
	}
	if len(evs) == 0 {
		return res, nil
	}

	unlock := s.locks.Lock(blockHash)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("append: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	removed := make(map[uint]bool)
	rows, err := tx.QueryContext(ctx, `
		SELECT log_index FROM shadow_logs
		WHERE block_hash = ? AND removed = 1
		ORDER BY log_index ASC
	`, blockHash.Bytes())
	if err != nil {
		return res, fmt.Errorf("append: read removed rows: %w", err)
	}
	for rows.Next() {
		var idx int64
		if err := rows.Scan(&idx); err != nil {
			rows.Close()
			return res, fmt.Errorf("append: scan removed row: %w", err)
		}
		removed[uint(idx)] = true
	}
	if err := rows.Close(); err != nil {
		return res, fmt.Errorf("append: read removed rows: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO shadow_logs (
			block_hash, block_number, block_timestamp,
			transaction_hash, transaction_index, log_index, transaction_log_index,
			address, topic_0, topic_1, topic_2, topic_3, data,
			removed, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(block_hash, log_index) DO UPDATE
		SET removed = 0, updated_at = excluded.updated_at
		WHERE shadow_logs.removed = 1
	`)
	if err != nil {
		return res, fmt.Errorf("append: prepare: %w", err)
	}
	defer stmt.Close()

	now := s.now().Unix()
	for _, ev := range evs {
		data := []byte(ev.Data)
		if data == nil {
			data = []byte{}
		}
		result, err := stmt.ExecContext(ctx,
			blockHash.Bytes(),
			int64(blockNumber),
			int64(ev.BlockTimestamp),
			ev.TransactionHash.Bytes(),
			int64(ev.TransactionIndex),
			int64(ev.LogIndex),
			int64(ev.TransactionLogIndex),
			ev.Address.Bytes(),
			topicArg(ev, 0),
			topicArg(ev, 1),
			topicArg(ev, 2),
			topicArg(ev, 3),
			data,
			now,
			now,
		)
		if err != nil {
			return AppendResult{}, fmt.Errorf("append: write log %d: %w", ev.LogIndex, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return AppendResult{}, fmt.Errorf("append: rows affected: %w", err)
		}
		switch {
		case n == 0:
		case removed[ev.LogIndex]:
			res.Restored++
		default:
			res.Inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return AppendResult{}, fmt.Errorf("append: commit: %w", err)
	}

	s.metrics.rowsAppended.Add(float64(res.Inserted))
	s.metrics.rowsRestored.Add(float64(res.Restored))
	return res, nil
}

// topicArg returns the topic at position i as a bind argument, or nil for
// SQL NULL.
func topicArg(ev events.Event, i int) any {
	t := ev.Topic(i)
	if t == nil {
		return nil
	}
	return t.Bytes()
}

// Invalidate flags every live row of blockHash as removed and returns how
// many rows changed. Invalidating an unknown or already invalidated block
// is a no-op.
func (s *Store) Invalidate(ctx context.Context, blockHash common.Hash) (int, error) {
	unlock := s.locks.Lock(blockHash)
	defer unlock()

	result, err := s.db.ExecContext(ctx, `
		UPDATE shadow_logs
		SET removed = 1, updated_at = ?
		WHERE block_hash = ? AND removed = 0
	`, s.now().Unix(), blockHash.Bytes())
	if err != nil {
		return 0, fmt.Errorf("invalidate block %s: %w", blockHash.Hex(), err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("invalidate block %s: rows affected: %w", blockHash.Hex(), err)
	}

	s.metrics.rowsInvalidated.Add(float64(n))
	return int(n), nil
}
