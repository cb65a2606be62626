package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/shadow-hq/shadowlogs/internal/events"
)

// Query returns the events matching f in (block_number, transaction_index,
// log_index) order.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) Query(ctx context.Context, f events.Filter) ([]events.Event, error) {
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	query, params := compileFilter(f)
	rows, err := s.reader.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	out := []events.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return out, nil
}

// BlockEvents returns every row written for blockHash, removed or not.
func (s *Store) BlockEvents(ctx context.Context, blockHash common.Hash) ([]events.Event, error) {
	rows, err := s.reader.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM shadow_logs
		WHERE block_hash = ?
		`+orderBy, blockHash.Bytes())
	if err != nil {
		return nil, fmt.Errorf("query block events: %w", err)
	}
	defer rows.Close()

	out := []events.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate block events: %w", err)
	}

	return out, nil
}

// LatestBlock returns the highest block number with live events.
// ok is false when the store holds no live events.
func (s *Store) LatestBlock(ctx context.Context) (number uint64, ok bool, err error) {
	var n sql.NullInt64
	err = s.reader.QueryRowContext(ctx, `
		SELECT MAX(block_number) FROM shadow_logs WHERE removed = 0
	`).Scan(&n)
	if err != nil {
		return 0, false, fmt.Errorf("latest block: %w", err)
	}
	if !n.Valid {
		return 0, false, nil
	}
	return uint64(n.Int64), true, nil
}

// Count returns the number of live and removed rows.
func (s *Store) Count(ctx context.Context) (live, removed int, err error) {
	err = s.reader.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN removed = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN removed = 1 THEN 1 ELSE 0 END), 0)
		FROM shadow_logs
	`).Scan(&live, &removed)
	if err != nil {
		return 0, 0, fmt.Errorf("count events: %w", err)
	}
	return live, removed, nil
}

func scanEvent(rows *sql.Rows) (events.Event, error) {
	var (
		ev                                events.Event
		blockHash, txHash, address, data  []byte
		topics                            [events.MaxTopics][]byte
		number, timestamp, txIndex        int64
		logIndex, txLogIndex, removedFlag int64
	)
	err := rows.Scan(
		&blockHash, &number, &timestamp,
		&txHash, &txIndex, &logIndex, &txLogIndex,
		&address, &topics[0], &topics[1], &topics[2], &topics[3], &data,
		&removedFlag,
	)
	if err != nil {
		return events.Event{}, fmt.Errorf("scan event: %w", err)
	}

	ev.BlockHash = common.BytesToHash(blockHash)
	ev.BlockNumber = uint64(number)
	ev.BlockTimestamp = uint64(timestamp)
	ev.TransactionHash = common.BytesToHash(txHash)
	ev.TransactionIndex = uint(txIndex)
	ev.LogIndex = uint(logIndex)
	ev.TransactionLogIndex = uint(txLogIndex)
	ev.Address = common.BytesToAddress(address)
	ev.Data = data
	if ev.Data == nil {
		ev.Data = []byte{}
	}
	ev.Removed = removedFlag == 1

	// Topics are written densely from position 0; the first NULL ends them.
	ev.Topics = []common.Hash{}
	for _, t := range topics {
		if t == nil {
			break
		}
		ev.Topics = append(ev.Topics, common.BytesToHash(t))
	}

	return ev, nil
}
