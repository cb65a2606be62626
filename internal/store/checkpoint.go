package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Checkpoint records the last notification the dispatcher acknowledged.
type Checkpoint struct {
	NotificationID string
	BlockNumber    uint64
	BlockHash      common.Hash
	UpdatedAt      time.Time
}

// SaveCheckpoint replaces the stored checkpoint. UpdatedAt is set from the
// store clock.
func (s *Store) SaveCheckpoint(ctx context.Context, cp Checkpoint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoint (id, notification_id, block_number, block_hash, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			notification_id = excluded.notification_id,
			block_number = excluded.block_number,
			block_hash = excluded.block_hash,
			updated_at = excluded.updated_at
	`, cp.NotificationID, int64(cp.BlockNumber), cp.BlockHash.Bytes(), s.now().Unix())
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Checkpoint returns the stored checkpoint. ok is false if none was saved.
func (s *Store) Checkpoint(ctx context.Context) (cp Checkpoint, ok bool, err error) {
	var (
		number    int64
		hash      []byte
		updatedAt int64
	)
	err = s.reader.QueryRowContext(ctx, `
		SELECT notification_id, block_number, block_hash, updated_at
		FROM checkpoint
		WHERE id = 1
	`).Scan(&cp.NotificationID, &number, &hash, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("read checkpoint: %w", err)
	}

	cp.BlockNumber = uint64(number)
	cp.BlockHash = common.BytesToHash(hash)
	cp.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return cp, true, nil
}
