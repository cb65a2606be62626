package store

import (
	"fmt"
	"strings"

	"github.com/shadow-hq/shadowlogs/internal/events"
)

const eventColumns = `block_hash, block_number, block_timestamp,
	transaction_hash, transaction_index, log_index, transaction_log_index,
	address, topic_0, topic_1, topic_2, topic_3, data, removed`

// orderBy is appended to every event read. block_hash breaks ties between
// removed and live rows of sibling blocks at the same height.
const orderBy = "ORDER BY block_number ASC, transaction_index ASC, log_index ASC, block_hash ASC"

// compileFilter converts a filter to parameterized SQL.
//
// Every value is bound through a ? placeholder; only column names and the
// fixed ORDER BY are part of the statement text.
func compileFilter(f events.Filter) (string, []any) {
	var (
		where  []string
		params []any
	)

	if !f.IncludeRemoved {
		where = append(where, "removed = 0")
	}

	if len(f.Addresses) > 0 {
		placeholders := make([]string, len(f.Addresses))
		for i, addr := range f.Addresses {
			placeholders[i] = "?"
			params = append(params, addr.Bytes())
		}
		where = append(where, fmt.Sprintf("address IN (%s)", strings.Join(placeholders, ", ")))
	}

	for i, topic := range f.Topics {
		if topic == nil {
			continue
		}
		where = append(where, fmt.Sprintf("topic_%d = ?", i))
		params = append(params, topic.Bytes())
	}

	if f.BlockHash != nil {
		where = append(where, "block_hash = ?")
		params = append(params, f.BlockHash.Bytes())
	}
	if f.FromBlock != nil {
		where = append(where, "block_number >= ?")
		params = append(params, int64(*f.FromBlock))
	}
	if f.ToBlock != nil {
		where = append(where, "block_number <= ?")
		params = append(params, int64(*f.ToBlock))
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(eventColumns)
	sb.WriteString(" FROM shadow_logs")
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString(" ")
	sb.WriteString(orderBy)

	return sb.String(), params
}
