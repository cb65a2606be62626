package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/shadow-hq/shadowlogs/internal/api"
	"github.com/shadow-hq/shadowlogs/internal/events"
	"github.com/shadow-hq/shadowlogs/internal/store"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Database       string
	Addresses      []string
	Topics         []string
	FromBlock      uint64
	ToBlock        uint64
	IncludeRemoved bool
}

// EventList is the output of query and block.
type EventList struct {
	Events []*api.RPCLog `json:"events"`
}

// WriteText prints one row per event.
func (l EventList) WriteText(w io.Writer) error {
	if len(l.Events) == 0 {
		_, err := fmt.Fprintln(w, "No events found.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BLOCK\tTX\tLOG\tADDRESS\tTOPIC0\tDATA\tREMOVED")
	for _, e := range l.Events {
		topic0 := "-"
		if e.Topics[0] != nil {
			topic0 = e.Topics[0].Hex()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%t\n",
			uint64(e.BlockNumber),
			e.TransactionIndex,
			e.LogIndex,
			e.Address.Hex(),
			topic0,
			e.Data.String(),
			e.Removed,
		)
	}
	return tw.Flush()
}

func newEventList(evs []events.Event) EventList {
	out := EventList{Events: make([]*api.RPCLog, 0, len(evs))}
	for _, e := range evs {
		out.Events = append(out.Events, api.NewRPCLog(e))
	}
	return out
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query stored shadow events",
		Long: `Query the shadow event store directly, without a running server.

Topics are positional: the first --topic matches topic0, the second topic1,
and so on. An empty --topic "" is a wildcard for its position.

Examples:
  shadowlogs query --db ./shadow.db --address 0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2
  shadowlogs query --db ./shadow.db --topic "" --topic 0x000...01 --from 19000000
  shadowlogs query --db ./shadow.db --include-removed --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringSliceVar(&opts.Addresses, "address", nil, "contract address (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Topics, "topic", nil, `topic by position, "" for any (repeatable, at most 4)`)
	cmd.Flags().Uint64Var(&opts.FromBlock, "from", 0, "first block, inclusive")
	cmd.Flags().Uint64Var(&opts.ToBlock, "to", 0, "last block, inclusive")
	cmd.Flags().BoolVar(&opts.IncludeRemoved, "include-removed", false, "include events of reverted blocks")

	return cmd
}

func runQuery(ctx context.Context, opts *QueryOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	filter, err := opts.filter(cmd)
	if err != nil {
		_ = formatter.Error(ErrCodeInvalidFlag, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid query", err)
	}

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	evs, err := st.Query(ctx, filter)
	if err != nil {
		return WrapExitError(ExitFailure, "query failed", err)
	}
	formatter.VerboseLog("%d event(s) matched", len(evs))

	return formatter.Success(newEventList(evs))
}

// filter builds the store filter. Block bounds only apply when the flag was
// given, so --from 0 still means block zero.
func (o *QueryOptions) filter(cmd *cobra.Command) (events.Filter, error) {
	var f events.Filter

	for _, a := range o.Addresses {
		a = strings.TrimSpace(a)
		if !common.IsHexAddress(a) {
			return f, fmt.Errorf("invalid address %q", a)
		}
		f.Addresses = append(f.Addresses, common.HexToAddress(a))
	}

	if len(o.Topics) > events.MaxTopics {
		return f, fmt.Errorf("at most %d topics are allowed, got %d", events.MaxTopics, len(o.Topics))
	}
	for i, t := range o.Topics {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		b, err := hexutil.Decode(t)
		if err != nil || len(b) != common.HashLength {
			return f, fmt.Errorf("invalid topic %q", t)
		}
		h := common.BytesToHash(b)
		f.Topics[i] = &h
	}

	if cmd.Flags().Changed("from") {
		from := o.FromBlock
		f.FromBlock = &from
	}
	if cmd.Flags().Changed("to") {
		to := o.ToBlock
		f.ToBlock = &to
	}
	f.IncludeRemoved = o.IncludeRemoved

	return f, f.Validate()
}

// openExisting opens a database that must already exist, so a typo in --db
// does not silently create an empty store.
func openExisting(path string) (*store.Store, error) {
	if err := requireFile(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}
