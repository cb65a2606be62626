package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Database string
}

// CheckpointStatus is the last acknowledged notification.
type CheckpointStatus struct {
	NotificationID string    `json:"notification_id"`
	BlockNumber    uint64    `json:"block_number"`
	BlockHash      string    `json:"block_hash"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// StatusResult is the output of the status command.
type StatusResult struct {
	Checkpoint    *CheckpointStatus `json:"checkpoint"`
	LatestBlock   *uint64           `json:"latest_block"`
	LiveEvents    int               `json:"live_events"`
	RemovedEvents int               `json:"removed_events"`
}

// WriteText prints the status as aligned key/value lines.
func (s StatusResult) WriteText(w io.Writer) error {
	if s.Checkpoint == nil {
		fmt.Fprintln(w, "Checkpoint:      none")
	} else {
		fmt.Fprintf(w, "Checkpoint:      block %d (%s)\n", s.Checkpoint.BlockNumber, s.Checkpoint.BlockHash)
		fmt.Fprintf(w, "Notification:    %s\n", s.Checkpoint.NotificationID)
		fmt.Fprintf(w, "Updated:         %s\n", s.Checkpoint.UpdatedAt.UTC().Format(time.RFC3339))
	}
	if s.LatestBlock == nil {
		fmt.Fprintln(w, "Latest block:    none")
	} else {
		fmt.Fprintf(w, "Latest block:    %d\n", *s.LatestBlock)
	}
	_, err := fmt.Fprintf(w, "Events:          %d live, %d removed\n", s.LiveEvents, s.RemovedEvents)
	return err
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the checkpoint and index size",
		Long: `Show the last acknowledged notification, the highest block with live events
and the number of stored rows.

Examples:
  shadowlogs status --db ./shadow.db
  shadowlogs status --db ./shadow.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runStatus(ctx context.Context, opts *StatusOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var result StatusResult

	cp, ok, err := st.Checkpoint(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read checkpoint", err)
	}
	if ok {
		result.Checkpoint = &CheckpointStatus{
			NotificationID: cp.NotificationID,
			BlockNumber:    cp.BlockNumber,
			BlockHash:      cp.BlockHash.Hex(),
			UpdatedAt:      cp.UpdatedAt,
		}
	}

	latest, ok, err := st.LatestBlock(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read latest block", err)
	}
	if ok {
		result.LatestBlock = &latest
	}

	result.LiveEvents, result.RemovedEvents, err = st.Count(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to count events", err)
	}

	return formatter.Success(result)
}
