package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

// BlockOptions holds flags for the block command.
type BlockOptions struct {
	*RootOptions
	Database string
}

// NewBlockCommand creates the block command.
func NewBlockCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BlockOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "block <block-hash>",
		Short: "Show every stored event of one block",
		Long: `Show every row written for a block hash, including rows hidden by a revert.

Useful after a reorg to see what a block contributed and whether it is
currently live.

Examples:
  shadowlogs block --db ./shadow.db 0x9b3c...e1
  shadowlogs block --db ./shadow.db 0x9b3c...e1 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBlock(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runBlock(ctx context.Context, opts *BlockOptions, arg string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	b, err := hexutil.Decode(arg)
	if err != nil || len(b) != common.HashLength {
		_ = formatter.Error(ErrCodeInvalidFlag, fmt.Sprintf("invalid block hash %q", arg), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid block hash %q", arg))
	}
	hash := common.BytesToHash(b)

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	evs, err := st.BlockEvents(ctx, hash)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read block events", err)
	}
	formatter.VerboseLog("%d row(s) stored for %s", len(evs), hash.Hex())

	return formatter.Success(newEventList(evs))
}

func requireFile(path string) error {
	if path == "" {
		return errors.New("no path given")
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}
