package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/shadow-hq/shadowlogs/internal/contracts"
)

// Override describes one validated override entry.
type Override struct {
	Address  string `json:"address"`
	CodeHash string `json:"code_hash"`
	Size     int    `json:"size"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool       `json:"valid"`
	Overrides []Override `json:"overrides"`
}

// WriteText prints one line per override.
func (r ValidationResult) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "✓ %d override(s) valid\n", len(r.Overrides))
	for _, o := range r.Overrides {
		fmt.Fprintf(w, "  %s  %s  %d bytes\n", o.Address, o.CodeHash, o.Size)
	}
	return nil
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <contracts-file>",
		Short: "Validate a contract override file",
		Long: `Validate a contract override file without starting the indexer.

The file maps contract addresses to replacement bytecode, as JSON or YAML.
Each entry is checked against the override schema and decoded; on success
the code hash that execution will report for each address is printed.

Exit codes:
  0 - File is valid
  1 - File is malformed
  2 - File not found`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	// contracts.Load treats a missing file as empty, which is right for the
	// indexer and wrong for an explicit validation request.
	if err := requireFile(path); err != nil {
		_ = formatter.Error(ErrCodeContracts, fmt.Sprintf("contracts file not found: %s", path), nil)
		return WrapExitError(ExitCommandError, "contracts file not found", err)
	}

	reg, err := contracts.Load(path)
	if err != nil {
		var ce *contracts.ConfigError
		if errors.As(err, &ce) {
			_ = formatter.Error(ErrCodeContracts, ce.Error(), map[string]string{
				"address": ce.Address,
				"reason":  ce.Reason,
			})
			return WrapExitError(ExitFailure, "invalid contracts file", err)
		}
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read contracts file", err)
	}

	result := ValidationResult{Valid: true, Overrides: []Override{}}
	for _, addr := range reg.Addresses() {
		code, _ := reg.Lookup(addr)
		hash, _ := reg.CodeHash(addr)
		formatter.VerboseLog("validated %s", addr.Hex())
		result.Overrides = append(result.Overrides, Override{
			Address:  addr.Hex(),
			CodeHash: hash.Hex(),
			Size:     len(code),
		})
	}

	return formatter.Success(result)
}
