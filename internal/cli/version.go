package cli

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Version and GitCommit are set by the build with -ldflags "-X".
var (
	Version   = "dev"
	GitCommit = ""
)

const gethModule = "github.com/ethereum/go-ethereum"

// VersionInfo is the output of the version command.
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	GoVersion string `json:"go_version"`
	Geth      string `json:"geth,omitempty"`
}

// WriteText prints the version on one line.
func (v VersionInfo) WriteText(w io.Writer) error {
	s := "shadowlogs " + v.Version
	if v.GitCommit != "" {
		s += "@" + v.GitCommit
	}
	s += " (" + v.GoVersion
	if v.Geth != "" {
		s += ", go-ethereum " + v.Geth
	}
	_, err := fmt.Fprintln(w, s+")")
	return err
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "version",
		Short:         "Print version information",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return formatter.Success(versionInfo())
		},
	}
}

func versionInfo() VersionInfo {
	info := VersionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, dep := range bi.Deps {
			if dep.Path == gethModule {
				info.Geth = dep.Version
				break
			}
		}
	}
	return info
}
