package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/shadow-hq/shadowlogs/internal/api"
	"github.com/shadow-hq/shadowlogs/internal/config"
	"github.com/shadow-hq/shadowlogs/internal/contracts"
	"github.com/shadow-hq/shadowlogs/internal/engine"
	"github.com/shadow-hq/shadowlogs/internal/execution"
	"github.com/shadow-hq/shadowlogs/internal/follower"
	"github.com/shadow-hq/shadowlogs/internal/logging"
	"github.com/shadow-hq/shadowlogs/internal/server"
	"github.com/shadow-hq/shadowlogs/internal/store"
)

// Dialer connects to the node the follower tracks. The returned func
// releases the connection.
type Dialer func(ctx context.Context, url string) (follower.Client, func(), error)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions

	// Dial allows overriding the node connection (for testing).
	// If nil, defaults to an ethclient over JSON-RPC.
	Dial Dialer
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Follow a node and serve shadow_getLogs",
		Long: `Follow a node over JSON-RPC, re-execute every new canonical block with the
configured contract overrides, and serve the indexed events.

Configuration comes from flags, SHADOWLOGS_* environment variables and the
optional --config file, in that order of precedence. Without --rpc-url the
command only serves the existing database.

Exit codes:
  0 - Stopped by SIGINT or SIGTERM
  1 - The follower or the server failed
  2 - Invalid configuration or contracts file

Examples:
  shadowlogs run --rpc-url http://localhost:8545 --contracts ./shadow.json
  shadowlogs run --config ./shadowlogs.yaml --log-format json
  SHADOWLOGS_DB=/data/shadow.db shadowlogs run --rpc-url ws://node:8546`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShadow(cmd.Context(), opts, cmd)
		},
	}

	config.AddFlags(cmd.Flags())

	return cmd
}

func runShadow(parent context.Context, opts *RunOptions, cmd *cobra.Command) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if opts.Verbose {
		cfg.LogLevel = "debug"
	}

	logOpts := cfg.Logging()
	logOpts.Stderr = cmd.ErrOrStderr()
	logger, logCloser, err := logging.New(logOpts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to configure logging", err)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	reg, err := contracts.Load(cfg.Contracts)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid contracts file", err)
	}
	logger.Info("contract overrides loaded", "path", cfg.Contracts, "count", reg.Len())

	chainConfig, err := cfg.ChainConfig()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	logger.Info("opening database", "path", cfg.DB)
	st, err := store.Open(cfg.DB, store.WithRegisterer(metrics))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	execOpts := []execution.Option{execution.WithLogger(logger)}
	if cfg.StoreAllEvents {
		execOpts = append(execOpts, execution.WithAllEvents())
	}
	ex := execution.New(chainConfig, reg, execOpts...)

	eng, err := engine.New(st, ex,
		engine.WithLogger(logger),
		engine.WithRegisterer(metrics),
		engine.WithInvalidateRetries(cfg.InvalidateRetries),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create engine", err)
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		head   api.HeadSource
		follow *follower.Follower
	)
	if cfg.RPCURL != "" {
		dial := opts.Dial
		if dial == nil {
			dial = dialEthClient
		}
		client, closeClient, err := dial(ctx, cfg.RPCURL)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to connect to node", err)
		}
		defer closeClient()

		follow, err = follower.New(client, follower.Config{
			ChainID:       cfg.ChainID(),
			PollInterval:  cfg.PollInterval,
			Confirmations: cfg.Confirmations,
		}, st, follower.WithLogger(logger))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create follower", err)
		}
		head = follow
	} else {
		logger.Warn("no rpc-url configured, serving the existing database only")
	}

	srv, err := server.New(
		server.Config{Addr: cfg.HTTPAddr, CORSOrigins: cfg.CORSOrigins},
		api.APIs(api.NewAPI(st, api.NewStoreResolver(st, head), logger)),
		metrics,
		st,
		logger,
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create server", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if follow != nil {
		g.Go(func() error {
			return eng.Follow(gctx, follow)
		})
	}

	logger.Info("shadowlogs started",
		"chain", cfg.Chain,
		"http_addr", cfg.HTTPAddr,
		"shadowed", reg.Len(),
		"store_all_events", cfg.StoreAllEvents,
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "shadowlogs stopped", err)
	}

	logger.Info("shadowlogs stopped gracefully")
	return nil
}

func dialEthClient(ctx context.Context, url string) (follower.Client, func(), error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	return client, client.Close, nil
}
