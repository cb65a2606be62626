package config

import (
	"time"

	"github.com/spf13/pflag"
)

// Defaults.
const (
	DefaultDB                = "shadow.db"
	DefaultContracts         = "shadow.json"
	DefaultHTTPAddr          = "127.0.0.1:8547"
	DefaultPollInterval      = 2 * time.Second
	DefaultChain             = "mainnet"
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultInvalidateRetries = 5
)

// AddFlags registers every configuration key on fs.
func AddFlags(fs *pflag.FlagSet) {
	fs.String(ConfigFileKey, "", "Path to a yaml, json or toml config file")

	// Storage
	fs.String(DBKey, DefaultDB, "Path to the SQLite event store")
	fs.String(ContractsKey, DefaultContracts, "Path to the shadow contract override file")

	// Chain following
	fs.String(RPCURLKey, "", "JSON-RPC endpoint of the node to follow")
	fs.String(ChainKey, DefaultChain, "Chain name: mainnet, sepolia or holesky")
	fs.Duration(PollIntervalKey, DefaultPollInterval, "Delay between head polls")
	fs.Uint64(ConfirmationsKey, 0, "Number of blocks to stay behind the head")
	fs.Bool(StoreAllEventsKey, false, "Store events from every address, not only shadowed ones")
	fs.Int(InvalidateRetriesKey, DefaultInvalidateRetries, "Retries for a failed reorg invalidation")

	// Serving
	fs.String(HTTPAddrKey, DefaultHTTPAddr, "Listen address for JSON-RPC, /metrics and /healthz")
	fs.StringSlice(CORSOriginsKey, []string{"*"}, "Allowed CORS origins")

	// Logging
	fs.String(LogLevelKey, DefaultLogLevel, "Log level: debug, info, warn or error")
	fs.String(LogFormatKey, DefaultLogFormat, "Log format: text or json")
	fs.String(LogFileKey, "", "Also write logs to this file, rotated")
}
