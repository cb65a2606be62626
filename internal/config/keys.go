package config

// Configuration keys. Each is a flag name, a config file key and, upper-cased
// with dashes as underscores behind the SHADOWLOGS_ prefix, an environment
// variable.
const (
	ConfigFileKey        = "config"
	DBKey                = "db"
	ContractsKey         = "contracts"
	RPCURLKey            = "rpc-url"
	HTTPAddrKey          = "http-addr"
	PollIntervalKey      = "poll-interval"
	ConfirmationsKey     = "confirmations"
	ChainKey             = "chain"
	StoreAllEventsKey    = "store-all-events"
	CORSOriginsKey       = "cors-origins"
	LogLevelKey          = "log-level"
	LogFormatKey         = "log-format"
	LogFileKey           = "log-file"
	InvalidateRetriesKey = "invalidate-retries"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "SHADOWLOGS"
