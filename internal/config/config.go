// Package config resolves process configuration from flags, SHADOWLOGS_
// environment variables and an optional config file. Explicitly set flags
// win over the environment, which wins over the file, which wins over flag
// defaults.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/params"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/shadow-hq/shadowlogs/internal/logging"
)

// Config is the resolved configuration.
type Config struct {
	DB        string
	Contracts string

	RPCURL            string
	Chain             string
	PollInterval      time.Duration
	Confirmations     uint64
	StoreAllEvents    bool
	InvalidateRetries int

	HTTPAddr    string
	CORSOrigins []string

	LogLevel  string
	LogFormat string
	LogFile   string
}

var chains = map[string]*params.ChainConfig{
	"mainnet": params.MainnetChainConfig,
	"sepolia": params.SepoliaChainConfig,
	"holesky": params.HoleskyChainConfig,
}

// NewViper binds fs into a viper instance, enables SHADOWLOGS_ environment
// variables and reads the config file named by --config, if any.
func NewViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if v.IsSet(ConfigFileKey) && v.GetString(ConfigFileKey) != "" {
		v.SetConfigFile(os.ExpandEnv(v.GetString(ConfigFileKey)))
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return v, nil
}

// FromViper reads a Config out of v.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		DB:                os.ExpandEnv(v.GetString(DBKey)),
		Contracts:         os.ExpandEnv(v.GetString(ContractsKey)),
		RPCURL:            v.GetString(RPCURLKey),
		Chain:             strings.ToLower(v.GetString(ChainKey)),
		PollInterval:      v.GetDuration(PollIntervalKey),
		Confirmations:     v.GetUint64(ConfirmationsKey),
		StoreAllEvents:    v.GetBool(StoreAllEventsKey),
		InvalidateRetries: v.GetInt(InvalidateRetriesKey),
		HTTPAddr:          v.GetString(HTTPAddrKey),
		CORSOrigins:       v.GetStringSlice(CORSOriginsKey),
		LogLevel:          v.GetString(LogLevelKey),
		LogFormat:         v.GetString(LogFormatKey),
		LogFile:           os.ExpandEnv(v.GetString(LogFileKey)),
	}
}

// Load resolves and validates the configuration for fs.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v, err := NewViper(fs)
	if err != nil {
		return nil, err
	}
	cfg := FromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.DB == "" {
		errs = append(errs, errors.New("db path is empty"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll-interval must be positive, got %s", c.PollInterval))
	}
	if _, ok := chains[c.Chain]; !ok {
		errs = append(errs, fmt.Errorf("unknown chain %q", c.Chain))
	}
	if err := logging.ValidateFormat(c.LogFormat); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.InvalidateRetries < 0 {
		errs = append(errs, fmt.Errorf("invalidate-retries must not be negative, got %d", c.InvalidateRetries))
	}
	return errors.Join(errs...)
}

// ChainConfig returns the go-ethereum chain configuration for c.Chain.
func (c *Config) ChainConfig() (*params.ChainConfig, error) {
	cc, ok := chains[c.Chain]
	if !ok {
		return nil, fmt.Errorf("unknown chain %q", c.Chain)
	}
	return cc, nil
}

// ChainID returns the chain id for c.Chain, or nil if the chain is unknown.
func (c *Config) ChainID() *big.Int {
	if cc, ok := chains[c.Chain]; ok {
		return new(big.Int).Set(cc.ChainID)
	}
	return nil
}

// Logging returns the logger options.
func (c *Config) Logging() logging.Options {
	return logging.Options{Level: c.LogLevel, Format: c.LogFormat, File: c.LogFile}
}
