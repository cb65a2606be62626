package harness

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"gopkg.in/yaml.v3"

	"github.com/shadow-hq/shadowlogs/internal/engine"
	"github.com/shadow-hq/shadowlogs/internal/events"
)

// Scenario is one replay test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Contracts maps addresses to override bytecode, in the same shape as a
	// contracts file.
	Contracts map[string]string `yaml:"contracts,omitempty"`

	// Accounts seeds the canonical state every block executes against.
	Accounts map[string]AccountSpec `yaml:"accounts,omitempty"`

	// AllEvents persists events from every address, not only shadowed ones.
	AllEvents bool `yaml:"all_events,omitempty"`

	Steps []Step `yaml:"steps"`
}

// AccountSpec seeds one canonical account.
type AccountSpec struct {
	// Balance in wei, decimal or 0x hex.
	Balance string `yaml:"balance,omitempty"`
	Nonce   uint64 `yaml:"nonce,omitempty"`
	Code    string `yaml:"code,omitempty"`

	// Storage maps slot to value, both hex.
	Storage map[string]string `yaml:"storage,omitempty"`

	// FailStorage makes every storage read of this account fail with the
	// given message.
	FailStorage string `yaml:"fail_storage,omitempty"`
}

// Step is either a chain notification (revert and/or commit) or a query.
type Step struct {
	Revert []string    `yaml:"revert,omitempty"`
	Commit []BlockSpec `yaml:"commit,omitempty"`

	// ExpectError is the processing error code the notification must fail
	// with, e.g. STATE_ACCESS.
	ExpectError string `yaml:"expect_error,omitempty"`

	Query *QueryStep `yaml:"query,omitempty"`
}

// Step kinds, as reported in traces.
const (
	StepCommit  = "committed"
	StepRevert  = "reverted"
	StepReorg   = "reorged"
	StepQuery   = "query"
	stepUnknown = ""
)

// Kind classifies the step.
func (s Step) Kind() string {
	switch {
	case s.Query != nil && len(s.Commit) == 0 && len(s.Revert) == 0:
		return StepQuery
	case s.Query != nil:
		return stepUnknown
	case len(s.Commit) > 0 && len(s.Revert) > 0:
		return StepReorg
	case len(s.Commit) > 0:
		return StepCommit
	case len(s.Revert) > 0:
		return StepRevert
	default:
		return stepUnknown
	}
}

// BlockSpec describes one synthetic block.
type BlockSpec struct {
	Label  string `yaml:"label"`
	Number uint64 `yaml:"number"`

	// Parent names the parent block. Defaults to the latest block built one
	// height below.
	Parent string `yaml:"parent,omitempty"`

	// Time defaults to Number*12.
	Time uint64 `yaml:"time,omitempty"`

	Txs []TxSpec `yaml:"txs,omitempty"`
}

// isReference reports whether the spec carries only a label. A reference to
// an already built block recommits that exact block.
func (b BlockSpec) isReference() bool {
	return b.Number == 0 && b.Parent == "" && b.Time == 0 && len(b.Txs) == 0
}

// TxSpec describes one transaction.
type TxSpec struct {
	From  string `yaml:"from"`
	To    string `yaml:"to"`
	Data  string `yaml:"data,omitempty"`
	Gas   uint64 `yaml:"gas,omitempty"`
	Value string `yaml:"value,omitempty"`
}

// QueryStep runs a filter against the store and checks the result.
type QueryStep struct {
	Filter FilterSpec `yaml:"filter"`

	ExpectCount *int `yaml:"expect_count,omitempty"`

	// ExpectTopics lists the first topic of every result, in order.
	ExpectTopics []string `yaml:"expect_topics,omitempty"`

	// ExpectBlocks lists the block label of every result, in order.
	ExpectBlocks []string `yaml:"expect_blocks,omitempty"`
}

// FilterSpec is the YAML form of events.Filter. A null topic is a wildcard.
type FilterSpec struct {
	Addresses      []string  `yaml:"addresses,omitempty"`
	Topics         []*string `yaml:"topics,omitempty"`
	FromBlock      *uint64   `yaml:"from_block,omitempty"`
	ToBlock        *uint64   `yaml:"to_block,omitempty"`
	IncludeRemoved bool      `yaml:"include_removed,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks everything that can be checked without running
// the scenario, so a typo fails at load time rather than mid-replay.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	if len(s.Steps) == 0 {
		return errors.New("steps list is required and must be non-empty")
	}

	for addr, acct := range s.Accounts {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("accounts[%s]: invalid address", addr)
		}
		if err := validateAccount(acct); err != nil {
			return fmt.Errorf("accounts[%s]: %w", addr, err)
		}
	}

	labels := make(map[string]bool)
	for i, step := range s.Steps {
		if err := validateStep(step, labels); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	return nil
}

func validateAccount(a AccountSpec) error {
	if a.Balance != "" {
		if _, err := parseAmount(a.Balance); err != nil {
			return fmt.Errorf("balance: %w", err)
		}
	}
	if a.Code != "" {
		if _, err := hexutil.Decode(a.Code); err != nil {
			return fmt.Errorf("code: %w", err)
		}
	}
	for slot, value := range a.Storage {
		if _, err := parseWord(slot); err != nil {
			return fmt.Errorf("storage slot %s: %w", slot, err)
		}
		if _, err := parseWord(value); err != nil {
			return fmt.Errorf("storage value %s: %w", value, err)
		}
	}
	return nil
}

// validateStep checks one step. labels holds every label declared by earlier
// steps and is extended with this step's blocks.
func validateStep(step Step, labels map[string]bool) error {
	switch step.Kind() {
	case stepUnknown:
		if step.Query != nil {
			return errors.New("query cannot be combined with commit or revert")
		}
		return errors.New("one of commit, revert or query is required")
	case StepQuery:
		if step.ExpectError != "" {
			return errors.New("expect_error is not allowed on a query step")
		}
		return validateQuery(step.Query)
	}

	if step.ExpectError != "" && !knownErrorCode(step.ExpectError) {
		return fmt.Errorf("expect_error: unknown code %q", step.ExpectError)
	}

	for _, label := range step.Revert {
		if !labels[label] {
			return fmt.Errorf("revert: unknown block %q", label)
		}
	}

	for j, b := range step.Commit {
		if b.Label == "" {
			return fmt.Errorf("commit[%d]: label is required", j)
		}
		if labels[b.Label] {
			if b.isReference() {
				continue
			}
			return fmt.Errorf("commit[%d]: duplicate label %q", j, b.Label)
		}
		if b.Parent != "" && !labels[b.Parent] {
			return fmt.Errorf("commit[%d]: unknown parent %q", j, b.Parent)
		}
		for k, tx := range b.Txs {
			if err := validateTx(tx); err != nil {
				return fmt.Errorf("commit[%d].txs[%d]: %w", j, k, err)
			}
		}
		labels[b.Label] = true
	}
	return nil
}

func validateTx(tx TxSpec) error {
	if !common.IsHexAddress(tx.From) {
		return fmt.Errorf("invalid from address %q", tx.From)
	}
	if !common.IsHexAddress(tx.To) {
		return fmt.Errorf("invalid to address %q", tx.To)
	}
	if tx.Data != "" {
		if _, err := hexutil.Decode(tx.Data); err != nil {
			return fmt.Errorf("data: %w", err)
		}
	}
	if tx.Value != "" {
		if _, err := parseAmount(tx.Value); err != nil {
			return fmt.Errorf("value: %w", err)
		}
	}
	return nil
}

func validateQuery(q *QueryStep) error {
	if q.ExpectCount == nil && q.ExpectTopics == nil && q.ExpectBlocks == nil {
		return errors.New("query needs at least one of expect_count, expect_topics or expect_blocks")
	}
	if _, err := q.Filter.toFilter(); err != nil {
		return fmt.Errorf("query filter: %w", err)
	}
	for _, topic := range q.ExpectTopics {
		if _, err := parseWord(topic); err != nil {
			return fmt.Errorf("expect_topics: %w", err)
		}
	}
	return nil
}

func knownErrorCode(code string) bool {
	switch engine.ProcessingErrorCode(code) {
	case engine.ErrCodeStateAccess, engine.ErrCodeExecution, engine.ErrCodeStorage, engine.ErrCodeInvalidNotification:
		return true
	}
	return false
}

// toFilter converts the YAML form into a store filter.
func (f FilterSpec) toFilter() (events.Filter, error) {
	var out events.Filter
	if len(f.Topics) > events.MaxTopics {
		return out, fmt.Errorf("at most %d topics are allowed", events.MaxTopics)
	}
	for _, addr := range f.Addresses {
		if !common.IsHexAddress(addr) {
			return out, fmt.Errorf("invalid address %q", addr)
		}
		out.Addresses = append(out.Addresses, common.HexToAddress(addr))
	}
	for i, topic := range f.Topics {
		if topic == nil {
			continue
		}
		h, err := parseWord(*topic)
		if err != nil {
			return out, fmt.Errorf("topics[%d]: %w", i, err)
		}
		out.Topics[i] = &h
	}
	out.FromBlock = f.FromBlock
	out.ToBlock = f.ToBlock
	out.IncludeRemoved = f.IncludeRemoved
	return out, out.Validate()
}

// parseWord decodes a hex value of at most 32 bytes, left padded.
func parseWord(s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return common.Hash{}, err
	}
	if len(b) > common.HashLength {
		return common.Hash{}, fmt.Errorf("%s is longer than 32 bytes", s)
	}
	return common.BytesToHash(b), nil
}

// parseAmount accepts a decimal or 0x-prefixed integer.
func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 0)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}
