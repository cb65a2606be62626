package harness

// TraceEvent records the outcome of one step.
type TraceEvent struct {
	Step int    `json:"step"`
	Type string `json:"type"`

	// Notification steps.
	Notification string   `json:"notification,omitempty"`
	Reverted     []string `json:"reverted,omitempty"`
	Committed    []string `json:"committed,omitempty"`
	Error        string   `json:"error,omitempty"`

	// Events holds the rows written for the committed blocks, or the query
	// result.
	Events []EventView `json:"events"`
}

// EventView is a hash-free rendering of a stored event. Blocks are named by
// scenario label and addresses are lower case.
type EventView struct {
	Block      string   `json:"block"`
	Number     uint64   `json:"number"`
	Tx         uint     `json:"tx"`
	LogIndex   uint     `json:"log_index"`
	TxLogIndex uint     `json:"tx_log_index"`
	Address    string   `json:"address"`
	Topics     []string `json:"topics"`
	Data       string   `json:"data"`
	Removed    bool     `json:"removed,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step met its expectations.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
