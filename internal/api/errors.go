package api

import "fmt"

// JSON-RPC error codes returned by shadow_getLogs.
const (
	CodeInvalidParams      = -32602
	CodeInternal           = -32000
	CodeBlockHashWithRange = -32001
	CodeTooManyTopics      = 32002
)

// Error is a structured JSON-RPC error. It implements rpc.Error, so the
// server reports Code instead of the generic -32000.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// ErrorCode returns the JSON-RPC error code.
func (e *Error) ErrorCode() int {
	return e.Code
}

func invalidParams(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf(format, args...)}
}

var (
	errTooManyTopics = &Error{
		Code:    CodeTooManyTopics,
		Message: "Only up to four topics are allowed",
	}
	errBlockHashWithRange = &Error{
		Code:    CodeBlockHashWithRange,
		Message: "Parameters fromBlock and toBlock cannot be used if blockHash parameter is present",
	}
	errInternal = &Error{Code: CodeInternal, Message: "internal error"}
)
