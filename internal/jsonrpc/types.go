package jsonrpc

import "encoding/json"

// Version is the only protocol version the server accepts.
const Version = "2.0"

// Request is one inbound call. A request without an "id" key is a
// notification and gets no response.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// Response answers a Request with either Result or Error set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// Notification is pushed by the server, for example job.progress.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Error is the error object of a Response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Protocol error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Generation error codes, in the server error range.
const (
	CodeJobFailed        = -32001
	CodeReviewFailed     = -32002
	CodeJobNotFound      = -32004
	CodeStoreUnavailable = -32005
	CodeJobNotReady      = -32006
)

var codeMessages = map[int]string{
	CodeParseError:       "Parse error",
	CodeInvalidRequest:   "Invalid request",
	CodeMethodNotFound:   "Method not found",
	CodeInvalidParams:    "Invalid params",
	CodeInternalError:    "Internal error",
	CodeJobFailed:        "Job failed",
	CodeReviewFailed:     "Secondary review failed",
	CodeJobNotFound:      "Job not found",
	CodeStoreUnavailable: "Job store unavailable",
	CodeJobNotReady:      "Job not ready",
}

// NewError builds an Error with the standard message for code.
func NewError(code int, data any) *Error {
	msg, ok := codeMessages[code]
	if !ok {
		msg = "Server error"
	}
	return &Error{Code: code, Message: msg, Data: data}
}

func ErrParseError(data any) *Error        { return NewError(CodeParseError, data) }
func ErrInvalidRequest(data any) *Error    { return NewError(CodeInvalidRequest, data) }
func ErrMethodNotFound(name string) *Error { return NewError(CodeMethodNotFound, name) }
func ErrInvalidParams(data any) *Error     { return NewError(CodeInvalidParams, data) }
func ErrInternalError(data any) *Error     { return NewError(CodeInternalError, data) }
func ErrJobNotFound(id string) *Error      { return NewError(CodeJobNotFound, id) }
func ErrStoreUnavailable(data any) *Error  { return NewError(CodeStoreUnavailable, data) }
func ErrJobNotReady(status string) *Error  { return NewError(CodeJobNotReady, status) }
func ErrJobFailed(step string) *Error      { return NewError(CodeJobFailed, step) }
func ErrReviewFailed(data any) *Error      { return NewError(CodeReviewFailed, data) }
