// Package errs defines the stable error taxonomy shared by the MCP tools,
// the Touchstone client and the CLI. Every error carries a machine readable
// code so agents can branch on failures without parsing messages.
package errs

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Code identifies an error category. Codes are part of the tool contract and
// never change between releases.
type Code string

const (
	NotAuthenticated     Code = "NOT_AUTHENTICATED"
	AuthenticationFailed Code = "AUTHENTICATION_FAILED"
	SessionExpired       Code = "SESSION_EXPIRED"
	APIKeyExpired        Code = "TOUCHSTONE_API_KEY_EXPIRED"
	TestSetupNotFound    Code = "TEST_SETUP_NOT_FOUND"
	ExecutionNotFound    Code = "EXECUTION_NOT_FOUND"
	NetworkError         Code = "NETWORK_ERROR"
	RemoteError          Code = "TOUCHSTONE_ERROR"
	Unknown              Code = "UNKNOWN_ERROR"
)

// LoginCommand is the remediation clients are pointed at whenever stored
// credentials are missing or stale.
const LoginCommand = "touchstone-mcp login"

// Error is a coded error with optional remediation and structured details.
type Error struct {
	Code    Code
	Message string
	Details map[string]interface{}
}

func (e *Error) Error() string {
	return e.Message
}

// Action returns the remediation hint attached to the error, if any.
func (e *Error) Action() string {
	if e.Details == nil {
		return ""
	}
	action, _ := e.Details["action"].(string)
	return action
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewNotAuthenticated reports missing credentials.
func NewNotAuthenticated() *Error {
	return New(NotAuthenticated, fmt.Sprintf("Not authenticated. Run %q to authenticate.", LoginCommand))
}

// NewAuthenticationFailed reports rejected credentials.
func NewAuthenticationFailed() *Error {
	return New(AuthenticationFailed, "Authentication failed. Check your username and password.")
}

// NewSessionExpired reports a stale cloud session.
func NewSessionExpired() *Error {
	return New(SessionExpired, fmt.Sprintf("Session expired. Run %q to sign in again.", LoginCommand))
}

// NewAPIKeyExpired reports a stale Touchstone API key. The remediation command
// travels in Details so clients can surface it verbatim.
func NewAPIKeyExpired() *Error {
	err := New(APIKeyExpired, "Touchstone API key expired. Re-authenticate to get a fresh key.")
	err.Details = map[string]interface{}{"action": LoginCommand}
	return err
}

// NewTestSetupNotFound reports an unknown test setup name.
func NewTestSetupNotFound(name string) *Error {
	err := Newf(TestSetupNotFound, "Test setup %q not found.", name)
	err.Details = map[string]interface{}{"testSetupName": name}
	return err
}

// NewExecutionNotFound reports an unknown execution id.
func NewExecutionNotFound(executionID string) *Error {
	err := Newf(ExecutionNotFound, "Execution %s not found.", executionID)
	err.Details = map[string]interface{}{"executionId": executionID}
	return err
}

// NewNetwork reports a transport level failure reaching Touchstone.
func NewNetwork() *Error {
	return New(NetworkError, "Cannot reach Touchstone API. Check your network.")
}

// NewRemote reports a non-2xx Touchstone response that maps to no finer code.
func NewRemote(statusCode int) *Error {
	err := New(RemoteError, "Touchstone service error. Try again later.")
	err.Details = map[string]interface{}{"statusCode": statusCode}
	return err
}

// As extracts a coded error from an error chain.
func As(err error) (*Error, bool) {
	var coded *Error
	if errors.As(err, &coded) {
		return coded, true
	}
	return nil, false
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	coded, ok := As(err)
	return ok && coded.Code == code
}

// Payload is the wire form of an error returned inside a failed tool result.
type Payload struct {
	Error   string                 `json:"error"`
	Code    Code                   `json:"code"`
	Action  string                 `json:"action,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Format converts any error into the stable tool error payload. Errors
// without a code degrade to UNKNOWN_ERROR with the raw message preserved.
func Format(err error) *Payload {
	coded, ok := As(err)
	if !ok {
		return &Payload{Error: err.Error(), Code: Unknown}
	}
	return &Payload{
		Error:   coded.Message,
		Code:    coded.Code,
		Action:  coded.Action(),
		Details: coded.Details,
	}
}

// FormatJSON renders the error payload as indented JSON.
func FormatJSON(err error) string {
	data, merr := json.MarshalIndent(Format(err), "", "  ")
	if merr != nil {
		return fmt.Sprintf(`{"error":%q,"code":%q}`, err.Error(), Unknown)
	}
	return string(data)
}
