package proxy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/viant/jsonrpc"
)

// CodeAuthRequired is returned to the stdio client when the cloud server
// rejects the session token.
const CodeAuthRequired = -32000

const authRequiredMessage = "Authentication required. Run: touchstone-mcp login"

// statusCoder is matched against transport errors that carry an HTTP status.
type statusCoder interface {
	StatusCode() int
}

// classifyUpstreamError maps a transport failure onto a JSON-RPC error the
// stdio client can act on. Auth rejections get a dedicated code so clients
// can prompt for a re-login; everything else surfaces as an internal error.
func classifyUpstreamError(err error) *jsonrpc.Error {
	if isAuthError(err) {
		return &jsonrpc.Error{Code: CodeAuthRequired, Message: authRequiredMessage}
	}
	return jsonrpc.NewInternalError(fmt.Sprintf("Cloud server error: %v", err), nil)
}

func isAuthError(err error) bool {
	var coder statusCoder
	if errors.As(err, &coder) {
		code := coder.StatusCode()
		return code == 401 || code == 403
	}
	message := strings.ToLower(err.Error())
	for _, marker := range []string{"401", "403", "unauthorized", "authentication"} {
		if strings.Contains(message, marker) {
			return true
		}
	}
	return false
}
