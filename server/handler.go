package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-protocol/schema"
	"go.uber.org/zap"

	"github.com/aegisnetinc/touchstone-mcp/analytics"
	"github.com/aegisnetinc/touchstone-mcp/auth"
	"github.com/aegisnetinc/touchstone-mcp/errs"
	"github.com/aegisnetinc/touchstone-mcp/touchstone"
)

// handler serves one MCP connection.
type handler struct {
	service *Service
}

func (h *handler) Initialize(_ context.Context, _ *schema.InitializeRequestParams, result *schema.InitializeResult) {
	result.Capabilities.Tools = &schema.ServerCapabilitiesTools{}
	result.Capabilities.Prompts = &schema.ServerCapabilitiesPrompts{}
}

func (h *handler) ListTools(_ context.Context, _ *jsonrpc.TypedRequest[*schema.ListToolsRequest]) (*schema.ListToolsResult, *jsonrpc.Error) {
	return &schema.ListToolsResult{Tools: toolDefinitions()}, nil
}

func (h *handler) CallTool(ctx context.Context, request *jsonrpc.TypedRequest[*schema.CallToolRequest]) (*schema.CallToolResult, *jsonrpc.Error) {
	params := request.Request.Params
	authCtx := &auth.Context{SessionToken: auth.SessionToken(ctx)}
	result, err := h.callWithRefresh(ctx, params.Name, params.Arguments, authCtx)
	if err != nil {
		h.service.tracker.Track(analytics.EventToolError, map[string]interface{}{
			"tool_name":     params.Name,
			"error_code":    string(errorCode(err)),
			"error_message": err.Error(),
		})
		h.service.logger.Warn("tool call failed",
			zap.String("tool", params.Name), zap.Error(err))
		return errorResult(err), nil
	}
	return result, nil
}

// callWithRefresh retries a tool exactly once after refreshing an expired
// API key, when the provider can refresh at all.
func (h *handler) callWithRefresh(ctx context.Context, name string, arguments map[string]interface{}, authCtx *auth.Context) (*schema.CallToolResult, error) {
	result, err := h.call(ctx, name, arguments, authCtx)
	if err == nil || !errs.Is(err, errs.APIKeyExpired) {
		return result, err
	}
	refresher, ok := h.service.provider.(auth.Refresher)
	if !ok {
		return result, err
	}
	apiKey, rerr := refresher.RefreshAPIKey(ctx)
	if rerr != nil || apiKey == "" {
		return result, err
	}
	h.service.logger.Info("retrying tool after api key refresh", zap.String("tool", name))
	return h.call(ctx, name, arguments, authCtx)
}

func (h *handler) call(ctx context.Context, name string, arguments map[string]interface{}, authCtx *auth.Context) (*schema.CallToolResult, error) {
	switch name {
	case toolLaunch:
		return h.launch(ctx, arguments, authCtx)
	case toolStatus:
		return h.status(ctx, arguments, authCtx)
	case toolResults:
		return h.results(ctx, arguments, authCtx)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

func (h *handler) launch(ctx context.Context, arguments map[string]interface{}, authCtx *auth.Context) (*schema.CallToolResult, error) {
	input := &launchInput{}
	if err := decodeInput(arguments, input); err != nil {
		return nil, err
	}
	if input.TestSetupName == "" {
		return nil, fmt.Errorf("testSetupName is required")
	}
	apiKey, err := h.service.provider.APIKey(ctx, authCtx)
	if err != nil {
		return nil, err
	}
	executionID, err := h.service.client.Launch(ctx, apiKey, input.TestSetupName)
	if err != nil {
		return nil, err
	}
	h.service.tracker.Track(analytics.EventTestLaunched, map[string]interface{}{
		"test_setup": input.TestSetupName,
	})
	return textResult(map[string]interface{}{
		"executionId": executionID,
		"status":      "Launched",
	})
}

// statusReport is the get_test_status response payload.
type statusReport struct {
	ExecutionID    string            `json:"executionId"`
	Status         touchstone.Status `json:"status"`
	Message        string            `json:"message,omitempty"`
	ActionRequired string            `json:"action_required,omitempty"`
	Instructions   []string          `json:"instructions,omitempty"`
}

// waitingInstructions walk the user through client-initiated tests, where
// Touchstone waits for the system under test to call in.
var waitingInstructions = []string{
	"Open the Touchstone UI and navigate to this Test Execution",
	`Find the "Endpoint URL" and "USER_KEY" values for this test`,
	"Configure your FHIR server to send requests to the provided endpoint URL",
	"Include the USER_KEY in request headers as specified by Touchstone",
	"Once your server sends the required requests, check the status again",
}

func (h *handler) status(ctx context.Context, arguments map[string]interface{}, authCtx *auth.Context) (*schema.CallToolResult, error) {
	input := &statusInput{}
	if err := decodeInput(arguments, input); err != nil {
		return nil, err
	}
	if input.ExecutionID == "" {
		return nil, fmt.Errorf("executionId is required")
	}
	apiKey, err := h.service.provider.APIKey(ctx, authCtx)
	if err != nil {
		return nil, err
	}
	if err = h.service.throttle.Wait(ctx, touchstone.ClassStatus, h.service.statusInterval); err != nil {
		return nil, err
	}
	status, err := h.service.client.ExecutionStatus(ctx, apiKey, input.ExecutionID)
	if err != nil {
		return nil, err
	}
	h.service.tracker.Track(analytics.EventTestPoll, map[string]interface{}{
		"execution_id": input.ExecutionID,
		"status":       string(status.Status),
	})
	report := &statusReport{
		ExecutionID: input.ExecutionID,
		Status:      status.Status,
		Message:     status.Message,
	}
	if status.Status == touchstone.StatusWaitingForRequest {
		report.ActionRequired = "This is a client-initiated test. Your FHIR server needs to send requests to Touchstone."
		report.Instructions = waitingInstructions
	}
	return textResult(report)
}

func (h *handler) results(ctx context.Context, arguments map[string]interface{}, authCtx *auth.Context) (*schema.CallToolResult, error) {
	input := &resultsInput{}
	if err := decodeInput(arguments, input); err != nil {
		return nil, err
	}
	if input.ExecutionID == "" {
		return nil, fmt.Errorf("executionId is required")
	}
	apiKey, err := h.service.provider.APIKey(ctx, authCtx)
	if err != nil {
		return nil, err
	}
	if err = h.service.throttle.Wait(ctx, touchstone.ClassDetail, h.service.detailInterval); err != nil {
		return nil, err
	}
	detail, err := h.service.client.ExecutionDetail(ctx, apiKey, input.ExecutionID)
	if err != nil {
		return nil, err
	}
	scriptDetails := map[string]*touchstone.ScriptDetail{}
	for _, script := range detail.TestScriptExecutions {
		if !input.Verbose && script.Status.Passing() {
			continue
		}
		if err = h.service.throttle.Wait(ctx, touchstone.ClassScriptDetail, h.service.detailInterval); err != nil {
			return nil, err
		}
		scriptDetail, err := h.service.client.ScriptDetail(ctx, apiKey, input.ExecutionID, script.TestScript)
		if err != nil {
			return nil, err
		}
		scriptDetails[script.TestScript] = scriptDetail
	}
	results := touchstone.Summarize(detail, scriptDetails)
	h.service.tracker.Track(analytics.EventTestCompleted, map[string]interface{}{
		"execution_id": input.ExecutionID,
		"status":       string(results.Status),
		"passed_count": results.Summary.Passed,
		"failed_count": results.Summary.Failed,
	})
	return textResult(results)
}

func textResult(payload interface{}) (*schema.CallToolResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, err
	}
	return &schema.CallToolResult{
		Content: []schema.CallToolResultContentElem{{Type: "text", Text: string(data)}},
	}, nil
}

// errorResult wraps a coded error payload into a failed tool result instead
// of a protocol error, so agents can read and act on the code.
func errorResult(err error) *schema.CallToolResult {
	isError := true
	return &schema.CallToolResult{
		IsError: &isError,
		Content: []schema.CallToolResultContentElem{{Type: "text", Text: errs.FormatJSON(err)}},
	}
}

func errorCode(err error) errs.Code {
	coded, ok := errs.As(err)
	if !ok {
		return errs.Unknown
	}
	return coded.Code
}

func (h *handler) OnNotification(_ context.Context, _ *jsonrpc.Notification) {}

// Implements gates dispatch to the tool and prompt surface.
func (h *handler) Implements(method string) bool {
	switch method {
	case schema.MethodInitialize,
		schema.MethodPing,
		schema.MethodToolsList,
		schema.MethodToolsCall,
		schema.MethodPromptsList,
		schema.MethodPromptsGet:
		return true
	}
	return false
}

func (h *handler) ListResources(_ context.Context, request *jsonrpc.TypedRequest[*schema.ListResourcesRequest]) (*schema.ListResourcesResult, *jsonrpc.Error) {
	return nil, jsonrpc.NewMethodNotFound(fmt.Sprintf("method %v not supported", request.Request.Method), nil)
}

func (h *handler) ListResourceTemplates(_ context.Context, request *jsonrpc.TypedRequest[*schema.ListResourceTemplatesRequest]) (*schema.ListResourceTemplatesResult, *jsonrpc.Error) {
	return nil, jsonrpc.NewMethodNotFound(fmt.Sprintf("method %v not supported", request.Request.Method), nil)
}

func (h *handler) ReadResource(_ context.Context, request *jsonrpc.TypedRequest[*schema.ReadResourceRequest]) (*schema.ReadResourceResult, *jsonrpc.Error) {
	return nil, jsonrpc.NewMethodNotFound(fmt.Sprintf("method %v not supported", request.Request.Method), nil)
}

func (h *handler) Subscribe(_ context.Context, request *jsonrpc.TypedRequest[*schema.SubscribeRequest]) (*schema.SubscribeResult, *jsonrpc.Error) {
	return nil, jsonrpc.NewMethodNotFound(fmt.Sprintf("method %v not supported", request.Request.Method), nil)
}

func (h *handler) Unsubscribe(_ context.Context, request *jsonrpc.TypedRequest[*schema.UnsubscribeRequest]) (*schema.UnsubscribeResult, *jsonrpc.Error) {
	return nil, jsonrpc.NewMethodNotFound(fmt.Sprintf("method %v not supported", request.Request.Method), nil)
}

func (h *handler) Complete(_ context.Context, request *jsonrpc.TypedRequest[*schema.CompleteRequest]) (*schema.CompleteResult, *jsonrpc.Error) {
	return nil, jsonrpc.NewMethodNotFound(fmt.Sprintf("method %v not supported", request.Request.Method), nil)
}

func (h *handler) SetLevel(_ context.Context, request *jsonrpc.TypedRequest[*schema.SetLevelRequest]) (*schema.SetLevelResult, *jsonrpc.Error) {
	return nil, jsonrpc.NewMethodNotFound(fmt.Sprintf("method %v not supported", request.Request.Method), nil)
}
