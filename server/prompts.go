package server

import (
	"context"
	"fmt"

	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-protocol/schema"
)

const (
	promptRunTests     = "run-tests"
	promptCheckResults = "check-results"
)

func boolPtr(value bool) *bool {
	return &value
}

func promptDefinitions() []schema.Prompt {
	return []schema.Prompt{
		{
			Name:        promptRunTests,
			Description: strPtr("Execute a Touchstone test setup and return results when complete. Auto-polls until finished."),
			Arguments: []schema.PromptArgument{
				{
					Name:        "testSetupName",
					Description: strPtr("Name of the Test Setup configured in Touchstone UI"),
					Required:    boolPtr(true),
				},
			},
		},
		{
			Name:        promptCheckResults,
			Description: strPtr("Check results for a previous test execution by ID."),
			Arguments: []schema.PromptArgument{
				{
					Name:        "executionId",
					Description: strPtr("The execution ID from a previous test run"),
					Required:    boolPtr(true),
				},
			},
		},
	}
}

func runTestsPrompt(testSetupName string) string {
	return fmt.Sprintf(`Run the Touchstone test setup named %q.

Steps:
1. Use the launch_test_execution tool with testSetupName=%q
2. Poll get_test_status every 4 seconds until status is not "Running" or "Not Started"
3. Once complete, use get_test_results to get detailed results
4. Present a summary: total tests, passed, failed, and list any failures with details

If not authenticated, prompt the user to authenticate first.`, testSetupName, testSetupName)
}

func checkResultsPrompt(executionID string) string {
	return fmt.Sprintf(`Check the results for Touchstone test execution ID %q.

Steps:
1. Use get_test_status to check if the execution is complete
2. If complete, use get_test_results to get detailed results
3. If still running, report the current status
4. Present a summary of results if available

If not authenticated, prompt the user to authenticate first.`, executionID)
}

func (h *handler) ListPrompts(_ context.Context, _ *jsonrpc.TypedRequest[*schema.ListPromptsRequest]) (*schema.ListPromptsResult, *jsonrpc.Error) {
	return &schema.ListPromptsResult{Prompts: promptDefinitions()}, nil
}

func (h *handler) GetPrompt(_ context.Context, request *jsonrpc.TypedRequest[*schema.GetPromptRequest]) (*schema.GetPromptResult, *jsonrpc.Error) {
	params := request.Request.Params
	var text string
	switch params.Name {
	case promptRunTests:
		text = runTestsPrompt(params.Arguments["testSetupName"])
	case promptCheckResults:
		text = checkResultsPrompt(params.Arguments["executionId"])
	default:
		return nil, jsonrpc.NewMethodNotFound(fmt.Sprintf("unknown prompt: %v", params.Name), nil)
	}
	return &schema.GetPromptResult{
		Messages: []schema.PromptMessage{
			{
				Role:    schema.RoleUser,
				Content: schema.PromptMessageContent{Type: "text", Text: text},
			},
		},
	}, nil
}
