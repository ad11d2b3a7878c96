package server

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/viant/mcp-protocol/schema"
)

const (
	toolLaunch  = "launch_test_execution"
	toolStatus  = "get_test_status"
	toolResults = "get_test_results"
)

type launchInput struct {
	TestSetupName string `json:"testSetupName"`
}

type statusInput struct {
	ExecutionID string `json:"executionId"`
}

type resultsInput struct {
	ExecutionID string `json:"executionId"`
	Verbose     bool   `json:"verbose,omitempty"`
}

func strPtr(value string) *string {
	return &value
}

func toolDefinitions() []schema.Tool {
	return []schema.Tool{
		{
			Name:        toolLaunch,
			Description: strPtr("Start a Touchstone test execution using a pre-configured Test Setup. Returns an execution ID for tracking."),
			InputSchema: schema.ToolInputSchema{
				Type: "object",
				Properties: schema.ToolInputSchemaProperties{
					"testSetupName": {"type": "string", "description": "Name of the Test Setup configured in Touchstone UI"},
				},
				Required: []string{"testSetupName"},
			},
		},
		{
			Name:        toolStatus,
			Description: strPtr("Check the current status of a test execution."),
			InputSchema: schema.ToolInputSchema{
				Type: "object",
				Properties: schema.ToolInputSchemaProperties{
					"executionId": {"type": "string", "description": "The execution ID returned from launch_test_execution"},
				},
				Required: []string{"executionId"},
			},
		},
		{
			Name:        toolResults,
			Description: strPtr("Retrieve detailed results for a completed test execution, including passed tests and failure details."),
			InputSchema: schema.ToolInputSchema{
				Type: "object",
				Properties: schema.ToolInputSchemaProperties{
					"executionId": {"type": "string", "description": "The execution ID returned from launch_test_execution"},
					"verbose":     {"type": "boolean", "description": "Fetch per-script details for passing scripts too"},
				},
				Required: []string{"executionId"},
			},
		},
	}
}

// decodeInput maps tool arguments onto out, rejecting unknown fields so
// typos surface instead of being silently dropped.
func decodeInput(arguments map[string]interface{}, out interface{}) error {
	data, err := json.Marshal(arguments)
	if err != nil {
		return err
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err = decoder.Decode(out); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
