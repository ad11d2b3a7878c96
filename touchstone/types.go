package touchstone

import "encoding/json"

// Status is a Touchstone execution status. Values mirror the service
// responses verbatim, including the embedded spaces.
type Status string

const (
	StatusNotStarted         Status = "Not Started"
	StatusRunning            Status = "Running"
	StatusPassed             Status = "Passed"
	StatusPassedWithWarnings Status = "PassedWithWarnings"
	StatusFailed             Status = "Failed"
	StatusStopped            Status = "Stopped"
	StatusError              Status = "Error"
	StatusOAuth2Authorize    Status = "OAuth2-Authorize"
	StatusWaitingForRequest  Status = "Waiting for Request"
)

// Terminal reports whether the execution reached a final state.
func (s Status) Terminal() bool {
	switch s {
	case StatusPassed, StatusPassedWithWarnings, StatusFailed, StatusStopped, StatusError:
		return true
	}
	return false
}

// Passing reports whether the status counts as a pass.
func (s Status) Passing() bool {
	return s == StatusPassed || s == StatusPassedWithWarnings
}

// authResponse is the authenticate payload; the key arrives under "API-Key".
type authResponse struct {
	APIKey string `json:"API-Key"`
}

type launchResponse struct {
	TestExecID json.Number `json:"testExecId"`
}

// ExecutionStatus is the lightweight poll response.
type ExecutionStatus struct {
	TestExecID json.Number `json:"testExecId"`
	Status     Status      `json:"status"`
	Message    string      `json:"message,omitempty"`
}

// StatusCounts aggregates per-script test outcomes.
type StatusCounts struct {
	NumberOfTests           int    `json:"numberOfTests"`
	NumberOfTestsNotStarted int    `json:"numberOfTestsNotStarted"`
	NumberOfTestsRunning    int    `json:"numberOfTestsRunning"`
	NumberOfTestsStopped    int    `json:"numberOfTestsStopped"`
	NumberOfTestPasses      int    `json:"numberOfTestPasses"`
	NumberOfTestPassesWarn  int    `json:"numberOfTestPassesWarn"`
	NumberOfTestFailures    int    `json:"numberOfTestFailures"`
	NumberOfTestsSkipped    int    `json:"numberOfTestsSkipped"`
	NumberOfTestsWaiting    int    `json:"numberOfTestsWaiting"`
	SuccessRate             string `json:"successRate,omitempty"`
}

// TestScriptExecution is one script entry inside an execution detail.
type TestScriptExecution struct {
	TestScript    string        `json:"testScript"`
	Status        Status        `json:"status"`
	StatusCounts  *StatusCounts `json:"statusCounts,omitempty"`
	NumberOfTests int           `json:"numberOfTests,omitempty"`
}

// ExecutionDetail is the per-execution detail response.
type ExecutionDetail struct {
	TestExecID           json.Number           `json:"testExecId"`
	Status               Status                `json:"status"`
	TestScriptExecutions []TestScriptExecution `json:"testScriptExecutions"`
}

// AssertionExecution is a single assertion outcome inside a test item.
type AssertionExecution struct {
	Status      Status `json:"status"`
	Summary     string `json:"summary,omitempty"`
	Error       string `json:"error,omitempty"`
	Warning     string `json:"warning,omitempty"`
	Description string `json:"description,omitempty"`
}

// OperationExecution is one operation with its assertions.
type OperationExecution struct {
	Status              Status               `json:"status"`
	Type                string               `json:"type,omitempty"`
	Resource            string               `json:"resource,omitempty"`
	AssertionExecutions []AssertionExecution `json:"assertionExecutions,omitempty"`
}

// TestItemExecution is a named test within a script.
type TestItemExecution struct {
	Name                string               `json:"name,omitempty"`
	Status              Status               `json:"status,omitempty"`
	Description         string               `json:"description,omitempty"`
	OperationExecutions []OperationExecution `json:"operationExecutions,omitempty"`
}

// ScriptDetail is the per-script detail response with the full
// item/operation/assertion tree.
type ScriptDetail struct {
	Status             Status              `json:"status"`
	TestScript         string              `json:"testScript,omitempty"`
	StatusCounts       *StatusCounts       `json:"statusCounts,omitempty"`
	SetupExecution     *TestItemExecution  `json:"setupExecution,omitempty"`
	TestItemExecutions []TestItemExecution `json:"testItemExecutions,omitempty"`
	TeardownExecution  *TestItemExecution  `json:"teardownExecution,omitempty"`
}
