package touchstone

import "strings"

// Result is the condensed execution report returned to MCP clients in place
// of the raw Touchstone payloads.
type Result struct {
	ExecutionID string         `json:"executionId"`
	Status      Status         `json:"status"`
	Summary     Summary        `json:"summary"`
	Scripts     []ScriptResult `json:"scripts"`
	Failures    []Failure      `json:"failures"`
}

// Summary aggregates test counts across all scripts.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// ScriptResult reports one script with its individual tests.
type ScriptResult struct {
	Name   string       `json:"name"`
	Status Status       `json:"status"`
	Tests  []TestResult `json:"tests"`
}

// TestResult is a single named test outcome.
type TestResult struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Failure pinpoints one failed assertion, or stands in for a failed script
// whose details were not fetched.
type Failure struct {
	Script      string `json:"script"`
	Test        string `json:"test"`
	Assertion   string `json:"assertion"`
	Error       string `json:"error,omitempty"`
	Description string `json:"description,omitempty"`
}

// Summarize condenses an execution detail plus optional per-script details
// (keyed by full script path) into a Result. It is a pure function of its
// inputs: summary counts come from the script status counts, failures come
// from failed or errored assertions, and scripts without fetched details
// contribute a single placeholder failure when they did not pass.
func Summarize(detail *ExecutionDetail, scriptDetails map[string]*ScriptDetail) *Result {
	ret := &Result{
		ExecutionID: detail.TestExecID.String(),
		Status:      detail.Status,
		Scripts:     []ScriptResult{},
		Failures:    []Failure{},
	}
	for _, script := range detail.TestScriptExecutions {
		name := shortScriptName(script.TestScript)
		total := script.NumberOfTests
		passed, failed := 0, 0
		if counts := script.StatusCounts; counts != nil {
			if counts.NumberOfTests > 0 {
				total = counts.NumberOfTests
			}
			passed = counts.NumberOfTestPasses + counts.NumberOfTestPassesWarn
			failed = counts.NumberOfTestFailures
		}
		ret.Summary.Total += total
		ret.Summary.Passed += passed
		ret.Summary.Failed += failed

		scriptDetail := scriptDetails[script.TestScript]
		entry := ScriptResult{Name: name, Status: script.Status, Tests: []TestResult{}}
		if scriptDetail == nil {
			if scriptFailed(script.Status) {
				ret.Failures = append(ret.Failures, Failure{
					Script:    name,
					Test:      "Unknown",
					Assertion: "Script failed (no details fetched)",
					Error:     "Status: " + string(script.Status),
				})
			}
			ret.Scripts = append(ret.Scripts, entry)
			continue
		}
		for _, item := range scriptDetail.TestItemExecutions {
			itemName := item.Name
			if itemName == "" {
				itemName = "Unknown Test"
			}
			itemStatus := string(item.Status)
			if itemStatus == "" {
				itemStatus = "Unknown"
			}
			entry.Tests = append(entry.Tests, TestResult{Name: itemName, Status: itemStatus})
			ret.Failures = append(ret.Failures, assertionFailures(name, item)...)
		}
		ret.Scripts = append(ret.Scripts, entry)
	}
	if skipped := ret.Summary.Total - ret.Summary.Passed - ret.Summary.Failed; skipped > 0 {
		ret.Summary.Skipped = skipped
	}
	return ret
}

func assertionFailures(scriptName string, item TestItemExecution) []Failure {
	var ret []Failure
	testName := item.Name
	if testName == "" {
		testName = "Unknown"
	}
	for _, operation := range item.OperationExecutions {
		for _, assertion := range operation.AssertionExecutions {
			if assertion.Status != StatusFailed && assertion.Status != StatusError {
				continue
			}
			summary := assertion.Summary
			if summary == "" {
				summary = "Assertion failed"
			}
			ret = append(ret, Failure{
				Script:      scriptName,
				Test:        testName,
				Assertion:   summary,
				Error:       assertion.Error,
				Description: assertion.Description,
			})
		}
	}
	return ret
}

func scriptFailed(status Status) bool {
	return status == StatusFailed || status == StatusError || status == StatusStopped
}

// shortScriptName trims a full Touchstone script path to its last segment.
func shortScriptName(path string) string {
	if index := strings.LastIndex(path, "/"); index >= 0 && index+1 < len(path) {
		return path[index+1:]
	}
	return path
}
