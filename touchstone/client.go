// Package touchstone implements a typed client for the Touchstone
// conformance testing REST API, request throttling and result summarization.
package touchstone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aegisnetinc/touchstone-mcp/errs"
)

const (
	apiBasePath  = "/touchstone/api"
	apiKeyHeader = "API-Key"

	// sentinelExecutionID is probed by ValidateAPIKey; it never exists, so a
	// not-found answer proves the key was accepted.
	sentinelExecutionID = "0"
)

// Client calls the Touchstone REST API. The zero value is not usable; use New.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger attaches a logger for request level diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Touchstone API client for the given base URL.
func New(baseURL string, options ...Option) *Client {
	ret := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Authenticate exchanges a username and password for an API key.
func (c *Client) Authenticate(ctx context.Context, username, password string) (string, error) {
	var out authResponse
	err := c.do(ctx, http.MethodPost, "/authenticate", nil, "", &credentials{Email: username, Password: password}, &out)
	if err != nil {
		var status *statusError
		if errors.As(err, &status) {
			if status.code == http.StatusUnauthorized {
				return "", errs.NewAuthenticationFailed()
			}
			return "", errs.NewRemote(status.code)
		}
		return "", err
	}
	if out.APIKey == "" {
		return "", errs.NewAuthenticationFailed()
	}
	return out.APIKey, nil
}

type launchRequest struct {
	TestSetup string `json:"testSetup"`
}

// Launch starts an execution of the named test setup and returns the
// execution id as a string.
func (c *Client) Launch(ctx context.Context, apiKey, testSetupName string) (string, error) {
	var out launchResponse
	err := c.do(ctx, http.MethodPost, "/testExecution", nil, apiKey, &launchRequest{TestSetup: testSetupName}, &out)
	if err != nil {
		return "", c.mapStatus(err, func() *errs.Error {
			return errs.NewTestSetupNotFound(testSetupName)
		})
	}
	return out.TestExecID.String(), nil
}

// ExecutionStatus fetches the lightweight status of an execution.
func (c *Client) ExecutionStatus(ctx context.Context, apiKey, executionID string) (*ExecutionStatus, error) {
	var out ExecutionStatus
	err := c.do(ctx, http.MethodGet, "/testExecution/"+url.PathEscape(executionID), nil, apiKey, nil, &out)
	if err != nil {
		return nil, c.mapStatus(err, func() *errs.Error {
			return errs.NewExecutionNotFound(executionID)
		})
	}
	return &out, nil
}

// ExecutionDetail fetches the per-script breakdown of an execution.
func (c *Client) ExecutionDetail(ctx context.Context, apiKey, executionID string) (*ExecutionDetail, error) {
	var out ExecutionDetail
	err := c.do(ctx, http.MethodGet, "/testExecDetail/"+url.PathEscape(executionID), nil, apiKey, nil, &out)
	if err != nil {
		return nil, c.mapStatus(err, func() *errs.Error {
			return errs.NewExecutionNotFound(executionID)
		})
	}
	return &out, nil
}

// ScriptDetail fetches the item/operation/assertion tree for one script of
// an execution. The script is addressed by its full Touchstone path.
func (c *Client) ScriptDetail(ctx context.Context, apiKey, executionID, testScript string) (*ScriptDetail, error) {
	query := url.Values{}
	query.Set("testscript", testScript)
	var out ScriptDetail
	err := c.do(ctx, http.MethodGet, "/scriptExecDetail/"+url.PathEscape(executionID), query, apiKey, nil, &out)
	if err != nil {
		return nil, c.mapStatus(err, func() *errs.Error {
			return errs.NewExecutionNotFound(executionID)
		})
	}
	return &out, nil
}

// ValidateAPIKey probes a sentinel execution to check that the key is still
// accepted. A not-found answer means the key passed authentication; only an
// unauthorized answer invalidates it.
func (c *Client) ValidateAPIKey(ctx context.Context, apiKey string) error {
	var out ExecutionStatus
	err := c.do(ctx, http.MethodGet, "/testExecution/"+sentinelExecutionID, nil, apiKey, nil, &out)
	if err == nil {
		return nil
	}
	var status *statusError
	if errors.As(err, &status) && status.code == http.StatusUnauthorized {
		return errs.NewAPIKeyExpired()
	}
	if errs.Is(err, errs.NetworkError) {
		return err
	}
	return nil
}

// statusError carries a non-2xx HTTP status out of do.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("touchstone: status %d", e.code)
}

func (c *Client) mapStatus(err error, notFound func() *errs.Error) error {
	var status *statusError
	if !errors.As(err, &status) {
		return err
	}
	switch status.code {
	case http.StatusUnauthorized:
		return errs.NewAPIKeyExpired()
	case http.StatusNotFound:
		if notFound != nil {
			return notFound()
		}
	}
	return errs.NewRemote(status.code)
}

func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, apiKey string, body, out interface{}) error {
	URL := c.baseURL + apiBasePath + endpoint
	if len(query) > 0 {
		URL += "?" + query.Encode()
	}
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	request, err := http.NewRequestWithContext(ctx, method, URL, reader)
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	if apiKey != "" {
		request.Header.Set(apiKeyHeader, apiKey)
	}
	response, err := c.httpClient.Do(request)
	if err != nil {
		c.logger.Debug("touchstone request failed", zap.String("endpoint", endpoint), zap.Error(err))
		return errs.NewNetwork()
	}
	defer response.Body.Close()
	c.logger.Debug("touchstone request", zap.String("method", method), zap.String("endpoint", endpoint), zap.Int("status", response.StatusCode))
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return &statusError{code: response.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err = json.NewDecoder(response.Body).Decode(out); err != nil {
		return errs.Newf(errs.RemoteError, "Touchstone returned an unreadable response: %v", err)
	}
	return nil
}
