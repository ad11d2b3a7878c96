package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aegisnetinc/touchstone-mcp/server"
)

// cloudClient talks to the auth REST routes of a cloud deployment.
type cloudClient struct {
	baseURL    string
	httpClient *http.Client
}

// newCloudClient derives the deployment root from the MCP endpoint URL.
func newCloudClient(serverURL string) *cloudClient {
	base := strings.TrimSuffix(serverURL, "/")
	base = strings.TrimSuffix(base, "/mcp")
	return &cloudClient{baseURL: base, httpClient: &http.Client{Timeout: 30 * time.Second}}
}

func (c *cloudClient) login(ctx context.Context, username, password string) (*server.LoginResult, error) {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", "application/json")
	result := &server.LoginResult{}
	if err = c.do(request, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *cloudClient) logout(ctx context.Context, token string) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/logout", nil)
	if err != nil {
		return err
	}
	request.Header.Set("Authorization", "Bearer "+token)
	return c.do(request, &map[string]bool{})
}

func (c *cloudClient) status(ctx context.Context, token string) (*server.SessionStatus, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/status", nil)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Authorization", "Bearer "+token)
	status := &server.SessionStatus{}
	if err = c.do(request, status); err != nil {
		return nil, err
	}
	return status, nil
}

func (c *cloudClient) do(request *http.Request, out interface{}) error {
	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("failed to reach %v: %w", c.baseURL, err)
	}
	defer response.Body.Close()
	data, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			return fmt.Errorf("%v", payload.Error)
		}
		return fmt.Errorf("%v returned status %v", c.baseURL, response.StatusCode)
	}
	return json.Unmarshal(data, out)
}
