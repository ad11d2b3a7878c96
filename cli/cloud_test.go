package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCloudClientBaseURL(t *testing.T) {
	testCases := []struct {
		serverURL string
		expect    string
	}{
		{serverURL: "https://ts-mcp.fly.dev/mcp", expect: "https://ts-mcp.fly.dev"},
		{serverURL: "https://ts-mcp.fly.dev/mcp/", expect: "https://ts-mcp.fly.dev"},
		{serverURL: "https://ts-mcp.fly.dev", expect: "https://ts-mcp.fly.dev"},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.expect, newCloudClient(testCase.serverURL).baseURL, testCase.serverURL)
	}
}

func TestCloudClientLogin(t *testing.T) {
	app := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/login", r.URL.Path)
		var body map[string]string
		require.Nil(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Invalid Touchstone credentials"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"sessionToken": "tok123"})
	}))
	defer app.Close()

	client := newCloudClient(app.URL + "/mcp")
	result, err := client.login(context.Background(), "dev@example.org", "good")
	require.Nil(t, err)
	assert.Equal(t, "tok123", result.SessionToken)

	_, err = client.login(context.Background(), "dev@example.org", "bad")
	require.NotNil(t, err)
	assert.Equal(t, "Invalid Touchstone credentials", err.Error())
}
