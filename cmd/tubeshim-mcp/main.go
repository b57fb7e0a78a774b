package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// apiError mirrors the error object of every tubeshim API response.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type classifyResponse struct {
	Success bool      `json:"success"`
	Route   string    `json:"route"`
	Error   *apiError `json:"error"`
}

type transformResponse struct {
	Success bool      `json:"success"`
	Route   string    `json:"route"`
	Body    string    `json:"body"`
	Removed int       `json:"removed"`
	Error   *apiError `json:"error"`
}

type settingsResponse struct {
	Success  bool `json:"success"`
	Settings struct {
		HideShorts bool `json:"hide_shorts"`
	} `json:"settings"`
	Error *apiError `json:"error"`
}

type navigateResponse struct {
	Success  bool      `json:"success"`
	FinalURL string    `json:"final_url"`
	Title    string    `json:"title"`
	Error    *apiError `json:"error"`
}

func main() {
	apiURL := os.Getenv("TUBESHIM_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	// Optional: only needed when the API runs with TUBESHIM_AUTH_ENABLED.
	apiKey := os.Getenv("TUBESHIM_API_KEY")

	if err := server.ServeStdio(newServer(apiURL, apiKey)); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func newServer(apiURL, apiKey string) *server.MCPServer {
	s := server.NewMCPServer(
		"tubeshim",
		"0.1.0",
		server.WithToolCapabilities(false),
	)

	classifyTool := mcp.NewTool("classify_url",
		mcp.WithDescription("Classify a backend API URL as 'player', 'search' or 'none', the way the response interceptor does."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The request URL to classify"),
		),
	)
	s.AddTool(classifyTool, handleClassify(apiURL, apiKey))

	transformTool := mcp.NewTool("transform_document",
		mcp.WithDescription("Rewrite a raw backend response document: strip ad payload fields from a player response, or drop short-form entries from a search response."),
		mcp.WithString("route",
			mcp.Required(),
			mcp.Description("Which transform to apply"),
			mcp.Enum("player", "search"),
		),
		mcp.WithString("body",
			mcp.Required(),
			mcp.Description("The raw JSON response text"),
		),
	)
	s.AddTool(transformTool, handleTransform(apiURL, apiKey))

	getSettingsTool := mcp.NewTool("get_settings",
		mcp.WithDescription("Show the interceptor's current eligibility settings."),
	)
	s.AddTool(getSettingsTool, handleGetSettings(apiURL, apiKey))

	setHideShortsTool := mcp.NewTool("set_hide_shorts",
		mcp.WithDescription("Turn short-form filtering of intercepted search results on or off."),
		mcp.WithBoolean("enabled",
			mcp.Required(),
			mcp.Description("true to remove short-form entries from search results"),
		),
	)
	s.AddTool(setHideShortsTool, handleSetHideShorts(apiURL, apiKey))

	navigateTool := mcp.NewTool("navigate",
		mcp.WithDescription("Load a URL in the managed browser tab. Requires the service to run with TUBESHIM_BROWSER=true."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The page to open"),
		),
	)
	s.AddTool(navigateTool, handleNavigate(apiURL, apiKey))

	return s
}

// apiCall sends a request to the tubeshim API and returns the response body.
func apiCall(ctx context.Context, client *http.Client, method, apiURL, apiKey, path string, payload interface{}) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func errorText(fallback string, e *apiError) string {
	if e == nil {
		return fallback
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func handleClassify(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		u, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		respBody, err := apiCall(ctx, client, http.MethodPost, apiURL, apiKey, "/api/v1/classify", map[string]string{"url": u})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var resp classifyResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if !resp.Success {
			return mcp.NewToolResultError(errorText("classify failed", resp.Error)), nil
		}
		return mcp.NewToolResultText(resp.Route), nil
	}
}

func handleTransform(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 60 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		kind, err := request.RequireString("route")
		if err != nil {
			return mcp.NewToolResultError("route is required"), nil
		}
		doc, err := request.RequireString("body")
		if err != nil {
			return mcp.NewToolResultError("body is required"), nil
		}

		payload := map[string]string{"route": kind, "body": doc}
		respBody, err := apiCall(ctx, client, http.MethodPost, apiURL, apiKey, "/api/v1/transform", payload)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var resp transformResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if !resp.Success {
			return mcp.NewToolResultError(errorText("transform failed", resp.Error)), nil
		}

		result := resp.Body
		if resp.Removed > 0 {
			result += fmt.Sprintf("\n\n---\nRemoved %d short-form entries", resp.Removed)
		}
		return mcp.NewToolResultText(result), nil
	}
}

func handleGetSettings(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		respBody, err := apiCall(ctx, client, http.MethodGet, apiURL, apiKey, "/api/v1/settings", nil)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return settingsResult(respBody), nil
	}
}

func handleSetHideShorts(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		enabled, err := request.RequireBool("enabled")
		if err != nil {
			return mcp.NewToolResultError("enabled is required and must be a boolean"), nil
		}

		payload := map[string]bool{"hide_shorts": enabled}
		respBody, err := apiCall(ctx, client, http.MethodPut, apiURL, apiKey, "/api/v1/settings", payload)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return settingsResult(respBody), nil
	}
}

func settingsResult(respBody []byte) *mcp.CallToolResult {
	var resp settingsResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err))
	}
	if !resp.Success {
		return mcp.NewToolResultError(errorText("settings request failed", resp.Error))
	}
	return mcp.NewToolResultText(fmt.Sprintf("hide_shorts: %t", resp.Settings.HideShorts))
}

func handleNavigate(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 150 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		u, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		respBody, err := apiCall(ctx, client, http.MethodPost, apiURL, apiKey, "/api/v1/navigate", map[string]string{"url": u})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var resp navigateResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if !resp.Success {
			return mcp.NewToolResultError(errorText("navigation failed", resp.Error)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Title: %s\nURL: %s", resp.Title, resp.FinalURL)), nil
	}
}
